package scheduler

import (
	"context"
	"log"
	"sync"
	"time"
)

// SyncJob is one recurring unit of sync work.
type SyncJob interface {
	Name() string
	Run(ctx context.Context) error
}

// Job binds a sync engine to a fixed interval.
type Job struct {
	Engine   SyncJob
	Interval time.Duration
}

// SyncScheduler runs each job on its own fixed-interval ticker. A job's runs
// never overlap: each tick executes synchronously on the job's goroutine, so
// a cycle that outlasts its interval simply delays the next tick.
type SyncScheduler struct {
	jobs []Job

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSyncScheduler creates a new sync scheduler
func NewSyncScheduler(jobs ...Job) *SyncScheduler {
	return &SyncScheduler{jobs: jobs}
}

// Start launches one goroutine per job. Each job runs once immediately and
// then on every tick until Stop is called or ctx is cancelled.
func (s *SyncScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
	log.Printf("[Scheduler] Started %d sync jobs", len(s.jobs))
}

// Stop cancels all jobs and waits for in-flight cycles to finish.
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	s.wg.Wait()
	log.Printf("[Scheduler] Stopped")
}

func (s *SyncScheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	log.Printf("[Scheduler] Job %s scheduled every %s", job.Engine.Name(), job.Interval)
	s.runJob(ctx, job.Engine)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runJob(ctx, job.Engine)
		}
	}
}

// runJob isolates one cycle: a panic or error in one run must not take down
// the scheduler or suppress future cycles.
func (s *SyncScheduler) runJob(ctx context.Context, engine SyncJob) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Scheduler] Job %s panicked: %v", engine.Name(), r)
		}
	}()

	start := time.Now()
	if err := engine.Run(ctx); err != nil {
		log.Printf("[Scheduler] Job %s failed after %s: %v", engine.Name(), time.Since(start), err)
		return
	}
	log.Printf("[Scheduler] Job %s completed in %s", engine.Name(), time.Since(start))
}
