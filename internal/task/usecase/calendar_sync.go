package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	credentialdomain "github.com/jburchel/mobilize-crm/internal/credential/domain"
	credentialusecase "github.com/jburchel/mobilize-crm/internal/credential/usecase"
	taskdomain "github.com/jburchel/mobilize-crm/internal/task/domain"
	"github.com/jburchel/mobilize-crm/internal/task/repository"
	"github.com/jburchel/mobilize-crm/pkg/gcal"
)

// CalendarService is the remote calendar adapter contract the engine consumes
type CalendarService interface {
	GetEvent(ctx context.Context, accessToken, refreshToken, eventID string, onTokenRefresh credentialdomain.TokenUpdateFunc) (*taskdomain.CalendarEvent, error)
	InsertEvent(ctx context.Context, accessToken, refreshToken string, ev *taskdomain.CalendarEvent, onTokenRefresh credentialdomain.TokenUpdateFunc) (*taskdomain.CalendarEvent, error)
	UpdateEvent(ctx context.Context, accessToken, refreshToken, eventID string, ev *taskdomain.CalendarEvent, onTokenRefresh credentialdomain.TokenUpdateFunc) (*taskdomain.CalendarEvent, error)
	DeleteEvent(ctx context.Context, accessToken, refreshToken, eventID string, onTokenRefresh credentialdomain.TokenUpdateFunc) error
}

// CalendarSyncEngine reconciles local tasks against remote calendar events.
// Records are processed sequentially per identity and identities sequentially,
// so no two operations ever touch the same task's remote event at once.
type CalendarSyncEngine struct {
	taskRepo  repository.TaskRepository
	credStore *credentialusecase.Store
	calendar  CalendarService
	now       func() time.Time
}

// NewCalendarSyncEngine creates a new calendar sync engine
func NewCalendarSyncEngine(taskRepo repository.TaskRepository, credStore *credentialusecase.Store, calendar CalendarService) *CalendarSyncEngine {
	return &CalendarSyncEngine{
		taskRepo:  taskRepo,
		credStore: credStore,
		calendar:  calendar,
		now:       time.Now,
	}
}

func (e *CalendarSyncEngine) Name() string {
	return "calendar-sync"
}

// Run executes one sync cycle across every identity with a stored credential.
// A missing credential, a failing record, or a failing identity never stops
// the rest of the cycle.
func (e *CalendarSyncEngine) Run(ctx context.Context) error {
	creds, err := e.credStore.ListIdentities(ctx)
	if err != nil {
		return fmt.Errorf("listing identities: %w", err)
	}

	for _, identity := range creds {
		cred, err := e.credStore.Resolve(ctx, identity.UserID)
		if err != nil {
			if errors.Is(err, credentialdomain.ErrNotFound) {
				log.Printf("[CalendarSync] No credential for user %s, skipping this cycle", identity.UserID)
				continue
			}
			log.Printf("[CalendarSync] Error resolving credential for user %s: %v", identity.UserID, err)
			continue
		}

		tasks, err := e.taskRepo.ListSyncEligible(cred.UserID)
		if err != nil {
			log.Printf("[CalendarSync] Error listing tasks for user %s: %v", cred.UserID, err)
			continue
		}
		if len(tasks) == 0 {
			continue
		}

		log.Printf("[CalendarSync] Found %d tasks to sync for user %s", len(tasks), cred.UserID)

		for _, task := range tasks {
			if err := e.syncTask(ctx, cred, task); err != nil {
				log.Printf("[CalendarSync] Error syncing task %s: %v", task.ID, err)
				continue
			}
		}
	}

	return nil
}

// SyncTask enables calendar sync for a single task and reconciles it
// immediately. The per-task entry point for the synchronous path.
func (e *CalendarSyncEngine) SyncTask(ctx context.Context, task *taskdomain.Task) error {
	cred, err := e.credStore.Resolve(ctx, task.UserID)
	if err != nil {
		return err
	}
	task.GoogleCalendarSyncEnabled = true
	return e.syncTask(ctx, cred, task)
}

// UnsyncTask deletes the task's remote event and disables sync. An event
// already deleted remotely is not an error.
func (e *CalendarSyncEngine) UnsyncTask(ctx context.Context, task *taskdomain.Task) error {
	cred, err := e.credStore.Resolve(ctx, task.UserID)
	if err != nil {
		return err
	}

	if task.GoogleCalendarEventID != nil {
		onRefresh := e.credStore.OnTokenRefresh(ctx, cred)
		if err := e.calendar.DeleteEvent(ctx, cred.AccessToken, cred.RefreshTokenValue(), *task.GoogleCalendarEventID, onRefresh); err != nil && !gcal.IsNotFound(err) {
			return fmt.Errorf("deleting event for task %s: %w", task.ID, err)
		}
	}

	now := e.now()
	task.GoogleCalendarEventID = nil
	task.GoogleCalendarSyncEnabled = false
	task.LastSyncedAt = &now
	return e.taskRepo.Save(task)
}

// syncTask runs the per-task state machine for one cycle.
func (e *CalendarSyncEngine) syncTask(ctx context.Context, cred *credentialdomain.SyncCredential, task *taskdomain.Task) error {
	if !task.GoogleCalendarSyncEnabled {
		return nil
	}

	// Validation failure: no remote mutation, record stays pending.
	ev, err := task.ToCalendarEvent()
	if err != nil {
		return fmt.Errorf("task %s: %w", task.ID, err)
	}

	onRefresh := e.credStore.OnTokenRefresh(ctx, cred)

	if task.GoogleCalendarEventID == nil {
		return e.createEvent(ctx, cred, task, ev, onRefresh)
	}

	remote, err := e.calendar.GetEvent(ctx, cred.AccessToken, cred.RefreshTokenValue(), *task.GoogleCalendarEventID, onRefresh)
	if err != nil {
		if gcal.IsNotFound(err) {
			// Deleted out-of-band: recreate.
			log.Printf("[CalendarSync] Event %s not found remotely, recreating for task %s", *task.GoogleCalendarEventID, task.ID)
			return e.createEvent(ctx, cred, task, ev, onRefresh)
		}
		return fmt.Errorf("reading event for task %s: %w", task.ID, err)
	}

	if task.LastSyncedAt != nil && remote.Updated.After(*task.LastSyncedAt) {
		// The event was edited in the external calendar after our last sync.
		// Resolution policy: local data wins, the remote edit is overwritten.
		log.Printf("[CalendarSync] Conflict on task %s: event %s modified remotely at %s, overwriting with local data",
			task.ID, *task.GoogleCalendarEventID, remote.Updated.Format(time.RFC3339))
	}

	if _, err := e.calendar.UpdateEvent(ctx, cred.AccessToken, cred.RefreshTokenValue(), *task.GoogleCalendarEventID, ev, onRefresh); err != nil {
		return fmt.Errorf("updating event for task %s: %w", task.ID, err)
	}

	now := e.now()
	task.LastSyncedAt = &now
	return e.taskRepo.Save(task)
}

func (e *CalendarSyncEngine) createEvent(ctx context.Context, cred *credentialdomain.SyncCredential, task *taskdomain.Task, ev *taskdomain.CalendarEvent, onRefresh credentialdomain.TokenUpdateFunc) error {
	created, err := e.calendar.InsertEvent(ctx, cred.AccessToken, cred.RefreshTokenValue(), ev, onRefresh)
	if err != nil {
		// Local state untouched, the record is retried next cycle.
		return fmt.Errorf("creating event for task %s: %w", task.ID, err)
	}

	log.Printf("[CalendarSync] Created event %s for task %s", created.ID, task.ID)

	now := e.now()
	task.GoogleCalendarEventID = &created.ID
	task.LastSyncedAt = &now
	return e.taskRepo.Save(task)
}
