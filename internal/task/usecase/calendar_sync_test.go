package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	credentialdomain "github.com/jburchel/mobilize-crm/internal/credential/domain"
	credentialusecase "github.com/jburchel/mobilize-crm/internal/credential/usecase"
	taskdomain "github.com/jburchel/mobilize-crm/internal/task/domain"
)

type fakeCredentialRepo struct {
	creds  map[string]*credentialdomain.SyncCredential
	order  []string
	hidden map[string]bool
}

func newFakeCredentialRepo(creds ...*credentialdomain.SyncCredential) *fakeCredentialRepo {
	r := &fakeCredentialRepo{
		creds:  make(map[string]*credentialdomain.SyncCredential),
		hidden: make(map[string]bool),
	}
	for _, c := range creds {
		r.creds[c.UserID] = c
		r.order = append(r.order, c.UserID)
	}
	return r
}

func (r *fakeCredentialRepo) Upsert(cred *credentialdomain.SyncCredential) error {
	if _, ok := r.creds[cred.UserID]; !ok {
		r.order = append(r.order, cred.UserID)
	}
	r.creds[cred.UserID] = cred
	return nil
}

func (r *fakeCredentialRepo) FindByUserID(userID string) (*credentialdomain.SyncCredential, error) {
	if r.hidden[userID] {
		return nil, nil
	}
	return r.creds[userID], nil
}

func (r *fakeCredentialRepo) ListAll() ([]*credentialdomain.SyncCredential, error) {
	out := make([]*credentialdomain.SyncCredential, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.creds[id])
	}
	return out, nil
}

func (r *fakeCredentialRepo) Delete(userID string) error {
	delete(r.creds, userID)
	return nil
}

type fakeTaskRepo struct {
	tasks []*taskdomain.Task
	saves int
}

func (r *fakeTaskRepo) ListSyncEligible(userID string) ([]*taskdomain.Task, error) {
	var out []*taskdomain.Task
	for _, t := range r.tasks {
		if t.UserID == userID && t.GoogleCalendarSyncEnabled {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTaskRepo) FindByID(id string) (*taskdomain.Task, error) {
	for _, t := range r.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, nil
}

func (r *fakeTaskRepo) Save(task *taskdomain.Task) error {
	r.saves++
	return nil
}

type fakeCalendarService struct {
	remote map[string]*taskdomain.CalendarEvent

	getErr    error
	insertErr error
	updateErr error
	deleteErr error

	inserts []*taskdomain.CalendarEvent
	updates []*taskdomain.CalendarEvent
	gets    int
	deletes []string

	nextID int
}

func newFakeCalendarService() *fakeCalendarService {
	return &fakeCalendarService{remote: make(map[string]*taskdomain.CalendarEvent)}
}

func (s *fakeCalendarService) GetEvent(ctx context.Context, accessToken, refreshToken, eventID string, onTokenRefresh credentialdomain.TokenUpdateFunc) (*taskdomain.CalendarEvent, error) {
	s.gets++
	if s.getErr != nil {
		return nil, s.getErr
	}
	ev, ok := s.remote[eventID]
	if !ok {
		return nil, &googleapi.Error{Code: 404}
	}
	return ev, nil
}

func (s *fakeCalendarService) InsertEvent(ctx context.Context, accessToken, refreshToken string, ev *taskdomain.CalendarEvent, onTokenRefresh credentialdomain.TokenUpdateFunc) (*taskdomain.CalendarEvent, error) {
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	s.nextID++
	created := *ev
	created.ID = string(rune('a'+s.nextID-1)) + "-event"
	s.remote[created.ID] = &created
	s.inserts = append(s.inserts, ev)
	return &created, nil
}

func (s *fakeCalendarService) UpdateEvent(ctx context.Context, accessToken, refreshToken, eventID string, ev *taskdomain.CalendarEvent, onTokenRefresh credentialdomain.TokenUpdateFunc) (*taskdomain.CalendarEvent, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	updated := *ev
	updated.ID = eventID
	s.remote[eventID] = &updated
	s.updates = append(s.updates, ev)
	return &updated, nil
}

func (s *fakeCalendarService) DeleteEvent(ctx context.Context, accessToken, refreshToken, eventID string, onTokenRefresh credentialdomain.TokenUpdateFunc) error {
	s.deletes = append(s.deletes, eventID)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.remote[eventID]; !ok {
		return &googleapi.Error{Code: 410}
	}
	delete(s.remote, eventID)
	return nil
}

func newTestEngine(taskRepo *fakeTaskRepo, cal *fakeCalendarService, creds ...*credentialdomain.SyncCredential) *CalendarSyncEngine {
	store := credentialusecase.NewStore(newFakeCredentialRepo(creds...))
	engine := NewCalendarSyncEngine(taskRepo, store, cal)
	engine.now = func() time.Time { return time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC) }
	return engine
}

func syncEnabledTask(id, userID string, due time.Time) *taskdomain.Task {
	return &taskdomain.Task{
		ID:                        id,
		UserID:                    userID,
		Title:                     "Call donor",
		DueDate:                   &due,
		Priority:                  taskdomain.PriorityMedium,
		Status:                    taskdomain.TaskStatusNotStarted,
		GoogleCalendarSyncEnabled: true,
	}
}

func TestRunCreatesAllDayEventForNewTask(t *testing.T) {
	due := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	task := syncEnabledTask("t1", "user-1", due)
	taskRepo := &fakeTaskRepo{tasks: []*taskdomain.Task{task}}
	cal := newFakeCalendarService()
	engine := newTestEngine(taskRepo, cal, &credentialdomain.SyncCredential{UserID: "user-1", AccessToken: "tok"})

	require.NoError(t, engine.Run(context.Background()))

	require.Len(t, cal.inserts, 1)
	ev := cal.inserts[0]
	assert.True(t, ev.AllDay)
	assert.Equal(t, due, ev.Start)
	assert.Equal(t, due, ev.End)
	assert.Equal(t, "t1", ev.Private[taskdomain.EventKeyTaskID])

	require.NotNil(t, task.GoogleCalendarEventID)
	require.NotNil(t, task.LastSyncedAt)
	assert.Equal(t, 1, taskRepo.saves)
}

func TestRunSkipsDisabledTasks(t *testing.T) {
	due := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	task := syncEnabledTask("t1", "user-1", due)
	task.GoogleCalendarSyncEnabled = false
	taskRepo := &fakeTaskRepo{tasks: []*taskdomain.Task{task}}
	cal := newFakeCalendarService()
	engine := newTestEngine(taskRepo, cal, &credentialdomain.SyncCredential{UserID: "user-1", AccessToken: "tok"})

	require.NoError(t, engine.Run(context.Background()))

	assert.Empty(t, cal.inserts)
	assert.Empty(t, cal.updates)
	assert.Zero(t, cal.gets)
	assert.Zero(t, taskRepo.saves)
}

func TestRunSecondCyclePushesIdenticalPayload(t *testing.T) {
	due := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	task := syncEnabledTask("t1", "user-1", due)
	taskRepo := &fakeTaskRepo{tasks: []*taskdomain.Task{task}}
	cal := newFakeCalendarService()
	engine := newTestEngine(taskRepo, cal, &credentialdomain.SyncCredential{UserID: "user-1", AccessToken: "tok"})

	require.NoError(t, engine.Run(context.Background()))
	require.Len(t, cal.inserts, 1)

	require.NoError(t, engine.Run(context.Background()))

	// The second cycle re-reads and re-pushes the same payload, never a
	// second create.
	require.Len(t, cal.inserts, 1)
	require.Len(t, cal.updates, 1)
	assert.Equal(t, cal.inserts[0].Summary, cal.updates[0].Summary)
	assert.Equal(t, cal.inserts[0].Start, cal.updates[0].Start)
	assert.Equal(t, cal.inserts[0].End, cal.updates[0].End)
	assert.Equal(t, cal.inserts[0].Private, cal.updates[0].Private)
}

func TestRunRecreatesEventDeletedRemotely(t *testing.T) {
	due := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	task := syncEnabledTask("t1", "user-1", due)
	gone := "gone-event"
	task.GoogleCalendarEventID = &gone
	taskRepo := &fakeTaskRepo{tasks: []*taskdomain.Task{task}}
	cal := newFakeCalendarService()
	engine := newTestEngine(taskRepo, cal, &credentialdomain.SyncCredential{UserID: "user-1", AccessToken: "tok"})

	require.NoError(t, engine.Run(context.Background()))

	require.Len(t, cal.inserts, 1)
	require.NotNil(t, task.GoogleCalendarEventID)
	assert.NotEqual(t, "gone-event", *task.GoogleCalendarEventID)
}

func TestRunOverwritesRemoteEditWithLocalData(t *testing.T) {
	due := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	lastSynced := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	task := syncEnabledTask("t1", "user-1", due)
	eventID := "ev-1"
	task.GoogleCalendarEventID = &eventID
	task.LastSyncedAt = &lastSynced

	cal := newFakeCalendarService()
	cal.remote[eventID] = &taskdomain.CalendarEvent{
		ID:      eventID,
		Summary: "Edited in calendar",
		Updated: lastSynced.Add(30 * time.Minute),
	}
	taskRepo := &fakeTaskRepo{tasks: []*taskdomain.Task{task}}
	engine := newTestEngine(taskRepo, cal, &credentialdomain.SyncCredential{UserID: "user-1", AccessToken: "tok"})

	require.NoError(t, engine.Run(context.Background()))

	require.Len(t, cal.updates, 1)
	assert.Equal(t, "Call donor", cal.updates[0].Summary)
	require.NotNil(t, task.LastSyncedAt)
	assert.True(t, task.LastSyncedAt.After(lastSynced))
}

func TestRunMissingDueDateMakesNoRemoteCall(t *testing.T) {
	task := &taskdomain.Task{ID: "t1", UserID: "user-1", Title: "No date", GoogleCalendarSyncEnabled: true}
	taskRepo := &fakeTaskRepo{tasks: []*taskdomain.Task{task}}
	cal := newFakeCalendarService()
	engine := newTestEngine(taskRepo, cal, &credentialdomain.SyncCredential{UserID: "user-1", AccessToken: "tok"})

	require.NoError(t, engine.Run(context.Background()))

	assert.Zero(t, cal.gets)
	assert.Empty(t, cal.inserts)
	assert.Empty(t, cal.updates)
	assert.Zero(t, taskRepo.saves)
	assert.Nil(t, task.GoogleCalendarEventID)
}

func TestRunOneFailingTaskDoesNotBlockOthers(t *testing.T) {
	due := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	broken := &taskdomain.Task{ID: "t1", UserID: "user-1", Title: "No date", GoogleCalendarSyncEnabled: true}
	healthy := syncEnabledTask("t2", "user-1", due)
	taskRepo := &fakeTaskRepo{tasks: []*taskdomain.Task{broken, healthy}}
	cal := newFakeCalendarService()
	engine := newTestEngine(taskRepo, cal, &credentialdomain.SyncCredential{UserID: "user-1", AccessToken: "tok"})

	require.NoError(t, engine.Run(context.Background()))

	require.Len(t, cal.inserts, 1)
	assert.Equal(t, "t2", cal.inserts[0].Private[taskdomain.EventKeyTaskID])
}

func TestRunMissingCredentialSkipsIdentityOnly(t *testing.T) {
	due := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	t1 := syncEnabledTask("t1", "user-1", due)
	t2 := syncEnabledTask("t2", "user-2", due)
	taskRepo := &fakeTaskRepo{tasks: []*taskdomain.Task{t1, t2}}
	cal := newFakeCalendarService()

	// user-1 appears in the identity list but its resolver chain only finds
	// user-2.
	repo := newFakeCredentialRepo(
		&credentialdomain.SyncCredential{UserID: "user-1", AccessToken: "tok"},
		&credentialdomain.SyncCredential{UserID: "user-2", AccessToken: "tok"},
	)
	repo.hidden["user-1"] = true
	store := credentialusecase.NewStore(repo)
	engine := NewCalendarSyncEngine(taskRepo, store, cal)
	engine.now = func() time.Time { return time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, engine.Run(context.Background()))

	require.Len(t, cal.inserts, 1)
	assert.Equal(t, "t2", cal.inserts[0].Private[taskdomain.EventKeyTaskID])
}

func TestInsertFailureLeavesTaskForNextCycle(t *testing.T) {
	due := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	task := syncEnabledTask("t1", "user-1", due)
	taskRepo := &fakeTaskRepo{tasks: []*taskdomain.Task{task}}
	cal := newFakeCalendarService()
	cal.insertErr = errors.New("backend error")
	engine := newTestEngine(taskRepo, cal, &credentialdomain.SyncCredential{UserID: "user-1", AccessToken: "tok"})

	require.NoError(t, engine.Run(context.Background()))

	assert.Nil(t, task.GoogleCalendarEventID)
	assert.Nil(t, task.LastSyncedAt)
	assert.Zero(t, taskRepo.saves)

	// The next cycle retries the same task.
	cal.insertErr = nil
	require.NoError(t, engine.Run(context.Background()))
	require.NotNil(t, task.GoogleCalendarEventID)
}

func TestSyncTaskEnablesAndCreates(t *testing.T) {
	due := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	task := syncEnabledTask("t1", "user-1", due)
	task.GoogleCalendarSyncEnabled = false
	taskRepo := &fakeTaskRepo{tasks: []*taskdomain.Task{task}}
	cal := newFakeCalendarService()
	engine := newTestEngine(taskRepo, cal, &credentialdomain.SyncCredential{UserID: "user-1", AccessToken: "tok"})

	require.NoError(t, engine.SyncTask(context.Background(), task))

	assert.True(t, task.GoogleCalendarSyncEnabled)
	require.Len(t, cal.inserts, 1)
}

func TestUnsyncTaskDeletesEventAndClearsState(t *testing.T) {
	due := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	task := syncEnabledTask("t1", "user-1", due)
	eventID := "ev-1"
	task.GoogleCalendarEventID = &eventID
	cal := newFakeCalendarService()
	cal.remote[eventID] = &taskdomain.CalendarEvent{ID: eventID}
	taskRepo := &fakeTaskRepo{tasks: []*taskdomain.Task{task}}
	engine := newTestEngine(taskRepo, cal, &credentialdomain.SyncCredential{UserID: "user-1", AccessToken: "tok"})

	require.NoError(t, engine.UnsyncTask(context.Background(), task))

	assert.Equal(t, []string{"ev-1"}, cal.deletes)
	assert.Nil(t, task.GoogleCalendarEventID)
	assert.False(t, task.GoogleCalendarSyncEnabled)
	require.NotNil(t, task.LastSyncedAt)
}

func TestUnsyncTaskToleratesAlreadyDeletedEvent(t *testing.T) {
	due := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	task := syncEnabledTask("t1", "user-1", due)
	eventID := "already-gone"
	task.GoogleCalendarEventID = &eventID
	cal := newFakeCalendarService()
	taskRepo := &fakeTaskRepo{tasks: []*taskdomain.Task{task}}
	engine := newTestEngine(taskRepo, cal, &credentialdomain.SyncCredential{UserID: "user-1", AccessToken: "tok"})

	require.NoError(t, engine.UnsyncTask(context.Background(), task))
	assert.Nil(t, task.GoogleCalendarEventID)
}
