package repository

import (
	taskdomain "github.com/jburchel/mobilize-crm/internal/task/domain"
)

// TaskRepository defines the storage contract the calendar sync engine consumes
type TaskRepository interface {
	// ListSyncEligible returns the user's tasks with calendar sync enabled.
	ListSyncEligible(userID string) ([]*taskdomain.Task, error)
	// FindByID returns a task, or nil when it does not exist.
	FindByID(id string) (*taskdomain.Task, error)
	// Save writes back local sync state (event id, last synced, flags).
	Save(task *taskdomain.Task) error
}
