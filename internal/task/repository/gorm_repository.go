package repository

import (
	"errors"
	"time"

	taskdomain "github.com/jburchel/mobilize-crm/internal/task/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// taskRepository implements TaskRepository interface
type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new instance of taskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{
		db: db,
	}
}

func (r *taskRepository) ListSyncEligible(userID string) ([]*taskdomain.Task, error) {
	var tasks []*taskdomain.Task
	err := r.db.
		Where("user_id = ? AND google_calendar_sync_enabled = ?", userID, true).
		Order("due_date ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *taskRepository) FindByID(id string) (*taskdomain.Task, error) {
	var task taskdomain.Task
	err := r.db.Where("id = ?", id).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) Save(task *taskdomain.Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
		task.CreatedAt = time.Now()
	}
	task.UpdatedAt = time.Now()
	return r.db.Save(task).Error
}
