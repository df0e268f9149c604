package domain

import (
	"errors"
	"time"
)

// ErrMissingDueDate is a validation error: a task cannot be synced to the
// calendar without a due date. The record stays pending, no remote call is made.
var ErrMissingDueDate = errors.New("task must have a due date to sync a calendar event")

// Priority represents task priority level
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskStatusNotStarted TaskStatus = "Not Started"
	TaskStatusInProgress TaskStatus = "In Progress"
	TaskStatusCompleted  TaskStatus = "Completed"
)

// Task is a CRM to-do item, optionally mirrored to a calendar event.
// GoogleCalendarEventID is assigned on the first successful remote create
// and cleared on unsync.
type Task struct {
	ID              string     `json:"id" gorm:"primaryKey"`
	UserID          string     `json:"user_id" gorm:"index;not null"`
	Title           string     `json:"title" gorm:"not null"`
	Description     string     `json:"description,omitempty"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	DueTime         *string    `json:"due_time,omitempty"` // "15:04", local to the event
	ReminderMinutes *int64     `json:"reminder_minutes,omitempty"`
	Priority        Priority   `json:"priority" gorm:"default:Medium"`
	Status          TaskStatus `json:"status" gorm:"default:Not Started"`
	PersonID        *string    `json:"person_id,omitempty" gorm:"index"`
	OrganizationID  *string    `json:"organization_id,omitempty" gorm:"index"`

	GoogleCalendarSyncEnabled bool       `json:"google_calendar_sync_enabled" gorm:"default:false"`
	GoogleCalendarEventID     *string    `json:"google_calendar_event_id,omitempty" gorm:"uniqueIndex"`
	LastSyncedAt              *time.Time `json:"last_synced_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CalendarEvent is the adapter-level view of a remote calendar event.
type CalendarEvent struct {
	ID          string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	AllDay      bool
	Updated     time.Time
	// Private carries the opaque CRM-owned metadata round-tripped through
	// the event's extended properties.
	Private map[string]string
	// ReminderMinutes, when non-nil, is a single popup override replacing
	// the calendar's default reminder policy.
	ReminderMinutes *int64
}

// EventDuration is the fixed length of a timed event derived from a task
// with a time of day.
const EventDuration = time.Hour

// Private metadata keys linking a remote event back to the CRM task.
const (
	EventKeyTaskID       = "mobilizeCrmTaskId"
	EventKeyTaskStatus   = "mobilizeCrmTaskStatus"
	EventKeyTaskPriority = "mobilizeCrmTaskPriority"
)

// ToCalendarEvent derives the remote event payload from the task's local
// fields. A task with a time of day becomes a one-hour timed event; without
// one it becomes an all-day event on the due date.
func (t *Task) ToCalendarEvent() (*CalendarEvent, error) {
	if t.DueDate == nil {
		return nil, ErrMissingDueDate
	}

	ev := &CalendarEvent{
		Summary:     t.Title,
		Description: t.Description,
		Private: map[string]string{
			EventKeyTaskID:       t.ID,
			EventKeyTaskStatus:   string(t.Status),
			EventKeyTaskPriority: string(t.Priority),
		},
		ReminderMinutes: t.ReminderMinutes,
	}

	due := *t.DueDate
	if t.DueTime != nil && *t.DueTime != "" {
		tod, err := time.ParseInLocation("15:04", *t.DueTime, due.Location())
		if err != nil {
			return nil, err
		}
		start := time.Date(due.Year(), due.Month(), due.Day(), tod.Hour(), tod.Minute(), 0, 0, due.Location())
		ev.Start = start
		ev.End = start.Add(EventDuration)
	} else {
		ev.AllDay = true
		start := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, due.Location())
		ev.Start = start
		ev.End = start
	}

	return ev, nil
}
