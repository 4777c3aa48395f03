package models

import "time"

// TaskStatus is the workflow state of a task.
type TaskStatus string

// Task statuses. Done is the only terminal state.
const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

// Priority ranks tasks and operations.
type Priority string

// Priorities.
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskDone:
		return true
	}
	return false
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Task is a unit of work owned by an Operation. A task with a Recurrence
// rule is a template; its instances point back at it through ParentTaskID.
type Task struct {
	ID                  uint       `gorm:"primaryKey;autoIncrement"`
	Title               string     `gorm:"not null"`
	Description         string     `gorm:"type:text"`
	OperationID         uint       `gorm:"not null;index"`
	Status              TaskStatus `gorm:"size:16;default:todo;index"`
	Priority            Priority   `gorm:"size:16;default:medium"`
	DueDate             *time.Time `gorm:"index"`
	Recurrence          string     `gorm:"size:64"`
	ParentTaskID        *uint      `gorm:"index"`
	IsRecurringInstance bool       `gorm:"default:false"`
	CompletedAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsDone reports whether the task is in its terminal completed state.
func (t *Task) IsDone() bool {
	return t.Status == TaskDone
}

// IsTemplate reports whether the task carries a recurrence rule of its own.
func (t *Task) IsTemplate() bool {
	return t.Recurrence != "" && !t.IsRecurringInstance
}
