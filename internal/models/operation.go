package models

import "time"

// Operation statuses.
const (
	OperationPlanned   = "planned"
	OperationActive    = "active"
	OperationCompleted = "completed"
	OperationCancelled = "cancelled"
)

// Operation groups tasks, wiki pages and calendar events under one goal.
type Operation struct {
	ID        uint     `gorm:"primaryKey;autoIncrement"`
	Name      string   `gorm:"size:128;not null"`
	Purpose   string   `gorm:"type:text"`
	Priority  Priority `gorm:"size:16;default:medium"`
	Status    string   `gorm:"size:16;default:active;index"`
	DueDate   *time.Time
	Outcome   *string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
