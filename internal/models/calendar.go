package models

import "time"

// CalendarSource is a named calendar that events belong to.
type CalendarSource struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"size:64;uniqueIndex;not null"`
	Color     string `gorm:"size:16"`
	IsDefault bool   `gorm:"default:false"`
}

// CalendarEvent is a ranged entry on a calendar. Events with a TaskID are
// derived from that task; at most one event exists per task.
type CalendarEvent struct {
	ID               uint      `gorm:"primaryKey;autoIncrement"`
	UID              string    `gorm:"size:36;uniqueIndex"`
	Title            string    `gorm:"not null"`
	Description      string    `gorm:"type:text"`
	Start            time.Time `gorm:"column:starts_at;not null;index"`
	End              time.Time `gorm:"column:ends_at;not null"`
	Location         string    `gorm:"size:255"`
	AllDay           bool      `gorm:"default:false"`
	OperationID      uint      `gorm:"index"`
	CalendarSourceID uint      `gorm:"index"`
	TaskID           *uint     `gorm:"index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
