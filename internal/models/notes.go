package models

import "time"

// WikiPage is a free-form page filed under an operation.
type WikiPage struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	Title       string `gorm:"not null"`
	Content     string `gorm:"type:text"`
	Region      string `gorm:"size:64;index"`
	OperationID uint   `gorm:"index"`
	Favorite    bool   `gorm:"default:false;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// JournalEntry is a dated journal note.
type JournalEntry struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Title     string    `gorm:"not null"`
	Content   string    `gorm:"type:text"`
	Date      time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
