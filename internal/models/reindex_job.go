package models

import "time"

// Reindex job statuses.
const (
	ReindexPending = "pending"
	ReindexRunning = "running"
	ReindexDone    = "done"
	ReindexFailed  = "failed"
)

// ReindexJob tracks a full rebuild of the search index.
type ReindexJob struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Kinds        string `gorm:"size:128"`
	Trigger      string `gorm:"size:16;default:manual"`
	Status       string `gorm:"size:16;default:pending"`
	Documents    int
	Failures     int
	StartedAt    *time.Time
	CompletedAt  *time.Time
	CreatedAt    time.Time
	ErrorMessage string `gorm:"type:text"`
}

// IndexFailure records a search index call that failed after its store
// mutation succeeded. Unresolved rows are replayed by the reindexer.
type IndexFailure struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	Kind       string `gorm:"size:16;index"`
	EntityID   uint   `gorm:"index"`
	Op         string `gorm:"size:16"`
	Error      string `gorm:"type:text"`
	Resolved   bool   `gorm:"default:false;index"`
	Attempts   int    `gorm:"default:1"`
	CreatedAt  time.Time
	ResolvedAt *time.Time
}
