// Package search keeps the full-text index in step with the store. Each
// indexable entity is projected into one Document keyed by (kind, id);
// the Synchronizer writes those documents and reports failures without
// failing the store mutation that triggered them.
package search

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the entity type a document projects.
type Kind string

// Indexable kinds.
const (
	KindTask      Kind = "task"
	KindEvent     Kind = "event"
	KindWiki      Kind = "wiki"
	KindJournal   Kind = "journal"
	KindOperation Kind = "operation"
)

// Kinds lists every indexable kind.
var Kinds = []Kind{KindTask, KindEvent, KindWiki, KindJournal, KindOperation}

// ParseKind resolves a kind name. "journal-entry" and "journal_entry" are
// accepted for journal.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindTask, KindEvent, KindWiki, KindJournal, KindOperation:
		return k, nil
	case "journal-entry", "journal_entry":
		return KindJournal, nil
	}
	return "", fmt.Errorf("search: unknown kind %q", s)
}

// Ref identifies the entity behind a document.
type Ref struct {
	Kind Kind
	ID   uint
}

func (r Ref) String() string {
	return fmt.Sprintf("%s/%d", r.Kind, r.ID)
}

// Document is the canonical search shape shared by every kind.
type Document struct {
	ID          uint       `gorm:"primaryKey;autoIncrement" json:"-"`
	Kind        Kind       `gorm:"size:16;not null;uniqueIndex:idx_document_ref" json:"kind"`
	EntityID    uint       `gorm:"not null;uniqueIndex:idx_document_ref" json:"entity_id"`
	Title       string     `gorm:"not null" json:"title"`
	Body        string     `gorm:"type:text" json:"body,omitempty"`
	Secondary   string     `gorm:"size:255" json:"secondary,omitempty"`
	Tags        string     `gorm:"size:255" json:"tags,omitempty"`
	Start       *time.Time `gorm:"column:starts_at" json:"start,omitempty"`
	End         *time.Time `gorm:"column:ends_at" json:"end,omitempty"`
	OperationID *uint      `gorm:"index" json:"operation_id,omitempty"`
	IndexedAt   time.Time  `json:"indexed_at"`
}

// TableName pins the table name used by the index database.
func (Document) TableName() string {
	return "search_documents"
}

// Ref returns the key of the entity this document projects.
func (d Document) Ref() Ref {
	return Ref{Kind: d.Kind, ID: d.EntityID}
}
