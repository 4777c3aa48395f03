package search

import (
	"strings"
	"time"

	"github.com/zulandar/almanac/internal/models"
)

// Entity is the closed set of indexable variants. Each variant carries the
// fields its kind contributes to a Document.
type Entity interface {
	Ref() Ref
	isEntity()
}

// TaskEntity holds the indexed fields of a task.
type TaskEntity struct {
	ID          uint
	Title       string
	Description string
	Status      models.TaskStatus
	Priority    models.Priority
	OperationID uint
	DueDate     *time.Time
}

// EventEntity holds the indexed fields of a calendar event.
type EventEntity struct {
	ID          uint
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Location    string
	OperationID uint
}

// WikiEntity holds the indexed fields of a wiki page.
type WikiEntity struct {
	ID          uint
	Title       string
	Content     string
	Region      string
	OperationID uint
	UpdatedAt   time.Time
}

// JournalEntity holds the indexed fields of a journal entry.
type JournalEntity struct {
	ID      uint
	Title   string
	Content string
	Date    time.Time
}

// OperationEntity holds the indexed fields of an operation.
type OperationEntity struct {
	ID       uint
	Name     string
	Purpose  string
	Status   string
	Priority models.Priority
	DueDate  *time.Time
	Outcome  string
}

func (e TaskEntity) Ref() Ref      { return Ref{KindTask, e.ID} }
func (e EventEntity) Ref() Ref     { return Ref{KindEvent, e.ID} }
func (e WikiEntity) Ref() Ref      { return Ref{KindWiki, e.ID} }
func (e JournalEntity) Ref() Ref   { return Ref{KindJournal, e.ID} }
func (e OperationEntity) Ref() Ref { return Ref{KindOperation, e.ID} }

func (TaskEntity) isEntity()      {}
func (EventEntity) isEntity()     {}
func (WikiEntity) isEntity()      {}
func (JournalEntity) isEntity()   {}
func (OperationEntity) isEntity() {}

// FromTask captures the indexed fields of t.
func FromTask(t *models.Task) TaskEntity {
	return TaskEntity{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		OperationID: t.OperationID,
		DueDate:     t.DueDate,
	}
}

// FromEvent captures the indexed fields of e.
func FromEvent(e *models.CalendarEvent) EventEntity {
	return EventEntity{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Start:       e.Start,
		End:         e.End,
		Location:    e.Location,
		OperationID: e.OperationID,
	}
}

// FromWiki captures the indexed fields of w.
func FromWiki(w *models.WikiPage) WikiEntity {
	return WikiEntity{
		ID:          w.ID,
		Title:       w.Title,
		Content:     w.Content,
		Region:      w.Region,
		OperationID: w.OperationID,
		UpdatedAt:   w.UpdatedAt,
	}
}

// FromJournal captures the indexed fields of j.
func FromJournal(j *models.JournalEntry) JournalEntity {
	return JournalEntity{ID: j.ID, Title: j.Title, Content: j.Content, Date: j.Date}
}

// FromOperation captures the indexed fields of o.
func FromOperation(o *models.Operation) OperationEntity {
	e := OperationEntity{
		ID:       o.ID,
		Name:     o.Name,
		Purpose:  o.Purpose,
		Status:   o.Status,
		Priority: o.Priority,
		DueDate:  o.DueDate,
	}
	if o.Outcome != nil {
		e.Outcome = *o.Outcome
	}
	return e
}

// Project maps an entity to its document. The result depends only on the
// entity's fields; IndexedAt and the row ID are left for the index to set.
// A nil entity yields the zero Document, which Upsert rejects.
func Project(e Entity) Document {
	var d Document
	if e == nil {
		return d
	}
	switch v := e.(type) {
	case TaskEntity:
		d = projectTask(v)
	case EventEntity:
		d = projectEvent(v)
	case WikiEntity:
		d = projectWiki(v)
	case JournalEntity:
		d = projectJournal(v)
	case OperationEntity:
		d = projectOperation(v)
	}
	ref := e.Ref()
	d.Kind = ref.Kind
	d.EntityID = ref.ID
	return d
}

func projectTask(e TaskEntity) Document {
	return Document{
		Title:       e.Title,
		Body:        e.Description,
		Tags:        tags("status", string(e.Status), "priority", string(e.Priority)),
		Start:       utcPtr(e.DueDate),
		OperationID: operationRef(e.OperationID),
	}
}

func projectEvent(e EventEntity) Document {
	start, end := e.Start.UTC(), e.End.UTC()
	return Document{
		Title:       e.Title,
		Body:        e.Description,
		Secondary:   e.Location,
		Start:       &start,
		End:         &end,
		OperationID: operationRef(e.OperationID),
	}
}

func projectWiki(e WikiEntity) Document {
	d := Document{
		Title:       e.Title,
		Body:        e.Content,
		Secondary:   e.Region,
		OperationID: operationRef(e.OperationID),
	}
	if !e.UpdatedAt.IsZero() {
		u := e.UpdatedAt.UTC()
		d.Start = &u
	}
	return d
}

func projectJournal(e JournalEntity) Document {
	d := Document{Title: e.Title, Body: e.Content}
	if !e.Date.IsZero() {
		day := e.Date.UTC()
		d.Start = &day
	}
	return d
}

func projectOperation(e OperationEntity) Document {
	return Document{
		Title:     e.Name,
		Body:      e.Purpose,
		Secondary: e.Outcome,
		Tags:      tags("status", e.Status, "priority", string(e.Priority)),
		Start:     utcPtr(e.DueDate),
	}
}

// tags renders key/value pairs as "key:value" words, skipping empty values.
func tags(kv ...string) string {
	var parts []string
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			parts = append(parts, kv[i]+":"+kv[i+1])
		}
	}
	return strings.Join(parts, " ")
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

func operationRef(id uint) *uint {
	if id == 0 {
		return nil
	}
	return &id
}
