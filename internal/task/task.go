// Package task provides task lifecycle operations. Every mutation writes the
// store first, then mirrors the task into the search index and its linked
// calendar event.
package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/almanac/internal/bucket"
	"github.com/zulandar/almanac/internal/calsync"
	"github.com/zulandar/almanac/internal/errs"
	"github.com/zulandar/almanac/internal/models"
	"github.com/zulandar/almanac/internal/search"
	"gorm.io/gorm"
)

// Service runs task mutations against the store, index and calendar.
type Service struct {
	DB       *gorm.DB
	Index    *search.Synchronizer
	Calendar *calsync.Engine
	Buckets  bucket.Classifier
}

// CreateOpts holds parameters for creating a new task.
type CreateOpts struct {
	Title        string
	Description  string
	OperationID  uint
	Status       models.TaskStatus // defaults to todo
	Priority     models.Priority   // defaults to medium
	DueDate      *time.Time
	Recurrence   string // cron expression or descriptor, e.g. "@weekly"
	ParentTaskID *uint
}

// UpdateOpts holds the fields to change. Nil fields are left alone.
type UpdateOpts struct {
	Title        *string
	Description  *string
	OperationID  *uint
	Status       *models.TaskStatus
	Priority     *models.Priority
	DueDate      *time.Time
	ClearDueDate bool
	Recurrence   *string
}

// ListFilters holds optional filters for listing tasks. Now is the
// reference time for Bucket and defaults to the current time.
type ListFilters struct {
	OperationID uint
	Status      models.TaskStatus
	Priority    models.Priority
	Bucket      bucket.Filter
	Now         time.Time
}

// Create validates opts, stores the task, indexes it and syncs its calendar
// event. Index failures are returned in the report; the task is created
// regardless.
func (s *Service) Create(ctx context.Context, opts CreateOpts) (*models.Task, search.Report, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return nil, search.Report{}, fmt.Errorf("task: title is required: %w", errs.ErrInvalidArgument)
	}
	if opts.OperationID == 0 {
		return nil, search.Report{}, fmt.Errorf("task: operation is required: %w", errs.ErrInvalidArgument)
	}
	if opts.Status == "" {
		opts.Status = models.TaskTodo
	}
	if opts.Priority == "" {
		opts.Priority = models.PriorityMedium
	}
	if !opts.Status.Valid() {
		return nil, search.Report{}, fmt.Errorf("task: invalid status %q: %w", opts.Status, errs.ErrInvalidArgument)
	}
	if !opts.Priority.Valid() {
		return nil, search.Report{}, fmt.Errorf("task: invalid priority %q: %w", opts.Priority, errs.ErrInvalidArgument)
	}
	if _, err := ParseRecurrence(opts.Recurrence); err != nil {
		return nil, search.Report{}, err
	}

	db := s.DB.WithContext(ctx)
	if err := exists(db, &models.Operation{}, opts.OperationID, "operation"); err != nil {
		return nil, search.Report{}, err
	}
	if opts.ParentTaskID != nil {
		if err := exists(db, &models.Task{}, *opts.ParentTaskID, "parent task"); err != nil {
			return nil, search.Report{}, err
		}
	}

	t := models.Task{
		Title:               opts.Title,
		Description:         opts.Description,
		OperationID:         opts.OperationID,
		Status:              opts.Status,
		Priority:            opts.Priority,
		DueDate:             models.UTC(opts.DueDate),
		Recurrence:          strings.TrimSpace(opts.Recurrence),
		ParentTaskID:        opts.ParentTaskID,
		IsRecurringInstance: opts.ParentTaskID != nil,
	}
	if t.Status == models.TaskDone {
		now := time.Now().UTC()
		t.CompletedAt = &now
	}
	if err := db.Create(&t).Error; err != nil {
		return nil, search.Report{}, fmt.Errorf("task: create: %w", err)
	}

	report, err := s.mirror(ctx, &t, false)
	return &t, report, err
}

// Get retrieves a task by ID.
func (s *Service) Get(ctx context.Context, id uint) (*models.Task, error) {
	if id == 0 {
		return nil, fmt.Errorf("task: id is required: %w", errs.ErrInvalidArgument)
	}
	var t models.Task
	if err := s.DB.WithContext(ctx).First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("task: %d: %w: %w", id, errs.ErrNotFound, err)
		}
		return nil, fmt.Errorf("task: get %d: %w", id, err)
	}
	return &t, nil
}

// Update applies opts to the task, re-indexes it and syncs its calendar
// event. Moving into or out of done sets or clears CompletedAt.
func (s *Service) Update(ctx context.Context, id uint, opts UpdateOpts) (*models.Task, search.Report, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, search.Report{}, err
	}

	if opts.Title != nil {
		if strings.TrimSpace(*opts.Title) == "" {
			return nil, search.Report{}, fmt.Errorf("task: title is required: %w", errs.ErrInvalidArgument)
		}
		t.Title = *opts.Title
	}
	if opts.Description != nil {
		t.Description = *opts.Description
	}
	if opts.OperationID != nil && *opts.OperationID != t.OperationID {
		if err := exists(s.DB.WithContext(ctx), &models.Operation{}, *opts.OperationID, "operation"); err != nil {
			return nil, search.Report{}, err
		}
		t.OperationID = *opts.OperationID
	}
	if opts.Priority != nil {
		if !opts.Priority.Valid() {
			return nil, search.Report{}, fmt.Errorf("task: invalid priority %q: %w", *opts.Priority, errs.ErrInvalidArgument)
		}
		t.Priority = *opts.Priority
	}
	if opts.Status != nil {
		if !opts.Status.Valid() {
			return nil, search.Report{}, fmt.Errorf("task: invalid status %q: %w", *opts.Status, errs.ErrInvalidArgument)
		}
		setStatus(t, *opts.Status, time.Now().UTC())
	}
	if opts.Recurrence != nil {
		if _, err := ParseRecurrence(*opts.Recurrence); err != nil {
			return nil, search.Report{}, err
		}
		t.Recurrence = strings.TrimSpace(*opts.Recurrence)
	}
	cleared := false
	switch {
	case opts.ClearDueDate:
		cleared = t.DueDate != nil
		t.DueDate = nil
	case opts.DueDate != nil:
		t.DueDate = models.UTC(opts.DueDate)
	}

	if err := s.DB.WithContext(ctx).Save(t).Error; err != nil {
		return nil, search.Report{}, fmt.Errorf("task: update %d: %w", id, err)
	}

	report, err := s.mirror(ctx, t, cleared)
	return t, report, err
}

// SetStatus moves a task to status.
func (s *Service) SetStatus(ctx context.Context, id uint, status models.TaskStatus) (*models.Task, search.Report, error) {
	return s.Update(ctx, id, UpdateOpts{Status: &status})
}

// Delete removes the task, its recurrence instances, their documents and
// their linked calendar events.
func (s *Service) Delete(ctx context.Context, id uint) (search.Report, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return search.Report{}, err
	}

	var instances []models.Task
	if err := s.DB.WithContext(ctx).Where("parent_task_id = ?", t.ID).Find(&instances).Error; err != nil {
		return search.Report{}, fmt.Errorf("task: instances of %d: %w", id, err)
	}

	var report search.Report
	for i := range instances {
		r, err := s.Delete(ctx, instances[i].ID)
		report = report.Merge(r)
		if err != nil {
			return report, err
		}
	}

	if err := s.DB.WithContext(ctx).Delete(&models.Task{}, t.ID).Error; err != nil {
		return report, fmt.Errorf("task: delete %d: %w", id, err)
	}
	report = report.Merge(s.Index.Remove(ctx, search.Ref{Kind: search.KindTask, ID: t.ID}))

	if s.Calendar != nil {
		r, err := s.Calendar.TaskDeleted(ctx, t.ID)
		report = report.Merge(r)
		if err != nil {
			return report, fmt.Errorf("task: delete %d: %w", id, err)
		}
	}
	return report, nil
}

// List returns tasks matching the given filters, soonest due first with
// undated tasks last.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]models.Task, error) {
	bf := filters.Bucket
	if bf == "" {
		bf = bucket.Any
	}

	q := s.DB.WithContext(ctx).Model(&models.Task{})
	if filters.OperationID != 0 {
		q = q.Where("operation_id = ?", filters.OperationID)
	}
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.Priority != "" {
		q = q.Where("priority = ?", filters.Priority)
	}
	switch bf {
	case bucket.NoDueDate:
		q = q.Where("due_date IS NULL")
	case bucket.Any:
	default:
		q = q.Where("due_date IS NOT NULL")
	}

	var tasks []models.Task
	if err := q.Order("CASE WHEN due_date IS NULL THEN 1 ELSE 0 END, due_date ASC, id ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("task: list: %w", err)
	}

	now := filters.Now
	if now.IsZero() {
		now = time.Now()
	}
	return bucket.Apply(s.Buckets, bf, tasks, Subject, now), nil
}

// FindByStatus returns every task with status.
func (s *Service) FindByStatus(ctx context.Context, status models.TaskStatus) ([]models.Task, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("task: invalid status %q: %w", status, errs.ErrInvalidArgument)
	}
	return s.List(ctx, ListFilters{Status: status})
}

// CompleteAndAdvance marks the task done. When the task is a recurrence
// template or an instance of one, the next instance is created with its due
// date at the rule's next fire time after the completed due date and now.
// next is nil for non-recurring tasks and for tasks that were already done,
// so repeating the call never spawns a second instance.
func (s *Service) CompleteAndAdvance(ctx context.Context, id uint, now time.Time) (done, next *models.Task, report search.Report, err error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, report, err
	}
	if current.IsDone() {
		return current, nil, report, nil
	}

	done, report, err = s.SetStatus(ctx, id, models.TaskDone)
	if err != nil {
		return nil, nil, report, err
	}

	tmpl, err := s.template(ctx, done)
	if err != nil || tmpl == nil {
		return done, nil, report, err
	}

	from := now
	if done.DueDate != nil {
		from = *done.DueDate
	}
	if loc := s.Buckets.Location; loc != nil {
		from, now = from.In(loc), now.In(loc)
	}
	due, err := NextOccurrence(tmpl.Recurrence, from, now)
	if err != nil {
		return done, nil, report, err
	}

	parent := tmpl.ID
	next, r, err := s.Create(ctx, CreateOpts{
		Title:        tmpl.Title,
		Description:  tmpl.Description,
		OperationID:  tmpl.OperationID,
		Priority:     tmpl.Priority,
		DueDate:      &due,
		ParentTaskID: &parent,
	})
	return done, next, report.Merge(r), err
}

// Subject maps a task to its bucket classifier input.
func Subject(t models.Task) bucket.Subject {
	return bucket.Subject{At: t.DueDate, Completed: t.IsDone()}
}

// template returns the recurrence template governing t, or nil.
func (s *Service) template(ctx context.Context, t *models.Task) (*models.Task, error) {
	if t.IsTemplate() {
		return t, nil
	}
	if !t.IsRecurringInstance || t.ParentTaskID == nil {
		return nil, nil
	}
	parent, err := s.Get(ctx, *t.ParentTaskID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if parent.Recurrence == "" {
		return nil, nil
	}
	return parent, nil
}

// mirror indexes t and syncs its calendar event. Calendar store errors are
// returned; the task itself is already saved.
func (s *Service) mirror(ctx context.Context, t *models.Task, dueCleared bool) (search.Report, error) {
	report := s.Index.Index(ctx, search.FromTask(t))
	if s.Calendar == nil {
		return report, nil
	}

	var (
		res calsync.Result
		err error
	)
	if dueCleared {
		res, err = s.Calendar.DueDateCleared(ctx, t.ID)
	} else {
		res, err = s.Calendar.SyncTask(ctx, t.ID)
	}
	report = report.Merge(res.Report)
	if err != nil {
		return report, fmt.Errorf("task: sync calendar for %d: %w", t.ID, err)
	}
	return report, nil
}

func setStatus(t *models.Task, status models.TaskStatus, now time.Time) {
	if status == t.Status {
		return
	}
	t.Status = status
	if status == models.TaskDone {
		t.CompletedAt = &now
	} else {
		t.CompletedAt = nil
	}
}

func exists(db *gorm.DB, model interface{}, id uint, what string) error {
	var n int64
	if err := db.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("task: check %s %d: %w", what, id, err)
	}
	if n == 0 {
		return fmt.Errorf("task: %s %d: %w", what, id, errs.ErrNotFound)
	}
	return nil
}
