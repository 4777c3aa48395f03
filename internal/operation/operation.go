// Package operation provides operation lifecycle operations. Deleting an
// operation cascades to its tasks, wiki pages and calendar events through
// their own services so every dependent leaves the index too.
package operation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/almanac/internal/errs"
	"github.com/zulandar/almanac/internal/event"
	"github.com/zulandar/almanac/internal/models"
	"github.com/zulandar/almanac/internal/search"
	"github.com/zulandar/almanac/internal/task"
	"github.com/zulandar/almanac/internal/wiki"
	"gorm.io/gorm"
)

// Service runs operation mutations and cascades deletes.
type Service struct {
	DB     *gorm.DB
	Index  *search.Synchronizer
	Tasks  *task.Service
	Events *event.Service
	Wikis  *wiki.Service
}

// CreateOpts holds parameters for creating an operation.
type CreateOpts struct {
	Name     string
	Purpose  string
	Priority models.Priority // defaults to medium
	Status   string          // defaults to active
	DueDate  *time.Time
}

// UpdateOpts holds the fields to change. Nil fields are left alone.
type UpdateOpts struct {
	Name         *string
	Purpose      *string
	Priority     *models.Priority
	Status       *string
	DueDate      *time.Time
	ClearDueDate bool
}

// ValidStatuses lists the operation statuses.
var ValidStatuses = []string{
	models.OperationPlanned,
	models.OperationActive,
	models.OperationCompleted,
	models.OperationCancelled,
}

// Create stores a new operation and indexes it.
func (s *Service) Create(ctx context.Context, opts CreateOpts) (*models.Operation, search.Report, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return nil, search.Report{}, fmt.Errorf("operation: name is required: %w", errs.ErrInvalidArgument)
	}
	if opts.Priority == "" {
		opts.Priority = models.PriorityMedium
	}
	if opts.Status == "" {
		opts.Status = models.OperationActive
	}
	if err := validate(opts.Priority, opts.Status); err != nil {
		return nil, search.Report{}, err
	}

	op := models.Operation{
		Name:     opts.Name,
		Purpose:  opts.Purpose,
		Priority: opts.Priority,
		Status:   opts.Status,
		DueDate:  models.UTC(opts.DueDate),
	}
	if err := s.DB.WithContext(ctx).Create(&op).Error; err != nil {
		return nil, search.Report{}, fmt.Errorf("operation: create: %w", err)
	}
	return &op, s.Index.Index(ctx, search.FromOperation(&op)), nil
}

// Get retrieves an operation by ID.
func (s *Service) Get(ctx context.Context, id uint) (*models.Operation, error) {
	if id == 0 {
		return nil, fmt.Errorf("operation: id is required: %w", errs.ErrInvalidArgument)
	}
	var op models.Operation
	if err := s.DB.WithContext(ctx).First(&op, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("operation: %d: %w: %w", id, errs.ErrNotFound, err)
		}
		return nil, fmt.Errorf("operation: get %d: %w", id, err)
	}
	return &op, nil
}

// List returns operations, optionally limited to one status, by name.
func (s *Service) List(ctx context.Context, status string) ([]models.Operation, error) {
	q := s.DB.WithContext(ctx).Model(&models.Operation{})
	if status != "" {
		if !validStatus(status) {
			return nil, fmt.Errorf("operation: invalid status %q: %w", status, errs.ErrInvalidArgument)
		}
		q = q.Where("status = ?", status)
	}
	var ops []models.Operation
	if err := q.Order("name ASC, id ASC").Find(&ops).Error; err != nil {
		return nil, fmt.Errorf("operation: list: %w", err)
	}
	return ops, nil
}

// Update applies opts to the operation and re-indexes it.
func (s *Service) Update(ctx context.Context, id uint, opts UpdateOpts) (*models.Operation, search.Report, error) {
	op, err := s.Get(ctx, id)
	if err != nil {
		return nil, search.Report{}, err
	}
	if opts.Name != nil {
		if strings.TrimSpace(*opts.Name) == "" {
			return nil, search.Report{}, fmt.Errorf("operation: name is required: %w", errs.ErrInvalidArgument)
		}
		op.Name = *opts.Name
	}
	if opts.Purpose != nil {
		op.Purpose = *opts.Purpose
	}
	if opts.Priority != nil {
		op.Priority = *opts.Priority
	}
	if opts.Status != nil {
		op.Status = *opts.Status
	}
	switch {
	case opts.ClearDueDate:
		op.DueDate = nil
	case opts.DueDate != nil:
		op.DueDate = models.UTC(opts.DueDate)
	}
	if err := validate(op.Priority, op.Status); err != nil {
		return nil, search.Report{}, err
	}
	if err := s.DB.WithContext(ctx).Save(op).Error; err != nil {
		return nil, search.Report{}, fmt.Errorf("operation: update %d: %w", id, err)
	}
	return op, s.Index.Index(ctx, search.FromOperation(op)), nil
}

// Complete marks the operation completed and records its outcome.
func (s *Service) Complete(ctx context.Context, id uint, outcome string) (*models.Operation, search.Report, error) {
	op, err := s.Get(ctx, id)
	if err != nil {
		return nil, search.Report{}, err
	}
	op.Status = models.OperationCompleted
	op.Outcome = &outcome
	if err := s.DB.WithContext(ctx).Save(op).Error; err != nil {
		return nil, search.Report{}, fmt.Errorf("operation: complete %d: %w", id, err)
	}
	return op, s.Index.Index(ctx, search.FromOperation(op)), nil
}

// Delete removes the operation with its tasks, wiki pages and events. Each
// dependent is deleted through its own service, so a failure partway leaves
// the operation and its remaining dependents in place.
func (s *Service) Delete(ctx context.Context, id uint) (search.Report, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return search.Report{}, err
	}
	db := s.DB.WithContext(ctx)
	var report search.Report

	var taskIDs []uint
	if err := db.Model(&models.Task{}).Where("operation_id = ?", id).Order("id ASC").Pluck("id", &taskIDs).Error; err != nil {
		return report, fmt.Errorf("operation: tasks of %d: %w", id, err)
	}
	for _, tid := range taskIDs {
		r, err := s.Tasks.Delete(ctx, tid)
		report = report.Merge(r)
		// instances go with their template
		if err != nil && !errors.Is(err, errs.ErrNotFound) {
			return report, fmt.Errorf("operation: delete %d: %w", id, err)
		}
	}

	var pageIDs []uint
	if err := db.Model(&models.WikiPage{}).Where("operation_id = ?", id).Pluck("id", &pageIDs).Error; err != nil {
		return report, fmt.Errorf("operation: wiki pages of %d: %w", id, err)
	}
	for _, pid := range pageIDs {
		r, err := s.Wikis.Delete(ctx, pid)
		report = report.Merge(r)
		if err != nil {
			return report, fmt.Errorf("operation: delete %d: %w", id, err)
		}
	}

	var eventIDs []uint
	if err := db.Model(&models.CalendarEvent{}).Where("operation_id = ?", id).Pluck("id", &eventIDs).Error; err != nil {
		return report, fmt.Errorf("operation: events of %d: %w", id, err)
	}
	for _, eid := range eventIDs {
		r, err := s.Events.Delete(ctx, eid)
		report = report.Merge(r)
		if err != nil {
			return report, fmt.Errorf("operation: delete %d: %w", id, err)
		}
	}

	if err := db.Delete(&models.Operation{}, id).Error; err != nil {
		return report, fmt.Errorf("operation: delete %d: %w", id, err)
	}
	return report.Merge(s.Index.Remove(ctx, search.Ref{Kind: search.KindOperation, ID: id})), nil
}

func validate(p models.Priority, status string) error {
	if !p.Valid() {
		return fmt.Errorf("operation: invalid priority %q: %w", p, errs.ErrInvalidArgument)
	}
	if !validStatus(status) {
		return fmt.Errorf("operation: invalid status %q: %w", status, errs.ErrInvalidArgument)
	}
	return nil
}

func validStatus(status string) bool {
	for _, s := range ValidStatuses {
		if s == status {
			return true
		}
	}
	return false
}
