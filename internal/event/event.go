// Package event provides calendar event operations. Events linked to a task
// are normally written by the calsync engine; this package handles the rest.
package event

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/almanac/internal/calsync"
	"github.com/zulandar/almanac/internal/errs"
	"github.com/zulandar/almanac/internal/models"
	"github.com/zulandar/almanac/internal/search"
	"gorm.io/gorm"
)

// Service runs event mutations against the store and index.
type Service struct {
	DB       *gorm.DB
	Index    *search.Synchronizer
	Calendar *calsync.Engine
}

// CreateOpts holds parameters for creating an event. A zero End means the
// event ends when it starts; a zero CalendarSourceID uses the default source.
type CreateOpts struct {
	Title            string
	Description      string
	Start            time.Time
	End              time.Time
	Location         string
	AllDay           bool
	OperationID      uint
	CalendarSourceID uint
}

// UpdateOpts holds the fields to change. Nil fields are left alone.
type UpdateOpts struct {
	Title       *string
	Description *string
	Start       *time.Time
	End         *time.Time
	Location    *string
	AllDay      *bool
	OperationID *uint
}

// Create stores a new event and indexes it.
func (s *Service) Create(ctx context.Context, opts CreateOpts) (*models.CalendarEvent, search.Report, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return nil, search.Report{}, fmt.Errorf("event: title is required: %w", errs.ErrInvalidArgument)
	}
	if opts.Start.IsZero() {
		return nil, search.Report{}, fmt.Errorf("event: start is required: %w", errs.ErrInvalidArgument)
	}
	if opts.End.IsZero() {
		opts.End = opts.Start
	}
	opts.Start, opts.End = opts.Start.UTC(), opts.End.UTC()
	if err := checkRange(opts.Start, opts.End); err != nil {
		return nil, search.Report{}, err
	}

	sourceID := opts.CalendarSourceID
	if sourceID == 0 {
		id, err := s.Calendar.DefaultSource(ctx)
		if err != nil {
			return nil, search.Report{}, fmt.Errorf("event: %w", err)
		}
		sourceID = id
	}

	ev := models.CalendarEvent{
		UID:              uuid.NewString(),
		Title:            opts.Title,
		Description:      opts.Description,
		Start:            opts.Start,
		End:              opts.End,
		Location:         opts.Location,
		AllDay:           opts.AllDay,
		OperationID:      opts.OperationID,
		CalendarSourceID: sourceID,
	}
	if err := s.DB.WithContext(ctx).Create(&ev).Error; err != nil {
		return nil, search.Report{}, fmt.Errorf("event: create: %w", err)
	}
	return &ev, s.Index.Index(ctx, search.FromEvent(&ev)), nil
}

// Get retrieves an event by ID.
func (s *Service) Get(ctx context.Context, id uint) (*models.CalendarEvent, error) {
	if id == 0 {
		return nil, fmt.Errorf("event: id is required: %w", errs.ErrInvalidArgument)
	}
	var ev models.CalendarEvent
	if err := s.DB.WithContext(ctx).First(&ev, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("event: %d: %w: %w", id, errs.ErrNotFound, err)
		}
		return nil, fmt.Errorf("event: get %d: %w", id, err)
	}
	return &ev, nil
}

// Update applies opts to the event and re-indexes it.
func (s *Service) Update(ctx context.Context, id uint, opts UpdateOpts) (*models.CalendarEvent, search.Report, error) {
	ev, err := s.Get(ctx, id)
	if err != nil {
		return nil, search.Report{}, err
	}
	if opts.Title != nil {
		if strings.TrimSpace(*opts.Title) == "" {
			return nil, search.Report{}, fmt.Errorf("event: title is required: %w", errs.ErrInvalidArgument)
		}
		ev.Title = *opts.Title
	}
	if opts.Description != nil {
		ev.Description = *opts.Description
	}
	if opts.Start != nil {
		ev.Start = *opts.Start
	}
	if opts.End != nil {
		ev.End = *opts.End
	}
	if opts.Location != nil {
		ev.Location = *opts.Location
	}
	if opts.AllDay != nil {
		ev.AllDay = *opts.AllDay
	}
	if opts.OperationID != nil {
		ev.OperationID = *opts.OperationID
	}
	if err := checkRange(ev.Start, ev.End); err != nil {
		return nil, search.Report{}, err
	}
	ev.Start, ev.End = ev.Start.UTC(), ev.End.UTC()

	if err := s.DB.WithContext(ctx).Save(ev).Error; err != nil {
		return nil, search.Report{}, fmt.Errorf("event: update %d: %w", id, err)
	}
	return ev, s.Index.Index(ctx, search.FromEvent(ev)), nil
}

// Delete removes the event and its document.
func (s *Service) Delete(ctx context.Context, id uint) (search.Report, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return search.Report{}, err
	}
	if err := s.DB.WithContext(ctx).Delete(&models.CalendarEvent{}, id).Error; err != nil {
		return search.Report{}, fmt.Errorf("event: delete %d: %w", id, err)
	}
	return s.Index.Remove(ctx, search.Ref{Kind: search.KindEvent, ID: id}), nil
}

// ListRange returns events overlapping [from, to], earliest first.
func (s *Service) ListRange(ctx context.Context, from, to time.Time) ([]models.CalendarEvent, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("event: range ends before it starts: %w", errs.ErrInvalidArgument)
	}
	from, to = from.UTC(), to.UTC()
	var events []models.CalendarEvent
	err := s.DB.WithContext(ctx).
		Where("starts_at <= ? AND ends_at >= ?", to, from).
		Order("starts_at ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("event: list range: %w", err)
	}
	return events, nil
}

// ListByOperation returns the events of an operation, earliest first.
func (s *Service) ListByOperation(ctx context.Context, operationID uint) ([]models.CalendarEvent, error) {
	var events []models.CalendarEvent
	err := s.DB.WithContext(ctx).
		Where("operation_id = ?", operationID).
		Order("starts_at ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("event: list operation %d: %w", operationID, err)
	}
	return events, nil
}

// FindByTaskID returns the event linked to taskID, or nil when there is none.
func (s *Service) FindByTaskID(ctx context.Context, taskID uint) (*models.CalendarEvent, error) {
	events, err := s.Calendar.EventsForTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("event: %w", err)
	}
	if len(events) == 0 {
		return nil, nil
	}
	return &events[0], nil
}

func checkRange(start, end time.Time) error {
	if end.Before(start) {
		return fmt.Errorf("event: end %s before start %s: %w",
			end.Format(time.RFC3339), start.Format(time.RFC3339), errs.ErrInvalidArgument)
	}
	return nil
}
