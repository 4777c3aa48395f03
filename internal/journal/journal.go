// Package journal provides journal entry operations.
package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/almanac/internal/errs"
	"github.com/zulandar/almanac/internal/models"
	"github.com/zulandar/almanac/internal/search"
	"gorm.io/gorm"
)

// Service runs journal mutations against the store and index.
type Service struct {
	DB    *gorm.DB
	Index *search.Synchronizer
}

// CreateOpts holds parameters for creating an entry. A zero Date uses the
// current time.
type CreateOpts struct {
	Title   string
	Content string
	Date    time.Time
}

// UpdateOpts holds the fields to change. Nil fields are left alone.
type UpdateOpts struct {
	Title   *string
	Content *string
	Date    *time.Time
}

// Create stores a new entry and indexes it.
func (s *Service) Create(ctx context.Context, opts CreateOpts) (*models.JournalEntry, search.Report, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return nil, search.Report{}, fmt.Errorf("journal: title is required: %w", errs.ErrInvalidArgument)
	}
	if opts.Date.IsZero() {
		opts.Date = time.Now()
	}
	entry := models.JournalEntry{Title: opts.Title, Content: opts.Content, Date: opts.Date.UTC()}
	if err := s.DB.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, search.Report{}, fmt.Errorf("journal: create: %w", err)
	}
	return &entry, s.Index.Index(ctx, search.FromJournal(&entry)), nil
}

// Get retrieves an entry by ID.
func (s *Service) Get(ctx context.Context, id uint) (*models.JournalEntry, error) {
	if id == 0 {
		return nil, fmt.Errorf("journal: id is required: %w", errs.ErrInvalidArgument)
	}
	var entry models.JournalEntry
	if err := s.DB.WithContext(ctx).First(&entry, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("journal: %d: %w: %w", id, errs.ErrNotFound, err)
		}
		return nil, fmt.Errorf("journal: get %d: %w", id, err)
	}
	return &entry, nil
}

// Update applies opts to the entry and re-indexes it.
func (s *Service) Update(ctx context.Context, id uint, opts UpdateOpts) (*models.JournalEntry, search.Report, error) {
	entry, err := s.Get(ctx, id)
	if err != nil {
		return nil, search.Report{}, err
	}
	if opts.Title != nil {
		if strings.TrimSpace(*opts.Title) == "" {
			return nil, search.Report{}, fmt.Errorf("journal: title is required: %w", errs.ErrInvalidArgument)
		}
		entry.Title = *opts.Title
	}
	if opts.Content != nil {
		entry.Content = *opts.Content
	}
	if opts.Date != nil {
		if opts.Date.IsZero() {
			return nil, search.Report{}, fmt.Errorf("journal: date is required: %w", errs.ErrInvalidArgument)
		}
		entry.Date = opts.Date.UTC()
	}
	if err := s.DB.WithContext(ctx).Save(entry).Error; err != nil {
		return nil, search.Report{}, fmt.Errorf("journal: update %d: %w", id, err)
	}
	return entry, s.Index.Index(ctx, search.FromJournal(entry)), nil
}

// Delete removes the entry and its document.
func (s *Service) Delete(ctx context.Context, id uint) (search.Report, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return search.Report{}, err
	}
	if err := s.DB.WithContext(ctx).Delete(&models.JournalEntry{}, id).Error; err != nil {
		return search.Report{}, fmt.Errorf("journal: delete %d: %w", id, err)
	}
	return s.Index.Remove(ctx, search.Ref{Kind: search.KindJournal, ID: id}), nil
}

// ListRange returns entries dated within [from, to], oldest first.
func (s *Service) ListRange(ctx context.Context, from, to time.Time) ([]models.JournalEntry, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("journal: range ends before it starts: %w", errs.ErrInvalidArgument)
	}
	from, to = from.UTC(), to.UTC()
	var entries []models.JournalEntry
	if err := s.DB.WithContext(ctx).Where("date >= ? AND date <= ?", from, to).Order("date ASC, id ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("journal: list range: %w", err)
	}
	return entries, nil
}
