// Package wiki provides wiki page operations.
package wiki

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/almanac/internal/errs"
	"github.com/zulandar/almanac/internal/models"
	"github.com/zulandar/almanac/internal/search"
	"gorm.io/gorm"
)

// Service runs wiki page mutations against the store and index.
type Service struct {
	DB    *gorm.DB
	Index *search.Synchronizer
}

// CreateOpts holds parameters for creating a page.
type CreateOpts struct {
	Title       string
	Content     string
	Region      string
	OperationID uint
	Favorite    bool
}

// UpdateOpts holds the fields to change. Nil fields are left alone.
type UpdateOpts struct {
	Title       *string
	Content     *string
	Region      *string
	OperationID *uint
}

// Create stores a new page and indexes it.
func (s *Service) Create(ctx context.Context, opts CreateOpts) (*models.WikiPage, search.Report, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return nil, search.Report{}, fmt.Errorf("wiki: title is required: %w", errs.ErrInvalidArgument)
	}
	page := models.WikiPage{
		Title:       opts.Title,
		Content:     opts.Content,
		Region:      opts.Region,
		OperationID: opts.OperationID,
		Favorite:    opts.Favorite,
	}
	if err := s.DB.WithContext(ctx).Create(&page).Error; err != nil {
		return nil, search.Report{}, fmt.Errorf("wiki: create: %w", err)
	}
	return &page, s.Index.Index(ctx, search.FromWiki(&page)), nil
}

// Get retrieves a page by ID.
func (s *Service) Get(ctx context.Context, id uint) (*models.WikiPage, error) {
	if id == 0 {
		return nil, fmt.Errorf("wiki: id is required: %w", errs.ErrInvalidArgument)
	}
	var page models.WikiPage
	if err := s.DB.WithContext(ctx).First(&page, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("wiki: %d: %w: %w", id, errs.ErrNotFound, err)
		}
		return nil, fmt.Errorf("wiki: get %d: %w", id, err)
	}
	return &page, nil
}

// Update applies opts to the page and re-indexes it.
func (s *Service) Update(ctx context.Context, id uint, opts UpdateOpts) (*models.WikiPage, search.Report, error) {
	page, err := s.Get(ctx, id)
	if err != nil {
		return nil, search.Report{}, err
	}
	if opts.Title != nil {
		if strings.TrimSpace(*opts.Title) == "" {
			return nil, search.Report{}, fmt.Errorf("wiki: title is required: %w", errs.ErrInvalidArgument)
		}
		page.Title = *opts.Title
	}
	if opts.Content != nil {
		page.Content = *opts.Content
	}
	if opts.Region != nil {
		page.Region = *opts.Region
	}
	if opts.OperationID != nil {
		page.OperationID = *opts.OperationID
	}
	if err := s.DB.WithContext(ctx).Save(page).Error; err != nil {
		return nil, search.Report{}, fmt.Errorf("wiki: update %d: %w", id, err)
	}
	return page, s.Index.Index(ctx, search.FromWiki(page)), nil
}

// SetFavorite pins or unpins a page. The favorite flag is not indexed, so
// UpdatedAt is left alone and the document stays current.
func (s *Service) SetFavorite(ctx context.Context, id uint, favorite bool) (*models.WikiPage, error) {
	page, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Model(page).UpdateColumn("favorite", favorite).Error; err != nil {
		return nil, fmt.Errorf("wiki: set favorite %d: %w", id, err)
	}
	page.Favorite = favorite
	return page, nil
}

// Delete removes the page and its document.
func (s *Service) Delete(ctx context.Context, id uint) (search.Report, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return search.Report{}, err
	}
	if err := s.DB.WithContext(ctx).Delete(&models.WikiPage{}, id).Error; err != nil {
		return search.Report{}, fmt.Errorf("wiki: delete %d: %w", id, err)
	}
	return s.Index.Remove(ctx, search.Ref{Kind: search.KindWiki, ID: id}), nil
}

// ListByOperation returns the pages of an operation by title.
func (s *Service) ListByOperation(ctx context.Context, operationID uint) ([]models.WikiPage, error) {
	var pages []models.WikiPage
	if err := s.DB.WithContext(ctx).Where("operation_id = ?", operationID).Order("title ASC, id ASC").Find(&pages).Error; err != nil {
		return nil, fmt.Errorf("wiki: list operation %d: %w", operationID, err)
	}
	return pages, nil
}

// ListFavorites returns favorite pages, most recently updated first.
func (s *Service) ListFavorites(ctx context.Context) ([]models.WikiPage, error) {
	var pages []models.WikiPage
	if err := s.DB.WithContext(ctx).Where("favorite = ?", true).Order("updated_at DESC, id DESC").Find(&pages).Error; err != nil {
		return nil, fmt.Errorf("wiki: list favorites: %w", err)
	}
	return pages, nil
}
