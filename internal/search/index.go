package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/almanac/internal/errs"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Index is the document store the Synchronizer writes to.
type Index interface {
	// Upsert inserts d or overwrites the document with the same ref.
	Upsert(ctx context.Context, d Document) error
	// Delete removes the document for ref. A missing document is not an error.
	Delete(ctx context.Context, ref Ref) error
	// Get returns the document for ref, or an error wrapping errs.ErrNotFound.
	Get(ctx context.Context, ref Ref) (*Document, error)
	// Search returns documents matching every term of q.
	Search(ctx context.Context, q Query) ([]Document, error)
	// Count returns the number of documents of kind, or of all kinds when empty.
	Count(ctx context.Context, kind Kind) (int64, error)
	// Purge removes every document of kind, or every document when empty.
	Purge(ctx context.Context, kind Kind) error
}

// Query selects documents. Terms are whitespace separated and all must match
// one of title, body, secondary text or tags.
type Query struct {
	Text        string
	Kinds       []Kind
	OperationID uint
	Limit       int
}

// DefaultLimit caps Search results when Query.Limit is zero.
const DefaultLimit = 50

// GormIndex stores documents in a search_documents table of its own database.
type GormIndex struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormIndex wraps an index database. Call Migrate once before use.
func NewGormIndex(db *gorm.DB) *GormIndex {
	return &GormIndex{db: db, now: time.Now}
}

// Migrate creates or updates the documents table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Document{}); err != nil {
		return fmt.Errorf("search: auto-migrate: %w", err)
	}
	return nil
}

// Upsert implements Index.
func (g *GormIndex) Upsert(ctx context.Context, d Document) error {
	if d.Kind == "" || d.EntityID == 0 {
		return fmt.Errorf("search: upsert %s: %w", d.Ref(), errs.ErrInvalidArgument)
	}
	d.ID = 0
	d.IndexedAt = g.now().UTC()
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "kind"}, {Name: "entity_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "body", "secondary", "tags", "starts_at", "ends_at", "operation_id", "indexed_at",
		}),
	}).Create(&d).Error
	if err != nil {
		return fmt.Errorf("search: upsert %s: %w", d.Ref(), err)
	}
	return nil
}

// Delete implements Index.
func (g *GormIndex) Delete(ctx context.Context, ref Ref) error {
	err := g.db.WithContext(ctx).
		Where("kind = ? AND entity_id = ?", ref.Kind, ref.ID).
		Delete(&Document{}).Error
	if err != nil {
		return fmt.Errorf("search: delete %s: %w", ref, err)
	}
	return nil
}

// Get implements Index.
func (g *GormIndex) Get(ctx context.Context, ref Ref) (*Document, error) {
	var d Document
	err := g.db.WithContext(ctx).Where("kind = ? AND entity_id = ?", ref.Kind, ref.ID).First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("search: document %s: %w", ref, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("search: get %s: %w", ref, err)
	}
	return &d, nil
}

// Search implements Index. Documents whose title matches every term rank
// ahead of the rest; ties go to the most recently indexed. Ranking and the
// limit are applied in SQL.
func (g *GormIndex) Search(ctx context.Context, q Query) ([]Document, error) {
	tx := g.db.WithContext(ctx).Model(&Document{})
	if len(q.Kinds) > 0 {
		tx = tx.Where("kind IN ?", q.Kinds)
	}
	if q.OperationID != 0 {
		tx = tx.Where("operation_id = ?", q.OperationID)
	}
	terms := strings.Fields(q.Text)
	for _, term := range terms {
		pat := likePattern(term)
		tx = tx.Where(
			"(title LIKE ? ESCAPE '!' OR body LIKE ? ESCAPE '!' OR secondary LIKE ? ESCAPE '!' OR tags LIKE ? ESCAPE '!')",
			pat, pat, pat, pat,
		)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	var docs []Document
	if err := tx.Order(rankOrder(terms)).Limit(limit).Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("search: query %q: %w", q.Text, err)
	}
	return docs, nil
}

// rankOrder orders title matches first, then by recency.
func rankOrder(terms []string) clause.OrderBy {
	const recency = "indexed_at DESC, id DESC"
	if len(terms) == 0 {
		return clause.OrderBy{Expression: clause.Expr{SQL: recency, WithoutParentheses: true}}
	}
	conds := make([]string, len(terms))
	vars := make([]interface{}, len(terms))
	for i, term := range terms {
		conds[i] = "title LIKE ? ESCAPE '!'"
		vars[i] = likePattern(term)
	}
	return clause.OrderBy{Expression: clause.Expr{
		SQL:                "CASE WHEN " + strings.Join(conds, " AND ") + " THEN 0 ELSE 1 END, " + recency,
		Vars:               vars,
		WithoutParentheses: true,
	}}
}

// Count implements Index.
func (g *GormIndex) Count(ctx context.Context, kind Kind) (int64, error) {
	tx := g.db.WithContext(ctx).Model(&Document{})
	if kind != "" {
		tx = tx.Where("kind = ?", kind)
	}
	var n int64
	if err := tx.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("search: count %q: %w", kind, err)
	}
	return n, nil
}

// Purge implements Index.
func (g *GormIndex) Purge(ctx context.Context, kind Kind) error {
	tx := g.db.WithContext(ctx)
	if kind != "" {
		tx = tx.Where("kind = ?", kind)
	} else {
		tx = tx.Where("1 = 1")
	}
	if err := tx.Delete(&Document{}).Error; err != nil {
		return fmt.Errorf("search: purge %q: %w", kind, err)
	}
	return nil
}

// likePattern wraps term for a LIKE match, escaping wildcards with '!'.
func likePattern(term string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return "%" + r.Replace(term) + "%"
}
