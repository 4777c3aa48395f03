// Package notify is the observability channel for index failures. Every
// failure is logged, counted, written to the store's failure outbox for
// replay, and fanned out to configured alert sinks. Nothing here returns an
// error to the mutation that triggered the failure.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/zulandar/almanac/internal/config"
	"github.com/zulandar/almanac/internal/models"
	"github.com/zulandar/almanac/internal/search"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"gorm.io/gorm"
)

// Alert is the payload handed to sinks.
type Alert struct {
	Kind     string
	EntityID uint
	Op       string
	Error    string
	Attempts int
	At       time.Time
}

// Sink delivers alerts to one destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, a Alert) error
}

// Channel implements search.Reporter.
type Channel struct {
	db       *gorm.DB
	sinks    []Sink
	failures metric.Int64Counter
}

// New returns a Channel recording failures in db and alerting sinks.
func New(db *gorm.DB, sinks ...Sink) *Channel {
	counter, err := otel.Meter("github.com/zulandar/almanac/notify").Int64Counter(
		"almanac.index.failures",
		metric.WithDescription("Search index calls that failed after their store mutation succeeded."),
	)
	if err != nil {
		log.Printf("notify: create failure counter: %v", err)
	}
	return &Channel{db: db, sinks: sinks, failures: counter}
}

// FromConfig builds a Channel with the sinks enabled in cfg.
func FromConfig(db *gorm.DB, cfg config.AlertsConfig) (*Channel, error) {
	var sinks []Sink
	if cfg.Command != "" {
		sinks = append(sinks, CommandSink{Template: cfg.Command})
	}
	if cfg.SlackWebhook != "" {
		sinks = append(sinks, NewSlackSink(cfg.SlackWebhook))
	}
	if cfg.DiscordWebhook != "" {
		d, err := NewDiscordSink(cfg.DiscordWebhook)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, d)
	}
	return New(db, sinks...), nil
}

// ReportFailure implements search.Reporter.
func (c *Channel) ReportFailure(ctx context.Context, f search.Failure) {
	log.Printf("notify: index %s %s failed: %v", f.Op, f.Ref, f.Err)

	if c.failures != nil {
		c.failures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", string(f.Ref.Kind)),
			attribute.String("op", f.Op),
		))
	}

	row, err := c.record(ctx, f)
	if err != nil {
		log.Printf("notify: record failure for %s: %v", f.Ref, err)
	}

	a := Alert{
		Kind:     string(f.Ref.Kind),
		EntityID: f.Ref.ID,
		Op:       f.Op,
		Error:    f.Err.Error(),
		Attempts: 1,
		At:       time.Now(),
	}
	if row != nil {
		a.Attempts = row.Attempts
	}
	for _, s := range c.sinks {
		if err := s.Send(ctx, a); err != nil {
			log.Printf("notify: %s alert failed: %v", s.Name(), err)
		}
	}
}

// record writes the failure to the outbox. An unresolved row for the same
// entity is reused so replay only sees the latest operation.
func (c *Channel) record(ctx context.Context, f search.Failure) (*models.IndexFailure, error) {
	if c.db == nil {
		return nil, nil
	}
	db := c.db.WithContext(ctx)

	var row models.IndexFailure
	err := db.Where("kind = ? AND entity_id = ? AND resolved = ?", string(f.Ref.Kind), f.Ref.ID, false).
		First(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		row = models.IndexFailure{
			Kind:     string(f.Ref.Kind),
			EntityID: f.Ref.ID,
			Op:       f.Op,
			Error:    f.Err.Error(),
			Attempts: 1,
		}
		if err := db.Create(&row).Error; err != nil {
			return nil, fmt.Errorf("create: %w", err)
		}
		return &row, nil
	case err != nil:
		return nil, fmt.Errorf("lookup: %w", err)
	}

	row.Op = f.Op
	row.Error = f.Err.Error()
	row.Attempts++
	if err := db.Model(&row).Updates(map[string]interface{}{
		"op":       row.Op,
		"error":    row.Error,
		"attempts": row.Attempts,
	}).Error; err != nil {
		return nil, fmt.Errorf("update: %w", err)
	}
	return &row, nil
}

// Pending returns unresolved failures, oldest first. A limit of zero
// returns all of them.
func Pending(db *gorm.DB, limit int) ([]models.IndexFailure, error) {
	q := db.Where("resolved = ?", false).Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.IndexFailure
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notify: pending failures: %w", err)
	}
	return rows, nil
}

// Resolve marks a failure as replayed.
func Resolve(db *gorm.DB, id uint) error {
	now := time.Now()
	result := db.Model(&models.IndexFailure{}).Where("id = ?", id).
		Updates(map[string]interface{}{"resolved": true, "resolved_at": now})
	if result.Error != nil {
		return fmt.Errorf("notify: resolve failure %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("notify: failure not found: %d", id)
	}
	return nil
}
