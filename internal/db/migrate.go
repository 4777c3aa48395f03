package db

import (
	"errors"
	"fmt"

	"github.com/zulandar/almanac/internal/config"
	"github.com/zulandar/almanac/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all store models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Operation{},
		&models.Task{},
		&models.CalendarSource{},
		&models.CalendarEvent{},
		&models.WikiPage{},
		&models.JournalEntry{},
		&models.IndexFailure{},
		&models.ReindexJob{},
	}
}

// AutoMigrate creates or updates all store tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// StoreEndpoint maps the database section of the config to an Endpoint.
func StoreEndpoint(cfg *config.Config) Endpoint {
	d := cfg.Database
	return Endpoint{Driver: d.Driver, Path: d.Path, Host: d.Host, Port: d.Port, User: d.User, Name: d.Name}
}

// IndexEndpoint maps the search section of the config to an Endpoint.
func IndexEndpoint(cfg *config.Config) Endpoint {
	s := cfg.Search
	return Endpoint{Driver: s.Driver, Path: s.Path, Host: s.Host, Port: s.Port, User: s.User, Name: s.Name}
}

// SeedCalendarSources upserts CalendarSource rows from configuration and
// marks defaultName as the default source, creating it when unlisted.
func SeedCalendarSources(db *gorm.DB, sources []config.CalendarSourceConfig, defaultName string) error {
	listed := false
	for _, sc := range sources {
		src := models.CalendarSource{
			Name:      sc.Name,
			Color:     sc.Color,
			IsDefault: sc.Name == defaultName,
		}
		if src.IsDefault {
			listed = true
		}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"color", "is_default"}),
		}).Create(&src)
		if result.Error != nil {
			return fmt.Errorf("db: seed calendar source %q: %w", sc.Name, result.Error)
		}
	}

	if defaultName == "" {
		return nil
	}
	if !listed {
		var existing models.CalendarSource
		err := db.Where("name = ?", defaultName).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := db.Create(&models.CalendarSource{Name: defaultName, IsDefault: true}).Error; err != nil {
				return fmt.Errorf("db: seed default calendar source %q: %w", defaultName, err)
			}
		case err != nil:
			return fmt.Errorf("db: check default calendar source %q: %w", defaultName, err)
		}
	}
	if err := db.Model(&models.CalendarSource{}).Where("name = ?", defaultName).Update("is_default", true).Error; err != nil {
		return fmt.Errorf("db: mark default calendar source %q: %w", defaultName, err)
	}
	if err := db.Model(&models.CalendarSource{}).Where("name <> ?", defaultName).Update("is_default", false).Error; err != nil {
		return fmt.Errorf("db: clear other default calendar sources: %w", err)
	}
	return nil
}
