// Package config provides YAML-based configuration loading for Almanac.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Policies for an existing task-derived event when its task loses its due date.
const (
	ClearDueDateDelete = "delete"
	ClearDueDateKeep   = "keep"
)

// Config is the top-level Almanac configuration, loaded from almanac.yaml.
type Config struct {
	Owner           string                 `yaml:"owner"`
	Database        DatabaseConfig         `yaml:"database"`
	Search          SearchConfig           `yaml:"search"`
	Calendar        CalendarConfig         `yaml:"calendar"`
	CalendarSources []CalendarSourceConfig `yaml:"calendar_sources"`
	Reindex         ReindexConfig          `yaml:"reindex"`
	Alerts          AlertsConfig           `yaml:"alerts"`
	Log             LogConfig              `yaml:"log"`
	Dashboard       DashboardConfig        `yaml:"dashboard"`
}

// DatabaseConfig selects and locates the primary store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite or mysql
	Path   string `yaml:"path"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Name   string `yaml:"name"`
	User   string `yaml:"user"`
}

// SearchConfig locates the search index database. It is kept apart from
// the primary store so the two fail independently.
type SearchConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Name   string `yaml:"name"`
	User   string `yaml:"user"`
}

// CalendarConfig controls task-to-calendar projection and date buckets.
type CalendarConfig struct {
	DefaultSource string `yaml:"default_source"`
	ClearDueDate  string `yaml:"clear_due_date"`
	WeekStart     string `yaml:"week_start"`
	Timezone      string `yaml:"timezone"`
}

// CalendarSourceConfig seeds a calendar source row.
type CalendarSourceConfig struct {
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
}

// ReindexConfig schedules replay of failed index calls.
type ReindexConfig struct {
	Schedule  string `yaml:"schedule"`
	BatchSize int    `yaml:"batch_size"`
}

// AlertsConfig lists optional sinks for index failure alerts.
type AlertsConfig struct {
	Command        string `yaml:"command"`
	SlackWebhook   string `yaml:"slack_webhook"`
	DiscordWebhook string `yaml:"discord_webhook"`
}

// LogConfig enables a rotated log file.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// DashboardConfig holds HTTP API settings.
type DashboardConfig struct {
	Port int `yaml:"port"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "almanac.db"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Database.Name == "" && c.Owner != "" {
		c.Database.Name = "almanac_" + c.Owner
	}

	if c.Search.Driver == "" {
		c.Search.Driver = "sqlite"
	}
	if c.Search.Path == "" {
		c.Search.Path = "almanac-index.db"
	}
	if c.Search.Host == "" {
		c.Search.Host = c.Database.Host
	}
	if c.Search.Port == 0 {
		c.Search.Port = c.Database.Port
	}
	if c.Search.User == "" {
		c.Search.User = c.Database.User
	}
	if c.Search.Name == "" && c.Owner != "" {
		c.Search.Name = "almanac_" + c.Owner + "_index"
	}

	if c.Calendar.DefaultSource == "" {
		c.Calendar.DefaultSource = "Tasks"
	}
	if c.Calendar.ClearDueDate == "" {
		c.Calendar.ClearDueDate = ClearDueDateDelete
	}
	if c.Calendar.WeekStart == "" {
		c.Calendar.WeekStart = "monday"
	}
	if c.Calendar.Timezone == "" {
		c.Calendar.Timezone = "Local"
	}

	if c.Reindex.BatchSize == 0 {
		c.Reindex.BatchSize = 200
	}

	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 10
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 28
	}

	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Owner == "" {
		errs = append(errs, "owner is required")
	}
	if !validDriver(c.Database.Driver) {
		errs = append(errs, fmt.Sprintf("database.driver %q must be sqlite or mysql", c.Database.Driver))
	}
	if !validDriver(c.Search.Driver) {
		errs = append(errs, fmt.Sprintf("search.driver %q must be sqlite or mysql", c.Search.Driver))
	}
	if c.Database.Driver == "sqlite" && c.Search.Driver == "sqlite" && c.Database.Path == c.Search.Path {
		errs = append(errs, "search.path must differ from database.path")
	}
	switch c.Calendar.ClearDueDate {
	case ClearDueDateDelete, ClearDueDateKeep:
	default:
		errs = append(errs, fmt.Sprintf("calendar.clear_due_date %q must be delete or keep", c.Calendar.ClearDueDate))
	}
	if _, ok := parseWeekday(c.Calendar.WeekStart); !ok {
		errs = append(errs, fmt.Sprintf("calendar.week_start %q is not a weekday", c.Calendar.WeekStart))
	}
	if _, err := time.LoadLocation(c.Calendar.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("calendar.timezone %q: %v", c.Calendar.Timezone, err))
	}
	seen := make(map[string]bool)
	for i, s := range c.CalendarSources {
		if s.Name == "" {
			errs = append(errs, fmt.Sprintf("calendar_sources[%d].name is required", i))
			continue
		}
		if seen[s.Name] {
			errs = append(errs, fmt.Sprintf("calendar_sources[%d].name %q is duplicated", i, s.Name))
		}
		seen[s.Name] = true
	}
	if c.Reindex.BatchSize < 0 {
		errs = append(errs, "reindex.batch_size must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// WeekStartDay returns the configured first day of the week.
func (c *Config) WeekStartDay() time.Weekday {
	d, _ := parseWeekday(c.Calendar.WeekStart)
	return d
}

// Location returns the configured time zone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Calendar.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func validDriver(d string) bool {
	return d == "sqlite" || d == "mysql"
}

func parseWeekday(s string) (time.Weekday, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sunday", "sun":
		return time.Sunday, true
	case "monday", "mon":
		return time.Monday, true
	case "tuesday", "tue":
		return time.Tuesday, true
	case "wednesday", "wed":
		return time.Wednesday, true
	case "thursday", "thu":
		return time.Thursday, true
	case "friday", "fri":
		return time.Friday, true
	case "saturday", "sat":
		return time.Saturday, true
	}
	return time.Monday, false
}
