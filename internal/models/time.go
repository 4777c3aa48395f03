package models

import "time"

// UTC returns a copy of t in UTC, or nil. Stored times are kept in UTC so
// that SQLite, which compares them as text, orders them by instant.
func UTC(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
