// Package bucket classifies due dates against a reference time into named
// filters (Overdue, Today, ThisWeek, ...). Every predicate is independent:
// callers pick one filter and ask whether a date satisfies it. The reference
// time is always passed in; nothing here reads the clock.
package bucket

import (
	"fmt"
	"strings"
	"time"
)

// Filter names one date-relative predicate.
type Filter string

// Filters.
const (
	Any        Filter = "any"
	Overdue    Filter = "overdue"
	Today      Filter = "today"
	Tomorrow   Filter = "tomorrow"
	ThisWeek   Filter = "this_week"
	ThisMonth  Filter = "this_month"
	NoDueDate  Filter = "no_due_date"
	HasDueDate Filter = "has_due_date"
)

// Filters lists every filter in display order.
var Filters = []Filter{Any, Overdue, Today, Tomorrow, ThisWeek, ThisMonth, NoDueDate, HasDueDate}

// ParseFilter resolves a user-supplied filter name. Case, dashes, spaces and
// underscores are ignored, so "This-Week" and "thisweek" both work. The
// empty string means Any.
func ParseFilter(s string) (Filter, error) {
	key := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	if key == "" {
		return Any, nil
	}
	for _, f := range Filters {
		if strings.ReplaceAll(string(f), "_", "") == key {
			return f, nil
		}
	}
	return "", fmt.Errorf("bucket: unknown filter %q", s)
}

// Subject is the slice of an entity the classifier looks at.
type Subject struct {
	At        *time.Time // due date or entry date; nil or zero means absent
	Completed bool       // terminal state; completed subjects are never overdue
}

// Classifier evaluates filters using a configurable week start and time zone.
// The zero value uses Sunday weeks in the reference time's location; use
// New for Monday weeks.
type Classifier struct {
	WeekStart time.Weekday
	Location  *time.Location
}

// New returns a Classifier with Monday weeks in the reference time's location.
func New() Classifier {
	return Classifier{WeekStart: time.Monday}
}

// Match reports whether s satisfies f at reference time now, using New().
func Match(f Filter, s Subject, now time.Time) bool {
	return New().Match(f, s, now)
}

// Match reports whether s satisfies f at reference time now. Unknown
// filters match nothing.
func (c Classifier) Match(f Filter, s Subject, now time.Time) bool {
	if f == Any {
		return true
	}
	at, ok := present(s.At)
	if f == NoDueDate {
		return !ok
	}
	if !ok {
		return false
	}

	loc := c.Location
	if loc == nil {
		loc = now.Location()
	}
	now = now.In(loc)
	at = at.In(loc)
	today := startOfDay(now)

	switch f {
	case HasDueDate:
		return true
	case Overdue:
		return !s.Completed && at.Before(now)
	case Today:
		return sameDay(at, now)
	case Tomorrow:
		return sameDay(at, today.AddDate(0, 0, 1))
	case ThisWeek:
		return within(at, today, c.endOfWeek(today))
	case ThisMonth:
		return within(at, today, endOfMonth(today))
	}
	return false
}

// Apply returns the items whose subject satisfies f at now, preserving order.
func Apply[T any](c Classifier, f Filter, items []T, subject func(T) Subject, now time.Time) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if c.Match(f, subject(it), now) {
			out = append(out, it)
		}
	}
	return out
}

// Classify returns every filter s satisfies at now, in Filters order.
func (c Classifier) Classify(s Subject, now time.Time) []Filter {
	var out []Filter
	for _, f := range Filters {
		if c.Match(f, s, now) {
			out = append(out, f)
		}
	}
	return out
}

func present(t *time.Time) (time.Time, bool) {
	if t == nil || t.IsZero() {
		return time.Time{}, false
	}
	return *t, true
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// within reports whether from <= t <= to.
func within(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}

// endOfWeek returns the last instant of the calendar week containing day.
func (c Classifier) endOfWeek(day time.Time) time.Time {
	offset := (int(day.Weekday()) - int(c.WeekStart) + 7) % 7
	nextStart := day.AddDate(0, 0, 7-offset)
	return nextStart.Add(-time.Nanosecond)
}

func endOfMonth(day time.Time) time.Time {
	y, m, _ := day.Date()
	return time.Date(y, m+1, 1, 0, 0, 0, 0, day.Location()).Add(-time.Nanosecond)
}
