package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/almanac/internal/errs"
)

// recurrenceParser accepts 5-field cron expressions and descriptors such as
// @daily, @weekly, @monthly and @every 72h.
var recurrenceParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseRecurrence validates a recurrence rule. An empty rule is valid and
// means the task does not recur.
func ParseRecurrence(rule string) (cron.Schedule, error) {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return nil, nil
	}
	sched, err := recurrenceParser.Parse(rule)
	if err != nil {
		return nil, fmt.Errorf("task: recurrence %q: %w: %v", rule, errs.ErrInvalidArgument, err)
	}
	return sched, nil
}

// NextOccurrence returns the first fire time of rule strictly after both
// from and now. from is usually the due date of the occurrence just done.
func NextOccurrence(rule string, from, now time.Time) (time.Time, error) {
	sched, err := ParseRecurrence(rule)
	if err != nil {
		return time.Time{}, err
	}
	if sched == nil {
		return time.Time{}, fmt.Errorf("task: empty recurrence: %w", errs.ErrInvalidArgument)
	}
	base := from
	if base.Before(now) {
		base = now
	}
	next := sched.Next(base)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("task: recurrence %q never fires after %s: %w",
			rule, base.Format(time.RFC3339), errs.ErrInvalidArgument)
	}
	return next, nil
}
