package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/zulandar/almanac/internal/search"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

// printWarnings writes one line per index failure. The mutation itself
// succeeded, so these never change the exit code.
func printWarnings(w io.Writer, report search.Report) {
	for _, msg := range report.Warnings() {
		fmt.Fprintf(w, "warning: %s\n", msg)
	}
}

// parseWhen accepts RFC 3339, "YYYY-MM-DD HH:MM" or "YYYY-MM-DD" in loc.
func parseWhen(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{dateTimeLayout, dateLayout} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD, YYYY-MM-DD HH:MM or RFC 3339)", s)
}

// optionalWhen parses s when non-empty.
func optionalWhen(s string, loc *time.Location) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseWhen(s, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseIDArg(s string) (uint, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint(n), nil
}

func formatDate(t *time.Time, loc *time.Location) string {
	if t == nil {
		return "-"
	}
	return t.In(loc).Format(dateTimeLayout)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
