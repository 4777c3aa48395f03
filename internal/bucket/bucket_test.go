package bucket

import (
	"testing"
	"time"
)

// Wednesday, 4 June 2025, 10:00 UTC.
var refNow = time.Date(2025, 6, 4, 10, 0, 0, 0, time.UTC)

func at(y int, m time.Month, d, h, min int) *time.Time {
	t := time.Date(y, m, d, h, min, 0, 0, time.UTC)
	return &t
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		in   string
		want Filter
	}{
		{"", Any},
		{"any", Any},
		{"Overdue", Overdue},
		{"TODAY", Today},
		{"tomorrow", Tomorrow},
		{"this_week", ThisWeek},
		{"this-week", ThisWeek},
		{"ThisWeek", ThisWeek},
		{"this month", ThisMonth},
		{"no_due_date", NoDueDate},
		{"has-due-date", HasDueDate},
	}
	for _, tt := range tests {
		got, err := ParseFilter(tt.in)
		if err != nil {
			t.Errorf("ParseFilter(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFilter(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseFilter_Unknown(t *testing.T) {
	if _, err := ParseFilter("next_year"); err == nil {
		t.Error("expected error for unknown filter")
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		at     *time.Time
		done   bool
		want   bool
	}{
		{"any without date", Any, nil, false, true},
		{"any with date", Any, at(2020, 1, 1, 0, 0), true, true},

		{"no due date absent", NoDueDate, nil, false, true},
		{"no due date present", NoDueDate, at(2025, 6, 4, 12, 0), false, false},
		{"no due date zero value", NoDueDate, &time.Time{}, false, true},
		{"has due date present", HasDueDate, at(1999, 1, 1, 0, 0), false, true},
		{"has due date absent", HasDueDate, nil, false, false},

		{"overdue past open", Overdue, at(2025, 6, 3, 9, 0), false, true},
		{"overdue earlier today", Overdue, at(2025, 6, 4, 9, 59), false, true},
		{"overdue past done", Overdue, at(2025, 6, 3, 9, 0), true, false},
		{"overdue exactly now", Overdue, at(2025, 6, 4, 10, 0), false, false},
		{"overdue future", Overdue, at(2025, 6, 5, 0, 0), false, false},
		{"overdue absent", Overdue, nil, false, false},

		{"today morning", Today, at(2025, 6, 4, 0, 0), false, true},
		{"today late", Today, at(2025, 6, 4, 23, 59), false, true},
		{"today done still today", Today, at(2025, 6, 4, 8, 0), true, true},
		{"today yesterday", Today, at(2025, 6, 3, 23, 59), false, false},
		{"today within 24h but tomorrow", Today, at(2025, 6, 5, 1, 0), false, false},

		{"tomorrow start", Tomorrow, at(2025, 6, 5, 0, 0), false, true},
		{"tomorrow end", Tomorrow, at(2025, 6, 5, 23, 59), false, true},
		{"tomorrow today", Tomorrow, at(2025, 6, 4, 23, 59), false, false},
		{"tomorrow day after", Tomorrow, at(2025, 6, 6, 0, 0), false, false},

		{"this week earlier today", ThisWeek, at(2025, 6, 4, 1, 0), false, true},
		{"this week sunday", ThisWeek, at(2025, 6, 8, 23, 59), false, true},
		{"this week next monday", ThisWeek, at(2025, 6, 9, 0, 0), false, false},
		{"this week yesterday", ThisWeek, at(2025, 6, 3, 12, 0), false, false},

		{"this month later", ThisMonth, at(2025, 6, 30, 23, 59), false, true},
		{"this month today", ThisMonth, at(2025, 6, 4, 0, 0), false, true},
		{"this month next month", ThisMonth, at(2025, 7, 1, 0, 0), false, false},
		{"this month earlier", ThisMonth, at(2025, 6, 1, 12, 0), false, false},

		{"unknown filter", Filter("someday"), at(2025, 6, 4, 12, 0), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Match(tt.filter, Subject{At: tt.at, Completed: tt.done}, refNow)
			if got != tt.want {
				t.Errorf("Match(%s, %v, done=%v) = %v, want %v", tt.filter, tt.at, tt.done, got, tt.want)
			}
		})
	}
}

func TestMatch_OverdueScenario(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	due := at(2025, 1, 1, 0, 0)

	if !Match(Overdue, Subject{At: due}, now) {
		t.Error("open task due 2025-01-01 should be overdue on 2025-06-01")
	}
	if Match(Overdue, Subject{At: due, Completed: true}, now) {
		t.Error("done task must not be overdue")
	}
}

func TestClassifier_WeekStart(t *testing.T) {
	sunday := at(2025, 6, 8, 12, 0)

	monday := Classifier{WeekStart: time.Monday}
	if !monday.Match(ThisWeek, Subject{At: sunday}, refNow) {
		t.Error("Monday weeks: Sunday 8 June should be this week")
	}

	sun := Classifier{WeekStart: time.Sunday}
	if sun.Match(ThisWeek, Subject{At: sunday}, refNow) {
		t.Error("Sunday weeks: Sunday 8 June starts the next week")
	}
	if !sun.Match(ThisWeek, Subject{At: at(2025, 6, 7, 23, 0)}, refNow) {
		t.Error("Sunday weeks: Saturday 7 June should be this week")
	}
}

func TestClassifier_WeekStartsToday(t *testing.T) {
	// refNow is a Wednesday; a Wednesday week ends next Tuesday.
	c := Classifier{WeekStart: time.Wednesday}
	if !c.Match(ThisWeek, Subject{At: at(2025, 6, 10, 23, 0)}, refNow) {
		t.Error("Tuesday 10 June should be in a week starting Wednesday 4 June")
	}
	if c.Match(ThisWeek, Subject{At: at(2025, 6, 11, 0, 0)}, refNow) {
		t.Error("Wednesday 11 June starts the next week")
	}
}

func TestClassifier_Location(t *testing.T) {
	// 23:30 UTC on 4 June is already 5 June at UTC+2.
	plus2 := time.FixedZone("UTC+2", 2*60*60)
	late := at(2025, 6, 4, 23, 30)

	utc := Classifier{WeekStart: time.Monday, Location: time.UTC}
	if !utc.Match(Today, Subject{At: late}, refNow) {
		t.Error("UTC: 23:30 should be today")
	}
	east := Classifier{WeekStart: time.Monday, Location: plus2}
	if east.Match(Today, Subject{At: late}, refNow) {
		t.Error("UTC+2: 23:30 UTC is tomorrow")
	}
	if !east.Match(Tomorrow, Subject{At: late}, refNow) {
		t.Error("UTC+2: 23:30 UTC should match tomorrow")
	}
}

func TestMatch_DecemberRollover(t *testing.T) {
	now := time.Date(2025, 12, 31, 18, 0, 0, 0, time.UTC)
	if !Match(Tomorrow, Subject{At: at(2026, 1, 1, 9, 0)}, now) {
		t.Error("1 January should be tomorrow on 31 December")
	}
	if Match(ThisMonth, Subject{At: at(2026, 1, 1, 9, 0)}, now) {
		t.Error("1 January is not this month on 31 December")
	}
	if !Match(ThisMonth, Subject{At: at(2025, 12, 31, 23, 0)}, now) {
		t.Error("31 December 23:00 should be this month")
	}
}

func TestApply(t *testing.T) {
	type item struct {
		name string
		due  *time.Time
		done bool
	}
	items := []item{
		{"a", at(2025, 6, 1, 0, 0), false},
		{"b", nil, false},
		{"c", at(2025, 6, 2, 0, 0), true},
		{"d", at(2025, 6, 4, 18, 0), false},
	}
	subject := func(i item) Subject { return Subject{At: i.due, Completed: i.done} }

	got := Apply(New(), Overdue, items, subject, refNow)
	if len(got) != 1 || got[0].name != "a" {
		t.Errorf("Apply(Overdue) = %+v, want [a]", got)
	}
	got = Apply(New(), Any, items, subject, refNow)
	if len(got) != len(items) {
		t.Errorf("Apply(Any) returned %d items, want %d", len(got), len(items))
	}
	got = Apply(New(), NoDueDate, items, subject, refNow)
	if len(got) != 1 || got[0].name != "b" {
		t.Errorf("Apply(NoDueDate) = %+v, want [b]", got)
	}
}

func TestClassify(t *testing.T) {
	got := New().Classify(Subject{At: at(2025, 6, 5, 9, 0)}, refNow)
	want := []Filter{Any, Tomorrow, ThisWeek, ThisMonth, HasDueDate}
	if len(got) != len(want) {
		t.Fatalf("Classify = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Classify[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
