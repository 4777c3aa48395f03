package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeConfig writes a sqlite config into a temp dir and returns its path.
func writeConfig(t *testing.T) string {
	t.Helper()
	return writeConfigWith(t, "")
}

// writeConfigWith appends extra YAML to the base test config.
func writeConfigWith(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	yaml := fmt.Sprintf(`owner: tester
database:
  driver: sqlite
  path: %s
search:
  driver: sqlite
  path: %s
calendar:
  timezone: UTC
  clear_due_date: delete
calendar_sources:
  - name: Tasks
    color: "#3366ff"
  - name: Personal
`, filepath.Join(dir, "store.db"), filepath.Join(dir, "index.db")) + extra
	path := filepath.Join(dir, "almanac.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// run executes alm with args plus -c configPath and returns stdout and
// stderr.
func run(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append(args, "-c", configPath))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func mustRun(t *testing.T, configPath string, args ...string) string {
	t.Helper()
	out, stderr, err := run(t, configPath, args...)
	if err != nil {
		t.Fatalf("alm %s: %v\nstdout: %s\nstderr: %s", strings.Join(args, " "), err, out, stderr)
	}
	return out
}

func initDB(t *testing.T) string {
	t.Helper()
	cfg := writeConfig(t)
	out := mustRun(t, cfg, "db", "init")
	if !strings.Contains(out, "initialized successfully") {
		t.Fatalf("db init output: %s", out)
	}
	return cfg
}

func TestDBInit_Idempotent(t *testing.T) {
	cfg := initDB(t)
	out := mustRun(t, cfg, "db", "init")
	if !strings.Contains(out, `Seeded calendar sources (default "Tasks")`) {
		t.Errorf("second init output: %s", out)
	}
}

func TestDBInit_MissingConfig(t *testing.T) {
	_, _, err := run(t, filepath.Join(t.TempDir(), "nope.yaml"), "db", "init")
	if err == nil || !strings.Contains(err.Error(), "load config") {
		t.Errorf("expected load config error, got %v", err)
	}
}

func TestTaskCalendarLifecycle(t *testing.T) {
	cfg := initDB(t)

	out := mustRun(t, cfg, "op", "add", "Garden", "--purpose", "Keep it alive")
	if !strings.Contains(out, "Created operation 1: Garden") {
		t.Fatalf("op add output: %s", out)
	}

	out = mustRun(t, cfg, "task", "add", "Water plants", "--op", "1", "--due", "2030-01-02 10:00")
	if !strings.Contains(out, "Created task 1: Water plants") {
		t.Fatalf("task add output: %s", out)
	}

	out = mustRun(t, cfg, "event", "list", "--from", "2030-01-01", "--to", "2030-01-03")
	if !strings.Contains(out, "Water plants") || !strings.Contains(out, "2030-01-02 10:00") {
		t.Errorf("event list should show the mirrored event, got: %s", out)
	}

	out = mustRun(t, cfg, "search", "water")
	if !strings.Contains(out, "task") || !strings.Contains(out, "event") {
		t.Errorf("search should find task and event documents, got: %s", out)
	}

	out = mustRun(t, cfg, "task", "sync", "1")
	if !strings.Contains(out, "unchanged") {
		t.Errorf("sync of an in-step task should be unchanged, got: %s", out)
	}

	mustRun(t, cfg, "task", "edit", "1", "--clear-due")
	out = mustRun(t, cfg, "event", "list", "--from", "2030-01-01", "--to", "2030-01-03")
	if !strings.Contains(out, "No events found.") {
		t.Errorf("event should be deleted with the due date, got: %s", out)
	}

	out = mustRun(t, cfg, "task", "list", "--when", "no-due-date")
	if !strings.Contains(out, "Water plants") {
		t.Errorf("task should be in no-due-date bucket, got: %s", out)
	}
	out = mustRun(t, cfg, "task", "list", "--when", "today")
	if !strings.Contains(out, "No tasks found.") {
		t.Errorf("expected no tasks due today, got: %s", out)
	}

	mustRun(t, cfg, "task", "rm", "1")
	out = mustRun(t, cfg, "search", "water")
	if !strings.Contains(out, "No results.") {
		t.Errorf("deleted task should leave no documents, got: %s", out)
	}
}

func TestTaskDone_Recurring(t *testing.T) {
	cfg := initDB(t)
	mustRun(t, cfg, "op", "add", "Team")
	mustRun(t, cfg, "task", "add", "Standup", "--op", "1", "--due", "2030-01-07 09:00", "--repeat", "0 9 * * 1")

	out := mustRun(t, cfg, "task", "done", "1")
	if !strings.Contains(out, "Completed task 1: Standup") {
		t.Errorf("done output: %s", out)
	}
	if !strings.Contains(out, "Next occurrence: task 2 due 2030-01-14 09:00") {
		t.Errorf("expected next weekly occurrence, got: %s", out)
	}
}

func TestTaskAdd_Errors(t *testing.T) {
	cfg := initDB(t)

	if _, _, err := run(t, cfg, "task", "add", "Orphan"); err == nil {
		t.Error("expected error when --op is missing")
	}
	if _, _, err := run(t, cfg, "task", "add", "Orphan", "--op", "99"); err == nil {
		t.Error("expected error for unknown operation")
	}
	mustRun(t, cfg, "op", "add", "Home")
	if _, _, err := run(t, cfg, "task", "add", "Bad", "--op", "1", "--due", "someday"); err == nil {
		t.Error("expected error for unparseable due date")
	}
	if _, _, err := run(t, cfg, "task", "list", "--when", "fortnight"); err == nil {
		t.Error("expected error for unknown bucket")
	}
}

func TestOpRm_Cascades(t *testing.T) {
	cfg := initDB(t)
	mustRun(t, cfg, "op", "add", "Move house")
	mustRun(t, cfg, "task", "add", "Pack books", "--op", "1", "--due", "2030-03-01")
	mustRun(t, cfg, "wiki", "add", "Movers", "--op", "1", "--content", "call on monday")

	mustRun(t, cfg, "op", "rm", "1")

	if out := mustRun(t, cfg, "op", "list"); !strings.Contains(out, "No operations found.") {
		t.Errorf("op list after rm: %s", out)
	}
	if out := mustRun(t, cfg, "task", "list"); !strings.Contains(out, "No tasks found.") {
		t.Errorf("task list after rm: %s", out)
	}
	if out := mustRun(t, cfg, "search", "movers"); !strings.Contains(out, "No results.") {
		t.Errorf("search after rm: %s", out)
	}
}

func TestWikiAndJournal(t *testing.T) {
	cfg := initDB(t)
	mustRun(t, cfg, "op", "add", "Travel")

	out := mustRun(t, cfg, "wiki", "add", "Packing list", "--op", "1", "--favorite", "--content", "passport")
	if !strings.Contains(out, "Created wiki page 1") {
		t.Errorf("wiki add output: %s", out)
	}
	if out := mustRun(t, cfg, "wiki", "list", "--favorites"); !strings.Contains(out, "Packing list") {
		t.Errorf("wiki favorites: %s", out)
	}
	if _, _, err := run(t, cfg, "wiki", "list"); err == nil {
		t.Error("expected error without --op or --favorites")
	}

	out = mustRun(t, cfg, "journal", "add", "Flight booked", "--content", "window seat")
	if !strings.Contains(out, "Created journal entry 1") {
		t.Errorf("journal add output: %s", out)
	}
	if out := mustRun(t, cfg, "journal", "list"); !strings.Contains(out, "Flight booked") {
		t.Errorf("journal list: %s", out)
	}

	out = mustRun(t, cfg, "search", "passport", "--kind", "wiki")
	if !strings.Contains(out, "Packing list") {
		t.Errorf("search by kind: %s", out)
	}
	if _, _, err := run(t, cfg, "search", "x", "--kind", "recipe"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestEventAdd(t *testing.T) {
	cfg := initDB(t)

	out := mustRun(t, cfg, "event", "add", "Dentist", "--start", "2030-05-05 14:00", "--end", "2030-05-05 15:00", "--location", "Main St")
	if !strings.Contains(out, "Created event 1: Dentist") {
		t.Errorf("event add output: %s", out)
	}
	if _, _, err := run(t, cfg, "event", "add", "Backwards", "--start", "2030-05-05 14:00", "--end", "2030-05-05 13:00"); err == nil {
		t.Error("expected error when end is before start")
	}

	mustRun(t, cfg, "event", "rm", "1")
	out = mustRun(t, cfg, "event", "list", "--from", "2030-05-05", "--days", "1")
	if !strings.Contains(out, "No events found.") {
		t.Errorf("event list after rm: %s", out)
	}
}

func TestReindex(t *testing.T) {
	cfg := initDB(t)
	mustRun(t, cfg, "op", "add", "Garden")
	mustRun(t, cfg, "task", "add", "Prune roses", "--op", "1", "--due", "2030-02-01")

	out := mustRun(t, cfg, "reindex")
	// operation, task and its event
	if !strings.Contains(out, "done: 3 documents, 0 failures") {
		t.Errorf("reindex output: %s", out)
	}

	out = mustRun(t, cfg, "reindex", "--kind", "task")
	if !strings.Contains(out, "done: 1 documents") {
		t.Errorf("reindex --kind task output: %s", out)
	}

	out = mustRun(t, cfg, "reindex", "--replay")
	if !strings.Contains(out, "0 resolved, 0 failed") {
		t.Errorf("replay output: %s", out)
	}

	if _, _, err := run(t, cfg, "reindex", "--schedule"); err == nil || !strings.Contains(err.Error(), "reindex.schedule is not set") {
		t.Errorf("expected missing schedule error, got %v", err)
	}
	if _, _, err := run(t, cfg, "reindex", "--kind", "bogus"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestDBReset(t *testing.T) {
	cfg := initDB(t)
	mustRun(t, cfg, "op", "add", "Ephemeral")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader("no\n"))
	cmd.SetArgs([]string{"db", "reset", "-c", cfg})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("db reset: %v", err)
	}
	if !strings.Contains(out.String(), "Aborted.") {
		t.Errorf("expected abort, got: %s", out.String())
	}
	if got := mustRun(t, cfg, "op", "list"); !strings.Contains(got, "Ephemeral") {
		t.Errorf("aborted reset must keep data, got: %s", got)
	}

	got := mustRun(t, cfg, "db", "reset", "--force")
	if !strings.Contains(got, "Dropped sqlite") || !strings.Contains(got, "initialized successfully") {
		t.Errorf("reset output: %s", got)
	}
	if got := mustRun(t, cfg, "op", "list"); !strings.Contains(got, "No operations found.") {
		t.Errorf("reset should drop data, got: %s", got)
	}
}

func TestInteractive(t *testing.T) {
	if !interactive(strings.NewReader("")) {
		t.Error("non-file readers should count as interactive")
	}
	f, err := os.CreateTemp(t.TempDir(), "stdin")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if interactive(f) {
		t.Error("a regular file is not a terminal")
	}
}

func TestLogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "alm.log")
	cfg := writeConfigWith(t, fmt.Sprintf("log:\n  file: %s\n", logPath))
	mustRun(t, cfg, "db", "init")
	mustRun(t, cfg, "reindex")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "reindex: job 1 done") {
		t.Errorf("log file should record the reindex job, got: %s", data)
	}
}
