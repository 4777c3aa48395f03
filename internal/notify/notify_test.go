package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/almanac/internal/config"
	"github.com/zulandar/almanac/internal/errs"
	"github.com/zulandar/almanac/internal/models"
	"github.com/zulandar/almanac/internal/search"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testDB creates an in-memory SQLite database with the failure outbox.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.IndexFailure{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// mockSink records alerts and optionally fails.
type mockSink struct {
	alerts []Alert
	err    error
}

func (m *mockSink) Name() string { return "mock" }
func (m *mockSink) Send(_ context.Context, a Alert) error {
	m.alerts = append(m.alerts, a)
	return m.err
}

func failure(kind search.Kind, id uint, op string) search.Failure {
	return search.Failure{
		Ref: search.Ref{Kind: kind, ID: id},
		Op:  op,
		Err: errors.Join(errs.ErrIndexUnavailable, errors.New("connection refused")),
	}
}

func TestChannel_ImplementsReporter(t *testing.T) {
	var _ search.Reporter = New(nil)
}

func TestReportFailure_RecordsOutboxRow(t *testing.T) {
	db := testDB(t)
	sink := &mockSink{}
	c := New(db, sink)

	c.ReportFailure(context.Background(), failure(search.KindTask, 4, search.OpUpsert))

	rows, err := Pending(db, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("pending rows = %d, want 1", len(rows))
	}
	r := rows[0]
	if r.Kind != "task" || r.EntityID != 4 || r.Op != search.OpUpsert || r.Attempts != 1 {
		t.Errorf("row = %+v", r)
	}
	if !strings.Contains(r.Error, "connection refused") {
		t.Errorf("row.Error = %q", r.Error)
	}
	if len(sink.alerts) != 1 || sink.alerts[0].EntityID != 4 {
		t.Errorf("alerts = %+v", sink.alerts)
	}
}

func TestReportFailure_ReusesUnresolvedRow(t *testing.T) {
	db := testDB(t)
	sink := &mockSink{}
	c := New(db, sink)
	ctx := context.Background()

	c.ReportFailure(ctx, failure(search.KindEvent, 9, search.OpUpsert))
	c.ReportFailure(ctx, failure(search.KindEvent, 9, search.OpDelete))

	rows, _ := Pending(db, 0)
	if len(rows) != 1 {
		t.Fatalf("pending rows = %d, want 1", len(rows))
	}
	if rows[0].Op != search.OpDelete {
		t.Errorf("Op = %q, want latest op delete", rows[0].Op)
	}
	if rows[0].Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", rows[0].Attempts)
	}
	if sink.alerts[1].Attempts != 2 {
		t.Errorf("second alert attempts = %d, want 2", sink.alerts[1].Attempts)
	}
}

func TestReportFailure_NewRowAfterResolve(t *testing.T) {
	db := testDB(t)
	c := New(db)
	ctx := context.Background()

	c.ReportFailure(ctx, failure(search.KindWiki, 1, search.OpUpsert))
	rows, _ := Pending(db, 0)
	if err := Resolve(db, rows[0].ID); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rows, _ := Pending(db, 0); len(rows) != 0 {
		t.Fatalf("pending after resolve = %d, want 0", len(rows))
	}

	c.ReportFailure(ctx, failure(search.KindWiki, 1, search.OpUpsert))
	rows, _ = Pending(db, 0)
	if len(rows) != 1 || rows[0].Attempts != 1 {
		t.Errorf("pending after new failure = %+v", rows)
	}
}

func TestReportFailure_SinkErrorIsSwallowed(t *testing.T) {
	db := testDB(t)
	bad := &mockSink{err: errors.New("webhook 500")}
	good := &mockSink{}
	c := New(db, bad, good)

	c.ReportFailure(context.Background(), failure(search.KindJournal, 2, search.OpUpsert))

	if len(good.alerts) != 1 {
		t.Error("a failing sink must not stop later sinks")
	}
}

func TestReportFailure_NilDB(t *testing.T) {
	sink := &mockSink{}
	New(nil, sink).ReportFailure(context.Background(), failure(search.KindTask, 1, search.OpUpsert))
	if len(sink.alerts) != 1 {
		t.Error("alert not sent without a database")
	}
}

func TestPending_Limit(t *testing.T) {
	db := testDB(t)
	c := New(db)
	for i := uint(1); i <= 3; i++ {
		c.ReportFailure(context.Background(), failure(search.KindTask, i, search.OpUpsert))
	}
	rows, err := Pending(db, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].EntityID != 1 {
		t.Errorf("Pending(2) = %+v", rows)
	}
}

func TestResolve_NotFound(t *testing.T) {
	db := testDB(t)
	err := Resolve(db, 999)
	if err == nil || !strings.Contains(err.Error(), "failure not found: 999") {
		t.Errorf("err = %v", err)
	}
}

func TestTemplateAlert(t *testing.T) {
	got := templateAlert("{{.Op}} {{.Kind}}/{{.ID}} x{{.Attempts}}: {{.Error}}", Alert{
		Kind: "task", EntityID: 12, Op: "upsert", Error: "boom", Attempts: 3,
	})
	if got != "upsert task/12 x3: boom" {
		t.Errorf("templateAlert = %q", got)
	}
}

func TestCommandSink(t *testing.T) {
	s := CommandSink{Template: "test {{.Kind}} = task"}
	if err := s.Send(context.Background(), Alert{Kind: "task"}); err != nil {
		t.Errorf("Send: %v", err)
	}
	s = CommandSink{Template: "exit 3"}
	if err := s.Send(context.Background(), Alert{}); err == nil {
		t.Error("expected error from failing command")
	}
}

func TestSlackSink_PostsWebhook(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSlackSink(srv.URL)
	err := s.Send(context.Background(), Alert{Kind: "event", EntityID: 5, Op: "delete", Error: "timeout", Attempts: 1})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	text, _ := body["text"].(string)
	if !strings.Contains(text, "event/5") {
		t.Errorf("text = %q, want to mention event/5", text)
	}
}

func TestSlackSink_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := NewSlackSink(srv.URL).Send(context.Background(), Alert{}); err == nil {
		t.Error("expected error for 500 response")
	}
}

// mockExecutor is a test double for the discordgo webhook call.
type mockExecutor struct {
	id, token string
	params    *discordgo.WebhookParams
	err       error
}

func (m *mockExecutor) WebhookExecute(id, token string, _ bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.id, m.token, m.params = id, token, data
	return nil, m.err
}

func TestDiscordSink_Send(t *testing.T) {
	exec := &mockExecutor{}
	s := &DiscordSink{id: "123", token: "abc", exec: exec}
	if err := s.Send(context.Background(), Alert{Kind: "wiki", EntityID: 8, Op: "upsert", Error: "locked", Attempts: 2}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if exec.id != "123" || exec.token != "abc" {
		t.Errorf("webhook = %s/%s", exec.id, exec.token)
	}
	if !strings.Contains(exec.params.Content, "wiki/8") || exec.params.Embeds[0].Description != "locked" {
		t.Errorf("params = %+v", exec.params)
	}

	exec.err = errors.New("rate limited")
	if err := s.Send(context.Background(), Alert{}); err == nil {
		t.Error("expected error from executor")
	}
}

func TestParseDiscordWebhook(t *testing.T) {
	id, token, err := parseDiscordWebhook("https://discord.com/api/webhooks/42/s3cr3t")
	if err != nil || id != "42" || token != "s3cr3t" {
		t.Errorf("parse = %q, %q, %v", id, token, err)
	}
	if _, _, err := parseDiscordWebhook("https://discord.com/api/channels/42"); err == nil {
		t.Error("expected error for non-webhook url")
	}
}

func TestFromConfig(t *testing.T) {
	c, err := FromConfig(nil, config.AlertsConfig{
		Command:        "true",
		SlackWebhook:   "https://hooks.slack.com/services/x",
		DiscordWebhook: "https://discord.com/api/webhooks/1/t",
	})
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	var names []string
	for _, s := range c.sinks {
		names = append(names, s.Name())
	}
	if strings.Join(names, ",") != "command,slack,discord" {
		t.Errorf("sinks = %v", names)
	}

	if _, err := FromConfig(nil, config.AlertsConfig{DiscordWebhook: "https://example.com/"}); err == nil {
		t.Error("expected error for malformed discord webhook")
	}
}
