package reindex

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/zulandar/almanac/internal/errs"
	"github.com/zulandar/almanac/internal/models"
	"github.com/zulandar/almanac/internal/notify"
	"github.com/zulandar/almanac/internal/search"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openMemory(t *testing.T, migrate func(*gorm.DB) error) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func testReindexer(t *testing.T) (*Reindexer, *search.GormIndex) {
	t.Helper()
	store := openMemory(t, func(db *gorm.DB) error {
		return db.AutoMigrate(&models.Operation{}, &models.Task{}, &models.CalendarEvent{},
			&models.WikiPage{}, &models.JournalEntry{}, &models.IndexFailure{}, &models.ReindexJob{})
	})
	idx := search.NewGormIndex(openMemory(t, search.Migrate))
	return &Reindexer{Store: store, Index: idx, BatchSize: 2}, idx
}

// seed writes entities straight to the store, bypassing the index.
func seed(t *testing.T, db *gorm.DB) {
	t.Helper()
	due := time.Date(2025, 6, 4, 9, 0, 0, 0, time.UTC)
	rows := []interface{}{
		&models.Operation{Name: "Home", Status: models.OperationActive, Priority: models.PriorityLow},
		&models.Task{Title: "one", OperationID: 1, Status: models.TaskTodo, Priority: models.PriorityHigh},
		&models.Task{Title: "two", OperationID: 1, Status: models.TaskTodo, Priority: models.PriorityLow, DueDate: &due},
		&models.Task{Title: "three", OperationID: 1, Status: models.TaskDone, Priority: models.PriorityLow},
		&models.CalendarEvent{UID: "ev-1", Title: "two", Start: due, End: due, OperationID: 1},
		&models.WikiPage{Title: "Recipes", Content: "soup"},
		&models.JournalEntry{Title: "Monday", Date: due},
	}
	for _, r := range rows {
		if err := db.Create(r).Error; err != nil {
			t.Fatalf("seed %T: %v", r, err)
		}
	}
}

func TestRebuild_AllKinds(t *testing.T) {
	r, idx := testReindexer(t)
	ctx := context.Background()
	seed(t, r.Store)

	// a stale document for a task that no longer exists
	if err := idx.Upsert(ctx, search.Document{Kind: search.KindTask, EntityID: 99, Title: "ghost"}); err != nil {
		t.Fatal(err)
	}

	job, err := r.Rebuild(ctx)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if job.Status != models.ReindexDone || job.Documents != 7 || job.Failures != 0 {
		t.Errorf("job = %+v", job)
	}
	if job.Kinds != "task,event,wiki,journal,operation" || job.StartedAt == nil || job.CompletedAt == nil {
		t.Errorf("job bookkeeping = %+v", job)
	}

	if n, _ := idx.Count(ctx, ""); n != 7 {
		t.Errorf("documents = %d, want 7", n)
	}
	if _, err := idx.Get(ctx, search.Ref{Kind: search.KindTask, ID: 99}); !errors.Is(err, errs.ErrNotFound) {
		t.Error("stale document survived rebuild")
	}

	var task models.Task
	r.Store.First(&task, 2)
	doc, err := idx.Get(ctx, search.Ref{Kind: search.KindTask, ID: 2})
	if err != nil {
		t.Fatal(err)
	}
	want := search.Project(search.FromTask(&task))
	if diff := cmp.Diff(want, *doc, cmpopts.IgnoreFields(search.Document{}, "ID", "IndexedAt")); diff != "" {
		t.Errorf("rebuilt document (-want +got):\n%s", diff)
	}

	var stored models.ReindexJob
	r.Store.First(&stored, job.ID)
	if stored.Status != models.ReindexDone || stored.Documents != 7 {
		t.Errorf("stored job = %+v", stored)
	}
}

func TestRebuild_SelectedKinds(t *testing.T) {
	r, idx := testReindexer(t)
	ctx := context.Background()
	seed(t, r.Store)
	idx.Upsert(ctx, search.Document{Kind: search.KindWiki, EntityID: 1, Title: "kept as is"})

	job, err := r.Rebuild(ctx, search.KindTask)
	if err != nil {
		t.Fatal(err)
	}
	if job.Documents != 3 || job.Kinds != "task" {
		t.Errorf("job = %+v", job)
	}
	if doc, _ := idx.Get(ctx, search.Ref{Kind: search.KindWiki, ID: 1}); doc == nil || doc.Title != "kept as is" {
		t.Errorf("other kinds touched: %+v", doc)
	}
}

// flakyIndex fails upserts for one title and all purges when asked.
type flakyIndex struct {
	*search.GormIndex
	failTitle string
	failPurge bool
	failAll   bool
}

func (f *flakyIndex) Upsert(ctx context.Context, d search.Document) error {
	if f.failAll || d.Title == f.failTitle {
		return errors.New("index write rejected")
	}
	return f.GormIndex.Upsert(ctx, d)
}

func (f *flakyIndex) Delete(ctx context.Context, ref search.Ref) error {
	if f.failAll {
		return errors.New("index write rejected")
	}
	return f.GormIndex.Delete(ctx, ref)
}

func (f *flakyIndex) Purge(ctx context.Context, k search.Kind) error {
	if f.failPurge {
		return errors.New("purge rejected")
	}
	return f.GormIndex.Purge(ctx, k)
}

func TestRebuild_CountsDocumentFailures(t *testing.T) {
	r, idx := testReindexer(t)
	seed(t, r.Store)
	r.Index = &flakyIndex{GormIndex: idx, failTitle: "two"}

	job, err := r.Rebuild(context.Background(), search.KindTask, search.KindEvent)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if job.Status != models.ReindexDone || job.Documents != 2 || job.Failures != 2 {
		t.Errorf("job = %+v, want 2 documents and 2 failures", job)
	}
}

func TestRebuild_PurgeFailureFailsJob(t *testing.T) {
	r, idx := testReindexer(t)
	r.Index = &flakyIndex{GormIndex: idx, failPurge: true}

	job, err := r.Rebuild(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if job == nil || job.Status != models.ReindexFailed || job.ErrorMessage == "" {
		t.Errorf("job = %+v", job)
	}
}

func TestReplay(t *testing.T) {
	r, idx := testReindexer(t)
	ctx := context.Background()
	seed(t, r.Store)
	ch := notify.New(r.Store)

	// task 1 exists but its upsert failed; wiki 7 was deleted but its
	// document removal failed.
	idx.Upsert(ctx, search.Document{Kind: search.KindWiki, EntityID: 7, Title: "deleted page"})
	ch.ReportFailure(ctx, search.Failure{Ref: search.Ref{Kind: search.KindTask, ID: 1}, Op: search.OpUpsert, Err: errs.ErrIndexUnavailable})
	ch.ReportFailure(ctx, search.Failure{Ref: search.Ref{Kind: search.KindWiki, ID: 7}, Op: search.OpDelete, Err: errs.ErrIndexUnavailable})

	res, err := r.Replay(ctx)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if res.Resolved != 2 || res.Failed != 0 {
		t.Errorf("result = %+v", res)
	}
	if doc, err := idx.Get(ctx, search.Ref{Kind: search.KindTask, ID: 1}); err != nil || doc.Title != "one" {
		t.Errorf("task document = %+v, %v", doc, err)
	}
	if _, err := idx.Get(ctx, search.Ref{Kind: search.KindWiki, ID: 7}); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("orphan document survived: %v", err)
	}
	if pending, _ := notify.Pending(r.Store, 0); len(pending) != 0 {
		t.Errorf("pending = %+v", pending)
	}
}

func TestReplay_FailureBumpsAttempts(t *testing.T) {
	r, idx := testReindexer(t)
	ctx := context.Background()
	seed(t, r.Store)
	notify.New(r.Store).ReportFailure(ctx, search.Failure{Ref: search.Ref{Kind: search.KindJournal, ID: 1}, Op: search.OpUpsert, Err: errs.ErrIndexUnavailable})
	r.Index = &flakyIndex{GormIndex: idx, failAll: true}

	res, err := r.Replay(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Failed != 1 || res.Resolved != 0 {
		t.Errorf("result = %+v", res)
	}
	pending, _ := notify.Pending(r.Store, 0)
	if len(pending) != 1 || pending[0].Attempts != 2 || pending[0].Error != "index write rejected" {
		t.Errorf("pending = %+v", pending)
	}
}

func TestSchedule(t *testing.T) {
	r, _ := testReindexer(t)
	if err := r.Schedule(context.Background(), "not a schedule"); err == nil {
		t.Error("expected error for invalid expression")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Schedule(ctx, "@every 1h") }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Schedule: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Schedule did not return after cancel")
	}
}
