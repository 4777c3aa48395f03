// Package reindex repairs the search index from the store: Rebuild
// re-projects whole kinds, Replay retries the failures recorded in the
// outbox, and Schedule runs Replay periodically.
package reindex

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/almanac/internal/models"
	"github.com/zulandar/almanac/internal/notify"
	"github.com/zulandar/almanac/internal/search"
	"gorm.io/gorm"
)

// DefaultBatchSize is used when Reindexer.BatchSize is zero.
const DefaultBatchSize = 200

// Reindexer writes documents straight to the index backend. Its own
// failures are counted on the job or left on the outbox row, not reported
// again.
type Reindexer struct {
	Store     *gorm.DB
	Index     search.Index
	BatchSize int
}

// ReplayResult counts the outbox rows handled by one Replay.
type ReplayResult struct {
	Resolved int
	Failed   int
}

// Rebuild purges and re-projects every entity of kinds, or of every kind
// when none are given. Per-document upsert failures are counted on the job;
// purge and store errors fail it.
func (r *Reindexer) Rebuild(ctx context.Context, kinds ...search.Kind) (*models.ReindexJob, error) {
	if len(kinds) == 0 {
		kinds = search.Kinds
	}
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}

	db := r.Store.WithContext(ctx)
	job := models.ReindexJob{Kinds: strings.Join(names, ","), Trigger: "manual", Status: models.ReindexPending}
	if err := db.Create(&job).Error; err != nil {
		return nil, fmt.Errorf("reindex: create job: %w", err)
	}

	started := time.Now()
	job.Status = models.ReindexRunning
	job.StartedAt = &started
	if err := db.Save(&job).Error; err != nil {
		return nil, fmt.Errorf("reindex: start job %d: %w", job.ID, err)
	}
	log.Printf("reindex: job %d rebuilding %s", job.ID, job.Kinds)

	runErr := r.rebuild(ctx, &job, kinds)

	completed := time.Now()
	job.CompletedAt = &completed
	job.Status = models.ReindexDone
	if runErr != nil {
		job.Status = models.ReindexFailed
		job.ErrorMessage = runErr.Error()
	}
	// record the outcome even when ctx was cancelled mid-run
	if err := r.Store.Save(&job).Error; err != nil {
		return &job, errors.Join(runErr, fmt.Errorf("reindex: finish job %d: %w", job.ID, err))
	}
	log.Printf("reindex: job %d %s: %d documents, %d failures", job.ID, job.Status, job.Documents, job.Failures)
	return &job, runErr
}

func (r *Reindexer) rebuild(ctx context.Context, job *models.ReindexJob, kinds []search.Kind) error {
	for _, k := range kinds {
		if err := r.Index.Purge(ctx, k); err != nil {
			return fmt.Errorf("reindex: %w", err)
		}
		var err error
		switch k {
		case search.KindTask:
			err = rebuildKind(ctx, r, job, func(t *models.Task) search.Entity { return search.FromTask(t) })
		case search.KindEvent:
			err = rebuildKind(ctx, r, job, func(e *models.CalendarEvent) search.Entity { return search.FromEvent(e) })
		case search.KindWiki:
			err = rebuildKind(ctx, r, job, func(w *models.WikiPage) search.Entity { return search.FromWiki(w) })
		case search.KindJournal:
			err = rebuildKind(ctx, r, job, func(j *models.JournalEntry) search.Entity { return search.FromJournal(j) })
		case search.KindOperation:
			err = rebuildKind(ctx, r, job, func(o *models.Operation) search.Entity { return search.FromOperation(o) })
		default:
			err = fmt.Errorf("unknown kind %q", k)
		}
		if err != nil {
			return fmt.Errorf("reindex: rebuild %s: %w", k, err)
		}
	}
	return nil
}

// rebuildKind upserts the document of every row of T in primary key order.
func rebuildKind[T any](ctx context.Context, r *Reindexer, job *models.ReindexJob, project func(*T) search.Entity) error {
	size := r.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	var rows []T
	result := r.Store.WithContext(ctx).FindInBatches(&rows, size, func(_ *gorm.DB, _ int) error {
		for i := range rows {
			e := project(&rows[i])
			if err := r.Index.Upsert(ctx, search.Project(e)); err != nil {
				job.Failures++
				log.Printf("reindex: upsert %s: %v", e.Ref(), err)
				continue
			}
			job.Documents++
		}
		return ctx.Err()
	})
	return result.Error
}

// Replay retries every unresolved outbox row. Entities still in the store
// are upserted, missing ones have their document deleted. Rows that fail
// again stay unresolved with their attempt count bumped.
func (r *Reindexer) Replay(ctx context.Context) (ReplayResult, error) {
	var res ReplayResult
	rows, err := notify.Pending(r.Store.WithContext(ctx), 0)
	if err != nil {
		return res, fmt.Errorf("reindex: %w", err)
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := r.replayOne(ctx, row); err != nil {
			res.Failed++
			log.Printf("reindex: replay %s/%d: %v", row.Kind, row.EntityID, err)
			upd := map[string]interface{}{"attempts": row.Attempts + 1, "error": err.Error()}
			if err := r.Store.WithContext(ctx).Model(&models.IndexFailure{}).Where("id = ?", row.ID).Updates(upd).Error; err != nil {
				return res, fmt.Errorf("reindex: bump failure %d: %w", row.ID, err)
			}
			continue
		}
		if err := notify.Resolve(r.Store.WithContext(ctx), row.ID); err != nil {
			return res, fmt.Errorf("reindex: %w", err)
		}
		res.Resolved++
	}
	if len(rows) > 0 {
		log.Printf("reindex: replay resolved %d, failed %d", res.Resolved, res.Failed)
	}
	return res, nil
}

func (r *Reindexer) replayOne(ctx context.Context, row models.IndexFailure) error {
	kind, err := search.ParseKind(row.Kind)
	if err != nil {
		return err
	}
	e, err := r.load(ctx, kind, row.EntityID)
	if err != nil {
		return err
	}
	if e == nil {
		return r.Index.Delete(ctx, search.Ref{Kind: kind, ID: row.EntityID})
	}
	return r.Index.Upsert(ctx, search.Project(e))
}

// load returns the entity for kind and id, or nil when the store has no
// such row.
func (r *Reindexer) load(ctx context.Context, kind search.Kind, id uint) (search.Entity, error) {
	db := r.Store.WithContext(ctx)
	var (
		e   search.Entity
		err error
	)
	switch kind {
	case search.KindTask:
		var t models.Task
		if err = db.First(&t, id).Error; err == nil {
			e = search.FromTask(&t)
		}
	case search.KindEvent:
		var ev models.CalendarEvent
		if err = db.First(&ev, id).Error; err == nil {
			e = search.FromEvent(&ev)
		}
	case search.KindWiki:
		var w models.WikiPage
		if err = db.First(&w, id).Error; err == nil {
			e = search.FromWiki(&w)
		}
	case search.KindJournal:
		var j models.JournalEntry
		if err = db.First(&j, id).Error; err == nil {
			e = search.FromJournal(&j)
		}
	case search.KindOperation:
		var o models.Operation
		if err = db.First(&o, id).Error; err == nil {
			e = search.FromOperation(&o)
		}
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s/%d: %w", kind, id, err)
	}
	return e, nil
}

// scheduleParser accepts 5-field cron expressions and descriptors.
var scheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Schedule runs Replay on expr until ctx is cancelled, then waits for a
// running replay to finish.
func (r *Reindexer) Schedule(ctx context.Context, expr string) error {
	sched, err := scheduleParser.Parse(expr)
	if err != nil {
		return fmt.Errorf("reindex: schedule %q: %w", expr, err)
	}

	c := cron.New(cron.WithParser(scheduleParser), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	c.Schedule(sched, cron.FuncJob(func() {
		if _, err := r.Replay(ctx); err != nil && ctx.Err() == nil {
			log.Printf("reindex: scheduled replay: %v", err)
		}
	}))
	log.Printf("reindex: replaying failures on %q", expr)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
