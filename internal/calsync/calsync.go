// Package calsync keeps at most one calendar event per task in step with
// the task's due date.
package calsync

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/zulandar/almanac/internal/config"
	"github.com/zulandar/almanac/internal/errs"
	"github.com/zulandar/almanac/internal/models"
	"github.com/zulandar/almanac/internal/search"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"gorm.io/gorm"
)

// Policy decides what happens to a linked event once its task has no due date.
type Policy string

const (
	// DeleteOrphan removes the linked event.
	DeleteOrphan Policy = "delete"
	// KeepOrphan leaves the linked event untouched.
	KeepOrphan Policy = "keep"
)

// PolicyFor maps the calendar.clear_due_date config value to a Policy.
func PolicyFor(value string) Policy {
	if value == config.ClearDueDateKeep {
		return KeepOrphan
	}
	return DeleteOrphan
}

// DefaultSourceName is used when the engine has no SourceName.
const DefaultSourceName = "Tasks"

// Action names what a sync did to the linked event.
type Action string

const (
	ActionNone      Action = "none"
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionUnchanged Action = "unchanged"
	ActionDeleted   Action = "deleted"
)

// Result is the outcome of one sync. Event is the linked event after the
// sync, nil when there is none. Report carries index failures.
type Result struct {
	Action Action
	Event  *models.CalendarEvent
	Report search.Report
}

// Engine syncs tasks to calendar events. Callers serialize syncs for the
// same task; the engine takes no locks.
type Engine struct {
	DB         *gorm.DB
	Index      *search.Synchronizer
	Policy     Policy
	SourceName string

	syncs metric.Int64Counter
}

// New returns an Engine with its sync counter registered.
func New(db *gorm.DB, index *search.Synchronizer, policy Policy, sourceName string) *Engine {
	counter, err := otel.Meter("github.com/zulandar/almanac/calsync").Int64Counter(
		"almanac.calendar.syncs",
		metric.WithDescription("Task to calendar syncs by resulting action."),
	)
	if err != nil {
		log.Printf("calsync: create sync counter: %v", err)
	}
	return &Engine{DB: db, Index: index, Policy: policy, SourceName: sourceName, syncs: counter}
}

// SyncTask brings the event linked to taskID in line with the task. A task
// without a due date never gets a new event and an existing one is left
// alone; removing it is DueDateCleared's job. Event times are stored in UTC.
// Store errors are returned, index failures are carried in Result.Report.
func (e *Engine) SyncTask(ctx context.Context, taskID uint) (Result, error) {
	if taskID == 0 {
		return Result{}, fmt.Errorf("calsync: task id is required: %w", errs.ErrInvalidArgument)
	}

	var task models.Task
	if err := e.DB.WithContext(ctx).First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Result{}, fmt.Errorf("calsync: task %d: %w: %w", taskID, errs.ErrNotFound, err)
		}
		return Result{}, fmt.Errorf("calsync: load task %d: %w", taskID, err)
	}

	linked, report, err := e.linkedEvent(ctx, taskID)
	if err != nil {
		return Result{Report: report}, err
	}

	var res Result
	switch {
	case task.DueDate == nil && linked == nil:
		res = Result{Action: ActionNone}
	case task.DueDate == nil:
		res = Result{Action: ActionNone, Event: linked}
	case linked == nil:
		res, err = e.createEvent(ctx, &task)
	default:
		res, err = e.updateEvent(ctx, &task, linked)
	}
	res.Report = report.Merge(res.Report)
	if err == nil {
		e.count(ctx, res.Action)
	}
	return res, err
}

// DueDateCleared applies Policy to the event linked to taskID after the
// task's due date was removed.
func (e *Engine) DueDateCleared(ctx context.Context, taskID uint) (Result, error) {
	if taskID == 0 {
		return Result{}, fmt.Errorf("calsync: task id is required: %w", errs.ErrInvalidArgument)
	}
	linked, report, err := e.linkedEvent(ctx, taskID)
	if err != nil || linked == nil {
		return Result{Action: ActionNone, Report: report}, err
	}
	if e.Policy == KeepOrphan {
		return Result{Action: ActionNone, Event: linked, Report: report}, nil
	}
	res, err := e.deleteEvent(ctx, linked)
	res.Report = report.Merge(res.Report)
	if err == nil {
		e.count(ctx, res.Action)
	}
	return res, err
}

// TaskDeleted removes every event linked to taskID along with its document.
// A task with no linked event is not an error.
func (e *Engine) TaskDeleted(ctx context.Context, taskID uint) (search.Report, error) {
	if taskID == 0 {
		return search.Report{}, fmt.Errorf("calsync: task id is required: %w", errs.ErrInvalidArgument)
	}
	events, err := e.EventsForTask(ctx, taskID)
	if err != nil {
		return search.Report{}, err
	}
	var report search.Report
	for i := range events {
		res, err := e.deleteEvent(ctx, &events[i])
		report = report.Merge(res.Report)
		if err != nil {
			return report, err
		}
	}
	if len(events) > 0 {
		e.count(ctx, ActionDeleted)
	}
	return report, nil
}

// EventsForTask returns the events linked to taskID, lowest id first.
func (e *Engine) EventsForTask(ctx context.Context, taskID uint) ([]models.CalendarEvent, error) {
	var events []models.CalendarEvent
	if err := e.DB.WithContext(ctx).Where("task_id = ?", taskID).Order("id ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("calsync: events for task %d: %w", taskID, err)
	}
	return events, nil
}

// linkedEvent returns the single event linked to taskID. Extra events are
// deleted, keeping the one with the lowest id.
func (e *Engine) linkedEvent(ctx context.Context, taskID uint) (*models.CalendarEvent, search.Report, error) {
	events, err := e.EventsForTask(ctx, taskID)
	if err != nil || len(events) == 0 {
		return nil, search.Report{}, err
	}
	keep := events[0]
	var report search.Report
	if len(events) > 1 {
		log.Printf("calsync: task %d has %d linked events, keeping event %d: %v",
			taskID, len(events), keep.ID, errs.ErrConflict)
		for i := range events[1:] {
			res, err := e.deleteEvent(ctx, &events[i+1])
			report = report.Merge(res.Report)
			if err != nil {
				return nil, report, fmt.Errorf("calsync: resolve %w for task %d: %w", errs.ErrConflict, taskID, err)
			}
		}
	}
	return &keep, report, nil
}

func (e *Engine) createEvent(ctx context.Context, task *models.Task) (Result, error) {
	sourceID, err := e.DefaultSource(ctx)
	if err != nil {
		return Result{}, err
	}
	taskID := task.ID
	ev := models.CalendarEvent{
		UID:              uuid.NewString(),
		CalendarSourceID: sourceID,
		TaskID:           &taskID,
	}
	applyTask(&ev, task)
	if err := e.DB.WithContext(ctx).Create(&ev).Error; err != nil {
		return Result{}, fmt.Errorf("calsync: create event for task %d: %w", task.ID, err)
	}
	return Result{Action: ActionCreated, Event: &ev, Report: e.index(ctx, &ev)}, nil
}

// updateEvent overwrites the task-derived fields. An event that already
// matches is not written but is still re-indexed.
func (e *Engine) updateEvent(ctx context.Context, task *models.Task, ev *models.CalendarEvent) (Result, error) {
	if matches(ev, task) {
		return Result{Action: ActionUnchanged, Event: ev, Report: e.index(ctx, ev)}, nil
	}
	applyTask(ev, task)
	err := e.DB.WithContext(ctx).Model(ev).
		Select("title", "description", "starts_at", "ends_at", "operation_id").
		Updates(ev).Error
	if err != nil {
		return Result{}, fmt.Errorf("calsync: update event %d for task %d: %w", ev.ID, task.ID, err)
	}
	return Result{Action: ActionUpdated, Event: ev, Report: e.index(ctx, ev)}, nil
}

func (e *Engine) deleteEvent(ctx context.Context, ev *models.CalendarEvent) (Result, error) {
	if err := e.DB.WithContext(ctx).Delete(&models.CalendarEvent{}, ev.ID).Error; err != nil {
		return Result{}, fmt.Errorf("calsync: delete event %d: %w", ev.ID, err)
	}
	var report search.Report
	if e.Index != nil {
		report = e.Index.Remove(ctx, search.Ref{Kind: search.KindEvent, ID: ev.ID})
	}
	return Result{Action: ActionDeleted, Report: report}, nil
}

func (e *Engine) index(ctx context.Context, ev *models.CalendarEvent) search.Report {
	if e.Index == nil {
		return search.Report{}
	}
	return e.Index.Index(ctx, search.FromEvent(ev))
}

// DefaultSource returns the id of the source named SourceName, creating it
// on first use.
func (e *Engine) DefaultSource(ctx context.Context) (uint, error) {
	name := e.SourceName
	if name == "" {
		name = DefaultSourceName
	}
	var src models.CalendarSource
	err := e.DB.WithContext(ctx).Where("name = ?", name).First(&src).Error
	if err == nil {
		return src.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("calsync: load calendar source %q: %w", name, err)
	}
	src = models.CalendarSource{Name: name, IsDefault: true}
	if err := e.DB.WithContext(ctx).Create(&src).Error; err != nil {
		return 0, fmt.Errorf("calsync: create calendar source %q: %w", name, err)
	}
	return src.ID, nil
}

func (e *Engine) count(ctx context.Context, a Action) {
	if e.syncs == nil {
		return
	}
	e.syncs.Add(ctx, 1, metric.WithAttributes(attribute.String("action", string(a))))
}

// applyTask copies the task-derived fields onto ev. Callers ensure the task
// has a due date.
func applyTask(ev *models.CalendarEvent, task *models.Task) {
	ev.Title = task.Title
	ev.Description = task.Description
	ev.Start = task.DueDate.UTC()
	ev.End = ev.Start
	ev.OperationID = task.OperationID
}

func matches(ev *models.CalendarEvent, task *models.Task) bool {
	return ev.Title == task.Title &&
		ev.Description == task.Description &&
		ev.Start.Equal(*task.DueDate) &&
		ev.End.Equal(*task.DueDate) &&
		ev.OperationID == task.OperationID
}
