package dashboard

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/almanac/internal/bucket"
	"github.com/zulandar/almanac/internal/errs"
	"github.com/zulandar/almanac/internal/models"
	"github.com/zulandar/almanac/internal/operation"
	"github.com/zulandar/almanac/internal/search"
	"github.com/zulandar/almanac/internal/task"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, app *App) {
	router.GET("/healthz", handleHealth(app))

	api := router.Group("/api")
	api.GET("/search", handleSearch(app))
	api.GET("/tasks", handleTaskList(app))
	api.POST("/tasks", handleTaskCreate(app))
	api.PATCH("/tasks/:id", handleTaskUpdate(app))
	api.DELETE("/tasks/:id", handleTaskDelete(app))
	api.POST("/tasks/:id/sync", handleTaskSync(app))
	api.GET("/events", handleEventList(app))
	api.GET("/operations", handleOperationList(app))
	api.POST("/operations", handleOperationCreate(app))
	api.GET("/stream", handleSSE(app.DB))
}

func handleHealth(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := app.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func handleSearch(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := search.Query{Text: c.Query("q")}
		if k := c.Query("kind"); k != "" {
			kind, err := search.ParseKind(k)
			if err != nil {
				badRequest(c, err)
				return
			}
			q.Kinds = []search.Kind{kind}
		}
		if l := c.Query("limit"); l != "" {
			n, err := strconv.Atoi(l)
			if err != nil || n < 0 {
				badRequest(c, errors.New("limit must be a non-negative integer"))
				return
			}
			q.Limit = n
		}
		docs, err := app.Search.Search(c.Request.Context(), q)
		if err != nil {
			// the store is fine; only search is unavailable
			writeError(c, errors.Join(errs.ErrIndexUnavailable, err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": docs})
	}
}

func handleTaskList(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := task.ListFilters{
			Status:   models.TaskStatus(c.Query("status")),
			Priority: models.Priority(c.Query("priority")),
			Now:      app.Now(),
		}
		if b := c.Query("bucket"); b != "" {
			bf, err := bucket.ParseFilter(b)
			if err != nil {
				badRequest(c, err)
				return
			}
			f.Bucket = bf
		}
		if op := c.Query("operation"); op != "" {
			id, err := parseID(op)
			if err != nil {
				badRequest(c, err)
				return
			}
			f.OperationID = id
		}
		if f.Status != "" && !f.Status.Valid() {
			badRequest(c, errors.New("unknown status "+string(f.Status)))
			return
		}

		tasks, err := app.Tasks.List(c.Request.Context(), f)
		if err != nil {
			writeError(c, err)
			return
		}
		views := make([]gin.H, len(tasks))
		for i := range tasks {
			views[i] = taskView(&tasks[i])
		}
		c.JSON(http.StatusOK, gin.H{"tasks": views})
	}
}

type taskCreateRequest struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	OperationID  uint       `json:"operation_id"`
	Status       string     `json:"status"`
	Priority     string     `json:"priority"`
	DueDate      *time.Time `json:"due_date"`
	Recurrence   string     `json:"recurrence"`
	ParentTaskID *uint      `json:"parent_task_id"`
}

func handleTaskCreate(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req taskCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		t, report, err := app.Tasks.Create(c.Request.Context(), task.CreateOpts{
			Title:        req.Title,
			Description:  req.Description,
			OperationID:  req.OperationID,
			Status:       models.TaskStatus(req.Status),
			Priority:     models.Priority(req.Priority),
			DueDate:      req.DueDate,
			Recurrence:   req.Recurrence,
			ParentTaskID: req.ParentTaskID,
		})
		if err != nil && t == nil {
			writeError(c, err)
			return
		}
		respond(c, http.StatusCreated, gin.H{"task": taskView(t)}, report, err)
	}
}

type taskUpdateRequest struct {
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	OperationID  *uint      `json:"operation_id"`
	Status       *string    `json:"status"`
	Priority     *string    `json:"priority"`
	DueDate      *time.Time `json:"due_date"`
	ClearDueDate bool       `json:"clear_due_date"`
	Recurrence   *string    `json:"recurrence"`
}

func handleTaskUpdate(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseID(c.Param("id"))
		if err != nil {
			badRequest(c, err)
			return
		}
		var req taskUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		opts := task.UpdateOpts{
			Title:        req.Title,
			Description:  req.Description,
			OperationID:  req.OperationID,
			DueDate:      req.DueDate,
			ClearDueDate: req.ClearDueDate,
			Recurrence:   req.Recurrence,
		}
		if req.Status != nil {
			s := models.TaskStatus(*req.Status)
			opts.Status = &s
		}
		if req.Priority != nil {
			p := models.Priority(*req.Priority)
			opts.Priority = &p
		}

		t, report, err := app.Tasks.Update(c.Request.Context(), id, opts)
		if err != nil && t == nil {
			writeError(c, err)
			return
		}
		respond(c, http.StatusOK, gin.H{"task": taskView(t)}, report, err)
	}
}

func handleTaskDelete(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseID(c.Param("id"))
		if err != nil {
			badRequest(c, err)
			return
		}
		report, err := app.Tasks.Delete(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		respond(c, http.StatusOK, gin.H{"deleted": id}, report, nil)
	}
}

func handleTaskSync(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseID(c.Param("id"))
		if err != nil {
			badRequest(c, err)
			return
		}
		res, err := app.Calendar.SyncTask(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		body := gin.H{"action": res.Action, "event": nil}
		if res.Event != nil {
			body["event"] = eventView(res.Event)
		}
		respond(c, http.StatusOK, body, res.Report, nil)
	}
}

func handleEventList(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		now := app.Now()
		from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		to := from.AddDate(0, 0, 7)
		var err error
		if v := c.Query("from"); v != "" {
			if from, err = parseTime(v, now.Location()); err != nil {
				badRequest(c, err)
				return
			}
		}
		if v := c.Query("to"); v != "" {
			if to, err = parseTime(v, now.Location()); err != nil {
				badRequest(c, err)
				return
			}
		}

		events, err := app.Events.ListRange(c.Request.Context(), from, to)
		if err != nil {
			writeError(c, err)
			return
		}
		views := make([]gin.H, len(events))
		for i := range events {
			views[i] = eventView(&events[i])
		}
		c.JSON(http.StatusOK, gin.H{"events": views})
	}
}

func handleOperationList(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		ops, err := app.Operations.List(c.Request.Context(), c.Query("status"))
		if err != nil {
			writeError(c, err)
			return
		}
		views := make([]gin.H, len(ops))
		for i := range ops {
			views[i] = operationView(&ops[i])
		}
		c.JSON(http.StatusOK, gin.H{"operations": views})
	}
}

type operationCreateRequest struct {
	Name     string     `json:"name"`
	Purpose  string     `json:"purpose"`
	Priority string     `json:"priority"`
	Status   string     `json:"status"`
	DueDate  *time.Time `json:"due_date"`
}

func handleOperationCreate(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req operationCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		op, report, err := app.Operations.Create(c.Request.Context(), operation.CreateOpts{
			Name:     req.Name,
			Purpose:  req.Purpose,
			Priority: models.Priority(req.Priority),
			Status:   req.Status,
			DueDate:  req.DueDate,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		respond(c, http.StatusCreated, gin.H{"operation": operationView(op)}, report, nil)
	}
}

// respond writes body with the report's failures as warnings. A calendar
// error after the task was saved is reported as a warning too.
func respond(c *gin.Context, status int, body gin.H, report search.Report, err error) {
	warnings := report.Warnings()
	if err != nil {
		warnings = append(warnings, err.Error())
	}
	body["warnings"] = warnings
	c.JSON(status, body)
}

// writeError maps error kinds to HTTP status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, errs.ErrIndexUnavailable):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func parseID(s string) (uint, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, errors.New("invalid id " + strconv.Quote(s))
	}
	return uint(n), nil
}

// parseTime accepts RFC 3339 or a bare YYYY-MM-DD date in loc.
func parseTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, errors.New("invalid time " + strconv.Quote(s) + ": want RFC 3339 or YYYY-MM-DD")
	}
	return t, nil
}
