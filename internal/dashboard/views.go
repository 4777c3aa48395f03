package dashboard

import (
	"github.com/gin-gonic/gin"
	"github.com/zulandar/almanac/internal/models"
)

func taskView(t *models.Task) gin.H {
	return gin.H{
		"id":                    t.ID,
		"title":                 t.Title,
		"description":           t.Description,
		"operation_id":          t.OperationID,
		"status":                t.Status,
		"priority":              t.Priority,
		"due_date":              t.DueDate,
		"recurrence":            t.Recurrence,
		"parent_task_id":        t.ParentTaskID,
		"is_recurring_instance": t.IsRecurringInstance,
		"completed_at":          t.CompletedAt,
	}
}

func eventView(e *models.CalendarEvent) gin.H {
	return gin.H{
		"id":                 e.ID,
		"uid":                e.UID,
		"title":              e.Title,
		"description":        e.Description,
		"start":              e.Start,
		"end":                e.End,
		"location":           e.Location,
		"all_day":            e.AllDay,
		"operation_id":       e.OperationID,
		"calendar_source_id": e.CalendarSourceID,
		"task_id":            e.TaskID,
	}
}

func operationView(o *models.Operation) gin.H {
	return gin.H{
		"id":       o.ID,
		"name":     o.Name,
		"purpose":  o.Purpose,
		"priority": o.Priority,
		"status":   o.Status,
		"due_date": o.DueDate,
		"outcome":  o.Outcome,
	}
}
