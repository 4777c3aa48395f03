package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/almanac/internal/models"
	"gorm.io/gorm"
)

// failureEvent holds data for an index-failure SSE event.
type failureEvent struct {
	ID       uint   `json:"id"`
	Kind     string `json:"kind"`
	EntityID uint   `json:"entity_id"`
	Op       string `json:"op"`
	Error    string `json:"error"`
	Pending  int64  `json:"pending"`
}

// streamInterval is how often the stream polls the failure outbox.
var streamInterval = 3 * time.Second

// handleSSE streams new unresolved index failures so a client can show
// that search is lagging behind the store.
func handleSSE(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		// only alert on failures recorded after the client connected
		var lastSeenID uint
		var latest models.IndexFailure
		if err := db.Order("id DESC").Limit(1).First(&latest).Error; err == nil {
			lastSeenID = latest.ID
		}

		writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
		c.Writer.Flush()

		ctx := c.Request.Context()
		ticker := time.NewTicker(streamInterval)
		heartbeat := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-ticker.C:
				var fresh []models.IndexFailure
				db.Where("resolved = ? AND id > ?", false, lastSeenID).Order("id ASC").Find(&fresh)
				if len(fresh) == 0 {
					continue
				}
				lastSeenID = fresh[len(fresh)-1].ID

				var pending int64
				db.Model(&models.IndexFailure{}).Where("resolved = ?", false).Count(&pending)

				for _, f := range fresh {
					writeSSE(c.Writer, "index_failure", failureEvent{
						ID:       f.ID,
						Kind:     f.Kind,
						EntityID: f.EntityID,
						Op:       f.Op,
						Error:    f.Error,
						Pending:  pending,
					})
				}
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
