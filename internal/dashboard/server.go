// Package dashboard serves the JSON API over the domain services.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/almanac/internal/calsync"
	"github.com/zulandar/almanac/internal/event"
	"github.com/zulandar/almanac/internal/operation"
	"github.com/zulandar/almanac/internal/search"
	"github.com/zulandar/almanac/internal/task"
	"gorm.io/gorm"
)

// App bundles what the handlers need. Now supplies the reference time for
// bucket filters and defaults to time.Now.
type App struct {
	DB         *gorm.DB
	Search     *search.Synchronizer
	Calendar   *calsync.Engine
	Tasks      *task.Service
	Events     *event.Service
	Operations *operation.Service
	Now        func() time.Time
}

// StartOpts holds configuration for the API server.
type StartOpts struct {
	App  *App
	Port int
	Out  io.Writer
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.App == nil || opts.App.DB == nil {
		return fmt.Errorf("dashboard: db is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: NewRouter(opts.App),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// NewRouter returns the gin engine with every route registered.
func NewRouter(app *App) *gin.Engine {
	if app.Now == nil {
		app.Now = time.Now
	}
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, app)
	return router
}
