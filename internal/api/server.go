// Package api exposes the routing core over an authenticated JSON HTTP
// surface, with Prometheus instrumentation and best-effort event and
// notification emission on state changes.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/switchboard/internal/authz"
	"github.com/zulandar/switchboard/internal/events"
	"github.com/zulandar/switchboard/internal/notify"
	"gorm.io/gorm"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	DB         *gorm.DB
	Port       int
	Authorizer authz.Authorizer // nil disables per-request authorization
	Events     events.Publisher // nil disables event publication
	Notifier   notify.Notifier  // nil disables chat alerts
	Out        io.Writer
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.DB == nil {
		return fmt.Errorf("api: db is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router := newRouter(opts)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Switchboard API listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

// newRouter assembles middleware and routes. Split from Start so tests can
// drive the handler stack without a listening socket.
func newRouter(opts StartOpts) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	m := newMetrics()
	router.Use(m.instrument())

	registerRoutes(router, opts, m)
	return router
}
