// Package dashboard serves a small JSON API with bot stats and the leaderboard.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/kisaragi/internal/history"
	"github.com/zulandar/kisaragi/internal/rank"
)

// SessionCounter reports how many talk sessions are currently active.
type SessionCounter interface {
	ActiveCount() int
}

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	Ledger   *rank.Ledger
	History  *history.Store
	Sessions SessionCounter // optional; stats report 0 active sessions without it
	Port     int
	Out      io.Writer
}

// Start launches the dashboard HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Ledger == nil {
		return fmt.Errorf("dashboard: rank ledger is required")
	}
	if opts.History == nil {
		return fmt.Errorf("dashboard: history store is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	router := NewRouter(opts)

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
		fmt.Fprintf(opts.Out, "Dashboard running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// NewRouter builds the Gin router with all dashboard routes registered.
func NewRouter(opts StartOpts) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, opts)
	return router
}
