package relay

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/zulandar/kisaragi/internal/config"
	"github.com/zulandar/kisaragi/internal/history"
	"github.com/zulandar/kisaragi/internal/rank"
)

// Daemon is the main bot process. It connects to a chat platform via an
// Adapter, fans inbound messages out to a worker pool, and runs the idle
// sweeper and digest scheduler alongside.
type Daemon struct {
	cfg      *config.Config
	adapter  Adapter
	registry *SessionRegistry
	ledger   *rank.Ledger
	history  *history.Store
	backend  Backend
	out      io.Writer
}

// DaemonOpts holds parameters for creating a Daemon.
type DaemonOpts struct {
	Config   *config.Config
	Adapter  Adapter
	Ledger   *rank.Ledger
	History  *history.Store
	Backend  Backend
	Registry *SessionRegistry // optional; a fresh registry by default
	Out      io.Writer        // defaults to os.Stdout
}

// NewDaemon creates a Daemon with the given options.
func NewDaemon(opts DaemonOpts) (*Daemon, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("relay: config is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("relay: adapter is required")
	}
	if opts.Ledger == nil {
		return nil, fmt.Errorf("relay: rank ledger is required")
	}
	if opts.History == nil {
		return nil, fmt.Errorf("relay: history store is required")
	}
	if opts.Backend == nil {
		return nil, fmt.Errorf("relay: model backend is required")
	}
	registry := opts.Registry
	if registry == nil {
		registry = NewSessionRegistry()
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Daemon{
		cfg:      opts.Config,
		adapter:  opts.Adapter,
		registry: registry,
		ledger:   opts.Ledger,
		history:  opts.History,
		backend:  opts.Backend,
		out:      out,
	}, nil
}

// Registry exposes the session registry (dashboard stats).
func (d *Daemon) Registry() *SessionRegistry {
	return d.registry
}

// Run starts the bot. It connects the adapter, builds all subsystems
// (Engine, Router, Sweeper, digest scheduler), and blocks until the context
// is cancelled. The worker pool keeps blocking model calls — including
// their backoff sleeps — off the inbound pump, so other chats stay
// responsive.
func (d *Daemon) Run(ctx context.Context) error {
	fmt.Fprintf(d.out, "Kisaragi connecting...\n")
	if err := d.adapter.Connect(ctx); err != nil {
		return fmt.Errorf("relay: connect: %w", err)
	}

	// Extract bot user ID if the adapter supports it.
	var botUserID string
	if bui, ok := d.adapter.(BotUserIDer); ok {
		botUserID = bui.BotUserID()
	}

	engine, err := NewEngine(EngineOpts{
		History: d.history,
		Backend: d.backend,
		Model:   d.cfg.Ollama.Model,
		Persona: d.cfg.Persona,
	})
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("relay: build engine: %w", err)
	}

	router, err := NewRouter(RouterOpts{
		Registry:  d.registry,
		Ledger:    d.ledger,
		Engine:    engine,
		Adapter:   d.adapter,
		BotUserID: botUserID,
		Out:       d.out,
	})
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("relay: build router: %w", err)
	}

	sweeper, err := NewSweeper(SweeperOpts{
		Registry: d.registry,
		Adapter:  d.adapter,
		Interval: d.cfg.SweepInterval(),
		Timeout:  d.cfg.IdleTimeout(),
		Out:      d.out,
	})
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("relay: build sweeper: %w", err)
	}

	inbound, err := d.adapter.Listen(ctx)
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("relay: listen: %w", err)
	}

	go sweeper.Run(ctx)
	go d.runDigestScheduler(ctx)

	// Worker pool: each worker pulls from the inbound channel directly, so
	// one user's retry backoff never stalls another chat.
	workers := d.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range inbound {
				router.Handle(ctx, msg)
			}
		}()
	}

	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(drained)
	}()

	fmt.Fprintf(d.out, "Kisaragi online\n")

	select {
	case <-ctx.Done():
		fmt.Fprintf(d.out, "Kisaragi shutting down...\n")
		if err := d.adapter.Close(); err != nil {
			log.Printf("relay: close adapter: %v", err)
		}
		<-drained
		fmt.Fprintf(d.out, "Kisaragi stopped\n")
		return nil

	case <-drained:
		// Adapter closed the inbound channel.
		fmt.Fprintf(d.out, "Kisaragi inbound channel closed\n")
		return nil
	}
}
