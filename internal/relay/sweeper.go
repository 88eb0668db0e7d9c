package relay

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// Sweeper defaults.
const (
	DefaultSweepInterval = 60 * time.Second
	DefaultIdleTimeout   = 5 * time.Minute
)

// Sweeper periodically evicts talk sessions that have gone idle past the
// timeout, notifying the chat each time. It runs fully decoupled from
// message handling; the registry's locking keeps concurrent mutation safe.
type Sweeper struct {
	registry *SessionRegistry
	adapter  Adapter
	interval time.Duration
	timeout  time.Duration
	out      io.Writer
}

// SweeperOpts holds parameters for creating a Sweeper.
type SweeperOpts struct {
	Registry *SessionRegistry
	Adapter  Adapter
	Interval time.Duration // defaults to DefaultSweepInterval
	Timeout  time.Duration // defaults to DefaultIdleTimeout
	Out      io.Writer     // defaults to os.Stdout
}

// NewSweeper creates a Sweeper.
func NewSweeper(opts SweeperOpts) (*Sweeper, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("relay: sweeper: session registry is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("relay: sweeper: adapter is required")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultIdleTimeout
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Sweeper{
		registry: opts.Registry,
		adapter:  opts.Adapter,
		interval: interval,
		timeout:  timeout,
		out:      out,
	}, nil
}

// Run sweeps on a fixed period until the context is cancelled. The first
// sweep fires after one full interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(ctx); n > 0 {
				fmt.Fprintf(s.out, "relay: sweeper: evicted %d idle session(s)\n", n)
			}
		}
	}
}

// Sweep runs one eviction pass and returns the number of sessions evicted.
// Pairs already gone by the time Stop runs are counted as races, not
// evictions. Notification failures are logged and never abort the pass.
func (s *Sweeper) Sweep(ctx context.Context) int {
	stale := s.registry.StaleSessions(s.timeout)

	evicted := 0
	for _, sess := range stale {
		if !s.registry.Stop(sess.ChatID, sess.UserID) {
			continue
		}
		evicted++

		name := sess.UserName
		if name == "" {
			name = anonymousUserName
		}
		text := fmt.Sprintf("%s went quiet, so I've ended our talk for now. Use `%s talk` to chat again, Master! (｡•́︿•̀｡)",
			name, commandPrefix)
		if err := s.adapter.Send(ctx, OutboundMessage{ChatID: sess.ChatID, Text: text}); err != nil {
			log.Printf("relay: sweeper: notify chat %s: %v", sess.ChatID, err)
		}
	}
	return evicted
}
