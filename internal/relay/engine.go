package relay

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/zulandar/kisaragi/internal/history"
	"github.com/zulandar/kisaragi/internal/llm"
)

// Apology is the terminal reply when the model backend fails on every
// attempt. A failed exchange leaves no conversation log record.
const Apology = "Sorry, I encountered an error processing your request."

// Engine retry policy defaults.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// Backend is the synchronous model endpoint the engine queries.
type Backend interface {
	Chat(ctx context.Context, model string, messages []llm.Message) (string, error)
}

// Engine assembles bounded conversation context, queries the model backend
// with bounded retry and doubling backoff, and persists successful turns.
// Reply blocks for the sum of attempt latencies plus backoff sleeps, so
// callers run it off the dispatch path.
type Engine struct {
	history      *history.Store
	backend      Backend
	model        string
	persona      string
	historyLimit int
	maxAttempts  int
	baseDelay    time.Duration
}

// EngineOpts holds parameters for creating an Engine.
type EngineOpts struct {
	History      *history.Store
	Backend      Backend
	Model        string
	Persona      string
	HistoryLimit int           // defaults to history.DefaultHistoryLimit
	MaxAttempts  int           // defaults to DefaultMaxAttempts
	BaseDelay    time.Duration // defaults to DefaultBaseDelay
}

// NewEngine creates an Engine.
func NewEngine(opts EngineOpts) (*Engine, error) {
	if opts.History == nil {
		return nil, fmt.Errorf("relay: engine: history store is required")
	}
	if opts.Backend == nil {
		return nil, fmt.Errorf("relay: engine: backend is required")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("relay: engine: model is required")
	}
	historyLimit := opts.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = history.DefaultHistoryLimit
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return &Engine{
		history:      opts.History,
		backend:      opts.Backend,
		model:        opts.Model,
		persona:      opts.Persona,
		historyLimit: historyLimit,
		maxAttempts:  maxAttempts,
		baseDelay:    baseDelay,
	}, nil
}

// Reply queries the model with the user's recent history plus the new
// message and returns the completion. On terminal backend failure it
// returns Apology and persists nothing. The returned string is never empty.
func (e *Engine) Reply(ctx context.Context, userID, userMessage string) string {
	hist, err := e.history.RecentHistory(userID, e.historyLimit)
	if err != nil {
		// Degraded: answer without context rather than not at all.
		log.Printf("relay: engine: read history for %s: %v", userID, err)
		hist = nil
	}

	messages := make([]llm.Message, 0, len(hist)+2)
	messages = append(messages, llm.Message{Role: "system", Content: e.persona})
	messages = append(messages, hist...)
	messages = append(messages, llm.Message{Role: "user", Content: userMessage})

	delay := e.baseDelay
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		text, err := e.backend.Chat(ctx, e.model, messages)
		if err == nil {
			if appendErr := e.history.Append(userID, userMessage, text); appendErr != nil {
				log.Printf("relay: engine: persist turn for %s: %v", userID, appendErr)
			}
			return text
		}

		log.Printf("relay: engine: model call for %s failed (attempt %d/%d): %v",
			userID, attempt, e.maxAttempts, err)

		if attempt == e.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return Apology
		case <-time.After(delay):
		}
		delay *= 2
	}
	return Apology
}
