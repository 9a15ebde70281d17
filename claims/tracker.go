package claims

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultText is shown when no saved claim can be fetched.
const DefaultText = "Be a hero, fly carbon zero"

// Fetcher loads the saved claim text.
type Fetcher func(ctx context.Context) (string, error)

// Tracker holds the claim text a running questionnaire displays. Refresh
// loads it in the background; a result arriving after a newer Set or Refresh
// is dropped.
type Tracker struct {
	mu       sync.Mutex
	text     string
	gen      uint64
	fallback string
	timeout  time.Duration
	logger   *slog.Logger
}

func NewTracker(fallback string, timeout time.Duration, logger *slog.Logger) *Tracker {
	if fallback == "" {
		fallback = DefaultText
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{text: fallback, fallback: fallback, timeout: timeout, logger: logger}
}

// Text returns the current claim text.
func (t *Tracker) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.text
}

// Set replaces the text and supersedes any fetch in flight.
func (t *Tracker) Set(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	t.text = text
}

// Refresh starts fetching in the background and returns at once. The
// returned channel is closed when the fetch has been applied or discarded.
// Errors, timeouts and empty results fall back to the default text.
func (t *Tracker) Refresh(ctx context.Context, fetch Fetcher) <-chan struct{} {
	t.mu.Lock()
	t.gen++
	gen := t.gen
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx := context.WithoutCancel(ctx)
		if t.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, t.timeout)
			defer cancel()
		}

		text, err := fetch(ctx)
		if err != nil {
			t.logger.Warn("claim fetch failed, using default", "error", err)
			text = t.fallback
		} else if text == "" {
			text = t.fallback
		}

		t.mu.Lock()
		defer t.mu.Unlock()
		if gen != t.gen {
			t.logger.Debug("discarding stale claim fetch", "generation", gen)
			return
		}
		t.text = text
	}()
	return done
}
