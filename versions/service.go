// Package versions owns the chart collection of one editing session: its live
// graphs, editor mutations and the append-only published history.
//
// A Service is opened against a chartflow.Store, mutated, and closed. Every
// mutation is applied to a copy of the collection, persisted, and only then
// made visible, so a failed save leaves the previous state intact.
package versions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meikuraledutech/chartflow"
	"github.com/meikuraledutech/chartflow/compile"
	"github.com/meikuraledutech/chartflow/metrics"
)

// DefaultColor is the tab color of a new chart.
const DefaultColor = "#ffffff"

var ErrClosed = errors.New("versions: service is closed")

// Service is the single source of truth for a session's charts.
// It is safe for concurrent use; mutations are serialized.
type Service struct {
	mu      sync.RWMutex
	store   chartflow.Store
	session string
	col     *chartflow.Collection
	closed  bool

	logger   *slog.Logger
	compiler *compile.Compiler
	metrics  *metrics.Metrics
	now      func() time.Time
	newID    func() string
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

func WithCompiler(c *compile.Compiler) Option { return func(s *Service) { s.compiler = c } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithClock sets the time source used for version dates.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithIDs sets the generator for chart, node and edge ids.
func WithIDs(newID func() string) Option { return func(s *Service) { s.newID = newID } }

// Open loads the session's collection from store, starting empty when none
// is stored yet.
func Open(ctx context.Context, store chartflow.Store, session string, opts ...Option) (*Service, error) {
	s := &Service{
		store:   store,
		session: session,
		logger:  slog.Default(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.compiler == nil {
		s.compiler = compile.New(s.logger, compile.WithProblemHook(func(p compile.Problem) {
			s.metrics.CompileProblem(string(p.Reason))
		}))
	}

	col, err := store.LoadCollection(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("versions: load session %s: %w", session, err)
	}
	if col == nil {
		col = &chartflow.Collection{}
	}
	s.col = col
	s.logger.Debug("session opened", "session", session, "charts", len(col.Charts))
	return s, nil
}

// Close persists the collection one last time and rejects further use.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.store.SaveCollection(ctx, s.session, s.col); err != nil {
		return fmt.Errorf("versions: save session %s: %w", s.session, err)
	}
	return nil
}

// Session returns the session key the service persists under.
func (s *Service) Session() string { return s.session }

// Snapshot returns a deep copy of the whole collection.
func (s *Service) Snapshot() *chartflow.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.col.Clone()
}

// Chart returns a copy of the chart with id or name ref.
func (s *Service) Chart(ref string) (chartflow.Chart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, err := s.col.Chart(ref)
	if err != nil {
		return chartflow.Chart{}, err
	}
	return ch.Clone(), nil
}

// ListCharts returns copies of all charts in collection order.
func (s *Service) ListCharts() []chartflow.Chart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chartflow.Chart, len(s.col.Charts))
	for i, ch := range s.col.Charts {
		out[i] = ch.Clone()
	}
	return out
}

// Active returns the currently selected chart.
func (s *Service) Active() (chartflow.Chart, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.col.Active == "" {
		return chartflow.Chart{}, false
	}
	ch, err := s.col.Chart(s.col.Active)
	if err != nil {
		return chartflow.Chart{}, false
	}
	return ch.Clone(), true
}

// mutate runs fn on a copy of the collection, saves it, and swaps it in.
func (s *Service) mutate(ctx context.Context, fn func(col *chartflow.Collection) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	next := s.col.Clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := s.store.SaveCollection(ctx, s.session, next); err != nil {
		return fmt.Errorf("versions: save session %s: %w", s.session, err)
	}
	s.col = next
	return nil
}

// withChart runs fn on the chart ref inside a mutation.
func (s *Service) withChart(ctx context.Context, ref string, fn func(col *chartflow.Collection, ch *chartflow.Chart) error) error {
	return s.mutate(ctx, func(col *chartflow.Collection) error {
		i := col.Index(ref)
		if i < 0 {
			return fmt.Errorf("%w: %q", chartflow.ErrChartNotFound, ref)
		}
		return fn(col, &col.Charts[i])
	})
}

// compile resolves ch against the rest of col.
func (s *Service) compile(col *chartflow.Collection, ch *chartflow.Chart) {
	ch.Nodes = s.compiler.Compile(ch.Nodes, ch.Edges, col.Charts)
}
