package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meikuraledutech/chartflow/claims"
	"github.com/meikuraledutech/chartflow/navigator"
)

var errSessionNotFound = errors.New("session not found")

// session is one user's running questionnaire.
type session struct {
	mu     sync.Mutex
	cursor navigator.Cursor
	claim  *claims.Tracker

	touched time.Time // guarded by registry.mu
}

// registry holds running questionnaires in memory. Sessions end when they
// reach a terminal node, are deleted, or sit idle past the sweep limit.
type registry struct {
	mu  sync.RWMutex
	m   map[string]*session
	now func() time.Time
}

func newRegistry() *registry {
	return &registry{m: make(map[string]*session), now: time.Now}
}

func (r *registry) add(sess *session) string {
	id := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	sess.touched = r.now()
	r.m[id] = sess
	return id
}

// get returns the session and marks it as used.
func (r *registry) get(id string) (*session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.m[id]
	if !ok {
		return nil, errSessionNotFound
	}
	sess.touched = r.now()
	return sess, nil
}

func (r *registry) remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.m[id]
	delete(r.m, id)
	return ok
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.m)
}

// sweep drops sessions untouched for longer than idle and reports how many.
func (r *registry) sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, sess := range r.m {
		if sess.touched.Before(cutoff) {
			delete(r.m, id)
			n++
		}
	}
	return n
}

// expire sweeps every interval until ctx is done.
func (r *registry) expire(ctx context.Context, interval, idle time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.sweep(idle); n > 0 {
				logger.Info("expired idle sessions", "count", n, "remaining", r.len())
			}
		}
	}
}
