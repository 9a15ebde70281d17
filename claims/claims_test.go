package claims

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu    sync.Mutex
	byID  map[string]Claim
	calls int
}

func newMemStore() *memStore { return &memStore{byID: map[string]Claim{}} }

func (m *memStore) CreateClaim(_ context.Context, c Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.byID[c.ID] = c
	return nil
}

func (m *memStore) GetClaim(_ context.Context, id string) (*Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	c, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memStore) ListClaims(_ context.Context, userID string) ([]Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	var out []Claim
	for _, c := range m.byID {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) UpdateClaim(_ context.Context, c Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.byID[c.ID] = c
	return nil
}

// tick returns a clock that advances one minute per call.
func tick() func() time.Time {
	t := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

func ids() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("claim-%d", n)
	}
}

func TestUnauthenticatedNeverTouchesStore(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store)

	_, err := svc.Create(ctx, "", CreateRequest{Claim: "x"})
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = svc.List(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = svc.Update(ctx, "", UpdateRequest{ID: "a"})
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Zero(t, store.calls)
}

func TestCreateAndList(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemStore(), WithClock(tick()), WithIDs(ids()))

	first, err := svc.Create(ctx, "u1", CreateRequest{Claim: "  plant trees  "})
	require.NoError(t, err)
	assert.Equal(t, "plant trees", first.Text)
	assert.Equal(t, StatusInProgress, first.Status)
	assert.Equal(t, 0, first.Progress)

	_, err = svc.Create(ctx, "u1", CreateRequest{Claim: "ride bikes"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "u2", CreateRequest{Claim: "not mine"})
	require.NoError(t, err)

	list, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ride bikes", list[0].Text)
	assert.Equal(t, 30, list[0].Progress)

	_, err = svc.Update(ctx, "u1", UpdateRequest{ID: first.ID})
	require.NoError(t, err)
	latest, err := svc.Latest(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "plant trees", latest, "touching a claim moves it to the front")
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemStore())
	_, err := svc.Create(context.Background(), "u1", CreateRequest{Claim: "   "})
	assert.ErrorIs(t, err, ErrInvalidClaim)
	_, err = svc.Create(context.Background(), "u1", CreateRequest{Claim: strings.Repeat("a", 2001)})
	assert.ErrorIs(t, err, ErrInvalidClaim)
}

func TestUpdateChecksOwnership(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemStore(), WithClock(tick()), WithIDs(ids()))
	c, err := svc.Create(ctx, "owner", CreateRequest{Claim: "original"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, "intruder", UpdateRequest{ID: c.ID, Claim: "hijacked"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Update(ctx, "owner", UpdateRequest{ID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)

	up, err := svc.Update(ctx, "owner", UpdateRequest{ID: c.ID, Claim: "revised"})
	require.NoError(t, err)
	assert.Equal(t, "revised", up.Text)
	assert.True(t, up.UpdatedAt.After(c.UpdatedAt))
	assert.Equal(t, c.CreatedAt, up.CreatedAt)
}

func TestTrackerRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("applies fetched text", func(t *testing.T) {
		tr := NewTracker("", time.Second, nil)
		assert.Equal(t, DefaultText, tr.Text())
		<-tr.Refresh(ctx, func(context.Context) (string, error) { return "saved", nil })
		assert.Equal(t, "saved", tr.Text())
	})

	t.Run("falls back on error", func(t *testing.T) {
		tr := NewTracker("fallback", time.Second, nil)
		tr.Set("typed")
		<-tr.Refresh(ctx, func(context.Context) (string, error) { return "", errors.New("offline") })
		assert.Equal(t, "fallback", tr.Text())
	})

	t.Run("falls back on timeout", func(t *testing.T) {
		tr := NewTracker("", 10*time.Millisecond, nil)
		<-tr.Refresh(ctx, func(ctx context.Context) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})
		assert.Equal(t, DefaultText, tr.Text())
	})

	t.Run("stale fetch is discarded", func(t *testing.T) {
		tr := NewTracker("", time.Second, nil)
		release := make(chan struct{})
		done := tr.Refresh(ctx, func(context.Context) (string, error) {
			<-release
			return "stale", nil
		})
		tr.Set("newer")
		close(release)
		<-done
		assert.Equal(t, "newer", tr.Text())
	})

	t.Run("older refresh loses to newer", func(t *testing.T) {
		tr := NewTracker("", time.Second, nil)
		release := make(chan struct{})
		slow := tr.Refresh(ctx, func(context.Context) (string, error) {
			<-release
			return "slow", nil
		})
		<-tr.Refresh(ctx, func(context.Context) (string, error) { return "fast", nil })
		close(release)
		<-slow
		assert.Equal(t, "fast", tr.Text())
	})
}
