package badger

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/meikuraledutech/chartflow"
	"github.com/meikuraledutech/chartflow/claims"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestOpenWithPathPersists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	col := &chartflow.Collection{Active: "c1", Charts: []chartflow.Chart{{ID: "c1", Name: "Intro"}}}

	s, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, s.SaveCollection(ctx, "default", col))
	require.NoError(t, s.Close())

	s, err = Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer s.Close()
	got, err := s.LoadCollection(ctx, "default")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Intro", got.Charts[0].Name)
}

func TestCollectionRoundTrip(t *testing.T) {
	s := openInMemory(t)
	ctx := context.Background()

	got, err := s.LoadCollection(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got)

	col := &chartflow.Collection{
		Active: "c1",
		Charts: []chartflow.Chart{{
			ID:   "c1",
			Name: "Intro",
			Nodes: []chartflow.Node{
				{ID: "s", Payload: chartflow.Start{Next: chartflow.To("q")}},
				{ID: "q", Payload: chartflow.YesNo{Yes: chartflow.Terminal(), No: chartflow.To("s")}},
			},
		}},
	}
	require.NoError(t, s.SaveCollection(ctx, "a", col))
	require.NoError(t, s.SaveCollection(ctx, "b", &chartflow.Collection{}))

	got, err = s.LoadCollection(ctx, "a")
	require.NoError(t, err)
	want, _ := json.Marshal(col)
	have, _ := json.Marshal(got)
	assert.JSONEq(t, string(want), string(have))

	require.NoError(t, s.DeleteCollection(ctx, "a"))
	got, err = s.LoadCollection(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got)

	other, err := s.LoadCollection(ctx, "b")
	require.NoError(t, err)
	assert.NotNil(t, other)

	require.NoError(t, s.DropSchema(ctx))
	other, err = s.LoadCollection(ctx, "b")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestClaims(t *testing.T) {
	s := openInMemory(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateClaim(ctx, claims.Claim{ID: "1", UserID: "u", Text: "older", CreatedAt: base, UpdatedAt: base}))
	require.NoError(t, s.CreateClaim(ctx, claims.Claim{ID: "2", UserID: "u", Text: "newer", CreatedAt: base, UpdatedAt: base.Add(time.Hour)}))
	require.NoError(t, s.CreateClaim(ctx, claims.Claim{ID: "3", UserID: "u/x", Text: "other user", CreatedAt: base, UpdatedAt: base}))

	list, err := s.ListClaims(ctx, "u")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].Text)

	require.NoError(t, s.UpdateClaim(ctx, claims.Claim{ID: "1", Text: "revised", UpdatedAt: base.Add(2 * time.Hour)}))
	got, err := s.GetClaim(ctx, "1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "revised", got.Text)
	assert.Equal(t, "u", got.UserID, "update never changes the owner")

	list, err = s.ListClaims(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, "1", list[0].ID)

	missing, err := s.GetClaim(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.ErrorIs(t, s.UpdateClaim(ctx, claims.Claim{ID: "nope"}), claims.ErrNotFound)

	empty, err := s.ListClaims(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCancelledContext(t *testing.T) {
	s := openInMemory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.SaveCollection(ctx, "a", &chartflow.Collection{}), context.Canceled)
}
