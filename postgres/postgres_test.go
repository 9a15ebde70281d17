package postgres

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meikuraledutech/chartflow"
	"github.com/meikuraledutech/chartflow/claims"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore connects to DATABASE_URL or skips.
func newTestStore(t *testing.T) *PGStore {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	s := New(pool)
	require.NoError(t, s.CreateSchema(ctx))
	return s
}

func TestCollectionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	session := "test-" + uuid.NewString()
	t.Cleanup(func() { _ = s.DeleteCollection(ctx, session) })

	got, err := s.LoadCollection(ctx, session)
	require.NoError(t, err)
	assert.Nil(t, got)

	col := &chartflow.Collection{
		Active: "c1",
		Charts: []chartflow.Chart{{
			ID:   "c1",
			Name: "Intro",
			Nodes: []chartflow.Node{
				{ID: "s", Payload: chartflow.Start{Next: chartflow.To("e")}},
				{ID: "e", Payload: chartflow.End{Next: chartflow.Terminal()}},
			},
			Edges: []chartflow.Edge{{ID: "e1", Source: "s", Target: "e"}},
			PublishedVersions: []chartflow.Version{{
				Version: 1,
				Date:    time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
				Message: "first",
			}},
		}},
	}
	require.NoError(t, s.SaveCollection(ctx, session, col))

	got, err = s.LoadCollection(ctx, session)
	require.NoError(t, err)
	require.NotNil(t, got)
	want, _ := json.Marshal(col)
	have, _ := json.Marshal(got)
	assert.JSONEq(t, string(want), string(have))

	col.Active = ""
	require.NoError(t, s.SaveCollection(ctx, session, col))
	got, err = s.LoadCollection(ctx, session)
	require.NoError(t, err)
	assert.Empty(t, got.Active)

	require.NoError(t, s.DeleteCollection(ctx, session))
	got, err = s.LoadCollection(ctx, session)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClaims(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := "user-" + uuid.NewString()
	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	older := claims.Claim{ID: uuid.NewString(), UserID: user, Text: "older", CreatedAt: base, UpdatedAt: base}
	newer := claims.Claim{ID: uuid.NewString(), UserID: user, Text: "newer", CreatedAt: base, UpdatedAt: base.Add(time.Hour)}
	require.NoError(t, s.CreateClaim(ctx, older))
	require.NoError(t, s.CreateClaim(ctx, newer))

	list, err := s.ListClaims(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].Text)

	older.Text = "revised"
	older.UpdatedAt = base.Add(2 * time.Hour)
	require.NoError(t, s.UpdateClaim(ctx, older))

	got, err := s.GetClaim(ctx, older.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "revised", got.Text)
	assert.True(t, got.UpdatedAt.Equal(older.UpdatedAt))

	missing, err := s.GetClaim(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = s.UpdateClaim(ctx, claims.Claim{ID: uuid.NewString()})
	assert.ErrorIs(t, err, claims.ErrNotFound)

	empty, err := s.ListClaims(ctx, "nobody-"+uuid.NewString())
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
