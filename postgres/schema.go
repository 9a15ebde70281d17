package postgres

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS chart_collections (
    session    TEXT PRIMARY KEY,
    data       JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS claims (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL,
    claim      TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_claims_user_updated ON claims(user_id, updated_at DESC);
`

// CreateSchema creates the chart_collections and claims tables if they don't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops the claims and chart_collections tables.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS claims, chart_collections CASCADE;`)
	return err
}
