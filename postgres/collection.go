package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/meikuraledutech/chartflow"
)

// LoadCollection reads the collection saved for session.
// Returns nil, nil if nothing is stored.
func (s *PGStore) LoadCollection(ctx context.Context, session string) (*chartflow.Collection, error) {
	var data []byte
	err := s.db.QueryRow(ctx,
		`SELECT data FROM chart_collections WHERE session = $1`, session,
	).Scan(&data)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("chartflow: load collection: %w", err)
	}

	var c chartflow.Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("chartflow: decode collection: %w", err)
	}
	return &c, nil
}

// SaveCollection replaces the collection stored for session.
func (s *PGStore) SaveCollection(ctx context.Context, session string, c *chartflow.Collection) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("chartflow: encode collection: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO chart_collections (session, data) VALUES ($1, $2)
		 ON CONFLICT (session) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		session, data,
	)
	if err != nil {
		return fmt.Errorf("chartflow: save collection: %w", err)
	}
	return nil
}

// DeleteCollection removes the collection for session.
// No error if the session doesn't exist.
func (s *PGStore) DeleteCollection(ctx context.Context, session string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM chart_collections WHERE session = $1`, session); err != nil {
		return fmt.Errorf("chartflow: delete collection: %w", err)
	}
	return nil
}
