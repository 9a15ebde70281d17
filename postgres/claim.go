package postgres

import (
	"context"
	"fmt"

	"github.com/meikuraledutech/chartflow/claims"
)

// CreateClaim inserts a claim.
func (s *PGStore) CreateClaim(ctx context.Context, c claims.Claim) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO claims (id, user_id, claim, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.UserID, c.Text, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("claims: insert: %w", err)
	}
	return nil
}

// GetClaim fetches a single claim by its ID.
// Returns nil, nil if not found.
func (s *PGStore) GetClaim(ctx context.Context, id string) (*claims.Claim, error) {
	var c claims.Claim
	err := s.db.QueryRow(ctx,
		`SELECT id, user_id, claim, created_at, updated_at FROM claims WHERE id = $1`, id,
	).Scan(&c.ID, &c.UserID, &c.Text, &c.CreatedAt, &c.UpdatedAt)

	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("claims: get: %w", err)
	}
	return &c, nil
}

// ListClaims returns a user's claims, most recently updated first.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListClaims(ctx context.Context, userID string) ([]claims.Claim, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, claim, created_at, updated_at FROM claims
		 WHERE user_id = $1 ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("claims: list: %w", err)
	}
	defer rows.Close()

	out := []claims.Claim{}
	for rows.Next() {
		var c claims.Claim
		if err := rows.Scan(&c.ID, &c.UserID, &c.Text, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("claims: scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claims: rows: %w", err)
	}
	return out, nil
}

// UpdateClaim writes the text and timestamps of an existing claim.
// Returns claims.ErrNotFound if the claim doesn't exist.
func (s *PGStore) UpdateClaim(ctx context.Context, c claims.Claim) error {
	ct, err := s.db.Exec(ctx,
		`UPDATE claims SET claim = $1, updated_at = $2 WHERE id = $3`,
		c.Text, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("claims: update: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return claims.ErrNotFound
	}
	return nil
}
