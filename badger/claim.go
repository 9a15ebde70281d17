package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/meikuraledutech/chartflow/claims"
)

// Claims are stored under claim/<user>/<id> with an owner index at
// claim-owner/<id>, so listing is a prefix scan. User ids are escaped so one
// user's prefix never covers another's.
func claimKey(userID, id string) []byte { return append(claimPrefix(userID), id...) }
func claimPrefix(userID string) []byte  { return []byte("claim/" + url.PathEscape(userID) + "/") }
func ownerKey(id string) []byte         { return []byte("claim-owner/" + id) }

func (s *Store) CreateClaim(ctx context.Context, c claims.Claim) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("claims: encode: %w", err)
	}
	err = s.update(ctx, func(txn *badger.Txn) error {
		if err := txn.Set(claimKey(c.UserID, c.ID), data); err != nil {
			return err
		}
		return txn.Set(ownerKey(c.ID), []byte(c.UserID))
	})
	if err != nil {
		return fmt.Errorf("claims: insert: %w", err)
	}
	return nil
}

// GetClaim returns nil, nil if the id is unknown.
func (s *Store) GetClaim(ctx context.Context, id string) (*claims.Claim, error) {
	var c *claims.Claim
	err := s.view(ctx, func(txn *badger.Txn) error {
		found, err := getClaim(txn, id)
		c = found
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("claims: get: %w", err)
	}
	return c, nil
}

func getClaim(txn *badger.Txn, id string) (*claims.Claim, error) {
	item, err := txn.Get(ownerKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	owner, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	item, err = txn.Get(claimKey(string(owner), id))
	if err != nil {
		return nil, err
	}
	var c claims.Claim
	if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &c) }); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListClaims returns a user's claims, most recently updated first.
func (s *Store) ListClaims(ctx context.Context, userID string) ([]claims.Claim, error) {
	out := []claims.Claim{}
	err := s.view(ctx, func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := claimPrefix(userID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var c claims.Claim
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &c) }); err != nil {
				return err
			}
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claims: list: %w", err)
	}
	slices.SortStableFunc(out, func(a, b claims.Claim) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
	return out, nil
}

// UpdateClaim returns claims.ErrNotFound if the claim doesn't exist.
func (s *Store) UpdateClaim(ctx context.Context, c claims.Claim) error {
	err := s.update(ctx, func(txn *badger.Txn) error {
		cur, err := getClaim(txn, c.ID)
		if err != nil {
			return err
		}
		if cur == nil {
			return claims.ErrNotFound
		}
		cur.Text, cur.UpdatedAt = c.Text, c.UpdatedAt
		data, err := json.Marshal(cur)
		if err != nil {
			return err
		}
		return txn.Set(claimKey(cur.UserID, cur.ID), data)
	})
	if errors.Is(err, claims.ErrNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("claims: update: %w", err)
	}
	return nil
}
