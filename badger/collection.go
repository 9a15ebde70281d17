package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/meikuraledutech/chartflow"
)

func collectionKey(session string) []byte { return []byte("collection/" + session) }

// LoadCollection returns nil, nil if nothing is stored for session.
func (s *Store) LoadCollection(ctx context.Context, session string) (*chartflow.Collection, error) {
	var c *chartflow.Collection
	err := s.view(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(collectionKey(session))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			c = &chartflow.Collection{}
			return json.Unmarshal(val, c)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("chartflow: load collection: %w", err)
	}
	return c, nil
}

func (s *Store) SaveCollection(ctx context.Context, session string, c *chartflow.Collection) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("chartflow: encode collection: %w", err)
	}
	if err := s.update(ctx, func(txn *badger.Txn) error {
		return txn.Set(collectionKey(session), data)
	}); err != nil {
		return fmt.Errorf("chartflow: save collection: %w", err)
	}
	return nil
}

func (s *Store) DeleteCollection(ctx context.Context, session string) error {
	if err := s.update(ctx, func(txn *badger.Txn) error {
		return txn.Delete(collectionKey(session))
	}); err != nil {
		return fmt.Errorf("chartflow: delete collection: %w", err)
	}
	return nil
}
