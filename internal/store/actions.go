package store

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/bookmarkhive/hivecache/internal/domain"
	"github.com/bookmarkhive/hivecache/internal/id"
)

// actionPrefix scopes the append-only index action log per owner:
// action:<ownerID>:<actionID> -> IndexAction JSON.
//
// Action IDs are fixed-width and issued by a monotonic sequence, so key
// order within an owner's prefix is append order.
const actionPrefix = "action:"

func actionKey(ownerID, actionID string) []byte {
	return []byte(actionPrefix + ownerID + ":" + actionID)
}

// appendActionTxn writes the next index action for an owner inside an open
// transaction. Callers must hold writeMu so log order matches commit order.
func (s *Store) appendActionTxn(txn *badger.Txn, actionType domain.ActionType, ownerID, bookmarkID string) (*domain.IndexAction, error) {
	seq, err := s.actionSeq.Next()
	if err != nil {
		return nil, fmt.Errorf("next action sequence: %w", err)
	}

	action := &domain.IndexAction{
		ID:         id.FormatAction(seq),
		Type:       actionType,
		BookmarkID: bookmarkID,
		OwnerID:    ownerID,
		CreatedAt:  time.Now(),
	}

	data, err := json.Marshal(action)
	if err != nil {
		return nil, fmt.Errorf("marshal action: %w", err)
	}

	if err := txn.Set(actionKey(ownerID, action.ID), data); err != nil {
		return nil, fmt.Errorf("append action: %w", err)
	}

	return action, nil
}

// ListActionsAfter returns up to limit of the owner's index actions with IDs
// strictly greater than afterID, oldest first, plus whether more remain.
// An empty afterID starts from the beginning of the owner's log.
func (s *Store) ListActionsAfter(ctx context.Context, ownerID, afterID string, limit int) ([]*domain.IndexAction, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if limit <= 0 {
		limit = 100
	}

	prefix := []byte(actionPrefix + ownerID + ":")

	var actions []*domain.IndexAction
	var hasMore bool

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		if afterID != "" {
			seekKey := actionKey(ownerID, afterID)
			it.Seek(seekKey)
			// Strictly after: skip the cursor action itself.
			if it.Valid() && string(it.Item().Key()) == string(seekKey) {
				it.Next()
			}
		} else {
			it.Seek(prefix)
		}

		count := 0
		for ; it.ValidForPrefix(prefix); it.Next() {
			if count == limit {
				hasMore = true
				break
			}

			var action domain.IndexAction
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &action)
			})
			if err != nil {
				return err
			}

			actions = append(actions, &action)
			count++
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("list actions: %w", err)
	}

	return actions, hasMore, nil
}

// LatestActionID returns the ID of the owner's most recent index action,
// or "" if the owner's log is empty. Snapshots hand this to clients as the
// checkpoint to diff from.
func (s *Store) LatestActionID(ctx context.Context, ownerID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	prefix := []byte(actionPrefix + ownerID + ":")

	var latest string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = true

		it := txn.NewIterator(opts)
		defer it.Close()

		// Seek past the end of the prefix, reverse iteration lands on the
		// last key within it.
		seekKey := append(append([]byte{}, prefix...), 0xFF)
		it.Seek(seekKey)
		if it.ValidForPrefix(prefix) {
			key := string(it.Item().Key())
			latest = key[len(prefix):]
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("latest action: %w", err)
	}

	return latest, nil
}
