package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/bookmarkhive/hivecache/internal/domain"
	"github.com/bookmarkhive/hivecache/internal/id"
)

// tagPrefix stores per-owner tag records: tag:<ownerID>:<slug> -> Tag JSON.
const tagPrefix = "tag:"

func tagKey(ownerID, slug string) []byte {
	return []byte(tagPrefix + ownerID + ":" + slug)
}

func getTagTxn(txn *badger.Txn, ownerID, slug string) (*domain.Tag, error) {
	item, err := txn.Get(tagKey(ownerID, slug))
	if err != nil {
		return nil, err
	}

	var tag domain.Tag
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &tag)
	})
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

func setTagTxn(txn *badger.Txn, tag *domain.Tag) error {
	data, err := json.Marshal(tag)
	if err != nil {
		return fmt.Errorf("marshal tag: %w", err)
	}
	return txn.Set(tagKey(tag.OwnerID, tag.Slug), data)
}

// ApplyTagDelta adjusts an owner's tag usage counts after a bookmark
// mutation. Tags in added are incremented (created at count 1 if new),
// tags in removed are decremented and deleted once unused.
func (s *Store) ApplyTagDelta(ctx context.Context, ownerID string, added, removed []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(added) == 0 && len(removed) == 0 {
		return nil
	}

	return s.db.Update(func(txn *badger.Txn) error {
		for _, slug := range added {
			tag, err := getTagTxn(txn, ownerID, slug)
			if errors.Is(err, badger.ErrKeyNotFound) {
				now := time.Now()
				tag = &domain.Tag{
					ID:            id.MustGenerate("tag"),
					OwnerID:       ownerID,
					Slug:          slug,
					BookmarkCount: 0,
					CreatedAt:     now,
					UpdatedAt:     now,
				}
			} else if err != nil {
				return fmt.Errorf("get tag %s: %w", slug, err)
			}

			tag.BookmarkCount++
			tag.Touch()
			if err := setTagTxn(txn, tag); err != nil {
				return err
			}
		}

		for _, slug := range removed {
			tag, err := getTagTxn(txn, ownerID, slug)
			if errors.Is(err, badger.ErrKeyNotFound) {
				// Counts drifted, nothing to decrement.
				continue
			}
			if err != nil {
				return fmt.Errorf("get tag %s: %w", slug, err)
			}

			tag.BookmarkCount--
			if tag.BookmarkCount <= 0 {
				if err := txn.Delete(tagKey(ownerID, slug)); err != nil {
					return err
				}
				continue
			}
			tag.Touch()
			if err := setTagTxn(txn, tag); err != nil {
				return err
			}
		}

		return nil
	})
}

// ListTags returns all of an owner's tags sorted by slug.
func (s *Store) ListTags(ctx context.Context, ownerID string) ([]*domain.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(tagPrefix + ownerID + ":")

	var tags []*domain.Tag
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var tag domain.Tag
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &tag)
			})
			if err != nil {
				return err
			}
			tags = append(tags, &tag)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}

	sort.Slice(tags, func(i, j int) bool {
		return tags[i].Slug < tags[j].Slug
	})

	return tags, nil
}
