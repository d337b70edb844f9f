package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/bookmarkhive/hivecache/internal/domain"
)

const (
	bookmarkPrefix = "bookmark:"

	// Secondary indexes. All are owner-scoped so snapshot and diff scans
	// never cross user boundaries.
	bookmarkCurrentPrefix = "idx:bookmarks:current:" // <owner>:<createdAt>:<bookmarkID> -> bookmarkID
	bookmarkURLPrefix     = "idx:bookmarks:url:"     // <owner>:<normURL> -> current bookmarkID
	bookmarkLineagePrefix = "idx:bookmarks:lineage:" // <owner>:<normURL>:<bookmarkID> -> bookmarkID
)

var (
	ErrBookmarkNotFound = errors.New("bookmark not found")
	ErrBookmarkExists   = errors.New("bookmark already exists")
)

func bookmarkKey(id string) []byte {
	return []byte(bookmarkPrefix + id)
}

// formatSortableTimestamp renders a timestamp with fixed-width nanoseconds
// so lexicographic key order matches chronological order.
func formatSortableTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05") + fmt.Sprintf(".%09d", t.Nanosecond()) + "Z"
}

// currentIndexKey embeds the creation timestamp so a reverse scan over the
// owner's prefix yields current bookmarks newest first.
func currentIndexKey(ownerID string, createdAt time.Time, bookmarkID string) []byte {
	return []byte(bookmarkCurrentPrefix + ownerID + ":" + formatSortableTimestamp(createdAt) + ":" + bookmarkID)
}

func urlIndexKey(ownerID, normalizedURL string) []byte {
	return []byte(bookmarkURLPrefix + ownerID + ":" + normalizedURL)
}

func lineageIndexKey(ownerID, normalizedURL, bookmarkID string) []byte {
	return []byte(bookmarkLineagePrefix + ownerID + ":" + normalizedURL + ":" + bookmarkID)
}

// getBookmarkTxn loads a bookmark inside an open transaction.
func getBookmarkTxn(txn *badger.Txn, id string) (*domain.Bookmark, error) {
	item, err := txn.Get(bookmarkKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrBookmarkNotFound
	}
	if err != nil {
		return nil, err
	}

	var b domain.Bookmark
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &b)
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// setBookmarkTxn writes a bookmark inside an open transaction.
func setBookmarkTxn(txn *badger.Txn, b *domain.Bookmark) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal bookmark: %w", err)
	}
	return txn.Set(bookmarkKey(b.ID), data)
}

// CreateBookmark stores a new bookmark and appends a "created" action.
//
// If the owner already has a current bookmark for the same normalized URL,
// that bookmark is marked outdated and an "outdated" action precedes the
// "created" one. Both versions, their index entries and both log entries
// commit in a single transaction. Returns the ID of the bookmark that was
// outdated, or "" if the URL was new for this owner.
func (s *Store) CreateBookmark(ctx context.Context, b *domain.Bookmark) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var outdatedID string

	err := s.db.Update(func(txn *badger.Txn) error {
		outdatedID = ""

		if _, err := txn.Get(bookmarkKey(b.ID)); err == nil {
			return ErrBookmarkExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check bookmark exists: %w", err)
		}

		// Outdate the previous version of this URL, if any.
		urlKey := urlIndexKey(b.OwnerID, b.NormalizedURL)
		item, err := txn.Get(urlKey)
		if err == nil {
			var priorID string
			if err := item.Value(func(val []byte) error {
				priorID = string(val)
				return nil
			}); err != nil {
				return err
			}

			prior, err := getBookmarkTxn(txn, priorID)
			if err != nil {
				return fmt.Errorf("load prior version %s: %w", priorID, err)
			}

			prior.Outdated = true
			prior.Touch()
			if err := setBookmarkTxn(txn, prior); err != nil {
				return err
			}
			if err := txn.Delete(currentIndexKey(prior.OwnerID, prior.CreatedAt, prior.ID)); err != nil {
				return err
			}
			if _, err := s.appendActionTxn(txn, domain.ActionOutdated, prior.OwnerID, prior.ID); err != nil {
				return err
			}
			outdatedID = priorID
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check url index: %w", err)
		}

		// Write the new current version.
		if err := setBookmarkTxn(txn, b); err != nil {
			return err
		}
		if err := txn.Set(urlKey, []byte(b.ID)); err != nil {
			return err
		}
		if err := txn.Set(currentIndexKey(b.OwnerID, b.CreatedAt, b.ID), []byte(b.ID)); err != nil {
			return err
		}
		if err := txn.Set(lineageIndexKey(b.OwnerID, b.NormalizedURL, b.ID), []byte(b.ID)); err != nil {
			return err
		}
		if _, err := s.appendActionTxn(txn, domain.ActionCreated, b.OwnerID, b.ID); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return "", err
	}

	if s.logger != nil {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "bookmark created",
			slog.String("id", b.ID),
			slog.String("owner", b.OwnerID),
			slog.String("url", b.NormalizedURL),
			slog.String("outdated", outdatedID),
		)
	}
	return outdatedID, nil
}

// UpdateBookmark writes an in-place edit of a current bookmark and appends
// an "updated" action. The caller is responsible for applying the patch and
// touching timestamps. URLs are immutable, so no index maintenance is needed.
func (s *Store) UpdateBookmark(ctx context.Context, b *domain.Bookmark) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := getBookmarkTxn(txn, b.ID); err != nil {
			return err
		}
		if err := setBookmarkTxn(txn, b); err != nil {
			return err
		}
		if _, err := s.appendActionTxn(txn, domain.ActionUpdated, b.OwnerID, b.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("bookmark updated", "id", b.ID, "owner", b.OwnerID)
	}
	return nil
}

// DeleteBookmark removes a bookmark and its entire version lineage for the
// same URL. Every removed version gets its own "deleted" action, oldest
// version first, all in the same transaction as the removal.
// Returns the IDs of all removed bookmarks.
func (s *Store) DeleteBookmark(ctx context.Context, ownerID, id string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var removed []string

	err := s.db.Update(func(txn *badger.Txn) error {
		removed = removed[:0]

		b, err := getBookmarkTxn(txn, id)
		if err != nil {
			return err
		}
		if b.OwnerID != ownerID {
			return ErrBookmarkNotFound
		}

		// Collect the full lineage for this URL.
		var ids []string
		lineagePrefix := []byte(bookmarkLineagePrefix + ownerID + ":" + b.NormalizedURL + ":")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = lineagePrefix

		it := txn.NewIterator(opts)
		for it.Seek(lineagePrefix); it.ValidForPrefix(lineagePrefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				ids = append(ids, string(val))
				return nil
			})
			if err != nil {
				it.Close()
				return err
			}
		}
		it.Close()

		victims := make([]*domain.Bookmark, 0, len(ids))
		for _, victimID := range ids {
			victim, err := getBookmarkTxn(txn, victimID)
			if err != nil {
				return fmt.Errorf("load lineage member %s: %w", victimID, err)
			}
			victims = append(victims, victim)
		}
		sort.Slice(victims, func(i, j int) bool {
			return victims[i].CreatedAt.Before(victims[j].CreatedAt)
		})

		for _, victim := range victims {
			if err := txn.Delete(bookmarkKey(victim.ID)); err != nil {
				return err
			}
			if err := txn.Delete(lineageIndexKey(ownerID, b.NormalizedURL, victim.ID)); err != nil {
				return err
			}
			if err := txn.Delete(currentIndexKey(ownerID, victim.CreatedAt, victim.ID)); err != nil {
				return err
			}
			if _, err := s.appendActionTxn(txn, domain.ActionDeleted, ownerID, victim.ID); err != nil {
				return err
			}
			removed = append(removed, victim.ID)
		}
		if err := txn.Delete(urlIndexKey(ownerID, b.NormalizedURL)); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("bookmark deleted", "id", id, "owner", ownerID, "lineage_size", len(removed))
	}
	return removed, nil
}

// GetBookmark retrieves a bookmark by ID.
func (s *Store) GetBookmark(ctx context.Context, id string) (*domain.Bookmark, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var b *domain.Bookmark
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		b, err = getBookmarkTxn(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetCurrentBookmarkByURL retrieves the owner's current (non-outdated)
// bookmark for a normalized URL. Returns ErrBookmarkNotFound if the owner
// has no current version of that URL.
func (s *Store) GetCurrentBookmarkByURL(ctx context.Context, ownerID, normalizedURL string) (*domain.Bookmark, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var id string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(urlIndexKey(ownerID, normalizedURL))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrBookmarkNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return s.GetBookmark(ctx, id)
}

// ListBookmarkHistory returns every stored version of an owner's URL,
// oldest first.
func (s *Store) ListBookmarkHistory(ctx context.Context, ownerID, normalizedURL string) ([]*domain.Bookmark, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ids []string
	lineagePrefix := []byte(bookmarkLineagePrefix + ownerID + ":" + normalizedURL + ":")

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = lineagePrefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(lineagePrefix); it.ValidForPrefix(lineagePrefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				ids = append(ids, string(val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	versions := make([]*domain.Bookmark, 0, len(ids))
	for _, id := range ids {
		b, err := s.GetBookmark(ctx, id)
		if err != nil {
			return nil, err
		}
		versions = append(versions, b)
	}

	// Lineage index order is by random ID, not age.
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].CreatedAt.Before(versions[j].CreatedAt)
	})

	return versions, nil
}

// ListCurrentBookmarks returns a page of the owner's current bookmarks,
// newest first. This is the backing scan for index snapshots.
func (s *Store) ListCurrentBookmarks(ctx context.Context, ownerID string, params PaginationParams) (*PaginatedResult[*domain.Bookmark], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	params.Validate()

	prefix := []byte(bookmarkCurrentPrefix + ownerID + ":")

	startKey, err := DecodeCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	var ids []string
	var hasMore bool

	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = true
		opts.Reverse = true

		it := txn.NewIterator(opts)
		defer it.Close()

		if startKey != "" {
			it.Seek([]byte(startKey))
			// Skip the cursor key itself, it was returned on the prior page.
			if it.Valid() && string(it.Item().Key()) == startKey {
				it.Next()
			}
		} else {
			// Reverse iteration starts past the end of the prefix and walks
			// back, so the first key seen is the newest.
			it.Seek(append(append([]byte{}, prefix...), 0xFF))
		}

		count := 0
		for ; it.ValidForPrefix(prefix); it.Next() {
			if count == params.Limit {
				hasMore = true
				break
			}
			err := it.Item().Value(func(val []byte) error {
				ids = append(ids, string(val))
				return nil
			})
			if err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list current bookmarks: %w", err)
	}

	bookmarks := make([]*domain.Bookmark, 0, len(ids))
	for _, id := range ids {
		b, err := s.GetBookmark(ctx, id)
		if err != nil {
			return nil, err
		}
		bookmarks = append(bookmarks, b)
	}

	result := &PaginatedResult[*domain.Bookmark]{
		Items:   bookmarks,
		HasMore: hasMore,
	}
	if hasMore && len(bookmarks) > 0 {
		last := bookmarks[len(bookmarks)-1]
		result.NextCursor = EncodeCursor(string(currentIndexKey(ownerID, last.CreatedAt, last.ID)))
	}

	return result, nil
}
