package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bookmarkhive/hivecache/internal/config"
	"github.com/bookmarkhive/hivecache/internal/domain"
	domainerrors "github.com/bookmarkhive/hivecache/internal/errors"
	"github.com/bookmarkhive/hivecache/internal/store"
)

// snapshotMaxPageSize caps client-requested snapshot page sizes.
const snapshotMaxPageSize = 500

// SyncService serves the two read paths of the index sync protocol:
// paginated full snapshots for bootstrap and action-log diffs for
// incremental catch-up.
type SyncService struct {
	store  *store.Store
	logger *slog.Logger
	cfg    config.SyncConfig
}

// NewSyncService creates a new sync service.
func NewSyncService(store *store.Store, logger *slog.Logger, cfg config.SyncConfig) *SyncService {
	return &SyncService{
		store:  store,
		logger: logger,
		cfg:    cfg,
	}
}

// IndexSnapshot is one page of an owner's current bookmarks plus the
// checkpoint clients diff from once the bootstrap completes.
type IndexSnapshot struct {
	Entries    []domain.BookmarkProjection
	NextCursor string
	HasMore    bool
	Checkpoint string
}

// IndexDiff is one page of an owner's action log after a cursor.
// NextCursor is the ID of the last action in the page; clients keep
// following it while HasMore is set.
type IndexDiff struct {
	Actions    []*domain.IndexAction
	NextCursor string
	HasMore    bool
}

// GetIndexSnapshot returns one page of the owner's current bookmarks,
// newest first.
//
// The checkpoint is read before the page scan: any mutation racing the
// snapshot lands after the checkpoint and is replayed by the first diff,
// which is safe because diff application is idempotent.
func (s *SyncService) GetIndexSnapshot(ctx context.Context, ownerID, cursor string, limit int) (*IndexSnapshot, error) {
	if limit <= 0 {
		limit = s.cfg.SnapshotPageSize
	}
	if limit > snapshotMaxPageSize {
		limit = snapshotMaxPageSize
	}

	checkpoint, err := s.store.LatestActionID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	page, err := s.store.ListCurrentBookmarks(ctx, ownerID, store.PaginationParams{
		Limit:  limit,
		Cursor: cursor,
	})
	if err != nil {
		if errors.Is(err, store.ErrInvalidCursor) {
			return nil, domainerrors.Validation("invalid snapshot cursor")
		}
		return nil, fmt.Errorf("list current bookmarks: %w", err)
	}

	entries := make([]domain.BookmarkProjection, 0, len(page.Items))
	for _, b := range page.Items {
		entries = append(entries, b.Projection())
	}

	return &IndexSnapshot{
		Entries:    entries,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
		Checkpoint: checkpoint,
	}, nil
}

// GetIndexDiff returns the owner's index actions strictly after the given
// action ID, oldest first. An empty cursor starts from the beginning of
// the log. The page size is capped, long tails are followed page by page.
func (s *SyncService) GetIndexDiff(ctx context.Context, ownerID, afterActionID string, limit int) (*IndexDiff, error) {
	if limit <= 0 {
		limit = s.cfg.DiffPageSize
	}
	if limit > s.cfg.DiffMaxPageSize {
		limit = s.cfg.DiffMaxPageSize
	}

	actions, hasMore, err := s.store.ListActionsAfter(ctx, ownerID, afterActionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}

	diff := &IndexDiff{
		Actions: actions,
		HasMore: hasMore,
	}
	if hasMore && len(actions) > 0 {
		diff.NextCursor = actions[len(actions)-1].ID
	}

	if s.logger != nil && len(actions) > 0 {
		s.logger.Debug("served index diff",
			"owner", ownerID,
			"actions", len(actions),
			"has_more", hasMore,
		)
	}

	return diff, nil
}
