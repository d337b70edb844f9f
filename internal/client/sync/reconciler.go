// Package sync keeps the local bookmark cache and search index
// consistent with the server.
//
// A fresh client bootstraps by paging through the index snapshot and
// saving the snapshot checkpoint as its cursor. Every later sync replays
// the server's action log from that cursor, applies the changes to the
// cache in one transaction, and updates the search index. When the local
// state is unusable or the log cannot be reconciled, the client falls
// back to a full bootstrap.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bookmarkhive/hivecache/internal/client/api"
	"github.com/bookmarkhive/hivecache/internal/client/search"
	"github.com/bookmarkhive/hivecache/internal/client/store"
	"github.com/bookmarkhive/hivecache/internal/domain"
)

// ErrSyncInProgress is returned when Sync is called while another sync
// is still running. The caller should simply skip this round.
var ErrSyncInProgress = errors.New("sync already in progress")

// errInconsistent marks a diff that cannot be reconciled with the local
// cache. It never escapes Sync; it triggers a full bootstrap instead.
var errInconsistent = errors.New("action log inconsistent with local state")

// defaultPageLimit is used when the caller does not override the server
// page size.
const defaultPageLimit = 0

// Reconciler synchronizes the local cache with the server.
type Reconciler struct {
	api    *api.Client
	store  *store.Store
	index  *search.Index
	logger *slog.Logger

	// pageLimit overrides the server page size for snapshot and diff
	// requests. Zero means server defaults.
	pageLimit int

	// mu serializes Sync. TryLock so overlapping calls return
	// immediately instead of queueing up.
	mu sync.Mutex
}

// Options configures a Reconciler.
type Options struct {
	API       *api.Client
	Store     *store.Store
	Index     *search.Index
	Logger    *slog.Logger
	PageLimit int
}

// New creates a Reconciler.
func New(opts Options) *Reconciler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pageLimit := opts.PageLimit
	if pageLimit < 0 {
		pageLimit = defaultPageLimit
	}
	return &Reconciler{
		api:       opts.API,
		store:     opts.Store,
		index:     opts.Index,
		logger:    logger,
		pageLimit: pageLimit,
	}
}

// Sync brings the local cache up to date with the server. At most one
// sync runs at a time; concurrent calls return ErrSyncInProgress.
//
// Transient errors leave the stored cursor untouched, so the next call
// resumes where this one left off.
func (r *Reconciler) Sync(ctx context.Context) error {
	if !r.mu.TryLock() {
		return ErrSyncInProgress
	}
	defer r.mu.Unlock()

	state, err := r.store.State(ctx)
	if err != nil {
		// Local state unreadable: rebuild from scratch.
		r.logger.Warn("local sync state unreadable, bootstrapping", "error", err)
		if resetErr := r.store.Reset(ctx); resetErr != nil {
			return fmt.Errorf("reset local cache: %w", resetErr)
		}
		return r.bootstrap(ctx)
	}

	// An account bootstrapped before its first action keeps an empty
	// cursor; only a store that has never synced needs the snapshot. The
	// diff with an empty cursor replays the log from the beginning.
	if state.Cursor == "" && state.LastSyncedAt == nil {
		return r.bootstrap(ctx)
	}

	err = r.incremental(ctx, state.Cursor)
	if errors.Is(err, errInconsistent) {
		r.logger.Warn("diff could not be reconciled, falling back to bootstrap", "error", err)
		if resetErr := r.store.Reset(ctx); resetErr != nil {
			return fmt.Errorf("reset local cache: %w", resetErr)
		}
		return r.bootstrap(ctx)
	}
	return err
}

// bootstrap pages through the full index snapshot and replaces the local
// cache with it. The checkpoint of the first page becomes the cursor:
// actions recorded while paging are replayed by the next incremental
// sync, which is harmless because applying them is idempotent.
func (r *Reconciler) bootstrap(ctx context.Context) error {
	r.logger.Info("bootstrapping bookmark cache")

	var entries []domain.BookmarkProjection
	var checkpoint string
	cursor := ""

	for {
		page, err := r.api.GetIndexPage(ctx, cursor, r.pageLimit)
		if err != nil {
			return fmt.Errorf("fetch snapshot page: %w", err)
		}
		if checkpoint == "" {
			checkpoint = page.Checkpoint
		}
		entries = append(entries, page.Collection...)

		if page.NextPage == nil {
			break
		}
		cursor = *page.NextPage
	}

	if err := r.store.ReplaceAll(ctx, entries, checkpoint); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	if err := r.index.Rebuild(); err != nil {
		return fmt.Errorf("rebuild search index: %w", err)
	}
	if err := r.index.UpsertBatch(entries); err != nil {
		return fmt.Errorf("index snapshot: %w", err)
	}

	r.logger.Info("bootstrap complete", "entries", len(entries), "cursor", checkpoint)
	return nil
}

// incremental replays the action log from the stored cursor, one page at
// a time. Each page is resolved into upserts and deletes, applied to the
// cache atomically together with the advanced cursor, then mirrored into
// the search index.
func (r *Reconciler) incremental(ctx context.Context, cursor string) error {
	for {
		page, err := r.api.GetDiffPage(ctx, cursor, r.pageLimit)
		if err != nil {
			return fmt.Errorf("fetch diff page: %w", err)
		}

		if len(page.Collection) == 0 {
			// Caught up. Touch the state so last_synced_at reflects
			// this run.
			if err := r.store.Apply(ctx, nil, nil, cursor); err != nil {
				return fmt.Errorf("record sync time: %w", err)
			}
			return nil
		}

		upserts, deletes, err := r.resolvePage(ctx, cursor, page.Collection)
		if err != nil {
			return err
		}

		newCursor := page.Collection[len(page.Collection)-1].ID
		if page.NextPage != nil {
			newCursor = *page.NextPage
		}

		if err := r.store.Apply(ctx, upserts, deletes, newCursor); err != nil {
			return fmt.Errorf("apply diff batch: %w", err)
		}
		if len(upserts) > 0 {
			if err := r.index.UpsertBatch(upserts); err != nil {
				return fmt.Errorf("index diff upserts: %w", err)
			}
		}
		if len(deletes) > 0 {
			if err := r.index.DeleteBatch(deletes); err != nil {
				return fmt.Errorf("unindex diff deletes: %w", err)
			}
		}

		r.logger.Debug("applied diff page",
			"actions", len(page.Collection),
			"upserts", len(upserts),
			"deletes", len(deletes),
			"cursor", newCursor)

		if page.NextPage == nil {
			return nil
		}
		cursor = newCursor
	}
}

// resolvePage collapses one page of actions into the final operation per
// bookmark. Later actions for the same bookmark win, so a created
// followed by deleted in the same page never hits the network.
func (r *Reconciler) resolvePage(ctx context.Context, cursor string, actions []api.Action) (upserts []domain.BookmarkProjection, deletes []string, err error) {
	const (
		opFetch = iota
		opDelete
	)

	ops := make(map[string]int, len(actions))
	order := make([]string, 0, len(actions))
	prevID := cursor

	for _, action := range actions {
		// The log is append-only and strictly ordered. Anything else
		// means we cannot trust the replay.
		if action.ID <= prevID {
			return nil, nil, fmt.Errorf("%w: action %s out of order after %s", errInconsistent, action.ID, prevID)
		}
		prevID = action.ID

		if _, seen := ops[action.BookmarkID]; !seen {
			order = append(order, action.BookmarkID)
		}

		switch action.Type {
		case api.ActionCreated, api.ActionUpdated:
			ops[action.BookmarkID] = opFetch
		case api.ActionOutdated, api.ActionDeleted:
			ops[action.BookmarkID] = opDelete
		default:
			return nil, nil, fmt.Errorf("%w: unknown action type %q", errInconsistent, action.Type)
		}
	}

	for _, bookmarkID := range order {
		switch ops[bookmarkID] {
		case opDelete:
			deletes = append(deletes, bookmarkID)
		case opFetch:
			bm, err := r.api.GetBookmark(ctx, bookmarkID)
			if err != nil {
				// Deleted on the server since the action was logged.
				// The deleted entries are further down the log.
				if api.IsNotFound(err) {
					deletes = append(deletes, bookmarkID)
					continue
				}
				return nil, nil, fmt.Errorf("fetch bookmark %s: %w", bookmarkID, err)
			}
			// Superseded while we were behind; the successor has its
			// own created action.
			if bm.Outdated {
				deletes = append(deletes, bookmarkID)
				continue
			}
			upserts = append(upserts, bm.Projection())
		}
	}

	return upserts, deletes, nil
}

// Status describes the local sync position.
type Status struct {
	Cursor       string
	LastSyncedAt string
	CachedCount  int
	IndexedCount uint64
}

// Status reports the current local sync state.
func (r *Reconciler) Status(ctx context.Context) (*Status, error) {
	state, err := r.store.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("read sync state: %w", err)
	}
	count, err := r.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count entries: %w", err)
	}
	indexed, err := r.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("count indexed: %w", err)
	}

	status := &Status{
		Cursor:       state.Cursor,
		CachedCount:  count,
		IndexedCount: indexed,
	}
	if state.LastSyncedAt != nil {
		status.LastSyncedAt = state.LastSyncedAt.String()
	}
	return status, nil
}
