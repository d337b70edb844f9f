package store_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookmarkhive/hivecache/internal/domain"
	"github.com/bookmarkhive/hivecache/internal/id"
	"github.com/bookmarkhive/hivecache/internal/normalize"
	"github.com/bookmarkhive/hivecache/internal/store"
)

func setupTestStore(t *testing.T) (*store.Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "store-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	s, err := store.New(dbPath, nil)
	require.NoError(t, err)

	cleanup := func() {
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	}

	return s, cleanup
}

func makeBookmark(t *testing.T, ownerID, rawURL, title string) *domain.Bookmark {
	t.Helper()

	normalized, err := normalize.URL(rawURL)
	require.NoError(t, err)

	b := &domain.Bookmark{
		OwnerID:       ownerID,
		URL:           rawURL,
		NormalizedURL: normalized,
		Domain:        normalize.Domain(normalized),
		Title:         title,
		IsPublic:      true,
	}
	b.ID = id.MustGenerate("bm")
	b.InitTimestamps()
	return b
}

func TestCreateBookmark_NewURL(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	b := makeBookmark(t, "user-1", "https://example.com/a", "First")

	outdated, err := s.CreateBookmark(ctx, b)
	require.NoError(t, err)
	assert.Empty(t, outdated)

	got, err := s.GetBookmark(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "First", got.Title)
	assert.True(t, got.IsCurrent())

	// Exactly one "created" action in the owner's log.
	actions, hasMore, err := s.ListActionsAfter(ctx, "user-1", "", 10)
	require.NoError(t, err)
	assert.False(t, hasMore)
	require.Len(t, actions, 1)
	assert.Equal(t, domain.ActionCreated, actions[0].Type)
	assert.Equal(t, b.ID, actions[0].BookmarkID)
}

func TestCreateBookmark_SameURLOutdatesPrior(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	first := makeBookmark(t, "user-1", "https://example.com/a", "First")
	_, err := s.CreateBookmark(ctx, first)
	require.NoError(t, err)

	second := makeBookmark(t, "user-1", "https://example.com/a", "Second")
	outdated, err := s.CreateBookmark(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, first.ID, outdated)

	// The prior version is kept but marked outdated.
	oldVersion, err := s.GetBookmark(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, oldVersion.Outdated)

	// The URL now resolves to the new version.
	current, err := s.GetCurrentBookmarkByURL(ctx, "user-1", first.NormalizedURL)
	require.NoError(t, err)
	assert.Equal(t, second.ID, current.ID)

	// Log order: created, outdated(first), created(second).
	actions, _, err := s.ListActionsAfter(ctx, "user-1", "", 10)
	require.NoError(t, err)
	require.Len(t, actions, 3)
	assert.Equal(t, domain.ActionCreated, actions[0].Type)
	assert.Equal(t, first.ID, actions[0].BookmarkID)
	assert.Equal(t, domain.ActionOutdated, actions[1].Type)
	assert.Equal(t, first.ID, actions[1].BookmarkID)
	assert.Equal(t, domain.ActionCreated, actions[2].Type)
	assert.Equal(t, second.ID, actions[2].BookmarkID)
}

func TestCreateBookmark_SameURLDifferentOwners(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	a := makeBookmark(t, "user-1", "https://example.com/a", "Mine")
	b := makeBookmark(t, "user-2", "https://example.com/a", "Theirs")

	_, err := s.CreateBookmark(ctx, a)
	require.NoError(t, err)
	outdated, err := s.CreateBookmark(ctx, b)
	require.NoError(t, err)
	assert.Empty(t, outdated, "other owner's bookmark must not be outdated")

	mine, err := s.GetCurrentBookmarkByURL(ctx, "user-1", a.NormalizedURL)
	require.NoError(t, err)
	assert.Equal(t, a.ID, mine.ID)
}

func TestUpdateBookmark_AppendsAction(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	b := makeBookmark(t, "user-1", "https://example.com/a", "First")
	_, err := s.CreateBookmark(ctx, b)
	require.NoError(t, err)

	b.Title = "Renamed"
	b.Touch()
	require.NoError(t, s.UpdateBookmark(ctx, b))

	got, err := s.GetBookmark(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)

	actions, _, err := s.ListActionsAfter(ctx, "user-1", "", 10)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, domain.ActionUpdated, actions[1].Type)
}

func TestUpdateBookmark_NotFound(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	b := makeBookmark(t, "user-1", "https://example.com/a", "First")
	err := s.UpdateBookmark(context.Background(), b)
	assert.ErrorIs(t, err, store.ErrBookmarkNotFound)
}

func TestDeleteBookmark_RemovesLineage(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	first := makeBookmark(t, "user-1", "https://example.com/a", "First")
	_, err := s.CreateBookmark(ctx, first)
	require.NoError(t, err)

	second := makeBookmark(t, "user-1", "https://example.com/a", "Second")
	_, err = s.CreateBookmark(ctx, second)
	require.NoError(t, err)

	removed, err := s.DeleteBookmark(ctx, "user-1", second.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first.ID, second.ID}, removed)

	// Both versions are gone.
	_, err = s.GetBookmark(ctx, first.ID)
	assert.ErrorIs(t, err, store.ErrBookmarkNotFound)
	_, err = s.GetBookmark(ctx, second.ID)
	assert.ErrorIs(t, err, store.ErrBookmarkNotFound)
	_, err = s.GetCurrentBookmarkByURL(ctx, "user-1", first.NormalizedURL)
	assert.ErrorIs(t, err, store.ErrBookmarkNotFound)

	// Every removed version gets its own deleted action, oldest first.
	actions, _, err := s.ListActionsAfter(ctx, "user-1", "", 10)
	require.NoError(t, err)
	require.Len(t, actions, 5)
	assert.Equal(t, domain.ActionDeleted, actions[3].Type)
	assert.Equal(t, first.ID, actions[3].BookmarkID)
	assert.Equal(t, domain.ActionDeleted, actions[4].Type)
	assert.Equal(t, second.ID, actions[4].BookmarkID)

	// The URL can be bookmarked fresh afterwards.
	third := makeBookmark(t, "user-1", "https://example.com/a", "Third")
	outdated, err := s.CreateBookmark(ctx, third)
	require.NoError(t, err)
	assert.Empty(t, outdated)
}

func TestDeleteBookmark_WrongOwner(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	b := makeBookmark(t, "user-1", "https://example.com/a", "First")
	_, err := s.CreateBookmark(ctx, b)
	require.NoError(t, err)

	_, err = s.DeleteBookmark(ctx, "user-2", b.ID)
	assert.ErrorIs(t, err, store.ErrBookmarkNotFound)
}

func TestListBookmarkHistory_OldestFirst(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	first := makeBookmark(t, "user-1", "https://example.com/a", "First")
	_, err := s.CreateBookmark(ctx, first)
	require.NoError(t, err)

	second := makeBookmark(t, "user-1", "https://example.com/a", "Second")
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	second.UpdatedAt = second.CreatedAt
	_, err = s.CreateBookmark(ctx, second)
	require.NoError(t, err)

	history, err := s.ListBookmarkHistory(ctx, "user-1", first.NormalizedURL)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, first.ID, history[0].ID)
	assert.Equal(t, second.ID, history[1].ID)
	assert.True(t, history[0].Outdated)
	assert.False(t, history[1].Outdated)
}

func TestListCurrentBookmarks_Pagination(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	urls := []string{
		"https://example.com/1",
		"https://example.com/2",
		"https://example.com/3",
		"https://example.com/4",
		"https://example.com/5",
	}
	for _, u := range urls {
		b := makeBookmark(t, "user-1", u, u)
		_, err := s.CreateBookmark(ctx, b)
		require.NoError(t, err)
	}

	// Outdated versions must never show up in the snapshot scan.
	dup := makeBookmark(t, "user-1", "https://example.com/3", "replacement")
	_, err := s.CreateBookmark(ctx, dup)
	require.NoError(t, err)

	seen := make(map[string]bool)
	cursor := ""
	pages := 0
	firstID := ""
	var lastCreated time.Time
	for {
		page, err := s.ListCurrentBookmarks(ctx, "user-1", store.PaginationParams{Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		pages++

		for _, b := range page.Items {
			if firstID == "" {
				firstID = b.ID
			}
			if !lastCreated.IsZero() {
				assert.False(t, b.CreatedAt.After(lastCreated), "snapshot must be newest first")
			}
			lastCreated = b.CreatedAt
			assert.False(t, b.Outdated)
			assert.False(t, seen[b.ID], "bookmark %s returned twice", b.ID)
			seen[b.ID] = true
		}

		if !page.HasMore {
			break
		}
		require.NotEmpty(t, page.NextCursor)
		cursor = page.NextCursor
	}

	assert.Len(t, seen, 5)
	assert.GreaterOrEqual(t, pages, 3)
	assert.Equal(t, dup.ID, firstID, "most recent bookmark leads the snapshot")
}

func TestListCurrentBookmarks_InvalidCursor(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := s.ListCurrentBookmarks(context.Background(), "user-1", store.PaginationParams{
		Limit:  10,
		Cursor: "not-base64!!!",
	})
	assert.True(t, errors.Is(err, store.ErrInvalidCursor))
}

func TestListActionsAfter_CursorIsExclusive(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	var ids []string
	for _, u := range []string{"https://a.example", "https://b.example", "https://c.example"} {
		b := makeBookmark(t, "user-1", u, u)
		_, err := s.CreateBookmark(ctx, b)
		require.NoError(t, err)
		ids = append(ids, b.ID)
	}

	all, _, err := s.ListActionsAfter(ctx, "user-1", "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)

	// Resume after the first action: exactly the remaining two come back.
	rest, hasMore, err := s.ListActionsAfter(ctx, "user-1", all[0].ID, 10)
	require.NoError(t, err)
	assert.False(t, hasMore)
	require.Len(t, rest, 2)
	assert.Equal(t, ids[1], rest[0].BookmarkID)
	assert.Equal(t, ids[2], rest[1].BookmarkID)

	// Resume at the tip: empty diff.
	tail, hasMore, err := s.ListActionsAfter(ctx, "user-1", all[2].ID, 10)
	require.NoError(t, err)
	assert.False(t, hasMore)
	assert.Empty(t, tail)
}

func TestListActionsAfter_LimitAndHasMore(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	for _, u := range []string{"https://a.example", "https://b.example", "https://c.example"} {
		b := makeBookmark(t, "user-1", u, u)
		_, err := s.CreateBookmark(ctx, b)
		require.NoError(t, err)
	}

	page, hasMore, err := s.ListActionsAfter(ctx, "user-1", "", 2)
	require.NoError(t, err)
	assert.True(t, hasMore)
	require.Len(t, page, 2)

	rest, hasMore, err := s.ListActionsAfter(ctx, "user-1", page[1].ID, 2)
	require.NoError(t, err)
	assert.False(t, hasMore)
	assert.Len(t, rest, 1)
}

func TestActionIDs_MonotonicAcrossOwners(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	a := makeBookmark(t, "user-1", "https://a.example", "a")
	_, err := s.CreateBookmark(ctx, a)
	require.NoError(t, err)

	b := makeBookmark(t, "user-2", "https://a.example", "b")
	_, err = s.CreateBookmark(ctx, b)
	require.NoError(t, err)

	first, err := s.LatestActionID(ctx, "user-1")
	require.NoError(t, err)
	second, err := s.LatestActionID(ctx, "user-2")
	require.NoError(t, err)

	require.NotEmpty(t, first)
	require.NotEmpty(t, second)
	assert.Less(t, first, second, "later actions must sort after earlier ones")
}

func TestLatestActionID_EmptyLog(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	latest, err := s.LatestActionID(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, latest)
}

func TestActionLog_SurvivesReopen(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "store-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "test.db")
	ctx := context.Background()

	s, err := store.New(dbPath, nil)
	require.NoError(t, err)

	b := makeBookmark(t, "user-1", "https://a.example", "a")
	_, err = s.CreateBookmark(ctx, b)
	require.NoError(t, err)

	before, err := s.LatestActionID(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopen and append: new IDs must still sort after the old ones.
	s, err = store.New(dbPath, nil)
	require.NoError(t, err)
	defer s.Close()

	c := makeBookmark(t, "user-1", "https://b.example", "b")
	_, err = s.CreateBookmark(ctx, c)
	require.NoError(t, err)

	after, err := s.LatestActionID(ctx, "user-1")
	require.NoError(t, err)
	assert.Less(t, before, after)
}
