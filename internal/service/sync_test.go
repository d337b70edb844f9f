package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookmarkhive/hivecache/internal/config"
	"github.com/bookmarkhive/hivecache/internal/domain"
)

func TestSyncService_Snapshot_Bootstrap(t *testing.T) {
	s, cleanup := setupServiceTest(t)
	defer cleanup()
	ctx := context.Background()

	bookmarks := NewBookmarkService(s, nil)
	sync := NewSyncService(s, nil, testSyncConfig())

	for i := range 5 {
		_, err := bookmarks.Create(ctx, "user-1", CreateBookmarkRequest{
			URL:   fmt.Sprintf("https://example.com/%d", i),
			Title: fmt.Sprintf("Bookmark %d", i),
		})
		require.NoError(t, err)
	}

	// Page through the snapshot like a bootstrapping client.
	var entries []domain.BookmarkProjection
	checkpoint := ""
	cursor := ""
	for {
		page, err := sync.GetIndexSnapshot(ctx, "user-1", cursor, 2)
		require.NoError(t, err)
		if checkpoint == "" {
			checkpoint = page.Checkpoint
		}
		entries = append(entries, page.Entries...)
		if !page.HasMore {
			break
		}
		require.NotEmpty(t, page.NextCursor)
		cursor = page.NextCursor
	}

	assert.Len(t, entries, 5)
	require.NotEmpty(t, checkpoint)

	// A diff from the snapshot checkpoint is empty: nothing to catch up.
	diff, err := sync.GetIndexDiff(ctx, "user-1", checkpoint, 0)
	require.NoError(t, err)
	assert.Empty(t, diff.Actions)
	assert.False(t, diff.HasMore)
}

func TestSyncService_Diff_AfterCheckpoint(t *testing.T) {
	s, cleanup := setupServiceTest(t)
	defer cleanup()
	ctx := context.Background()

	bookmarks := NewBookmarkService(s, nil)
	sync := NewSyncService(s, nil, testSyncConfig())

	_, err := bookmarks.Create(ctx, "user-1", CreateBookmarkRequest{URL: "https://example.com/a", Title: "a"})
	require.NoError(t, err)

	snap, err := sync.GetIndexSnapshot(ctx, "user-1", "", 0)
	require.NoError(t, err)

	// Mutations after the checkpoint show up in the diff, in order.
	b, err := bookmarks.Create(ctx, "user-1", CreateBookmarkRequest{URL: "https://example.com/b", Title: "b"})
	require.NoError(t, err)
	_, err = bookmarks.Update(ctx, "user-1", b.ID, domain.BookmarkPatch{Title: strPtr("b2")})
	require.NoError(t, err)
	require.NoError(t, bookmarks.Delete(ctx, "user-1", b.ID))

	diff, err := sync.GetIndexDiff(ctx, "user-1", snap.Checkpoint, 0)
	require.NoError(t, err)
	require.Len(t, diff.Actions, 3)
	assert.Equal(t, domain.ActionCreated, diff.Actions[0].Type)
	assert.Equal(t, domain.ActionUpdated, diff.Actions[1].Type)
	assert.Equal(t, domain.ActionDeleted, diff.Actions[2].Type)
	for _, action := range diff.Actions {
		assert.Equal(t, b.ID, action.BookmarkID)
		assert.Equal(t, "user-1", action.OwnerID)
	}
}

func TestSyncService_Diff_Pagination(t *testing.T) {
	s, cleanup := setupServiceTest(t)
	defer cleanup()
	ctx := context.Background()

	bookmarks := NewBookmarkService(s, nil)
	sync := NewSyncService(s, nil, config.SyncConfig{
		SnapshotPageSize: 100,
		DiffPageSize:     2,
		DiffMaxPageSize:  2,
	})

	for i := range 5 {
		_, err := bookmarks.Create(ctx, "user-1", CreateBookmarkRequest{
			URL:   fmt.Sprintf("https://example.com/%d", i),
			Title: "x",
		})
		require.NoError(t, err)
	}

	// Requested limits above the cap are clamped; the tail is followed
	// via the continuation cursor.
	var total int
	cursor := ""
	pages := 0
	for {
		diff, err := sync.GetIndexDiff(ctx, "user-1", cursor, 9999)
		require.NoError(t, err)
		require.LessOrEqual(t, len(diff.Actions), 2)
		total += len(diff.Actions)
		pages++
		if !diff.HasMore {
			break
		}
		require.NotEmpty(t, diff.NextCursor)
		cursor = diff.NextCursor
	}

	assert.Equal(t, 5, total)
	assert.Equal(t, 3, pages)
}

func TestSyncService_Snapshot_OwnerScoped(t *testing.T) {
	s, cleanup := setupServiceTest(t)
	defer cleanup()
	ctx := context.Background()

	bookmarks := NewBookmarkService(s, nil)
	sync := NewSyncService(s, nil, testSyncConfig())

	_, err := bookmarks.Create(ctx, "user-1", CreateBookmarkRequest{URL: "https://example.com/a", Title: "mine"})
	require.NoError(t, err)
	_, err = bookmarks.Create(ctx, "user-2", CreateBookmarkRequest{URL: "https://example.com/b", Title: "theirs"})
	require.NoError(t, err)

	snap, err := sync.GetIndexSnapshot(ctx, "user-1", "", 0)
	require.NoError(t, err)
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, "mine", snap.Entries[0].Title)

	diff, err := sync.GetIndexDiff(ctx, "user-1", "", 0)
	require.NoError(t, err)
	require.Len(t, diff.Actions, 1)
	assert.Equal(t, "user-1", diff.Actions[0].OwnerID)
}
