package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getIndexPage(t *testing.T, ts *testServer, token, query string) IndexResponse {
	t.Helper()

	resp := ts.api.Get("/api/v1/users/me/bookmarks/search/index"+query,
		"Authorization: Bearer "+token)
	require.Equal(t, http.StatusOK, resp.Code, "Index failed: %s", resp.Body.String())

	var envelope testEnvelope[IndexResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	return envelope.Data
}

func getDiffPage(t *testing.T, ts *testServer, token, query string) DiffResponse {
	t.Helper()

	resp := ts.api.Get("/api/v1/users/me/bookmarks/search/diff"+query,
		"Authorization: Bearer "+token)
	require.Equal(t, http.StatusOK, resp.Code, "Diff failed: %s", resp.Body.String())

	var envelope testEnvelope[DiffResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestGetBookmarkIndex_Bootstrap(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	token, _ := ts.createTestUser(t)

	for i := range 5 {
		createBookmark(t, ts, token, map[string]any{
			"url":   fmt.Sprintf("https://example.com/p%d", i),
			"title": fmt.Sprintf("Page %d", i),
		})
	}

	// Page through the snapshot two entries at a time.
	first := getIndexPage(t, ts, token, "?limit=2")
	require.Len(t, first.Collection, 2)
	require.NotNil(t, first.NextPage)
	assert.Nil(t, first.PrevPage)
	assert.Nil(t, first.Total)
	assert.NotEmpty(t, first.Checkpoint)

	// The snapshot leads with the most recent bookmark.
	assert.Equal(t, "Page 4", first.Collection[0].Title)

	seen := len(first.Collection)
	next := first.NextPage
	for next != nil {
		page := getIndexPage(t, ts, token, "?limit=2&after="+*next)
		seen += len(page.Collection)
		next = page.NextPage
	}
	assert.Equal(t, 5, seen)

	// Nothing happened since the checkpoint, so the diff is empty.
	diff := getDiffPage(t, ts, token, "?before="+first.Checkpoint)
	assert.Empty(t, diff.Collection)
	assert.Nil(t, diff.NextPage)
}

func TestGetBookmarkIndexDiff_AfterCheckpoint(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	token, userID := ts.createTestUser(t)

	createBookmark(t, ts, token, map[string]any{
		"url":   "https://example.com/existing",
		"title": "Existing",
	})

	snapshot := getIndexPage(t, ts, token, "")
	require.Len(t, snapshot.Collection, 1)

	// Mutate after the snapshot was taken.
	b := createBookmark(t, ts, token, map[string]any{
		"url":   "https://example.com/new",
		"title": "New",
	})
	resp := ts.api.Patch("/api/v1/bookmarks/"+b.ID, map[string]any{
		"title": "Renamed",
	}, "Authorization: Bearer "+token)
	require.Equal(t, http.StatusOK, resp.Code)
	resp = ts.api.Delete("/api/v1/bookmarks/"+b.ID, "Authorization: Bearer "+token)
	require.Equal(t, http.StatusOK, resp.Code)

	diff := getDiffPage(t, ts, token, "?before="+snapshot.Checkpoint)
	require.Len(t, diff.Collection, 3)
	assert.Equal(t, "created", diff.Collection[0].Type)
	assert.Equal(t, "updated", diff.Collection[1].Type)
	assert.Equal(t, "deleted", diff.Collection[2].Type)
	for _, action := range diff.Collection {
		assert.Equal(t, b.ID, action.BookmarkID)
		assert.Equal(t, userID, action.Owner)
	}
	assert.Nil(t, diff.NextPage)
}

func TestGetBookmarkIndexDiff_Pagination(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	token, _ := ts.createTestUser(t)

	for i := range 5 {
		createBookmark(t, ts, token, map[string]any{
			"url":   fmt.Sprintf("https://example.com/p%d", i),
			"title": fmt.Sprintf("Page %d", i),
		})
	}

	// Replay the whole log two actions at a time from the beginning.
	var total int
	cursor := ""
	for {
		query := "?limit=2"
		if cursor != "" {
			query += "&before=" + cursor
		}
		page := getDiffPage(t, ts, token, query)
		total += len(page.Collection)
		if page.NextPage == nil {
			break
		}
		// The cursor is the last action ID of the page.
		assert.Equal(t, page.Collection[len(page.Collection)-1].ID, *page.NextPage)
		cursor = *page.NextPage
	}
	assert.Equal(t, 5, total)
}

func TestGetBookmarkIndex_ProjectionShape(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	token, _ := ts.createTestUser(t)

	createBookmark(t, ts, token, map[string]any{
		"url":       "https://example.com/full",
		"title":     "Full entry",
		"is_public": true,
		"tags":      []string{"golang"},
	})

	snapshot := getIndexPage(t, ts, token, "")
	require.Len(t, snapshot.Collection, 1)

	entry := snapshot.Collection[0]
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "Full entry", entry.Title)
	assert.Equal(t, "https://example.com/full", entry.URL)
	assert.Equal(t, "example.com", entry.Domain)
	assert.Equal(t, []string{"golang"}, entry.Tags)
	assert.NotEmpty(t, entry.CreatedAt)
	assert.True(t, entry.IsPublic)
}
