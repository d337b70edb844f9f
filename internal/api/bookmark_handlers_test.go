package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createBookmark(t *testing.T, ts *testServer, token string, body map[string]any) BookmarkResponse {
	t.Helper()

	resp := ts.api.Post("/api/v1/bookmarks", body, "Authorization: Bearer "+token)
	require.Equal(t, http.StatusOK, resp.Code, "Create failed: %s", resp.Body.String())

	var envelope testEnvelope[BookmarkResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestCreateBookmark_NormalizesURL(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	token, _ := ts.createTestUser(t)

	b := createBookmark(t, ts, token, map[string]any{
		"url":   "HTTPS://Example.COM:443/path?b=2&a=1",
		"title": "Example",
		"tags":  []string{"Go Lang", "Databases"},
	})

	assert.Equal(t, "HTTPS://Example.COM:443/path?b=2&a=1", b.URL)
	assert.Equal(t, "https://example.com/path?a=1&b=2", b.NormalizedURL)
	assert.Equal(t, "example.com", b.Domain)
	assert.Equal(t, []string{"go-lang", "databases"}, b.Tags)
	assert.False(t, b.Outdated)
}

func TestCreateBookmark_Validation(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	token, _ := ts.createTestUser(t)

	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
	}{
		{
			name:       "missing title",
			body:       map[string]any{"url": "https://example.com"},
			wantStatus: http.StatusUnprocessableEntity, // Huma returns 422 for missing required fields
		},
		{
			name:       "missing url",
			body:       map[string]any{"title": "No URL"},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "empty title",
			body:       map[string]any{"url": "https://example.com", "title": ""},
			wantStatus: http.StatusBadRequest, // Validation errors return 400
		},
		{
			name:       "unparseable url",
			body:       map[string]any{"url": "not a url", "title": "Bad"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Post("/api/v1/bookmarks", tt.body, "Authorization: Bearer "+token)
			assert.Equal(t, tt.wantStatus, resp.Code)

			var envelope testEnvelope[struct{}]
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
			assert.False(t, envelope.Success)
			require.NotNil(t, envelope.Error)
		})
	}
}

func TestCreateBookmark_SameURLVersions(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	token, _ := ts.createTestUser(t)

	first := createBookmark(t, ts, token, map[string]any{
		"url":   "https://example.com/article",
		"title": "First take",
	})
	second := createBookmark(t, ts, token, map[string]any{
		"url":   "https://example.com/article",
		"title": "Second take",
	})
	require.NotEqual(t, first.ID, second.ID)

	// The first version is now outdated but still readable.
	resp := ts.api.Get("/api/v1/bookmarks/"+first.ID, "Authorization: Bearer "+token)
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope testEnvelope[BookmarkResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.True(t, envelope.Data.Outdated)

	// Only the current version appears in the list.
	resp = ts.api.Get("/api/v1/bookmarks", "Authorization: Bearer "+token)
	require.Equal(t, http.StatusOK, resp.Code)

	var list testEnvelope[struct {
		Bookmarks []BookmarkResponse `json:"bookmarks"`
	}]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	require.Len(t, list.Data.Bookmarks, 1)
	assert.Equal(t, second.ID, list.Data.Bookmarks[0].ID)
}

func TestUpdateBookmark_Patch(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	token, _ := ts.createTestUser(t)

	b := createBookmark(t, ts, token, map[string]any{
		"url":   "https://example.com/article",
		"title": "Before",
		"tags":  []string{"keep", "drop"},
	})

	resp := ts.api.Patch("/api/v1/bookmarks/"+b.ID, map[string]any{
		"title": "After",
		"tags":  []string{"keep", "new"},
	}, "Authorization: Bearer "+token)
	require.Equal(t, http.StatusOK, resp.Code, "Update failed: %s", resp.Body.String())

	var envelope testEnvelope[BookmarkResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Equal(t, "After", envelope.Data.Title)
	assert.Equal(t, []string{"keep", "new"}, envelope.Data.Tags)
	// Untouched fields survive.
	assert.Equal(t, "https://example.com/article", envelope.Data.URL)
}

func TestUpdateBookmark_OutdatedVersionRejected(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	token, _ := ts.createTestUser(t)

	first := createBookmark(t, ts, token, map[string]any{
		"url":   "https://example.com/article",
		"title": "v1",
	})
	createBookmark(t, ts, token, map[string]any{
		"url":   "https://example.com/article",
		"title": "v2",
	})

	resp := ts.api.Patch("/api/v1/bookmarks/"+first.ID, map[string]any{
		"title": "rewritten history",
	}, "Authorization: Bearer "+token)
	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestDeleteBookmark_RemovesAllVersions(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	token, _ := ts.createTestUser(t)

	first := createBookmark(t, ts, token, map[string]any{
		"url":   "https://example.com/article",
		"title": "v1",
	})
	second := createBookmark(t, ts, token, map[string]any{
		"url":   "https://example.com/article",
		"title": "v2",
	})

	resp := ts.api.Delete("/api/v1/bookmarks/"+second.ID, "Authorization: Bearer "+token)
	assert.Equal(t, http.StatusOK, resp.Code)

	for _, id := range []string{first.ID, second.ID} {
		resp = ts.api.Get("/api/v1/bookmarks/"+id, "Authorization: Bearer "+token)
		assert.Equal(t, http.StatusNotFound, resp.Code)
	}
}

func TestBookmarkHistory(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	token, _ := ts.createTestUser(t)

	v1 := createBookmark(t, ts, token, map[string]any{
		"url":   "https://example.com/article",
		"title": "v1",
	})
	v2 := createBookmark(t, ts, token, map[string]any{
		"url":   "https://example.com/article",
		"title": "v2",
	})
	v3 := createBookmark(t, ts, token, map[string]any{
		"url":   "https://example.com/article",
		"title": "v3",
	})

	resp := ts.api.Get("/api/v1/bookmarks/"+v3.ID+"/history", "Authorization: Bearer "+token)
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope testEnvelope[struct {
		Versions []BookmarkResponse `json:"versions"`
	}]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))

	require.Len(t, envelope.Data.Versions, 2)
	assert.Equal(t, v2.ID, envelope.Data.Versions[0].ID)
	assert.Equal(t, v1.ID, envelope.Data.Versions[1].ID)
}

func TestBookmarks_OwnerIsolation(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	token, _ := ts.createTestUser(t)
	b := createBookmark(t, ts, token, map[string]any{
		"url":   "https://example.com/private",
		"title": "Private",
	})

	// Setup creates the only HTTP user, so exercise the isolation path
	// directly through the service with a different owner.
	_, err := ts.services.Bookmark.Get(context.Background(), "someone-else", b.ID)
	require.Error(t, err)
}

func TestListTags_AfterBookmarks(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	token, _ := ts.createTestUser(t)

	createBookmark(t, ts, token, map[string]any{
		"url":   "https://example.com/a",
		"title": "A",
		"tags":  []string{"golang", "databases"},
	})
	createBookmark(t, ts, token, map[string]any{
		"url":   "https://example.com/b",
		"title": "B",
		"tags":  []string{"golang"},
	})

	resp := ts.api.Get("/api/v1/tags", "Authorization: Bearer "+token)
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope testEnvelope[struct {
		Tags []TagResponse `json:"tags"`
	}]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))

	require.Len(t, envelope.Data.Tags, 2)
	assert.Equal(t, "databases", envelope.Data.Tags[0].Slug)
	assert.Equal(t, 1, envelope.Data.Tags[0].BookmarkCount)
	assert.Equal(t, "golang", envelope.Data.Tags[1].Slug)
	assert.Equal(t, 2, envelope.Data.Tags[1].BookmarkCount)
}
