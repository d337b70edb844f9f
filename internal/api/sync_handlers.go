package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bookmarkhive/hivecache/internal/domain"
)

func (s *Server) registerSyncRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getBookmarkIndex",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/me/bookmarks/search/index",
		Summary:     "Get bookmark index snapshot",
		Description: "Returns a page of the current bookmark index plus a checkpoint for subsequent diff requests",
		Tags:        []string{"Sync"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetBookmarkIndex)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBookmarkIndexDiff",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/me/bookmarks/search/diff",
		Summary:     "Get bookmark index diff",
		Description: "Returns index actions recorded after the given action ID, in order",
		Tags:        []string{"Sync"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetBookmarkIndexDiff)
}

// === DTOs ===

// GetIndexInput contains parameters for the index snapshot.
type GetIndexInput struct {
	After string `query:"after" doc:"Snapshot cursor from a previous page"`
	Limit int    `query:"limit" default:"100" minimum:"1" maximum:"500" doc:"Items per page"`
}

// IndexEntryResponse is a bookmark as stored in the client search index.
type IndexEntryResponse struct {
	ID        string   `json:"id" doc:"Bookmark ID"`
	Title     string   `json:"title" doc:"Bookmark title"`
	URL       string   `json:"url" doc:"Bookmark URL"`
	Domain    string   `json:"domain" doc:"Registrable domain"`
	Tags      []string `json:"tags" doc:"Tag slugs"`
	CreatedAt string   `json:"createdAt" doc:"Creation time (RFC3339)"`
	IsPublic  bool     `json:"isPublic" doc:"Whether the bookmark is publicly visible"`
	Archive   string   `json:"archive,omitempty" doc:"Archived copy URL"`
	MainImage string   `json:"mainImage,omitempty" doc:"Preview image URL"`
}

// IndexResponse is one snapshot page. PrevPage and Total are always null,
// kept for pagination envelope compatibility.
type IndexResponse struct {
	Collection []IndexEntryResponse `json:"collection" doc:"Current bookmarks, most recently created first"`
	PrevPage   *string              `json:"prevPage" doc:"Always null"`
	NextPage   *string              `json:"nextPage" doc:"Cursor for the next page, null on the last page"`
	Total      *int                 `json:"total" doc:"Always null"`
	Checkpoint string               `json:"checkpoint" doc:"Action ID to start diff requests from"`
}

// IndexOutput wraps the snapshot page for Huma.
type IndexOutput struct {
	Body IndexResponse
}

// GetDiffInput contains parameters for the index diff.
// The before parameter is the action ID to resume from, exclusive.
type GetDiffInput struct {
	Before string `query:"before" doc:"Action ID to resume from, exclusive. Use the snapshot checkpoint initially."`
	Limit  int    `query:"limit" doc:"Actions per page"`
}

// ActionResponse is one entry of the index action log.
type ActionResponse struct {
	ID         string    `json:"id" doc:"Action ID"`
	Type       string    `json:"type" doc:"Action type: created, updated, outdated or deleted"`
	BookmarkID string    `json:"bookmarkId" doc:"Affected bookmark ID"`
	Owner      string    `json:"owner" doc:"Owning user ID"`
	CreatedAt  time.Time `json:"createdAt" doc:"When the action was recorded"`
}

// DiffResponse is one diff page.
type DiffResponse struct {
	Collection []ActionResponse `json:"collection" doc:"Actions in log order, oldest first"`
	NextPage   *string          `json:"nextPage" doc:"Action ID to resume from, null when caught up"`
}

// DiffOutput wraps the diff page for Huma.
type DiffOutput struct {
	Body DiffResponse
}

func toIndexEntryResponse(p domain.BookmarkProjection) IndexEntryResponse {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return IndexEntryResponse{
		ID:        p.ID,
		Title:     p.Title,
		URL:       p.URL,
		Domain:    p.Domain,
		Tags:      tags,
		CreatedAt: p.CreatedAt,
		IsPublic:  p.IsPublic,
		Archive:   p.Archive,
		MainImage: p.MainImage,
	}
}

// === Handlers ===

func (s *Server) handleGetBookmarkIndex(ctx context.Context, input *GetIndexInput) (*IndexOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.services.Sync.GetIndexSnapshot(ctx, userID, input.After, input.Limit)
	if err != nil {
		return nil, err
	}

	entries := make([]IndexEntryResponse, 0, len(snapshot.Entries))
	for _, e := range snapshot.Entries {
		entries = append(entries, toIndexEntryResponse(e))
	}

	resp := IndexResponse{
		Collection: entries,
		Checkpoint: snapshot.Checkpoint,
	}
	if snapshot.HasMore {
		resp.NextPage = &snapshot.NextCursor
	}

	return &IndexOutput{Body: resp}, nil
}

func (s *Server) handleGetBookmarkIndexDiff(ctx context.Context, input *GetDiffInput) (*DiffOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	diff, err := s.services.Sync.GetIndexDiff(ctx, userID, input.Before, input.Limit)
	if err != nil {
		return nil, err
	}

	actions := make([]ActionResponse, 0, len(diff.Actions))
	for _, a := range diff.Actions {
		actions = append(actions, ActionResponse{
			ID:         a.ID,
			Type:       string(a.Type),
			BookmarkID: a.BookmarkID,
			Owner:      a.OwnerID,
			CreatedAt:  a.CreatedAt,
		})
	}

	resp := DiffResponse{Collection: actions}
	if diff.HasMore {
		resp.NextPage = &diff.NextCursor
	}

	return &DiffOutput{Body: resp}, nil
}
