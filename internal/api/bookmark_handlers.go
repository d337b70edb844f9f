package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bookmarkhive/hivecache/internal/domain"
	"github.com/bookmarkhive/hivecache/internal/service"
	"github.com/bookmarkhive/hivecache/internal/store"
)

func (s *Server) registerBookmarkRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "createBookmark",
		Method:      http.MethodPost,
		Path:        "/api/v1/bookmarks",
		Summary:     "Create bookmark",
		Description: "Saves a bookmark. Re-saving a URL creates a new version and outdates the previous one.",
		Tags:        []string{"Bookmarks"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCreateBookmark)

	huma.Register(s.api, huma.Operation{
		OperationID: "listBookmarks",
		Method:      http.MethodGet,
		Path:        "/api/v1/bookmarks",
		Summary:     "List bookmarks",
		Description: "Returns the user's current bookmarks, most recently created first",
		Tags:        []string{"Bookmarks"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListBookmarks)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBookmark",
		Method:      http.MethodGet,
		Path:        "/api/v1/bookmarks/{id}",
		Summary:     "Get bookmark",
		Description: "Returns a single bookmark by ID, including outdated versions",
		Tags:        []string{"Bookmarks"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetBookmark)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateBookmark",
		Method:      http.MethodPatch,
		Path:        "/api/v1/bookmarks/{id}",
		Summary:     "Update bookmark",
		Description: "Updates a bookmark in place. Only the current version of a URL can be updated.",
		Tags:        []string{"Bookmarks"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateBookmark)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteBookmark",
		Method:      http.MethodDelete,
		Path:        "/api/v1/bookmarks/{id}",
		Summary:     "Delete bookmark",
		Description: "Deletes a bookmark and every other version of its URL",
		Tags:        []string{"Bookmarks"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteBookmark)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBookmarkHistory",
		Method:      http.MethodGet,
		Path:        "/api/v1/bookmarks/{id}/history",
		Summary:     "Bookmark history",
		Description: "Returns prior versions of a bookmark's URL, newest first",
		Tags:        []string{"Bookmarks"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleBookmarkHistory)
}

// === DTOs ===

// BookmarkResponse is a bookmark as exposed by the API.
type BookmarkResponse struct {
	ID            string    `json:"id" doc:"Bookmark ID"`
	URL           string    `json:"url" doc:"URL as submitted"`
	NormalizedURL string    `json:"normalized_url" doc:"Canonical URL used for versioning"`
	Domain        string    `json:"domain" doc:"Registrable domain of the URL"`
	Title         string    `json:"title" doc:"Bookmark title"`
	IsPublic      bool      `json:"is_public" doc:"Whether the bookmark is publicly visible"`
	Tags          []string  `json:"tags" doc:"Tag slugs"`
	ArchiveURL    string    `json:"archive_url,omitempty" doc:"Archived copy URL"`
	MainImageURL  string    `json:"main_image_url,omitempty" doc:"Preview image URL"`
	Outdated      bool      `json:"outdated" doc:"True if superseded by a newer version"`
	CreatedAt     time.Time `json:"created_at" doc:"Creation timestamp"`
	UpdatedAt     time.Time `json:"updated_at" doc:"Last update timestamp"`
}

func toBookmarkResponse(b *domain.Bookmark) BookmarkResponse {
	tags := b.Tags
	if tags == nil {
		tags = []string{}
	}
	return BookmarkResponse{
		ID:            b.ID,
		URL:           b.URL,
		NormalizedURL: b.NormalizedURL,
		Domain:        b.Domain,
		Title:         b.Title,
		IsPublic:      b.IsPublic,
		Tags:          tags,
		ArchiveURL:    b.ArchiveURL,
		MainImageURL:  b.MainImageURL,
		Outdated:      b.Outdated,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

// BookmarkOutput wraps a single bookmark for Huma.
type BookmarkOutput struct {
	Body BookmarkResponse
}

// CreateBookmarkInput wraps the create request for Huma.
type CreateBookmarkInput struct {
	Body struct {
		URL          string   `json:"url" doc:"URL to bookmark"`
		Title        string   `json:"title" doc:"Bookmark title"`
		IsPublic     bool     `json:"is_public,omitempty" doc:"Whether the bookmark is publicly visible"`
		Tags         []string `json:"tags,omitempty" doc:"Tag names, slugged on save"`
		ArchiveURL   string   `json:"archive_url,omitempty" doc:"Archived copy URL"`
		MainImageURL string   `json:"main_image_url,omitempty" doc:"Preview image URL"`
	}
}

// BookmarkIDInput identifies a bookmark by path parameter.
type BookmarkIDInput struct {
	ID string `path:"id" doc:"Bookmark ID"`
}

// UpdateBookmarkInput wraps the patch request for Huma. Only fields present
// in the body are applied; an absent field keeps its current value.
type UpdateBookmarkInput struct {
	ID   string `path:"id" doc:"Bookmark ID"`
	Body struct {
		Title        *string   `json:"title,omitempty" doc:"New title"`
		IsPublic     *bool     `json:"is_public,omitempty" doc:"New visibility"`
		Tags         *[]string `json:"tags,omitempty" doc:"Replacement tag set"`
		ArchiveURL   *string   `json:"archive_url,omitempty" doc:"New archive URL"`
		MainImageURL *string   `json:"main_image_url,omitempty" doc:"New preview image URL"`
	}
}

// ListBookmarksInput carries pagination query parameters.
type ListBookmarksInput struct {
	Limit  int    `query:"limit" doc:"Page size (default 100, max 1000)"`
	Cursor string `query:"cursor" doc:"Opaque cursor from a previous page"`
}

// BookmarkListOutput wraps a bookmark page for Huma.
type BookmarkListOutput struct {
	Body struct {
		Bookmarks  []BookmarkResponse `json:"bookmarks" doc:"Bookmarks, most recently created first"`
		NextCursor string             `json:"next_cursor,omitempty" doc:"Cursor for the next page"`
		HasMore    bool               `json:"has_more" doc:"Whether another page exists"`
	}
}

// BookmarkHistoryOutput wraps a version history for Huma.
type BookmarkHistoryOutput struct {
	Body struct {
		Versions []BookmarkResponse `json:"versions" doc:"Prior versions, newest first"`
	}
}

// === Handlers ===

func (s *Server) handleCreateBookmark(ctx context.Context, input *CreateBookmarkInput) (*BookmarkOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	b, err := s.services.Bookmark.Create(ctx, userID, service.CreateBookmarkRequest{
		URL:          input.Body.URL,
		Title:        input.Body.Title,
		IsPublic:     input.Body.IsPublic,
		Tags:         input.Body.Tags,
		ArchiveURL:   input.Body.ArchiveURL,
		MainImageURL: input.Body.MainImageURL,
	})
	if err != nil {
		return nil, err
	}

	return &BookmarkOutput{Body: toBookmarkResponse(b)}, nil
}

func (s *Server) handleListBookmarks(ctx context.Context, input *ListBookmarksInput) (*BookmarkListOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	page, err := s.services.Bookmark.List(ctx, userID, store.PaginationParams{
		Limit:  input.Limit,
		Cursor: input.Cursor,
	})
	if err != nil {
		return nil, err
	}

	out := &BookmarkListOutput{}
	out.Body.Bookmarks = make([]BookmarkResponse, 0, len(page.Items))
	for _, b := range page.Items {
		out.Body.Bookmarks = append(out.Body.Bookmarks, toBookmarkResponse(b))
	}
	out.Body.NextCursor = page.NextCursor
	out.Body.HasMore = page.HasMore

	return out, nil
}

func (s *Server) handleGetBookmark(ctx context.Context, input *BookmarkIDInput) (*BookmarkOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	b, err := s.services.Bookmark.Get(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}

	return &BookmarkOutput{Body: toBookmarkResponse(b)}, nil
}

func (s *Server) handleUpdateBookmark(ctx context.Context, input *UpdateBookmarkInput) (*BookmarkOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	b, err := s.services.Bookmark.Update(ctx, userID, input.ID, domain.BookmarkPatch{
		Title:        input.Body.Title,
		IsPublic:     input.Body.IsPublic,
		Tags:         input.Body.Tags,
		ArchiveURL:   input.Body.ArchiveURL,
		MainImageURL: input.Body.MainImageURL,
	})
	if err != nil {
		return nil, err
	}

	return &BookmarkOutput{Body: toBookmarkResponse(b)}, nil
}

func (s *Server) handleDeleteBookmark(ctx context.Context, input *BookmarkIDInput) (*MessageOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Bookmark.Delete(ctx, userID, input.ID); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Bookmark deleted"}}, nil
}

func (s *Server) handleBookmarkHistory(ctx context.Context, input *BookmarkIDInput) (*BookmarkHistoryOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	versions, err := s.services.Bookmark.History(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}

	out := &BookmarkHistoryOutput{}
	out.Body.Versions = make([]BookmarkResponse, 0, len(versions))
	for _, v := range versions {
		out.Body.Versions = append(out.Body.Versions, toBookmarkResponse(v))
	}

	return out, nil
}
