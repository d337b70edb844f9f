package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerTagRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags",
		Summary:     "List tags",
		Description: "Returns the user's tags with bookmark counts, sorted by slug",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListTags)
}

// TagResponse is a tag as exposed by the API.
type TagResponse struct {
	Slug          string `json:"slug" doc:"Canonical tag slug"`
	BookmarkCount int    `json:"bookmark_count" doc:"Number of current bookmarks carrying this tag"`
}

// TagListOutput wraps the tag list for Huma.
type TagListOutput struct {
	Body struct {
		Tags []TagResponse `json:"tags" doc:"Tags sorted by slug"`
	}
}

func (s *Server) handleListTags(ctx context.Context, _ *AuthenticatedInput) (*TagListOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	tags, err := s.services.Tag.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := &TagListOutput{}
	out.Body.Tags = make([]TagResponse, 0, len(tags))
	for _, t := range tags {
		out.Body.Tags = append(out.Body.Tags, TagResponse{
			Slug:          t.Slug,
			BookmarkCount: t.BookmarkCount,
		})
	}

	return out, nil
}
