package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bookmarkhive/hivecache/internal/domain"
	"github.com/bookmarkhive/hivecache/internal/store"
)

// TagService exposes the per-owner tag usage counts maintained by the
// bookmark service.
type TagService struct {
	store  *store.Store
	logger *slog.Logger
}

// NewTagService creates a new tag service.
func NewTagService(store *store.Store, logger *slog.Logger) *TagService {
	return &TagService{
		store:  store,
		logger: logger,
	}
}

// List returns the owner's tags sorted by slug.
func (s *TagService) List(ctx context.Context, ownerID string) ([]*domain.Tag, error) {
	tags, err := s.store.ListTags(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}
