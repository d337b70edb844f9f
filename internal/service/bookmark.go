package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bookmarkhive/hivecache/internal/domain"
	domainerrors "github.com/bookmarkhive/hivecache/internal/errors"
	"github.com/bookmarkhive/hivecache/internal/id"
	"github.com/bookmarkhive/hivecache/internal/normalize"
	"github.com/bookmarkhive/hivecache/internal/store"
	"github.com/bookmarkhive/hivecache/internal/util"
)

// BookmarkService handles bookmark CRUD and the tag bookkeeping that
// follows from it. Every mutation it performs is recorded in the owner's
// index action log by the store.
type BookmarkService struct {
	store  *store.Store
	logger *slog.Logger
}

// NewBookmarkService creates a new bookmark service.
func NewBookmarkService(store *store.Store, logger *slog.Logger) *BookmarkService {
	return &BookmarkService{
		store:  store,
		logger: logger,
	}
}

// CreateBookmarkRequest contains the data for saving a new bookmark.
type CreateBookmarkRequest struct {
	URL          string   `json:"url" validate:"required,max=2048"`
	Title        string   `json:"title" validate:"required,max=500"`
	IsPublic     bool     `json:"is_public"`
	Tags         []string `json:"tags" validate:"max=50"`
	ArchiveURL   string   `json:"archive_url" validate:"omitempty,max=2048"`
	MainImageURL string   `json:"main_image_url" validate:"omitempty,max=2048"`
}

// Create saves a new bookmark for the owner. If the owner already has a
// current bookmark for the same normalized URL, the prior version is
// outdated in the same transaction and its tags released.
func (s *BookmarkService) Create(ctx context.Context, ownerID string, req CreateBookmarkRequest) (*domain.Bookmark, error) {
	if err := validate.Struct(req); err != nil {
		return nil, formatValidationError(err)
	}

	normalized, err := normalize.URL(req.URL)
	if err != nil {
		return nil, domainerrors.Validationf("url is not a valid absolute URL: %v", err)
	}

	bookmarkID, err := id.Generate("bm")
	if err != nil {
		return nil, fmt.Errorf("generate bookmark ID: %w", err)
	}

	b := &domain.Bookmark{
		Syncable: domain.Syncable{
			ID: bookmarkID,
		},
		OwnerID:       ownerID,
		URL:           req.URL,
		NormalizedURL: normalized,
		Domain:        normalize.Domain(normalized),
		Title:         req.Title,
		IsPublic:      req.IsPublic,
		Tags:          util.NormalizeTagSlugs(req.Tags),
		ArchiveURL:    req.ArchiveURL,
		MainImageURL:  req.MainImageURL,
	}
	b.InitTimestamps()

	outdatedID, err := s.store.CreateBookmark(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("create bookmark: %w", err)
	}

	// Tag counts track current versions only: release the outdated
	// version's tags, claim the new one's.
	var released []string
	if outdatedID != "" {
		prior, err := s.store.GetBookmark(ctx, outdatedID)
		if err == nil {
			released = prior.Tags
		} else if s.logger != nil {
			s.logger.Warn("outdated version vanished before tag release", "id", outdatedID, "error", err)
		}
	}
	if err := s.store.ApplyTagDelta(ctx, ownerID, b.Tags, released); err != nil {
		return nil, fmt.Errorf("apply tag delta: %w", err)
	}

	return b, nil
}

// Update applies a partial edit to a current bookmark.
// A no-op patch returns the bookmark unchanged without logging an action.
func (s *BookmarkService) Update(ctx context.Context, ownerID, bookmarkID string, patch domain.BookmarkPatch) (*domain.Bookmark, error) {
	b, err := s.getOwned(ctx, ownerID, bookmarkID)
	if err != nil {
		return nil, err
	}
	if !b.IsCurrent() {
		return nil, domainerrors.Conflict("bookmark version is outdated and read-only")
	}

	if patch.Tags != nil {
		normalized := util.NormalizeTagSlugs(*patch.Tags)
		patch.Tags = &normalized
	}

	oldTags := b.Tags
	if !patch.Apply(b) {
		return b, nil
	}

	if err := s.store.UpdateBookmark(ctx, b); err != nil {
		return nil, fmt.Errorf("update bookmark: %w", err)
	}

	added, removed := diffTags(oldTags, b.Tags)
	if err := s.store.ApplyTagDelta(ctx, ownerID, added, removed); err != nil {
		return nil, fmt.Errorf("apply tag delta: %w", err)
	}

	return b, nil
}

// Delete removes a bookmark together with every other version of its URL.
// Tag counts only track the current version, so only its tags are released.
func (s *BookmarkService) Delete(ctx context.Context, ownerID, bookmarkID string) error {
	b, err := s.getOwned(ctx, ownerID, bookmarkID)
	if err != nil {
		return err
	}

	var currentTags []string
	if b.IsCurrent() {
		currentTags = b.Tags
	} else if current, err := s.store.GetCurrentBookmarkByURL(ctx, ownerID, b.NormalizedURL); err == nil {
		currentTags = current.Tags
	}

	if _, err := s.store.DeleteBookmark(ctx, ownerID, bookmarkID); err != nil {
		return fmt.Errorf("delete bookmark: %w", err)
	}

	if err := s.store.ApplyTagDelta(ctx, ownerID, nil, currentTags); err != nil {
		return fmt.Errorf("apply tag delta: %w", err)
	}

	return nil
}

// Get retrieves one of the owner's bookmarks by ID.
func (s *BookmarkService) Get(ctx context.Context, ownerID, bookmarkID string) (*domain.Bookmark, error) {
	return s.getOwned(ctx, ownerID, bookmarkID)
}

// List returns a page of the owner's current bookmarks.
func (s *BookmarkService) List(ctx context.Context, ownerID string, params store.PaginationParams) (*store.PaginatedResult[*domain.Bookmark], error) {
	params.Validate()

	result, err := s.store.ListCurrentBookmarks(ctx, ownerID, params)
	if err != nil {
		if errors.Is(err, store.ErrInvalidCursor) {
			return nil, domainerrors.Validation("invalid pagination cursor")
		}
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	return result, nil
}

// History returns the versions of a bookmark's URL older than the queried
// one, newest first. Querying a superseded version never shows its
// successors.
func (s *BookmarkService) History(ctx context.Context, ownerID, bookmarkID string) ([]*domain.Bookmark, error) {
	b, err := s.getOwned(ctx, ownerID, bookmarkID)
	if err != nil {
		return nil, err
	}

	versions, err := s.store.ListBookmarkHistory(ctx, ownerID, b.NormalizedURL)
	if err != nil {
		return nil, fmt.Errorf("list bookmark history: %w", err)
	}

	// Store order is oldest first; everything before the queried version
	// is its history, shown newest first.
	cut := len(versions)
	for i, v := range versions {
		if v.ID == bookmarkID {
			cut = i
			break
		}
	}

	history := make([]*domain.Bookmark, 0, cut)
	for i := cut - 1; i >= 0; i-- {
		history = append(history, versions[i])
	}

	return history, nil
}

// getOwned loads a bookmark and verifies ownership. Other owners' bookmarks
// read as not-found rather than forbidden to avoid existence leaks.
func (s *BookmarkService) getOwned(ctx context.Context, ownerID, bookmarkID string) (*domain.Bookmark, error) {
	b, err := s.store.GetBookmark(ctx, bookmarkID)
	if err != nil {
		if errors.Is(err, store.ErrBookmarkNotFound) {
			return nil, domainerrors.NotFound("bookmark not found")
		}
		return nil, fmt.Errorf("get bookmark: %w", err)
	}
	if b.OwnerID != ownerID {
		return nil, domainerrors.NotFound("bookmark not found")
	}
	return b, nil
}

// diffTags returns the slugs present only in next (added) and only in
// prev (removed).
func diffTags(prev, next []string) (added, removed []string) {
	prevSet := make(map[string]bool, len(prev))
	for _, t := range prev {
		prevSet[t] = true
	}
	nextSet := make(map[string]bool, len(next))
	for _, t := range next {
		nextSet[t] = true
	}

	for _, t := range next {
		if !prevSet[t] {
			added = append(added, t)
		}
	}
	for _, t := range prev {
		if !nextSet[t] {
			removed = append(removed, t)
		}
	}
	return added, removed
}
