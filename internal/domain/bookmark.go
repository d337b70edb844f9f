package domain

import (
	"slices"
	"time"
)

// timeFormat is the wire format for projection timestamps.
const timeFormat = time.RFC3339

// Bookmark represents a saved URL at a point in time.
//
// Bookmarks are versioned by URL: creating a new bookmark whose normalized
// URL matches an existing non-outdated one for the same owner marks the
// prior version outdated. At most one non-outdated bookmark exists per
// (owner, normalized URL) pair. The URL never changes after creation —
// title, tags, visibility and file references do.
type Bookmark struct {
	Syncable
	OwnerID string `json:"owner_id"`

	// URL is the address as the user submitted it.
	// NormalizedURL is the canonical form used for version-chain dedup.
	URL           string `json:"url"`
	NormalizedURL string `json:"normalized_url"`
	Domain        string `json:"domain"`

	Title    string   `json:"title"`
	IsPublic bool     `json:"is_public"`
	Tags     []string `json:"tags,omitempty"` // tag slugs, always loaded eagerly

	// Optional file references managed by external storage.
	ArchiveURL   string `json:"archive_url,omitempty"`
	MainImageURL string `json:"main_image_url,omitempty"`

	// Outdated marks a superseded version in the URL's chain.
	// Outdated bookmarks are excluded from the search index and snapshot.
	Outdated bool `json:"outdated"`
}

// IsCurrent returns true if this is the live version for its URL.
func (b *Bookmark) IsCurrent() bool {
	return !b.Outdated
}

// BookmarkPatch carries a partial update for a bookmark.
// Nil fields are left unchanged. The URL is deliberately absent:
// a new URL means a new bookmark, not a mutation.
type BookmarkPatch struct {
	Title        *string   `json:"title,omitempty"`
	IsPublic     *bool     `json:"is_public,omitempty"`
	Tags         *[]string `json:"tags,omitempty"`
	ArchiveURL   *string   `json:"archive_url,omitempty"`
	MainImageURL *string   `json:"main_image_url,omitempty"`
}

// Apply copies the set fields of the patch onto the bookmark and reports
// whether anything changed.
func (p BookmarkPatch) Apply(b *Bookmark) bool {
	changed := false
	if p.Title != nil && *p.Title != b.Title {
		b.Title = *p.Title
		changed = true
	}
	if p.IsPublic != nil && *p.IsPublic != b.IsPublic {
		b.IsPublic = *p.IsPublic
		changed = true
	}
	if p.Tags != nil && !slices.Equal(*p.Tags, b.Tags) {
		b.Tags = *p.Tags
		changed = true
	}
	if p.ArchiveURL != nil && *p.ArchiveURL != b.ArchiveURL {
		b.ArchiveURL = *p.ArchiveURL
		changed = true
	}
	if p.MainImageURL != nil && *p.MainImageURL != b.MainImageURL {
		b.MainImageURL = *p.MainImageURL
		changed = true
	}
	if changed {
		b.Touch()
	}
	return changed
}

// Projection returns the denormalized wire form sent to clients.
func (b *Bookmark) Projection() BookmarkProjection {
	tags := b.Tags
	if tags == nil {
		tags = []string{}
	}
	return BookmarkProjection{
		ID:        b.ID,
		Title:     b.Title,
		URL:       b.URL,
		Domain:    b.Domain,
		Tags:      tags,
		CreatedAt: b.CreatedAt.UTC().Format(timeFormat),
		IsPublic:  b.IsPublic,
		Archive:   b.ArchiveURL,
		MainImage: b.MainImageURL,
	}
}

// BookmarkProjection is the denormalized wire form of a bookmark,
// consumed by clients for their local index. The field set matches what
// the client stores verbatim.
type BookmarkProjection struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	URL       string   `json:"url"`
	Domain    string   `json:"domain"`
	Tags      []string `json:"tags"`
	CreatedAt string   `json:"createdAt"` // RFC3339
	IsPublic  bool     `json:"isPublic"`
	Archive   string   `json:"archive,omitempty"`
	MainImage string   `json:"mainImage,omitempty"`
}
