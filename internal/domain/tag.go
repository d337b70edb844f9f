package domain

import "time"

// Tag represents an owner-scoped tag for categorizing bookmarks.
// Slug is the source of truth; clients transform for display: "slow-burn" → "Slow Burn".
type Tag struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	Slug          string    `json:"slug"`           // Canonical form: lowercase, hyphenated
	BookmarkCount int       `json:"bookmark_count"` // Denormalized count of current bookmarks carrying this tag
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Touch updates the UpdatedAt timestamp.
func (t *Tag) Touch() {
	t.UpdatedAt = time.Now()
}
