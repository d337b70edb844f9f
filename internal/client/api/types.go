package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/bookmarkhive/hivecache/internal/domain"
)

// envelope is the versioned wrapper every server response arrives in.
type envelope[T any] struct {
	Version int            `json:"v"`
	Success bool           `json:"success"`
	Data    T              `json:"data,omitzero"`
	Error   *envelopeError `json:"error,omitempty"`
}

type envelopeError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Error is a server-reported API error.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("server error %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status == 404
	}
	return false
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status == 401
	}
	return false
}

// DeviceInfo identifies the client installation on login and refresh.
type DeviceInfo struct {
	Platform      string `json:"platform,omitempty"`
	ClientName    string `json:"client_name,omitempty"`
	ClientVersion string `json:"client_version,omitempty"`
	DeviceName    string `json:"device_name,omitempty"`
}

// User is the wire form of an account.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	IsRoot      bool      `json:"is_root"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// AuthResponse is returned by login and refresh.
type AuthResponse struct {
	User         User   `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	SessionID    string `json:"session_id"`
}

// Bookmark is the full wire form of a bookmark, as returned by the
// bookmark endpoints.
type Bookmark struct {
	ID            string    `json:"id"`
	URL           string    `json:"url"`
	NormalizedURL string    `json:"normalized_url"`
	Domain        string    `json:"domain"`
	Title         string    `json:"title"`
	IsPublic      bool      `json:"is_public"`
	Tags          []string  `json:"tags"`
	ArchiveURL    string    `json:"archive_url,omitempty"`
	MainImageURL  string    `json:"main_image_url,omitempty"`
	Outdated      bool      `json:"outdated"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Projection converts the full bookmark to the denormalized index form
// the local cache stores.
func (b *Bookmark) Projection() domain.BookmarkProjection {
	tags := b.Tags
	if tags == nil {
		tags = []string{}
	}
	return domain.BookmarkProjection{
		ID:        b.ID,
		Title:     b.Title,
		URL:       b.URL,
		Domain:    b.Domain,
		Tags:      tags,
		CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339),
		IsPublic:  b.IsPublic,
		Archive:   b.ArchiveURL,
		MainImage: b.MainImageURL,
	}
}

// IndexPage is one page of the bookmark index snapshot.
type IndexPage struct {
	Collection []domain.BookmarkProjection `json:"collection"`
	PrevPage   *string                     `json:"prevPage"`
	NextPage   *string                     `json:"nextPage"`
	Total      *int                        `json:"total"`
	Checkpoint string                      `json:"checkpoint"`
}

// Action is one entry of the server's index action log.
type Action struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	BookmarkID string    `json:"bookmarkId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Action types mirrored from the server log.
const (
	ActionCreated  = "created"
	ActionUpdated  = "updated"
	ActionOutdated = "outdated"
	ActionDeleted  = "deleted"
)

// DiffPage is one page of the action log diff.
type DiffPage struct {
	Collection []Action `json:"collection"`
	NextPage   *string  `json:"nextPage"`
}

// Instance is the public server descriptor.
type Instance struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	SetupRequired bool   `json:"setup_required"`
}
