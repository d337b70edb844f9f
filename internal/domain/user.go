package domain

import "time"

// Role represents the user's permission level in the system.
type Role string

const (
	// RoleAdmin grants full administrative access.
	RoleAdmin Role = "admin"
	// RoleMember grants standard user access.
	RoleMember Role = "member"
)

// User represents an authenticated account that owns bookmarks.
type User struct {
	Syncable
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash,omitempty"` // Stored hashed, filter from API responses
	IsRoot       bool      `json:"is_root"`
	Role         Role      `json:"role"`
	DisplayName  string    `json:"display_name"`
	LastLoginAt  time.Time `json:"last_login_at"`
}

// IsAdmin returns true if the user has administrative privileges.
// Root users are automatically admins, regardless of their role field.
func (u *User) IsAdmin() bool {
	return u.IsRoot || u.Role == RoleAdmin
}

// Name returns the best available name to display for the user.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}

// Session represents an authenticated device session backed by a refresh token.
type Session struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	RefreshTokenHash string    `json:"refresh_token_hash,omitempty"` // Stored hashed, filter from API responses
	ExpiresAt        time.Time `json:"expires_at"`
	CreatedAt        time.Time `json:"created_at"`
	LastSeenAt       time.Time `json:"last_seen_at"`
	IPAddress        string    `json:"ip_address,omitempty"`

	// Device information sent by the client, used for display and security.
	ClientName    string `json:"client_name"`
	ClientVersion string `json:"client_version"`
	DeviceName    string `json:"device_name,omitempty"`
	Platform      string `json:"platform"`
}

// Touch updates the session's last seen timestamp.
func (s *Session) Touch() {
	s.LastSeenAt = time.Now()
}

// IsExpired checks if the session has passed its expiration time.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
