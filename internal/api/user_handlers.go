package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bookmarkhive/hivecache/internal/domain"
	domainerrors "github.com/bookmarkhive/hivecache/internal/errors"
)

func (s *Server) registerUserRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getCurrentUser",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/me",
		Summary:     "Get current user",
		Description: "Returns the authenticated user's information",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetCurrentUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "listSessions",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/me/sessions",
		Summary:     "List sessions",
		Description: "Returns the authenticated user's active sessions",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListSessions)

	huma.Register(s.api, huma.Operation{
		OperationID: "revokeSession",
		Method:      http.MethodDelete,
		Path:        "/api/v1/users/me/sessions/{sessionID}",
		Summary:     "Revoke session",
		Description: "Revokes one of the authenticated user's sessions",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRevokeSession)
}

// AuthenticatedInput carries only the auth header, for operations without
// other parameters. The middleware does the actual token validation.
type AuthenticatedInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token"`
}

// UserOutput wraps the user response for Huma.
type UserOutput struct {
	Body UserResponse
}

// SessionInfo describes an active session without token material.
type SessionInfo struct {
	ID         string    `json:"id" doc:"Session ID"`
	CreatedAt  time.Time `json:"created_at" doc:"When the session was created"`
	LastSeenAt time.Time `json:"last_seen_at" doc:"Last activity timestamp"`
	ExpiresAt  time.Time `json:"expires_at" doc:"When the refresh token expires"`
	IPAddress  string    `json:"ip_address,omitempty" doc:"Last known client IP"`
	Platform   string    `json:"platform,omitempty" doc:"Client platform"`
	ClientName string    `json:"client_name,omitempty" doc:"Client application name"`
	DeviceName string    `json:"device_name,omitempty" doc:"Device name"`
}

// SessionListOutput wraps the session list for Huma.
type SessionListOutput struct {
	Body struct {
		Sessions []SessionInfo `json:"sessions" doc:"Active sessions"`
	}
}

// RevokeSessionInput identifies the session to revoke.
type RevokeSessionInput struct {
	SessionID string `path:"sessionID" doc:"Session ID"`
}

func toSessionInfo(sess *domain.Session) SessionInfo {
	return SessionInfo{
		ID:         sess.ID,
		CreatedAt:  sess.CreatedAt,
		LastSeenAt: sess.LastSeenAt,
		ExpiresAt:  sess.ExpiresAt,
		IPAddress:  sess.IPAddress,
		Platform:   sess.Platform,
		ClientName: sess.ClientName,
		DeviceName: sess.DeviceName,
	}
}

func (s *Server) handleGetCurrentUser(ctx context.Context, _ *AuthenticatedInput) (*UserOutput, error) {
	user, err := s.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	return &UserOutput{Body: toUserResponse(user)}, nil
}

func (s *Server) handleListSessions(ctx context.Context, _ *AuthenticatedInput) (*SessionListOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	sessions, err := s.services.Session.ListUserSessions(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := &SessionListOutput{}
	out.Body.Sessions = make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		out.Body.Sessions = append(out.Body.Sessions, toSessionInfo(sess))
	}

	return out, nil
}

func (s *Server) handleRevokeSession(ctx context.Context, input *RevokeSessionInput) (*MessageOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	// Only the session owner may revoke it.
	sessions, err := s.services.Session.ListUserSessions(ctx, userID)
	if err != nil {
		return nil, err
	}

	owned := false
	for _, sess := range sessions {
		if sess.ID == input.SessionID {
			owned = true
			break
		}
	}
	if !owned {
		return nil, domainerrors.NotFound("Session not found")
	}

	if err := s.services.Session.DeleteSession(ctx, input.SessionID); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Session revoked"}}, nil
}
