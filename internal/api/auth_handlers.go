package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bookmarkhive/hivecache/internal/auth"
	"github.com/bookmarkhive/hivecache/internal/domain"
	"github.com/bookmarkhive/hivecache/internal/service"
)

func (s *Server) registerAuthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "setup",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/setup",
		Summary:     "Initial server setup",
		Description: "Creates the first admin user. Can only be called once.",
		Tags:        []string{"Authentication"},
	}, s.handleSetup)

	huma.Register(s.api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/login",
		Summary:     "User login",
		Description: "Authenticates a user and returns access and refresh tokens",
		Tags:        []string{"Authentication"},
	}, s.handleLogin)

	huma.Register(s.api, huma.Operation{
		OperationID: "refresh",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/refresh",
		Summary:     "Refresh tokens",
		Description: "Exchanges a refresh token for new tokens",
		Tags:        []string{"Authentication"},
	}, s.handleRefresh)

	huma.Register(s.api, huma.Operation{
		OperationID: "logout",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/logout",
		Summary:     "Logout",
		Description: "Revokes the specified session",
		Tags:        []string{"Authentication"},
	}, s.handleLogout)
}

// === DTOs ===

// DeviceInfo contains client metadata for session tracking.
type DeviceInfo struct {
	Platform      string `json:"platform,omitempty" doc:"Platform (iOS, Android, Windows, macOS, Linux, Web)"`
	ClientName    string `json:"client_name,omitempty" doc:"Client name (HiveCache CLI, etc.)"`
	ClientVersion string `json:"client_version,omitempty" doc:"Client version (1.0.0)"`
	DeviceName    string `json:"device_name,omitempty" doc:"Human-readable device name"`
}

func (d DeviceInfo) toAuth() auth.DeviceInfo {
	return auth.DeviceInfo{
		Platform:      d.Platform,
		ClientName:    d.ClientName,
		ClientVersion: d.ClientVersion,
		DeviceName:    d.DeviceName,
	}
}

// SetupInput wraps the setup request for Huma.
type SetupInput struct {
	Body struct {
		Email       string `json:"email" doc:"Admin email address"`
		Password    string `json:"password" doc:"Admin password"`
		DisplayName string `json:"display_name" doc:"Admin display name"`
	}
}

// LoginInput wraps the login request with headers for Huma.
type LoginInput struct {
	Body struct {
		Email      string     `json:"email" doc:"User email"`
		Password   string     `json:"password" doc:"User password"`
		DeviceInfo DeviceInfo `json:"device_info,omitempty" doc:"Client device info"`
	}
	XForwardedFor string `header:"X-Forwarded-For"`
	XRealIP       string `header:"X-Real-IP"`
}

// RefreshInput wraps the refresh request with headers for Huma.
type RefreshInput struct {
	Body struct {
		RefreshToken string     `json:"refresh_token" doc:"Refresh token"`
		DeviceInfo   DeviceInfo `json:"device_info,omitempty" doc:"Updated device info"`
	}
	XForwardedFor string `header:"X-Forwarded-For"`
	XRealIP       string `header:"X-Real-IP"`
}

// LogoutInput wraps the logout request for Huma.
type LogoutInput struct {
	Body struct {
		SessionID string `json:"session_id" doc:"Session ID to revoke"`
	}
}

// UserResponse contains user information in API responses.
type UserResponse struct {
	ID          string    `json:"id" doc:"User ID"`
	Email       string    `json:"email" doc:"User email"`
	DisplayName string    `json:"display_name" doc:"Display name"`
	IsRoot      bool      `json:"is_root" doc:"Whether user is the root admin"`
	Role        string    `json:"role" doc:"User role"`
	CreatedAt   time.Time `json:"created_at" doc:"Creation timestamp"`
	LastLoginAt time.Time `json:"last_login_at,omitzero" doc:"Last login timestamp"`
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		IsRoot:      u.IsRoot,
		Role:        string(u.Role),
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

// AuthResponse contains tokens and user data after authentication.
type AuthResponse struct {
	User         UserResponse `json:"user" doc:"Authenticated user"`
	AccessToken  string       `json:"access_token" doc:"PASETO access token"`
	RefreshToken string       `json:"refresh_token" doc:"Opaque refresh token"`
	TokenType    string       `json:"token_type" doc:"Always Bearer"`
	ExpiresIn    int          `json:"expires_in" doc:"Seconds until access token expires"`
	SessionID    string       `json:"session_id" doc:"Session ID"`
}

// AuthOutput wraps the auth response for Huma.
type AuthOutput struct {
	Body AuthResponse
}

// MessageResponse carries a human-readable status message.
type MessageResponse struct {
	Message string `json:"message" doc:"Success message"`
}

// MessageOutput wraps the message response for Huma.
type MessageOutput struct {
	Body MessageResponse
}

func toAuthResponse(resp *service.AuthResponse) AuthResponse {
	return AuthResponse{
		User:         toUserResponse(resp.User),
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
		ExpiresIn:    resp.ExpiresIn,
		SessionID:    resp.SessionID,
	}
}

// clientIP picks the client address from forwarding headers.
func clientIP(xForwardedFor, xRealIP string) string {
	if xForwardedFor != "" {
		for i := 0; i < len(xForwardedFor); i++ {
			if xForwardedFor[i] == ',' {
				return xForwardedFor[:i]
			}
		}
		return xForwardedFor
	}
	return xRealIP
}

// === Handlers ===

func (s *Server) handleSetup(ctx context.Context, input *SetupInput) (*AuthOutput, error) {
	resp, err := s.services.Auth.Setup(ctx, service.SetupRequest{
		Email:       input.Body.Email,
		Password:    input.Body.Password,
		DisplayName: input.Body.DisplayName,
	})
	if err != nil {
		return nil, err
	}

	return &AuthOutput{Body: toAuthResponse(resp)}, nil
}

func (s *Server) handleLogin(ctx context.Context, input *LoginInput) (*AuthOutput, error) {
	resp, err := s.services.Auth.Login(ctx, service.LoginRequest{
		Email:      input.Body.Email,
		Password:   input.Body.Password,
		DeviceInfo: input.Body.DeviceInfo.toAuth(),
		IPAddress:  clientIP(input.XForwardedFor, input.XRealIP),
	})
	if err != nil {
		return nil, err
	}

	return &AuthOutput{Body: toAuthResponse(resp)}, nil
}

func (s *Server) handleRefresh(ctx context.Context, input *RefreshInput) (*AuthOutput, error) {
	resp, err := s.services.Auth.RefreshTokens(ctx, service.RefreshRequest{
		RefreshToken: input.Body.RefreshToken,
		DeviceInfo:   input.Body.DeviceInfo.toAuth(),
		IPAddress:    clientIP(input.XForwardedFor, input.XRealIP),
	})
	if err != nil {
		return nil, err
	}

	return &AuthOutput{Body: toAuthResponse(resp)}, nil
}

func (s *Server) handleLogout(ctx context.Context, input *LogoutInput) (*MessageOutput, error) {
	if err := s.services.Auth.Logout(ctx, input.Body.SessionID); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Logged out successfully"}}, nil
}
