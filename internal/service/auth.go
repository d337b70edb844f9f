package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bookmarkhive/hivecache/internal/auth"
	"github.com/bookmarkhive/hivecache/internal/domain"
	domainerrors "github.com/bookmarkhive/hivecache/internal/errors"
	"github.com/bookmarkhive/hivecache/internal/id"
	"github.com/bookmarkhive/hivecache/internal/store"
)

// AuthService handles user authentication (setup, login, token verification).
// Session management is delegated to SessionService.
type AuthService struct {
	store           *store.Store
	tokenService    *auth.TokenService
	sessionService  *SessionService
	instanceService *InstanceService
	logger          *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	store *store.Store,
	tokenService *auth.TokenService,
	sessionService *SessionService,
	instanceService *InstanceService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		store:           store,
		tokenService:    tokenService,
		sessionService:  sessionService,
		instanceService: instanceService,
		logger:          logger,
	}
}

// SetupRequest contains the initial root user creation data.
type SetupRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=1024"`
	DisplayName string `json:"display_name" validate:"required"`
}

// LoginRequest contains user credentials and device information.
type LoginRequest struct {
	Email      string          `json:"email" validate:"required,email"`
	Password   string          `json:"password" validate:"required"`
	DeviceInfo auth.DeviceInfo `json:"device_info"`
	IPAddress  string          `json:"-"` // Extracted from request by handler
}

// RefreshRequest contains the refresh token and updated device info.
type RefreshRequest struct {
	RefreshToken string          `json:"refresh_token" validate:"required"`
	DeviceInfo   auth.DeviceInfo `json:"device_info"` // Optional updates
	IPAddress    string          `json:"-"`           // Extracted from request by handler
}

// AuthResponse contains authentication tokens and user data.
type AuthResponse struct {
	User *domain.User `json:"user"`
	SessionResponse
}

// Setup creates the first user (root) and completes initial instance configuration.
// This endpoint can only be used once, before any users exist.
func (s *AuthService) Setup(ctx context.Context, req SetupRequest) (*AuthResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, formatValidationError(err)
	}

	setupRequired, err := s.instanceService.IsSetupRequired(ctx)
	if err != nil {
		return nil, fmt.Errorf("check setup status: %w", err)
	}
	if !setupRequired {
		return nil, domainerrors.AlreadyConfigured("instance is already configured")
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	userID, err := id.Generate("user")
	if err != nil {
		return nil, fmt.Errorf("generate user ID: %w", err)
	}

	user := &domain.User{
		Syncable: domain.Syncable{
			ID: userID,
		},
		Email:        req.Email,
		PasswordHash: passwordHash,
		IsRoot:       true,             // First user is root
		Role:         domain.RoleAdmin, // Root user is always admin
		DisplayName:  req.DisplayName,
		LastLoginAt:  time.Now(),
	}
	user.InitTimestamps()

	if err := s.store.Users.Create(ctx, userID, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.AlreadyExists("email already in use")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.instanceService.SetRootUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("configure instance: %w", err)
	}

	// Setup happens via web UI, so use basic web device info.
	deviceInfo := auth.DeviceInfo{
		Platform:      "Web",
		ClientName:    "HiveCache Web",
		ClientVersion: "1.0.0",
	}

	sessionResp, err := s.sessionService.CreateSession(ctx, user, deviceInfo, "")
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("Instance setup complete",
			"user_id", userID,
			"email", user.Email,
		)
	}

	return &AuthResponse{
		User:            user,
		SessionResponse: *sessionResp,
	}, nil
}

// Login authenticates a user and creates a new session.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, formatValidationError(err)
	}

	if !req.DeviceInfo.IsValid() {
		return nil, domainerrors.Validation("device_info is required (client_name and platform)")
	}

	user, err := s.store.Users.GetByIndex(ctx, "email", req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Don't leak whether email exists
			return nil, domainerrors.InvalidCredentials("invalid email or password")
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	valid, err := auth.VerifyPassword(user.PasswordHash, req.Password)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		return nil, domainerrors.InvalidCredentials("invalid email or password")
	}

	// Update last login
	user.LastLoginAt = time.Now()
	user.Touch()
	if err := s.store.Users.Update(ctx, user.ID, user); err != nil {
		// Log but don't fail login
		if s.logger != nil {
			s.logger.Warn("Failed to update last login time",
				"user_id", user.ID,
				"error", err,
			)
		}
	}

	sessionResp, err := s.sessionService.CreateSession(ctx, user, req.DeviceInfo, req.IPAddress)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("User logged in",
			"user_id", user.ID,
			"device", req.DeviceInfo.Platform,
		)
	}

	return &AuthResponse{
		User:            user,
		SessionResponse: *sessionResp,
	}, nil
}

// RefreshTokens generates new tokens using a refresh token.
// The old refresh token is invalidated (token rotation).
func (s *AuthService) RefreshTokens(ctx context.Context, req RefreshRequest) (*AuthResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, formatValidationError(err)
	}

	sessionResp, user, err := s.sessionService.RefreshSession(ctx, req.RefreshToken, req.DeviceInfo, req.IPAddress)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		User:            user,
		SessionResponse: *sessionResp,
	}, nil
}

// Logout revokes a session, invalidating its refresh token.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.sessionService.DeleteSession(ctx, sessionID)
}

// VerifyAccessToken validates a token and returns the associated user.
// Used by authentication middleware.
func (s *AuthService) VerifyAccessToken(ctx context.Context, tokenString string) (*domain.User, *auth.AccessClaims, error) {
	claims, err := s.tokenService.VerifyAccessToken(tokenString)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid token: %w", err)
	}

	user, err := s.store.Users.Get(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, errors.New("user not found")
		}
		return nil, nil, fmt.Errorf("get user: %w", err)
	}

	return user, claims, nil
}
