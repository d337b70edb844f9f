package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookmarkhive/hivecache/internal/auth"
	"github.com/bookmarkhive/hivecache/internal/config"
	domainerrors "github.com/bookmarkhive/hivecache/internal/errors"
	"github.com/bookmarkhive/hivecache/internal/store"
)

// setupAuthTest wires the auth stack against temporary storage.
func setupAuthTest(t *testing.T) (*AuthService, *InstanceService, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "hivecache-auth-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	s, err := store.New(dbPath, nil)
	require.NoError(t, err)

	authKey, err := auth.LoadOrGenerateKey(tmpDir)
	require.NoError(t, err)

	cfg := &config.Config{
		Server: config.ServerConfig{
			Name:      "Test Hive",
			PublicURL: "http://localhost:8080",
		},
		Auth: config.AuthConfig{
			AccessTokenKey:       authKey,
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: 30 * 24 * time.Hour,
		},
	}

	tokenService, err := auth.NewTokenService(authKey, cfg.Auth.AccessTokenDuration, cfg.Auth.RefreshTokenDuration)
	require.NoError(t, err)

	instanceService := NewInstanceService(s, nil, cfg)
	_, err = instanceService.InitializeInstance(context.Background())
	require.NoError(t, err)

	sessionService := NewSessionService(s, tokenService, nil)
	authService := NewAuthService(s, tokenService, sessionService, instanceService, nil)

	cleanup := func() {
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	}
	return authService, instanceService, cleanup
}

func testDeviceInfo() auth.DeviceInfo {
	return auth.DeviceInfo{
		Platform:      "Linux",
		ClientName:    "HiveCache CLI",
		ClientVersion: "1.0.0",
		DeviceName:    "test-box",
	}
}

func TestAuthService_Setup(t *testing.T) {
	authService, instanceService, cleanup := setupAuthTest(t)
	defer cleanup()
	ctx := context.Background()

	resp, err := authService.Setup(ctx, SetupRequest{
		Email:       "root@example.com",
		Password:    "correct horse battery",
		DisplayName: "Root",
	})
	require.NoError(t, err)

	assert.True(t, resp.User.IsRoot)
	assert.True(t, resp.User.IsAdmin())
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "Bearer", resp.TokenType)

	required, err := instanceService.IsSetupRequired(ctx)
	require.NoError(t, err)
	assert.False(t, required)

	// Setup is single-use.
	_, err = authService.Setup(ctx, SetupRequest{
		Email:       "second@example.com",
		Password:    "correct horse battery",
		DisplayName: "Second",
	})
	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeAlreadyConfigured, domainErr.Code)
}

func TestAuthService_LoginAndVerify(t *testing.T) {
	authService, _, cleanup := setupAuthTest(t)
	defer cleanup()
	ctx := context.Background()

	_, err := authService.Setup(ctx, SetupRequest{
		Email:       "root@example.com",
		Password:    "correct horse battery",
		DisplayName: "Root",
	})
	require.NoError(t, err)

	resp, err := authService.Login(ctx, LoginRequest{
		Email:      "root@example.com",
		Password:   "correct horse battery",
		DeviceInfo: testDeviceInfo(),
	})
	require.NoError(t, err)

	user, claims, err := authService.VerifyAccessToken(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, user.ID)
	assert.Equal(t, "root@example.com", claims.Email)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	authService, _, cleanup := setupAuthTest(t)
	defer cleanup()
	ctx := context.Background()

	_, err := authService.Setup(ctx, SetupRequest{
		Email:       "root@example.com",
		Password:    "correct horse battery",
		DisplayName: "Root",
	})
	require.NoError(t, err)

	_, err = authService.Login(ctx, LoginRequest{
		Email:      "root@example.com",
		Password:   "wrong",
		DeviceInfo: testDeviceInfo(),
	})
	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeInvalidCredentials, domainErr.Code)

	// Unknown emails fail the same way.
	_, err = authService.Login(ctx, LoginRequest{
		Email:      "nobody@example.com",
		Password:   "correct horse battery",
		DeviceInfo: testDeviceInfo(),
	})
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeInvalidCredentials, domainErr.Code)
}

func TestAuthService_RefreshRotatesTokens(t *testing.T) {
	authService, _, cleanup := setupAuthTest(t)
	defer cleanup()
	ctx := context.Background()

	_, err := authService.Setup(ctx, SetupRequest{
		Email:       "root@example.com",
		Password:    "correct horse battery",
		DisplayName: "Root",
	})
	require.NoError(t, err)

	login, err := authService.Login(ctx, LoginRequest{
		Email:      "root@example.com",
		Password:   "correct horse battery",
		DeviceInfo: testDeviceInfo(),
	})
	require.NoError(t, err)

	refreshed, err := authService.RefreshTokens(ctx, RefreshRequest{
		RefreshToken: login.RefreshToken,
	})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	assert.Equal(t, login.SessionID, refreshed.SessionID)

	// The old refresh token is dead after rotation.
	_, err = authService.RefreshTokens(ctx, RefreshRequest{
		RefreshToken: login.RefreshToken,
	})
	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeTokenExpired, domainErr.Code)
}

func TestAuthService_Logout(t *testing.T) {
	authService, _, cleanup := setupAuthTest(t)
	defer cleanup()
	ctx := context.Background()

	setup, err := authService.Setup(ctx, SetupRequest{
		Email:       "root@example.com",
		Password:    "correct horse battery",
		DisplayName: "Root",
	})
	require.NoError(t, err)

	require.NoError(t, authService.Logout(ctx, setup.SessionID))

	_, err = authService.RefreshTokens(ctx, RefreshRequest{
		RefreshToken: setup.RefreshToken,
	})
	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeTokenExpired, domainErr.Code)
}
