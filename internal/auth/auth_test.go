package auth

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookmarkhive/hivecache/internal/domain"
)

func TestHashPassword_VerifyRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$")

	ok, err := VerifyPassword(hash, "correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword(hash, "wrong password")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPassword_Empty(t *testing.T) {
	_, err := HashPassword("")
	assert.Error(t, err)
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	ok, err := VerifyPassword("not-a-valid-hash", "password")
	require.NoError(t, err)
	assert.False(t, ok)
}

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	svc, err := NewTokenService(key, 15*time.Minute, 720*time.Hour)
	require.NoError(t, err)
	return svc
}

func TestTokenService_AccessTokenRoundTrip(t *testing.T) {
	svc := newTestTokenService(t)

	user := &domain.User{Email: "ada@example.com"}
	user.ID = "user-abc123"

	token, err := svc.GenerateAccessToken(user)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := svc.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-abc123", claims.UserID)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, "user-abc123", claims.Subject)
	assert.NotEmpty(t, claims.TokenID)
}

func TestTokenService_RejectsTamperedToken(t *testing.T) {
	svc := newTestTokenService(t)

	user := &domain.User{Email: "ada@example.com"}
	user.ID = "user-abc123"

	token, err := svc.GenerateAccessToken(user)
	require.NoError(t, err)

	_, err = svc.VerifyAccessToken(token + "garbage")
	assert.Error(t, err)
}

func TestTokenService_RejectsWrongKey(t *testing.T) {
	svc := newTestTokenService(t)
	other := newTestTokenService(t)

	user := &domain.User{Email: "ada@example.com"}
	user.ID = "user-abc123"

	token, err := svc.GenerateAccessToken(user)
	require.NoError(t, err)

	_, err = other.VerifyAccessToken(token)
	assert.Error(t, err)
}

func TestNewTokenService_BadKeyLength(t *testing.T) {
	_, err := NewTokenService([]byte("too short"), time.Minute, time.Hour)
	assert.Error(t, err)
}

func TestGenerateRefreshToken_UniqueAndHashable(t *testing.T) {
	svc := newTestTokenService(t)

	a, err := svc.GenerateRefreshToken()
	require.NoError(t, err)
	b, err := svc.GenerateRefreshToken()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	// Hash is deterministic and never the raw token.
	assert.Equal(t, HashRefreshToken(a), HashRefreshToken(a))
	assert.NotEqual(t, a, HashRefreshToken(a))
}

func TestLoadOrGenerateKey_Persistence(t *testing.T) {
	dir := t.TempDir()

	key1, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Len(t, key1, 32)

	key2, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Equal(t, key1, key2)
}
