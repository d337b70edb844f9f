package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookmarkhive/hivecache/internal/store"
)

func TestInstance_Lifecycle(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.GetInstance(ctx)
	assert.ErrorIs(t, err, store.ErrInstanceNotFound)

	created, err := s.CreateInstance(ctx)
	require.NoError(t, err)
	assert.False(t, created.HasRootUser)
	assert.True(t, created.IsSetupRequired())

	_, err = s.CreateInstance(ctx)
	assert.ErrorIs(t, err, store.ErrInstanceAlreadyExists)

	created.HasRootUser = true
	require.NoError(t, s.UpdateInstance(ctx, created))

	got, err := s.GetInstance(ctx)
	require.NoError(t, err)
	assert.True(t, got.HasRootUser)
	assert.False(t, got.IsSetupRequired())
}

func TestInitializeInstance_Idempotent(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	first, err := s.InitializeInstance(ctx)
	require.NoError(t, err)

	second, err := s.InitializeInstance(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}
