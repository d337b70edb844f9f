package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyTagDelta_CreatesAndCounts(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, s.ApplyTagDelta(ctx, "user-1", []string{"go", "sync"}, nil))
	require.NoError(t, s.ApplyTagDelta(ctx, "user-1", []string{"go"}, nil))

	tags, err := s.ListTags(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, tags, 2)

	// Sorted by slug.
	assert.Equal(t, "go", tags[0].Slug)
	assert.Equal(t, 2, tags[0].BookmarkCount)
	assert.Equal(t, "sync", tags[1].Slug)
	assert.Equal(t, 1, tags[1].BookmarkCount)
}

func TestApplyTagDelta_RemovalDropsUnusedTags(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, s.ApplyTagDelta(ctx, "user-1", []string{"go", "sync"}, nil))
	require.NoError(t, s.ApplyTagDelta(ctx, "user-1", []string{"go"}, nil))

	require.NoError(t, s.ApplyTagDelta(ctx, "user-1", nil, []string{"go", "sync"}))

	tags, err := s.ListTags(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "go", tags[0].Slug)
	assert.Equal(t, 1, tags[0].BookmarkCount)
}

func TestApplyTagDelta_RemoveUnknownTagIsNoop(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, s.ApplyTagDelta(ctx, "user-1", nil, []string{"ghost"}))

	tags, err := s.ListTags(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestListTags_ScopedToOwner(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, s.ApplyTagDelta(ctx, "user-1", []string{"go"}, nil))
	require.NoError(t, s.ApplyTagDelta(ctx, "user-2", []string{"rust"}, nil))

	tags, err := s.ListTags(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "go", tags[0].Slug)
}
