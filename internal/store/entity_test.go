package store_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookmarkhive/hivecache/internal/store"
)

type TestEntity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func TestEntity_CreateAndGet(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	entity := store.NewEntity[TestEntity](s, "test:")

	testData := &TestEntity{
		ID:    "1",
		Name:  "Ada Lovelace",
		Email: "ada@example.com",
	}

	err := entity.Create(context.Background(), "1", testData)
	require.NoError(t, err)

	retrieved, err := entity.Get(context.Background(), "1")
	require.NoError(t, err)
	require.Equal(t, testData.Name, retrieved.Name)
	require.Equal(t, testData.Email, retrieved.Email)
}

func TestEntity_Create_AlreadyExists(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	entity := store.NewEntity[TestEntity](s, "test:")
	testData := &TestEntity{ID: "1", Name: "Ada"}

	require.NoError(t, entity.Create(context.Background(), "1", testData))

	err := entity.Create(context.Background(), "1", testData)
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestEntity_Get_NotFound(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	entity := store.NewEntity[TestEntity](s, "test:")

	_, err := entity.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEntity_IndexLookup(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	entity := store.NewEntity[TestEntity](s, "test:").
		WithIndex("email", func(e *TestEntity) []string {
			return []string{e.Email}
		})

	testData := &TestEntity{ID: "1", Name: "Ada", Email: "ada@example.com"}
	require.NoError(t, entity.Create(context.Background(), "1", testData))

	found, err := entity.GetByIndex(context.Background(), "email", "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "1", found.ID)

	_, err = entity.GetByIndex(context.Background(), "email", "nobody@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEntity_IndexConflict(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	entity := store.NewEntity[TestEntity](s, "test:").
		WithIndex("email", func(e *TestEntity) []string {
			return []string{e.Email}
		})

	require.NoError(t, entity.Create(context.Background(), "1", &TestEntity{ID: "1", Email: "ada@example.com"}))

	err := entity.Create(context.Background(), "2", &TestEntity{ID: "2", Email: "ada@example.com"})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestEntity_Update_MovesIndex(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	entity := store.NewEntity[TestEntity](s, "test:").
		WithIndex("email", func(e *TestEntity) []string {
			return []string{e.Email}
		})

	require.NoError(t, entity.Create(context.Background(), "1", &TestEntity{ID: "1", Email: "old@example.com"}))

	require.NoError(t, entity.Update(context.Background(), "1", &TestEntity{ID: "1", Email: "new@example.com"}))

	// Old index entry is gone, new one resolves.
	_, err := entity.GetByIndex(context.Background(), "email", "old@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)

	found, err := entity.GetByIndex(context.Background(), "email", "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, "1", found.ID)
}

func TestEntity_Update_NotFound(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	entity := store.NewEntity[TestEntity](s, "test:")

	err := entity.Update(context.Background(), "missing", &TestEntity{ID: "missing"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEntity_Delete_Idempotent(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	entity := store.NewEntity[TestEntity](s, "test:").
		WithIndex("email", func(e *TestEntity) []string {
			return []string{e.Email}
		})

	require.NoError(t, entity.Create(context.Background(), "1", &TestEntity{ID: "1", Email: "ada@example.com"}))

	require.NoError(t, entity.Delete(context.Background(), "1"))
	_, err := entity.Get(context.Background(), "1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Index entry is cleaned up too, so the email is reusable.
	require.NoError(t, entity.Create(context.Background(), "2", &TestEntity{ID: "2", Email: "ada@example.com"}))

	// Deleting a missing entity is not an error.
	require.NoError(t, entity.Delete(context.Background(), "missing"))
}

func TestEntity_ListByIndexPrefix(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	// Composite index key, as used for sessions: <group>:<id>.
	entity := store.NewEntity[TestEntity](s, "test:").
		WithIndex("group", func(e *TestEntity) []string {
			return []string{e.Name + ":" + e.ID}
		})

	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("%d", i)
		require.NoError(t, entity.Create(context.Background(), id, &TestEntity{ID: id, Name: "alpha"}))
	}
	require.NoError(t, entity.Create(context.Background(), "9", &TestEntity{ID: "9", Name: "beta"}))

	alphas, err := entity.ListByIndexPrefix(context.Background(), "group", "alpha:")
	require.NoError(t, err)
	assert.Len(t, alphas, 3)

	betas, err := entity.ListByIndexPrefix(context.Background(), "group", "beta:")
	require.NoError(t, err)
	assert.Len(t, betas, 1)

	none, err := entity.ListByIndexPrefix(context.Background(), "group", "gamma:")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEntity_List(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	entity := store.NewEntity[TestEntity](s, "test:").
		WithIndex("email", func(e *TestEntity) []string {
			return []string{e.Email}
		})

	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("%d", i)
		require.NoError(t, entity.Create(context.Background(), id, &TestEntity{
			ID:    id,
			Email: id + "@example.com",
		}))
	}

	count := 0
	for e, err := range entity.List(context.Background()) {
		require.NoError(t, err)
		require.NotNil(t, e)
		count++
	}
	// Index keys must not leak into the listing.
	assert.Equal(t, 5, count)
}
