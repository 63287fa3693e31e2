package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vectral/post-analytics/internal/config"
	"github.com/vectral/post-analytics/internal/models"
)

func storeConfig(typ, path string) config.StorageConfig {
	return config.StorageConfig{Type: typ, Path: path}
}

func setupStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Init(context.Background()))
	return store
}

func countRows(t *testing.T, store *SQLiteStore, table string) int {
	t.Helper()

	var n int
	require.NoError(t, store.Handle().QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestSQLiteStore_InsertPosts(t *testing.T) {
	store := setupStore(t)

	posts := []models.Post{
		{ID: 1, UserID: 1, Title: "first", Body: "body one"},
		{ID: 2, UserID: 2, Title: "second", Body: "body two"},
	}
	require.NoError(t, store.InsertPosts(context.Background(), posts))

	assert.Equal(t, 2, countRows(t, store, "posts"))
}

func TestSQLiteStore_InsertUsers(t *testing.T) {
	store := setupStore(t)

	users := []models.User{
		{ID: 1, Name: "A", Username: "a", Email: "a@example.com"},
	}
	require.NoError(t, store.InsertUsers(context.Background(), users))

	assert.Equal(t, 1, countRows(t, store, "users"))
}

func TestSQLiteStore_InsertEmptyBatch(t *testing.T) {
	store := setupStore(t)
	require.NoError(t, store.InsertPosts(context.Background(), nil))
	assert.Equal(t, 0, countRows(t, store, "posts"))
}

func TestSQLiteStore_DuplicateIDFailsBatch(t *testing.T) {
	store := setupStore(t)

	posts := []models.Post{
		{ID: 1, UserID: 1, Title: "first", Body: "b"},
		{ID: 1, UserID: 2, Title: "dup", Body: "b"},
	}
	err := store.InsertPosts(context.Background(), posts)

	var serr *StorageError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "posts", serr.Table)
	// The transaction rolled back, nothing landed.
	assert.Equal(t, 0, countRows(t, store, "posts"))
}

func TestSQLiteStore_OrphanPostIsTolerated(t *testing.T) {
	store := setupStore(t)

	// No users loaded at all; no foreign key stops the insert.
	err := store.InsertPosts(context.Background(), []models.Post{
		{ID: 99, UserID: 404, Title: "orphan", Body: "no author"},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, countRows(t, store, "posts"))
}

func TestSQLiteStore_InitReplacesTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	ctx := context.Background()

	load := func() int {
		store, err := NewSQLiteStore(path)
		require.NoError(t, err)
		defer store.Close()

		require.NoError(t, store.Init(ctx))
		require.NoError(t, store.InsertPosts(ctx, []models.Post{
			{ID: 1, UserID: 1, Title: "t", Body: "b"},
			{ID: 2, UserID: 1, Title: "t2", Body: "b2"},
		}))
		require.NoError(t, store.InsertUsers(ctx, []models.User{
			{ID: 1, Name: "A", Username: "a", Email: "a@example.com"},
		}))
		return countRows(t, store, "posts")
	}

	// Two full runs against the same file yield identical row counts.
	first := load()
	second := load()
	assert.Equal(t, first, second)
	assert.Equal(t, 2, second)
}

func TestSQLiteStore_ChunkedBulkInsert(t *testing.T) {
	store := setupStore(t)

	posts := make([]models.Post, insertChunk*2+17)
	for i := range posts {
		posts[i] = models.Post{ID: i + 1, UserID: 1, Title: "t", Body: "b"}
	}
	require.NoError(t, store.InsertPosts(context.Background(), posts))

	assert.Equal(t, len(posts), countRows(t, store, "posts"))
}

func TestSQLiteStore_RecordRun(t *testing.T) {
	store := setupStore(t)

	now := time.Now()
	run := models.RunSummary{
		RunID:         "run-1",
		StartedAt:     now.Add(-time.Second),
		CompletedAt:   now,
		PostsAccepted: 100,
		PostsRejected: 2,
		UsersAccepted: 10,
	}
	require.NoError(t, store.RecordRun(context.Background(), run))

	// History accumulates across Init calls.
	require.NoError(t, store.Init(context.Background()))
	run.RunID = "run-2"
	require.NoError(t, store.RecordRun(context.Background(), run))
	assert.Equal(t, 2, countRows(t, store, "runs"))
}

func TestNewStore_BackendSelection(t *testing.T) {
	t.Run("defaults to sqlite", func(t *testing.T) {
		store, err := NewStore(storeConfig("", ":memory:"))
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &SQLiteStore{}, store)
	})

	t.Run("unsupported type", func(t *testing.T) {
		_, err := NewStore(storeConfig("duckdb", ""))
		assert.Error(t, err)
	})

	t.Run("postgres requires a URI", func(t *testing.T) {
		_, err := NewStore(storeConfig("postgres", ""))
		var serr *StorageError
		require.True(t, errors.As(err, &serr))
	})
}

func TestChunk(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	assert.Len(t, chunk(items, 2), 3)
	assert.Len(t, chunk(items, 5), 1)
	assert.Len(t, chunk(items, 10), 1)
	assert.Empty(t, chunk([]int{}, 2))
}
