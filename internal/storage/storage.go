// Package storage persists validated entities into a SQL table store and
// hands the Query Engine a shared read handle.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vectral/post-analytics/internal/config"
	"github.com/vectral/post-analytics/internal/models"
)

// Rows per INSERT statement. Keeps bound-parameter counts well under the
// SQLite per-statement variable limit.
const insertChunk = 200

// StorageError is fatal to a pipeline run: the backing file could not be
// opened, a table could not be (re)created, or an insert violated a
// constraint.
type StorageError struct {
	Op    string
	Table string
	Err   error
}

func (e *StorageError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("storage %s on %q: %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Store is the contract between the persisting and querying stages.
//
// Init uses replace semantics for the posts and users tables so re-running
// the pipeline against an existing file is idempotent. Inserts are bulk
// operations, not row-by-row round trips. Handle exposes the single shared
// connection the Query Engine reads through; concurrent writers are not
// supported.
type Store interface {
	Init(ctx context.Context) error
	InsertPosts(ctx context.Context, posts []models.Post) error
	InsertUsers(ctx context.Context, users []models.User) error
	RecordRun(ctx context.Context, run models.RunSummary) error
	Handle() *sql.DB
	Close() error
}

// NewStore creates a store instance based on configuration.
func NewStore(cfg config.StorageConfig) (Store, error) {
	switch cfg.Type {
	case "", "sqlite":
		return NewSQLiteStore(cfg.Path)
	case "postgres", "postgresql":
		return NewPostgresStore(cfg.PostgresURI)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// chunk splits items into batches of at most size elements.
func chunk[T any](items []T, size int) [][]T {
	var batches [][]T
	for len(items) > size {
		batches = append(batches, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		batches = append(batches, items)
	}
	return batches
}
