package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vectral/post-analytics/internal/models"
)

// Table DDL. posts.user_id carries no foreign key: a post whose author is
// unknown is loaded anyway and only becomes visible through the outer-join
// query.
const (
	sqliteCreatePosts = `CREATE TABLE posts (
    id INTEGER PRIMARY KEY,
    user_id INTEGER NOT NULL,
    title TEXT NOT NULL,
    body TEXT NOT NULL
)`

	sqliteCreateUsers = `CREATE TABLE users (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    username TEXT NOT NULL,
    email TEXT NOT NULL
)`

	sqliteCreateRuns = `CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    completed_at TEXT NOT NULL,
    posts_accepted INTEGER NOT NULL,
    posts_rejected INTEGER NOT NULL,
    users_accepted INTEGER NOT NULL,
    users_rejected INTEGER NOT NULL
)`
)

// SQLiteStore implements Store against a single local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) the SQLite file at path.
// The path ":memory:" yields an in-memory store, used by tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, &StorageError{Op: "open", Err: fmt.Errorf("failed to create data directory: %w", err)}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &StorageError{Op: "open", Err: err}
	}

	return &SQLiteStore{db: db}, nil
}

// Init drops and recreates the posts and users tables, and ensures the
// append-only runs history table exists.
func (s *SQLiteStore) Init(ctx context.Context) error {
	stmts := []struct {
		table string
		sql   string
	}{
		{"posts", "DROP TABLE IF EXISTS posts"},
		{"users", "DROP TABLE IF EXISTS users"},
		{"posts", sqliteCreatePosts},
		{"users", sqliteCreateUsers},
		{"runs", sqliteCreateRuns},
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt.sql); err != nil {
			return &StorageError{Op: "init", Table: stmt.table, Err: err}
		}
	}
	return nil
}

// InsertPosts bulk-loads posts in chunked multi-row INSERTs inside one
// transaction.
func (s *SQLiteStore) InsertPosts(ctx context.Context, posts []models.Post) error {
	return bulkInsert(ctx, s.db, "posts", chunk(posts, insertChunk), func(batch []models.Post) (string, []any) {
		placeholders := make([]string, 0, len(batch))
		args := make([]any, 0, len(batch)*4)
		for _, p := range batch {
			placeholders = append(placeholders, "(?, ?, ?, ?)")
			args = append(args, p.ID, p.UserID, p.Title, p.Body)
		}
		return "INSERT INTO posts (id, user_id, title, body) VALUES " + strings.Join(placeholders, ", "), args
	})
}

// InsertUsers bulk-loads users in chunked multi-row INSERTs inside one
// transaction.
func (s *SQLiteStore) InsertUsers(ctx context.Context, users []models.User) error {
	return bulkInsert(ctx, s.db, "users", chunk(users, insertChunk), func(batch []models.User) (string, []any) {
		placeholders := make([]string, 0, len(batch))
		args := make([]any, 0, len(batch)*4)
		for _, u := range batch {
			placeholders = append(placeholders, "(?, ?, ?, ?)")
			args = append(args, u.ID, u.Name, u.Username, u.Email)
		}
		return "INSERT INTO users (id, name, username, email) VALUES " + strings.Join(placeholders, ", "), args
	})
}

// RecordRun appends one row to the runs history table.
func (s *SQLiteStore) RecordRun(ctx context.Context, run models.RunSummary) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, completed_at, posts_accepted, posts_rejected, users_accepted, users_rejected)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.RunID,
		run.StartedAt.UTC().Format(time.RFC3339),
		run.CompletedAt.UTC().Format(time.RFC3339),
		run.PostsAccepted,
		run.PostsRejected,
		run.UsersAccepted,
		run.UsersRejected,
	)
	if err != nil {
		return &StorageError{Op: "insert", Table: "runs", Err: err}
	}
	return nil
}

// Handle returns the underlying connection for read-only query execution.
func (s *SQLiteStore) Handle() *sql.DB { return s.db }

// Close closes the backing file.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// bulkInsert runs every batch statement inside a single transaction so a
// constraint violation leaves the table unchanged.
func bulkInsert[T any](ctx context.Context, db *sql.DB, table string, batches [][]T, build func([]T) (string, []any)) error {
	if len(batches) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return &StorageError{Op: "insert", Table: table, Err: err}
	}

	for _, batch := range batches {
		query, args := build(batch)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			tx.Rollback()
			return &StorageError{Op: "insert", Table: table, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &StorageError{Op: "insert", Table: table, Err: err}
	}
	return nil
}
