package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/vectral/post-analytics/internal/models"
)

const (
	pgCreatePosts = `CREATE TABLE posts (
    id INTEGER PRIMARY KEY,
    user_id INTEGER NOT NULL,
    title TEXT NOT NULL,
    body TEXT NOT NULL
)`

	pgCreateUsers = `CREATE TABLE users (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    username TEXT NOT NULL,
    email TEXT NOT NULL
)`

	pgCreateRuns = `CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    started_at TIMESTAMPTZ NOT NULL,
    completed_at TIMESTAMPTZ NOT NULL,
    posts_accepted INTEGER NOT NULL,
    posts_rejected INTEGER NOT NULL,
    users_accepted INTEGER NOT NULL,
    users_rejected INTEGER NOT NULL
)`
)

// PostgresStore implements Store against a PostgreSQL database. It is an
// alternate backend to the default local SQLite file, selected with
// storage type "postgres".
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to the database named by the URI.
func NewPostgresStore(uri string) (*PostgresStore, error) {
	if uri == "" {
		return nil, &StorageError{Op: "open", Err: fmt.Errorf("postgres_uri is required for the postgres backend")}
	}

	db, err := sql.Open("postgres", uri)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &StorageError{Op: "open", Err: err}
	}

	return &PostgresStore{db: db}, nil
}

// Init drops and recreates the posts and users tables, and ensures the runs
// history table exists.
func (s *PostgresStore) Init(ctx context.Context) error {
	stmts := []struct {
		table string
		sql   string
	}{
		{"posts", "DROP TABLE IF EXISTS posts"},
		{"users", "DROP TABLE IF EXISTS users"},
		{"posts", pgCreatePosts},
		{"users", pgCreateUsers},
		{"runs", pgCreateRuns},
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
func (s *PostgresStore) InsertPosts(ctx context.Context, posts []models.Post) error {
	return bulkInsert(ctx, s.db, "posts", chunk(posts, insertChunk), func(batch []models.Post) (string, []any) {
		placeholders := make([]string, 0, len(batch))
		args := make([]any, 0, len(batch)*4)
		for i, p := range batch {
			base := i * 4
			placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4))
			args = append(args, p.ID, p.UserID, p.Title, p.Body)
		}
		return "INSERT INTO posts (id, user_id, title, body) VALUES " + strings.Join(placeholders, ", "), args
	})
}

// InsertUsers bulk-loads users in chunked multi-row INSERTs inside one
// transaction.
func (s *PostgresStore) InsertUsers(ctx context.Context, users []models.User) error {
	return bulkInsert(ctx, s.db, "users", chunk(users, insertChunk), func(batch []models.User) (string, []any) {
		placeholders := make([]string, 0, len(batch))
		args := make([]any, 0, len(batch)*4)
		for i, u := range batch {
			base := i * 4
			placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4))
			args = append(args, u.ID, u.Name, u.Username, u.Email)
		}
		return "INSERT INTO users (id, name, username, email) VALUES " + strings.Join(placeholders, ", "), args
	})
}

// RecordRun appends one row to the runs history table.
func (s *PostgresStore) RecordRun(ctx context.Context, run models.RunSummary) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, completed_at, posts_accepted, posts_rejected, users_accepted, users_rejected)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.RunID,
		run.StartedAt.UTC(),
		run.CompletedAt.UTC(),
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
func (s *PostgresStore) Handle() *sql.DB { return s.db }

// Close closes the connection pool.
func (s *PostgresStore) Close() error { return s.db.Close() }
