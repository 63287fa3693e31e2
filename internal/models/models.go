package models

import "time"

// RawDocument is an untyped key-value record exactly as received from the
// API, prior to validation.
type RawDocument map[string]any

// Post represents a validated post record
type Post struct {
	ID     int    `json:"id"`
	UserID int    `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// User represents a validated user record
type User struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// RunSummary captures the outcome of a single pipeline run for the
// append-only run history table.
type RunSummary struct {
	RunID         string    `json:"run_id"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at"`
	PostsAccepted int       `json:"posts_accepted"`
	PostsRejected int       `json:"posts_rejected"`
	UsersAccepted int       `json:"users_accepted"`
	UsersRejected int       `json:"users_rejected"`
}
