// Package query runs the fixed set of analytical SQL statements over the
// store's posts and users tables.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// Named queries exposed by the Engine.
const (
	PostsPerUser      = "posts-per-user"
	LongestPostAuthor = "longest-post-author"
	TopUsersByContent = "top-users-by-content"
)

// Users with zero posts are included (left outer join); ties on count break
// on ascending user id.
const postsPerUserSQL = `
SELECT u.id AS user_id, u.name, COUNT(p.id) AS post_count
FROM users u
LEFT JOIN posts p ON p.user_id = u.id
GROUP BY u.id, u.name
ORDER BY post_count DESC, u.id ASC`

// Ties on body length break on the smallest post id.
const longestPostAuthorSQL = `
SELECT u.name, u.email, LENGTH(p.body) AS body_length
FROM posts p
JOIN users u ON u.id = p.user_id
ORDER BY body_length DESC, p.id ASC
LIMIT 1`

const topUsersByContentSQL = `
SELECT u.id AS user_id, u.name, SUM(LENGTH(p.title) + LENGTH(p.body)) AS total_length
FROM users u
JOIN posts p ON p.user_id = u.id
GROUP BY u.id, u.name
ORDER BY total_length DESC, u.id ASC`

// QueryError marks a single failed query: a missing table, malformed SQL, or
// an unknown query name. One failing query never blocks the others.
type QueryError struct {
	Name string
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %q: %v", e.Name, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Result is one query's tabular output: ordered rows of stringified cells
// under ordered column names.
type Result struct {
	Name    string
	Title   string
	Columns []string
	Rows    [][]string
}

// Engine executes the named queries against a store handle. It only reads.
type Engine struct {
	db   *sql.DB
	topN int
}

// NewEngine wraps the store handle. topN caps the top-users-by-content
// result; zero or negative means no cutoff.
func NewEngine(db *sql.DB, topN int) *Engine {
	return &Engine{db: db, topN: topN}
}

// Names lists the available queries in execution order.
func Names() []string {
	return []string{PostsPerUser, LongestPostAuthor, TopUsersByContent}
}

// Run executes a single named query.
func (e *Engine) Run(ctx context.Context, name string) (*Result, error) {
	switch name {
	case PostsPerUser:
		return e.execute(ctx, name, "Posts per user", postsPerUserSQL)
	case LongestPostAuthor:
		return e.execute(ctx, name, "Longest post's author", longestPostAuthorSQL)
	case TopUsersByContent:
		text := topUsersByContentSQL
		if e.topN > 0 {
			text += fmt.Sprintf(" LIMIT %d", e.topN)
		}
		return e.execute(ctx, name, "Top users by total content length", text)
	default:
		return nil, &QueryError{Name: name, Err: fmt.Errorf("unknown query")}
	}
}

// RunAll executes every named query, isolating failures per query.
func (e *Engine) RunAll(ctx context.Context) ([]Result, []error) {
	var results []Result
	var errs []error

	for _, name := range Names() {
		result, err := e.Run(ctx, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, *result)
	}

	return results, errs
}

func (e *Engine) execute(ctx context.Context, name, title, text string) (*Result, error) {
	rows, err := e.db.QueryContext(ctx, text)
	if err != nil {
		return nil, &QueryError{Name: name, Err: err}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &QueryError{Name: name, Err: err}
	}

	result := &Result{Name: name, Title: title, Columns: columns}
	for rows.Next() {
		cells := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &QueryError{Name: name, Err: err}
		}

		row := make([]string, len(columns))
		for i, cell := range cells {
			row[i] = formatCell(cell)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Name: name, Err: err}
	}

	return result, nil
}

func formatCell(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case []byte:
		return string(v)
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}
