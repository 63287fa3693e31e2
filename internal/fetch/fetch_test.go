package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vectral/post-analytics/internal/config"
	"github.com/vectral/post-analytics/internal/models"
)

func newTestFetcher(baseURL string) *Fetcher {
	cfg := config.APIConfig{BaseURL: baseURL}
	cfg.Timeout.Duration = 30 * time.Second
	return NewFetcher(cfg, log.New(io.Discard))
}

func TestFetch(t *testing.T) {
	testPosts := []models.Post{
		{UserID: 1, ID: 1, Title: "Test Post 1", Body: "Test body 1"},
		{UserID: 1, ID: 2, Title: "Test Post 2", Body: "Test body 2"},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/posts", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(testPosts)
	}))
	defer server.Close()

	fetcher := newTestFetcher(server.URL)
	docs, err := fetcher.Fetch(context.Background(), ResourcePosts)

	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Test Post 1", docs[0]["title"])
	assert.Equal(t, float64(2), docs[1]["id"])
}

func TestFetch_UsersPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":1,"name":"A","username":"a","email":"a@example.com"}]`))
	}))
	defer server.Close()

	fetcher := newTestFetcher(server.URL)
	docs, err := fetcher.Fetch(context.Background(), ResourceUsers)

	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "A", docs[0]["name"])
}

func TestFetch_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	fetcher := newTestFetcher(server.URL)
	docs, err := fetcher.Fetch(context.Background(), ResourcePosts)

	assert.Nil(t, docs)
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, ResourcePosts, terr.Resource)
	assert.Equal(t, http.StatusInternalServerError, terr.Status)
}

func TestFetch_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("invalid json"))
	}))
	defer server.Close()

	fetcher := newTestFetcher(server.URL)
	docs, err := fetcher.Fetch(context.Background(), ResourcePosts)

	assert.Nil(t, docs)
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Contains(t, terr.Error(), "unmarshal")
}

func TestFetch_NonArrayBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"posts": []}`))
	}))
	defer server.Close()

	fetcher := newTestFetcher(server.URL)
	_, err := fetcher.Fetch(context.Background(), ResourcePosts)

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
}

func TestFetch_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	fetcher := newTestFetcher(server.URL)
	_, err := fetcher.Fetch(context.Background(), ResourcePosts)

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
}

func TestFetch_UnknownResource(t *testing.T) {
	fetcher := newTestFetcher("http://localhost:0")
	_, err := fetcher.Fetch(context.Background(), "comments")

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "comments", terr.Resource)
}
