// Package fetch retrieves raw documents from the upstream HTTP API.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/vectral/post-analytics/internal/config"
	"github.com/vectral/post-analytics/internal/models"
)

// Logical resource names accepted by Fetch.
const (
	ResourcePosts = "posts"
	ResourceUsers = "users"
)

// TransportError is fatal to a pipeline run: a network failure, a non-2xx
// response, or a response body that is not a JSON array of objects.
type TransportError struct {
	Resource string
	Status   int
	Err      error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetching %q: status %d: %v", e.Resource, e.Status, e.Err)
	}
	return fmt.Sprintf("fetching %q: %v", e.Resource, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Fetcher retrieves raw documents from named remote resources. Each call is a
// single attempt with no caching; retry policy is left to future callers.
type Fetcher struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

// NewFetcher creates a Fetcher for the configured API.
func NewFetcher(cfg config.APIConfig, logger *log.Logger) *Fetcher {
	return &Fetcher{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout.Duration,
		},
		logger: logger.With("component", "fetch"),
	}
}

// Fetch performs one GET against the endpoint mapped to the logical resource
// name and returns the decoded documents in server order.
func (f *Fetcher) Fetch(ctx context.Context, resource string) ([]models.RawDocument, error) {
	switch resource {
	case ResourcePosts, ResourceUsers:
	default:
		return nil, &TransportError{Resource: resource, Err: fmt.Errorf("unknown resource")}
	}

	url := f.baseURL + "/" + resource
	f.logger.Debug("fetching resource", "resource", resource, "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{Resource: resource, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Resource: resource, Err: fmt.Errorf("failed to make request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{Resource: resource, Status: resp.StatusCode, Err: fmt.Errorf("unexpected API status")}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Resource: resource, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	var docs []models.RawDocument
	if err := json.Unmarshal(body, &docs); err != nil {
		return nil, &TransportError{Resource: resource, Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}

	f.logger.Info("fetched resource", "resource", resource, "documents", len(docs))
	return docs, nil
}
