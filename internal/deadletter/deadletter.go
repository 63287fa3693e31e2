// Package deadletter archives rejected raw documents so ingest failures can
// be inspected after a run. Archiving is best-effort: a sink failure is
// logged by the caller and never fails the pipeline.
package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/vectral/post-analytics/internal/config"
	"github.com/vectral/post-analytics/internal/models"
	"github.com/vectral/post-analytics/internal/validate"
)

// Record is one archived reject.
type Record struct {
	RunID      string             `json:"run_id" bson:"run_id"`
	Entity     string             `json:"entity" bson:"entity"`
	Reason     string             `json:"reason" bson:"reason"`
	Document   models.RawDocument `json:"document" bson:"document"`
	ArchivedAt time.Time          `json:"archived_at" bson:"archived_at"`
}

// Sink receives the rejects of one entity type for one run.
type Sink interface {
	Archive(ctx context.Context, runID, entity string, rejects []validate.Reject) error
	Close(ctx context.Context) error
}

// NewSink creates a sink instance based on configuration: MongoDB when a URI
// is set, a JSONL file when a path is set, otherwise a no-op.
func NewSink(ctx context.Context, cfg config.DeadLetterConfig) (Sink, error) {
	switch {
	case cfg.MongoURI != "":
		return NewMongoSink(ctx, cfg)
	case cfg.Path != "":
		return NewFileSink(cfg.Path)
	default:
		return NopSink{}, nil
	}
}

func newRecords(runID, entity string, rejects []validate.Reject) []Record {
	now := time.Now().UTC()
	records := make([]Record, len(rejects))
	for i, reject := range rejects {
		records[i] = Record{
			RunID:      runID,
			Entity:     entity,
			Reason:     reject.Err.Error(),
			Document:   reject.Document,
			ArchivedAt: now,
		}
	}
	return records
}

// NopSink discards all rejects.
type NopSink struct{}

func (NopSink) Archive(context.Context, string, string, []validate.Reject) error { return nil }
func (NopSink) Close(context.Context) error                                     { return nil }

// FileSink appends rejects as JSON lines to a local file.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileSink opens (creating if necessary) the JSONL file at path for
// appending.
func NewFileSink(path string) (*FileSink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open dead-letter file: %w", err)
	}
	return &FileSink{file: file}, nil
}

func (s *FileSink) Archive(_ context.Context, runID, entity string, rejects []validate.Reject) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	encoder := json.NewEncoder(s.file)
	for _, record := range newRecords(runID, entity, rejects) {
		if err := encoder.Encode(record); err != nil {
			return fmt.Errorf("failed to write dead-letter record: %w", err)
		}
	}
	return nil
}

func (s *FileSink) Close(context.Context) error { return s.file.Close() }
