package deadletter

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vectral/post-analytics/internal/config"
	"github.com/vectral/post-analytics/internal/models"
	"github.com/vectral/post-analytics/internal/schema"
	"github.com/vectral/post-analytics/internal/validate"
)

func TestFileSink_Archive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rejects.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)

	rejects := []validate.Reject{
		{
			Document: models.RawDocument{"id": float64(1), "userId": float64(1), "title": "t"},
			Err:      &schema.ValidationError{Field: "body", Reason: "required field is missing"},
		},
		{
			Document: models.RawDocument{"junk": true},
			Err:      &schema.ValidationError{Field: "id", Reason: "required field is missing"},
		},
	}

	ctx := context.Background()
	require.NoError(t, sink.Archive(ctx, "run-1", "posts", rejects))
	require.NoError(t, sink.Close(ctx))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var record Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))
		records = append(records, record)
	}

	require.Len(t, records, 2)
	assert.Equal(t, "run-1", records[0].RunID)
	assert.Equal(t, "posts", records[0].Entity)
	assert.Contains(t, records[0].Reason, "body")
	assert.Equal(t, "t", records[0].Document["title"])
}

func TestFileSink_AppendsAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rejects.jsonl")
	ctx := context.Background()

	reject := []validate.Reject{{Document: models.RawDocument{}, Err: &schema.ValidationError{Field: "id", Reason: "required field is missing"}}}

	for _, runID := range []string{"run-1", "run-2"} {
		sink, err := NewFileSink(path)
		require.NoError(t, err)
		require.NoError(t, sink.Archive(ctx, runID, "users", reject))
		require.NoError(t, sink.Close(ctx))
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "run-1")
	assert.Contains(t, string(data), "run-2")
}

func TestNewSink_Selection(t *testing.T) {
	ctx := context.Background()

	t.Run("nop by default", func(t *testing.T) {
		sink, err := NewSink(ctx, config.DeadLetterConfig{})
		require.NoError(t, err)
		assert.IsType(t, NopSink{}, sink)
	})

	t.Run("file when path is set", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rejects.jsonl")
		sink, err := NewSink(ctx, config.DeadLetterConfig{Path: path})
		require.NoError(t, err)
		defer sink.Close(ctx)
		assert.IsType(t, &FileSink{}, sink)
	})
}

func TestNopSink(t *testing.T) {
	ctx := context.Background()
	sink := NopSink{}
	assert.NoError(t, sink.Archive(ctx, "run-1", "posts", nil))
	assert.NoError(t, sink.Close(ctx))
}
