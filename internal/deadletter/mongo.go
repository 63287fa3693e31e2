package deadletter

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vectral/post-analytics/internal/config"
	"github.com/vectral/post-analytics/internal/validate"
)

// MongoSink archives rejects into a MongoDB collection, one document per
// reject.
type MongoSink struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoSink connects to the configured MongoDB deployment.
func NewMongoSink(ctx context.Context, cfg config.DeadLetterConfig) (*MongoSink, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	database := cfg.MongoDatabase
	if database == "" {
		database = "post_analytics"
	}
	collection := cfg.MongoCollection
	if collection == "" {
		collection = "rejects"
	}

	return &MongoSink{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}, nil
}

func (s *MongoSink) Archive(ctx context.Context, runID, entity string, rejects []validate.Reject) error {
	if len(rejects) == 0 {
		return nil
	}

	records := newRecords(runID, entity, rejects)
	documents := make([]any, len(records))
	for i, record := range records {
		documents[i] = record
	}

	if _, err := s.collection.InsertMany(ctx, documents); err != nil {
		return fmt.Errorf("failed to insert dead-letter records: %w", err)
	}
	return nil
}

func (s *MongoSink) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
