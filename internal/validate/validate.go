// Package validate applies a schema parser to a batch of raw documents with
// record-level fault isolation: a bad record is routed to the reject list and
// never aborts the batch.
package validate

import "github.com/vectral/post-analytics/internal/models"

// Reject pairs a raw document with the validation error that excluded it.
type Reject struct {
	Document models.RawDocument
	Err      error
}

// Result holds the outcome of validating a batch. Accepted preserves input
// order minus rejects, and len(Accepted)+len(Rejected) always equals the
// input length.
type Result[T any] struct {
	Accepted []T
	Rejected []Reject
}

// All parses every document independently with the given parser.
func All[T any](docs []models.RawDocument, parse func(models.RawDocument) (T, error)) Result[T] {
	result := Result[T]{Accepted: make([]T, 0, len(docs))}

	for _, doc := range docs {
		entity, err := parse(doc)
		if err != nil {
			result.Rejected = append(result.Rejected, Reject{Document: doc, Err: err})
			continue
		}
		result.Accepted = append(result.Accepted, entity)
	}

	return result
}
