package port

import (
	"context"

	"passage/internal/domain"
)

// Retriever ranks corpus documents against natural-language questions.
type Retriever interface {
	// Rank returns the top-k documents for the query, ordered by
	// descending score with ties broken by ascending document id.
	// Only documents with nonzero similarity are returned, so the
	// result may be shorter than k.
	Rank(ctx context.Context, query string, k int) ([]domain.ScoredDocument, error)

	// BulkRank ranks each query independently. The outer slice is
	// aligned with the input: result[i] is the ranking for queries[i].
	BulkRank(ctx context.Context, queries []string, k int) ([][]domain.ScoredDocument, error)
}
