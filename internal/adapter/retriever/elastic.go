package retriever

import (
	"context"
	"fmt"
	"strconv"

	"passage/internal/domain"
	"passage/internal/port"
)

// ElasticRetriever delegates ranking to the remote document store's own
// lexical scoring. Scores are whatever the backend computes and are not
// comparable with the local strategies. Unlike those, a query matching
// nothing returns an empty result rather than an error: the backend
// cannot distinguish an out-of-vocabulary query from a no-hit one.
type ElasticRetriever struct {
	store port.DocumentStore
	index string
}

func NewElasticRetriever(store port.DocumentStore, index string) *ElasticRetriever {
	return &ElasticRetriever{store: store, index: index}
}

func (r *ElasticRetriever) Rank(ctx context.Context, query string, k int) ([]domain.ScoredDocument, error) {
	if k <= 0 {
		return nil, nil
	}

	hits, err := r.store.MatchQuery(ctx, r.index, query, k)
	if err != nil {
		return nil, fmt.Errorf("failed to rank %q: %w", query, err)
	}

	results := make([]domain.ScoredDocument, 0, len(hits))
	for _, hit := range hits {
		id, err := strconv.Atoi(hit.ID)
		if err != nil {
			return nil, fmt.Errorf("document store returned non-numeric id %q", hit.ID)
		}
		results = append(results, domain.ScoredDocument{
			Document: domain.Document{
				ID:    id,
				Title: hit.Source.Title,
				Text:  hit.Source.DocumentText,
			},
			Score: hit.Score,
		})
	}
	return results, nil
}

// BulkRank issues one search per query, results aligned with the input.
func (r *ElasticRetriever) BulkRank(ctx context.Context, queries []string, k int) ([][]domain.ScoredDocument, error) {
	results := make([][]domain.ScoredDocument, len(queries))
	for i, query := range queries {
		ranked, err := r.Rank(ctx, query, k)
		if err != nil {
			return nil, fmt.Errorf("query %d: %w", i, err)
		}
		results[i] = ranked
	}
	return results, nil
}
