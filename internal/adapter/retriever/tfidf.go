package retriever

import (
	"context"
	"fmt"
	"sort"

	"passage/internal/adapter/vectorizer"
	"passage/internal/domain"
)

// TFIDFRetriever ranks documents by the dot product of the query vector
// and each document vector. Rows are L2-normalized at fit time, so the
// score is cosine similarity. An inverted index over vector dimensions
// keeps scoring proportional to the query's nonzero terms.
type TFIDFRetriever struct {
	model    *vectorizer.Model
	docs     []domain.Document
	postings map[int32][]posting
}

type posting struct {
	row   int
	value float64
}

func NewTFIDFRetriever(model *vectorizer.Model, matrix *vectorizer.Matrix, docs []domain.Document) (*TFIDFRetriever, error) {
	if matrix.Len() != len(docs) {
		return nil, fmt.Errorf("matrix has %d rows for %d documents", matrix.Len(), len(docs))
	}

	postings := make(map[int32][]posting)
	for i, row := range matrix.Rows {
		for j, dim := range row.Indices {
			postings[dim] = append(postings[dim], posting{row: i, value: row.Values[j]})
		}
	}

	return &TFIDFRetriever{
		model:    model,
		docs:     docs,
		postings: postings,
	}, nil
}

func (r *TFIDFRetriever) Rank(ctx context.Context, query string, k int) ([]domain.ScoredDocument, error) {
	if k <= 0 {
		return nil, nil
	}

	qv := r.model.Transform(query)
	if qv.IsEmpty() {
		return nil, fmt.Errorf("query %q: %w", query, domain.ErrEmptyQueryVector)
	}

	scores := make(map[int]float64)
	for i, dim := range qv.Indices {
		for _, p := range r.postings[dim] {
			scores[p.row] += qv.Values[i] * p.value
		}
	}

	results := make([]domain.ScoredDocument, 0, len(scores))
	for row, score := range scores {
		results = append(results, domain.ScoredDocument{
			Document: r.docs[row],
			Score:    score,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.ID < results[j].Document.ID
	})

	if len(results) > k {
		results = results[:k]
	}

	return results, nil
}

// BulkRank ranks each query independently. Any degenerate query fails
// the whole call, mirroring the single-query precondition.
func (r *TFIDFRetriever) BulkRank(ctx context.Context, queries []string, k int) ([][]domain.ScoredDocument, error) {
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
