package retriever

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/mariotoffia/goannoy/builder"
	"github.com/mariotoffia/goannoy/interfaces"

	"passage/internal/adapter/vectorizer"
	"passage/internal/domain"
)

const DefaultAnnoyTrees = 64

// Angular distance sqrt(2) means zero cosine similarity. The index
// computes distances in float32, so the cutoff allows a little slack.
const orthogonalDist = math.Sqrt2 - 1e-6

// AnnoyRetriever answers queries from an approximate-neighbor index over
// the densified document vectors. Faster than the exact dot product on
// large corpora, at the cost of approximate rankings. Scores follow the
// angular-distance convention 1 - d/2; hits at or beyond distance sqrt(2)
// are orthogonal to the query and are dropped.
type AnnoyRetriever struct {
	model *vectorizer.Model
	idx   interfaces.AnnoyIndex[float32, uint32]
	docs  []domain.Document
	dims  int
}

func newAngularIndex(dims int) interfaces.AnnoyIndex[float32, uint32] {
	return builder.Index[float32, uint32]().
		AngularDistance(dims).
		UseMultiWorkerPolicy().
		MmapIndexAllocator().
		Build()
}

// BuildAnnoyRetriever builds the angular index from the matrix rows.
// Item ids in the index are document ids, so docs must be the corpus the
// matrix was fitted on, in order.
func BuildAnnoyRetriever(model *vectorizer.Model, matrix *vectorizer.Matrix, docs []domain.Document, numTrees int) (*AnnoyRetriever, error) {
	if matrix.Len() != len(docs) {
		return nil, fmt.Errorf("matrix has %d rows for %d documents", matrix.Len(), len(docs))
	}
	if numTrees <= 0 {
		numTrees = DefaultAnnoyTrees
	}

	idx := newAngularIndex(model.Dims())
	for i, row := range matrix.Rows {
		idx.AddItem(uint32(i), row.Dense(model.Dims()))
	}
	idx.Build(numTrees, -1)

	return &AnnoyRetriever{
		model: model,
		idx:   idx,
		docs:  docs,
		dims:  model.Dims(),
	}, nil
}

// LoadAnnoyRetriever restores a saved index. The model and docs must be
// the ones the index was built with.
func LoadAnnoyRetriever(path string, model *vectorizer.Model, docs []domain.Document) (*AnnoyRetriever, error) {
	idx := newAngularIndex(model.Dims())
	if err := idx.Load(path); err != nil {
		return nil, fmt.Errorf("failed to load annoy index: %w", err)
	}
	return &AnnoyRetriever{
		model: model,
		idx:   idx,
		docs:  docs,
		dims:  model.Dims(),
	}, nil
}

func (r *AnnoyRetriever) Save(path string) error {
	if err := r.idx.Save(path); err != nil {
		return fmt.Errorf("failed to save annoy index: %w", err)
	}
	return nil
}

func (r *AnnoyRetriever) Rank(ctx context.Context, query string, k int) ([]domain.ScoredDocument, error) {
	if k <= 0 {
		return nil, nil
	}

	qv := r.model.Transform(query)
	if qv.IsEmpty() {
		return nil, fmt.Errorf("query %q: %w", query, domain.ErrEmptyQueryVector)
	}

	if k > len(r.docs) {
		k = len(r.docs)
	}
	searchCtx := r.idx.CreateContext()
	ids, distances := r.idx.GetNnsByVector(qv.Dense(r.dims), k, -1, searchCtx)

	results := make([]domain.ScoredDocument, 0, len(ids))
	for i, id := range ids {
		if int(id) >= len(r.docs) || i >= len(distances) {
			continue
		}
		dist := float64(distances[i])
		if dist >= orthogonalDist {
			continue
		}
		results = append(results, domain.ScoredDocument{
			Document: r.docs[id],
			Score:    1 - dist/2,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.ID < results[j].Document.ID
	})

	return results, nil
}

func (r *AnnoyRetriever) BulkRank(ctx context.Context, queries []string, k int) ([][]domain.ScoredDocument, error) {
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
