package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"passage/internal/adapter/analyzer"
	"passage/internal/domain"
	"passage/internal/port"
)

// RetrieveUseCase runs queries through a ranking strategy and shapes
// the results into per-question records.
type RetrieveUseCase struct {
	retriever port.Retriever
	log       *zap.Logger
}

// NewRetrieveUseCase creates a new retrieve use case.
func NewRetrieveUseCase(retriever port.Retriever, log *zap.Logger) *RetrieveUseCase {
	return &RetrieveUseCase{retriever: retriever, log: log}
}

// Retrieve ranks the corpus against a single query. The query text is
// passed to the strategy as-is.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, query string, k int) ([]domain.ScoredDocument, error) {
	ranked, err := u.retriever.Rank(ctx, query, k)
	if err != nil {
		return nil, err
	}
	u.log.Debug("query ranked",
		zap.String("query", query),
		zap.Int("k", k),
		zap.Int("results", len(ranked)))
	return ranked, nil
}

// BulkRetrieve ranks the corpus against each query independently. The
// result is aligned with the input queries.
func (u *RetrieveUseCase) BulkRetrieve(ctx context.Context, queries []string, k int) ([][]domain.ScoredDocument, error) {
	ranked, err := u.retriever.BulkRank(ctx, queries, k)
	if err != nil {
		return nil, err
	}
	u.log.Debug("queries ranked",
		zap.Int("queries", len(queries)),
		zap.Int("k", k))
	return ranked, nil
}

// EvalResult summarizes a dataset run. Hits counts records whose
// retrieved context contains the ground-truth context as a substring;
// Evaluated is the number of examples that carried ground truth.
// SumRR accumulates the reciprocal rank of the first retrieved document
// containing the ground truth, zero for a miss.
type EvalResult struct {
	Total     int
	Evaluated int
	Hits      int
	SumRR     float64
}

// HitRate is Hits over Evaluated, zero when nothing was evaluated.
func (e EvalResult) HitRate() float64 {
	if e.Evaluated == 0 {
		return 0
	}
	return float64(e.Hits) / float64(e.Evaluated)
}

// MRR is the mean reciprocal rank over evaluated examples.
func (e EvalResult) MRR() float64 {
	if e.Evaluated == 0 {
		return 0
	}
	return e.SumRR / float64(e.Evaluated)
}

// ShapeDataset ranks every example in one bulk call and assembles one
// record per question. Questions and ground-truth contexts are
// normalized the same way corpus texts were at load time, so the
// hit check compares like with like. Answers pass through untouched.
func (u *RetrieveUseCase) ShapeDataset(ctx context.Context, examples []domain.Example, k int, progress ProgressFunc) ([]domain.Record, EvalResult, error) {
	questions := make([]string, len(examples))
	for i, ex := range examples {
		questions[i] = analyzer.Normalize(ex.Question)
	}

	ranked, err := u.retriever.BulkRank(ctx, questions, k)
	if err != nil {
		return nil, EvalResult{}, fmt.Errorf("failed to rank dataset: %w", err)
	}

	records := make([]domain.Record, 0, len(examples))
	eval := EvalResult{Total: len(examples)}
	for i, ex := range examples {
		rec := ShapeRecord(ex.ID, questions[i], ranked[i])
		if ex.Context != "" {
			truth := analyzer.Normalize(ex.Context)
			rec.OriginalContext = &truth
			if strings.Contains(rec.Context, truth) {
				eval.Hits++
			}
			eval.SumRR += reciprocalRank(ranked[i], truth)
			eval.Evaluated++
		}
		if ex.Answers != "" {
			answers := ex.Answers
			rec.Answers = &answers
		}
		records = append(records, rec)
		if progress != nil {
			progress(i+1, len(examples))
		}
	}

	if eval.Evaluated > 0 {
		u.log.Info("dataset evaluated",
			zap.Int("total", eval.Total),
			zap.Int("evaluated", eval.Evaluated),
			zap.Int("hits", eval.Hits),
			zap.Float64("mrr", eval.MRR()))
	}
	return records, eval, nil
}

// reciprocalRank is 1/rank of the first document containing truth, zero
// when no retrieved document does.
func reciprocalRank(ranked []domain.ScoredDocument, truth string) float64 {
	for i, sd := range ranked {
		if strings.Contains(sd.Document.Text, truth) {
			return 1 / float64(i+1)
		}
	}
	return 0
}

// ShapeRecord assembles the record for one question: ranked ids in
// order and their texts joined by a single space.
func ShapeRecord(id, question string, ranked []domain.ScoredDocument) domain.Record {
	ids := make([]int, len(ranked))
	texts := make([]string, len(ranked))
	for i, sd := range ranked {
		ids[i] = sd.Document.ID
		texts[i] = sd.Document.Text
	}
	return domain.Record{
		Question:   question,
		ID:         id,
		ContextIDs: ids,
		Context:    strings.Join(texts, " "),
	}
}
