package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"passage/internal/adapter/analyzer"
	"passage/internal/domain"
	"passage/internal/port"
)

// IngestUseCase pushes corpus documents into the remote document store.
type IngestUseCase struct {
	store port.DocumentStore
	log   *zap.Logger
}

// NewIngestUseCase creates a new ingest use case.
func NewIngestUseCase(store port.DocumentStore, log *zap.Logger) *IngestUseCase {
	return &IngestUseCase{store: store, log: log}
}

// LoadResult contains the outcome of a bulk load.
type LoadResult struct {
	Indexed int
	Skipped int
	// Total is the document count reported by the store afterwards.
	Total int
}

// Upload is a document handed in from outside the corpus, typically a
// dropped file. Title is joined into the indexed text so it matches
// title words in queries.
type Upload struct {
	Title string
	Text  string
}

// Recreate drops the index if it exists and creates it fresh with the
// given settings.
func (u *IngestUseCase) Recreate(ctx context.Context, index string, settings []byte) error {
	if err := u.store.DeleteIndex(ctx, index); err != nil {
		return fmt.Errorf("failed to delete index %s: %w", index, err)
	}
	if err := u.store.CreateIndex(ctx, index, settings); err != nil {
		return fmt.Errorf("failed to create index %s: %w", index, err)
	}
	return nil
}

// BulkLoad indexes every document under its corpus id. A document that
// fails to index is logged and skipped; the load carries on.
func (u *IngestUseCase) BulkLoad(ctx context.Context, index string, docs []domain.Document, progress ProgressFunc) (*LoadResult, error) {
	result := &LoadResult{}
	for i, doc := range docs {
		if err := u.store.IndexDocument(ctx, index, doc.ID, doc.Title, doc.Text); err != nil {
			u.log.Warn("unable to load document",
				zap.Int("id", doc.ID),
				zap.Error(err))
			result.Skipped++
		} else {
			result.Indexed++
		}
		if progress != nil {
			progress(i+1, len(docs))
		}
	}

	total, err := u.store.Count(ctx, index)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	result.Total = total
	return result, nil
}

// Append indexes uploads after the existing documents, ids continuing
// from the store's current count. Ids advance per upload even when one
// is skipped, the same as a positional bulk load.
func (u *IngestUseCase) Append(ctx context.Context, index string, uploads []Upload, progress ProgressFunc) (*LoadResult, error) {
	offset, err := u.store.Count(ctx, index)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	result := &LoadResult{}
	for i, up := range uploads {
		text := analyzer.Normalize(up.Text)
		if up.Title != "" {
			text = up.Title + " " + text
		}
		if err := u.store.IndexDocument(ctx, index, offset+i, up.Title, text); err != nil {
			u.log.Warn("unable to load document",
				zap.Int("id", offset+i),
				zap.String("title", up.Title),
				zap.Error(err))
			result.Skipped++
		} else {
			result.Indexed++
		}
		if progress != nil {
			progress(i+1, len(uploads))
		}
	}

	total, err := u.store.Count(ctx, index)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	result.Total = total
	return result, nil
}
