package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"passage/config"
	"passage/internal/adapter/elastic"
	"passage/internal/adapter/retriever"
	"passage/internal/adapter/store"
	"passage/internal/adapter/vectorizer"
	"passage/internal/domain"
	"passage/internal/port"
)

// buildRetriever assembles the named ranking strategy. The returned
// cleanup closes whatever the strategy holds open; docs is the local
// corpus size, zero for the remote strategy. A nil docStore makes the
// remote strategy dial its own client from config.
func buildRetriever(strategy string, docStore port.DocumentStore, log *zap.Logger) (port.Retriever, int, func(), error) {
	switch strategy {
	case "sparse", "":
		model, matrix, docs, closeFn, err := loadArtifacts()
		if err != nil {
			return nil, 0, nil, err
		}
		r, err := retriever.NewTFIDFRetriever(model, matrix, docs)
		if err != nil {
			closeFn()
			return nil, 0, nil, err
		}
		return r, len(docs), closeFn, nil

	case "annoy":
		model, _, docs, closeFn, err := loadArtifacts()
		if err != nil {
			return nil, 0, nil, err
		}
		annPath := config.AnnoyPath(rootDir)
		if _, err := os.Stat(annPath); err != nil {
			closeFn()
			return nil, 0, nil, fmt.Errorf("no annoy index found. Run 'passage index --annoy' first")
		}
		r, err := retriever.LoadAnnoyRetriever(annPath, model, docs)
		if err != nil {
			closeFn()
			return nil, 0, nil, fmt.Errorf("failed to load annoy index: %w", err)
		}
		return r, len(docs), closeFn, nil

	case "elastic":
		if docStore == nil {
			docStore = newDocStore(log)
		}
		return retriever.NewElasticRetriever(docStore, cfg.Elastic.Index), 0, func() {}, nil

	default:
		return nil, 0, nil, fmt.Errorf("unknown retrieval strategy: %s", strategy)
	}
}

// loadArtifacts opens the corpus snapshot and the persisted sparse
// artifacts, verifying both were built from the snapshotted corpus.
func loadArtifacts() (*vectorizer.Model, *vectorizer.Matrix, []domain.Document, func(), error) {
	snapshots, err := store.NewCorpusStore(config.SnapshotPath(rootDir))
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to open corpus snapshot: %w", err)
	}
	closeFn := func() { snapshots.Close() }

	if err := snapshots.VerifySchema(); err != nil {
		closeFn()
		return nil, nil, nil, nil, err
	}

	docs, err := snapshots.Documents()
	if err != nil {
		closeFn()
		return nil, nil, nil, nil, fmt.Errorf("failed to read corpus snapshot: %w", err)
	}
	if len(docs) == 0 {
		closeFn()
		return nil, nil, nil, nil, errNoIndexYet()
	}
	hash, err := snapshots.Hash()
	if err != nil {
		closeFn()
		return nil, nil, nil, nil, err
	}

	model, modelHash, err := vectorizer.LoadModel(config.ModelPath(rootDir))
	if err != nil {
		closeFn()
		if errors.Is(err, domain.ErrNoArtifacts) {
			return nil, nil, nil, nil, errNoIndexYet()
		}
		return nil, nil, nil, nil, err
	}
	matrix, matrixHash, err := vectorizer.LoadMatrix(config.MatrixPath(rootDir))
	if err != nil {
		closeFn()
		if errors.Is(err, domain.ErrNoArtifacts) {
			return nil, nil, nil, nil, errNoIndexYet()
		}
		return nil, nil, nil, nil, err
	}
	if modelHash != hash || matrixHash != hash {
		closeFn()
		return nil, nil, nil, nil, fmt.Errorf("%w: run 'passage index' to rebuild", domain.ErrStaleArtifacts)
	}
	return model, matrix, docs, closeFn, nil
}

func errNoIndexYet() error {
	return fmt.Errorf("no index found. Run 'passage index' first")
}

// newDocStore builds the document store client from config.
func newDocStore(log *zap.Logger) *elastic.Client {
	return elastic.NewClient(
		cfg.Elastic.URL,
		time.Duration(cfg.Elastic.TimeoutSec)*time.Second,
		cfg.Elastic.Retries,
		log,
	)
}
