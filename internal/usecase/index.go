package usecase

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"passage/internal/adapter/retriever"
	"passage/internal/adapter/store"
	"passage/internal/adapter/vectorizer"
	"passage/internal/domain"
	"passage/internal/port"
)

// ProgressFunc reports completed work units out of a total.
type ProgressFunc func(done, total int)

// IndexUseCase builds the sparse index for a corpus and keeps the
// persisted artifacts in step with it. Artifacts carry the hash of the
// corpus they were built from; this layer compares that hash against the
// freshly loaded corpus and rebuilds on mismatch or missing artifacts.
type IndexUseCase struct {
	vec        *vectorizer.Vectorizer
	snapshots  port.CorpusStore
	modelPath  string
	matrixPath string
	log        *zap.Logger
}

// NewIndexUseCase creates a new index use case.
func NewIndexUseCase(
	vec *vectorizer.Vectorizer,
	snapshots port.CorpusStore,
	modelPath string,
	matrixPath string,
	log *zap.Logger,
) *IndexUseCase {
	return &IndexUseCase{
		vec:        vec,
		snapshots:  snapshots,
		modelPath:  modelPath,
		matrixPath: matrixPath,
		log:        log,
	}
}

// IndexResult contains the outcome of a build-or-load.
type IndexResult struct {
	Docs       int
	VocabSize  int
	Rebuilt    bool
	CorpusHash string
}

// BuildOrLoad returns the model and matrix for docs, reusing persisted
// artifacts when their corpus hash matches and rebuilding otherwise.
// The corpus snapshot store is brought in line with docs either way.
func (u *IndexUseCase) BuildOrLoad(docs []domain.Document) (*vectorizer.Model, *vectorizer.Matrix, *IndexResult, error) {
	if len(docs) == 0 {
		return nil, nil, nil, fmt.Errorf("corpus is empty")
	}
	hash := store.ComputeCorpusHash(docs)
	result := &IndexResult{Docs: len(docs), CorpusHash: hash}

	model, matrix, err := u.loadCurrent(hash)
	if err != nil {
		u.log.Info("rebuilding sparse index",
			zap.String("corpus_hash", hash),
			zap.String("reason", err.Error()))
		model, matrix, err = u.rebuild(docs, hash)
		if err != nil {
			return nil, nil, nil, err
		}
		result.Rebuilt = true
	}
	result.VocabSize = model.Dims()

	if err := u.syncSnapshot(docs, hash, model.Dims()); err != nil {
		return nil, nil, nil, err
	}
	return model, matrix, result, nil
}

// loadCurrent loads the persisted artifacts and verifies both were
// built from the corpus identified by hash.
func (u *IndexUseCase) loadCurrent(hash string) (*vectorizer.Model, *vectorizer.Matrix, error) {
	model, modelHash, err := vectorizer.LoadModel(u.modelPath)
	if err != nil {
		return nil, nil, err
	}
	matrix, matrixHash, err := vectorizer.LoadMatrix(u.matrixPath)
	if err != nil {
		return nil, nil, err
	}
	if modelHash != hash || matrixHash != hash {
		return nil, nil, fmt.Errorf("%w: built from corpus %s, want %s", domain.ErrStaleArtifacts, modelHash, hash)
	}
	return model, matrix, nil
}

func (u *IndexUseCase) rebuild(docs []domain.Document, hash string) (*vectorizer.Model, *vectorizer.Matrix, error) {
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Text
	}
	model, matrix, err := u.vec.FitTransform(texts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build embedding: %w", err)
	}
	if err := vectorizer.SaveModel(u.modelPath, model, hash); err != nil {
		return nil, nil, err
	}
	if err := vectorizer.SaveMatrix(u.matrixPath, matrix, hash); err != nil {
		return nil, nil, err
	}
	u.log.Info("sparse index built",
		zap.Int("docs", len(docs)),
		zap.Int("vocab", model.Dims()))
	return model, matrix, nil
}

// syncSnapshot resets the snapshot store unless it already holds this
// corpus.
func (u *IndexUseCase) syncSnapshot(docs []domain.Document, hash string, vocabSize int) error {
	current, err := u.snapshots.Hash()
	if err != nil {
		return fmt.Errorf("failed to read snapshot hash: %w", err)
	}
	if current == hash {
		return nil
	}
	if err := u.snapshots.Reset(docs, hash); err != nil {
		return fmt.Errorf("failed to snapshot corpus: %w", err)
	}
	return u.snapshots.SetStats(corpusStats(docs, vocabSize))
}

// EnsureAnnoy returns the approximate index for the corpus, loading the
// saved sidecar when the sparse artifacts were current and rebuilding
// it otherwise.
func (u *IndexUseCase) EnsureAnnoy(
	model *vectorizer.Model,
	matrix *vectorizer.Matrix,
	docs []domain.Document,
	path string,
	numTrees int,
	rebuilt bool,
) (*retriever.AnnoyRetriever, error) {
	if !rebuilt {
		if _, err := os.Stat(path); err == nil {
			ann, err := retriever.LoadAnnoyRetriever(path, model, docs)
			if err == nil {
				return ann, nil
			}
			u.log.Warn("failed to load annoy index, rebuilding",
				zap.String("path", path),
				zap.Error(err))
		}
	}

	ann, err := retriever.BuildAnnoyRetriever(model, matrix, docs, numTrees)
	if err != nil {
		return nil, err
	}
	if err := ann.Save(path); err != nil {
		return nil, fmt.Errorf("failed to save annoy index: %w", err)
	}
	u.log.Info("annoy index built",
		zap.Int("docs", len(docs)),
		zap.Int("trees", numTrees))
	return ann, nil
}

func corpusStats(docs []domain.Document, vocabSize int) domain.Stats {
	totalWords := 0
	for _, doc := range docs {
		totalWords += len(strings.Fields(doc.Text))
	}
	avgLen := 0.0
	if len(docs) > 0 {
		avgLen = float64(totalWords) / float64(len(docs))
	}
	return domain.Stats{
		TotalDocs: len(docs),
		VocabSize: vocabSize,
		AvgDocLen: avgLen,
	}
}
