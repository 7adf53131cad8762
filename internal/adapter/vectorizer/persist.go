package vectorizer

import (
	"encoding/gob"
	"fmt"
	"os"

	"passage/internal/domain"
)

// Artifacts are two opaque gob blobs, each tagged with the hash of the
// corpus snapshot they were built from. Load never judges staleness;
// callers compare the returned hash against the current corpus and
// rebuild on mismatch.

type modelArtifact struct {
	CorpusHash string
	Model      *Model
}

type matrixArtifact struct {
	CorpusHash string
	Matrix     *Matrix
}

func SaveModel(path string, model *Model, corpusHash string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create model artifact: %w", err)
	}
	defer f.Close()

	art := modelArtifact{CorpusHash: corpusHash, Model: model}
	if err := gob.NewEncoder(f).Encode(art); err != nil {
		return fmt.Errorf("failed to encode model artifact: %w", err)
	}
	return nil
}

func LoadModel(path string) (*Model, string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("%w: %s", domain.ErrNoArtifacts, path)
		}
		return nil, "", fmt.Errorf("failed to open model artifact: %w", err)
	}
	defer f.Close()

	var art modelArtifact
	if err := gob.NewDecoder(f).Decode(&art); err != nil {
		return nil, "", fmt.Errorf("failed to decode model artifact: %w", err)
	}
	return art.Model, art.CorpusHash, nil
}

func SaveMatrix(path string, matrix *Matrix, corpusHash string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create matrix artifact: %w", err)
	}
	defer f.Close()

	art := matrixArtifact{CorpusHash: corpusHash, Matrix: matrix}
	if err := gob.NewEncoder(f).Encode(art); err != nil {
		return fmt.Errorf("failed to encode matrix artifact: %w", err)
	}
	return nil
}

func LoadMatrix(path string) (*Matrix, string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("%w: %s", domain.ErrNoArtifacts, path)
		}
		return nil, "", fmt.Errorf("failed to open matrix artifact: %w", err)
	}
	defer f.Close()

	var art matrixArtifact
	if err := gob.NewDecoder(f).Decode(&art); err != nil {
		return nil, "", fmt.Errorf("failed to decode matrix artifact: %w", err)
	}
	return art.Matrix, art.CorpusHash, nil
}
