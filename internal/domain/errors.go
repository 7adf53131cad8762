package domain

import "errors"

var (
	// ErrEmptyQueryVector signals a query whose every term is outside the
	// fitted vocabulary, so its vector is all zeros and ranking against
	// the local matrix is undefined.
	ErrEmptyQueryVector = errors.New("query vector is empty")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrNoIndex signals that the remote index does not exist.
	ErrNoIndex = errors.New("index does not exist")
	// ErrNoArtifacts signals missing persisted index artifacts.
	ErrNoArtifacts = errors.New("index artifacts not found")
	// ErrStaleArtifacts signals artifacts built from a different corpus.
	ErrStaleArtifacts = errors.New("index artifacts are stale")
)
