package port

import "passage/internal/domain"

// CorpusStore persists the corpus snapshot an index was built from.
type CorpusStore interface {
	Reset(docs []domain.Document, hash string) error

	Document(id int) (domain.Document, error)

	Documents() ([]domain.Document, error)

	Count() (int, error)

	Hash() (string, error)

	SetStats(stats domain.Stats) error

	GetStats() (domain.Stats, error)

	Close() error
}
