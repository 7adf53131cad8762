package port

import "context"

// DocumentStore is the remote search backend. Implementations talk to an
// Elasticsearch-compatible HTTP API; scoring of MatchQuery results is
// whatever the backend computes and is not comparable across backends.
type DocumentStore interface {
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	IndexExists(ctx context.Context, index string) (bool, error)

	// CreateIndex creates index with the given settings body (analyzer,
	// similarity, mappings). Settings may be nil for backend defaults.
	CreateIndex(ctx context.Context, index string, settings []byte) error

	// DeleteIndex removes index. Deleting a missing index is not an
	// error; implementations log a notice and return nil.
	DeleteIndex(ctx context.Context, index string) error

	// IndexDocument stores text under the given integer id.
	IndexDocument(ctx context.Context, index string, id int, title, text string) error

	UpdateDocument(ctx context.Context, index string, id int, text string) error

	DeleteDocument(ctx context.Context, index string, id int) error

	// GetDocument fetches a single document; ErrNotFound if absent.
	GetDocument(ctx context.Context, index string, id int) (StoredDocument, error)

	Count(ctx context.Context, index string) (int, error)

	// MatchQuery runs a boolean must-match query over the document text
	// and returns up to k hits ordered by the backend's score.
	MatchQuery(ctx context.Context, index string, text string, k int) ([]Hit, error)

	// AllDocuments returns every document in the index.
	AllDocuments(ctx context.Context, index string) ([]Hit, error)

	ListIndices(ctx context.Context) ([]string, error)
}

// Hit is one search result from the document store.
type Hit struct {
	ID     string
	Score  float64
	Source HitSource
}

// HitSource is the stored document body.
type HitSource struct {
	DocumentText string `json:"document_text"`
	Title        string `json:"title,omitempty"`
}

// StoredDocument is a document fetched by id.
type StoredDocument struct {
	ID     string
	Source HitSource
}
