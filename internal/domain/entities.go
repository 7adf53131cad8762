package domain

// Document is a single corpus passage. IDs are assigned by load order,
// starting at zero, and stay stable for the lifetime of the built index.
type Document struct {
	ID    int
	Title string
	Text  string
}

type Query struct {
	Text string
}

type ScoredDocument struct {
	Document Document
	Score    float64
}

// Record is one shaped retrieval result for a single question: the ranked
// context ids plus their texts joined into a single string, with the
// dataset's ground-truth fields carried through when present.
type Record struct {
	Question        string  `json:"question"`
	ID              string  `json:"id"`
	ContextIDs      []int   `json:"context_ids"`
	Context         string  `json:"context"`
	OriginalContext *string `json:"original_context,omitempty"`
	Answers         *string `json:"answers,omitempty"`
}

// Example is one row of an evaluation dataset. Context and Answers are
// optional; when Context is present the retrieve flow can score hit rate.
type Example struct {
	ID       string
	Question string
	Context  string
	Answers  string
}

type Stats struct {
	TotalDocs int
	VocabSize int
	AvgDocLen float64
}
