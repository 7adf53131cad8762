package vectorizer

import (
	"fmt"
	"math"
	"sort"

	"passage/internal/adapter/analyzer"
)

// Vectorizer fits a TF-IDF term-weight model over a corpus. Weighting
// follows the common smooth-idf convention: raw term counts scaled by
// ln((1+N)/(1+df))+1, rows L2-normalized, so the dot product of two
// transformed vectors is their cosine similarity.
type Vectorizer struct {
	tok         *analyzer.Tokenizer
	ngramMin    int
	ngramMax    int
	maxFeatures int
}

// New creates a Vectorizer over the given n-gram range. maxFeatures caps
// the vocabulary at the highest-count terms; zero means no cap.
func New(ngramMin, ngramMax, maxFeatures int) *Vectorizer {
	return &Vectorizer{
		tok:         analyzer.NewTokenizer(ngramMin, ngramMax),
		ngramMin:    ngramMin,
		ngramMax:    ngramMax,
		maxFeatures: maxFeatures,
	}
}

// Model is the fitted vocabulary and idf weights. It is immutable after
// fitting and safe for concurrent Transform calls.
type Model struct {
	Vocabulary map[string]int32
	IDF        []float64
	NGramMin   int
	NGramMax   int
}

func (m *Model) Dims() int {
	return len(m.IDF)
}

// FitTransform learns the vocabulary and idf weights from texts and
// returns the fitted model together with the document-vector matrix,
// one row per input text in input order.
func (v *Vectorizer) FitTransform(texts []string) (*Model, *Matrix, error) {
	if len(texts) == 0 {
		return nil, nil, fmt.Errorf("cannot fit on an empty corpus")
	}

	docCounts := make([]map[string]int, len(texts))
	totals := make(map[string]int)
	dfs := make(map[string]int)

	for i, text := range texts {
		counts := make(map[string]int)
		for _, term := range v.tok.Terms(text) {
			counts[term]++
		}
		docCounts[i] = counts
		for term, tf := range counts {
			totals[term] += tf
			dfs[term]++
		}
	}
	if len(totals) == 0 {
		return nil, nil, fmt.Errorf("corpus produced no terms")
	}

	vocab := selectVocabulary(totals, v.maxFeatures)

	idf := make([]float64, len(vocab))
	n := float64(len(texts))
	for term, idx := range vocab {
		idf[idx] = math.Log((1+n)/(1+float64(dfs[term]))) + 1
	}

	model := &Model{
		Vocabulary: vocab,
		IDF:        idf,
		NGramMin:   v.ngramMin,
		NGramMax:   v.ngramMax,
	}

	matrix := &Matrix{
		Dims: len(vocab),
		Rows: make([]Vector, len(texts)),
	}
	for i, counts := range docCounts {
		matrix.Rows[i] = model.vectorize(counts)
	}

	return model, matrix, nil
}

// Transform maps text into the fitted vector space. Terms outside the
// vocabulary contribute nothing; a fully out-of-vocabulary text yields
// an empty vector.
func (m *Model) Transform(text string) Vector {
	tok := analyzer.NewTokenizer(m.NGramMin, m.NGramMax)
	counts := make(map[string]int)
	for _, term := range tok.Terms(text) {
		counts[term]++
	}
	return m.vectorize(counts)
}

func (m *Model) vectorize(counts map[string]int) Vector {
	type weighted struct {
		idx int32
		w   float64
	}

	pairs := make([]weighted, 0, len(counts))
	for term, tf := range counts {
		idx, ok := m.Vocabulary[term]
		if !ok {
			continue
		}
		pairs = append(pairs, weighted{idx: idx, w: float64(tf) * m.IDF[idx]})
	}
	if len(pairs) == 0 {
		return Vector{}
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].idx < pairs[j].idx })

	var norm float64
	for _, p := range pairs {
		norm += p.w * p.w
	}
	norm = math.Sqrt(norm)

	vec := Vector{
		Indices: make([]int32, len(pairs)),
		Values:  make([]float64, len(pairs)),
	}
	for i, p := range pairs {
		vec.Indices[i] = p.idx
		vec.Values[i] = p.w / norm
	}
	return vec
}

// selectVocabulary keeps the maxFeatures highest-count terms, breaking
// count ties lexicographically, then assigns dimensions in lexicographic
// order. A given corpus therefore always produces the same vocabulary.
func selectVocabulary(totals map[string]int, maxFeatures int) map[string]int32 {
	terms := make([]string, 0, len(totals))
	for term := range totals {
		terms = append(terms, term)
	}

	if maxFeatures > 0 && len(terms) > maxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if totals[terms[i]] != totals[terms[j]] {
				return totals[terms[i]] > totals[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:maxFeatures]
	}

	sort.Strings(terms)

	vocab := make(map[string]int32, len(terms))
	for i, term := range terms {
		vocab[term] = int32(i)
	}
	return vocab
}
