package analyzer

import (
	"strings"
	"unicode"
)

// Tokenizer splits text into lowercase word tokens and expands them into
// n-grams for the vectorizer.
type Tokenizer struct {
	ngramMin int
	ngramMax int
}

// NewTokenizer creates a Tokenizer producing n-grams in [ngramMin, ngramMax].
// NewTokenizer(1, 1) yields plain unigrams.
func NewTokenizer(ngramMin, ngramMax int) *Tokenizer {
	if ngramMin < 1 {
		ngramMin = 1
	}
	if ngramMax < ngramMin {
		ngramMax = ngramMin
	}
	return &Tokenizer{ngramMin: ngramMin, ngramMax: ngramMax}
}

// Tokenize splits text into lowercase word tokens. A word is a run of two
// or more letters, digits or underscores; single-character runs are dropped.
func (t *Tokenizer) Tokenize(text string) []string {
	words := splitWords(text)
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		tokens = append(tokens, strings.ToLower(word))
	}
	return tokens
}

// Terms expands the token stream into the configured n-gram range.
// Multi-word grams join their tokens with a single space.
func (t *Tokenizer) Terms(text string) []string {
	tokens := t.Tokenize(text)
	if t.ngramMin == 1 && t.ngramMax == 1 {
		return tokens
	}

	var terms []string
	for n := t.ngramMin; n <= t.ngramMax; n++ {
		if n == 1 {
			terms = append(terms, tokens...)
			continue
		}
		for i := 0; i+n <= len(tokens); i++ {
			terms = append(terms, strings.Join(tokens[i:i+n], " "))
		}
	}
	return terms
}

// splitWords splits text into maximal runs of letters, digits and
// underscores, keeping runs of at least two runes.
func splitWords(text string) []string {
	var words []string
	var current strings.Builder
	runes := 0

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			current.WriteRune(r)
			runes++
			continue
		}
		if runes >= 2 {
			words = append(words, current.String())
		}
		current.Reset()
		runes = 0
	}
	if runes >= 2 {
		words = append(words, current.String())
	}

	return words
}
