package analyzer

import (
	"regexp"
	"strings"
)

// The allow-list mirrors the ingestion filter of the corpus: Latin and
// Hangul alphanumerics, CJK ideographs, and common punctuation. Anything
// outside it is stripped before deduplication and indexing.
var (
	nonAllowed = regexp.MustCompile(`[^A-Za-z0-9가-힣.?!,()~‘’“”"":%&《》〈〉''㈜·\-'+\s一-龥]`)
	spaceRun   = regexp.MustCompile(`\s+`)
)

// Normalize canonicalizes raw passage text. Literal and escaped newlines
// and hash marks become spaces, disallowed characters are removed, and
// whitespace runs collapse to a single space.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, `\n`, " ")
	text = strings.ReplaceAll(text, "#", " ")
	text = nonAllowed.ReplaceAllString(text, "")
	text = spaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
