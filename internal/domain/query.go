package domain

import (
	"fmt"
	"strings"
)

// SearchQuery is the immutable input to one search invocation. YearFrom and
// YearTo of 0 mean unbounded on that side.
type SearchQuery struct {
	Text           string `json:"text"`
	YearFrom       int    `json:"year_from,omitempty"`
	YearTo         int    `json:"year_to,omitempty"`
	Limit          int    `json:"limit"`
	Language       string `json:"language"`
	OpenAccessOnly bool   `json:"open_access_only"`
}

// NormalizedText lower-cases, trims, and collapses inner whitespace. Topic
// identity is derived from this form so "Machine  Learning" and
// "machine learning " map to the same topic.
func (q SearchQuery) NormalizedText() string {
	return strings.Join(strings.Fields(strings.ToLower(q.Text)), " ")
}

// Signature is the exact-match key for topic reuse: one topic per distinct
// (text, language, yearFrom, yearTo) combination.
func (q SearchQuery) Signature() string {
	return fmt.Sprintf("%s|%s|%d|%d", q.NormalizedText(), q.Language, q.YearFrom, q.YearTo)
}
