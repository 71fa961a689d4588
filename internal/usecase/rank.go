package usecase

import (
	"math"
	"sort"
	"strings"

	"github.com/paperscout/backend/internal/domain"
)

// Ranking weights. Keyword relevance dominates, recency is a light nudge, and
// the semantic slot is reserved for an embedding backend.
const (
	keywordWeight  = 0.6
	semanticWeight = 0.3
	recencyWeight  = 0.1

	bm25K1 = 1.2
	bm25B  = 0.75

	// The engine ranks a handful of fan-in results, not a corpus, so BM25
	// runs against fixed pseudo-statistics instead of real document
	// frequencies.
	pseudoCorpusSize = 100.0
	pseudoAvgDocLen  = 100.0

	recencyDecay = 0.15
)

// pseudoIDF is the BM25 idf of a term assumed to appear in one document of a
// pseudoCorpusSize corpus.
var pseudoIDF = math.Log(1 + (pseudoCorpusSize-1+0.5)/(1+0.5))

// rankPapers scores every paper against the query and sorts descending. The
// sort is stable, so equal scores keep their fan-in order and rankings stay
// reproducible run to run.
func rankPapers(papers []domain.RawPaper, queryText string, currentYear int) []domain.RankedResult {
	terms := tokenizeQuery(queryText)

	results := make([]domain.RankedResult, 0, len(papers))
	for _, p := range papers {
		kw := keywordScore(terms, p.Title+" "+p.Abstract)
		sem := semanticScore(queryText, &p)
		rec := recencyScore(p.Year, currentYear)

		results = append(results, domain.RankedResult{
			RawPaper: p,
			Score:    keywordWeight*kw + semanticWeight*sem + recencyWeight*rec,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results
}

// tokenizeQuery lowercases, strips punctuation, drops tokens of one or two
// runes, and deduplicates while keeping first-seen order.
func tokenizeQuery(query string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, tok := range strings.Fields(normalizeTitle(query)) {
		if len([]rune(tok)) <= 2 || seen[tok] {
			continue
		}
		seen[tok] = true
		terms = append(terms, tok)
	}
	return terms
}

// keywordScore is a simplified BM25 over the paper's title and abstract,
// scaled to [0, 1] by the score a document matching every query term with
// saturated term frequency would reach. A verbatim title match therefore
// always beats a partial one.
func keywordScore(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 0
	}

	docTokens := strings.Fields(normalizeTitle(text))
	if len(docTokens) == 0 {
		return 0
	}

	tf := make(map[string]int, len(docTokens))
	for _, tok := range docTokens {
		tf[tok]++
	}

	dl := float64(len(docTokens))
	lengthNorm := 1 - bm25B + bm25B*dl/pseudoAvgDocLen

	var score float64
	for _, term := range terms {
		f := float64(tf[term])
		if f == 0 {
			continue
		}
		score += pseudoIDF * f * (bm25K1 + 1) / (f + bm25K1*lengthNorm)
	}

	score /= float64(len(terms)) * pseudoIDF * (bm25K1 + 1)
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

// semanticScore is a placeholder for an embedding-based similarity backend.
// The weight is already part of the composite so rankings shift smoothly once
// a backend lands.
func semanticScore(_ string, _ *domain.RawPaper) float64 {
	return 0
}

// recencyScore decays exponentially with the paper's age. An unknown year
// scores zero rather than being treated as current.
func recencyScore(year, currentYear int) float64 {
	if year <= 0 {
		return 0
	}
	age := currentYear - year
	if age < 0 {
		age = 0
	}
	return math.Exp(-recencyDecay * float64(age))
}
