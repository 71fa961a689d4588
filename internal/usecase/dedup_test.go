package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperscout/backend/internal/domain"
)

func TestDedupeByDOI(t *testing.T) {
	papers := []domain.RawPaper{
		{Source: "arxiv", Title: "Paper A", DOI: "10.1000/a"},
		{Source: "openalex", Title: "Paper B", DOI: "10.1000/b"},
		{Source: "semanticscholar", Title: "Paper A again", DOI: "10.1000/a"},
	}

	out := dedupePapers(papers)
	require.Len(t, out, 2)
	assert.Equal(t, "arxiv", out[0].Source, "first occurrence wins on equal metadata")
	assert.Equal(t, "Paper B", out[1].Title)
}

func TestDedupeDOICaseInsensitive(t *testing.T) {
	papers := []domain.RawPaper{
		{Title: "Paper A", DOI: "10.1038/NATURE12373"},
		{Title: "Paper A", DOI: "10.1038/nature12373"},
	}
	assert.Len(t, dedupePapers(papers), 1)
}

func TestDedupeRicherDuplicateReplacesInPlace(t *testing.T) {
	papers := []domain.RawPaper{
		{Source: "arxiv", Title: "Sparse Paper", DOI: "10.1000/a"},
		{Source: "openalex", Title: "Middle", DOI: "10.1000/b"},
		{
			Source:       "semanticscholar",
			Title:        "Rich Paper",
			DOI:          "10.1000/a",
			Abstract:     "Has an abstract.",
			PDFURL:       "https://example.org/a.pdf",
			IsOpenAccess: true,
			Authors:      []domain.Author{{Name: "A"}, {Name: "B"}},
		},
	}

	out := dedupePapers(papers)
	require.Len(t, out, 2)
	// The richer record replaces the sparse one but keeps its slot.
	assert.Equal(t, "semanticscholar", out[0].Source)
	assert.Equal(t, "Rich Paper", out[0].Title)
	assert.Equal(t, "Middle", out[1].Title)
}

func TestDedupeNearDuplicateTitles(t *testing.T) {
	papers := []domain.RawPaper{
		{Source: "arxiv", Title: "Attention Is All You Need"},
		{Source: "openalex", Title: "Attention is all you need!"},
		{Source: "pubmed", Title: "A Completely Different Study of Proteins"},
	}

	out := dedupePapers(papers)
	require.Len(t, out, 2)
	assert.Equal(t, "Attention Is All You Need", out[0].Title)
	assert.Equal(t, "A Completely Different Study of Proteins", out[1].Title)
}

func TestDedupeTitleMatchesAgainstDOIEntries(t *testing.T) {
	// A DOI-less duplicate of a DOI-bearing entry is dropped, not added.
	papers := []domain.RawPaper{
		{Source: "openalex", Title: "Deep Residual Learning for Image Recognition", DOI: "10.1109/cvpr.2016.90"},
		{Source: "arxiv", Title: "Deep Residual Learning for Image Recognition"},
	}

	out := dedupePapers(papers)
	require.Len(t, out, 1)
	assert.Equal(t, "openalex", out[0].Source, "DOI-bearing entry is preferred")
}

func TestDedupeDistinctTitlesSurvive(t *testing.T) {
	papers := []domain.RawPaper{
		{Title: "Graph Neural Networks for Molecules"},
		{Title: "Transformers for Protein Folding"},
		{Title: "A Survey of Quantum Error Correction"},
	}
	assert.Len(t, dedupePapers(papers), 3)
}

func TestPreferenceScore(t *testing.T) {
	sparse := domain.RawPaper{Title: "T"}
	assert.Equal(t, 0, preferenceScore(sparse))

	rich := domain.RawPaper{
		Title:        "T",
		DOI:          "10.1000/x",
		PDFURL:       "https://example.org/x.pdf",
		Abstract:     "abstract",
		IsOpenAccess: true,
		Authors:      []domain.Author{{Name: "A"}, {Name: "B"}, {Name: "C"}},
	}
	assert.Equal(t, 3+2+2+1+3, preferenceScore(rich))
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "attention is all you need", normalizeTitle("  Attention Is  All You Need! "))
	assert.Equal(t, "bert pre training of deep bidirectional transformers", normalizeTitle("BERT: Pre-training of Deep Bidirectional Transformers"))
	assert.Equal(t, "", normalizeTitle("???"))
}

func TestTitleSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, titleSimilarity("attention is all you need", "attention is all you need"))
	assert.Equal(t, 0.0, titleSimilarity("", "attention"))

	// Near-identical strings score above the duplicate threshold.
	sim := titleSimilarity("attention is all you need", "attention is all you needed")
	assert.Greater(t, sim, titleSimilarityThreshold)

	// Unrelated titles score well below it.
	sim = titleSimilarity("attention is all you need", "a survey of quantum error correction")
	assert.Less(t, sim, titleSimilarityThreshold)
}
