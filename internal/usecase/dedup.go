package usecase

import (
	"strings"
	"unicode"

	"github.com/paperscout/backend/internal/domain"
)

// titleSimilarityThreshold is the normalized title similarity above which two
// papers without DOIs are considered the same work.
const titleSimilarityThreshold = 0.92

// dedupePapers collapses the merged source results into one entry per work.
// Papers sharing a DOI are exact duplicates; papers without a DOI are matched
// against every accepted entry by title similarity. When a later duplicate
// carries more metadata than the entry it collides with, it replaces that
// entry in place, so positions (and with them the eventual tie-break order)
// never change.
func dedupePapers(papers []domain.RawPaper) []domain.RawPaper {
	accepted := make([]domain.RawPaper, 0, len(papers))
	normTitles := make([]string, 0, len(papers))
	doiIndex := make(map[string]int)

	for _, p := range papers {
		doi := strings.ToLower(strings.TrimSpace(p.DOI))

		if doi != "" {
			if i, seen := doiIndex[doi]; seen {
				if preferenceScore(p) > preferenceScore(accepted[i]) {
					accepted[i] = p
					normTitles[i] = normalizeTitle(p.Title)
				}
				continue
			}
			doiIndex[doi] = len(accepted)
			accepted = append(accepted, p)
			normTitles = append(normTitles, normalizeTitle(p.Title))
			continue
		}

		// No DOI: fuzzy-match the title against everything accepted so far.
		normTitle := normalizeTitle(p.Title)
		bestIdx := -1
		bestSim := titleSimilarityThreshold
		for i := range accepted {
			if sim := titleSimilarity(normTitle, normTitles[i]); sim > bestSim {
				bestIdx = i
				bestSim = sim
			}
		}

		if bestIdx == -1 {
			accepted = append(accepted, p)
			normTitles = append(normTitles, normTitle)
			continue
		}

		if preferenceScore(p) > preferenceScore(accepted[bestIdx]) {
			if old := strings.ToLower(strings.TrimSpace(accepted[bestIdx].DOI)); old != "" {
				delete(doiIndex, old)
			}
			accepted[bestIdx] = p
			normTitles[bestIdx] = normTitle
		}
	}

	return accepted
}

// preferenceScore weighs how much useful metadata a paper carries. A DOI
// counts most, then a PDF link and an abstract, then open access and author
// count. Equal scores keep the first-seen entry.
func preferenceScore(p domain.RawPaper) int {
	score := len(p.Authors)
	if strings.TrimSpace(p.DOI) != "" {
		score += 3
	}
	if p.PDFURL != "" {
		score += 2
	}
	if strings.TrimSpace(p.Abstract) != "" {
		score += 2
	}
	if p.IsOpenAccess {
		score++
	}
	return score
}

// normalizeTitle lowercases, strips everything but letters and digits, and
// collapses runs of whitespace, so "Attention Is All You Need!" and
// "attention is all you need" compare equal.
func normalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// titleSimilarity returns the Jaro-Winkler similarity of two normalized
// titles, in [0, 1].
func titleSimilarity(a, b string) float64 {
	return jaroWinkler([]rune(a), []rune(b))
}

func jaroWinkler(a, b []rune) float64 {
	j := jaro(a, b)
	if j == 0 {
		return 0
	}

	// Winkler boost: common prefixes up to 4 runes pull near-matches closer.
	prefix := 0
	for prefix < len(a) && prefix < len(b) && prefix < 4 && a[prefix] == b[prefix] {
		prefix++
	}
	return j + float64(prefix)*0.1*(1-j)
}

func jaro(a, b []rune) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	window := max(len(a), len(b))/2 - 1
	if window < 0 {
		window = 0
	}

	aMatched := make([]bool, len(a))
	bMatched := make([]bool, len(b))
	matches := 0

	for i := range a {
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		hi := i + window + 1
		if hi > len(b) {
			hi = len(b)
		}
		for k := lo; k < hi; k++ {
			if bMatched[k] || a[i] != b[k] {
				continue
			}
			aMatched[i] = true
			bMatched[k] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0
	}

	transpositions := 0
	k := 0
	for i := range a {
		if !aMatched[i] {
			continue
		}
		for !bMatched[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	return (m/float64(len(a)) + m/float64(len(b)) + (m-float64(transpositions)/2)/m) / 3
}
