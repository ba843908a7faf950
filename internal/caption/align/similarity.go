package align

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// Complexity classifies a (original word, corrected token) pairing. The
// classification drives the replace-or-keep decision in [Aligner].
type Complexity string

const (
	// ComplexitySimple is a one-word-to-one-word typo or case correction:
	// normalized strings identical, or similarity ≥ 0.7 with a length
	// difference of at most 2 and no internal space on either side.
	ComplexitySimple Complexity = "simple"

	// ComplexityMerge means the corrected token spans multiple words while
	// the original is a single word.
	ComplexityMerge Complexity = "merge"

	// ComplexitySplit is the inverse of merge.
	ComplexitySplit Complexity = "split"

	// ComplexityComplex is any other substantial divergence.
	ComplexityComplex Complexity = "complex"
)

// mergeSplitConfidence is the fixed confidence assigned to merge and split
// classifications. Under the default decision threshold of 0.6 these pairings
// always fall back to the original word.
const mergeSplitConfidence = 0.3

// normalizeToken lowercases s and trims leading/trailing punctuation so that
// case and punctuation drift do not count as lexical difference.
func normalizeToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// similarity returns an edit-distance-derived score in [0, 1] for the
// normalized forms of a and b. Transpositions count as single edits
// (Damerau-Levenshtein), so adjacent-letter typos score high.
func similarity(a, b string) float64 {
	na, nb := normalizeToken(a), normalizeToken(b)
	if na == nb {
		return 1
	}
	longest := max(len(na), len(nb))
	if longest == 0 {
		return 0
	}
	dist := matchr.DamerauLevenshtein(na, nb)
	if dist > longest {
		dist = longest
	}
	return 1 - float64(dist)/float64(longest)
}

// detectComplexity classifies the pairing of an original word and a corrected
// token and returns the classification together with a confidence score.
//
// Confidence semantics: simple and complex carry the lexical similarity of
// the pair (1.0 for a normalized-identical simple match); merge and split
// carry a fixed low confidence of 0.3 regardless of similarity.
func detectComplexity(original, corrected string) (Complexity, float64) {
	origSpace := strings.Contains(strings.TrimSpace(original), " ")
	corrSpace := strings.Contains(strings.TrimSpace(corrected), " ")

	if corrSpace && !origSpace {
		return ComplexityMerge, mergeSplitConfidence
	}
	if origSpace && !corrSpace {
		return ComplexitySplit, mergeSplitConfidence
	}

	sim := similarity(original, corrected)
	lenDelta := len(normalizeToken(original)) - len(normalizeToken(corrected))
	if lenDelta < 0 {
		lenDelta = -lenDelta
	}

	if normalizeToken(original) == normalizeToken(corrected) {
		return ComplexitySimple, 1
	}
	if sim >= 0.7 && lenDelta <= 2 && !origSpace && !corrSpace {
		return ComplexitySimple, sim
	}
	return ComplexityComplex, sim
}
