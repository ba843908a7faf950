// Package segment reshapes an existing timed sentence list into a different
// bucketing — by word count, duration, character count, or punctuation —
// without needing corrected text.
//
// [Reshape] runs a fixed pipeline: optional quality filtering (confidence
// floor, filler-word list), splitting of oversized sentences, merging of
// undersized adjacent sentences, and a final validation filter. Each call is
// a pure pipeline over the input slice, fully re-derived every invocation;
// timing is recomputed for every produced sentence.
package segment

import (
	"errors"
	"strings"
	"unicode"

	"github.com/skein-media/retime/internal/caption"
)

// ErrNoSentences is returned when the input sentence list is empty.
var ErrNoSentences = errors.New("segment: sentence list is empty")

// Stats reports what one reshaping pass did to the sentence list.
type Stats struct {
	// SentencesSplit counts input sentences that were broken into smaller
	// chunks.
	SentencesSplit int

	// SentencesMerged counts sentences absorbed into a neighbouring sentence
	// during the merge step.
	SentencesMerged int
}

// Reshape rebuckets sentences according to opts and returns a freshly built
// sentence list. The input is never modified.
//
// Returns [ErrNoSentences] for an empty input and a joined validation error
// when opts is incoherent (a maximum smaller than its paired minimum, an
// unknown strategy). A sentence losing all its words to quality filtering is
// dropped before the split/merge pipeline.
func Reshape(sentences []caption.Sentence, opts Options) ([]caption.Sentence, error) {
	out, _, err := ReshapeWithStats(sentences, opts)
	return out, err
}

// ReshapeWithStats is [Reshape] plus a [Stats] describing the split and merge
// work performed.
func ReshapeWithStats(sentences []caption.Sentence, opts Options) ([]caption.Sentence, Stats, error) {
	var stats Stats
	if len(sentences) == 0 {
		return nil, stats, ErrNoSentences
	}
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, stats, err
	}

	filtered := filterQuality(sentences, opts)

	var split []caption.Sentence
	for _, s := range filtered {
		if !needsSplit(s, opts) {
			// Rebuild anyway so output never aliases input words.
			if rebuilt, ok := caption.New(s.Words); ok {
				split = append(split, rebuilt)
			}
			continue
		}
		stats.SentencesSplit++
		for _, chunk := range splitWords(s.Words, opts) {
			if ns, ok := caption.New(chunk); ok {
				split = append(split, ns)
			}
		}
	}

	merged := mergeSentences(split, opts)
	stats.SentencesMerged = len(split) - len(merged)

	return validateBounds(merged, opts), stats, nil
}

// filterQuality drops words below the confidence floor or matching the
// filler-word list, rebuilding each surviving sentence's timing. Sentences
// left without words are dropped entirely.
func filterQuality(sentences []caption.Sentence, opts Options) []caption.Sentence {
	if opts.MinWordConfidence <= 0 && len(opts.FillerWords) == 0 {
		return sentences
	}

	fillers := make(map[string]struct{}, len(opts.FillerWords))
	for _, f := range opts.FillerWords {
		fillers[foldWord(f)] = struct{}{}
	}

	out := make([]caption.Sentence, 0, len(sentences))
	for _, s := range sentences {
		kept := make([]caption.Word, 0, len(s.Words))
		for _, w := range s.Words {
			if opts.MinWordConfidence > 0 && w.Confidence < opts.MinWordConfidence {
				continue
			}
			if _, isFiller := fillers[foldWord(w.Text)]; isFiller {
				continue
			}
			kept = append(kept, w)
		}
		if ns, ok := caption.New(kept); ok {
			out = append(out, ns)
		}
	}
	return out
}

// validateBounds drops sentences outside the configured bounds. Minima are
// always enforced when set; maxima are enforced with tolerance, except under
// aggressive merging where oversize output is the requested behaviour.
func validateBounds(sentences []caption.Sentence, opts Options) []caption.Sentence {
	out := make([]caption.Sentence, 0, len(sentences))
	for _, s := range sentences {
		if belowMinima(s, opts) {
			continue
		}
		if opts.MergeStrategy != MergeAggressive && aboveMaxima(s, opts) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// aboveMaxima reports whether s exceeds any maximum beyond tolerance.
func aboveMaxima(s caption.Sentence, opts Options) bool {
	if float64(len(s.Words)) > float64(opts.MaxWordsPerSentence)*limitTolerance {
		return true
	}
	if float64(s.Duration) > float64(opts.MaxSentenceDuration)*limitTolerance {
		return true
	}
	return float64(s.CharCount()) > float64(opts.MaxCharactersPerSentence)*limitTolerance
}

// foldWord lowercases s and strips surrounding punctuation for filler-word
// comparison.
func foldWord(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
