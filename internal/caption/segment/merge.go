package segment

import (
	"github.com/skein-media/retime/internal/caption"
)

// mergeSentences combines undersized adjacent sentences according to the
// configured strategy. Conservative returns the input untouched; aggressive
// pulls everything into one running group; balanced merges while the combined
// sentence stays within the maxima (with 20 % tolerance) and the gap to the
// previous sentence stays within MaxGapBetween.
func mergeSentences(sentences []caption.Sentence, opts Options) []caption.Sentence {
	switch opts.MergeStrategy {
	case MergeConservative:
		return sentences
	case MergeAggressive:
		return mergeAll(sentences)
	default:
		return mergeBalanced(sentences, opts)
	}
}

// mergeAll collapses all sentences into a single sentence whose word list is
// the concatenation ordered by absolute start.
func mergeAll(sentences []caption.Sentence) []caption.Sentence {
	if len(sentences) <= 1 {
		return sentences
	}
	merged, ok := caption.New(caption.Flatten(sentences))
	if !ok {
		return nil
	}
	return []caption.Sentence{merged}
}

// mergeBalanced walks the sentence list keeping a running group. Merging only
// targets undersized sentences: a sentence below the configured minima is
// always pulled into the group rather than flushed standalone, and a group
// still below the minima keeps absorbing its successor while the combined
// word count, duration, and character count stay within the maxima (with
// tolerance) and the silence gap is acceptable. Sentences that already meet
// the minima pass through untouched.
func mergeBalanced(sentences []caption.Sentence, opts Options) []caption.Sentence {
	if len(sentences) == 0 {
		return nil
	}

	var out []caption.Sentence
	group := sentences[0]

	for _, next := range sentences[1:] {
		shouldMerge := belowMinima(next, opts) ||
			(belowMinima(group, opts) && canCombine(group, next, opts))
		if shouldMerge {
			if combined, ok := caption.New(append(group.Words, next.Words...)); ok {
				group = combined
				continue
			}
		}
		out = append(out, group)
		group = next
	}

	return append(out, group)
}

// belowMinima reports whether s violates any configured minimum.
func belowMinima(s caption.Sentence, opts Options) bool {
	if opts.MinWordsPerSentence > 0 && len(s.Words) < opts.MinWordsPerSentence {
		return true
	}
	if opts.MinSentenceDuration > 0 && s.Duration < opts.MinSentenceDuration {
		return true
	}
	if opts.MinCharactersPerSentence > 0 && s.CharCount() < opts.MinCharactersPerSentence {
		return true
	}
	return false
}

// canCombine reports whether merging next into group keeps the result within
// the configured maxima (with tolerance) and the gap acceptable.
func canCombine(group, next caption.Sentence, opts Options) bool {
	gap := next.AbsoluteStart - group.AbsoluteEnd
	if gap > opts.MaxGapBetween {
		return false
	}

	if len(group.Words)+len(next.Words) > opts.MaxWordsPerSentence {
		return false
	}

	combinedDuration := next.AbsoluteEnd - group.AbsoluteStart
	if float64(combinedDuration) > float64(opts.MaxSentenceDuration)*limitTolerance {
		return false
	}

	combinedChars := group.CharCount() + next.CharCount()
	return float64(combinedChars) <= float64(opts.MaxCharactersPerSentence)*limitTolerance
}
