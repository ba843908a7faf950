package segment

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/skein-media/retime/internal/caption"
)

// lookaheadWords is how far smart splitting scans forward for a punctuation
// boundary when only the character limit is exceeded.
const lookaheadWords = 3

// endsWithPunctuation reports whether text ends in a chunk-closing
// punctuation mark.
func endsWithPunctuation(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(text)
	switch r {
	case ',', '.', '?', '!':
		return true
	}
	return false
}

// chunkChars returns the rune count of the chunk's text, spaces excluded.
func chunkChars(words []caption.Word) int {
	n := 0
	for _, w := range words {
		n += utf8.RuneCountInString(w.Text)
	}
	return n
}

// chunkDuration returns the absolute span of the chunk.
func chunkDuration(words []caption.Word) time.Duration {
	if len(words) == 0 {
		return 0
	}
	return words[len(words)-1].AbsoluteEnd - words[0].AbsoluteStart
}

// exceedsLimits reports which maxima the chunk currently violates.
func exceedsLimits(words []caption.Word, opts Options) (overWords, overDuration, overChars bool) {
	overWords = len(words) >= opts.MaxWordsPerSentence
	overDuration = chunkDuration(words) >= opts.MaxSentenceDuration
	overChars = chunkChars(words) >= opts.MaxCharactersPerSentence
	return overWords, overDuration, overChars
}

// needsSplit reports whether the sentence violates any configured maximum.
func needsSplit(s caption.Sentence, opts Options) bool {
	if len(s.Words) > opts.MaxWordsPerSentence {
		return true
	}
	if s.Duration > opts.MaxSentenceDuration {
		return true
	}
	return s.CharCount() > opts.MaxCharactersPerSentence
}

// splitWords cuts a flat word list into chunks according to the configured
// strategy. Every returned chunk is non-empty.
func splitWords(words []caption.Word, opts Options) [][]caption.Word {
	switch opts.SplitStrategy {
	case SplitByWords:
		return chunkByWords(words, opts.MaxWordsPerSentence)
	case SplitByDuration:
		return chunkByDuration(words, opts.MaxSentenceDuration)
	case SplitByPunctuation:
		return chunkByPunctuation(words, opts, false)
	default:
		return chunkByPunctuation(words, opts, true)
	}
}

// chunkByWords performs fixed-size chunking at size words per chunk.
func chunkByWords(words []caption.Word, size int) [][]caption.Word {
	if size <= 0 {
		size = 1
	}
	var chunks [][]caption.Word
	for len(words) > 0 {
		n := min(size, len(words))
		chunks = append(chunks, words[:n])
		words = words[n:]
	}
	return chunks
}

// chunkByDuration greedily accumulates words, closing a chunk once adding the
// next word would push the chunk past maxDuration. A chunk always contains at
// least one word even when that word alone exceeds the limit.
func chunkByDuration(words []caption.Word, maxDuration time.Duration) [][]caption.Word {
	var chunks [][]caption.Word
	var cur []caption.Word

	for _, w := range words {
		if len(cur) > 0 && w.AbsoluteEnd-cur[0].AbsoluteStart > maxDuration {
			chunks = append(chunks, cur)
			cur = nil
		}
		cur = append(cur, w)
	}
	if len(cur) > 0 {
		chunks = append(chunks, cur)
	}
	return chunks
}

// chunkByPunctuation greedily accumulates words and prefers to close a chunk
// exactly after a word ending in sentence punctuation. When limits are
// exceeded with no punctuation at hand it tolerates up to 20 % character
// overrun while waiting, then force-splits at the word boundary.
//
// With smart enabled it additionally scans backward within the chunk for the
// most recent punctuation-terminated word to use as the split point, and —
// when only the character limit is exceeded — looks ahead up to three words
// for a nearby punctuation mark before committing to a cut.
func chunkByPunctuation(words []caption.Word, opts Options, smart bool) [][]caption.Word {
	var chunks [][]caption.Word
	var cur []caption.Word

	flush := func(chunk []caption.Word) {
		if len(chunk) > 0 {
			chunks = append(chunks, chunk)
		}
	}

	charBudget := int(float64(opts.MaxCharactersPerSentence) * limitTolerance)

	i := 0
	for i < len(words) {
		w := words[i]
		cur = append(cur, w)
		i++

		overWords, overDuration, overChars := exceedsLimits(cur, opts)
		if !overWords && !overDuration && !overChars {
			continue
		}

		// Limits exceeded. Punctuation right here is the ideal cut.
		if endsWithPunctuation(w.Text) {
			flush(cur)
			cur = nil
			continue
		}

		onlyChars := overChars && !overWords && !overDuration

		if smart && onlyChars {
			// A punctuation mark a few words ahead beats cutting mid-clause.
			if ahead := punctuationWithin(words[i:], lookaheadWords); ahead >= 0 {
				ext := words[i : i+ahead+1]
				if chunkChars(cur)+chunkChars(ext) <= charBudget {
					cur = append(cur, ext...)
					i += ahead + 1
					flush(cur)
					cur = nil
					continue
				}
			}
		}

		// Within the character tolerance a chunk may keep growing while
		// waiting for punctuation.
		if onlyChars && chunkChars(cur) <= charBudget {
			continue
		}

		if smart {
			// Back up to the most recent punctuation-terminated word, as long
			// as the resulting chunk stays at or above the minimum.
			if j := lastPunctuationIndex(cur[:len(cur)-1]); j >= 0 && j+1 >= opts.MinWordsPerSentence {
				flush(cur[:j+1])
				rest := make([]caption.Word, len(cur)-j-1)
				copy(rest, cur[j+1:])
				cur = rest
				continue
			}
		}

		flush(cur)
		cur = nil
	}

	flush(cur)
	return chunks
}

// punctuationWithin returns the index (relative to words) of the first
// punctuation-terminated word within the first n words, or -1.
func punctuationWithin(words []caption.Word, n int) int {
	for k := 0; k < n && k < len(words); k++ {
		if endsWithPunctuation(words[k].Text) {
			return k
		}
	}
	return -1
}

// lastPunctuationIndex returns the index of the last punctuation-terminated
// word in words, or -1.
func lastPunctuationIndex(words []caption.Word) int {
	for j := len(words) - 1; j >= 0; j-- {
		if endsWithPunctuation(words[j].Text) {
			return j
		}
	}
	return -1
}
