// Package caption defines the timed-caption value types shared by the
// realignment and segmentation engines.
//
// A [Sentence] is an ordered list of [Word] values plus derived timing and
// text. Words carry two clocks: absolute timestamps on the global audio
// timeline (AbsoluteStart/AbsoluteEnd) and relative offsets from the first
// word of the owning sentence (Start/End, where the first word's Start is
// always zero). Every transform in this repository produces fresh Sentence
// values and recomputes all derived fields — callers never receive aliases
// into their input slices.
package caption

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Word is the leaf timing unit of a caption.
type Word struct {
	// Text is the word as displayed, without surrounding whitespace.
	Text string

	// Start and End are offsets from the owning sentence's first word.
	// The first word of a sentence always has Start == 0.
	Start time.Duration
	End   time.Duration

	// Duration equals End-Start and AbsoluteEnd-AbsoluteStart.
	Duration time.Duration

	// AbsoluteStart and AbsoluteEnd are positions on the audio timeline.
	AbsoluteStart time.Duration
	AbsoluteEnd   time.Duration

	// Confidence is the recognition confidence (0.0–1.0) carried over from
	// the STT provider. Zero when the provider reports none.
	Confidence float64
}

// Sentence is one caption line: a non-empty word list with derived timing.
type Sentence struct {
	// ID uniquely identifies the sentence. Regenerated whenever a transform
	// produces a new sentence; never reused across transform calls.
	ID string

	// Text is the space-joined Word.Text sequence.
	Text string

	// Start is always 0; End equals Duration. Kept so a Sentence can be
	// treated uniformly with its words by rendering code.
	Start time.Duration
	End   time.Duration

	// Duration equals AbsoluteEnd - AbsoluteStart.
	Duration time.Duration

	// AbsoluteStart is the earliest word AbsoluteStart; AbsoluteEnd the
	// latest word AbsoluteEnd.
	AbsoluteStart time.Duration
	AbsoluteEnd   time.Duration

	Words []Word
}

// New builds a Sentence from words carrying absolute timing. Words are
// ordered by AbsoluteStart, relative offsets are rebased so the first word
// starts at zero, and text and sentence bounds are derived. Returns false
// when words is empty — empty sentences are never emitted.
func New(words []Word) (Sentence, bool) {
	if len(words) == 0 {
		return Sentence{}, false
	}

	ws := make([]Word, len(words))
	copy(ws, words)
	sort.SliceStable(ws, func(i, j int) bool {
		return ws[i].AbsoluteStart < ws[j].AbsoluteStart
	})

	absStart := ws[0].AbsoluteStart
	absEnd := ws[0].AbsoluteEnd
	for _, w := range ws[1:] {
		if w.AbsoluteEnd > absEnd {
			absEnd = w.AbsoluteEnd
		}
	}

	texts := make([]string, len(ws))
	for i := range ws {
		ws[i].Duration = ws[i].AbsoluteEnd - ws[i].AbsoluteStart
		ws[i].Start = ws[i].AbsoluteStart - absStart
		ws[i].End = ws[i].Start + ws[i].Duration
		texts[i] = ws[i].Text
	}
	// First word's offset is zero by contract.
	ws[0].Start = 0
	ws[0].End = ws[0].Duration

	s := Sentence{
		ID:            uuid.NewString(),
		Text:          strings.Join(texts, " "),
		Duration:      absEnd - absStart,
		AbsoluteStart: absStart,
		AbsoluteEnd:   absEnd,
		Words:         ws,
	}
	s.Start = 0
	s.End = s.Duration
	return s, true
}

// Flatten returns all words of sentences in order as one stream, preserving
// absolute timing. The returned slice is freshly allocated.
func Flatten(sentences []Sentence) []Word {
	n := 0
	for _, s := range sentences {
		n += len(s.Words)
	}
	out := make([]Word, 0, n)
	for _, s := range sentences {
		out = append(out, s.Words...)
	}
	return out
}

// TotalDuration returns the span from the first sentence's AbsoluteStart to
// the last sentence's AbsoluteEnd. Zero for an empty list.
func TotalDuration(sentences []Sentence) time.Duration {
	if len(sentences) == 0 {
		return 0
	}
	return sentences[len(sentences)-1].AbsoluteEnd - sentences[0].AbsoluteStart
}

// CharCount returns the number of runes in the sentence text, spaces excluded.
// Used by segmentation limits so multi-byte scripts are counted per character.
func (s Sentence) CharCount() int {
	n := 0
	for _, r := range s.Text {
		if r != ' ' {
			n++
		}
	}
	return n
}
