package stt

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/skein-media/retime/internal/caption"
)

// TimedWord is one recognised word with its position on the audio timeline.
type TimedWord struct {
	// Text is the word as recognised, punctuation attached.
	Text string

	// Start and End are absolute positions on the audio timeline.
	Start time.Duration
	End   time.Duration

	// Confidence is the recognition confidence (0.0–1.0). Zero when the
	// provider reports none.
	Confidence float64
}

// Result is a complete batch transcription.
type Result struct {
	// Text is the full transcript text.
	Text string

	// Language is the detected or requested language code.
	Language string

	// Confidence is the overall confidence (0.0–1.0), when reported.
	Confidence float64

	// Words is the ordered timed word list.
	Words []TimedWord

	// Duration is the audio duration, when reported.
	Duration time.Duration
}

// Validate checks the structural invariants of a Result: the transcript must
// be non-empty and words must carry non-negative, non-inverted timing, ordered
// by start time. Providers call this before returning a Result to the engine.
func (r *Result) Validate() error {
	var errs []error
	if strings.TrimSpace(r.Text) == "" {
		errs = append(errs, errors.New("stt: transcript text is empty"))
	}
	var prev time.Duration
	for i, w := range r.Words {
		if strings.TrimSpace(w.Text) == "" {
			errs = append(errs, fmt.Errorf("stt: word %d has empty text", i))
		}
		if w.Start < 0 || w.End < w.Start {
			errs = append(errs, fmt.Errorf("stt: word %d has invalid timing [%s, %s]", i, w.Start, w.End))
		}
		if w.Start < prev {
			errs = append(errs, fmt.Errorf("stt: word %d starts before its predecessor", i))
		}
		prev = w.Start
	}
	return errors.Join(errs...)
}

// Sentences converts the flat word list into caption sentences, closing a
// sentence after each word ending in terminal punctuation (. ? !). Words
// without terminal punctuation before the end of audio form a final sentence.
func (r *Result) Sentences() []caption.Sentence {
	var out []caption.Sentence
	var group []caption.Word

	flush := func() {
		if s, ok := caption.New(group); ok {
			out = append(out, s)
		}
		group = nil
	}

	for _, w := range r.Words {
		text := strings.TrimSpace(w.Text)
		if text == "" {
			continue
		}
		group = append(group, caption.Word{
			Text:          text,
			AbsoluteStart: w.Start,
			AbsoluteEnd:   w.End,
			Confidence:    w.Confidence,
		})
		if endsTerminal(text) {
			flush()
		}
	}
	flush()
	return out
}

// endsTerminal reports whether text ends with sentence-terminal punctuation.
func endsTerminal(text string) bool {
	r, _ := utf8.DecodeLastRuneInString(text)
	switch r {
	case '.', '?', '!':
		return true
	}
	return false
}
