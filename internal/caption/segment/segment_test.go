package segment_test

import (
	"errors"
	"testing"
	"time"

	"github.com/skein-media/retime/internal/caption"
	"github.com/skein-media/retime/internal/caption/segment"
)

func sentence(t *testing.T, startAt time.Duration, texts ...string) caption.Sentence {
	t.Helper()
	words := make([]caption.Word, len(texts))
	cursor := startAt
	for i, text := range texts {
		words[i] = caption.Word{
			Text:          text,
			AbsoluteStart: cursor,
			AbsoluteEnd:   cursor + 300*time.Millisecond,
			Confidence:    0.9,
		}
		cursor += 400 * time.Millisecond
	}
	s, ok := caption.New(words)
	if !ok {
		t.Fatal("caption.New rejected test words")
	}
	return s
}

func texts(sentences []caption.Sentence) []string {
	out := make([]string, len(sentences))
	for i, s := range sentences {
		out[i] = s.Text
	}
	return out
}

// ---- splitting ----------------------------------------------------------------

func TestReshape_SplitByWords(t *testing.T) {
	t.Parallel()
	in := []caption.Sentence{sentence(t, 0, "a", "b", "c", "d", "e", "f", "g", "h")}

	out, err := segment.Reshape(in, segment.Options{
		MaxWordsPerSentence: 3,
		SplitStrategy:       segment.SplitByWords,
		MergeStrategy:       segment.MergeConservative,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("sentences = %d, want 3: %v", len(out), texts(out))
	}
	for i, wantWords := range []int{3, 3, 2} {
		if got := len(out[i].Words); got != wantWords {
			t.Errorf("sentence %d words = %d, want %d", i, got, wantWords)
		}
	}
	// The second chunk starts where its first word started.
	if out[1].AbsoluteStart != 1200*time.Millisecond {
		t.Errorf("sentence 1 start = %v, want 1.2s", out[1].AbsoluteStart)
	}
}

func TestReshape_SplitByDuration(t *testing.T) {
	t.Parallel()
	in := []caption.Sentence{sentence(t, 0, "a", "b", "c", "d", "e")}

	out, err := segment.Reshape(in, segment.Options{
		MaxSentenceDuration: time.Second,
		SplitStrategy:       segment.SplitByDuration,
		MergeStrategy:       segment.MergeConservative,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("sentences = %d, want 3: %v", len(out), texts(out))
	}
	for i, s := range out {
		if s.Duration > time.Second {
			t.Errorf("sentence %d duration = %v, exceeds the limit", i, s.Duration)
		}
	}
}

func TestReshape_SplitByPunctuationPrefersMarks(t *testing.T) {
	t.Parallel()
	in := []caption.Sentence{sentence(t, 0, "hello", "there.", "big", "world")}

	out, err := segment.Reshape(in, segment.Options{
		MaxWordsPerSentence: 2,
		SplitStrategy:       segment.SplitByPunctuation,
		MergeStrategy:       segment.MergeConservative,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("sentences = %d, want 2: %v", len(out), texts(out))
	}
	if out[0].Text != "hello there." {
		t.Errorf("sentence 0 = %q", out[0].Text)
	}
	if out[1].Text != "big world" {
		t.Errorf("sentence 1 = %q", out[1].Text)
	}
}

func TestReshape_SmartSplitBacksUpToPunctuation(t *testing.T) {
	t.Parallel()
	in := []caption.Sentence{sentence(t, 0, "we", "went", "home,", "then", "slept")}

	// The word limit trips on "then"; smart splitting cuts after "home,"
	// instead of mid-clause.
	out, err := segment.Reshape(in, segment.Options{
		MaxWordsPerSentence: 4,
		SplitStrategy:       segment.SplitSmart,
		MergeStrategy:       segment.MergeConservative,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("sentences = %d, want 2: %v", len(out), texts(out))
	}
	if out[0].Text != "we went home," {
		t.Errorf("sentence 0 = %q", out[0].Text)
	}
	if out[1].Text != "then slept" {
		t.Errorf("sentence 1 = %q", out[1].Text)
	}
}

func TestReshape_SmartSplitLooksAheadForPunctuation(t *testing.T) {
	t.Parallel()
	in := []caption.Sentence{sentence(t, 0, "alphabet", "brightly", "calm", "no.", "fin")}

	// The character limit trips on "calm"; "no." is one word ahead and fits
	// inside the overrun tolerance, so the cut lands after it.
	out, err := segment.Reshape(in, segment.Options{
		MaxCharactersPerSentence: 20,
		SplitStrategy:            segment.SplitSmart,
		MergeStrategy:            segment.MergeConservative,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("sentences = %d, want 2: %v", len(out), texts(out))
	}
	if out[0].Text != "alphabet brightly calm no." {
		t.Errorf("sentence 0 = %q", out[0].Text)
	}
	if out[1].Text != "fin" {
		t.Errorf("sentence 1 = %q", out[1].Text)
	}
}

func TestReshape_WithinLimitsUntouched(t *testing.T) {
	t.Parallel()
	in := []caption.Sentence{sentence(t, 0, "short", "and", "sweet")}

	out, err := segment.Reshape(in, segment.Options{MergeStrategy: segment.MergeConservative})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("sentences = %d, want 1", len(out))
	}
	if out[0].Text != "short and sweet" {
		t.Errorf("text = %q", out[0].Text)
	}
	if out[0].AbsoluteStart != in[0].AbsoluteStart || out[0].AbsoluteEnd != in[0].AbsoluteEnd {
		t.Error("timing changed on a pass-through sentence")
	}

	// Output never aliases the input word slice.
	out[0].Words[0].Text = "mutated"
	if in[0].Words[0].Text != "short" {
		t.Error("output aliases the input words")
	}
}

// ---- merging ------------------------------------------------------------------

func TestReshape_AggressiveMergeCollapsesAll(t *testing.T) {
	t.Parallel()
	in := []caption.Sentence{
		sentence(t, 0, "a", "b"),
		sentence(t, 5*time.Second, "c", "d"),
		sentence(t, 10*time.Second, "e", "f"),
	}

	// Aggressive merging ignores maxima and gaps entirely.
	out, err := segment.Reshape(in, segment.Options{
		MaxWordsPerSentence: 2,
		MergeStrategy:       segment.MergeAggressive,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("sentences = %d, want 1: %v", len(out), texts(out))
	}
	if len(out[0].Words) != 6 {
		t.Errorf("words = %d, want 6", len(out[0].Words))
	}
	if out[0].Text != "a b c d e f" {
		t.Errorf("text = %q", out[0].Text)
	}
	if out[0].AbsoluteStart != 0 || out[0].AbsoluteEnd != 10*time.Second+700*time.Millisecond {
		t.Errorf("span = [%v, %v]", out[0].AbsoluteStart, out[0].AbsoluteEnd)
	}
}

func TestReshape_BalancedMergePullsUndersized(t *testing.T) {
	t.Parallel()
	in := []caption.Sentence{
		sentence(t, 0, "a", "b"),
		sentence(t, 1200*time.Millisecond, "c", "d", "e"),
	}

	out, err := segment.Reshape(in, segment.Options{
		MinWordsPerSentence: 3,
		MaxWordsPerSentence: 8,
		MergeStrategy:       segment.MergeBalanced,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("sentences = %d, want 1: %v", len(out), texts(out))
	}
	if out[0].Text != "a b c d e" {
		t.Errorf("text = %q", out[0].Text)
	}
	if out[0].AbsoluteStart != 0 || out[0].AbsoluteEnd != 2300*time.Millisecond {
		t.Errorf("span = [%v, %v]", out[0].AbsoluteStart, out[0].AbsoluteEnd)
	}
}

func TestReshape_BalancedMergeRespectsWordMaximum(t *testing.T) {
	t.Parallel()
	in := []caption.Sentence{
		sentence(t, 0, "a", "b"),
		sentence(t, 1200*time.Millisecond, "c", "d", "e"),
	}

	// Combining would give five words against a maximum of four, so the
	// undersized first sentence stays alone and is dropped by the minimum.
	out, err := segment.Reshape(in, segment.Options{
		MinWordsPerSentence: 3,
		MaxWordsPerSentence: 4,
		MergeStrategy:       segment.MergeBalanced,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("sentences = %d, want 1: %v", len(out), texts(out))
	}
	if out[0].Text != "c d e" {
		t.Errorf("text = %q", out[0].Text)
	}
}

func TestReshape_BalancedMergeRespectsGap(t *testing.T) {
	t.Parallel()
	in := []caption.Sentence{
		sentence(t, 0, "a", "b"),
		sentence(t, 5*time.Second, "c", "d", "e"),
	}

	// A 4.3s silence exceeds the default gap limit, so no merge happens and
	// the undersized first sentence is dropped.
	out, err := segment.Reshape(in, segment.Options{
		MinWordsPerSentence: 3,
		MaxWordsPerSentence: 8,
		MergeStrategy:       segment.MergeBalanced,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("sentences = %d, want 1: %v", len(out), texts(out))
	}
	if out[0].AbsoluteStart != 5*time.Second {
		t.Errorf("start = %v, want 5s", out[0].AbsoluteStart)
	}
}

// ---- quality filtering --------------------------------------------------------

func TestReshape_QualityFilter(t *testing.T) {
	t.Parallel()
	words := []caption.Word{
		{Text: "Um,", AbsoluteStart: 0, AbsoluteEnd: 200 * time.Millisecond, Confidence: 0.9},
		{Text: "static", AbsoluteStart: 300 * time.Millisecond, AbsoluteEnd: 500 * time.Millisecond, Confidence: 0.2},
		{Text: "hello", AbsoluteStart: 600 * time.Millisecond, AbsoluteEnd: 900 * time.Millisecond, Confidence: 0.9},
		{Text: "world", AbsoluteStart: time.Second, AbsoluteEnd: 1300 * time.Millisecond, Confidence: 0.9},
	}
	s, ok := caption.New(words)
	if !ok {
		t.Fatal("caption.New rejected test words")
	}

	out, err := segment.Reshape([]caption.Sentence{s}, segment.Options{
		MinWordConfidence: 0.5,
		FillerWords:       []string{"um", "uh"},
		MergeStrategy:     segment.MergeConservative,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("sentences = %d, want 1", len(out))
	}
	if out[0].Text != "hello world" {
		t.Errorf("text = %q, want fillers and low-confidence words dropped", out[0].Text)
	}
	if out[0].AbsoluteStart != 600*time.Millisecond {
		t.Errorf("start = %v, want rebuilt from surviving words", out[0].AbsoluteStart)
	}
}

func TestReshape_SentenceOfOnlyFillersDropped(t *testing.T) {
	t.Parallel()
	in := []caption.Sentence{
		sentence(t, 0, "Uh,", "um"),
		sentence(t, 2*time.Second, "real", "content", "here"),
	}

	out, err := segment.Reshape(in, segment.Options{
		FillerWords:   []string{"um", "uh"},
		MergeStrategy: segment.MergeConservative,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("sentences = %d, want 1: %v", len(out), texts(out))
	}
	if out[0].Text != "real content here" {
		t.Errorf("text = %q", out[0].Text)
	}
}

func TestReshape_AllWordsFiltered(t *testing.T) {
	t.Parallel()
	in := []caption.Sentence{sentence(t, 0, "um", "uh")}

	out, err := segment.Reshape(in, segment.Options{FillerWords: []string{"um", "uh"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("sentences = %d, want 0", len(out))
	}
}

// ---- errors -------------------------------------------------------------------

func TestReshape_EmptyInput(t *testing.T) {
	t.Parallel()
	_, err := segment.Reshape(nil, segment.Options{})
	if !errors.Is(err, segment.ErrNoSentences) {
		t.Fatalf("err = %v, want ErrNoSentences", err)
	}
}

func TestReshape_InvalidOptions(t *testing.T) {
	t.Parallel()
	in := []caption.Sentence{sentence(t, 0, "x")}

	cases := []struct {
		name string
		opts segment.Options
	}{
		{"unknown split strategy", segment.Options{SplitStrategy: "diagonal"}},
		{"unknown merge strategy", segment.Options{MergeStrategy: "random"}},
		{"max words below min words", segment.Options{MinWordsPerSentence: 5, MaxWordsPerSentence: 3}},
		{"max duration below min duration", segment.Options{
			MinSentenceDuration: 10 * time.Second,
			MaxSentenceDuration: time.Second,
		}},
		{"max characters below min characters", segment.Options{
			MinCharactersPerSentence: 100,
			MaxCharactersPerSentence: 50,
		}},
		{"confidence out of range", segment.Options{MinWordConfidence: 1.5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := segment.Reshape(in, tc.opts); err == nil {
				t.Error("expected a validation error, got nil")
			}
		})
	}
}

func TestReshapeWithStats_CountsSplitsAndMerges(t *testing.T) {
	t.Parallel()
	in := []caption.Sentence{
		sentence(t, 0, "a", "b", "c", "d", "e", "f"),
		sentence(t, 3*time.Second, "g"),
	}

	opts := segment.Options{
		MaxWordsPerSentence: 4,
		MinWordsPerSentence: 2,
		SplitStrategy:       segment.SplitByWords,
		MergeStrategy:       segment.MergeBalanced,
	}
	out, stats, err := segment.ReshapeWithStats(in, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The six-word sentence is split once; the lone "g" is merged into the
	// undersized trailing chunk.
	if stats.SentencesSplit != 1 {
		t.Errorf("split = %d, want 1", stats.SentencesSplit)
	}
	if stats.SentencesMerged != 1 {
		t.Errorf("merged = %d, want 1", stats.SentencesMerged)
	}

	if len(out) != 2 {
		t.Fatalf("sentences = %d, want 2", len(out))
	}
	if out[0].Text != "a b c d" {
		t.Errorf("sentence 0 = %q", out[0].Text)
	}
	if out[1].Text != "e f g" {
		t.Errorf("sentence 1 = %q", out[1].Text)
	}
}

func TestReshapeWithStats_NoWorkNeeded(t *testing.T) {
	t.Parallel()
	in := []caption.Sentence{sentence(t, 0, "hello", "world")}

	_, stats, err := segment.ReshapeWithStats(in, segment.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.SentencesSplit != 0 || stats.SentencesMerged != 0 {
		t.Errorf("stats = %+v, want zero", stats)
	}
}
