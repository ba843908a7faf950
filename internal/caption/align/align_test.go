package align

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/skein-media/retime/internal/caption"
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

// ---- classifier -------------------------------------------------------------

func TestDetectComplexity(t *testing.T) {
	t.Parallel()
	cases := []struct {
		original, corrected string
		wantClass           Complexity
		minConf, maxConf    float64
	}{
		{"hello", "hello", ComplexitySimple, 1, 1},
		{"Hello,", "hello", ComplexitySimple, 1, 1}, // case + punctuation drift
		{"wrold", "world", ComplexitySimple, 0.8, 0.8},
		{"cat", "catastrophe", ComplexityComplex, 0, 0.5},
		{"one", "one two", ComplexityMerge, 0.3, 0.3},
		{"one two", "onetwo", ComplexitySplit, 0.3, 0.3},
	}
	for _, tc := range cases {
		cls, conf := detectComplexity(tc.original, tc.corrected)
		if cls != tc.wantClass {
			t.Errorf("detectComplexity(%q, %q) class = %q, want %q",
				tc.original, tc.corrected, cls, tc.wantClass)
		}
		if conf < tc.minConf || conf > tc.maxConf {
			t.Errorf("detectComplexity(%q, %q) conf = %v, want in [%v, %v]",
				tc.original, tc.corrected, conf, tc.minConf, tc.maxConf)
		}
	}
}

func TestSimilarity_TranspositionScoresHigh(t *testing.T) {
	t.Parallel()
	// "wrold" -> "world" is one transposition: 1 - 1/5 = 0.8.
	if got := similarity("wrold", "world"); got != 0.8 {
		t.Errorf("similarity = %v, want 0.8", got)
	}
}

// ---- alignment walk ---------------------------------------------------------

func TestAlign_TypoReplacedTimingKept(t *testing.T) {
	t.Parallel()
	original := []caption.Sentence{sentence(t, 0, "the", "wrold", "is", "big")}

	a := New()
	res, err := a.AlignResult(original, "the world is big")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Sentences) != 1 {
		t.Fatalf("sentences = %d, want 1", len(res.Sentences))
	}
	s := res.Sentences[0]
	if s.Text != "the world is big" {
		t.Errorf("text = %q", s.Text)
	}
	// Timing comes from the original words, not the corrected text.
	if s.Words[1].AbsoluteStart != 400*time.Millisecond {
		t.Errorf("word 1 start = %v, want 400ms", s.Words[1].AbsoluteStart)
	}
	if s.Words[1].AbsoluteEnd != 700*time.Millisecond {
		t.Errorf("word 1 end = %v, want 700ms", s.Words[1].AbsoluteEnd)
	}
	if s.Words[1].Confidence != 0.9 {
		t.Errorf("word 1 confidence = %v, want carried over", s.Words[1].Confidence)
	}

	if res.Stats.Replaced != 4 {
		t.Errorf("replaced = %d, want 4 (three identical, one typo fix)", res.Stats.Replaced)
	}
	if res.Stats.Kept != 0 {
		t.Errorf("kept = %d, want 0", res.Stats.Kept)
	}
}

func TestAlign_DivergentWordKept(t *testing.T) {
	t.Parallel()
	original := []caption.Sentence{sentence(t, 0, "cat", "sat")}

	a := New()
	res, err := a.AlignResult(original, "catastrophe sat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// "cat" -> "catastrophe" is complex with low similarity: keep original.
	if got := res.Sentences[0].Words[0].Text; got != "cat" {
		t.Errorf("word 0 = %q, want original kept", got)
	}
	if res.Stats.Kept != 1 {
		t.Errorf("kept = %d, want 1", res.Stats.Kept)
	}
	if res.Stats.Replaced != 1 {
		t.Errorf("replaced = %d, want 1", res.Stats.Replaced)
	}
}

func TestAlign_LineStructureFollowsCorrectedText(t *testing.T) {
	t.Parallel()
	// One long original sentence, corrected text reshaped into two lines.
	original := []caption.Sentence{sentence(t, 0, "a", "b", "c", "d")}

	a := New()
	res, err := a.AlignResult(original, "a b\nc d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Sentences) != 2 {
		t.Fatalf("sentences = %d, want 2 (one per corrected line)", len(res.Sentences))
	}
	// Second sentence starts where word "c" started.
	if res.Sentences[1].AbsoluteStart != 800*time.Millisecond {
		t.Errorf("sentence 1 start = %v, want 800ms", res.Sentences[1].AbsoluteStart)
	}
}

func TestAlign_ExtraTokensSkipped(t *testing.T) {
	t.Parallel()
	original := []caption.Sentence{sentence(t, 0, "one", "two")}

	a := New()
	res, err := a.AlignResult(original, "one two three four")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stats.SkippedTokens != 2 {
		t.Errorf("skipped = %d, want 2", res.Stats.SkippedTokens)
	}
	// No timing is fabricated: output carries exactly the original two words.
	if got := len(res.Sentences[0].Words); got != 2 {
		t.Errorf("words = %d, want 2", got)
	}
}

func TestAlign_TrailingOriginalWordsUnconsumed(t *testing.T) {
	t.Parallel()
	original := []caption.Sentence{sentence(t, 0, "one", "two", "three", "four")}

	a := New()
	res, err := a.AlignResult(original, "one two")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stats.UnconsumedWords != 2 {
		t.Errorf("unconsumed = %d, want 2", res.Stats.UnconsumedWords)
	}
	if len(res.Sentences[0].Words) != 2 {
		t.Errorf("words = %d, want 2", len(res.Sentences[0].Words))
	}
}

func TestAlign_TrailingLineBeyondWordsDropped(t *testing.T) {
	t.Parallel()
	original := []caption.Sentence{sentence(t, 0, "one", "two")}

	a := New()
	res, err := a.AlignResult(original, "one two\nextra line")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The second corrected line starts after the original words run out: its
	// tokens are skipped and the line is dropped, never emitted empty.
	if len(res.Sentences) != 1 {
		t.Fatalf("sentences = %d, want 1", len(res.Sentences))
	}
	if res.Stats.DroppedLines != 1 {
		t.Errorf("dropped lines = %d, want 1", res.Stats.DroppedLines)
	}
	if res.Stats.SkippedTokens != 2 {
		t.Errorf("skipped = %d, want 2", res.Stats.SkippedTokens)
	}
	if len(res.Lines) != 1 {
		t.Errorf("line details = %d, want 1 (dropped line excluded)", len(res.Lines))
	}
}

func TestAlign_IssueLoggingReportsDecisions(t *testing.T) {
	t.Parallel()
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	original := []caption.Sentence{sentence(t, 0, "cat")}
	a := New(WithIssueLogging(logger))
	if _, err := a.AlignResult(original, "catastrophe extra"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "kept original word") {
		t.Errorf("keep decision not logged: %q", out)
	}
	if !strings.Contains(out, "no original word left") {
		t.Errorf("skip decision not logged: %q", out)
	}
}

func TestAlign_MarkupStrippedBeforeWalk(t *testing.T) {
	t.Parallel()
	original := []caption.Sentence{sentence(t, 0, "hello", "world")}

	a := New()
	res, err := a.AlignResult(original, "[Intro]\nhello (cough) world\n/ editor note")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Sentences) != 1 {
		t.Fatalf("sentences = %d, want 1", len(res.Sentences))
	}
	if res.Sentences[0].Text != "hello world" {
		t.Errorf("text = %q", res.Sentences[0].Text)
	}
	if res.CleanedText != "hello world" {
		t.Errorf("cleaned = %q", res.CleanedText)
	}
}

func TestAlign_FuzzyOnlyMode(t *testing.T) {
	t.Parallel()
	original := []caption.Sentence{sentence(t, 0, "wrold")}

	// Plain similarity 0.8 meets the default 0.8 fuzzy threshold.
	a := New(WithIntelligentReplacement(false))
	res, err := a.AlignResult(original, "world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Sentences[0].Words[0].Text != "world" {
		t.Errorf("word = %q, want replaced", res.Sentences[0].Words[0].Text)
	}

	// Raising the threshold flips the decision.
	strict := New(WithIntelligentReplacement(false), WithFuzzyThreshold(0.9))
	res, err = strict.AlignResult(original, "world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Sentences[0].Words[0].Text != "wrold" {
		t.Errorf("word = %q, want original kept", res.Sentences[0].Words[0].Text)
	}
}

func TestAlign_EmptyInputs(t *testing.T) {
	t.Parallel()
	a := New()

	_, err := a.AlignResult(nil, "text")
	if !errors.Is(err, ErrNoCaptions) {
		t.Errorf("err = %v, want ErrNoCaptions", err)
	}

	original := []caption.Sentence{sentence(t, 0, "x")}
	_, err = a.AlignResult(original, "   ")
	if !errors.Is(err, ErrEmptyCorrectedText) {
		t.Errorf("err = %v, want ErrEmptyCorrectedText", err)
	}

	// Text that cleans to nothing is equally empty.
	_, err = a.AlignResult(original, "(noise)\n[music]")
	if !errors.Is(err, ErrEmptyCorrectedText) {
		t.Errorf("err = %v, want ErrEmptyCorrectedText after cleaning", err)
	}
}

func TestAlign_LineDetails(t *testing.T) {
	t.Parallel()
	original := []caption.Sentence{sentence(t, 0, "helo", "world")}

	a := New()
	res, err := a.AlignResult(original, "hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Lines) != 1 {
		t.Fatalf("lines = %d, want 1", len(res.Lines))
	}
	if res.Lines[0].Corrected != "hello world" || res.Lines[0].Original != "helo world" {
		t.Errorf("line detail = %+v", res.Lines[0])
	}
}
