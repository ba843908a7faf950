// Package align reconstructs timed captions from corrected text.
//
// Given the original time-stamped word stream and a human-edited (or
// AI-rewritten) version of the same text, the [Aligner] produces a new
// sentence list whose sentence and word boundaries follow the corrected text
// while the audio timing of the original words is preserved. The walk is
// strictly 1:1 positional: each corrected token consumes exactly one original
// word, a classifier decides whether the corrected text is trusted enough to
// replace the original word's text, and timing is never fabricated. When
// confidence is low the engine keeps the original word — stale text with
// correct timing beats corrected text with invented timing.
//
// The engine is a pure transform over in-memory slices: no I/O, no shared
// state, safe to call concurrently.
package align

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/skein-media/retime/internal/caption"
	"github.com/skein-media/retime/internal/caption/normalize"
)

const (
	defaultComplexityThreshold = 0.6
	defaultFuzzyThreshold      = 0.8
)

// ErrEmptyCorrectedText is returned when the corrected text is empty or is
// fully stripped by cleaning.
var ErrEmptyCorrectedText = errors.New("align: corrected text is empty")

// ErrNoCaptions is returned when the original sentence list is empty.
var ErrNoCaptions = errors.New("align: original captions are empty")

// Option is a functional option for configuring an [Aligner].
type Option func(*Aligner)

// WithComplexityThreshold sets the minimum classifier confidence required to
// accept a non-simple replacement. Default: 0.6.
func WithComplexityThreshold(threshold float64) Option {
	return func(a *Aligner) {
		a.complexityThreshold = threshold
	}
}

// WithFuzzyThreshold sets the plain similarity threshold used when
// intelligent replacement is disabled. Default: 0.8.
func WithFuzzyThreshold(threshold float64) Option {
	return func(a *Aligner) {
		a.fuzzyThreshold = threshold
	}
}

// WithIntelligentReplacement toggles the complexity classifier. When false,
// the aligner falls back to plain similarity-threshold matching. Default: on.
func WithIntelligentReplacement(enabled bool) Option {
	return func(a *Aligner) {
		a.intelligent = enabled
	}
}

// WithCleanOptions overrides the normalization applied to corrected text
// before alignment. The default strips parentheticals, comment lines, and
// empty lines, and collapses whitespace.
func WithCleanOptions(opts normalize.Options) Option {
	return func(a *Aligner) {
		a.cleanOpts = opts
	}
}

// WithIssueLogging enables diagnostic logging of every fallback and skip
// decision. Advisory only — never changes control flow.
func WithIssueLogging(logger *slog.Logger) Option {
	return func(a *Aligner) {
		a.logger = logger
	}
}

// Aligner realigns caption timing to corrected text. Read-only after
// construction; safe for concurrent use.
type Aligner struct {
	complexityThreshold float64
	fuzzyThreshold      float64
	intelligent         bool
	cleanOpts           normalize.Options
	logger              *slog.Logger
}

// New returns an [Aligner] configured with the supplied options.
func New(opts ...Option) *Aligner {
	a := &Aligner{
		complexityThreshold: defaultComplexityThreshold,
		fuzzyThreshold:      defaultFuzzyThreshold,
		intelligent:         true,
		cleanOpts: normalize.Options{
			RemoveParentheses: true,
			RemoveComments:    true,
			RemoveEmptyLines:  true,
		},
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Stats itemises the decisions taken during one alignment pass.
type Stats struct {
	// Replaced counts tokens whose corrected text was accepted.
	Replaced int

	// Kept counts tokens rejected by the classifier where the original
	// word's text was retained.
	Kept int

	// SkippedTokens counts corrected tokens with no remaining original word
	// to pair against. No timing is fabricated for them.
	SkippedTokens int

	// DroppedLines counts corrected lines that produced zero aligned words.
	DroppedLines int

	// UnconsumedWords counts trailing original words never paired with a
	// corrected token. They do not appear in the output.
	UnconsumedWords int
}

// LineDetail pairs one corrected line with the original text its words
// carried before alignment.
type LineDetail struct {
	Corrected string
	Original  string
}

// Result is the full output of [Aligner.AlignResult].
type Result struct {
	Sentences []caption.Sentence

	// RawText and CleanedText are the corrected text before and after
	// normalization.
	RawText     string
	CleanedText string

	Stats Stats

	// Lines records the per-sentence corrected/original text pairs, in
	// output order (dropped lines excluded).
	Lines []LineDetail
}

// Align realigns original against correctedText and returns the new sentence
// list. See [Aligner.AlignResult] for the metadata-carrying variant.
func (a *Aligner) Align(original []caption.Sentence, correctedText string) ([]caption.Sentence, error) {
	res, err := a.AlignResult(original, correctedText)
	if err != nil {
		return nil, err
	}
	return res.Sentences, nil
}

// AlignResult realigns original against correctedText.
//
// correctedText is cleaned first, then split on newlines; each non-empty line
// becomes one output sentence. The output sentence count is determined solely
// by the cleaned line count — independent of the original sentence count.
// Lines beyond the available original words lose their tokens (skipped, never
// fabricated) and are dropped when no word aligns; trailing original words
// beyond the corrected text are left unconsumed.
//
// Returns [ErrNoCaptions] or [ErrEmptyCorrectedText] for malformed input.
// All other anomalies degrade gracefully and are reported in [Result.Stats].
func (a *Aligner) AlignResult(original []caption.Sentence, correctedText string) (*Result, error) {
	if len(original) == 0 {
		return nil, ErrNoCaptions
	}
	if strings.TrimSpace(correctedText) == "" {
		return nil, ErrEmptyCorrectedText
	}

	cleaned := normalize.Clean(correctedText, a.cleanOpts)
	if strings.TrimSpace(cleaned) == "" {
		return nil, ErrEmptyCorrectedText
	}

	allWords := caption.Flatten(original)
	res := &Result{
		RawText:     correctedText,
		CleanedText: cleaned,
	}

	cursor := 0
	for _, line := range strings.Split(cleaned, "\n") {
		tokens := strings.Fields(line)
		if len(tokens) == 0 {
			continue
		}

		lineWords := make([]caption.Word, 0, len(tokens))
		origTexts := make([]string, 0, len(tokens))

		for _, token := range tokens {
			if cursor >= len(allWords) {
				res.Stats.SkippedTokens++
				a.logIssue("corrected token has no original word left", "token", token)
				continue
			}

			ow := allWords[cursor]
			cursor++
			origTexts = append(origTexts, ow.Text)

			word := ow // copy; timing and confidence always come from the original
			if a.replaceText(ow.Text, token) {
				word.Text = token
				res.Stats.Replaced++
			} else {
				res.Stats.Kept++
				a.logIssue("kept original word over corrected token",
					"original", ow.Text, "token", token)
			}
			lineWords = append(lineWords, word)
		}

		s, ok := caption.New(lineWords)
		if !ok {
			res.Stats.DroppedLines++
			a.logIssue("corrected line produced no aligned words", "line", line)
			continue
		}
		res.Sentences = append(res.Sentences, s)
		res.Lines = append(res.Lines, LineDetail{
			Corrected: strings.Join(tokens, " "),
			Original:  strings.Join(origTexts, " "),
		})
	}

	res.Stats.UnconsumedWords = len(allWords) - cursor
	if res.Stats.UnconsumedWords > 0 {
		a.logIssue("original words left unconsumed", "count", res.Stats.UnconsumedWords)
	}

	return res, nil
}

// replaceText decides whether the corrected token's text should replace the
// original word's text. Timing is unaffected either way.
func (a *Aligner) replaceText(original, token string) bool {
	if !a.intelligent {
		return similarity(original, token) >= a.fuzzyThreshold
	}

	cls, conf := detectComplexity(original, token)
	switch cls {
	case ComplexitySimple:
		return true
	default:
		// merge, split, and complex are accepted only above the threshold.
		return conf >= a.complexityThreshold
	}
}

func (a *Aligner) logIssue(msg string, args ...any) {
	if a.logger == nil {
		return
	}
	a.logger.Debug(msg, args...)
}
