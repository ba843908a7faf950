package segment

import (
	"errors"
	"fmt"
	"time"
)

// SplitStrategy selects how oversized sentences are cut.
type SplitStrategy string

const (
	// SplitByWords chunks at a fixed word count.
	SplitByWords SplitStrategy = "by-words"

	// SplitByDuration closes a chunk once adding the next word would exceed
	// the duration limit.
	SplitByDuration SplitStrategy = "by-duration"

	// SplitByPunctuation prefers to close a chunk exactly after a word
	// ending in sentence punctuation, force-splitting at the word boundary
	// when limits are exceeded with no punctuation in reach.
	SplitByPunctuation SplitStrategy = "by-punctuation"

	// SplitSmart extends by-punctuation with a backward scan for the most
	// recent punctuation-terminated word and a short lookahead when only the
	// character limit is exceeded. Default.
	SplitSmart SplitStrategy = "smart"
)

// IsValid reports whether s is a recognised split strategy.
func (s SplitStrategy) IsValid() bool {
	switch s {
	case SplitByWords, SplitByDuration, SplitByPunctuation, SplitSmart:
		return true
	}
	return false
}

// MergeStrategy selects how undersized adjacent sentences are combined.
type MergeStrategy string

const (
	// MergeConservative never merges.
	MergeConservative MergeStrategy = "conservative"

	// MergeBalanced merges while the combined sentence stays within the
	// configured maxima (with tolerance) and the gap stays small. Default.
	MergeBalanced MergeStrategy = "balanced"

	// MergeAggressive merges every sentence into the running group
	// regardless of resulting size.
	MergeAggressive MergeStrategy = "aggressive"
)

// IsValid reports whether m is a recognised merge strategy.
func (m MergeStrategy) IsValid() bool {
	switch m {
	case MergeConservative, MergeBalanced, MergeAggressive:
		return true
	}
	return false
}

// limitTolerance is the slack applied to character and merge limits before a
// split is forced or a merge refused (20 %).
const limitTolerance = 1.2

// Defaults applied by [Options.withDefaults] when the corresponding field is
// zero.
const (
	DefaultMaxWordsPerSentence      = 12
	DefaultMaxCharactersPerSentence = 84
	DefaultMaxSentenceDuration      = 6 * time.Second
	DefaultMaxGapBetween            = time.Second
)

// Options configures one [Reshape] pass. The zero value gets sane defaults
// for maxima and strategies; minima and quality filters stay disabled until
// set.
type Options struct {
	// Split limits. A sentence exceeding any of these is split.
	MaxWordsPerSentence      int
	MaxSentenceDuration      time.Duration
	MaxCharactersPerSentence int

	// Minima. Zero disables the corresponding check.
	MinWordsPerSentence      int
	MinSentenceDuration      time.Duration
	MinCharactersPerSentence int

	SplitStrategy SplitStrategy
	MergeStrategy MergeStrategy

	// MaxGapBetween is the largest silence between two sentences that
	// balanced merging will bridge.
	MaxGapBetween time.Duration

	// MinWordConfidence drops words below this recognition confidence
	// before splitting. Zero disables the filter.
	MinWordConfidence float64

	// FillerWords are dropped (case- and punctuation-insensitively) before
	// splitting. Nil disables the filter.
	FillerWords []string
}

// withDefaults returns a copy of o with zero-valued maxima and strategies
// replaced by defaults.
func (o Options) withDefaults() Options {
	if o.MaxWordsPerSentence == 0 {
		o.MaxWordsPerSentence = DefaultMaxWordsPerSentence
	}
	if o.MaxSentenceDuration == 0 {
		o.MaxSentenceDuration = DefaultMaxSentenceDuration
	}
	if o.MaxCharactersPerSentence == 0 {
		o.MaxCharactersPerSentence = DefaultMaxCharactersPerSentence
	}
	if o.SplitStrategy == "" {
		o.SplitStrategy = SplitSmart
	}
	if o.MergeStrategy == "" {
		o.MergeStrategy = MergeBalanced
	}
	if o.MaxGapBetween == 0 {
		o.MaxGapBetween = DefaultMaxGapBetween
	}
	return o
}

// validate checks that o is internally coherent. Returns a joined error
// listing every violation.
func (o Options) validate() error {
	var errs []error
	if !o.SplitStrategy.IsValid() {
		errs = append(errs, fmt.Errorf("segment: split strategy %q is invalid", o.SplitStrategy))
	}
	if !o.MergeStrategy.IsValid() {
		errs = append(errs, fmt.Errorf("segment: merge strategy %q is invalid", o.MergeStrategy))
	}
	if o.MinWordsPerSentence > 0 && o.MaxWordsPerSentence < o.MinWordsPerSentence {
		errs = append(errs, fmt.Errorf("segment: max words %d is smaller than min words %d",
			o.MaxWordsPerSentence, o.MinWordsPerSentence))
	}
	if o.MinSentenceDuration > 0 && o.MaxSentenceDuration < o.MinSentenceDuration {
		errs = append(errs, fmt.Errorf("segment: max duration %s is smaller than min duration %s",
			o.MaxSentenceDuration, o.MinSentenceDuration))
	}
	if o.MinCharactersPerSentence > 0 && o.MaxCharactersPerSentence < o.MinCharactersPerSentence {
		errs = append(errs, fmt.Errorf("segment: max characters %d is smaller than min characters %d",
			o.MaxCharactersPerSentence, o.MinCharactersPerSentence))
	}
	if o.MinWordConfidence < 0 || o.MinWordConfidence > 1 {
		errs = append(errs, fmt.Errorf("segment: min word confidence %.2f is out of range [0, 1]", o.MinWordConfidence))
	}
	return errors.Join(errs...)
}
