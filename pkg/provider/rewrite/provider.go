// Package rewrite defines the Provider interface for language-model-backed
// caption text correction.
//
// A rewrite provider receives the current caption text — one sentence per
// line — and returns a corrected version with the same line structure. The
// model is instructed (via a conservative system prompt) to fix transcription
// errors, misheard terms, and punctuation while leaving the line count and
// word order intact, so the realignment engine can walk corrected and
// original words positionally.
//
// When the model response cannot be parsed, providers return the original
// text unchanged rather than surfacing an error. The pipeline must continue;
// an unusable rewrite is a no-op, not a failure.
package rewrite

import "context"

// Request carries the caption text to correct plus recognition context.
type Request struct {
	// Text is the caption text, one sentence per line.
	Text string

	// Language is the BCP-47 language tag of the captions, when known.
	Language string

	// Glossary lists canonical spellings of domain terms (names, products,
	// jargon) the model should prefer when correcting.
	Glossary []string

	// Instructions holds optional extra guidance appended to the system
	// prompt, e.g. house style rules.
	Instructions string
}

// Edit captures a single word-level substitution reported by the model.
type Edit struct {
	// Original is the word as it appeared in the input text.
	Original string

	// Corrected is the replacement suggested by the model.
	Corrected string

	// Confidence is the model's reported confidence for this substitution
	// (0.0–1.0).
	Confidence float64
}

// Result is the outcome of a rewrite call.
type Result struct {
	// Text is the corrected caption text, one sentence per line.
	Text string

	// Edits itemises the substitutions the model reported. Empty when the
	// model made no changes or reported none.
	Edits []Edit

	// Fallback is true when the model response was unusable and Text is the
	// original input unchanged.
	Fallback bool
}

// Provider is the abstraction over any LLM-backed caption corrector.
type Provider interface {
	// Rewrite submits req and returns the corrected text. Implementations
	// degrade gracefully: an unparseable model response yields the original
	// text with Fallback set, not an error. Context cancellation and
	// transport failures are returned as errors.
	Rewrite(ctx context.Context, req Request) (*Result, error)
}
