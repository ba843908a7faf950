// Package normalize strips directorial markup from human-supplied correction
// text before it reaches the aligner.
//
// Correction text arrives from an editor (or an AI rewrite pass) and routinely
// carries markup that must not be aligned against the audio: parenthetical
// asides and section headers, comment lines, and project-specific patterns.
// [Clean] removes them in a fixed order — parentheticals, comment lines,
// custom patterns, empty lines, whitespace — and is idempotent under a fixed
// option set.
package normalize

import (
	"regexp"
	"strings"
)

// DefaultCommentMarker is the line prefix that marks a comment line when
// [Options.RemoveComments] is enabled and no marker is configured.
const DefaultCommentMarker = "/"

// groupPattern matches one (...) or [...] group, non-greedy, single line.
var groupPattern = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)

// wsRun matches runs of spaces and tabs for whitespace collapsing.
var wsRun = regexp.MustCompile(`[ \t]+`)

// Options controls which transformations [Clean] applies. Every toggle is
// independent; the zero value performs no transformation at all.
type Options struct {
	// RemoveParentheses strips (...) and [...] groups. A line that consists
	// solely of one such group after trimming (e.g. a section header) is
	// dropped entirely rather than left blank.
	RemoveParentheses bool

	// RemoveComments drops any line whose trimmed content starts with
	// CommentMarker.
	RemoveComments bool

	// CommentMarker is the prefix identifying comment lines. Defaults to
	// [DefaultCommentMarker] when empty and RemoveComments is set.
	CommentMarker string

	// RemovePatterns is an ordered list of patterns applied as global
	// replacements with the empty string.
	RemovePatterns []*regexp.Regexp

	// RemoveEmptyLines drops lines that are blank after the removals above.
	RemoveEmptyLines bool

	// PreserveWhitespace, when false, collapses runs of spaces and tabs to a
	// single space and trims each line.
	PreserveWhitespace bool
}

// Clean applies the configured transformations to text and returns the
// result. Pure function: no side effects, no retained state. Returns ""
// only when the input was empty or every line was stripped.
func Clean(text string, opts Options) string {
	if text == "" {
		return ""
	}

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))

	marker := opts.CommentMarker
	if marker == "" {
		marker = DefaultCommentMarker
	}

	for _, line := range lines {
		if opts.RemoveParentheses {
			trimmed := strings.TrimSpace(line)
			if trimmed != "" && isSoleGroup(trimmed) {
				// Whole line is one markup group — a header, not a caption.
				continue
			}
			line = groupPattern.ReplaceAllString(line, "")
		}

		if opts.RemoveComments && strings.HasPrefix(strings.TrimSpace(line), marker) {
			continue
		}

		for _, p := range opts.RemovePatterns {
			if p == nil {
				continue
			}
			line = p.ReplaceAllString(line, "")
		}

		if opts.RemoveEmptyLines && strings.TrimSpace(line) == "" {
			continue
		}

		if !opts.PreserveWhitespace {
			line = strings.TrimSpace(wsRun.ReplaceAllString(line, " "))
		}

		out = append(out, line)
	}

	return strings.Join(out, "\n")
}

// isSoleGroup reports whether trimmed consists of exactly one bracketed or
// parenthesized group and nothing else.
func isSoleGroup(trimmed string) bool {
	loc := groupPattern.FindStringIndex(trimmed)
	return loc != nil && loc[0] == 0 && loc[1] == len(trimmed)
}
