package rewrite

import (
	"encoding/json"
	"fmt"
	"strings"
)

// systemPromptTemplate is the base system prompt. The glossary and any extra
// instructions are appended at call time.
const systemPromptTemplate = `You are a caption correction assistant for timed subtitles.

Your task: fix transcription errors in the provided caption text.

Rules:
- Correct misspelled words, misheard terms, and missing or wrong punctuation.
- Keep the SAME number of lines as the input; never merge or split lines.
- Do NOT reorder, add, or remove words unless a word is clearly a
  transcription artefact.
- Be conservative — if you are not confident a word is wrong, leave it
  unchanged.
- Prefer the canonical spellings from the glossary below when a word appears
  to be a misheard glossary term.
%s
Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "corrected_text": "<full corrected caption text, lines separated by \n>",
  "edits": [
    {"original": "<original word>", "corrected": "<corrected word>", "confidence": <0.0-1.0>}
  ]
}

If no corrections are needed, return an empty edits array and corrected_text equal to the input.`

// modelResponse is the expected JSON structure returned by the model.
type modelResponse struct {
	CorrectedText string `json:"corrected_text"`
	Edits         []struct {
		Original   string  `json:"original"`
		Corrected  string  `json:"corrected"`
		Confidence float64 `json:"confidence"`
	} `json:"edits"`
}

// BuildSystemPrompt formats the shared system prompt for req. Implementations
// use it so every backend speaks the same protocol.
func BuildSystemPrompt(req Request) string {
	var extra strings.Builder
	if len(req.Glossary) > 0 {
		extra.WriteString("\nGlossary:\n")
		for _, g := range req.Glossary {
			extra.WriteString("- ")
			extra.WriteString(g)
			extra.WriteByte('\n')
		}
	}
	if req.Instructions != "" {
		extra.WriteString("\nAdditional instructions:\n")
		extra.WriteString(req.Instructions)
		extra.WriteByte('\n')
	}
	if req.Language != "" {
		extra.WriteString("\nThe captions are in language: ")
		extra.WriteString(req.Language)
		extra.WriteByte('\n')
	}
	return fmt.Sprintf(systemPromptTemplate, extra.String())
}

// ParseModelOutput interprets the raw model output for a rewrite of
// originalText. Markdown code fences are stripped before parsing. An
// unparseable response yields the original text with Fallback set and a nil
// error.
func ParseModelOutput(content, originalText string) *Result {
	cleaned := stripMarkdown(content)

	var r modelResponse
	if err := json.Unmarshal([]byte(cleaned), &r); err != nil {
		return &Result{Text: originalText, Fallback: true}
	}
	if r.CorrectedText == "" {
		return &Result{Text: originalText, Fallback: true}
	}

	edits := make([]Edit, 0, len(r.Edits))
	for _, e := range r.Edits {
		if e.Original == "" || e.Original == e.Corrected {
			continue
		}
		edits = append(edits, Edit{
			Original:   e.Original,
			Corrected:  e.Corrected,
			Confidence: e.Confidence,
		})
	}

	return &Result{Text: r.CorrectedText, Edits: edits}
}

// stripMarkdown removes optional markdown code fences (```json ... ```) that
// some models prepend and append to JSON output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
