// Package extract turns raw transcripts into structured extracts by prompting
// a generation collaborator and normalizing its JSON output.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Extract is a parsed structured extract. The key set depends on the mode:
// analysis mode uses title/summary/key_topics/important_points/
// decisions_or_conclusions/questions_and_answers/keywords, notes mode uses
// the lecture-notes schema. Beyond key normalization the payload is opaque.
type Extract map[string]any

// Generator produces model output from a system instruction and a prompt.
type Generator interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Analyzer runs structured extraction against a generation collaborator.
type Analyzer struct {
	generator Generator
}

// NewAnalyzer creates an analyzer with an explicitly injected generator.
func NewAnalyzer(generator Generator) *Analyzer {
	return &Analyzer{generator: generator}
}

// Analyze extracts meeting-analysis structure from a transcript. Keys of the
// resulting object are normalized (lower-cased, spaces to underscores).
func (a *Analyzer) Analyze(ctx context.Context, transcript string) (Extract, error) {
	raw, err := a.generator.Complete(ctx, "", analysisPrompt(transcript))
	if err != nil {
		return nil, fmt.Errorf("analysis generation: %w", err)
	}

	parsed, err := parseObject(raw)
	if err != nil {
		return nil, fmt.Errorf("analysis parse: %w", err)
	}
	return NormalizeKeys(parsed), nil
}

// Notes extracts lecture-notes structure from a transcript.
func (a *Analyzer) Notes(ctx context.Context, transcript string) (Extract, error) {
	raw, err := a.generator.Complete(ctx, "", notesPrompt(transcript))
	if err != nil {
		return nil, fmt.Errorf("notes generation: %w", err)
	}

	parsed, err := parseObject(raw)
	if err != nil {
		return nil, fmt.Errorf("notes parse: %w", err)
	}
	return parsed, nil
}

func parseObject(raw string) (Extract, error) {
	cleaned := CleanJSONOutput(raw)

	var parsed Extract
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, err
	}
	return parsed, nil
}

// CleanJSONOutput strips markdown code fences and isolates the first balanced
// {...} object in the model output. Models wrap JSON in fences and prose
// often enough that parsing the raw response directly is unreliable.
func CleanJSONOutput(raw string) string {
	raw = strings.ReplaceAll(raw, "```json", "")
	raw = strings.ReplaceAll(raw, "```", "")
	raw = strings.TrimSpace(raw)

	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return raw
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1]
			}
		}
	}
	return raw[start:]
}

// NormalizeKeys lower-cases top-level keys and replaces spaces with
// underscores so downstream consumers see one stable key set.
func NormalizeKeys(data Extract) Extract {
	normalized := make(Extract, len(data))
	for key, value := range data {
		nk := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), " ", "_")
		normalized[nk] = value
	}
	return normalized
}

func analysisPrompt(transcript string) string {
	return fmt.Sprintf(`
You are an AI that extracts meaningful and structured information from transcripts.

VERY IMPORTANT RULES:
- NEVER censor, redact, or use black boxes.
- NEVER invent facts. If something is not present say "Not clearly heard".
- Preserve punctuation and numbers as-is.
- Return ONLY valid JSON. No markdown fences, no extra text.

Transcript:
%s

Return EXACT JSON with these keys only:
{
  "title": "",
  "summary": "",
  "key_topics": [],
  "important_points": [],
  "decisions_or_conclusions": [],
  "questions_and_answers": [],
  "keywords": []
}
`, transcript)
}

func notesPrompt(transcript string) string {
	return fmt.Sprintf(`
You are an AI that generates structured lecture notes from a transcript.

IMPORTANT RULES:
- NEVER censor or redact text.
- If unclear, write "Not clearly heard".
- Do NOT remove or hide information.
- Return ONLY valid JSON. No markdown fences or extra commentary.

Transcript:
%s

Return EXACT JSON:
{
  "lecture_title": "",
  "topics": [],
  "subtopics": [],
  "key_points": [],
  "definitions": [],
  "examples": [],
  "summary": "",
  "keywords": []
}
`, transcript)
}
