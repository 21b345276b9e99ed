// Package report renders structured extracts into human-readable report
// documents.
package report

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/hearsay-ai/hearsay/internal/extract"
)

// analysisSections fixes the section order of analysis reports.
var analysisSections = []section{
	{"summary", "Summary"},
	{"key_topics", "Key Topics"},
	{"important_points", "Important Points"},
	{"decisions_or_conclusions", "Decisions & Conclusions"},
	{"questions_and_answers", "Questions & Answers"},
	{"keywords", "Keywords"},
}

// notesSections fixes the section order of lecture-notes reports.
var notesSections = []section{
	{"topics", "Topics"},
	{"subtopics", "Subtopics"},
	{"key_points", "Key Points"},
	{"definitions", "Definitions"},
	{"examples", "Examples"},
	{"summary", "Summary"},
	{"keywords", "Keywords"},
}

type section struct {
	key     string
	heading string
}

// Renderer writes markdown report documents for structured extracts.
type Renderer struct{}

// NewRenderer creates a markdown renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderAnalysis writes the analysis-mode report for data to path.
func (r *Renderer) RenderAnalysis(data extract.Extract, path string) error {
	title := stringValue(data, "title")
	if title == "" {
		title = "Session Analysis"
	}
	return write(path, render(title, data, analysisSections))
}

// RenderNotes writes the notes-mode report for data to path.
func (r *Renderer) RenderNotes(data extract.Extract, path string) error {
	title := stringValue(data, "lecture_title")
	if title == "" {
		title = "Lecture Notes"
	}
	return write(path, render(title, data, notesSections))
}

func write(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func render(title string, data extract.Extract, sections []section) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", title)

	seen := map[string]bool{"title": true, "lecture_title": true}
	for _, sec := range sections {
		seen[sec.key] = true
		value, ok := data[sec.key]
		if !ok || empty(value) {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n", sec.heading)
		renderValue(&b, value)
	}

	// Extra keys the schema does not know about still get rendered, in a
	// stable order, so nothing the model produced is silently dropped.
	var extras []string
	for key, value := range data {
		if !seen[key] && !empty(value) {
			extras = append(extras, key)
		}
	}
	sort.Strings(extras)
	for _, key := range extras {
		fmt.Fprintf(&b, "\n## %s\n\n", headingFor(key))
		renderValue(&b, data[key])
	}

	return b.String()
}

func renderValue(b *strings.Builder, value any) {
	switch v := value.(type) {
	case string:
		fmt.Fprintf(b, "%s\n", v)
	case []any:
		for _, item := range v {
			switch it := item.(type) {
			case map[string]any:
				// Q&A style entries ({"question": ..., "answer": ...}) and
				// similar objects render as nested bullets.
				keys := make([]string, 0, len(it))
				for k := range it {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(b, "- **%s**: %v\n", headingFor(k), it[k])
				}
			default:
				fmt.Fprintf(b, "- %v\n", item)
			}
		}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(b, "- **%s**: %v\n", headingFor(k), v[k])
		}
	default:
		fmt.Fprintf(b, "%v\n", v)
	}
}

func headingFor(key string) string {
	words := strings.Split(strings.ReplaceAll(key, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func stringValue(data extract.Extract, key string) string {
	if s, ok := data[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func empty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	}
	return false
}
