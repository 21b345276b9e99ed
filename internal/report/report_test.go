package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearsay-ai/hearsay/internal/extract"
)

func renderAnalysisToString(t *testing.T, data extract.Extract) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.md")
	require.NoError(t, NewRenderer().RenderAnalysis(data, path))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(content)
}

func TestRenderAnalysis(t *testing.T) {
	got := renderAnalysisToString(t, extract.Extract{
		"title":            "Sprint Planning",
		"summary":          "The team planned the next sprint.",
		"key_topics":       []any{"backlog", "estimates"},
		"important_points": []any{"cut scope on search"},
		"questions_and_answers": []any{
			map[string]any{"question": "When is the demo?", "answer": "Thursday."},
		},
	})

	assert.Contains(t, got, "# Sprint Planning")
	assert.Contains(t, got, "## Summary")
	assert.Contains(t, got, "The team planned the next sprint.")
	assert.Contains(t, got, "- backlog")
	assert.Contains(t, got, "- **Question**: When is the demo?")
	assert.Contains(t, got, "- **Answer**: Thursday.")
	// Empty sections are omitted.
	assert.NotContains(t, got, "## Keywords")
}

func TestRenderAnalysisDefaultTitle(t *testing.T) {
	got := renderAnalysisToString(t, extract.Extract{})
	assert.Contains(t, got, "# Session Analysis")
}

func TestRenderAnalysisExtraKeys(t *testing.T) {
	got := renderAnalysisToString(t, extract.Extract{
		"action_items": []any{"follow up with vendor"},
	})

	assert.Contains(t, got, "## Action Items")
	assert.Contains(t, got, "- follow up with vendor")
}

func TestRenderNotes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	err := NewRenderer().RenderNotes(extract.Extract{
		"lecture_title": "Sorting Algorithms",
		"topics":        []any{"quicksort", "mergesort"},
		"definitions":   []any{"stable sort: preserves equal-element order"},
		"summary":       "Comparison sorts and their bounds.",
	}, path)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	got := string(content)

	assert.Contains(t, got, "# Sorting Algorithms")
	assert.Contains(t, got, "## Topics")
	assert.Contains(t, got, "- quicksort")
	assert.Contains(t, got, "## Definitions")
	assert.Contains(t, got, "## Summary")
}

func TestRenderNotesDefaultTitle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, NewRenderer().RenderNotes(extract.Extract{}, path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "# Lecture Notes")
}

func TestRenderWriteFailure(t *testing.T) {
	err := NewRenderer().RenderAnalysis(extract.Extract{}, filepath.Join(t.TempDir(), "missing", "report.md"))
	assert.Error(t, err)
}
