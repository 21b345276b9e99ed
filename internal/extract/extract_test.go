package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	response   string
	err        error
	lastPrompt string
}

func (f *fakeGenerator) Complete(_ context.Context, _, prompt string) (string, error) {
	f.lastPrompt = prompt
	return f.response, f.err
}

func TestCleanJSONOutput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "plain object untouched",
			raw:  `{"title": "x"}`,
			want: `{"title": "x"}`,
		},
		{
			name: "json fences stripped",
			raw:  "```json\n{\"title\": \"x\"}\n```",
			want: `{"title": "x"}`,
		},
		{
			name: "bare fences stripped",
			raw:  "```\n{\"title\": \"x\"}\n```",
			want: `{"title": "x"}`,
		},
		{
			name: "leading prose dropped",
			raw:  "Here is the extraction:\n{\"title\": \"x\"}",
			want: `{"title": "x"}`,
		},
		{
			name: "trailing prose dropped",
			raw:  `{"title": "x"} I hope that helps!`,
			want: `{"title": "x"}`,
		},
		{
			name: "nested braces balanced",
			raw:  `{"a": {"b": 1}} trailing`,
			want: `{"a": {"b": 1}}`,
		},
		{
			name: "braces inside strings ignored",
			raw:  `{"a": "close } brace"} extra`,
			want: `{"a": "close } brace"}`,
		},
		{
			name: "no object returns input",
			raw:  "no json here",
			want: "no json here",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanJSONOutput(tt.raw))
		})
	}
}

func TestNormalizeKeys(t *testing.T) {
	got := NormalizeKeys(Extract{
		"Title":                    "t",
		"Key Topics":               []any{"a"},
		" Decisions or Conclusions": []any{},
		"keywords":                 []any{"k"},
	})

	assert.Equal(t, Extract{
		"title":                    "t",
		"key_topics":               []any{"a"},
		"decisions_or_conclusions": []any{},
		"keywords":                 []any{"k"},
	}, got)
}

func TestAnalyze(t *testing.T) {
	generator := &fakeGenerator{
		response: "```json\n{\"Title\": \"Standup\", \"Summary\": \"Short sync.\"}\n```",
	}
	analyzer := NewAnalyzer(generator)

	got, err := analyzer.Analyze(context.Background(), "we talked about the release")
	require.NoError(t, err)

	assert.Equal(t, "Standup", got["title"])
	assert.Equal(t, "Short sync.", got["summary"])
	assert.Contains(t, generator.lastPrompt, "we talked about the release")
	assert.Contains(t, generator.lastPrompt, `"decisions_or_conclusions"`)
}

func TestAnalyzeGeneratorFailure(t *testing.T) {
	analyzer := NewAnalyzer(&fakeGenerator{err: errors.New("timeout")})

	_, err := analyzer.Analyze(context.Background(), "transcript")
	assert.Error(t, err)
}

func TestAnalyzeUnparsableOutput(t *testing.T) {
	analyzer := NewAnalyzer(&fakeGenerator{response: "I could not produce JSON, sorry."})

	_, err := analyzer.Analyze(context.Background(), "transcript")
	assert.Error(t, err)
}

func TestNotes(t *testing.T) {
	generator := &fakeGenerator{
		response: `{"lecture_title": "Graph theory", "topics": ["paths"]}`,
	}
	analyzer := NewAnalyzer(generator)

	got, err := analyzer.Notes(context.Background(), "today we cover graphs")
	require.NoError(t, err)

	assert.Equal(t, "Graph theory", got["lecture_title"])
	assert.Contains(t, generator.lastPrompt, "today we cover graphs")
	assert.Contains(t, generator.lastPrompt, `"definitions"`)
}
