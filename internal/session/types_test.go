package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOutputMode(t *testing.T) {
	tests := []struct {
		input string
		want  OutputMode
		ok    bool
	}{
		{"analysis", OutputAnalysis, true},
		{"notes", OutputNotes, true},
		{"both", OutputBoth, true},
		{" notes ", OutputNotes, true},
		{"", "", false},
		{"pdf", "", false},
		{"ANALYSIS", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseOutputMode(tt.input)
		assert.Equal(t, tt.ok, ok, "input %q", tt.input)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
	}
}

func TestOutputModeSelection(t *testing.T) {
	assert.True(t, OutputAnalysis.IncludesAnalysis())
	assert.False(t, OutputAnalysis.IncludesNotes())
	assert.False(t, OutputNotes.IncludesAnalysis())
	assert.True(t, OutputNotes.IncludesNotes())
	assert.True(t, OutputBoth.IncludesAnalysis())
	assert.True(t, OutputBoth.IncludesNotes())
}

func TestParseControl(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Control
	}{
		{"set output", "__OUTPUT_TYPE__::notes", Control{Kind: ControlSetOutput, Mode: OutputNotes}},
		{"set output both", "__OUTPUT_TYPE__::both", Control{Kind: ControlSetOutput, Mode: OutputBoth}},
		{"unknown mode ignored", "__OUTPUT_TYPE__::pdf", Control{Kind: ControlIgnore}},
		{"end session", "__END_MEETING__", Control{Kind: ControlEndSession}},
		{"free text ignored", "hello there", Control{Kind: ControlIgnore}},
		{"empty ignored", "", Control{Kind: ControlIgnore}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseControl(tt.text))
		})
	}
}

func TestNotificationEncode(t *testing.T) {
	tests := []struct {
		n    Notification
		want string
	}{
		{Notification{Kind: NoteAckOutput, Payload: "notes"}, "__ACK_OUTPUT__::notes"},
		{Notification{Kind: NoteIndexed, Payload: "s1"}, "__RAG_INDEXED__::s1"},
		{Notification{Kind: NoteIndexError, Payload: "boom"}, "__RAG_INDEX_ERROR__::boom"},
		{Notification{Kind: NoteTerminalError, Payload: "bad"}, "__ERROR_FINAL__::bad"},
		{Notification{Kind: NoteReportReady, Payload: "s1"}, "__REPORT_READY__::s1"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.n.Encode())
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "capturing", StateCapturing.String())
	assert.Equal(t, "processing", StateProcessing.String())
	assert.Equal(t, "completed", StateCompleted.String())
	assert.Equal(t, "failed", StateFailed.String())
}
