// Package session owns the per-session capture-to-index lifecycle: stream
// capture, staged processing with per-stage failure containment, and client
// notification.
package session

import (
	"context"
	"strings"
)

// OutputMode selects which report modes a session renders.
type OutputMode string

const (
	// OutputAnalysis renders the meeting-analysis report only. The default.
	OutputAnalysis OutputMode = "analysis"
	// OutputNotes renders the lecture-notes report only.
	OutputNotes OutputMode = "notes"
	// OutputBoth renders both reports.
	OutputBoth OutputMode = "both"
)

// ParseOutputMode maps a wire string to an OutputMode. Unknown values are
// rejected so the capture loop keeps the previous selection.
func ParseOutputMode(s string) (OutputMode, bool) {
	switch OutputMode(strings.TrimSpace(s)) {
	case OutputAnalysis:
		return OutputAnalysis, true
	case OutputNotes:
		return OutputNotes, true
	case OutputBoth:
		return OutputBoth, true
	}
	return "", false
}

// IncludesAnalysis reports whether the mode wants the analysis report.
func (m OutputMode) IncludesAnalysis() bool { return m == OutputAnalysis || m == OutputBoth }

// IncludesNotes reports whether the mode wants the notes report.
func (m OutputMode) IncludesNotes() bool { return m == OutputNotes || m == OutputBoth }

// State is the lifecycle phase of a session. Transitions only move forward:
// capturing -> processing -> completed or failed, with failed reachable from
// either phase.
type State int

const (
	// StateCapturing means the session is accumulating stream data.
	StateCapturing State = iota
	// StateProcessing means the staged pipeline is running.
	StateProcessing
	// StateCompleted means the session finished and notified the client.
	StateCompleted
	// StateFailed means the session ended on a fatal stage or channel error.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCapturing:
		return "capturing"
	case StateProcessing:
		return "processing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Wire markers of the client protocol. Inbound control and outbound
// notifications are tagged strings; parsing and encoding happen only here,
// the rest of the package works with typed values.
const (
	markerSetOutput  = "__OUTPUT_TYPE__::"
	markerEndSession = "__END_MEETING__"

	markerAckOutput     = "__ACK_OUTPUT__::"
	markerIndexed       = "__RAG_INDEXED__::"
	markerIndexError    = "__RAG_INDEX_ERROR__::"
	markerTerminalError = "__ERROR_FINAL__::"
	markerReportReady   = "__REPORT_READY__::"
)

// ControlKind tags a parsed inbound control message.
type ControlKind int

const (
	// ControlIgnore marks text that is not a recognized control message.
	ControlIgnore ControlKind = iota
	// ControlSetOutput updates the session's selected output mode.
	ControlSetOutput
	// ControlEndSession ends the capture phase.
	ControlEndSession
)

// Control is a parsed inbound control message.
type Control struct {
	Kind ControlKind
	Mode OutputMode
}

// ParseControl classifies inbound text. Unrecognized text, including a
// SET_OUTPUT with an unknown mode, parses as ControlIgnore.
func ParseControl(text string) Control {
	if strings.HasPrefix(text, markerSetOutput) {
		mode, ok := ParseOutputMode(strings.TrimPrefix(text, markerSetOutput))
		if !ok {
			return Control{Kind: ControlIgnore}
		}
		return Control{Kind: ControlSetOutput, Mode: mode}
	}
	if text == markerEndSession {
		return Control{Kind: ControlEndSession}
	}
	return Control{Kind: ControlIgnore}
}

// NotificationKind tags an outbound session event.
type NotificationKind int

const (
	// NoteAckOutput acknowledges an accepted output mode.
	NoteAckOutput NotificationKind = iota
	// NoteIndexed reports the session transcript was indexed.
	NoteIndexed
	// NoteIndexError reports indexing failed; the session still completes.
	NoteIndexError
	// NoteTerminalError reports a session-fatal failure.
	NoteTerminalError
	// NoteReportReady reports the session finished and reports are ready.
	NoteReportReady
)

// Notification is one outbound session event. Payload is the accepted mode,
// the session id, or an error message depending on Kind.
type Notification struct {
	Kind    NotificationKind
	Payload string
}

// Encode serializes the notification to its wire marker form.
func (n Notification) Encode() string {
	switch n.Kind {
	case NoteAckOutput:
		return markerAckOutput + n.Payload
	case NoteIndexed:
		return markerIndexed + n.Payload
	case NoteIndexError:
		return markerIndexError + n.Payload
	case NoteTerminalError:
		return markerTerminalError + n.Payload
	case NoteReportReady:
		return markerReportReady + n.Payload
	}
	return n.Payload
}

// Message is one inbound frame from the session channel. Text frames carry
// control messages; binary frames carry media data.
type Message struct {
	Text   string
	Data   []byte
	IsText bool
}

// Channel is the transport of one live session. Receive blocks until the
// next frame arrives; a closed or broken connection returns an error, which
// aborts the session.
type Channel interface {
	Receive(ctx context.Context) (Message, error)
	Send(ctx context.Context, text string) error
}
