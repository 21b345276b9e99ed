package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hearsay-ai/hearsay/internal/extract"
	"github.com/hearsay-ai/hearsay/internal/media"
)

// Stage identifies a pipeline stage for failure classification.
type Stage string

const (
	// StageConversion is media normalization. Session-fatal.
	StageConversion Stage = "conversion"
	// StageTranscription is speech-to-text. Session-fatal.
	StageTranscription Stage = "transcription"
	// StageExtraction is structured content extraction. Locally recovered.
	StageExtraction Stage = "extraction"
	// StageRender is report rendering. Locally recovered.
	StageRender Stage = "render"
	// StageIndexing is retrieval indexing. Locally recovered.
	StageIndexing Stage = "indexing"
)

// StageError wraps a failure with the stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// Transcriber converts normalized audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Extractor produces structured extracts from a transcript in the two modes.
type Extractor interface {
	Analyze(ctx context.Context, transcript string) (extract.Extract, error)
	Notes(ctx context.Context, transcript string) (extract.Extract, error)
}

// Renderer writes report documents for structured extracts.
type Renderer interface {
	RenderAnalysis(data extract.Extract, path string) error
	RenderNotes(data extract.Extract, path string) error
}

// Indexer hands a persisted transcript to the retrieval engine.
type Indexer interface {
	IndexSession(ctx context.Context, sessionID string) (int, error)
}

// Paths groups the directories the pipeline reads and writes.
type Paths struct {
	LiveDir       string
	TranscriptDir string
	AnalysisDir   string
	NotesDir      string
	ReportDir     string
}

// Pipeline drives the capture-to-index lifecycle with explicitly injected
// collaborators. One Pipeline serves any number of concurrent sessions; all
// per-session state lives on the session value.
type Pipeline struct {
	normalizer  media.Normalizer
	transcriber Transcriber
	extractor   Extractor
	renderer    Renderer
	indexer     Indexer
	paths       Paths
}

// NewPipeline creates a pipeline over the given collaborators.
func NewPipeline(
	normalizer media.Normalizer,
	transcriber Transcriber,
	extractor Extractor,
	renderer Renderer,
	indexer Indexer,
	paths Paths,
) *Pipeline {
	return &Pipeline{
		normalizer:  normalizer,
		transcriber: transcriber,
		extractor:   extractor,
		renderer:    renderer,
		indexer:     indexer,
		paths:       paths,
	}
}

// session is the in-memory state of one capture-to-index lifecycle.
type session struct {
	id      string
	output  OutputMode
	state   State
	rawPath string
	wavPath string
	txtPath string
}

func (p *Pipeline) newSession(id string) *session {
	return &session{
		id:      id,
		output:  OutputAnalysis,
		state:   StateCapturing,
		rawPath: filepath.Join(p.paths.LiveDir, id+".webm"),
		wavPath: filepath.Join(p.paths.LiveDir, id+".wav"),
		txtPath: filepath.Join(p.paths.TranscriptDir, id+".txt"),
	}
}

// Run owns one live session: it accumulates stream frames and control
// messages from ch until the client ends the session, then runs the staged
// pipeline and reports progress back over ch. The returned error describes
// why a session failed; a completed session returns nil.
func (p *Pipeline) Run(ctx context.Context, sessionID string, ch Channel) (err error) {
	sess := p.newSession(sessionID)
	logger := log.With().Str("sessionId", sessionID).Logger()

	// Anything unhandled below still notifies the client before the channel
	// goes away.
	defer func() {
		if r := recover(); r != nil {
			sess.state = StateFailed
			err = fmt.Errorf("session panic: %v", r)
			logger.Error().Interface("panic", r).Msg("Session pipeline panicked")
			p.notify(ctx, ch, Notification{Kind: NoteTerminalError, Payload: fmt.Sprint(r)})
		}
	}()

	// Artifacts from an earlier run under the same id would corrupt this one.
	for _, path := range []string{sess.rawPath, sess.wavPath, sess.txtPath} {
		if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
			logger.Warn().Err(removeErr).Str("path", path).Msg("Failed to remove stale artifact")
		}
	}

	logger.Info().Msg("Session capture started")
	if err := p.capture(ctx, sess, ch, logger); err != nil {
		sess.state = StateFailed
		return err
	}

	sess.state = StateProcessing
	p.process(ctx, sess, ch, logger)
	if sess.state == StateFailed {
		return fmt.Errorf("session %s failed", sess.id)
	}
	return nil
}

// capture accumulates frames until END_SESSION. A channel error aborts the
// session; the processing phase never runs in that case.
func (p *Pipeline) capture(ctx context.Context, sess *session, ch Channel, logger zerolog.Logger) error {
	for {
		msg, err := ch.Receive(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("Session channel closed during capture")
			return fmt.Errorf("capture: %w", err)
		}

		if msg.IsText {
			switch ctrl := ParseControl(msg.Text); ctrl.Kind {
			case ControlSetOutput:
				sess.output = ctrl.Mode
				p.notify(ctx, ch, Notification{Kind: NoteAckOutput, Payload: string(ctrl.Mode)})
			case ControlEndSession:
				logger.Info().Str("output", string(sess.output)).Msg("Session capture ended")
				return nil
			}
			// Unrecognized text is ignored, not an error.
			continue
		}

		if len(msg.Data) > 0 {
			if err := appendFile(sess.rawPath, msg.Data); err != nil {
				// Keep receiving; a single dropped frame degrades the
				// transcript, it does not end the session.
				logger.Warn().Err(err).Msg("Failed to write media frame")
			}
		}
	}
}

// process runs the staged pipeline. Stages 1 and 2 are session-fatal; every
// later stage is contained to its own output.
func (p *Pipeline) process(ctx context.Context, sess *session, ch Channel, logger zerolog.Logger) {
	// Stage 1: normalize. Nothing downstream can proceed without audio.
	if err := p.normalizer.Normalize(ctx, sess.rawPath, sess.wavPath); err != nil {
		sess.state = StateFailed
		logger.Error().Err(err).Msg("Media normalization failed")
		p.notify(ctx, ch, Notification{Kind: NoteTerminalError, Payload: "FFMPEG conversion failed: " + err.Error()})
		return
	}

	// Stage 2: transcribe.
	transcript, err := p.transcriber.Transcribe(ctx, sess.wavPath)
	if err != nil {
		sess.state = StateFailed
		logger.Error().Err(err).Msg("Transcription failed")
		p.notify(ctx, ch, Notification{Kind: NoteTerminalError, Payload: "Transcription failed: " + err.Error()})
		return
	}

	// Stage 3: persist the transcript. Non-fatal; indexing below will then
	// report NotFound, but extraction still works from memory.
	if err := os.WriteFile(sess.txtPath, []byte(transcript), 0o644); err != nil {
		logger.Warn().Err(err).Msg("Failed to persist transcript")
	}

	// Stage 4: structured extraction, one isolated sub-stage per mode.
	analysis := p.extractMode(ctx, sess.id, transcript, true, logger)
	notes := p.extractMode(ctx, sess.id, transcript, false, logger)

	// Stage 5: render reports for the selected modes.
	p.render(sess.id, sess.output, analysis, notes, logger)

	// Stage 6: index for retrieval.
	if _, err := p.indexer.IndexSession(ctx, sess.id); err != nil {
		logger.Warn().Err(err).Msg("Retrieval indexing failed")
		p.notify(ctx, ch, Notification{Kind: NoteIndexError, Payload: err.Error()})
	} else {
		p.notify(ctx, ch, Notification{Kind: NoteIndexed, Payload: sess.id})
	}

	// Stage 7: done.
	p.notify(ctx, ch, Notification{Kind: NoteReportReady, Payload: sess.id})
	sess.state = StateCompleted
	logger.Info().Msg("Session completed")
}

// extractMode runs one extraction sub-stage and persists its result. Any
// failure yields an empty extract for that mode only.
func (p *Pipeline) extractMode(ctx context.Context, sessionID, transcript string, analysis bool, logger zerolog.Logger) extract.Extract {
	var (
		mode string
		dir  string
		data extract.Extract
		err  error
	)
	if analysis {
		mode, dir = "analysis", p.paths.AnalysisDir
		data, err = p.extractor.Analyze(ctx, transcript)
	} else {
		mode, dir = "notes", p.paths.NotesDir
		data, err = p.extractor.Notes(ctx, transcript)
	}
	if err != nil {
		logger.Warn().Err(err).Str("mode", mode).Msg("Extraction failed")
		return extract.Extract{}
	}

	if err := writeJSON(filepath.Join(dir, sessionID+".json"), data); err != nil {
		logger.Warn().Err(err).Str("mode", mode).Msg("Failed to persist extract")
	}
	return data
}

// render writes the report documents selected by mode. Failures are logged
// and do not stop later stages.
func (p *Pipeline) render(sessionID string, mode OutputMode, analysis, notes extract.Extract, logger zerolog.Logger) {
	if mode.IncludesAnalysis() {
		path := filepath.Join(p.paths.ReportDir, sessionID+"_analysis.md")
		if err := p.renderer.RenderAnalysis(analysis, path); err != nil {
			logger.Warn().Err(err).Msg("Analysis report rendering failed")
		}
	}
	if mode.IncludesNotes() {
		path := filepath.Join(p.paths.ReportDir, sessionID+"_notes.md")
		if err := p.renderer.RenderNotes(notes, path); err != nil {
			logger.Warn().Err(err).Msg("Notes report rendering failed")
		}
	}
}

// notify delivers a session event, logging and discarding delivery failure.
// The client may already be gone; that must not fail the pipeline.
func (p *Pipeline) notify(ctx context.Context, ch Channel, n Notification) {
	if err := ch.Send(ctx, n.Encode()); err != nil {
		log.Debug().Err(err).Int("kind", int(n.Kind)).Msg("Notification delivery dropped")
	}
}

// UploadResult describes a completed upload-variant run.
type UploadResult struct {
	SessionID      string `json:"session_id"`
	AnalysisReport string `json:"analysis"`
	NotesReport    string `json:"notes"`
}

// ProcessUpload is the non-streaming entry point: it saves a complete media
// file, runs the pipeline synchronously, and returns a result descriptor.
// Conversion and transcription failures are returned as typed stage errors;
// later stages degrade the result instead of failing the call.
func (p *Pipeline) ProcessUpload(ctx context.Context, mediaFile io.Reader, mode OutputMode) (*UploadResult, error) {
	if !mode.IncludesAnalysis() && !mode.IncludesNotes() {
		mode = OutputAnalysis
	}

	id := "video_" + uuid.NewString()
	logger := log.With().Str("sessionId", id).Logger()

	videoPath := filepath.Join(p.paths.LiveDir, id+".mp4")
	wavPath := filepath.Join(p.paths.LiveDir, id+".wav")
	txtPath := filepath.Join(p.paths.TranscriptDir, id+".txt")

	out, err := os.Create(videoPath)
	if err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}
	if _, err := io.Copy(out, mediaFile); err != nil {
		out.Close()
		return nil, fmt.Errorf("save upload: %w", err)
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}

	if err := p.normalizer.Normalize(ctx, videoPath, wavPath); err != nil {
		return nil, &StageError{Stage: StageConversion, Err: err}
	}

	transcript, err := p.transcriber.Transcribe(ctx, wavPath)
	if err != nil {
		return nil, &StageError{Stage: StageTranscription, Err: err}
	}

	if err := os.WriteFile(txtPath, []byte(transcript), 0o644); err != nil {
		logger.Warn().Err(err).Msg("Failed to persist transcript")
	}

	analysis := p.extractMode(ctx, id, transcript, true, logger)
	notes := p.extractMode(ctx, id, transcript, false, logger)

	// The upload variant renders both reports so the returned links resolve
	// regardless of the requested mode.
	p.render(id, OutputBoth, analysis, notes, logger)

	if _, err := p.indexer.IndexSession(ctx, id); err != nil {
		logger.Warn().Err(err).Msg("Retrieval indexing failed")
	}

	logger.Info().Str("output", string(mode)).Msg("Upload processed")
	return &UploadResult{
		SessionID:      id,
		AnalysisReport: id + "_analysis",
		NotesReport:    id + "_notes",
	}, nil
}

func appendFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
