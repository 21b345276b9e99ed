// Package ingest watches an inbox directory for dropped media files and
// feeds them through the session pipeline. A ledger of processed file names
// keeps restarts from re-transcribing the same recordings.
package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/hearsay-ai/hearsay/internal/session"
)

// mediaExts are the file extensions picked up from the inbox. Anything else
// (ledger files, partial downloads, editor temp files) is ignored.
var mediaExts = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".mov":  true,
	".avi":  true,
	".webm": true,
	".wav":  true,
}

// Uploader is the pipeline surface the ingester drives.
type Uploader interface {
	ProcessUpload(ctx context.Context, mediaFile io.Reader, mode session.OutputMode) (*session.UploadResult, error)
}

// Ingester monitors the inbox and processes each new media file exactly once.
type Ingester struct {
	inboxDir   string
	ledgerPath string
	uploader   Uploader
	mode       session.OutputMode
	watcher    *fsnotify.Watcher
	ctx        context.Context
	cancel     context.CancelFunc

	mu      sync.Mutex
	running bool
	pending map[string]bool // files currently settling or processing

	ledgerMu sync.Mutex
	ledger   map[string]bool

	settlePoll time.Duration // interval between size probes while a file settles
	settleMax  time.Duration // give up waiting for a file to stop growing
}

// New creates an Ingester over inboxDir. The ledger is persisted at
// ledgerPath and loaded on Start.
func New(inboxDir, ledgerPath string, uploader Uploader, mode session.OutputMode) (*Ingester, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Ingester{
		inboxDir:   inboxDir,
		ledgerPath: ledgerPath,
		uploader:   uploader,
		mode:       mode,
		watcher:    fsw,
		ctx:        ctx,
		cancel:     cancel,
		pending:    make(map[string]bool),
		ledger:     make(map[string]bool),
		settlePoll: 500 * time.Millisecond,
		settleMax:  2 * time.Minute,
	}, nil
}

// Start loads the ledger, processes anything already sitting in the inbox,
// and begins watching for new arrivals.
func (in *Ingester) Start() error {
	in.mu.Lock()
	if in.running {
		in.mu.Unlock()
		return nil
	}
	in.running = true
	in.mu.Unlock()

	if err := in.loadLedger(); err != nil {
		log.Warn().Err(err).Str("path", in.ledgerPath).Msg("Failed to load processed ledger, starting empty")
	}

	if err := os.MkdirAll(in.inboxDir, 0o755); err != nil {
		return fmt.Errorf("create inbox dir: %w", err)
	}
	if err := in.watcher.Add(in.inboxDir); err != nil {
		return fmt.Errorf("watch inbox dir: %w", err)
	}

	in.scanExisting()

	go in.watchLoop()
	return nil
}

// Stop stops the watcher. In-flight files finish processing.
func (in *Ingester) Stop() error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if !in.running {
		return nil
	}

	in.running = false
	in.cancel()
	return in.watcher.Close()
}

// scanExisting queues files dropped into the inbox while the ingester was
// down.
func (in *Ingester) scanExisting() {
	entries, err := os.ReadDir(in.inboxDir)
	if err != nil {
		log.Warn().Err(err).Str("dir", in.inboxDir).Msg("Initial inbox scan failed")
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !mediaExts[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		in.enqueue(filepath.Join(in.inboxDir, entry.Name()))
	}
}

func (in *Ingester) watchLoop() {
	for {
		select {
		case <-in.ctx.Done():
			return

		case event, ok := <-in.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !mediaExts[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}
			in.enqueue(event.Name)

		case err, ok := <-in.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Inbox watcher error")
		}
	}
}

// enqueue starts a settle-then-process goroutine for path unless the file is
// already pending or in the ledger.
func (in *Ingester) enqueue(path string) {
	name := filepath.Base(path)

	if in.seen(name) {
		return
	}

	in.mu.Lock()
	if in.pending[name] {
		in.mu.Unlock()
		return
	}
	in.pending[name] = true
	in.mu.Unlock()

	go func() {
		defer func() {
			in.mu.Lock()
			delete(in.pending, name)
			in.mu.Unlock()
		}()

		if err := in.waitSettled(path); err != nil {
			log.Warn().Err(err).Str("file", name).Msg("Media file never settled, skipping")
			return
		}
		in.process(path)
	}()
}

// waitSettled polls the file size until two consecutive probes agree, so a
// recording still being copied into the inbox is not read half-written.
func (in *Ingester) waitSettled(path string) error {
	deadline := time.Now().Add(in.settleMax)
	var lastSize int64 = -1

	for {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.Size() == lastSize && info.Size() > 0 {
			return nil
		}
		lastSize = info.Size()

		if time.Now().After(deadline) {
			return fmt.Errorf("file still growing after %s", in.settleMax)
		}
		select {
		case <-in.ctx.Done():
			return in.ctx.Err()
		case <-time.After(in.settlePoll):
		}
	}
}

// process runs one inbox file through the pipeline. Failures are logged and
// the file stays out of the ledger so a later restart can retry it.
func (in *Ingester) process(path string) {
	name := filepath.Base(path)
	logger := log.With().Str("file", name).Logger()

	f, err := os.Open(path)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open inbox file")
		return
	}
	defer f.Close()

	result, err := in.uploader.ProcessUpload(in.ctx, f, in.mode)
	if err != nil {
		logger.Error().Err(err).Msg("Inbox file processing failed")
		return
	}

	logger.Info().Str("sessionId", result.SessionID).Msg("Inbox file processed")

	in.markProcessed(name)
}

func (in *Ingester) seen(name string) bool {
	in.ledgerMu.Lock()
	defer in.ledgerMu.Unlock()
	return in.ledger[name]
}

func (in *Ingester) markProcessed(name string) {
	in.ledgerMu.Lock()
	defer in.ledgerMu.Unlock()

	in.ledger[name] = true
	if err := in.persistLedgerLocked(); err != nil {
		log.Warn().Err(err).Str("path", in.ledgerPath).Msg("Failed to persist processed ledger")
	}
}

type ledgerFile struct {
	Processed []string `json:"processed"`
}

func (in *Ingester) loadLedger() error {
	data, err := os.ReadFile(in.ledgerPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var lf ledgerFile
	if err := json.Unmarshal(data, &lf); err != nil {
		return fmt.Errorf("parse ledger: %w", err)
	}

	in.ledgerMu.Lock()
	defer in.ledgerMu.Unlock()
	for _, name := range lf.Processed {
		in.ledger[name] = true
	}
	return nil
}

// persistLedgerLocked writes the ledger atomically. Caller holds ledgerMu.
func (in *Ingester) persistLedgerLocked() error {
	names := make([]string, 0, len(in.ledger))
	for name := range in.ledger {
		names = append(names, name)
	}
	sort.Strings(names)

	data, err := json.MarshalIndent(ledgerFile{Processed: names}, "", "    ")
	if err != nil {
		return err
	}

	tmp := in.ledgerPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, in.ledgerPath)
}
