package rag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hearsay-ai/hearsay/pkg/similarity"
)

// NoAnswer is returned verbatim when the store holds nothing relevant enough
// to answer from. The generation collaborator is instructed to fall back to
// the same sentence, so callers can match on it.
const NoAnswer = "The answer is not available in the provided transcripts."

const (
	// minContextLen is the minimum combined hit text length worth sending to
	// the generation collaborator.
	minContextLen = 20

	// rebuildWorkers bounds concurrent session re-embedding during RebuildAll.
	rebuildWorkers = 4
)

// ErrNotFound indicates a session has no persisted transcript.
var ErrNotFound = errors.New("transcript not found")

// ErrDimensionMismatch indicates the query embedding dimension differs from
// stored entries. The embedder configuration no longer matches the store, so
// this is fatal configuration drift, not a per-request condition.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ChunkEmbedError reports the chunk index at which an indexing call failed.
// Entries appended before the failing chunk remain in the store.
type ChunkEmbedError struct {
	Chunk int
	Err   error
}

func (e *ChunkEmbedError) Error() string {
	return fmt.Sprintf("embed chunk %d: %v", e.Chunk, e.Err)
}

func (e *ChunkEmbedError) Unwrap() error { return e.Err }

// Embedder maps text to a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces prose from a system instruction and a prompt.
type Generator interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// HitMeta identifies the chunk a hit came from.
type HitMeta struct {
	SessionID string `json:"session_id"`
	ChunkID   int    `json:"chunk_id"`
}

// Hit is one ranked search result.
type Hit struct {
	Text  string  `json:"chunk"`
	Meta  HitMeta `json:"meta"`
	Score float64 `json:"score"`
}

// SessionResult reports the outcome of indexing one session.
type SessionResult struct {
	Status string `json:"status,omitempty"`
	Chunks int    `json:"chunks,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Options configures the retrieval engine.
type Options struct {
	TranscriptDir string
	MaxWords      int
	MinScore      float64
	TopK          int
}

// Engine is the retrieval engine over one Store and one embedding function.
// Index and search calls may run concurrently; RebuildAll takes the store
// exclusively since it clears it first.
type Engine struct {
	store         *Store
	embedder      Embedder
	generator     Generator
	transcriptDir string
	maxWords      int
	minScore      float64
	topK          int
	metrics       *engineMetrics
	rebuildMu     sync.RWMutex
}

// NewEngine creates a retrieval engine with explicitly injected collaborators.
func NewEngine(store *Store, embedder Embedder, generator Generator, opts Options) *Engine {
	if opts.MaxWords < 1 {
		opts.MaxWords = DefaultMaxWords
	}
	if opts.MinScore <= 0 {
		opts.MinScore = 0.35
	}
	if opts.TopK < 1 {
		opts.TopK = 5
	}
	return &Engine{
		store:         store,
		embedder:      embedder,
		generator:     generator,
		transcriptDir: opts.TranscriptDir,
		maxWords:      opts.MaxWords,
		minScore:      opts.MinScore,
		topK:          opts.TopK,
		metrics:       newEngineMetrics(),
	}
}

// IndexSession chunks and embeds the persisted transcript for sessionID and
// appends the entries to the store. Returns the number of chunks appended.
// An embedding failure aborts the call at that chunk; earlier chunks stay
// persisted (no rollback).
func (e *Engine) IndexSession(ctx context.Context, sessionID string) (int, error) {
	e.rebuildMu.RLock()
	defer e.rebuildMu.RUnlock()
	return e.indexSession(ctx, sessionID)
}

func (e *Engine) indexSession(ctx context.Context, sessionID string) (int, error) {
	path := filepath.Join(e.transcriptDir, sessionID+".txt")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
		}
		return 0, fmt.Errorf("read transcript %s: %w", sessionID, err)
	}

	chunks := Split(strings.TrimSpace(string(data)), e.maxWords)
	for i, chunk := range chunks {
		vec, err := e.embedder.Embed(ctx, chunk)
		if err != nil {
			return i, &ChunkEmbedError{Chunk: i, Err: err}
		}
		entry := Entry{SessionID: sessionID, ChunkID: i, Text: chunk, Embedding: vec}
		if err := e.store.Append(entry); err != nil {
			return i, fmt.Errorf("append chunk %d: %w", i, err)
		}
		e.metrics.indexedChunks.Add(ctx, 1)
	}

	log.Info().Str("sessionId", sessionID).Int("chunks", len(chunks)).Msg("Session indexed")
	return len(chunks), nil
}

// RebuildAll discards the store and re-indexes every session with a persisted
// transcript. One session's failure does not stop the others; the returned
// map carries a per-session result.
func (e *Engine) RebuildAll(ctx context.Context) (map[string]SessionResult, error) {
	e.rebuildMu.Lock()
	defer e.rebuildMu.Unlock()

	if err := e.store.Reset(); err != nil {
		return nil, fmt.Errorf("reset store: %w", err)
	}

	names, err := filepath.Glob(filepath.Join(e.transcriptDir, "*.txt"))
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}

	results := make(map[string]SessionResult, len(names))
	var resultsMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rebuildWorkers)
	for _, name := range names {
		sessionID := strings.TrimSuffix(filepath.Base(name), ".txt")
		g.Go(func() error {
			chunks, err := e.indexSession(gctx, sessionID)
			resultsMu.Lock()
			defer resultsMu.Unlock()
			if err != nil {
				log.Warn().Err(err).Str("sessionId", sessionID).Msg("Rebuild failed for session")
				results[sessionID] = SessionResult{Error: err.Error()}
				return nil
			}
			results[sessionID] = SessionResult{Status: "ok", Chunks: chunks}
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

// Search embeds the query and returns the stored chunks ranked by cosine
// similarity, dropping hits below the relevance floor and truncating to topK.
// topK < 1 falls back to the configured default. An empty store yields an
// empty hit list.
func (e *Engine) Search(ctx context.Context, query string, topK int) ([]Hit, error) {
	start := time.Now()
	defer e.metrics.recordSearch(ctx, start)

	if topK < 1 {
		topK = e.topK
	}

	entries, err := e.store.All()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return []Hit{}, nil
	}

	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits := make([]Hit, 0, len(entries))
	for _, entry := range entries {
		if len(entry.Embedding) != len(queryVec) {
			return nil, fmt.Errorf("entry %s/%d has dimension %d, query has %d: %w",
				entry.SessionID, entry.ChunkID, len(entry.Embedding), len(queryVec), ErrDimensionMismatch)
		}
		hits = append(hits, Hit{
			Text:  entry.Text,
			Meta:  HitMeta{SessionID: entry.SessionID, ChunkID: entry.ChunkID},
			Score: similarity.Cosine(queryVec, entry.Embedding),
		})
	}

	// Stable sort keeps store order among equal scores.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	ranked := make([]Hit, 0, topK)
	for _, hit := range hits {
		if hit.Score < e.minScore {
			continue
		}
		ranked = append(ranked, hit)
		if len(ranked) == topK {
			break
		}
	}
	return ranked, nil
}

// Answer runs Search and synthesizes an answer from the surviving hits. When
// nothing relevant survives the floor, it returns NoAnswer without invoking
// the generation collaborator. A collaborator failure is surfaced inline as
// the answer string, never as an error.
func (e *Engine) Answer(ctx context.Context, question string, topK int) (string, error) {
	e.metrics.answers.Add(ctx, 1)

	hits, err := e.Search(ctx, question, topK)
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		return NoAnswer, nil
	}

	texts := make([]string, len(hits))
	for i, hit := range hits {
		texts[i] = hit.Text
	}
	contextText := strings.Join(texts, "\n\n")
	if len(strings.TrimSpace(contextText)) < minContextLen {
		return NoAnswer, nil
	}

	answer, err := e.generator.Complete(ctx, answerSystemPrompt, answerPrompt(contextText, question))
	if err != nil {
		log.Warn().Err(err).Msg("Answer generation failed")
		return "LLM Error: " + err.Error(), nil
	}
	return strings.TrimSpace(answer), nil
}

const answerSystemPrompt = "Follow the RAG rules strictly. Answer only with simple English sentences, using context only."

func answerPrompt(contextText, question string) string {
	return fmt.Sprintf(`
You are a STRICT RAG assistant. Your job is to answer questions in simple, clear English.

CONTEXT MAY INCLUDE:
- Hindi, English, or Hinglish.
- Translate any Hindi or Hinglish into natural English before answering.

ANSWER RULES:
1. Use ONLY the information provided in the CONTEXT.
2. Your answer must be:
   - 2 to 4 sentences
   - Simple English
   - Natural and neutral tone
   - No meta commentary
3. Do NOT say:
   - "According to the context"
   - "According to the transcript"
   - "Based on the provided information"
4. Do NOT add assumptions or outside knowledge.
5. If the context does NOT contain the answer, reply EXACTLY:
   "%s"

CONTEXT:
%s

QUESTION:
%s

FINAL ANSWER (simple English only):
`, NoAnswer, contextText, question)
}
