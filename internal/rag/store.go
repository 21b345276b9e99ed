package rag

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
)

// Entry is one stored chunk record. JSON field names match the on-disk index
// document, so an index written by earlier deployments stays readable.
type Entry struct {
	SessionID string    `json:"session_id"`
	ChunkID   int       `json:"chunk_id"`
	Text      string    `json:"chunk"`
	Embedding []float32 `json:"embedding"`
}

// document is the persisted shape of the whole store.
type document struct {
	Documents []Entry `json:"documents"`
}

// Store is the durable chunk-level vector store. The entire store is one JSON
// document, rewritten wholesale on every mutation. All mutations are
// load-modify-write under a single lock, so concurrent appenders serialize
// rather than losing updates.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store persisted at path. The file is created lazily on
// first append.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// All returns every stored entry in insertion order. A missing store file is
// an empty store, not an error.
func (s *Store) All() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	return doc.Documents, nil
}

// Count returns the number of stored entries.
func (s *Store) Count() (int, error) {
	entries, err := s.All()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Append adds entries to the end of the store and persists the result.
func (s *Store) Append(entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	doc.Documents = append(doc.Documents, entries...)
	return s.persist(doc)
}

// Reset discards every stored entry and persists the empty store.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist(&document{Documents: []Entry{}})
}

func (s *Store) load() (*document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &document{Documents: []Entry{}}, nil
		}
		return nil, fmt.Errorf("read index: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}
	if doc.Documents == nil {
		doc.Documents = []Entry{}
	}
	return &doc, nil
}

// persist writes the document atomically: temp file in the same directory,
// then rename over the old store.
func (s *Store) persist(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".rag_index-*.json")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace index: %w", err)
	}
	return nil
}
