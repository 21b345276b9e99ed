// Package config provides configuration management for hearsay.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Defaults for values not present in the config file.
const (
	DefaultListenAddr     = ":8000"
	DefaultGroqBaseURL    = "https://api.groq.com/openai/v1"
	DefaultWhisperModel   = "whisper-large-v3"
	DefaultExtractModel   = "qwen/qwen3-32b"
	DefaultAnswerModel    = "llama-3.1-8b-instant"
	DefaultEmbedBaseURL   = "http://localhost:11434"
	DefaultEmbedModel     = "nomic-embed-text"
	DefaultChunkMaxWords  = 120
	DefaultSearchTopK     = 5
	DefaultSearchMinScore = 0.35
)

// GroqConfig configures the Groq inference client.
// The API key is taken from GROQ_API_KEY and never from the config file.
type GroqConfig struct {
	BaseURL      string `yaml:"base_url"`
	WhisperModel string `yaml:"whisper_model"`
	ExtractModel string `yaml:"extract_model"`
	AnswerModel  string `yaml:"answer_model"`
	APIKey       string `yaml:"-"`
}

// EmbeddingConfig configures the embedding collaborator.
type EmbeddingConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// RetrievalConfig configures chunking and search behaviour.
type RetrievalConfig struct {
	ChunkMaxWords int     `yaml:"chunk_max_words"`
	TopK          int     `yaml:"top_k"`
	MinScore      float64 `yaml:"min_score"`
}

// Config is the root configuration for all hearsay binaries.
type Config struct {
	ListenAddr string          `yaml:"listen_addr"`
	DataDir    string          `yaml:"data_dir"`
	FFmpegPath string          `yaml:"ffmpeg_path"`
	Groq       GroqConfig      `yaml:"groq"`
	Embedding  EmbeddingConfig `yaml:"embedding"`
	Retrieval  RetrievalConfig `yaml:"retrieval"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		ListenAddr: DefaultListenAddr,
		DataDir:    defaultDataDir(),
		FFmpegPath: "ffmpeg",
		Groq: GroqConfig{
			BaseURL:      DefaultGroqBaseURL,
			WhisperModel: DefaultWhisperModel,
			ExtractModel: DefaultExtractModel,
			AnswerModel:  DefaultAnswerModel,
			APIKey:       os.Getenv("GROQ_API_KEY"),
		},
		Embedding: EmbeddingConfig{
			BaseURL: DefaultEmbedBaseURL,
			Model:   DefaultEmbedModel,
		},
		Retrieval: RetrievalConfig{
			ChunkMaxWords: DefaultChunkMaxWords,
			TopK:          DefaultSearchTopK,
			MinScore:      DefaultSearchMinScore,
		},
	}
}

// Load reads a config file from path, filling absent fields with defaults.
// A missing file returns the defaults without error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir()
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.Groq.BaseURL == "" {
		cfg.Groq.BaseURL = DefaultGroqBaseURL
	}
	if cfg.Groq.WhisperModel == "" {
		cfg.Groq.WhisperModel = DefaultWhisperModel
	}
	if cfg.Groq.ExtractModel == "" {
		cfg.Groq.ExtractModel = DefaultExtractModel
	}
	if cfg.Groq.AnswerModel == "" {
		cfg.Groq.AnswerModel = DefaultAnswerModel
	}
	if cfg.Groq.APIKey == "" {
		cfg.Groq.APIKey = os.Getenv("GROQ_API_KEY")
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = DefaultEmbedBaseURL
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = DefaultEmbedModel
	}
	if cfg.Retrieval.ChunkMaxWords <= 0 {
		cfg.Retrieval.ChunkMaxWords = DefaultChunkMaxWords
	}
	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = DefaultSearchTopK
	}
	if cfg.Retrieval.MinScore <= 0 {
		cfg.Retrieval.MinScore = DefaultSearchMinScore
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hearsay"
	}
	return filepath.Join(home, ".hearsay")
}

// Directory layout under DataDir. Live session media, transcripts, structured
// extracts, rendered reports, the vector index document, and the ingest inbox.

// LiveDir returns the directory holding raw and normalized session media.
func (c *Config) LiveDir() string { return filepath.Join(c.DataDir, "live") }

// TranscriptDir returns the directory holding per-session transcript files.
func (c *Config) TranscriptDir() string { return filepath.Join(c.DataDir, "transcripts") }

// AnalysisDir returns the directory holding analysis-mode structured extracts.
func (c *Config) AnalysisDir() string { return filepath.Join(c.DataDir, "analysis") }

// NotesDir returns the directory holding notes-mode structured extracts.
func (c *Config) NotesDir() string { return filepath.Join(c.DataDir, "analysis_notes") }

// ReportDir returns the directory holding rendered report documents.
func (c *Config) ReportDir() string { return filepath.Join(c.DataDir, "reports") }

// IndexPath returns the path of the vector store document.
func (c *Config) IndexPath() string { return filepath.Join(c.DataDir, "rag_index.json") }

// InboxDir returns the watch folder scanned by the ingester.
func (c *Config) InboxDir() string { return filepath.Join(c.DataDir, "inbox") }

// ProcessedPath returns the ingester's processed-file ledger.
func (c *Config) ProcessedPath() string { return filepath.Join(c.DataDir, "processed.json") }

// EnsureDirs creates every directory the service writes to.
func (c *Config) EnsureDirs() error {
	dirs := []string{
		c.DataDir,
		c.LiveDir(),
		c.TranscriptDir(),
		c.AnalysisDir(),
		c.NotesDir(),
		c.ReportDir(),
		c.InboxDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
