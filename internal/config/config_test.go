// Package config provides configuration management for hearsay.
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
)

// ConfigSuite is a test suite for config operations.
type ConfigSuite struct {
	suite.Suite
	tempDir string
	origKey string
}

func (s *ConfigSuite) SetupTest() {
	s.tempDir = s.T().TempDir()
	s.origKey = os.Getenv("GROQ_API_KEY")
	os.Setenv("GROQ_API_KEY", "test-key")
}

func (s *ConfigSuite) TearDownTest() {
	os.Setenv("GROQ_API_KEY", s.origKey)
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

// TestDefault tests default configuration values.
func (s *ConfigSuite) TestDefault() {
	cfg := Default()

	s.Equal(DefaultListenAddr, cfg.ListenAddr)
	s.Equal("ffmpeg", cfg.FFmpegPath)
	s.Equal(DefaultGroqBaseURL, cfg.Groq.BaseURL)
	s.Equal(DefaultWhisperModel, cfg.Groq.WhisperModel)
	s.Equal(DefaultExtractModel, cfg.Groq.ExtractModel)
	s.Equal(DefaultAnswerModel, cfg.Groq.AnswerModel)
	s.Equal("test-key", cfg.Groq.APIKey)
	s.Equal(DefaultEmbedModel, cfg.Embedding.Model)
	s.Equal(DefaultChunkMaxWords, cfg.Retrieval.ChunkMaxWords)
	s.Equal(DefaultSearchTopK, cfg.Retrieval.TopK)
	s.InDelta(DefaultSearchMinScore, cfg.Retrieval.MinScore, 1e-9)
	s.Contains(cfg.DataDir, ".hearsay")
}

// TestLoadMissingFile tests that a missing config file yields defaults.
func (s *ConfigSuite) TestLoadMissingFile() {
	cfg, err := Load(filepath.Join(s.tempDir, "nope.yaml"))
	s.NoError(err)
	s.Equal(DefaultListenAddr, cfg.ListenAddr)
}

// TestLoadPartialFile tests that absent fields fall back to defaults.
func (s *ConfigSuite) TestLoadPartialFile() {
	path := filepath.Join(s.tempDir, "config.yaml")
	body := "listen_addr: \":9100\"\ndata_dir: " + s.tempDir + "\nretrieval:\n  chunk_max_words: 60\n"
	s.Require().NoError(os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	s.Require().NoError(err)
	s.Equal(":9100", cfg.ListenAddr)
	s.Equal(s.tempDir, cfg.DataDir)
	s.Equal(60, cfg.Retrieval.ChunkMaxWords)
	// Untouched sections keep defaults.
	s.Equal(DefaultSearchTopK, cfg.Retrieval.TopK)
	s.Equal(DefaultGroqBaseURL, cfg.Groq.BaseURL)
}

// TestLoadInvalidYAML tests that malformed YAML is an error.
func (s *ConfigSuite) TestLoadInvalidYAML() {
	path := filepath.Join(s.tempDir, "config.yaml")
	s.Require().NoError(os.WriteFile(path, []byte("listen_addr: [unclosed"), 0o644))

	_, err := Load(path)
	s.Error(err)
}

// TestDirectoryLayout tests the derived data directory paths.
func (s *ConfigSuite) TestDirectoryLayout() {
	cfg := Default()
	cfg.DataDir = s.tempDir

	s.Equal(filepath.Join(s.tempDir, "live"), cfg.LiveDir())
	s.Equal(filepath.Join(s.tempDir, "transcripts"), cfg.TranscriptDir())
	s.Equal(filepath.Join(s.tempDir, "analysis"), cfg.AnalysisDir())
	s.Equal(filepath.Join(s.tempDir, "analysis_notes"), cfg.NotesDir())
	s.Equal(filepath.Join(s.tempDir, "reports"), cfg.ReportDir())
	s.Equal(filepath.Join(s.tempDir, "rag_index.json"), cfg.IndexPath())
}

// TestEnsureDirs tests that all data directories get created.
func (s *ConfigSuite) TestEnsureDirs() {
	cfg := Default()
	cfg.DataDir = filepath.Join(s.tempDir, "data")

	s.Require().NoError(cfg.EnsureDirs())

	for _, dir := range []string{
		cfg.LiveDir(), cfg.TranscriptDir(), cfg.AnalysisDir(),
		cfg.NotesDir(), cfg.ReportDir(), cfg.InboxDir(),
	} {
		info, err := os.Stat(dir)
		s.NoError(err)
		s.True(info.IsDir())
	}
}
