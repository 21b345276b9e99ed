// Package main provides the hearsay API server entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hearsay-ai/hearsay/internal/api"
	"github.com/hearsay-ai/hearsay/internal/config"
	"github.com/hearsay-ai/hearsay/internal/embed"
	"github.com/hearsay-ai/hearsay/internal/extract"
	"github.com/hearsay-ai/hearsay/internal/groq"
	"github.com/hearsay-ai/hearsay/internal/media"
	"github.com/hearsay-ai/hearsay/internal/rag"
	"github.com/hearsay-ai/hearsay/internal/report"
	"github.com/hearsay-ai/hearsay/internal/session"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to config file (optional)")
	listenAddr := flag.String("listen", "", "Listen address override")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
		cfg = config.Default()
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	if err := cfg.EnsureDirs(); err != nil {
		log.Fatal().Err(err).Msg("Failed to create data directories")
	}

	groqClient, err := groq.NewClient(groq.Config{
		BaseURL:      cfg.Groq.BaseURL,
		APIKey:       cfg.Groq.APIKey,
		WhisperModel: cfg.Groq.WhisperModel,
		ExtractModel: cfg.Groq.ExtractModel,
		AnswerModel:  cfg.Groq.AnswerModel,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize inference client")
	}

	embedder := embed.NewOllamaEmbedder(cfg.Embedding.BaseURL, cfg.Embedding.Model)

	store := rag.NewStore(cfg.IndexPath())
	engine := rag.NewEngine(store, embedder, groqClient.Answerer(), rag.Options{
		TranscriptDir: cfg.TranscriptDir(),
		MaxWords:      cfg.Retrieval.ChunkMaxWords,
		MinScore:      cfg.Retrieval.MinScore,
		TopK:          cfg.Retrieval.TopK,
	})

	pipeline := session.NewPipeline(
		media.NewFFmpegNormalizer(cfg.FFmpegPath),
		groqClient,
		extract.NewAnalyzer(groqClient.Extractor()),
		report.NewRenderer(),
		engine,
		session.Paths{
			LiveDir:       cfg.LiveDir(),
			TranscriptDir: cfg.TranscriptDir(),
			AnalysisDir:   cfg.AnalysisDir(),
			NotesDir:      cfg.NotesDir(),
			ReportDir:     cfg.ReportDir(),
		},
	)

	service := api.NewService(pipeline, engine, cfg.ReportDir())

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           service.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("Shutting down")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Graceful shutdown failed, closing")
			_ = server.Close()
		}
	}()

	log.Info().
		Str("addr", cfg.ListenAddr).
		Str("dataDir", cfg.DataDir).
		Str("version", Version).
		Msg("Starting hearsay server")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}

	<-ctx.Done()
	log.Info().Msg("Server stopped")
}
