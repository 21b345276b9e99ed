// Package main provides the inbox ingestion daemon. It watches a directory
// for dropped recordings and runs each one through the full pipeline.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hearsay-ai/hearsay/internal/config"
	"github.com/hearsay-ai/hearsay/internal/embed"
	"github.com/hearsay-ai/hearsay/internal/extract"
	"github.com/hearsay-ai/hearsay/internal/groq"
	"github.com/hearsay-ai/hearsay/internal/ingest"
	"github.com/hearsay-ai/hearsay/internal/media"
	"github.com/hearsay-ai/hearsay/internal/rag"
	"github.com/hearsay-ai/hearsay/internal/report"
	"github.com/hearsay-ai/hearsay/internal/session"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (optional)")
	modeFlag := flag.String("mode", "analysis", "Report mode for ingested files: analysis, notes, or both")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	mode, ok := session.ParseOutputMode(*modeFlag)
	if !ok {
		log.Fatal().Str("mode", *modeFlag).Msg("Unknown mode, expected analysis, notes, or both")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
		cfg = config.Default()
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

	ingester, err := ingest.New(cfg.InboxDir(), cfg.ProcessedPath(), pipeline, mode)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize ingester")
	}
	if err := ingester.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start ingester")
	}

	log.Info().
		Str("inbox", cfg.InboxDir()).
		Str("mode", string(mode)).
		Msg("Watching inbox for recordings")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("Shutting down")
	if err := ingester.Stop(); err != nil {
		log.Warn().Err(err).Msg("Ingester stop failed")
	}
}
