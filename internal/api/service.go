// Package api exposes the HTTP and WebSocket surface of hearsay.
package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/hearsay-ai/hearsay/internal/rag"
	"github.com/hearsay-ai/hearsay/internal/session"
)

// SessionRunner is the session pipeline surface the API depends on.
type SessionRunner interface {
	Run(ctx context.Context, sessionID string, ch session.Channel) error
	ProcessUpload(ctx context.Context, mediaFile io.Reader, mode session.OutputMode) (*session.UploadResult, error)
}

// Retriever is the retrieval engine surface the API depends on.
type Retriever interface {
	IndexSession(ctx context.Context, sessionID string) (int, error)
	RebuildAll(ctx context.Context) (map[string]rag.SessionResult, error)
	Search(ctx context.Context, query string, topK int) ([]rag.Hit, error)
	Answer(ctx context.Context, question string, topK int) (string, error)
}

// Service wires the HTTP routes to the pipeline and the retrieval engine.
type Service struct {
	pipeline  SessionRunner
	retriever Retriever
	reportDir string
	router    chi.Router
	upgrader  websocket.Upgrader
}

// NewService creates the API service and its router.
func NewService(pipeline SessionRunner, retriever Retriever, reportDir string) *Service {
	s := &Service{
		pipeline:  pipeline,
		retriever: retriever,
		reportDir: reportDir,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1 << 16,
			WriteBufferSize: 1 << 12,
			// Browser clients connect straight from the web app.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.setupRoutes()
	return s
}

// Router returns the HTTP handler for the service.
func (s *Service) Router() http.Handler { return s.router }

func (s *Service) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(allowAllCORS)

	r.Get("/healthz", s.handleHealth)
	r.Get("/ws/live/{sessionID}", s.handleLiveSession)
	r.Post("/upload-video", s.handleUpload)
	r.Get("/live-report/{sessionID}", s.handleReport)

	r.Route("/rag", func(r chi.Router) {
		r.Post("/store_all", s.handleStoreAll)
		r.Post("/store/{sessionID}", s.handleStoreOne)
		r.Post("/query", s.handleQuery)
	})

	s.router = r
}

// requestLogger logs one structured event per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request served")
	})
}

// allowAllCORS applies the permissive policy the web client relies on: any
// origin, any method, any header.
func allowAllCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
