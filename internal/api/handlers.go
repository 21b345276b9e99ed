package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/hearsay-ai/hearsay/internal/session"
)

// maxUploadBytes bounds in-memory multipart parsing for media uploads.
const maxUploadBytes = 512 << 20

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLiveSession upgrades the connection and hands it to the session
// pipeline. The connection lives exactly as long as the session.
func (s *Service) handleLiveSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	if err := s.pipeline.Run(r.Context(), sessionID, newWSChannel(conn)); err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("Live session ended with error")
	}
}

func (s *Service) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, "invalid upload: "+err.Error())
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, "missing media file: "+err.Error())
		return
	}
	defer file.Close()

	mode, ok := session.ParseOutputMode(r.FormValue("output_type"))
	if !ok {
		mode = session.OutputAnalysis
	}

	result, err := s.pipeline.ProcessUpload(r.Context(), file, mode)
	if err != nil {
		writeError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"analysis":   "/live-report/" + result.AnalysisReport,
		"notes":      "/live-report/" + result.NotesReport,
		"session_id": result.SessionID,
	})
}

// handleReport serves a rendered report. Live sessions write mode-suffixed
// files, so the bare name is probed first and the suffixed names after.
func (s *Service) handleReport(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	candidates := []string{
		sessionID + ".md",
		sessionID + "_analysis.md",
		sessionID + "_notes.md",
	}
	for _, name := range candidates {
		path := filepath.Join(s.reportDir, name)
		if _, err := os.Stat(path); err == nil {
			w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
			http.ServeFile(w, r, path)
			return
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "report not found"})
}

func (s *Service) handleStoreAll(w http.ResponseWriter, r *http.Request) {
	results, err := s.retriever.RebuildAll(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Store rebuild failed")
		writeError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "data": results})
}

func (s *Service) handleStoreOne(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	chunks, err := s.retriever.IndexSession(r.Context(), sessionID)
	if err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("Session indexing failed")
		writeError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"data":   map[string]any{"status": "ok", "chunks": chunks},
	})
}

type queryRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

// handleQuery never propagates failures: every error is captured into an
// {error: message} body.
func (s *Service) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid query: "+err.Error())
		return
	}

	hits, err := s.retriever.Search(r.Context(), req.Question, req.TopK)
	if err != nil {
		log.Error().Err(err).Msg("Search failed")
		writeError(w, err.Error())
		return
	}

	answer, err := s.retriever.Answer(r.Context(), req.Question, req.TopK)
	if err != nil {
		log.Error().Err(err).Msg("Answer synthesis failed")
		writeError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results": map[string]any{"hits": hits},
		"answer":  answer,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

// writeError returns the {error: message} envelope with a 200 status, which
// is what the frontend expects from every endpoint.
func writeError(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]string{"error": message})
}
