package api

import (
	"net/http"

	"github.com/vytor/drillbot/internal/logger"
)

// handleHealth returns a liveness probe - always returns 200 OK.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleReady checks the database and reports the size of the question bank.
// Returns 503 when the database is unreachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if err := s.Store.Ping(ctx); err != nil {
		log.Warn("readiness check failed - database: %v", err)
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]any{"status": "database unavailable"})
		return
	}

	count, err := s.Store.Repos().Questions.Count(ctx)
	if err != nil {
		log.Warn("readiness check failed - questions: %v", err)
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]any{"status": "question bank unavailable"})
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{"status": "ready", "questions": count})
}
