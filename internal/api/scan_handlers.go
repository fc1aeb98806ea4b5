package api

import (
	"net/http"

	"github.com/vytor/drillbot/internal/errors"
	"github.com/vytor/drillbot/internal/logger"
)

func (s *Server) handleQueueDueScan(w http.ResponseWriter, r *http.Request) {
	s.queue(w, r, "due_scan", s.Queue.EnqueueDueScan)
}

func (s *Server) handleQueueNudgeScan(w http.ResponseWriter, r *http.Request) {
	s.queue(w, r, "nudge_scan", s.Queue.EnqueueNudgeScan)
}

func (s *Server) handleQueueOutboxFlush(w http.ResponseWriter, r *http.Request) {
	s.queue(w, r, "outbox_flush", s.Queue.EnqueueOutboxFlush)
}

func (s *Server) queue(w http.ResponseWriter, r *http.Request, job string, enqueue func() error) {
	if err := enqueue(); err != nil {
		handleError(w, r, errors.NewInternalError(err))
		return
	}
	logger.FromContext(r.Context()).Info("queued %s", job)
	writeJSON(w, r, http.StatusAccepted, map[string]any{"status": "queued", "job": job})
}
