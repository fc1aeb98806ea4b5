package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const apiTimeout = 30 * time.Second

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)
	r.Use(securityHeadersMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/webhook", func(r chi.Router) {
		r.Post("/messages", s.handleInboundMessage)
		r.Get("/gupshup", s.handleGupshupVerify)
		r.Post("/gupshup", s.handleGupshupEvent)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(timeoutMiddleware(apiTimeout))

		r.Post("/users", s.handleRegisterUser)
		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetUser)
			r.Put("/active", s.handleSetActive)
			r.Get("/session", s.handleSession)
			r.Post("/drill", s.handleStartDrill)
			r.Post("/cancel", s.handleCancel)
			r.Get("/messages", s.handleMessages)
			r.Get("/mistakes", s.handleListMistakes)
			r.Post("/mistakes", s.handleCreateMistake)
		})

		r.Post("/scans/due", s.handleQueueDueScan)
		r.Post("/scans/nudge", s.handleQueueNudgeScan)
		r.Post("/outbox/flush", s.handleQueueOutboxFlush)
	})

	return r
}
