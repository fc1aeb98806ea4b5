package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/vytor/drillbot/internal/conversation"
	"github.com/vytor/drillbot/internal/errors"
	"github.com/vytor/drillbot/internal/logger"
	"github.com/vytor/drillbot/internal/models"
)

// gupshupEvent is the subset of a Gupshup WhatsApp callback we consume.
type gupshupEvent struct {
	App       string `json:"app"`
	Timestamp int64  `json:"timestamp"`
	Type      string `json:"type"`
	Payload   struct {
		ID      string `json:"id"`
		Source  string `json:"source"`
		Type    string `json:"type"`
		Payload struct {
			Text string `json:"text"`
		} `json:"payload"`
		Sender struct {
			Phone string `json:"phone"`
			Name  string `json:"name"`
		} `json:"sender"`
	} `json:"payload"`
}

func (e gupshupEvent) receivedAt() time.Time {
	if e.Timestamp <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(e.Timestamp).UTC()
}

// handleGupshupVerify answers the subscription handshake by echoing hub.challenge.
func (s *Server) handleGupshupVerify(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	q := r.URL.Query()

	if q.Get("hub.mode") != "subscribe" || q.Get("hub.verify_token") != s.VerifyToken {
		log.Warn("webhook verification rejected: mode=%s", q.Get("hub.mode"))
		http.Error(w, "verification failed", http.StatusForbidden)
		return
	}

	log.Info("webhook verified")
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(q.Get("hub.challenge")))
}

// handleGupshupEvent registers the sender and queues the message. Events other
// than text messages are acknowledged and dropped.
func (s *Server) handleGupshupEvent(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var ev gupshupEvent
	if err := decodeJSON(r, &ev); err != nil {
		handleError(w, r, err)
		return
	}
	text := strings.TrimSpace(ev.Payload.Payload.Text)
	if ev.Type != "message" || text == "" {
		log.Debug("ignoring gupshup event: type=%s payload_type=%s", ev.Type, ev.Payload.Type)
		writeJSON(w, r, http.StatusOK, map[string]any{"status": "ignored"})
		return
	}
	if ev.Payload.ID == "" || ev.Payload.Source == "" {
		handleError(w, r, errors.NewValidationError("payload", "id and source are required"))
		return
	}

	user, err := s.UserService.Register(r.Context(), models.ChannelWhatsApp, ev.Payload.Source, ev.Payload.Sender.Name)
	if err != nil {
		handleError(w, r, err)
		return
	}

	msg := conversation.InboundMessage{
		UserID:     user.ID,
		Text:       text,
		MessageID:  "wa:" + ev.Payload.ID,
		ReceivedAt: ev.receivedAt(),
	}
	if err := s.Queue.EnqueueInbound(msg); err != nil {
		handleError(w, r, errors.NewInternalError(err))
		return
	}

	log.Debug("gupshup message queued: user_id=%d message_id=%s", user.ID, msg.MessageID)
	writeJSON(w, r, http.StatusOK, map[string]any{"status": "queued"})
}
