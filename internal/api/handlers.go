// Package api exposes the HTTP surface: inbound webhooks, session and admin
// endpoints, and health probes.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/vytor/drillbot/internal/conversation"
	"github.com/vytor/drillbot/internal/errors"
	"github.com/vytor/drillbot/internal/jobs"
	"github.com/vytor/drillbot/internal/logger"
	"github.com/vytor/drillbot/internal/models"
	"github.com/vytor/drillbot/internal/repository"
	"github.com/vytor/drillbot/internal/services"
)

type Server struct {
	Conversation   conversation.Service
	UserService    services.UserService
	MistakeService services.MistakeService
	Queue          jobs.JobQueue
	Store          repository.Store
	VerifyToken    string
}

type inboundRequest struct {
	Channel    string    `json:"channel"`
	ExternalID string    `json:"external_id"`
	Name       string    `json:"name"`
	Text       string    `json:"text"`
	MessageID  string    `json:"message_id"`
	ReceivedAt time.Time `json:"received_at"`
}

type inboundResponse struct {
	User    *models.User          `json:"user"`
	Outcome *conversation.Outcome `json:"outcome"`
}

// handleInboundMessage processes one message synchronously and returns what the
// state machine did with it.
func (s *Server) handleInboundMessage(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req inboundRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	if req.Channel == "" {
		req.Channel = models.ChannelWebhook
	}
	if strings.TrimSpace(req.MessageID) == "" {
		handleError(w, r, errors.NewValidationError("message_id", "cannot be empty"))
		return
	}

	user, err := s.UserService.Register(r.Context(), req.Channel, req.ExternalID, req.Name)
	if err != nil {
		handleError(w, r, err)
		return
	}
	log = log.WithFields(map[string]any{"user_id": user.ID, "message_id": req.MessageID})
	ctx := logger.NewContext(r.Context(), log)

	out, err := s.Conversation.HandleInbound(ctx, conversation.InboundMessage{
		UserID:     user.ID,
		Text:       req.Text,
		MessageID:  req.MessageID,
		ReceivedAt: req.ReceivedAt,
	})
	if err != nil && !recovered(out, err) {
		handleError(w, r.WithContext(ctx), err)
		return
	}
	if err != nil {
		log.Warn("inbound handled with session reset: %v", err)
	}

	writeJSON(w, r, http.StatusOK, inboundResponse{User: user, Outcome: out})
}

// recovered reports whether the machine reset the session after a transition
// referenced missing data. The reset itself is a valid reply to the sender.
func recovered(out *conversation.Outcome, err error) bool {
	return out != nil && errors.IsCode(err, errors.ErrCodeNotFound)
}
