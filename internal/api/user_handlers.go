package api

import (
	"net/http"

	"github.com/vytor/drillbot/internal/conversation"
	"github.com/vytor/drillbot/internal/services"
)

type registerRequest struct {
	Channel    string `json:"channel"`
	ExternalID string `json:"external_id"`
	Name       string `json:"name"`
}

func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	user, err := s.UserService.Register(r.Context(), req.Channel, req.ExternalID, req.Name)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, user)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	user, err := s.UserService.GetUser(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, user)
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req struct {
		Active bool `json:"active"`
	}
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	if err := s.UserService.SetActive(r.Context(), id, req.Active); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"user_id": id, "active": req.Active})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	state, err := s.Conversation.Session(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, state)
}

// handleStartDrill starts a drill on behalf of the user. With force=true an
// outstanding question is abandoned instead of re-sent.
func (s *Server) handleStartDrill(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	force, err := boolQuery(r, "force")
	if err != nil {
		handleError(w, r, err)
		return
	}

	out, err := s.Conversation.StartDrill(r.Context(), id, conversation.StartOptions{
		Trigger: conversation.TriggerAPI,
		Force:   force,
	})
	if err != nil && !recovered(out, err) {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	out, err := s.Conversation.Cancel(r.Context(), id, r.URL.Query().Get("reason"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	limit, err := intQuery(r, "limit")
	if err != nil {
		handleError(w, r, err)
		return
	}

	entries, err := s.UserService.MessageHistory(r.Context(), id, limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"messages": entries})
}

func (s *Server) handleListMistakes(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	mistakes, err := s.MistakeService.ListPending(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	due, err := s.MistakeService.CountDue(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"mistakes": mistakes, "due": due})
}

func (s *Server) handleCreateMistake(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var in services.MistakeInput
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, err)
		return
	}

	m, err := s.MistakeService.RecordMistake(r.Context(), id, in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, m)
}
