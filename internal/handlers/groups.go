package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/muraselchat/murasel-backend/internal/auth"
	"github.com/muraselchat/murasel-backend/internal/services"
)

// GroupHandler is the HTTP surface for group messaging.
type GroupHandler struct {
	svc *services.MessageService
}

func NewGroupHandler(svc *services.MessageService) *GroupHandler {
	return &GroupHandler{svc: svc}
}

// SendMessage handles POST /api/groups/{id}/messages.
func (h *GroupHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var in services.SendMessageInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondJSON(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	msg, err := h.svc.SendGroup(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, "message sent", map[string]any{"message": msg})
}
