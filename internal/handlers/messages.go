package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/muraselchat/murasel-backend/internal/auth"
	"github.com/muraselchat/murasel-backend/internal/services"
)

// MessageHandler is the HTTP surface of the message state machine.
type MessageHandler struct {
	svc *services.MessageService
}

func NewMessageHandler(svc *services.MessageService) *MessageHandler {
	return &MessageHandler{svc: svc}
}

// Send handles POST /api/messages.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var in services.SendMessageInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondJSON(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if in.ReceiverID == "" {
		respondJSON(w, http.StatusBadRequest, "receiver_id is required", nil)
		return
	}

	msg, err := h.svc.Send(r.Context(), auth.UserID(r.Context()), in)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, "message sent", map[string]any{"message": msg})
}

// Conversation handles GET /api/messages/{userID}?before=&limit=.
func (h *MessageHandler) Conversation(w http.ResponseWriter, r *http.Request) {
	otherID := chi.URLParam(r, "userID")

	var before *time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, "before must be RFC3339", nil)
			return
		}
		before = &t
	}
	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)

	msgs, err := h.svc.GetConversation(r.Context(), auth.UserID(r.Context()), otherID, before, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, "conversation retrieved", map[string]any{"messages": msgs})
}

type markReadRequest struct {
	MessageIDs []string `json:"message_ids"`
}

// MarkRead handles PUT /api/messages/read.
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	if err := h.svc.MarkRead(r.Context(), auth.UserID(r.Context()), req.MessageIDs); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, "messages marked as read", nil)
}

type reactionRequest struct {
	Emoji string `json:"emoji"`
}

// React handles POST /api/messages/{id}/reaction.
func (h *MessageHandler) React(w http.ResponseWriter, r *http.Request) {
	var req reactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Emoji == "" {
		respondJSON(w, http.StatusBadRequest, "emoji is required", nil)
		return
	}

	if err := h.svc.React(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), req.Emoji); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, "reaction added", nil)
}

type editRequest struct {
	Content string `json:"content"`
}

// Edit handles PUT /api/messages/{id}.
func (h *MessageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		respondJSON(w, http.StatusBadRequest, "content is required", nil)
		return
	}

	msg, err := h.svc.Edit(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), req.Content)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, "message edited", map[string]any{"message": msg})
}

type deleteRequest struct {
	ForEveryone bool `json:"for_everyone"`
}

// Delete handles DELETE /api/messages/{id}.
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.svc.Delete(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), req.ForEveryone); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, "message deleted", nil)
}

// UnreadCounts handles GET /api/messages/unread/count.
func (h *MessageHandler) UnreadCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.UnreadCounts(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, "unread counts", map[string]any{"counts": counts})
}
