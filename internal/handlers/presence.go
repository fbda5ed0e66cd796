package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/muraselchat/murasel-backend/internal/models"
	"github.com/muraselchat/murasel-backend/internal/storage"
)

// PresenceReader is the cached liveness view, normally Redis-backed so it
// covers connections on any instance.
type PresenceReader interface {
	IsOnline(ctx context.Context, userID string) (bool, error)
	LastSeen(ctx context.Context, userID string) (time.Time, bool)
}

// PresenceHandler answers "is this user online, and if not, when were they
// last seen". The cache is consulted first; the persisted user document is the
// fallback when the cache is cold or unavailable.
type PresenceHandler struct {
	users storage.UserStore
	cache PresenceReader
}

func NewPresenceHandler(users storage.UserStore, cache PresenceReader) *PresenceHandler {
	return &PresenceHandler{users: users, cache: cache}
}

type presenceResponse struct {
	UserID   string     `json:"user_id"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

// Presence handles GET /api/users/{userID}/presence.
func (h *PresenceHandler) Presence(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ctx := r.Context()

	if h.cache != nil {
		if online, err := h.cache.IsOnline(ctx, userID); err == nil {
			if online {
				respondJSON(w, http.StatusOK, "presence", presenceResponse{UserID: userID, Online: true})
				return
			}
			if lastSeen, ok := h.cache.LastSeen(ctx, userID); ok {
				respondJSON(w, http.StatusOK, "presence", presenceResponse{UserID: userID, LastSeen: &lastSeen})
				return
			}
		}
	}

	u, err := h.users.GetUser(ctx, userID)
	if err != nil {
		respondError(w, err)
		return
	}
	resp := presenceResponse{UserID: userID, Online: u.Status == models.StatusOnline}
	if !resp.Online && !u.LastSeen.IsZero() {
		lastSeen := u.LastSeen
		resp.LastSeen = &lastSeen
	}
	respondJSON(w, http.StatusOK, "presence", resp)
}
