package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/muraselchat/murasel-backend/internal/auth"
	"github.com/muraselchat/murasel-backend/internal/models"
	"github.com/muraselchat/murasel-backend/internal/storage"
	"github.com/muraselchat/murasel-backend/pkg/apperr"
	"github.com/muraselchat/murasel-backend/pkg/utils"
)

// AuthHandler covers account registration and login.
type AuthHandler struct {
	users storage.UserStore
	auth  *auth.Auth
}

func NewAuthHandler(users storage.UserStore, a *auth.Auth) *AuthHandler {
	return &AuthHandler{users: users, auth: a}
}

type registerRequest struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register creates an account and issues an access token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	req.Username = strings.TrimSpace(strings.ToLower(req.Username))
	if req.Username == "" || len(req.Password) < 8 {
		respondJSON(w, http.StatusBadRequest, "username and a password of at least 8 characters are required", nil)
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		respondError(w, err)
		return
	}

	user := &models.User{
		Username: req.Username,
		FullName: strings.TrimSpace(req.FullName),
		Phone:    strings.TrimSpace(req.Phone),
		Password: hash,
		Settings: models.UserSettings{
			Notifications: models.NotificationSettings{Push: true},
		},
	}
	if err := h.users.CreateUser(r.Context(), user); err != nil {
		respondError(w, err)
		return
	}

	token, err := h.auth.Sign(user.ID.Hex(), user.Username)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, "account created", authResponse{Token: token, User: user})
}

// Login verifies credentials and issues an access token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	user, err := h.users.GetUserByUsername(r.Context(), strings.TrimSpace(strings.ToLower(req.Username)))
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			respondJSON(w, http.StatusUnauthorized, "invalid credentials", nil)
			return
		}
		respondError(w, err)
		return
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		respondJSON(w, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}

	token, err := h.auth.Sign(user.ID.Hex(), user.Username)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, "signed in", authResponse{Token: token, User: user})
}

type fcmTokenRequest struct {
	Token  string `json:"token"`
	Device string `json:"device"`
}

// RegisterFCMToken records a push device token for the authenticated user.
func (h *AuthHandler) RegisterFCMToken(w http.ResponseWriter, r *http.Request) {
	var req fcmTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		respondJSON(w, http.StatusBadRequest, "token is required", nil)
		return
	}

	if err := h.users.AddFCMToken(r.Context(), auth.UserID(r.Context()), req.Token, req.Device); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, "token registered", nil)
}
