package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/muraselchat/murasel-backend/pkg/apperr"
)

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{Success: status < 400, Message: message, Data: data})
}

// respondError maps the error taxonomy onto HTTP statuses. Unclassified errors
// are treated as transient.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusServiceUnavailable
	message := "service temporarily unavailable"

	var ae *apperr.Error
	if errors.As(err, &ae) {
		message = ae.Msg
		switch ae.Kind {
		case apperr.NotFound:
			status = http.StatusNotFound
		case apperr.Forbidden:
			status = http.StatusForbidden
		case apperr.InvalidState:
			status = http.StatusConflict
		case apperr.Expired:
			status = http.StatusGone
		case apperr.Decryption:
			status = http.StatusInternalServerError
		case apperr.Transient:
			status = http.StatusServiceUnavailable
		}
	}

	if status >= 500 {
		log.Printf("handler error: %v", err)
	}
	respondJSON(w, status, message, nil)
}
