package handlers

import (
	"net/http"

	"github.com/muraselchat/murasel-backend/internal/services"
)

// maxUploadSize caps message attachments at 25 MB.
const maxUploadSize = 25 << 20

// UploadHandler accepts message attachments and stores them in Cloudinary.
type UploadHandler struct {
	media *services.MediaService
}

func NewUploadHandler(media *services.MediaService) *UploadHandler {
	return &UploadHandler{media: media}
}

// Upload handles POST /api/upload. The returned media reference is attached to
// a subsequent message send; attachment metadata is not encrypted.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.media == nil {
		respondJSON(w, http.StatusServiceUnavailable, "uploads are not configured", nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondJSON(w, http.StatusBadRequest, "file too large or malformed form", nil)
		return
	}

	_, fh, err := r.FormFile("file")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, "file is required", nil)
		return
	}

	folder := r.FormValue("folder")
	if folder == "" {
		folder = "murasel/messages"
	}

	media, err := h.media.UploadFromHeader(r.Context(), fh, folder)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, "file uploaded", map[string]any{"media": media})
}
