package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	appMiddleware "github.com/docwise-ai/docwise/internal/api/middlewares"
	"github.com/docwise-ai/docwise/internal/core"
	"github.com/docwise-ai/docwise/internal/services"
)

type FileHandler struct {
	docs        *services.DocumentService
	maxUploadMB int
	log         *zap.Logger
}

func NewFileHandler(docs *services.DocumentService, maxUploadMB int, log *zap.Logger) *FileHandler {
	return &FileHandler{docs: docs, maxUploadMB: maxUploadMB, log: log}
}

// Upload accepts a multipart PDF/audio/video file, stores it and kicks
// off background ingestion. The response carries the file in its
// uploaded state; clients poll GET /files/{id} until ready or failed.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := appMiddleware.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	maxBytes := int64(h.maxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		http.Error(w, "file too large or malformed upload", http.StatusRequestEntityTooLarge)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "invalid file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	name := header.Filename
	if v := r.FormValue("file_name"); v != "" {
		name = v
	}

	doc, err := h.docs.UploadAndCreate(r.Context(), userID, name, contentType, file)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrUnsupportedFormat):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, core.ErrQuotaExceeded):
			http.Error(w, err.Error(), http.StatusTooManyRequests)
		default:
			h.log.Error("upload failed", zap.Error(err))
			http.Error(w, "upload failed", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := appMiddleware.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	files, err := h.docs.ListByOwner(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (h *FileHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := appMiddleware.UserID(r.Context())
	file, err := h.docs.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, core.ErrFileNotFound) {
			http.Error(w, "file not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, file)
}

func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := appMiddleware.UserID(r.Context())
	if err := h.docs.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, core.ErrFileNotFound) {
			http.Error(w, "file not found", http.StatusNotFound)
			return
		}
		h.log.Error("delete failed", zap.Error(err))
		http.Error(w, "delete failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *FileHandler) Reingest(w http.ResponseWriter, r *http.Request) {
	userID, _ := appMiddleware.UserID(r.Context())
	if err := h.docs.Reingest(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, core.ErrFileNotFound) {
			http.Error(w, "file not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "queued"})
}

func (h *FileHandler) UploadCount(w http.ResponseWriter, r *http.Request) {
	userID, _ := appMiddleware.UserID(r.Context())
	used, limit, err := h.docs.UploadQuota(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"count": used, "limit": limit, "remaining": remaining,
	})
}
