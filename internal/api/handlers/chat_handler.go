package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	appMiddleware "github.com/docwise-ai/docwise/internal/api/middlewares"
	"github.com/docwise-ai/docwise/internal/core"
	"github.com/docwise-ai/docwise/internal/core/retrieval"
	"github.com/docwise-ai/docwise/internal/services"
)

type ChatHandler struct {
	docs   *services.DocumentService
	engine *retrieval.Engine
	log    *zap.Logger
}

func NewChatHandler(docs *services.DocumentService, engine *retrieval.Engine, log *zap.Logger) *ChatHandler {
	return &ChatHandler{docs: docs, engine: engine, log: log}
}

type chatRequest struct {
	FileID   string `json:"file_id"`
	Question string `json:"question"`
}

// Query streams a grounded answer over SSE. Event types: "token" for
// each answer fragment, one terminal "citations" or "error", then
// "done". Closing the connection cancels the request context, which
// aborts the in-flight provider call.
func (h *ChatHandler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := appMiddleware.UserID(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FileID == "" || req.Question == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	// Ownership gate before any retrieval work.
	if _, err := h.docs.Get(ctx, userID, req.FileID); err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	events, err := h.engine.Answer(ctx, req.FileID, req.Question)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrNotReady):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, core.ErrConfigMismatch), errors.Is(err, core.ErrIndexCorruption):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, core.ErrFileNotFound):
			http.Error(w, "file not found", http.StatusNotFound)
		default:
			h.log.Error("answer failed", zap.String("file_id", req.FileID), zap.Error(err))
			http.Error(w, "query failed", http.StatusInternalServerError)
		}
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for ev := range events {
		switch {
		case ev.Err != nil:
			writeSSE(w, "error", map[string]string{"message": ev.Err.Error()})
		case ev.Citations != nil:
			writeSSE(w, "citations", ev.Citations)
		default:
			writeSSE(w, "token", map[string]string{"text": ev.Token})
		}
		flusher.Flush()
	}

	writeSSE(w, "done", map[string]string{})
	flusher.Flush()
}

func writeSSE(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
