package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	appMiddleware "github.com/docwise-ai/docwise/internal/api/middlewares"
	"github.com/docwise-ai/docwise/internal/core"
	"github.com/docwise-ai/docwise/internal/core/retrieval"
	"github.com/docwise-ai/docwise/internal/models"
	"github.com/docwise-ai/docwise/internal/services"
)

type SearchHandler struct {
	docs   *services.DocumentService
	engine *retrieval.Engine
	log    *zap.Logger
}

func NewSearchHandler(docs *services.DocumentService, engine *retrieval.Engine, log *zap.Logger) *SearchHandler {
	return &SearchHandler{docs: docs, engine: engine, log: log}
}

type searchRequest struct {
	FileID string `json:"file_id"`
	Query  string `json:"query"`
	TopK   int    `json:"top_k"`
}

type searchResult struct {
	Text   string        `json:"text"`
	Score  float64       `json:"score"`
	Anchor models.Anchor `json:"anchor"`
	Label  string        `json:"label"`
	Seq    int           `json:"seq"`
}

// Search returns raw ranked chunks for a query, without answer generation.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := appMiddleware.UserID(ctx)

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FileID == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusOK, []searchResult{})
		return
	}

	if _, err := h.docs.Get(ctx, userID, req.FileID); err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	hits, err := h.engine.Retrieve(ctx, req.FileID, req.Query, req.TopK)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrNotReady):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, core.ErrConfigMismatch), errors.Is(err, core.ErrIndexCorruption):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			h.log.Error("search failed", zap.String("file_id", req.FileID), zap.Error(err))
			http.Error(w, "search failed", http.StatusInternalServerError)
		}
		return
	}

	out := make([]searchResult, len(hits))
	for i, hit := range hits {
		out[i] = searchResult{
			Text:   hit.Chunk.Text,
			Score:  hit.Score,
			Anchor: hit.Chunk.Anchor,
			Label:  hit.Chunk.Anchor.String(),
			Seq:    hit.Chunk.Seq,
		}
	}
	writeJSON(w, http.StatusOK, out)
}
