package core

import (
	"context"

	"github.com/docwise-ai/docwise/internal/models"
)

// Extractor converts a raw uploaded file into text units with positional
// anchors: one unit per page for documents, one per transcript segment
// for media. Extraction is all-or-nothing per file; a partially indexed
// file would silently omit content from later answers.
type Extractor interface {
	Extract(ctx context.Context, data []byte, contentType string) ([]models.Unit, error)
}
