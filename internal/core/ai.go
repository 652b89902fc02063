package core

import (
	"context"

	"github.com/docwise-ai/docwise/internal/models"
)

// EmbeddingProvider turns text into fixed-length vectors. The returned
// slice has the same length and order as the input; other components
// rely on that to re-associate vectors with chunks.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Config() models.EmbeddingConfig
}

// CompletionProvider generates natural-language answers.
// StreamGenerate invokes onToken for each token as it arrives; returning
// an error from onToken aborts the in-flight provider call.
type CompletionProvider interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	StreamGenerate(ctx context.Context, systemPrompt, userPrompt string, onToken func(token string) error) error
}

// Transcriber converts audio/video bytes into ordered transcript segments.
type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, mimeType string) ([]models.Segment, error)
}
