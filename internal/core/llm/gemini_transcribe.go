package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/docwise-ai/docwise/internal/core"
	"github.com/docwise-ai/docwise/internal/models"
)

const transcribePrompt = `Transcribe this recording into utterance segments.
Respond with a JSON array only, no prose, one object per segment:
[{"start": 0.0, "end": 4.2, "text": "..."}]
start and end are seconds from the beginning, in non-decreasing start order.`

// GeminiTranscriber implements speech-to-text over Gemini's multimodal
// input: the audio/video bytes go in as a blob, segments come back as JSON.
type GeminiTranscriber struct {
	client    *genai.Client
	modelName string
}

func NewGeminiTranscriber(ctx context.Context, apiKey, modelName string) (*GeminiTranscriber, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiTranscriber{client: cl, modelName: modelName}, nil
}

func (g *GeminiTranscriber) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiTranscriber) Transcribe(ctx context.Context, data []byte, mimeType string) ([]models.Segment, error) {
	m := g.client.GenerativeModel(g.modelName)

	resp, err := m.GenerateContent(ctx,
		genai.Blob{MIMEType: mimeType, Data: data},
		genai.Text(transcribePrompt),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini transcribe: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini transcribe: empty response")
	}

	var raw strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			raw.WriteString(string(t))
		}
	}
	return ParseSegments(raw.String())
}

// ParseSegments decodes the model's JSON segment list, tolerating a
// markdown code fence around the payload.
func ParseSegments(raw string) ([]models.Segment, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
		raw = strings.TrimSpace(raw)
	}

	var segments []models.Segment
	if err := json.Unmarshal([]byte(raw), &segments); err != nil {
		return nil, fmt.Errorf("parse transcript segments: %w", err)
	}
	return segments, nil
}

var _ core.Transcriber = (*GeminiTranscriber)(nil)
