package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"code.sajari.com/docconv"

	"github.com/docwise-ai/docwise/internal/core"
	"github.com/docwise-ai/docwise/internal/models"
)

// documentTypes are the containers the document extractor recognizes.
var documentTypes = map[string]bool{
	"application/pdf": true,
	"text/plain":      true,
}

// DocconvExtractor extracts page-anchored text from documents using
// sajari/docconv. pdftotext separates pages with a form feed, which is
// what gives us 1-based page anchors.
type DocconvExtractor struct {
	useReadability bool
}

func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{useReadability: useReadability}
}

var _ core.Extractor = (*DocconvExtractor)(nil)

func (e *DocconvExtractor) Extract(ctx context.Context, data []byte, contentType string) ([]models.Unit, error) {
	if !documentTypes[contentType] {
		return nil, fmt.Errorf("%w: content type %q", core.ErrUnsupportedFormat, contentType)
	}

	res, err := docconv.Convert(bytes.NewReader(data), contentType, e.useReadability)
	if err != nil {
		return nil, fmt.Errorf("%w: docconv %s: %v", core.ErrExtractionFailed, contentType, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(res.Body) == "" {
		return nil, fmt.Errorf("%w: empty document body", core.ErrExtractionFailed)
	}

	return SplitPages(res.Body), nil
}

// SplitPages turns extracted text into one unit per page, splitting on
// pdftotext's form-feed page breaks. Blank pages keep their page number
// but produce no unit. Hyphenation at line ends is re-joined and
// whitespace collapsed; this normalization is best-effort, not lossless.
func SplitPages(body string) []models.Unit {
	pages := strings.Split(body, "\f")
	var units []models.Unit
	for i, page := range pages {
		text := normalizePage(page)
		if text == "" {
			continue
		}
		units = append(units, models.Unit{
			Text:   text,
			Anchor: models.Anchor{Page: i + 1},
		})
	}
	return units
}

func normalizePage(page string) string {
	// Re-join words hyphenated across line breaks before flattening lines.
	page = strings.ReplaceAll(page, "-\n", "")
	lines := strings.Split(page, "\n")
	var kept []string
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
