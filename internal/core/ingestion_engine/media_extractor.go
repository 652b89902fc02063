package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cenkalti/backoff/v4"

	"github.com/docwise-ai/docwise/internal/core"
	"github.com/docwise-ai/docwise/internal/models"
)

var mediaTypes = map[string]bool{
	"audio/mpeg": true, "audio/wav": true, "audio/mp4": true,
	"audio/x-m4a": true, "audio/webm": true, "audio/ogg": true,
	"video/mp4": true, "video/webm": true, "video/quicktime": true,
	"video/x-msvideo": true, "video/ogg": true,
}

// MediaExtractor turns audio/video into time-anchored units, one per
// transcribed segment. Segments are ordered by non-decreasing start time.
// Transient provider failures are retried with backoff up to maxAttempts
// before the file is declared failed.
type MediaExtractor struct {
	transcriber core.Transcriber
	maxAttempts int
}

func NewMediaExtractor(t core.Transcriber, maxAttempts int) *MediaExtractor {
	if maxAttempts <= 0 {
		maxAttempts = 4
	}
	return &MediaExtractor{transcriber: t, maxAttempts: maxAttempts}
}

var _ core.Extractor = (*MediaExtractor)(nil)

func (e *MediaExtractor) Extract(ctx context.Context, data []byte, contentType string) ([]models.Unit, error) {
	if !mediaTypes[contentType] {
		return nil, fmt.Errorf("%w: content type %q", core.ErrUnsupportedFormat, contentType)
	}

	segments, err := e.transcribe(ctx, data, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: transcribe: %v", core.ErrExtractionFailed, err)
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: no transcript segments", core.ErrExtractionFailed)
	}

	sort.SliceStable(segments, func(a, b int) bool {
		return segments[a].Start < segments[b].Start
	})

	units := make([]models.Unit, 0, len(segments))
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		units = append(units, models.Unit{
			Text:   text,
			Anchor: models.Anchor{StartSec: seg.Start, EndSec: seg.End},
		})
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("%w: transcript is empty", core.ErrExtractionFailed)
	}
	return units, nil
}

// transcribe is one provider call wrapped in the retry policy: timeouts
// and other transient errors back off exponentially, caller cancellation
// stops immediately.
func (e *MediaExtractor) transcribe(ctx context.Context, data []byte, contentType string) ([]models.Segment, error) {
	var segments []models.Segment

	op := func() error {
		segs, err := e.transcriber.Transcribe(ctx, data, contentType)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return backoff.Permanent(err)
			}
			if errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("%w: %v", core.ErrProviderTimeout, err)
			}
			return err
		}
		segments = segs
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(e.maxAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return segments, nil
}
