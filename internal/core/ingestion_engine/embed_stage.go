package ingestion_engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/docwise-ai/docwise/internal/core"
	"github.com/docwise-ai/docwise/internal/models"
)

// embedConcurrency bounds in-flight provider requests per file; the
// shared rate limiter still caps the aggregate request rate.
const embedConcurrency = 2

// embedDrafts embeds chunk texts in provider-sized batches, a few
// batches in flight at a time. A failing batch is retried with
// exponential backoff up to the attempt budget; exhausting it aborts
// the whole file with ErrEmbeddingFailed so no partial index is ever
// published. Returned vectors are positionally aligned with drafts.
func (i *DocumentIngestor) embedDrafts(ctx context.Context, drafts []models.ChunkDraft) ([][]float32, error) {
	vectors := make([][]float32, len(drafts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	for lo := 0; lo < len(drafts); lo += i.cfg.BatchSize {
		hi := lo + i.cfg.BatchSize
		if hi > len(drafts) {
			hi = len(drafts)
		}

		g.Go(func() error {
			texts := make([]string, hi-lo)
			for k := lo; k < hi; k++ {
				texts[k-lo] = drafts[k].Text
			}

			batch, err := i.embedBatch(ctx, texts)
			if err != nil {
				return fmt.Errorf("%w: batch %d-%d: %v", core.ErrEmbeddingFailed, lo, hi, err)
			}
			if len(batch) != len(texts) {
				return fmt.Errorf("%w: got %d vectors for %d texts", core.ErrEmbeddingFailed, len(batch), len(texts))
			}
			copy(vectors[lo:hi], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	want := i.embedder.Config()
	for n, v := range vectors {
		if len(v) != want.Dim {
			return nil, fmt.Errorf("%w: chunk %d has vector dim %d, config %q expects %d",
				core.ErrConfigMismatch, n, len(v), want.Model, want.Dim)
		}
	}
	return vectors, nil
}

// embedBatch is one rate-limited provider call wrapped in the retry
// policy: timeouts and other transient errors back off exponentially;
// caller cancellation stops immediately.
func (i *DocumentIngestor) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32

	op := func() error {
		if err := i.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		vecs, err := i.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return backoff.Permanent(err)
			}
			if errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("%w: %v", core.ErrProviderTimeout, err)
			}
			return err
		}
		out = vecs
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(i.cfg.MaxAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return out, nil
}
