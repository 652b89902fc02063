package retrieval

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/docwise-ai/docwise/internal/core"
	"github.com/docwise-ai/docwise/internal/models"
)

const systemPrompt = `You are DocWise, an intelligent document assistant.
Answer questions based ONLY on the provided context blocks.
Each block is numbered like [1] and tagged with its source location.
When your answer uses information from a block, reference it inline by
its number, e.g. [2]. If the context does not contain the answer,
clearly state that. Keep answers concise yet comprehensive.`

// Event is one element of an answer stream: a text token, the terminal
// citation list, or a terminal error. Exactly one terminal event is
// emitted before the channel closes, so callers can distinguish a
// complete answer from a cut-off one.
type Event struct {
	Token     string
	Citations []models.Citation
	Err       error
}

// Config tunes retrieval.
type Config struct {
	TopK             int           // chunks retrieved per question
	MaxContextTokens int           // bound on assembled context size
	MaxAttempts      int           // retry budget for transient provider failures
	ProviderTimeout  time.Duration // deadline per provider call
}

func (c Config) withDefaults() Config {
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if c.MaxContextTokens <= 0 {
		c.MaxContextTokens = 3000
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 4
	}
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = 60 * time.Second
	}
	return c
}

// Engine answers questions grounded in one file's indexed chunks.
// It is read-only with respect to the index; any number of questions
// may run concurrently.
type Engine struct {
	db       core.DbClient
	index    core.VectorIndex
	embedder core.EmbeddingProvider
	llm      core.CompletionProvider
	cfg      Config
	log      *zap.Logger
}

func NewEngine(db core.DbClient, index core.VectorIndex, emb core.EmbeddingProvider, llm core.CompletionProvider, cfg Config, log *zap.Logger) *Engine {
	return &Engine{db: db, index: index, embedder: emb, llm: llm, cfg: cfg.withDefaults(), log: log}
}

// Retrieve embeds the question and returns the top-K chunks for a ready
// file. It backs both raw similarity search and answer generation.
func (e *Engine) Retrieve(ctx context.Context, fileID, question string, k int) ([]models.SearchHit, error) {
	file, err := e.db.GetFileByID(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("load file: %w", err)
	}
	if file == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrFileNotFound, fileID)
	}
	if file.Status != models.StatusReady {
		return nil, fmt.Errorf("%w: file is %s", core.ErrNotReady, file.Status)
	}

	cfg := e.embedder.Config()
	indexed := models.EmbeddingConfig{Model: file.EmbedModel, Dim: file.EmbedDim}
	if !cfg.Matches(indexed) {
		return nil, fmt.Errorf("%w: index built with %s/%d, query uses %s/%d",
			core.ErrConfigMismatch, indexed.Model, indexed.Dim, cfg.Model, cfg.Dim)
	}

	ectx, cancel := context.WithTimeout(ctx, e.cfg.ProviderTimeout)
	defer cancel()
	vecs, err := e.embedQuestion(ectx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed question: got %d vectors", len(vecs))
	}

	if k <= 0 {
		k = e.cfg.TopK
	}
	hits, err := e.index.Search(ctx, fileID, vecs[0], k)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if len(hits) == 0 {
		// A ready file with no indexed chunks means its index was lost;
		// it must be rebuilt from source, never silently patched.
		return nil, fmt.Errorf("%w: ready file %s has no indexed chunks", core.ErrIndexCorruption, fileID)
	}
	return hits, nil
}

// embedQuestion is one provider call wrapped in the retry policy
// ingestion uses: timeouts and other transient errors back off
// exponentially, caller cancellation stops immediately.
func (e *Engine) embedQuestion(ctx context.Context, question string) ([][]float32, error) {
	var vecs [][]float32

	op := func() error {
		v, err := e.embedder.EmbedTexts(ctx, []string{question})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return backoff.Permanent(err)
			}
			if errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("%w: %v", core.ErrProviderTimeout, err)
			}
			return err
		}
		vecs = v
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(e.cfg.MaxAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return vecs, nil
}

// Answer streams a grounded answer for a question against one file.
// Validation errors (NotReady, ConfigMismatch, unknown file) return
// synchronously; afterwards tokens arrive on the channel as the
// provider produces them, terminated by a citation list, or by an
// error event if the provider fails mid-stream. Cancelling ctx aborts
// the in-flight provider call, not just the forwarding.
func (e *Engine) Answer(ctx context.Context, fileID, question string) (<-chan Event, error) {
	hits, err := e.Retrieve(ctx, fileID, question, e.cfg.TopK)
	if err != nil {
		return nil, err
	}

	prompt := e.buildPrompt(hits, question)
	out := make(chan Event, 16)

	go func() {
		defer close(out)

		// The stream deadline is distinct from caller cancellation: hitting
		// it surfaces ErrProviderTimeout, while a gone caller stays silent.
		sctx, cancel := context.WithTimeout(ctx, e.cfg.ProviderTimeout)
		defer cancel()

		var answer strings.Builder
		err := e.llm.StreamGenerate(sctx, systemPrompt, prompt, func(token string) error {
			answer.WriteString(token)
			select {
			case out <- Event{Token: token}:
				return nil
			case <-sctx.Done():
				return sctx.Err()
			}
		})
		if err != nil {
			if ctx.Err() != nil {
				return // caller is gone; nothing to report to
			}
			if errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("%w: %v", core.ErrProviderTimeout, err)
			}
			// An abandoned consumer must not pin this goroutine on the
			// terminal send.
			select {
			case out <- Event{Err: fmt.Errorf("completion: %w", err)}:
			case <-ctx.Done():
			}
			return
		}

		select {
		case out <- Event{Citations: citations(answer.String(), hits)}:
		case <-ctx.Done():
		}
	}()

	return out, nil
}

// buildPrompt assembles a bounded context of anchor-tagged blocks.
func (e *Engine) buildPrompt(hits []models.SearchHit, question string) string {
	var sb strings.Builder
	budget := e.cfg.MaxContextTokens
	for n, h := range hits {
		cost := (len(h.Chunk.Text) + 3) / 4
		if cost > budget && n > 0 {
			break
		}
		budget -= cost
		fmt.Fprintf(&sb, "[%d] (%s) %s\n\n", n+1, h.Chunk.Anchor, h.Chunk.Text)
	}
	fmt.Fprintf(&sb, "Question: %s\n\nAnswer:", question)
	return sb.String()
}

var refPattern = regexp.MustCompile(`\[(\d+)\]`)

// citations extracts the ordered, de-duplicated citation list from the
// finished answer: block references in first-referenced order, keyed by
// anchor (page number, or segment start for media). An answer that cites
// nothing falls back to the retrieved chunks in rank order.
func citations(answer string, hits []models.SearchHit) []models.Citation {
	var ordered []models.SearchHit
	for _, m := range refPattern.FindAllStringSubmatch(answer, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(hits) {
			continue
		}
		ordered = append(ordered, hits[n-1])
	}
	if len(ordered) == 0 {
		ordered = hits
	}

	seen := make(map[string]bool)
	var out []models.Citation
	for _, h := range ordered {
		key := h.Chunk.Anchor.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, models.Citation{
			Anchor: h.Chunk.Anchor,
			Seq:    h.Chunk.Seq,
			Label:  h.Chunk.Anchor.String(),
		})
	}
	return out
}
