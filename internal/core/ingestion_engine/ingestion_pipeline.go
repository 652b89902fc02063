package ingestion_engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/docwise-ai/docwise/internal/core"
	"github.com/docwise-ai/docwise/internal/models"
)

// jobTimeout caps one file's end-to-end ingestion.
const jobTimeout = 10 * time.Minute

type job struct {
	fileID string
	force  bool
}

// DocumentIngestor orchestrates extract → chunk → embed → index for one
// file at a time per job, with jobs for distinct files running in
// parallel on a bounded worker pool. Stages within one file are
// sequential so a failure can discard all of that file's work cleanly.
type DocumentIngestor struct {
	db         core.DbClient
	obj        core.ObjectClient
	index      core.VectorIndex
	embedder   core.EmbeddingProvider
	extractors map[models.FileKind]core.Extractor
	cfg        IngestConfig
	bucket     string
	log        *zap.Logger

	limiter *rate.Limiter
	jobs    chan job

	// inflight is the idempotency guard: at most one queued-or-running
	// job per fileID. A second request for the same file attaches to the
	// existing job instead of duplicating chunks.
	mu       sync.Mutex
	inflight map[string]bool
}

func NewDocumentIngestor(
	db core.DbClient,
	obj core.ObjectClient,
	index core.VectorIndex,
	emb core.EmbeddingProvider,
	docs core.Extractor,
	media core.Extractor,
	cfg *IngestConfig,
	bucket string,
	log *zap.Logger,
) *DocumentIngestor {
	c := cfg.withDefaults()
	return &DocumentIngestor{
		db:       db,
		obj:      obj,
		index:    index,
		embedder: emb,
		extractors: map[models.FileKind]core.Extractor{
			models.KindDocument: docs,
			models.KindAudio:    media,
			models.KindVideo:    media,
		},
		cfg:      c,
		bucket:   bucket,
		log:      log,
		limiter:  rate.NewLimiter(rate.Limit(c.EmbedRPS), 1),
		jobs:     make(chan job, 64),
		inflight: make(map[string]bool),
	}
}

var _ Ingestor = (*DocumentIngestor)(nil)

// Start launches cfg.Workers goroutines reading from the job queue.
// Ingestion for one file is independent of all others; a failure is
// isolated to its file.
func (i *DocumentIngestor) Start(ctx context.Context) {
	for w := 1; w <= i.cfg.Workers; w++ {
		go func(w int) {
			for {
				select {
				case <-ctx.Done():
					i.log.Info("ingest worker shutting down", zap.Int("worker", w))
					return
				case j := <-i.jobs:
					if err := i.run(ctx, j); err != nil {
						i.log.Warn("ingestion failed",
							zap.String("file_id", j.fileID),
							zap.Int("worker", w),
							zap.Error(err))
					}
				}
			}
		}(w)
	}
}

func (i *DocumentIngestor) Enqueue(fileID string, force bool) bool {
	i.mu.Lock()
	if i.inflight[fileID] {
		i.mu.Unlock()
		return false
	}
	i.inflight[fileID] = true
	i.mu.Unlock()

	i.jobs <- job{fileID: fileID, force: force}
	return true
}

func (i *DocumentIngestor) run(ctx context.Context, j job) error {
	defer func() {
		i.mu.Lock()
		delete(i.inflight, j.fileID)
		i.mu.Unlock()
	}()
	return i.ProcessOne(ctx, j.fileID, j.force)
}

// ProcessOne ingests a single file: sequential stages, terminal status
// on the record, atomic index publish. Re-running against a ready file
// is a no-op unless forced; a forced run replaces the old chunk set
// only after the new one is fully written, keeping the file queryable
// throughout.
func (i *DocumentIngestor) ProcessOne(ctx context.Context, fileID string, force bool) error {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	file, err := i.db.GetFileByID(ctx, fileID)
	if err != nil {
		return fmt.Errorf("load file: %w", err)
	}
	if file == nil {
		return fmt.Errorf("%w: %s", core.ErrFileNotFound, fileID)
	}
	if file.Status == models.StatusReady && !force {
		return nil
	}

	start := time.Now()

	units, err := i.extract(ctx, file)
	if err != nil {
		return i.fail(fileID, err)
	}

	if err := i.db.UpdateFileStatus(ctx, fileID, models.StatusChunking, ""); err != nil {
		return err
	}
	drafts := ChunkUnits(units, i.cfg.TargetTokens, i.cfg.OverlapTokens)
	if len(drafts) == 0 {
		return i.fail(fileID, fmt.Errorf("%w: no chunkable text", core.ErrExtractionFailed))
	}

	if err := i.db.UpdateFileStatus(ctx, fileID, models.StatusEmbedding, ""); err != nil {
		return err
	}
	vectors, err := i.embedDrafts(ctx, drafts)
	if err != nil {
		return i.fail(fileID, err)
	}

	now := time.Now().UTC()
	chunks := make([]models.Chunk, len(drafts))
	for k, d := range drafts {
		chunks[k] = models.Chunk{
			ID:         uuid.NewString(),
			FileID:     fileID,
			Seq:        d.Seq,
			Text:       d.Text,
			Anchor:     d.Anchor,
			Embedding:  vectors[k],
			TokenCount: d.TokenCount,
			CreatedAt:  now,
		}
	}
	if err := i.index.Add(ctx, fileID, chunks); err != nil {
		return i.fail(fileID, fmt.Errorf("%w: publish chunks: %v", core.ErrIndexCorruption, err))
	}

	pages, duration := extent(units)
	if err := i.db.SetFileIngestMeta(ctx, fileID, pages, duration, i.embedder.Config()); err != nil {
		return err
	}
	if err := i.db.UpdateFileStatus(ctx, fileID, models.StatusReady, ""); err != nil {
		return err
	}

	i.log.Info("file ingested",
		zap.String("file_id", fileID),
		zap.Int("chunks", len(chunks)),
		zap.Duration("took", time.Since(start)))
	return nil
}

func (i *DocumentIngestor) extract(ctx context.Context, file *models.SourceFile) ([]models.Unit, error) {
	if err := i.db.UpdateFileStatus(ctx, file.ID, models.StatusExtracting, ""); err != nil {
		return nil, err
	}

	extractor := i.extractors[file.Kind]
	if extractor == nil {
		return nil, fmt.Errorf("%w: kind %q", core.ErrUnsupportedFormat, file.Kind)
	}

	data, err := i.obj.GetFile(ctx, i.bucket, file.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", core.ErrExtractionFailed, file.StorageKey, err)
	}
	return extractor.Extract(ctx, data, file.ContentType)
}

// Purge removes the file's chunk set from the index.
func (i *DocumentIngestor) Purge(ctx context.Context, fileID string) error {
	return i.index.Remove(ctx, fileID)
}

// fail moves the file to the absorbing failed state, preserving the
// reason for display. The status write uses a fresh context so a
// cancelled job still records why it died.
func (i *DocumentIngestor) fail(fileID string, cause error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := i.db.UpdateFileStatus(ctx, fileID, models.StatusFailed, core.FailReason(cause)); err != nil {
		i.log.Error("could not record failure", zap.String("file_id", fileID), zap.Error(err))
	}
	return cause
}

func extent(units []models.Unit) (pages int, durationSec float64) {
	for _, u := range units {
		if u.Anchor.Page > pages {
			pages = u.Anchor.Page
		}
		if u.Anchor.EndSec > durationSec {
			durationSec = u.Anchor.EndSec
		}
	}
	return pages, durationSec
}
