package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/docwise-ai/docwise/internal/core"
	"github.com/docwise-ai/docwise/internal/core/index"
	"github.com/docwise-ai/docwise/internal/core/retrieval"
	"github.com/docwise-ai/docwise/internal/models"
)

const testDim = 8

// fakeDB is an in-memory core.DbClient recording status transitions.
type fakeDB struct {
	mu          sync.Mutex
	files       map[string]*models.SourceFile
	transitions map[string][]models.FileStatus
}

func newFakeDB(files ...*models.SourceFile) *fakeDB {
	db := &fakeDB{
		files:       make(map[string]*models.SourceFile),
		transitions: make(map[string][]models.FileStatus),
	}
	for _, f := range files {
		db.files[f.ID] = f
	}
	return db
}

func (d *fakeDB) CreateUser(context.Context, *models.User) error { return nil }
func (d *fakeDB) GetUserByEmail(context.Context, string) (*models.User, error) {
	return nil, nil
}
func (d *fakeDB) CreateFile(ctx context.Context, f *models.SourceFile) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files[f.ID] = f
	return nil
}
func (d *fakeDB) GetFileByID(ctx context.Context, id string) (*models.SourceFile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.files[id]
	if !ok {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}
func (d *fakeDB) ListFilesByOwner(context.Context, string) ([]models.SourceFile, error) {
	return nil, nil
}
func (d *fakeDB) UpdateFileStatus(ctx context.Context, id string, status models.FileStatus, reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.files[id]
	if !ok {
		return core.ErrFileNotFound
	}
	f.Status = status
	f.FailReason = reason
	d.transitions[id] = append(d.transitions[id], status)
	return nil
}
func (d *fakeDB) SetFileIngestMeta(ctx context.Context, id string, pages int, dur float64, cfg models.EmbeddingConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.files[id]
	if !ok {
		return core.ErrFileNotFound
	}
	f.PageCount = pages
	f.DurationSec = dur
	f.EmbedModel = cfg.Model
	f.EmbedDim = cfg.Dim
	return nil
}
func (d *fakeDB) DeleteFile(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.files, id)
	return nil
}
func (d *fakeDB) CountUploadsSince(context.Context, string, time.Time) (int, error) { return 0, nil }
func (d *fakeDB) Close() error                                                     { return nil }

func (d *fakeDB) status(id string) models.FileStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.files[id].Status
}

func (d *fakeDB) history(id string) []models.FileStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.FileStatus(nil), d.transitions[id]...)
}

type fakeStore struct {
	objects map[string][]byte
}

func (s *fakeStore) UploadFile(ctx context.Context, bucket, key string, data io.Reader, ct string) (string, error) {
	return "", nil
}
func (s *fakeStore) GetFile(ctx context.Context, bucket, key string) ([]byte, error) {
	b, ok := s.objects[key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return b, nil
}
func (s *fakeStore) GetObjectReader(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	b, err := s.GetFile(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(strings.NewReader(string(b))), nil
}
func (s *fakeStore) DeleteFile(context.Context, string, string) error { return nil }

// embedText derives a deterministic pseudo-vector from text so that
// identical texts embed identically and self-retrieval is exact.
func embedText(s string) []float32 {
	v := make([]float32, testDim)
	for i, r := range s {
		v[(i+int(r))%testDim] += float32(r%23) + 1
	}
	return v
}

type fakeEmbedder struct {
	mu       sync.Mutex
	calls    int
	failN    int   // fail this many leading calls
	failWith error // error for failing calls; nil means transient
}

func (e *fakeEmbedder) Config() models.EmbeddingConfig {
	return models.EmbeddingConfig{Model: "fake-embed", Dim: testDim}
}

func (e *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	n := e.calls
	e.mu.Unlock()
	if n <= e.failN {
		if e.failWith != nil {
			return nil, e.failWith
		}
		return nil, context.DeadlineExceeded
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = embedText(t)
	}
	return out, nil
}

// unitExtractor returns canned units regardless of input bytes.
type unitExtractor struct {
	units []models.Unit
	err   error
}

func (u *unitExtractor) Extract(context.Context, []byte, string) ([]models.Unit, error) {
	return u.units, u.err
}

func docFile(id string) *models.SourceFile {
	return &models.SourceFile{
		ID: id, OwnerID: "owner-1", FileName: "report.pdf",
		Kind: models.KindDocument, StorageKey: "document/" + id + "/report.pdf",
		ContentType: "application/pdf", Status: models.StatusUploaded,
	}
}

func newTestIngestor(db *fakeDB, idx core.VectorIndex, emb *fakeEmbedder, docs core.Extractor) *DocumentIngestor {
	store := &fakeStore{objects: map[string][]byte{}}
	for id := range db.files {
		store.objects[db.files[id].StorageKey] = []byte("raw bytes")
	}
	return NewDocumentIngestor(
		db, store, idx, emb, docs, docs,
		&IngestConfig{TargetTokens: 50, OverlapTokens: 8, BatchSize: 2, MaxAttempts: 3, Workers: 2, EmbedRPS: 1000},
		"test-bucket", zap.NewNop(),
	)
}

func pages(texts ...string) []models.Unit {
	units := make([]models.Unit, len(texts))
	for i, t := range texts {
		units[i] = models.Unit{Text: t, Anchor: models.Anchor{Page: i + 1}}
	}
	return units
}

func TestProcessOneDocumentHappyPath(t *testing.T) {
	db := newFakeDB(docFile("f1"))
	idx := index.NewMemoryIndex(testDim)
	ing := newTestIngestor(db, idx, &fakeEmbedder{},
		&unitExtractor{units: pages("intro text", "Q3 revenue grew 12%", "closing remarks")})

	require.NoError(t, ing.ProcessOne(context.Background(), "f1", false))

	assert.Equal(t, []models.FileStatus{
		models.StatusExtracting, models.StatusChunking, models.StatusEmbedding, models.StatusReady,
	}, db.history("f1"))

	f, _ := db.GetFileByID(context.Background(), "f1")
	assert.Equal(t, 3, f.PageCount)
	assert.Equal(t, "fake-embed", f.EmbedModel)
	assert.Equal(t, testDim, f.EmbedDim)

	// self-retrieval sanity: a chunk's own embedding finds that chunk first
	hits, err := idx.Search(context.Background(), "f1", embedText("Q3 revenue grew 12%"), 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Q3 revenue grew 12%", hits[0].Chunk.Text)
	assert.Equal(t, 2, hits[0].Chunk.Anchor.Page)
}

func TestProcessOneMediaDuration(t *testing.T) {
	file := docFile("m1")
	file.Kind = models.KindAudio
	file.ContentType = "audio/mpeg"
	db := newFakeDB(file)
	idx := index.NewMemoryIndex(testDim)
	ing := newTestIngestor(db, idx, &fakeEmbedder{}, &unitExtractor{units: []models.Unit{
		{Text: "welcome to the show", Anchor: models.Anchor{StartSec: 0, EndSec: 4}},
		{Text: "the deadline is March 1st", Anchor: models.Anchor{StartSec: 252, EndSec: 260}},
	}})

	require.NoError(t, ing.ProcessOne(context.Background(), "m1", false))

	f, _ := db.GetFileByID(context.Background(), "m1")
	assert.Equal(t, models.StatusReady, f.Status)
	assert.Equal(t, 260.0, f.DurationSec)

	hits, err := idx.Search(context.Background(), "m1", embedText("the deadline is March 1st"), 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.True(t, hits[0].Chunk.Anchor.Overlaps(252, 260))
}

func TestProcessOnePermanentEmbedFailure(t *testing.T) {
	db := newFakeDB(docFile("f2"))
	idx := index.NewMemoryIndex(testDim)
	emb := &fakeEmbedder{failN: 1 << 30, failWith: errors.New("quota exhausted")}
	ing := newTestIngestor(db, idx, emb, &unitExtractor{units: pages("some text")})

	err := ing.ProcessOne(context.Background(), "f2", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmbeddingFailed)

	f, _ := db.GetFileByID(context.Background(), "f2")
	assert.Equal(t, models.StatusFailed, f.Status)
	assert.Contains(t, f.FailReason, "EmbeddingFailed")

	// no partial index: zero chunks written
	hits, err := idx.Search(context.Background(), "f2", embedText("some text"), 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestProcessOneRetriesTransientFailure(t *testing.T) {
	db := newFakeDB(docFile("f3"))
	emb := &fakeEmbedder{failN: 2} // two timeouts, then success
	ing := newTestIngestor(db, index.NewMemoryIndex(testDim), emb, &unitExtractor{units: pages("retry me")})

	require.NoError(t, ing.ProcessOne(context.Background(), "f3", false))
	assert.Equal(t, models.StatusReady, db.status("f3"))
}

func TestProcessOneUnknownKindFails(t *testing.T) {
	file := docFile("f4")
	file.Kind = "spreadsheet"
	db := newFakeDB(file)
	ing := newTestIngestor(db, index.NewMemoryIndex(testDim), &fakeEmbedder{}, &unitExtractor{})

	err := ing.ProcessOne(context.Background(), "f4", false)
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
	f, _ := db.GetFileByID(context.Background(), "f4")
	assert.Equal(t, models.StatusFailed, f.Status)
	assert.Contains(t, f.FailReason, "UnsupportedFormat")
}

func TestProcessOneReadyIsNoopUnlessForced(t *testing.T) {
	file := docFile("f5")
	file.Status = models.StatusReady
	db := newFakeDB(file)
	ing := newTestIngestor(db, index.NewMemoryIndex(testDim), &fakeEmbedder{}, &unitExtractor{units: pages("fresh text")})

	require.NoError(t, ing.ProcessOne(context.Background(), "f5", false))
	assert.Empty(t, db.history("f5"), "unforced run against a ready file must not touch it")

	require.NoError(t, ing.ProcessOne(context.Background(), "f5", true))
	assert.Equal(t, models.StatusReady, db.status("f5"))
	assert.NotEmpty(t, db.history("f5"))
}

func TestEnqueueAttachesToInflightJob(t *testing.T) {
	db := newFakeDB(docFile("f6"))
	idx := index.NewMemoryIndex(testDim)
	ing := newTestIngestor(db, idx, &fakeEmbedder{}, &unitExtractor{units: pages("only page")})

	// Two requests within the same instant: exactly one job may run.
	first := ing.Enqueue("f6", false)
	second := ing.Enqueue("f6", false)
	assert.True(t, first)
	assert.False(t, second, "second request must attach to the existing job")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ing.Start(ctx)

	require.Eventually(t, func() bool {
		return db.status("f6") == models.StatusReady
	}, 5*time.Second, 10*time.Millisecond)

	// exactly one resulting chunk set, no duplicates
	hits, err := idx.Search(context.Background(), "f6", embedText("only page"), 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	history := db.history("f6")
	count := 0
	for _, s := range history {
		if s == models.StatusExtracting {
			count++
		}
	}
	assert.Equal(t, 1, count, "ingestion must have run exactly once")
}

func TestForcedReingestReplacesChunkSet(t *testing.T) {
	db := newFakeDB(docFile("f7"))
	idx := index.NewMemoryIndex(testDim)
	extractor := &unitExtractor{units: pages("old content here")}
	ing := newTestIngestor(db, idx, &fakeEmbedder{}, extractor)

	require.NoError(t, ing.ProcessOne(context.Background(), "f7", false))

	extractor.units = pages("entirely new content")
	require.NoError(t, ing.ProcessOne(context.Background(), "f7", true))

	hits, err := idx.Search(context.Background(), "f7", embedText("entirely new content"), 10)
	require.NoError(t, err)
	require.Len(t, hits, 1, "old chunk set must be fully replaced")
	assert.Equal(t, "entirely new content", hits[0].Chunk.Text)
}

// citingLLM answers by referencing the first context block.
type citingLLM struct{}

func (citingLLM) Generate(ctx context.Context, sys, user string) (string, error) {
	return "Revenue grew 12% [1].", nil
}

func (citingLLM) StreamGenerate(ctx context.Context, sys, user string, onToken func(string) error) error {
	for _, tok := range []string{"Revenue grew 12% ", "[1]."} {
		if err := onToken(tok); err != nil {
			return err
		}
	}
	return nil
}

func TestEndToEndDocumentQuestion(t *testing.T) {
	db := newFakeDB(docFile("e2e"))
	idx := index.NewMemoryIndex(testDim)
	emb := &fakeEmbedder{}
	ing := newTestIngestor(db, idx, emb,
		&unitExtractor{units: pages("introduction and agenda", "Q3 revenue grew 12%", "appendix tables")})

	require.NoError(t, ing.ProcessOne(context.Background(), "e2e", false))

	engine := retrieval.NewEngine(db, idx, emb, citingLLM{}, retrieval.Config{TopK: 1}, zap.NewNop())
	events, err := engine.Answer(context.Background(), "e2e", "Q3 revenue grew 12%")
	require.NoError(t, err)

	var answer strings.Builder
	var cites []models.Citation
	for ev := range events {
		require.NoError(t, ev.Err)
		if ev.Citations != nil {
			cites = ev.Citations
		}
		answer.WriteString(ev.Token)
	}

	assert.Equal(t, "Revenue grew 12% [1].", answer.String())
	// the answer lives on page 2; nothing else may be cited
	require.Len(t, cites, 1)
	assert.Equal(t, "p.2", cites[0].Label)
	assert.Equal(t, 2, cites[0].Anchor.Page)
}

func TestFailureIsolatedPerFile(t *testing.T) {
	good, bad := docFile("ok"), docFile("broken")
	db := newFakeDB(good, bad)
	idx := index.NewMemoryIndex(testDim)

	okIng := newTestIngestor(db, idx, &fakeEmbedder{}, &unitExtractor{units: pages("healthy text")})
	require.NoError(t, okIng.ProcessOne(context.Background(), "ok", false))

	badIng := newTestIngestor(db, idx, &fakeEmbedder{},
		&unitExtractor{err: fmt.Errorf("%w: parser blew up", core.ErrExtractionFailed)})
	require.Error(t, badIng.ProcessOne(context.Background(), "broken", false))

	// the failed file must not disturb the ready one's index
	assert.Equal(t, models.StatusReady, db.status("ok"))
	hits, err := idx.Search(context.Background(), "ok", embedText("healthy text"), 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}
