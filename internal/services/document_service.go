package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docwise-ai/docwise/internal/core"
	"github.com/docwise-ai/docwise/internal/core/ingestion_engine"
	"github.com/docwise-ai/docwise/internal/models"
)

var (
	pdfTypes = map[string]bool{"application/pdf": true}

	audioTypes = map[string]bool{
		"audio/mpeg": true, "audio/wav": true, "audio/mp4": true,
		"audio/x-m4a": true, "audio/webm": true, "audio/ogg": true,
	}

	videoTypes = map[string]bool{
		"video/mp4": true, "video/webm": true, "video/quicktime": true,
		"video/x-msvideo": true, "video/ogg": true,
	}
)

// ClassifyContentType maps a MIME type to a file kind.
func ClassifyContentType(contentType string) (models.FileKind, error) {
	switch {
	case pdfTypes[contentType]:
		return models.KindDocument, nil
	case audioTypes[contentType]:
		return models.KindAudio, nil
	case videoTypes[contentType]:
		return models.KindVideo, nil
	}
	return "", fmt.Errorf("%w: %s (allowed: PDF, audio, video)", core.ErrUnsupportedFormat, contentType)
}

// DocumentService owns the upload → record → enqueue path and the
// delete cascade. It is the quota gate: uploads past the per-owner
// daily limit are rejected before ingestion is ever invoked.
type DocumentService struct {
	db            core.DbClient
	storage       core.ObjectClient
	ingestor      ingestion_engine.Ingestor
	bucket        string
	uploadsPerDay int
	log           *zap.Logger
}

func NewDocumentService(db core.DbClient, storage core.ObjectClient, ing ingestion_engine.Ingestor, bucket string, uploadsPerDay int, log *zap.Logger) *DocumentService {
	return &DocumentService{
		db: db, storage: storage, ingestor: ing,
		bucket: bucket, uploadsPerDay: uploadsPerDay, log: log,
	}
}

// UploadQuota reports today's upload count and the configured limit.
func (s *DocumentService) UploadQuota(ctx context.Context, ownerID string) (used, limit int, err error) {
	used, err = s.db.CountUploadsSince(ctx, ownerID, startOfDayUTC(time.Now()))
	return used, s.uploadsPerDay, err
}

// UploadAndCreate stores the raw bytes, creates the file record and
// schedules ingestion. The returned file is in the uploaded state;
// callers poll its status until ready or failed.
func (s *DocumentService) UploadAndCreate(ctx context.Context, ownerID, filename, contentType string, data io.Reader) (*models.SourceFile, error) {
	kind, err := ClassifyContentType(contentType)
	if err != nil {
		return nil, err
	}

	used, limit, err := s.UploadQuota(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("count uploads: %w", err)
	}
	if used >= limit {
		return nil, fmt.Errorf("%w: %d of %d used today", core.ErrQuotaExceeded, used, limit)
	}

	fileID := uuid.NewString()
	key := objectKey(kind, fileID, filename)

	if _, err := s.storage.UploadFile(ctx, s.bucket, key, data, contentType); err != nil {
		return nil, fmt.Errorf("store object: %w", err)
	}

	file := &models.SourceFile{
		ID:          fileID,
		OwnerID:     ownerID,
		FileName:    filename,
		Kind:        kind,
		StorageKey:  key,
		ContentType: contentType,
		Status:      models.StatusUploaded,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.db.CreateFile(ctx, file); err != nil {
		// Best-effort cleanup; the record is the source of truth.
		_ = s.storage.DeleteFile(ctx, s.bucket, key)
		return nil, fmt.Errorf("create file record: %w", err)
	}

	s.ingestor.Enqueue(file.ID, false)
	return file, nil
}

// Reingest forces a fresh ingestion run for a file. The existing chunk
// set stays searchable until the replacement is fully written.
func (s *DocumentService) Reingest(ctx context.Context, ownerID, fileID string) error {
	if _, err := s.owned(ctx, ownerID, fileID); err != nil {
		return err
	}
	s.ingestor.Enqueue(fileID, true)
	return nil
}

func (s *DocumentService) Get(ctx context.Context, ownerID, fileID string) (*models.SourceFile, error) {
	return s.owned(ctx, ownerID, fileID)
}

func (s *DocumentService) ListByOwner(ctx context.Context, ownerID string) ([]models.SourceFile, error) {
	return s.db.ListFilesByOwner(ctx, ownerID)
}

// Delete removes the stored object, the vector index entries and the
// record. The index is purged before the record so a failure can never
// leave orphaned vectors behind a deleted file.
func (s *DocumentService) Delete(ctx context.Context, ownerID, fileID string) error {
	file, err := s.owned(ctx, ownerID, fileID)
	if err != nil {
		return err
	}

	if err := s.storage.DeleteFile(ctx, s.bucket, file.StorageKey); err != nil {
		s.log.Warn("storage delete failed", zap.String("key", file.StorageKey), zap.Error(err))
	}
	if err := s.ingestor.Purge(ctx, fileID); err != nil {
		return fmt.Errorf("purge index: %w", err)
	}
	return s.db.DeleteFile(ctx, fileID)
}

func (s *DocumentService) owned(ctx context.Context, ownerID, fileID string) (*models.SourceFile, error) {
	file, err := s.db.GetFileByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	// A file owned by someone else is indistinguishable from a missing one.
	if file == nil || file.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: %s", core.ErrFileNotFound, fileID)
	}
	return file, nil
}

func objectKey(kind models.FileKind, fileID, filename string) string {
	filename = filepath.Base(strings.TrimSpace(filename))
	filename = strings.ReplaceAll(filename, " ", "_")
	return path.Join(string(kind), fileID, filename)
}

func startOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
