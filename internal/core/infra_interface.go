package core

import (
	"context"
	"io"
	"time"

	"github.com/docwise-ai/docwise/internal/models"
)

// DbClient defines all persistence operations the services need.
// It abstracts Postgres so higher layers never depend on a specific DB.
type DbClient interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateFile(ctx context.Context, f *models.SourceFile) error
	GetFileByID(ctx context.Context, id string) (*models.SourceFile, error)
	ListFilesByOwner(ctx context.Context, ownerID string) ([]models.SourceFile, error)

	// UpdateFileStatus advances the ingestion state machine; reason is
	// persisted only for the failed state.
	UpdateFileStatus(ctx context.Context, id string, status models.FileStatus, reason string) error

	// SetFileIngestMeta stamps page count / duration and the embedding
	// configuration the file's vectors were produced with.
	SetFileIngestMeta(ctx context.Context, id string, pageCount int, durationSec float64, cfg models.EmbeddingConfig) error

	DeleteFile(ctx context.Context, id string) error
	CountUploadsSince(ctx context.Context, ownerID string, since time.Time) (int, error)

	Close() error
}

// ObjectClient defines interactions with S3-compatible object storage
// (AWS S3 or MinIO). Core never assumes a particular backend.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType string) (url string, err error)
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
	GetObjectReader(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	DeleteFile(ctx context.Context, bucket, key string) error
}

// VectorIndex stores (vector, chunk, anchor) tuples scoped by file.
// Scoping every operation by fileID keeps cross-document leakage
// impossible by construction and bounds search cost to one document.
type VectorIndex interface {
	// Add publishes the file's full chunk set atomically, replacing any
	// previous set. A concurrent Search on the same file sees either the
	// complete old set or the complete new one, never a partial write.
	Add(ctx context.Context, fileID string, chunks []models.Chunk) error

	// Search returns up to k chunks belonging to fileID, ranked by
	// similarity (highest first), ties broken by ascending sequence.
	// k is clamped to the number of available chunks; an unknown fileID
	// yields an empty result, not an error.
	Search(ctx context.Context, fileID string, query []float32, k int) ([]models.SearchHit, error)

	// Remove deletes all vectors and chunks for a file, atomically with
	// respect to concurrent searches on the same file.
	Remove(ctx context.Context, fileID string) error
}
