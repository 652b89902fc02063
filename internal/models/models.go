package models

import (
	"fmt"
	"time"
)

// FileKind classifies an uploaded file by how it is ingested.
type FileKind string

const (
	KindDocument FileKind = "document"
	KindAudio    FileKind = "audio"
	KindVideo    FileKind = "video"
)

// Media reports whether chunks of this kind carry time anchors.
func (k FileKind) Media() bool { return k == KindAudio || k == KindVideo }

// FileStatus is the ingestion state of a SourceFile.
// Transitions run strictly uploaded → extracting → chunking → embedding → ready,
// with failed reachable from any non-terminal state.
type FileStatus string

const (
	StatusUploaded   FileStatus = "uploaded"
	StatusExtracting FileStatus = "extracting"
	StatusChunking   FileStatus = "chunking"
	StatusEmbedding  FileStatus = "embedding"
	StatusReady      FileStatus = "ready"
	StatusFailed     FileStatus = "failed"
)

// Terminal reports whether no further ingestion transitions are expected.
func (s FileStatus) Terminal() bool { return s == StatusReady || s == StatusFailed }

// SourceFile represents a user-uploaded document or media file.
// Mutated only by the ingestion pipeline; query-time code reads it.
type SourceFile struct {
	ID          string     `db:"id" json:"id"`
	OwnerID     string     `db:"owner_id" json:"owner_id"`
	FileName    string     `db:"file_name" json:"file_name"`
	Kind        FileKind   `db:"kind" json:"kind"`
	StorageKey  string     `db:"storage_key" json:"storage_key"`
	ContentType string     `db:"content_type" json:"content_type"`
	Status      FileStatus `db:"status" json:"status"`
	FailReason  string     `db:"fail_reason" json:"fail_reason,omitempty"`
	PageCount   int        `db:"page_count" json:"page_count,omitempty"`
	DurationSec float64    `db:"duration_sec" json:"duration_sec,omitempty"`
	EmbedModel  string     `db:"embed_model" json:"embed_model,omitempty"`
	EmbedDim    int        `db:"embed_dim" json:"embed_dim,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Anchor ties a chunk back to its location in the source file:
// a 1-based page number for documents, a start/end time range for media.
// Page == 0 means a time anchor.
type Anchor struct {
	Page     int     `json:"page,omitempty"`
	StartSec float64 `json:"start_sec,omitempty"`
	EndSec   float64 `json:"end_sec,omitempty"`
}

// IsPage reports whether the anchor is a document page reference.
func (a Anchor) IsPage() bool { return a.Page > 0 }

// Key is the citation de-duplication key: two chunks citing the same
// page (or the same segment start) collapse into one citation.
func (a Anchor) Key() string {
	if a.IsPage() {
		return fmt.Sprintf("p:%d", a.Page)
	}
	return fmt.Sprintf("t:%.1f", a.StartSec)
}

// String renders the anchor for prompts and citations: "p.2" or "04:12-04:20".
func (a Anchor) String() string {
	if a.IsPage() {
		return fmt.Sprintf("p.%d", a.Page)
	}
	return fmt.Sprintf("%s-%s", clock(a.StartSec), clock(a.EndSec))
}

// Overlaps reports whether the anchor's time range intersects [start, end].
func (a Anchor) Overlaps(start, end float64) bool {
	if a.IsPage() {
		return false
	}
	return a.StartSec <= end && a.EndSec >= start
}

func clock(sec float64) string {
	s := int(sec)
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

// Unit is one extracted span with its positional anchor: a page for
// documents, a transcript segment for media.
type Unit struct {
	Text   string
	Anchor Anchor
}

// ChunkDraft is a chunk before embedding: text, sequence and anchor only.
type ChunkDraft struct {
	Seq        int
	Text       string
	Anchor     Anchor
	TokenCount int
}

// Chunk is a bounded passage of extracted text with one anchor and one
// embedding vector. Belongs to exactly one SourceFile.
type Chunk struct {
	ID         string    `db:"id" json:"id"`
	FileID     string    `db:"file_id" json:"file_id"`
	Seq        int       `db:"seq" json:"seq"`
	Text       string    `db:"text" json:"text"`
	Anchor     Anchor    `json:"anchor"`
	Embedding  []float32 `db:"embedding" json:"-"`
	TokenCount int       `db:"token_count" json:"token_count"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// SearchHit is one similarity-search result.
type SearchHit struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Segment is one transcribed utterance from a speech-to-text provider.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// EmbeddingConfig identifies the embedding model and dimensionality a
// file's vectors were produced with. All vectors for one file must come
// from a single configuration; search across mismatched configurations
// is rejected.
type EmbeddingConfig struct {
	Model string `json:"model"`
	Dim   int    `json:"dim"`
}

// Matches reports whether two configurations are interchangeable.
func (c EmbeddingConfig) Matches(o EmbeddingConfig) bool {
	return c.Model == o.Model && c.Dim == o.Dim
}

// Citation points an answer back to a source location.
type Citation struct {
	Anchor Anchor `json:"anchor"`
	Seq    int    `json:"seq"`
	Label  string `json:"label"`
}

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
