package core

import (
	"errors"
	"fmt"
)

// Ingestion and query failures surface as one of these sentinels,
// wrapped with detail via fmt.Errorf("...: %w", ...). Transient provider
// errors (timeouts, rate limits) are retried internally; they convert to
// the corresponding terminal sentinel only after the retry budget runs out.
var (
	// ErrUnsupportedFormat: the file's kind or container is not recognized.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrExtractionFailed: text extraction or transcription failed after retries.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrEmbeddingFailed: the embedding provider failed permanently; the
	// whole file's ingestion aborts with no partial index.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrConfigMismatch: query and index use different embedding configurations.
	ErrConfigMismatch = errors.New("embedding config mismatch")

	// ErrNotReady: the file is still ingesting (or failed); questions are
	// rejected rather than answered from an empty or partial index.
	ErrNotReady = errors.New("file not ready")

	// ErrProviderTimeout: an external provider call exceeded its deadline.
	ErrProviderTimeout = errors.New("provider timeout")

	// ErrIndexCorruption: the stored vectors are inconsistent with their
	// configuration; the file's index must be rebuilt from source.
	ErrIndexCorruption = errors.New("index corruption")

	ErrFileNotFound  = errors.New("file not found")
	ErrQuotaExceeded = errors.New("daily upload quota exceeded")
)

// FailReason maps an ingestion error to the short code persisted on the
// file record, keeping the original detail for display.
func FailReason(err error) string {
	var code string
	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		code = "UnsupportedFormat"
	case errors.Is(err, ErrExtractionFailed):
		code = "ExtractionFailed"
	case errors.Is(err, ErrEmbeddingFailed):
		code = "EmbeddingFailed"
	case errors.Is(err, ErrConfigMismatch):
		code = "ConfigMismatch"
	case errors.Is(err, ErrProviderTimeout):
		code = "ProviderTimeout"
	case errors.Is(err, ErrIndexCorruption):
		code = "IndexCorruption"
	default:
		code = "Internal"
	}
	return fmt.Sprintf("%s: %v", code, err)
}
