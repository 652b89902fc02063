package ingestion_engine

import "context"

// Ingestor runs background ingestion jobs.
type Ingestor interface {
	// Start launches the worker pool; workers exit when ctx is done.
	Start(ctx context.Context)

	// Enqueue schedules a file for ingestion. Returns false when the file
	// already has a queued or running job, in which case the request
	// attaches to that job instead of starting a duplicate.
	Enqueue(fileID string, force bool) bool

	// ProcessOne ingests a single file synchronously.
	ProcessOne(ctx context.Context, fileID string, force bool) error

	// Purge removes a file's chunk set from the vector index.
	Purge(ctx context.Context, fileID string) error
}
