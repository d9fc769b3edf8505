// Package async analyzes files in the background with a bounded worker pool.
package async

import (
	"context"
	"time"

	"github.com/joseph-ayodele/docscan/internal/ingest"
)

// Job is one file to analyze.
type Job struct {
	Path        string
	Options     ingest.Options
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// PathIngestor analyzes a single file.
type PathIngestor interface {
	IngestPath(ctx context.Context, opts ingest.Options, path string) (ingest.IngestionResult, error)
}
