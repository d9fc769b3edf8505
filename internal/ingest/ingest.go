// Package ingest feeds files from the local filesystem into the analysis processor.
package ingest

import (
	"context"
	"time"

	"github.com/joseph-ayodele/docscan/constants"
	"github.com/joseph-ayodele/docscan/internal/core"
)

// Analyzer is the part of core.Processor the ingestor drives.
type Analyzer interface {
	Analyze(ctx context.Context, req core.AnalyzeRequest) (*core.AnalyzeResult, error)
}

// Options describe who a batch of files is analyzed for and how.
type Options struct {
	SellerID     string
	UploaderID   string
	UploaderType constants.UploaderRole
	DocumentType constants.DocumentType
	Tier         constants.Tier
	SkipHidden   bool
	// Workers bounds the files analyzed at once by IngestDirectory. Zero means 4.
	Workers int
}

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath   string
	AnalysisID   string
	Deduplicated bool
	HashHex      string
	FileExt      string
	IngestedAt   time.Time
	Result       *core.AnalyzeResult
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Ingestor is the behavior the binaries depend on.
type Ingestor interface {
	// IngestPath analyzes a single file.
	IngestPath(ctx context.Context, opts Options, path string) (IngestionResult, error)
	// IngestDirectory analyzes all matching files under root.
	IngestDirectory(ctx context.Context, opts Options, root string) ([]IngestionResult, DirStats, error)
}
