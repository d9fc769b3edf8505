package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/docscan/constants"
	"github.com/joseph-ayodele/docscan/internal/common"
	"github.com/joseph-ayodele/docscan/internal/core"
)

// FSIngestor reads from the local filesystem.
type FSIngestor struct {
	analyzer    Analyzer
	logger      *slog.Logger
	AllowedExts map[string]struct{} // lowercased sans '.'; nil -> constants.AllowedExtensions
}

func NewFSIngestor(analyzer Analyzer, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{analyzer: analyzer, logger: logger}
}

func (i *FSIngestor) IngestPath(ctx context.Context, opts Options, path string) (IngestionResult, error) {
	out := IngestionResult{SourcePath: path}

	abs, err := filepath.Abs(path)
	if err != nil {
		i.logger.Error("abs path error", "path", path, "error", err)
		return out, err
	}
	out.SourcePath = abs

	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !AllowedExt(ext, i.AllowedExts) {
		i.logger.Warn("unsupported or missing extension", "path", abs, "ext", ext)
		return out, fmt.Errorf("%w: extension %q", common.ErrUnsupportedMime, ext)
	}
	mime, _ := constants.MimeFromExt(ext)

	content, err := os.ReadFile(abs)
	if err != nil {
		i.logger.Error("read file error", "path", abs, "error", err)
		return out, err
	}

	res, err := i.analyzer.Analyze(ctx, core.AnalyzeRequest{
		SellerID:     opts.SellerID,
		UploaderID:   opts.UploaderID,
		UploaderType: opts.UploaderType,
		Content:      content,
		MimeType:     mime,
		Filename:     filepath.Base(abs),
		DocumentType: opts.DocumentType,
		Tier:         opts.Tier,
	})
	if err != nil {
		return out, err
	}

	out.AnalysisID = res.AnalysisID
	out.Deduplicated = res.Cached
	out.HashHex = core.ContentHash(content)
	out.FileExt = ext
	out.IngestedAt = time.Now().UTC()
	out.Result = res
	i.logger.Info("file analyzed", "path", abs, "analysis_id", res.AnalysisID, "deduplicated", res.Cached)
	return out, nil
}

// IngestDirectory walks root, skips hidden entries if requested, and analyzes every matching
// file with up to opts.Workers files in flight. Results are sorted by path.
func (i *FSIngestor) IngestDirectory(ctx context.Context, opts Options, root string) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root_path is required")
	}

	var (
		results []IngestionResult
		stats   DirStats
		paths   []string
	)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if opts.SkipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !AllowedExt(filepath.Ext(path), i.AllowedExts) {
			return nil
		}
		stats.Matched++
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			r, err := i.IngestPath(gctx, opts, path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				i.logger.Error("file ingest failed", "path", path, "error", err)
				results = append(results, IngestionResult{SourcePath: r.SourcePath, Err: err.Error()})
				stats.Failed++
				return nil
			}
			results = append(results, r)
			stats.Succeeded++
			if r.Deduplicated {
				stats.Deduplicated++
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(a, b int) bool { return results[a].SourcePath < results[b].SourcePath })
	i.logger.Info("directory ingested", "root", root, "matched", stats.Matched,
		"succeeded", stats.Succeeded, "deduplicated", stats.Deduplicated, "failed", stats.Failed)
	return results, stats, ctx.Err()
}
