// Package app wires configuration into the stores, OCR backends and services shared by the binaries.
package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/joseph-ayodele/docscan/internal/cloudocr"
	"github.com/joseph-ayodele/docscan/internal/common"
	"github.com/joseph-ayodele/docscan/internal/core"
	"github.com/joseph-ayodele/docscan/internal/export"
	"github.com/joseph-ayodele/docscan/internal/extract"
	"github.com/joseph-ayodele/docscan/internal/ingest"
	"github.com/joseph-ayodele/docscan/internal/ocr"
	"github.com/joseph-ayodele/docscan/internal/parse"
	"github.com/joseph-ayodele/docscan/internal/repository"
	"github.com/joseph-ayodele/docscan/internal/router"
)

type App struct {
	Config    *common.Config
	Stores    *repository.Stores
	Router    *router.Router
	Processor *core.Processor
	Exporter  *export.Service
	Ingestor  *ingest.FSIngestor

	closers []io.Closer
	logger  *slog.Logger
}

// Backends builds the local backend and, when a Google project is configured, the cloud ones.
func Backends(ctx context.Context, cfg *common.Config, logger *slog.Logger) (router.Backends, []io.Closer, error) {
	extractor := ocr.NewExtractor(ocr.Config{
		TesseractLang:    cfg.OCR.Languages,
		DPI:              cfg.OCR.PDFDPI,
		TessdataDir:      cfg.OCR.TessdataDir,
		HeicConverter:    cfg.OCR.HeicConverter,
		ArtifactCacheDir: cfg.OCR.ArtifactCacheDir,
	}, logger)
	b := router.Backends{Local: extract.NewOCRAdapter(extractor, logger)}
	if cfg.Google.ProjectID == "" {
		logger.Info("google ocr disabled, using local ocr only")
		return b, nil, nil
	}

	var closers []io.Closer
	vision, err := cloudocr.NewVision(ctx, cfg.Google, logger)
	if err != nil {
		return b, nil, err
	}
	closers = append(closers, vision)
	docai, err := cloudocr.NewDocumentAI(ctx, cfg.Google, cfg.Analysis.Timeout, logger)
	if err != nil {
		_ = vision.Close()
		return b, nil, err
	}
	closers = append(closers, docai)

	b.Read = router.Throttle(vision, cfg.Analysis.BackendRPS, cfg.Analysis.BackendBurst)
	b.Layout = router.Throttle(docai, cfg.Analysis.BackendRPS, cfg.Analysis.BackendBurst)
	logger.Info("google ocr enabled", "project_id", cfg.Google.ProjectID, "location", cfg.Google.Location)
	return b, closers, nil
}

// New opens the configured store and builds every service on top of it.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	stores, err := repository.OpenStores(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.Database.Driver, "error", err)
		return nil, err
	}
	backends, closers, err := Backends(ctx, cfg, logger)
	if err != nil {
		stores.Close()
		return nil, err
	}

	rt := router.New(backends, parse.DefaultConfig(), logger)
	proc := core.NewProcessor(stores.Events, stores.Usage, rt, cfg.Analysis, logger)
	return &App{
		Config:    cfg,
		Stores:    stores,
		Router:    rt,
		Processor: proc,
		Exporter:  export.NewService(stores.Events, logger),
		Ingestor:  ingest.NewFSIngestor(proc, logger),
		closers:   closers,
		logger:    logger,
	}, nil
}

func (a *App) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warn("failed to close backend", "error", err)
		}
	}
	a.Stores.Close()
}
