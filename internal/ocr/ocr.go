package ocr

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/docscan/constants"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for PDFs, default 300
	MaxPages      int    // 0 = no limit

	TessdataDir   string
	HeicConverter string

	PSM int // page segmentation mode; 0 leaves tesseract's default
	OEM int // 1 = LSTM; leave 0 to use default

	ArtifactCacheDir string
}

// Line is one tesseract text line with its quadrilateral.
type Line struct {
	Text       string
	Box        [8]float64
	Confidence float32
}

type PageResult struct {
	Lines []Line
}

type ExtractionResult struct {
	Text       string
	Pages      []PageResult
	SourceType string // "PDF" | "IMAGE"
	Method     string // "pdf-ocr" | "image-ocr"
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.ArtifactCacheDir == "" {
		cfg.ArtifactCacheDir = "./tmp"
	}
	return &Extractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// Extract stages content on disk and picks a strategy based on the mime type.
func (e *Extractor) Extract(ctx context.Context, content []byte, mime string) (ExtractionResult, error) {
	start := time.Now()
	mime = strings.ToLower(strings.TrimSpace(mime))
	e.logger.Debug("starting ocr extraction", "mime", mime, "bytes", len(content))

	sum := sha256.Sum256(content)
	hashHex := hex.EncodeToString(sum[:])

	tmpDir, err := os.MkdirTemp("", "ds-ocr-*")
	if err != nil {
		return ExtractionResult{}, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("failed to remove temp dir", "dir", tmpDir, "error", err)
		}
	}()

	path := filepath.Join(tmpDir, "input"+extForMime(mime))
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return ExtractionResult{}, err
	}

	var res ExtractionResult
	switch {
	case mime == constants.MimePDF:
		res, err = e.extractPDF(ctx, path)
	case constants.IsImageMime(mime):
		var warns []string
		if mime == constants.MimeHEIC {
			out, w, cleanup, cerr := convertHEICtoPNG(ctx, e.runner, e.logger, e.cfg.HeicConverter, path, e.cfg.ArtifactCacheDir, hashHex)
			warns = append(warns, w...)
			if cerr != nil {
				e.logger.Error("heic conversion failed", "error", cerr)
				return ExtractionResult{SourceType: "IMAGE", Warnings: warns}, cerr
			}
			if cleanup != nil {
				defer cleanup()
			}
			path = out
		}
		res, err = e.extractImage(ctx, path)
		res.Warnings = append(res.Warnings, warns...)
	default:
		e.logger.Error("unsupported ocr mime type", "mime", mime)
		return ExtractionResult{}, fmt.Errorf("unsupported mime type: %q", mime)
	}
	res.Duration = time.Since(start)
	return res, err
}

func extForMime(mime string) string {
	switch mime {
	case constants.MimePDF:
		return ".pdf"
	case constants.MimeJPEG:
		return ".jpg"
	case constants.MimeHEIC:
		return ".heic"
	case constants.MimeTIFF:
		return ".tiff"
	case constants.MimeWEBP:
		return ".webp"
	default:
		return ".png"
	}
}
