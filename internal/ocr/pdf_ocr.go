package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// extractPDF rasterizes every page and runs TSV OCR per page image.
func (e *Extractor) extractPDF(ctx context.Context, path string) (ExtractionResult, error) {
	tmpDir, err := os.MkdirTemp("", "ds-pp-*")
	if err != nil {
		return ExtractionResult{SourceType: "PDF"}, err
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			e.logger.Warn("failed to remove temp dir", "dir", path, "error", err)
		}
	}(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return ExtractionResult{SourceType: "PDF", Warnings: []string{string(errb)}}, err
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return ExtractionResult{SourceType: "PDF", Warnings: []string{"pdftoppm produced no images"}}, fmt.Errorf("no pages rendered")
	}

	res := ExtractionResult{SourceType: "PDF", Method: "pdf-ocr", Language: e.cfg.TesseractLang}
	var texts []string
	var confSum float32
	var confN int
	for _, img := range matches {
		page, conf, w, err := e.tesseractTSV(ctx, img)
		res.Warnings = append(res.Warnings, w...)
		if err != nil {
			res.Warnings = append(res.Warnings, err.Error())
			continue
		}
		res.Pages = append(res.Pages, page)
		texts = append(texts, pageText(page))
		if conf > 0 {
			confSum += conf
			confN++
		}
	}
	if len(res.Pages) == 0 {
		return res, fmt.Errorf("ocr failed on all %d pages", len(matches))
	}
	// keep a clear page break marker
	res.Text = Normalize(strings.Join(texts, "\n\f\n"))
	var ocrConf float32
	if confN > 0 {
		ocrConf = confSum / float32(confN)
	}
	res.Confidence = blendConfidence(ocrConf, heuristicConfidence(res.Text))
	return res, nil
}
