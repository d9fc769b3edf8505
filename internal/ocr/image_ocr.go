package ocr

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const ImageConfidenceThreshold = 0.6

func (e *Extractor) extractImage(ctx context.Context, path string) (ExtractionResult, error) {
	page, ocrConf, warn, err := e.tesseractTSV(ctx, path)
	if err != nil {
		return ExtractionResult{SourceType: "IMAGE", Warnings: warn}, err
	}
	txt := Normalize(pageText(page))

	return ExtractionResult{
		Text:       txt,
		Pages:      []PageResult{page},
		SourceType: "IMAGE",
		Method:     "image-ocr",
		Language:   e.cfg.TesseractLang,
		Warnings:   warn,
		Confidence: blendConfidence(ocrConf, heuristicConfidence(txt)),
	}, nil
}

// blend: weight OCR higher if present
func blendConfidence(ocrConf, heurConf float32) float32 {
	var conf float32
	if ocrConf > 0 {
		conf = 0.7*ocrConf + 0.3*heurConf
	} else {
		conf = heurConf
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}

// tesseractTSV runs tesseract in TSV mode and groups words into positioned lines.
func (e *Extractor) tesseractTSV(ctx context.Context, path string) (PageResult, float32, []string, error) {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", fmt.Sprintf("%d", e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return PageResult{}, 0, []string{string(errb)}, fmt.Errorf("tesseract TSV: %w", err)
	}
	page, conf := parseTSV(string(out))
	return page, conf, nil, nil
}

type lineKey struct{ block, par, line int }

type lineAcc struct {
	order                  int
	words                  []string
	left, top, right, bott float64
	confSum                float64
	confN                  int
}

// parseTSV groups level-5 word rows by (block, paragraph, line) and returns the
// mean word confidence in 0..1.
//
// Columns: level page block par line word left top width height conf text
func parseTSV(tsv string) (PageResult, float32) {
	acc := map[lineKey]*lineAcc{}
	var sum, n float64
	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || len(ln) == 0 {
			continue
		} // skip header
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}
		nums := make([]float64, 10)
		ok := true
		for j := 1; j <= 10; j++ {
			v, err := strconv.ParseFloat(cols[j], 64)
			if err != nil {
				ok = false
				break
			}
			nums[j-1] = v
		}
		if !ok {
			continue
		}
		key := lineKey{block: int(nums[1]), par: int(nums[2]), line: int(nums[3])}
		left, top, width, height, conf := nums[5], nums[6], nums[7], nums[8], nums[9]

		a, exists := acc[key]
		if !exists {
			a = &lineAcc{order: len(acc), left: left, top: top, right: left + width, bott: top + height}
			acc[key] = a
		}
		a.words = append(a.words, text)
		if left < a.left {
			a.left = left
		}
		if top < a.top {
			a.top = top
		}
		if left+width > a.right {
			a.right = left + width
		}
		if top+height > a.bott {
			a.bott = top + height
		}
		if conf >= 0 {
			a.confSum += conf
			a.confN++
			sum += conf
			n++
		}
	}

	ordered := make([]*lineAcc, 0, len(acc))
	for _, a := range acc {
		ordered = append(ordered, a)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].order < ordered[j].order })

	page := PageResult{Lines: make([]Line, 0, len(ordered))}
	for _, a := range ordered {
		var c float32
		if a.confN > 0 {
			c = float32(a.confSum / float64(a.confN) / 100.0)
		}
		page.Lines = append(page.Lines, Line{
			Text:       strings.Join(a.words, " "),
			Box:        [8]float64{a.left, a.top, a.right, a.top, a.right, a.bott, a.left, a.bott},
			Confidence: c,
		})
	}
	if n == 0 {
		return page, 0
	}
	return page, float32(sum / n / 100.0)
}

func pageText(p PageResult) string {
	var b strings.Builder
	for i, l := range p.Lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.Text)
	}
	return b.String()
}
