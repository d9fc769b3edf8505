package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docscan/constants"
	"github.com/joseph-ayodele/docscan/internal/app"
	"github.com/joseph-ayodele/docscan/internal/extract"
	"github.com/joseph-ayodele/docscan/internal/parse"
	"github.com/joseph-ayodele/docscan/internal/router"
)

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "OCR and parse one document without storing or billing it",
	Long: `Parse runs OCR over an image or PDF and prints the structured document as JSON.

A .json file is read as saved OCR output ({"pages":[{"lines":[...]}], "layout":{...}})
and parsed directly, which makes parser runs reproducible without an OCR backend.`,
	Example: `  docscan parse meter.jpg --type meter
  docscan parse receipt.pdf --type receipt --tier premium -o receipt.json
  docscan parse ocr-output.json --type customers`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().StringP("type", "t", "generic", "document type: "+strings.Join(constants.DocumentTypesAsStrings(), ", "))
	parseCmd.Flags().String("tier", string(constants.TierFree), "backend tier: free or premium")
	parseCmd.Flags().StringP("output", "o", "", "output file path (default: stdout)")
}

func runParse(cmd *cobra.Command, args []string) error {
	typeFlag, _ := cmd.Flags().GetString("type")
	tierFlag, _ := cmd.Flags().GetString("tier")
	out, _ := cmd.Flags().GetString("output")

	dt, ok := constants.CanonicalDocumentType(typeFlag)
	if !ok {
		logger.Warn("unknown document type, parsing as generic", "type", typeFlag)
	}
	path := args[0]
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var res extract.Result
		if err := json.Unmarshal(content, &res); err != nil {
			return fmt.Errorf("read ocr output: %w", err)
		}
		rt := router.New(router.Backends{}, parse.DefaultConfig(), logger)
		kind, _ := router.ParserFor(dt)
		return writeJSON(out, rt.Parse(kind, res))
	}

	mime, ok := constants.MimeFromExt(filepath.Ext(path))
	if !ok {
		return fmt.Errorf("unsupported file extension %q", filepath.Ext(path))
	}
	backends, closers, err := app.Backends(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()
	rt := router.New(backends, parse.DefaultConfig(), logger)
	plan, err := rt.Route(router.Request{DocumentType: dt, MimeType: mime, Tier: constants.Tier(tierFlag)})
	if err != nil {
		return err
	}
	res, err := plan.Backend.Analyze(cmd.Context(), extract.Request{
		Content:  content,
		MimeType: mime,
		Model:    plan.Model,
		Filename: filepath.Base(path),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", plan.Backend.Name(), err)
	}
	logger.Info("ocr finished", "backend", plan.Backend.Name(), "lines", len(res.Lines()), "confidence", res.Confidence)
	return writeJSON(out, rt.Parse(plan.Parser, res))
}
