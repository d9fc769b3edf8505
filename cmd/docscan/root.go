package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docscan/internal/app"
	"github.com/joseph-ayodele/docscan/internal/common"
)

var version = "0.1.0"

var (
	logger *slog.Logger
	cfg    *common.Config
)

var rootCmd = &cobra.Command{
	Use:   "docscan",
	Short: "Extract structured data from meter photos, receipts and tables",
	Long: `docscan runs OCR over documents and turns the positioned text into structured
utility meter, receipt and table data.

Analyses are deduplicated per seller: the same upload is only analyzed and billed once.
Configuration is read from the environment and an optional .env file.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load .env: %w", err)
		}
		level := slog.LevelInfo
		if v, _ := cmd.Flags().GetBool("verbose"); v {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		cfg = common.LoadConfig()
		if inmem, _ := cmd.Flags().GetBool("inmem"); inmem {
			cfg.Database.Driver = common.StoreSQLite
			cfg.Database.DSN = ":memory:"
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("inmem", false, "use an in-memory SQLite store")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log at debug level")
}

// openApp validates the configuration and wires the services.
func openApp(ctx context.Context) (*app.App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, logger)
}

// writeJSON prints v indented to path, or to stdout when path is empty.
func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if path == "" {
		_, err = os.Stdout.Write(b)
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
