package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docscan/constants"
	"github.com/joseph-ayodele/docscan/internal/core"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Analyze a document for a seller, deduplicating and billing it once",
	Example: `  docscan analyze receipt.jpg --seller 6f1c2b1e-3f7a-4c55-9a55-0f4e7c1d2a10 --type receipt
  docscan analyze scan.pdf --seller 64b7f0c2a1b2c3d4e5f60718 --customer --upload-id up-17`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Print the billing counters of a seller",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		seller, _ := cmd.Flags().GetString("seller")
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		u, err := a.Processor.GetUsage(cmd.Context(), seller)
		if err != nil {
			return err
		}
		return writeJSON("", u)
	},
}

var linkCmd = &cobra.Command{
	Use:   "link [analysis-id] [record-id]",
	Short: "Attach the id of the record created from an analysis",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Processor.LinkRecord(cmd.Context(), args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd, usageCmd, linkCmd)

	analyzeCmd.Flags().String("seller", "", "seller id (UUID or object id)")
	analyzeCmd.Flags().String("uploader", "", "id of the uploading user")
	analyzeCmd.Flags().Bool("customer", false, "bill the upload to the seller's customer counter")
	analyzeCmd.Flags().String("upload-id", "", "caller's upload id used for deduplication")
	analyzeCmd.Flags().StringP("type", "t", "generic", "document type")
	analyzeCmd.Flags().String("tier", string(constants.TierFree), "backend tier: free or premium")
	analyzeCmd.Flags().StringP("output", "o", "", "output file path (default: stdout)")

	usageCmd.Flags().String("seller", "", "seller id")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	seller, _ := cmd.Flags().GetString("seller")
	uploader, _ := cmd.Flags().GetString("uploader")
	customer, _ := cmd.Flags().GetBool("customer")
	uploadID, _ := cmd.Flags().GetString("upload-id")
	typeFlag, _ := cmd.Flags().GetString("type")
	tierFlag, _ := cmd.Flags().GetString("tier")
	out, _ := cmd.Flags().GetString("output")

	path := args[0]
	mime, ok := constants.MimeFromExt(filepath.Ext(path))
	if !ok {
		return fmt.Errorf("unsupported file extension %q", filepath.Ext(path))
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	role := constants.UploaderSeller
	if customer {
		role = constants.UploaderCustomer
	}
	dt, _ := constants.CanonicalDocumentType(typeFlag)

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Processor.Analyze(cmd.Context(), core.AnalyzeRequest{
		SellerID:     seller,
		UploaderID:   uploader,
		UploaderType: role,
		UploadID:     uploadID,
		Content:      content,
		MimeType:     mime,
		Filename:     filepath.Base(path),
		DocumentType: dt,
		Tier:         constants.Tier(tierFlag),
	})
	if err != nil {
		return err
	}
	return writeJSON(out, res)
}
