// Package cloudocr implements extraction backends on Google Cloud Vision (read model) and
// Document AI (layout model).
package cloudocr

import (
	"fmt"
	"os"

	"google.golang.org/api/option"

	"github.com/joseph-ayodele/docscan/constants"
	"github.com/joseph-ayodele/docscan/internal/common"
)

// MaxInlineBytes is the largest payload the synchronous APIs accept inline.
const MaxInlineBytes = 20 * 1024 * 1024

// clientOptions picks credentials: inline GOOGLE_CREDENTIALS JSON, then the configured
// credentials file, then application default credentials.
func clientOptions(cfg common.GoogleConfig) []option.ClientOption {
	var opts []option.ClientOption
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	} else if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	return opts
}

// documentAIEndpoint returns the regional endpoint for locations other than "us".
func documentAIEndpoint(location string) (option.ClientOption, bool) {
	if location == "" || location == "us" {
		return nil, false
	}
	return option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", location)), true
}

// Supports reports the mime types Vision accepts inline.
func (v *Vision) Supports(mime string) bool {
	switch mime {
	case constants.MimePDF, constants.MimeTIFF, constants.MimePNG, constants.MimeJPEG, constants.MimeWEBP:
		return true
	}
	return false
}

// Supports reports the mime types the Document AI processors accept inline.
func (d *DocumentAI) Supports(mime string) bool {
	switch mime {
	case constants.MimePDF, constants.MimeTIFF, constants.MimePNG, constants.MimeJPEG, constants.MimeWEBP:
		return true
	}
	return false
}
