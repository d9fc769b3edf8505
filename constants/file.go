package constants

import "strings"

// Mime types accepted for analysis.
const (
	MimePDF  = "application/pdf"
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimeHEIC = "image/heic"
	MimeTIFF = "image/tiff"
	MimeWEBP = "image/webp"
)

// AllowedExtensions holds the default allowed file extensions for batch ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"heic": {},
	"tif":  {},
	"tiff": {},
	"webp": {},
}

var extToMime = map[string]string{
	"pdf":  MimePDF,
	"jpg":  MimeJPEG,
	"jpeg": MimeJPEG,
	"png":  MimePNG,
	"heic": MimeHEIC,
	"heif": MimeHEIC,
	"tif":  MimeTIFF,
	"tiff": MimeTIFF,
	"webp": MimeWEBP,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MimeFromExt maps a file extension to its mime type; ok is false for unsupported extensions.
func MimeFromExt(ext string) (string, bool) {
	m, ok := extToMime[NormalizeExt(ext)]
	return m, ok
}

// SupportedMime reports whether the mime type can be analyzed.
func SupportedMime(mime string) bool {
	mime = strings.ToLower(strings.TrimSpace(mime))
	for _, m := range extToMime {
		if m == mime {
			return true
		}
	}
	return false
}

// IsImageMime reports whether mime is one of the raster formats.
func IsImageMime(mime string) bool {
	return strings.HasPrefix(strings.ToLower(mime), "image/")
}
