package entity

import (
	"encoding/json"
	"time"

	"github.com/joseph-ayodele/docscan/constants"
)

// DedupeKeys identifies an upload for one seller. Either key matching an existing event is a duplicate.
type DedupeKeys struct {
	UploadID    string `json:"upload_id,omitempty"`
	ContentHash string `json:"content_hash"`
}

// CachedOCRData is the replayable outcome of one successful analysis.
type CachedOCRData struct {
	ExtractedData json.RawMessage        `json:"extracted_data"`
	ParsedFields  json.RawMessage        `json:"parsed_fields"`
	DriverRaw     json.RawMessage        `json:"driver_raw,omitempty"`
	DocumentType  constants.DocumentType `json:"document_type"`
	MimeType      string                 `json:"mime_type"`
	Backend       string                 `json:"backend"`
	CachedAt      time.Time              `json:"cached_at"`
}

// AnalysisEvent represents one deduplicated analysis for data transfer between layers.
type AnalysisEvent struct {
	AnalysisID       string                   `json:"analysis_id"`
	SellerID         string                   `json:"seller_id"`
	UploaderID       string                   `json:"uploader_id"`
	UploaderType     constants.UploaderRole   `json:"uploader_type"`
	DedupeKeys       DedupeKeys               `json:"dedupe_keys"`
	Status           constants.AnalysisStatus `json:"status"`
	CachedOCRData    *CachedOCRData           `json:"cached_ocr_data,omitempty"`
	RecordID         string                   `json:"record_id,omitempty"`
	BilledToSeller   bool                     `json:"billed_to_seller"`
	BilledToCustomer bool                     `json:"billed_to_customer"`
	CreatedAt        time.Time                `json:"created_at"`
	UpdatedAt        time.Time                `json:"updated_at"`
}

// Cached reports whether the event carries a replayable result.
func (e *AnalysisEvent) Cached() bool {
	return e != nil && e.Status == constants.AnalysisStatusCached && e.CachedOCRData != nil
}
