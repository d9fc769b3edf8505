package constants

// AnalysisStatus is the lifecycle state of an analysis event.
type AnalysisStatus string

// Stable values (store these exact strings in DB).
const (
	AnalysisStatusNew       AnalysisStatus = "NEW"
	AnalysisStatusAnalyzing AnalysisStatus = "ANALYZING" // claimed, OCR in flight
	AnalysisStatusCached    AnalysisStatus = "CACHED"    // terminal, result replayable
)

// Tier selects which OCR backends a request may use.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)
