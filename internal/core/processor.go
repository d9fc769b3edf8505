package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/semaphore"

	"github.com/joseph-ayodele/docscan/constants"
	"github.com/joseph-ayodele/docscan/internal/common"
	"github.com/joseph-ayodele/docscan/internal/document"
	"github.com/joseph-ayodele/docscan/internal/entity"
	"github.com/joseph-ayodele/docscan/internal/extract"
	"github.com/joseph-ayodele/docscan/internal/repository"
	"github.com/joseph-ayodele/docscan/internal/router"
)

// Router plans an analysis and parses the OCR output it produced.
type Router interface {
	Route(req router.Request) (router.Plan, error)
	Parse(kind constants.ParserKind, res extract.Result) document.Extracted
}

// AnalyzeRequest is one uploaded document to analyze on behalf of a seller.
type AnalyzeRequest struct {
	SellerID     string
	UploaderID   string
	UploaderType constants.UploaderRole
	// UploadID is the caller's id for the upload. Optional; the content hash always dedupes.
	UploadID     string
	Content      []byte
	MimeType     string
	Filename     string
	DocumentType constants.DocumentType
	Tier         constants.Tier
}

// AnalyzeResult is returned for both fresh and replayed analyses.
type AnalyzeResult struct {
	AnalysisID    string                 `json:"analysisId"`
	Cached        bool                   `json:"cached"`
	Billed        bool                   `json:"billed"`
	RecordID      string                 `json:"recordId"`
	DocumentType  constants.DocumentType `json:"documentType"`
	MimeType      string                 `json:"mimeType"`
	Backend       string                 `json:"backend"`
	ExtractedData json.RawMessage        `json:"extractedData"`
	ParsedFields  json.RawMessage        `json:"parsedFields"`
	CachedAt      time.Time              `json:"cachedAt"`
}

// maxClaimAttempts bounds how often a request re-claims an upload whose previous claim was released.
const maxClaimAttempts = 3

// Processor deduplicates uploads per seller, runs OCR and parsing once per unique upload,
// caches the outcome and bills it exactly once.
type Processor struct {
	events repository.AnalysisEventRepository
	usage  repository.UsageRepository
	router Router
	sem    *semaphore.Weighted
	cfg    common.AnalysisConfig
	logger *slog.Logger
}

func NewProcessor(
	events repository.AnalysisEventRepository,
	usage repository.UsageRepository,
	rt Router,
	cfg common.AnalysisConfig,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxConcurrentOCR < 1 {
		cfg.MaxConcurrentOCR = 1
	}
	if cfg.PendingPoll <= 0 {
		cfg.PendingPoll = 250 * time.Millisecond
	}
	return &Processor{
		events: events,
		usage:  usage,
		router: rt,
		sem:    semaphore.NewWeighted(cfg.MaxConcurrentOCR),
		cfg:    cfg,
		logger: logger,
	}
}

// ContentHash is the hex sha256 of the uploaded bytes.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// ValidSellerID accepts UUIDs and Mongo object ids.
func ValidSellerID(id string) bool {
	if _, err := uuid.Parse(id); err == nil {
		return true
	}
	return primitive.IsValidObjectID(id)
}

func validateSeller(sellerID string) error {
	if sellerID == "" {
		return common.NewAppError("MISSING_SELLER", "Missing sellerId for analysis", common.ErrInvalidInput)
	}
	if !ValidSellerID(sellerID) {
		return common.NewAppError("INVALID_SELLER", "Invalid sellerId provided", common.ErrInvalidInput)
	}
	return nil
}

func validateRequest(req AnalyzeRequest) error {
	if err := validateSeller(req.SellerID); err != nil {
		return err
	}
	v := common.NewValidator().
		Field("content", req.Content, common.NotEmptyBytes).
		Field("mimeType", req.MimeType, common.Required).
		Field("uploaderType", string(req.UploaderType),
			common.OneOf(string(constants.UploaderSeller), string(constants.UploaderCustomer)))
	if v.HasErrors() {
		return v.Error()
	}
	if !constants.SupportedMime(req.MimeType) {
		return common.WrapError(common.ErrUnsupportedMime, fmt.Sprintf("mime %q", req.MimeType))
	}
	return nil
}

// Analyze returns the analysis of req.Content for req.SellerID. The first request for an upload
// runs OCR and is billed; every later request for the same upload id or the same bytes replays
// the cached result with Cached set.
func (p *Processor) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	if req.UploaderType == "" {
		req.UploaderType = constants.UploaderSeller
	}
	if err := validateRequest(req); err != nil {
		p.logger.Warn("rejected analysis request", "seller_id", req.SellerID, "error", err)
		return nil, err
	}
	ctx = common.WithSellerID(ctx, req.SellerID)

	claim := &entity.AnalysisEvent{
		SellerID:     req.SellerID,
		UploaderID:   req.UploaderID,
		UploaderType: req.UploaderType,
		DedupeKeys:   entity.DedupeKeys{UploadID: req.UploadID, ContentHash: ContentHash(req.Content)},
	}

	for attempt := 1; attempt <= maxClaimAttempts; attempt++ {
		ev, inserted, err := p.events.InsertIfAbsent(ctx, claim)
		if err != nil {
			return nil, err
		}
		if inserted {
			return p.run(ctx, ev, req)
		}

		done, err := p.awaitCached(ctx, ev)
		if errors.Is(err, common.ErrNotFound) {
			p.logger.Info("previous claim was released, claiming again",
				"analysis_id", ev.AnalysisID, "seller_id", req.SellerID, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, err
		}
		p.logger.Info("serving cached analysis", "analysis_id", done.AnalysisID, "seller_id", req.SellerID)
		return resultFrom(done, true, false), nil
	}
	return nil, common.ErrConflictUnsolved
}

// awaitCached waits, up to PendingWait, for another request to finish analyzing ev.
// It returns ErrNotFound when that request gave up and released its claim.
func (p *Processor) awaitCached(ctx context.Context, ev *entity.AnalysisEvent) (*entity.AnalysisEvent, error) {
	if ev.Cached() {
		return ev, nil
	}
	p.logger.Debug("waiting for in-flight analysis", "analysis_id", ev.AnalysisID)

	deadline := time.NewTimer(p.cfg.PendingWait)
	defer deadline.Stop()
	ticker := time.NewTicker(p.cfg.PendingPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, common.WrapError(common.ErrAnalysisPending, "analysis "+ev.AnalysisID)
		case <-ticker.C:
			cur, err := p.events.GetByID(ctx, ev.AnalysisID)
			if err != nil {
				return nil, err
			}
			if cur.Cached() {
				return cur, nil
			}
		}
	}
}

// run performs the analysis for a claim this request inserted. On failure the claim is released
// so that a retry can analyze the upload again; nothing partial is cached.
func (p *Processor) run(ctx context.Context, ev *entity.AnalysisEvent, req AnalyzeRequest) (res *AnalyzeResult, err error) {
	ctx = common.WithAnalysisID(ctx, ev.AnalysisID)
	logger := p.logger.With(common.LogAttrs(ctx)...)
	defer func() {
		if err == nil {
			return
		}
		logger.Error("analysis failed", "error", err)
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if rerr := p.events.Release(rctx, ev.AnalysisID); rerr != nil {
			logger.Error("failed to release analysis claim", "error", rerr)
		}
	}()

	plan, err := p.router.Route(router.Request{DocumentType: req.DocumentType, MimeType: req.MimeType, Tier: req.Tier})
	if err != nil {
		return nil, err
	}
	ocrRes, err := p.ocr(ctx, plan, req)
	if err != nil {
		return nil, err
	}

	doc := p.router.Parse(plan.Parser, ocrRes)
	if err := document.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrValidation, err)
	}
	parsed, err := document.SafeMarshal(doc)
	if err != nil {
		return nil, common.WrapError(err, "encode parsed fields")
	}
	extracted, xerr := document.MarshalOrMarker(ocrRes)
	if xerr != nil {
		logger.Warn("ocr output could not be encoded", "error", xerr)
	}
	raw, rerr := document.MarshalOrMarker(ocrRes.Raw)
	if rerr != nil {
		logger.Warn("driver response could not be encoded", "backend", plan.Backend.Name(), "error", rerr)
	}

	data := entity.CachedOCRData{
		ExtractedData: extracted,
		ParsedFields:  parsed,
		DriverRaw:     raw,
		DocumentType:  plan.DocumentType,
		MimeType:      req.MimeType,
		Backend:       plan.Backend.Name(),
		CachedAt:      time.Now().UTC(),
	}
	if err := p.events.SaveCache(ctx, ev.AnalysisID, data); err != nil {
		return nil, err
	}
	ev.Status = constants.AnalysisStatusCached
	ev.CachedOCRData = &data

	billed, err := p.bill(ctx, ev, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("analysis complete", "document_type", plan.DocumentType, "backend", data.Backend, "billed", billed)
	return resultFrom(ev, false, billed), nil
}

func (p *Processor) ocr(ctx context.Context, plan router.Plan, req AnalyzeRequest) (extract.Result, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return extract.Result{}, err
	}
	defer p.sem.Release(1)

	ctx, cancel := common.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	start := time.Now()
	res, err := plan.Backend.Analyze(ctx, extract.Request{
		Content:  req.Content,
		MimeType: req.MimeType,
		Model:    plan.Model,
		Filename: req.Filename,
	})
	if err != nil {
		return extract.Result{}, fmt.Errorf("%s: %w: %w", plan.Backend.Name(), common.ErrUpstream, err)
	}
	if res.Duration == 0 {
		res.Duration = time.Since(start)
	}
	p.logger.Debug("ocr finished", "backend", plan.Backend.Name(), "model", plan.Model, "duration", res.Duration)
	return res, nil
}

// bill charges the uploader's counter once. MarkBilled only succeeds for the first caller,
// so a replay or a concurrent duplicate can never increment twice. If the increment then
// fails the scan stays unbilled; the event is logged at error level for reconciliation.
func (p *Processor) bill(ctx context.Context, ev *entity.AnalysisEvent, logger *slog.Logger) (bool, error) {
	flipped, err := p.events.MarkBilled(ctx, ev.AnalysisID, ev.UploaderType)
	if err != nil || !flipped {
		return false, err
	}
	if err := p.usage.Increment(ctx, ev.SellerID, ev.UploaderType); err != nil {
		// logger already carries analysis_id and seller_id
		logger.Error("usage increment lost after billing flag set", "uploader_type", ev.UploaderType, "error", err)
		return false, common.WrapError(err, "increment usage")
	}
	if ev.UploaderType == constants.UploaderCustomer {
		ev.BilledToCustomer = true
	} else {
		ev.BilledToSeller = true
	}
	return true, nil
}

func resultFrom(ev *entity.AnalysisEvent, cached, billed bool) *AnalyzeResult {
	res := &AnalyzeResult{
		AnalysisID: ev.AnalysisID,
		Cached:     cached,
		Billed:     billed,
		RecordID:   ev.RecordID,
	}
	if d := ev.CachedOCRData; d != nil {
		res.DocumentType = d.DocumentType
		res.MimeType = d.MimeType
		res.Backend = d.Backend
		res.ExtractedData = d.ExtractedData
		res.ParsedFields = d.ParsedFields
		res.CachedAt = d.CachedAt
	}
	return res
}

// LinkRecord attaches the id of the record the caller created from an analysis.
func (p *Processor) LinkRecord(ctx context.Context, analysisID, recordID string) error {
	v := common.NewValidator().
		Field("analysisId", analysisID, common.Required, common.UUID).
		Field("recordId", recordID, common.Required)
	if v.HasErrors() {
		return v.Error()
	}
	if err := p.events.LinkRecord(ctx, analysisID, recordID); err != nil {
		return err
	}
	p.logger.Info("record linked", "analysis_id", analysisID, "record_id", recordID)
	return nil
}

// GetUsage returns the billing counters of a seller.
func (p *Processor) GetUsage(ctx context.Context, sellerID string) (*entity.SellerUsage, error) {
	if err := validateSeller(sellerID); err != nil {
		return nil, err
	}
	return p.usage.Get(ctx, sellerID)
}
