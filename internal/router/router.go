// Package router decides, per request, which OCR backend and model to call and which parser
// reads the result.
package router

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/docscan/constants"
	"github.com/joseph-ayodele/docscan/internal/common"
	"github.com/joseph-ayodele/docscan/internal/document"
	"github.com/joseph-ayodele/docscan/internal/extract"
	"github.com/joseph-ayodele/docscan/internal/parse"
	"github.com/joseph-ayodele/docscan/internal/parse/generic"
	"github.com/joseph-ayodele/docscan/internal/parse/meter"
	"github.com/joseph-ayodele/docscan/internal/parse/receipt"
)

// MimeSupporter is implemented by backends that only accept some mime types.
type MimeSupporter interface {
	Supports(mime string) bool
}

// Backends are the configured OCR backends. Any of them may be nil.
type Backends struct {
	Local  extract.Backend // tesseract, lines with boxes
	Read   extract.Backend // cloud flat-line model
	Layout extract.Backend // cloud layout model
}

type Request struct {
	DocumentType constants.DocumentType
	MimeType     string
	Tier         constants.Tier
}

// Plan is the routing decision for one document.
type Plan struct {
	DocumentType constants.DocumentType
	Parser       constants.ParserKind
	Model        extract.Model
	Backend      extract.Backend
}

type Router struct {
	backends Backends
	meter    *meter.Parser
	receipt  *receipt.Parser
	generic  *generic.Parser
	logger   *slog.Logger
}

func New(backends Backends, cfg parse.Config, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		backends: backends,
		meter:    meter.New(cfg),
		receipt:  receipt.New(cfg),
		generic:  generic.New(cfg),
		logger:   logger,
	}
}

// ParserFor maps a document type to its parser and the OCR model that parser reads best.
func ParserFor(dt constants.DocumentType) (constants.ParserKind, extract.Model) {
	switch dt {
	case constants.DocumentUtilityMeter:
		return constants.ParserUtility, extract.ModelRead
	case constants.DocumentReceipt, constants.DocumentInvoice:
		return constants.ParserReceipt, extract.ModelRead
	case constants.DocumentCustomers:
		return constants.ParserCustomers, extract.ModelLayout
	default:
		return constants.ParserGeneric, extract.ModelLayout
	}
}

// preference lists backends best-first. Premium prefers the cloud model matching the parser;
// free prefers local OCR. Later entries are fallbacks.
func (r *Router) preference(tier constants.Tier, model extract.Model) []extract.Backend {
	b := r.backends
	if tier == constants.TierPremium {
		if model == extract.ModelLayout {
			return []extract.Backend{b.Layout, b.Read, b.Local}
		}
		return []extract.Backend{b.Read, b.Layout, b.Local}
	}
	if model == extract.ModelLayout {
		return []extract.Backend{b.Local, b.Layout, b.Read}
	}
	return []extract.Backend{b.Local, b.Read, b.Layout}
}

func (r *Router) Route(req Request) (Plan, error) {
	if !constants.SupportedMime(req.MimeType) {
		return Plan{}, common.WrapError(common.ErrUnsupportedMime, fmt.Sprintf("mime %q", req.MimeType))
	}
	dt := req.DocumentType
	if dt == "" {
		dt = constants.DocumentGeneric
	}
	kind, model := ParserFor(dt)
	plan := Plan{DocumentType: dt, Parser: kind, Model: model}
	for _, b := range r.preference(req.Tier, model) {
		if b == nil {
			continue
		}
		if s, ok := b.(MimeSupporter); ok && !s.Supports(req.MimeType) {
			continue
		}
		plan.Backend = b
		r.logger.Debug("routed document", "document_type", dt, "parser", kind, "model", model, "backend", b.Name())
		return plan, nil
	}
	return Plan{}, common.WrapError(common.ErrNoBackend, fmt.Sprintf("tier %s mime %s", req.Tier, req.MimeType))
}

// Parse runs the parser named by kind. It never fails; unreadable input yields empty documents.
func (r *Router) Parse(kind constants.ParserKind, res extract.Result) document.Extracted {
	switch kind {
	case constants.ParserUtility:
		bill := r.meter.Parse(res)
		return document.Extracted{Kind: document.KindUtility, Utility: &bill}
	case constants.ParserReceipt:
		rec := r.receipt.Parse(res)
		return document.Extracted{Kind: document.KindReceipt, Receipt: &rec}
	case constants.ParserCustomers:
		c := r.generic.ParseCustomers(res)
		return document.Extracted{Kind: document.KindCustomers, Customers: &c}
	default:
		g := r.generic.Parse(res)
		return document.Extracted{Kind: document.KindGeneric, Generic: &g}
	}
}

// Throttled limits the call rate of a backend.
type Throttled struct {
	extract.Backend
	limiter *rate.Limiter
}

// Throttle wraps b with a token bucket of rps calls per second. Non-positive rps disables it.
func Throttle(b extract.Backend, rps float64, burst int) extract.Backend {
	if b == nil || rps <= 0 {
		return b
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttled{Backend: b, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (t *Throttled) Analyze(ctx context.Context, req extract.Request) (extract.Result, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return extract.Result{}, err
	}
	return t.Backend.Analyze(ctx, req)
}

func (t *Throttled) Supports(mime string) bool {
	if s, ok := t.Backend.(MimeSupporter); ok {
		return s.Supports(mime)
	}
	return true
}
