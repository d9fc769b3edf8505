package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/joseph-ayodele/docscan/constants"
	"github.com/joseph-ayodele/docscan/internal/common"
	"github.com/joseph-ayodele/docscan/internal/document"
	"github.com/joseph-ayodele/docscan/internal/extract"
	"github.com/joseph-ayodele/docscan/internal/parse"
)

type fakeBackend struct {
	name  string
	mimes map[string]bool
	calls int
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Analyze(context.Context, extract.Request) (extract.Result, error) {
	f.calls++
	return extract.Result{Driver: f.name}, nil
}

func (f *fakeBackend) Supports(mime string) bool { return f.mimes == nil || f.mimes[mime] }

func cloud(name string) *fakeBackend {
	return &fakeBackend{name: name, mimes: map[string]bool{constants.MimePDF: true, constants.MimeJPEG: true}}
}

func TestRoute(t *testing.T) {
	local := &fakeBackend{name: "local"}
	r := New(Backends{Local: local, Read: cloud("read"), Layout: cloud("layout")}, parse.DefaultConfig(), nil)

	tests := []struct {
		name        string
		req         Request
		wantParser  constants.ParserKind
		wantModel   extract.Model
		wantBackend string
	}{
		{"premium meter", Request{constants.DocumentUtilityMeter, constants.MimeJPEG, constants.TierPremium}, constants.ParserUtility, extract.ModelRead, "read"},
		{"premium invoice", Request{constants.DocumentInvoice, constants.MimePDF, constants.TierPremium}, constants.ParserReceipt, extract.ModelRead, "read"},
		{"premium customers", Request{constants.DocumentCustomers, constants.MimePDF, constants.TierPremium}, constants.ParserCustomers, extract.ModelLayout, "layout"},
		{"premium heic falls back", Request{constants.DocumentReceipt, constants.MimeHEIC, constants.TierPremium}, constants.ParserReceipt, extract.ModelRead, "local"},
		{"free stays local", Request{constants.DocumentGeneric, constants.MimePDF, constants.TierFree}, constants.ParserGeneric, extract.ModelLayout, "local"},
		{"empty type is generic", Request{"", constants.MimePNG, constants.TierFree}, constants.ParserGeneric, extract.ModelLayout, "local"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := r.Route(tt.req)
			if err != nil {
				t.Fatalf("Route: %v", err)
			}
			if plan.Parser != tt.wantParser || plan.Model != tt.wantModel || plan.Backend.Name() != tt.wantBackend {
				t.Errorf("plan = %s/%s/%s", plan.Parser, plan.Model, plan.Backend.Name())
			}
		})
	}
}

func TestRouteFallsBackToAnyBackend(t *testing.T) {
	r := New(Backends{Layout: cloud("layout")}, parse.DefaultConfig(), nil)
	plan, err := r.Route(Request{constants.DocumentReceipt, constants.MimeJPEG, constants.TierFree})
	if err != nil || plan.Backend.Name() != "layout" {
		t.Fatalf("plan=%+v err=%v", plan, err)
	}
}

func TestRouteErrors(t *testing.T) {
	r := New(Backends{Read: cloud("read")}, parse.DefaultConfig(), nil)
	if _, err := r.Route(Request{constants.DocumentReceipt, "text/plain", constants.TierFree}); !errors.Is(err, common.ErrUnsupportedMime) {
		t.Errorf("unsupported mime: err = %v", err)
	}
	if _, err := r.Route(Request{constants.DocumentReceipt, constants.MimeHEIC, constants.TierPremium}); !errors.Is(err, common.ErrNoBackend) {
		t.Errorf("no backend: err = %v", err)
	}
}

func TestParseKinds(t *testing.T) {
	r := New(Backends{}, parse.DefaultConfig(), nil)
	for kind, want := range map[constants.ParserKind]document.Kind{
		constants.ParserUtility:   document.KindUtility,
		constants.ParserReceipt:   document.KindReceipt,
		constants.ParserGeneric:   document.KindGeneric,
		constants.ParserCustomers: document.KindCustomers,
	} {
		got := r.Parse(kind, extract.Result{})
		if got.Kind != want || got.Payload() == nil {
			t.Errorf("%s: kind=%s payload=%v", kind, got.Kind, got.Payload())
		}
		if err := document.Validate(got); err != nil {
			t.Errorf("%s: empty document does not validate: %v", kind, err)
		}
	}
}

func TestThrottle(t *testing.T) {
	inner := &fakeBackend{name: "local"}
	if Throttle(inner, 0, 1) != extract.Backend(inner) {
		t.Error("zero rate must return the backend unchanged")
	}
	b := Throttle(inner, 1000, 1)
	if b.Name() != "local" {
		t.Errorf("name = %s", b.Name())
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 3; i++ {
		if _, err := b.Analyze(ctx, extract.Request{}); err != nil {
			t.Fatalf("Analyze: %v", err)
		}
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d", inner.calls)
	}

	slow := Throttle(inner, 0.001, 1)
	_, _ = slow.Analyze(ctx, extract.Request{})
	short, cancelShort := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancelShort()
	if _, err := slow.Analyze(short, extract.Request{}); err == nil {
		t.Error("expected the limiter to refuse a second call inside the deadline")
	}
}
