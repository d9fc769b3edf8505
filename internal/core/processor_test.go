package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docscan/constants"
	"github.com/joseph-ayodele/docscan/internal/common"
	"github.com/joseph-ayodele/docscan/internal/entity"
	"github.com/joseph-ayodele/docscan/internal/extract"
	"github.com/joseph-ayodele/docscan/internal/parse"
	"github.com/joseph-ayodele/docscan/internal/router"
)

const sellerID = "6f1c2b1e-3f7a-4c55-9a55-0f4e7c1d2a10"

// memStore is an in-memory event and usage store with the same atomicity as the real ones.
type memStore struct {
	mu     sync.Mutex
	events map[string]*entity.AnalysisEvent
	usage  map[string]*entity.SellerUsage

	incrementErr error
}

func newMemStore() *memStore {
	return &memStore{events: map[string]*entity.AnalysisEvent{}, usage: map[string]*entity.SellerUsage{}}
}

func clone(ev *entity.AnalysisEvent) *entity.AnalysisEvent {
	c := *ev
	if ev.CachedOCRData != nil {
		d := *ev.CachedOCRData
		c.CachedOCRData = &d
	}
	return &c
}

func (m *memStore) find(sellerID string, keys entity.DedupeKeys) *entity.AnalysisEvent {
	for _, ev := range m.events {
		if ev.SellerID != sellerID {
			continue
		}
		if ev.DedupeKeys.ContentHash == keys.ContentHash ||
			(keys.UploadID != "" && ev.DedupeKeys.UploadID == keys.UploadID) {
			return ev
		}
	}
	return nil
}

func (m *memStore) InsertIfAbsent(_ context.Context, ev *entity.AnalysisEvent) (*entity.AnalysisEvent, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing := m.find(ev.SellerID, ev.DedupeKeys); existing != nil {
		return clone(existing), false, nil
	}
	row := clone(ev)
	row.AnalysisID = uuid.NewString()
	row.Status = constants.AnalysisStatusAnalyzing
	row.CreatedAt = time.Now()
	m.events[row.AnalysisID] = row
	return clone(row), true, nil
}

func (m *memStore) FindByDedupeKeys(_ context.Context, sellerID string, keys entity.DedupeKeys) (*entity.AnalysisEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev := m.find(sellerID, keys); ev != nil {
		return clone(ev), nil
	}
	return nil, common.ErrNotFound
}

func (m *memStore) GetByID(_ context.Context, id string) (*entity.AnalysisEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev, ok := m.events[id]; ok {
		return clone(ev), nil
	}
	return nil, common.ErrNotFound
}

func (m *memStore) SaveCache(_ context.Context, id string, data entity.CachedOCRData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	if !ok {
		return common.ErrNotFound
	}
	ev.CachedOCRData = &data
	ev.Status = constants.AnalysisStatusCached
	return nil
}

func (m *memStore) MarkBilled(_ context.Context, id string, role constants.UploaderRole) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	if !ok {
		return false, nil
	}
	flag := &ev.BilledToSeller
	if role == constants.UploaderCustomer {
		flag = &ev.BilledToCustomer
	}
	if *flag {
		return false, nil
	}
	*flag = true
	return true, nil
}

func (m *memStore) LinkRecord(_ context.Context, id, recordID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	if !ok {
		return common.ErrNotFound
	}
	ev.RecordID = recordID
	return nil
}

func (m *memStore) Release(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev, ok := m.events[id]; ok && ev.Status != constants.AnalysisStatusCached {
		delete(m.events, id)
	}
	return nil
}

func (m *memStore) Increment(_ context.Context, sellerID string, role constants.UploaderRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.incrementErr != nil {
		return m.incrementErr
	}
	u, ok := m.usage[sellerID]
	if !ok {
		u = &entity.SellerUsage{SellerID: sellerID}
		m.usage[sellerID] = u
	}
	if role == constants.UploaderCustomer {
		u.CustomerOCRScans++
	} else {
		u.OCRScans++
	}
	return nil
}

func (m *memStore) Get(_ context.Context, sellerID string) (*entity.SellerUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.usage[sellerID]; ok {
		c := *u
		return &c, nil
	}
	return &entity.SellerUsage{SellerID: sellerID}, nil
}

type fakeBackend struct {
	mu    sync.Mutex
	calls int
	fail  int
	delay time.Duration
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Analyze(ctx context.Context, _ extract.Request) (extract.Result, error) {
	f.mu.Lock()
	f.calls++
	failing := f.calls <= f.fail
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return extract.Result{}, ctx.Err()
		}
	}
	if failing {
		return extract.Result{}, errors.New("backend unavailable")
	}
	return extract.Result{
		Driver: "fake",
		Model:  extract.ModelRead,
		Pages: []extract.Page{{Lines: []extract.RawLine{
			rawLine("CORNER CAFE LTD", 10, 10),
			rawLine("2 Bagel 3.00", 10, 100),
			rawLine("Total 3.00", 10, 200),
		}}},
		Raw: map[string]any{"status": "ok"},
	}, nil
}

func (f *fakeBackend) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func rawLine(text string, x, y float64) extract.RawLine {
	return extract.RawLine{Text: text, BoundingBox: []float64{x, y, x + 200, y, x + 200, y + 20, x, y + 20}}
}

func newTestProcessor(t *testing.T, backend *fakeBackend) (*Processor, *memStore) {
	t.Helper()
	store := newMemStore()
	rt := router.New(router.Backends{Local: backend}, parse.DefaultConfig(), nil)
	cfg := common.AnalysisConfig{
		MaxConcurrentOCR: 2,
		PendingWait:      5 * time.Second,
		PendingPoll:      time.Millisecond,
		Timeout:          5 * time.Second,
	}
	return NewProcessor(store, store, rt, cfg, nil), store
}

func receiptRequest(uploadID string, content []byte) AnalyzeRequest {
	return AnalyzeRequest{
		SellerID:     sellerID,
		UploaderID:   "uploader-1",
		UploaderType: constants.UploaderSeller,
		UploadID:     uploadID,
		Content:      content,
		MimeType:     constants.MimePNG,
		DocumentType: constants.DocumentReceipt,
		Tier:         constants.TierFree,
	}
}

func TestDuplicateContentIsServedFromCache(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{}
	p, _ := newTestProcessor(t, backend)
	content := []byte("receipt bytes")

	first, err := p.Analyze(ctx, receiptRequest("upload-1", content))
	if err != nil {
		t.Fatalf("first Analyze: %v", err)
	}
	if first.Cached || !first.Billed {
		t.Errorf("first result: cached=%v billed=%v", first.Cached, first.Billed)
	}
	if !bytes.Contains(first.ParsedFields, []byte(`"kind":"receipt"`)) {
		t.Errorf("parsed fields = %s", first.ParsedFields)
	}

	second, err := p.Analyze(ctx, receiptRequest("upload-2", content))
	if err != nil {
		t.Fatalf("second Analyze: %v", err)
	}
	if !second.Cached || second.Billed {
		t.Errorf("second result: cached=%v billed=%v", second.Cached, second.Billed)
	}
	if second.AnalysisID != first.AnalysisID {
		t.Errorf("analysis id = %s, want %s", second.AnalysisID, first.AnalysisID)
	}
	if !bytes.Equal(second.ParsedFields, first.ParsedFields) {
		t.Errorf("replayed fields differ: %s vs %s", second.ParsedFields, first.ParsedFields)
	}

	usage, err := p.GetUsage(ctx, sellerID)
	if err != nil {
		t.Fatal(err)
	}
	if usage.OCRScans != 1 || usage.CustomerOCRScans != 0 {
		t.Errorf("usage = %+v, want one seller scan", usage)
	}
	if backend.Calls() != 1 {
		t.Errorf("backend called %d times, want 1", backend.Calls())
	}
}

func TestSameUploadIDWithNewBytesIsDuplicate(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{}
	p, _ := newTestProcessor(t, backend)

	first, err := p.Analyze(ctx, receiptRequest("upload-1", []byte("a")))
	if err != nil {
		t.Fatal(err)
	}
	second, err := p.Analyze(ctx, receiptRequest("upload-1", []byte("b")))
	if err != nil {
		t.Fatal(err)
	}
	if !second.Cached || second.AnalysisID != first.AnalysisID {
		t.Errorf("second = %+v", second)
	}
}

func TestConcurrentDuplicatesBillOnce(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{delay: 20 * time.Millisecond}
	p, store := newTestProcessor(t, backend)

	const n = 10
	results := make([]*AnalyzeResult, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = p.Analyze(ctx, receiptRequest(fmt.Sprintf("upload-%d", i), []byte("same bytes")))
		}(i)
	}
	wg.Wait()

	fresh := 0
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("request %d: %v", i, errs[i])
		}
		if !results[i].Cached {
			fresh++
		}
		if results[i].AnalysisID != results[0].AnalysisID {
			t.Errorf("request %d got analysis %s, want %s", i, results[i].AnalysisID, results[0].AnalysisID)
		}
	}
	if fresh != 1 {
		t.Errorf("%d requests ran the analysis, want 1", fresh)
	}
	if backend.Calls() != 1 {
		t.Errorf("backend called %d times, want 1", backend.Calls())
	}
	if u, _ := store.Get(ctx, sellerID); u.OCRScans != 1 {
		t.Errorf("ocr scans = %d, want 1", u.OCRScans)
	}
}

func TestFailureReleasesClaim(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{fail: 1}
	p, store := newTestProcessor(t, backend)
	content := []byte("flaky")

	_, err := p.Analyze(ctx, receiptRequest("upload-1", content))
	if !errors.Is(err, common.ErrUpstream) {
		t.Fatalf("first Analyze error = %v, want upstream failure", err)
	}
	if len(store.events) != 0 {
		t.Fatalf("failed analysis left %d events behind", len(store.events))
	}
	if u, _ := store.Get(ctx, sellerID); u.OCRScans != 0 {
		t.Fatalf("failed analysis was billed")
	}

	res, err := p.Analyze(ctx, receiptRequest("upload-1", content))
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if res.Cached || !res.Billed {
		t.Errorf("retry result: cached=%v billed=%v", res.Cached, res.Billed)
	}
	if u, _ := store.Get(ctx, sellerID); u.OCRScans != 1 {
		t.Errorf("ocr scans = %d, want 1", u.OCRScans)
	}
}

func TestCustomerUploadBillsCustomerCounter(t *testing.T) {
	ctx := context.Background()
	p, store := newTestProcessor(t, &fakeBackend{})
	req := receiptRequest("", []byte("customer upload"))
	req.UploaderType = constants.UploaderCustomer

	if _, err := p.Analyze(ctx, req); err != nil {
		t.Fatal(err)
	}
	u, _ := store.Get(ctx, sellerID)
	if u.OCRScans != 0 || u.CustomerOCRScans != 1 {
		t.Errorf("usage = %+v", u)
	}
}

func TestLinkedRecordIsReplayed(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProcessor(t, &fakeBackend{})
	content := []byte("linked")

	first, err := p.Analyze(ctx, receiptRequest("", content))
	if err != nil {
		t.Fatal(err)
	}
	if err := p.LinkRecord(ctx, first.AnalysisID, "record-42"); err != nil {
		t.Fatalf("LinkRecord: %v", err)
	}
	again, err := p.Analyze(ctx, receiptRequest("", content))
	if err != nil {
		t.Fatal(err)
	}
	if again.RecordID != "record-42" {
		t.Errorf("record id = %q", again.RecordID)
	}
	if err := p.LinkRecord(ctx, "", "record-42"); !errors.Is(err, common.ErrValidation) {
		t.Errorf("empty analysis id: %v", err)
	}
}

func TestPendingAnalysisTimesOut(t *testing.T) {
	ctx := context.Background()
	p, store := newTestProcessor(t, &fakeBackend{})
	p.cfg.PendingWait = 20 * time.Millisecond
	content := []byte("stuck")

	_, _, err := store.InsertIfAbsent(ctx, &entity.AnalysisEvent{
		SellerID:     sellerID,
		UploaderType: constants.UploaderSeller,
		DedupeKeys:   entity.DedupeKeys{ContentHash: ContentHash(content)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Analyze(ctx, receiptRequest("", content)); !errors.Is(err, common.ErrAnalysisPending) {
		t.Errorf("error = %v, want pending", err)
	}
}

func TestAnalyzeRejectsBadRequests(t *testing.T) {
	p, _ := newTestProcessor(t, &fakeBackend{})
	tests := []struct {
		name   string
		mutate func(*AnalyzeRequest)
		want   error
	}{
		{"missing seller", func(r *AnalyzeRequest) { r.SellerID = "" }, common.ErrInvalidInput},
		{"invalid seller", func(r *AnalyzeRequest) { r.SellerID = "seller-1" }, common.ErrInvalidInput},
		{"empty content", func(r *AnalyzeRequest) { r.Content = nil }, common.ErrValidation},
		{"unknown role", func(r *AnalyzeRequest) { r.UploaderType = "admin" }, common.ErrValidation},
		{"unsupported mime", func(r *AnalyzeRequest) { r.MimeType = "text/plain" }, common.ErrUnsupportedMime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := receiptRequest("", []byte("x"))
			tt.mutate(&req)
			if _, err := p.Analyze(context.Background(), req); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSellerIDFormats(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{sellerID, true},
		{"64b7f0c2a1b2c3d4e5f60718", true},
		{"64b7f0c2a1b2", false},
		{"not-an-id", false},
	}
	for _, tt := range tests {
		if got := ValidSellerID(tt.id); got != tt.want {
			t.Errorf("ValidSellerID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestLostIncrementIsLoggedAndNotRetried(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.incrementErr = errors.New("usage store down")
	var logs bytes.Buffer
	rt := router.New(router.Backends{Local: &fakeBackend{}}, parse.DefaultConfig(), nil)
	cfg := common.AnalysisConfig{MaxConcurrentOCR: 1, PendingWait: time.Second, PendingPoll: time.Millisecond, Timeout: time.Second}
	p := NewProcessor(store, store, rt, cfg, slog.New(slog.NewTextHandler(&logs, nil)))

	if _, err := p.Analyze(ctx, receiptRequest("upload-1", []byte("receipt"))); err == nil {
		t.Fatal("Analyze succeeded although the usage increment failed")
	}
	if len(store.events) != 1 {
		t.Fatalf("events = %d, the cached analysis must survive", len(store.events))
	}
	var id string
	for id = range store.events {
	}
	out := logs.String()
	if !strings.Contains(out, "usage increment lost after billing flag set") || !strings.Contains(out, "analysis_id="+id) {
		t.Errorf("lost increment not logged with its analysis id:\n%s", out)
	}

	store.mu.Lock()
	store.incrementErr = nil
	store.mu.Unlock()
	res, err := p.Analyze(ctx, receiptRequest("upload-1", []byte("receipt")))
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !res.Cached || res.Billed {
		t.Errorf("replay cached=%v billed=%v, want cached and unbilled", res.Cached, res.Billed)
	}
	if u, _ := store.Get(ctx, sellerID); u.OCRScans != 0 {
		t.Errorf("ocr scans = %d, a replay must not bill", u.OCRScans)
	}
}
