package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/joseph-ayodele/docscan/constants"
	"github.com/joseph-ayodele/docscan/internal/common"
	"github.com/joseph-ayodele/docscan/internal/entity"
)

func openTestStores(t *testing.T) *Stores {
	t.Helper()
	s, err := OpenStores(context.Background(), common.DatabaseConfig{Driver: common.StoreSQLite, DSN: ":memory:"}, nil)
	if err != nil {
		t.Fatalf("OpenStores: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func event(seller, upload, hash string) *entity.AnalysisEvent {
	return &entity.AnalysisEvent{
		SellerID:     seller,
		UploaderID:   "u-1",
		UploaderType: constants.UploaderSeller,
		DedupeKeys:   entity.DedupeKeys{UploadID: upload, ContentHash: hash},
	}
}

func TestInsertIfAbsentDedupes(t *testing.T) {
	ctx := context.Background()
	s := openTestStores(t)

	first, inserted, err := s.Events.InsertIfAbsent(ctx, event("s1", "up-1", "h1"))
	if err != nil || !inserted {
		t.Fatalf("first insert: inserted=%v err=%v", inserted, err)
	}
	if first.AnalysisID == "" || first.Status != constants.AnalysisStatusAnalyzing {
		t.Errorf("first = %+v", first)
	}

	tests := []struct {
		name         string
		ev           *entity.AnalysisEvent
		wantInserted bool
	}{
		{"same upload id, new bytes", event("s1", "up-1", "h2"), false},
		{"same bytes, no upload id", event("s1", "", "h1"), false},
		{"same bytes, other upload id", event("s1", "up-9", "h1"), false},
		{"other seller", event("s2", "up-1", "h1"), true},
		{"new upload", event("s1", "up-2", "h3"), true},
		{"no upload id", event("s1", "", "h4"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, inserted, err := s.Events.InsertIfAbsent(ctx, tt.ev)
			if err != nil {
				t.Fatalf("InsertIfAbsent: %v", err)
			}
			if inserted != tt.wantInserted {
				t.Fatalf("inserted = %v, want %v", inserted, tt.wantInserted)
			}
			if !inserted && got.AnalysisID != first.AnalysisID {
				t.Errorf("got analysis %s, want the existing %s", got.AnalysisID, first.AnalysisID)
			}
		})
	}
}

func TestConcurrentInsertHasOneWinner(t *testing.T) {
	ctx := context.Background()
	s := openTestStores(t)

	const n = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	ids := map[string]bool{}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, inserted, err := s.Events.InsertIfAbsent(ctx, event("s1", "up-1", "h1"))
			if err != nil {
				t.Errorf("InsertIfAbsent: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if inserted {
				winners++
			}
			ids[got.AnalysisID] = true
		}()
	}
	wg.Wait()
	if winners != 1 || len(ids) != 1 {
		t.Fatalf("winners=%d distinct ids=%d", winners, len(ids))
	}
}

func TestCacheBillingAndRelease(t *testing.T) {
	ctx := context.Background()
	s := openTestStores(t)

	ev, _, err := s.Events.InsertIfAbsent(ctx, event("s1", "up-1", "h1"))
	if err != nil {
		t.Fatal(err)
	}
	data := entity.CachedOCRData{
		ExtractedData: json.RawMessage(`{"kind":"receipt"}`),
		ParsedFields:  json.RawMessage(`{"total":3}`),
		DocumentType:  constants.DocumentReceipt,
		MimeType:      constants.MimePDF,
		CachedAt:      time.Now().UTC().Truncate(time.Second),
	}
	if err := s.Events.SaveCache(ctx, ev.AnalysisID, data); err != nil {
		t.Fatalf("SaveCache: %v", err)
	}

	billed, err := s.Events.MarkBilled(ctx, ev.AnalysisID, constants.UploaderSeller)
	if err != nil || !billed {
		t.Fatalf("first MarkBilled = %v, %v", billed, err)
	}
	billed, err = s.Events.MarkBilled(ctx, ev.AnalysisID, constants.UploaderSeller)
	if err != nil || billed {
		t.Fatalf("second MarkBilled = %v, %v", billed, err)
	}
	if err := s.Events.LinkRecord(ctx, ev.AnalysisID, "rec-7"); err != nil {
		t.Fatalf("LinkRecord: %v", err)
	}

	got, err := s.Events.GetByID(ctx, ev.AnalysisID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !got.Cached() || !got.BilledToSeller || got.BilledToCustomer || got.RecordID != "rec-7" {
		t.Errorf("event = %+v", got)
	}
	if string(got.CachedOCRData.ParsedFields) != `{"total":3}` || !got.CachedOCRData.CachedAt.Equal(data.CachedAt) {
		t.Errorf("cache = %+v", got.CachedOCRData)
	}
	if got.DedupeKeys.UploadID != "up-1" {
		t.Errorf("upload id = %q", got.DedupeKeys.UploadID)
	}

	// a cached event survives release
	if err := s.Events.Release(ctx, ev.AnalysisID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Events.GetByID(ctx, ev.AnalysisID); err != nil {
		t.Errorf("cached event was released: %v", err)
	}

	pending, _, err := s.Events.InsertIfAbsent(ctx, event("s1", "up-2", "h2"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Events.Release(ctx, pending.AnalysisID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Events.GetByID(ctx, pending.AnalysisID); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("released claim still present: %v", err)
	}
	if err := s.Events.LinkRecord(ctx, "missing", "r"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("LinkRecord on missing event: %v", err)
	}
}

func TestUsageCounters(t *testing.T) {
	ctx := context.Background()
	s := openTestStores(t)

	u, err := s.Usage.Get(ctx, "s1")
	if err != nil || u.OCRScans != 0 || u.CustomerOCRScans != 0 {
		t.Fatalf("fresh usage = %+v, %v", u, err)
	}
	for _, role := range []constants.UploaderRole{constants.UploaderSeller, constants.UploaderSeller, constants.UploaderCustomer} {
		if err := s.Usage.Increment(ctx, "s1", role); err != nil {
			t.Fatalf("Increment(%s): %v", role, err)
		}
	}
	u, err = s.Usage.Get(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if u.OCRScans != 2 || u.CustomerOCRScans != 1 {
		t.Errorf("usage = %+v", u)
	}
	if err := s.HealthCheck(ctx, time.Second); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}
