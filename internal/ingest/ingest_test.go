package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/joseph-ayodele/docscan/constants"
	"github.com/joseph-ayodele/docscan/internal/core"
)

// fakeAnalyzer dedupes on content the way the processor does.
type fakeAnalyzer struct {
	mu   sync.Mutex
	seen map[string]string
	reqs []core.AnalyzeRequest
	fail bool
}

func (f *fakeAnalyzer) Analyze(_ context.Context, req core.AnalyzeRequest) (*core.AnalyzeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.fail {
		return nil, errors.New("boom")
	}
	if f.seen == nil {
		f.seen = map[string]string{}
	}
	hash := core.ContentHash(req.Content)
	if id, ok := f.seen[hash]; ok {
		return &core.AnalyzeResult{AnalysisID: id, Cached: true}, nil
	}
	id := "analysis-" + req.Filename
	f.seen[hash] = id
	return &core.AnalyzeResult{AnalysisID: id}, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestIngestDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.png"), "same")
	writeFile(t, filepath.Join(root, "b.png"), "same")
	writeFile(t, filepath.Join(root, "c.txt"), "ignored")
	writeFile(t, filepath.Join(root, ".hidden", "d.pdf"), "hidden")

	fa := &fakeAnalyzer{}
	ing := NewFSIngestor(fa, nil)
	opts := Options{SellerID: "s", DocumentType: constants.DocumentReceipt, SkipHidden: true, Workers: 2}

	results, stats, err := ing.IngestDirectory(context.Background(), opts, root)
	if err != nil {
		t.Fatalf("IngestDirectory: %v", err)
	}
	want := DirStats{Scanned: 5, Matched: 2, Succeeded: 2, Deduplicated: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
	if len(results) != 2 || filepath.Base(results[0].SourcePath) != "a.png" {
		t.Fatalf("results = %+v", results)
	}
	if results[0].AnalysisID != results[1].AnalysisID {
		t.Errorf("identical files got analyses %s and %s", results[0].AnalysisID, results[1].AnalysisID)
	}
	for _, r := range fa.reqs {
		if r.MimeType != constants.MimePNG || r.DocumentType != constants.DocumentReceipt || r.SellerID != "s" {
			t.Errorf("request = %+v", r)
		}
	}
}

func TestIngestPathErrors(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "notes.txt"), "x")
	writeFile(t, filepath.Join(root, "scan.jpg"), "x")

	if _, err := NewFSIngestor(&fakeAnalyzer{}, nil).IngestPath(context.Background(), Options{}, filepath.Join(root, "notes.txt")); err == nil {
		t.Error("txt file was accepted")
	}

	ing := NewFSIngestor(&fakeAnalyzer{fail: true}, nil)
	_, stats, err := ing.IngestDirectory(context.Background(), Options{}, root)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Failed != 1 || stats.Succeeded != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestWatcherEmitsNewFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "existing.pdf"), "x")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, InitialScan: true, Debounce: 10 * time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("StartWatcher: %v", err)
	}

	next := func() string {
		select {
		case p := <-events:
			return filepath.Base(p)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for watcher event")
			return ""
		}
	}
	if got := next(); got != "existing.pdf" {
		t.Fatalf("initial scan emitted %q", got)
	}
	writeFile(t, filepath.Join(root, "ignored.txt"), "x")
	writeFile(t, filepath.Join(root, "new.png"), "x")
	if got := next(); got != "new.png" {
		t.Errorf("watcher emitted %q, want new.png", got)
	}
}
