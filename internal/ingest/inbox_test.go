package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joseph-ayodele/invoicebot/internal/core"
	"github.com/joseph-ayodele/invoicebot/internal/core/async"
	"github.com/joseph-ayodele/invoicebot/internal/invoice"
)

type scriptedProcessor struct{}

// Files whose content starts with "ok" extract; everything else fails.
func (scriptedProcessor) ProcessInvoice(_ context.Context, content []byte, filename string) core.Result {
	res := core.Result{Filename: filename}
	if strings.HasPrefix(string(content), "ok") {
		res.ExtractedData = &invoice.ExtractedInvoiceData{VendorName: "ACME", LineItems: []invoice.LineItem{}}
	}
	return res
}

func waitForFile(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", path)
}

func TestInboxFilesResults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "existing.txt"), []byte("ok existing"), 0o600); err != nil {
		t.Fatal(err)
	}

	q := async.NewProcessorQueue(scriptedProcessor{}, nil, async.WithWorkers(1))
	defer q.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	in := NewInbox(dir, 20*time.Millisecond, q, nil)
	go func() { _ = in.Run(ctx) }()

	waitForFile(t, filepath.Join(dir, ProcessedDir, "existing.txt"))

	if err := os.WriteFile(filepath.Join(dir, "bad.txt"), []byte("garbage"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "photo.png"), []byte("ok"), 0o600); err != nil {
		t.Fatal(err)
	}
	waitForFile(t, filepath.Join(dir, FailedDir, "bad.txt"))

	if _, err := os.Stat(filepath.Join(dir, "photo.png")); err != nil {
		t.Errorf("unsupported file should stay in place: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "existing.txt")); !os.IsNotExist(err) {
		t.Errorf("processed file should be moved out of the inbox")
	}
}

func TestScanDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.pdf", "a.TXT", ".hidden.pdf", "c.png", "skip/d.pdf", "nested/e.pdf"} {
		p := filepath.Join(dir, name)
		_ = os.MkdirAll(filepath.Dir(p), 0o755)
		if err := os.WriteFile(p, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	files, stats, err := ScanDirectory(dir, true, filepath.Join(dir, "skip"))
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, f := range files {
		rel, _ := filepath.Rel(dir, f)
		names = append(names, filepath.ToSlash(rel))
	}
	want := []string{"a.TXT", "b.pdf", "nested/e.pdf"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("files = %v, want %v", names, want)
	}
	if stats.Matched != 3 || stats.Skipped != 2 {
		t.Errorf("stats = %+v", stats)
	}
}
