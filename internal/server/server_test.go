package server

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoicebot/constants"
	"github.com/joseph-ayodele/invoicebot/internal/categorize"
	"github.com/joseph-ayodele/invoicebot/internal/core"
	"github.com/joseph-ayodele/invoicebot/internal/export"
	"github.com/joseph-ayodele/invoicebot/internal/invoice"
	"github.com/joseph-ayodele/invoicebot/internal/repository"
)

// stubProcessor records a run the same way the real processor does, without
// calling any model.
type stubProcessor struct {
	mu    sync.Mutex
	runs  repository.RunRepository
	calls []string
	seen  [][]byte
}

func (p *stubProcessor) ProcessInvoice(ctx context.Context, content []byte, filename string) core.Result {
	p.mu.Lock()
	p.calls = append(p.calls, filename)
	p.seen = append(p.seen, content)
	p.mu.Unlock()

	res := core.Result{RunID: uuid.New(), Filename: filename}
	if p.runs != nil {
		_ = p.runs.Start(ctx, res.RunID, filename, "sha")
	}
	if string(content) == "garbage" {
		res.Error = &core.StageError{Stage: constants.StageFieldExtraction, Kind: "invalid_json", Message: "no JSON object"}
	} else {
		res.ExtractedData = &invoice.ExtractedInvoiceData{
			VendorName: "Acme", InvoiceNumber: "INV-7", Currency: "USD", TotalAmount: 42.5,
			LineItems: []invoice.LineItem{},
		}
		res.Categorization = &categorize.Result{Status: constants.CategoryMatched, AssignedCategory: "Software"}
	}
	if p.runs != nil {
		_ = p.runs.Finish(ctx, res)
	}
	return res
}

type testDeps struct {
	db       *repository.DB
	runs     repository.RunRepository
	exporter *export.Service
	proc     *stubProcessor
}

func newTestDeps(t *testing.T) testDeps {
	t.Helper()
	db, err := repository.OpenSQLite(":memory:", nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(db.Close)
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	runs := repository.NewRunRepository(db, nil)
	return testDeps{
		db:       db,
		runs:     runs,
		exporter: export.NewService(runs, nil),
		proc:     &stubProcessor{runs: runs},
	}
}
