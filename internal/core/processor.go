package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoicebot/constants"
	"github.com/joseph-ayodele/invoicebot/internal/accounting"
	"github.com/joseph-ayodele/invoicebot/internal/billing"
	"github.com/joseph-ayodele/invoicebot/internal/categorize"
	"github.com/joseph-ayodele/invoicebot/internal/common"
	"github.com/joseph-ayodele/invoicebot/internal/invoice"
	"github.com/joseph-ayodele/invoicebot/internal/textextract"
)

type TextExtractor interface {
	Extract(ctx context.Context, content []byte, filename string) (textextract.Result, error)
}

type FieldExtractor interface {
	Extract(ctx context.Context, text, filename string) (invoice.ExtractedInvoiceData, error)
}

type Categorizer interface {
	Categorize(ctx context.Context, data invoice.ExtractedInvoiceData) categorize.Result
}

type BillMapper interface {
	Build(ctx context.Context, data invoice.ExtractedInvoiceData, category string) (billing.BillPayload, billing.Report, error)
}

// RunRecorder persists run outcomes. Recording failures never fail a run.
type RunRecorder interface {
	Start(ctx context.Context, id uuid.UUID, filename, sha256 string) error
	Finish(ctx context.Context, res Result) error
}

// Processor runs one invoice through every stage sequentially. It holds no
// per-invoice state and is safe for concurrent use.
type Processor struct {
	logger     *slog.Logger
	text       TextExtractor
	fields     FieldExtractor
	categories Categorizer
	bills      BillMapper
	accounts   accounting.Client // nil disables bill creation
	runs       RunRecorder       // optional
	stageLimit time.Duration
}

type Option func(*Processor)

func WithAccounting(c accounting.Client, mapper BillMapper) Option {
	return func(p *Processor) {
		p.accounts = c
		p.bills = mapper
	}
}

func WithRunRecorder(r RunRecorder) Option {
	return func(p *Processor) { p.runs = r }
}

// WithStageTimeout caps each outbound stage independently.
func WithStageTimeout(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.stageLimit = d
		}
	}
}

func NewProcessor(logger *slog.Logger, text TextExtractor, fields FieldExtractor, categories Categorizer, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		logger:     logger,
		text:       text,
		fields:     fields,
		categories: categories,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ProcessInvoice never returns an error; failures are reported in Result.Error.
func (p *Processor) ProcessInvoice(ctx context.Context, content []byte, filename string) (res Result) {
	res = Result{RunID: uuid.New(), Filename: filename}
	rid := res.RunID.String()
	ctx = common.WithRequestID(ctx, rid)
	ctx = common.WithFilename(ctx, filename)
	start := time.Now()

	sum := sha256.Sum256(content)
	if p.runs != nil {
		if err := p.runs.Start(ctx, res.RunID, filename, hex.EncodeToString(sum[:])); err != nil {
			p.logger.Warn("processor.run.record_failed", "req_id", rid, "phase", "start", "error", err)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("processor.panic", "req_id", rid, "panic", r, "stack", string(debug.Stack()))
			res.Error = &StageError{Stage: constants.StageInternal, Kind: "panic", Message: fmt.Sprint(r)}
		}
		if p.runs != nil {
			// the caller's context may already be done; the record should still land
			fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			if err := p.runs.Finish(fctx, res); err != nil {
				p.logger.Warn("processor.run.record_failed", "req_id", rid, "phase", "finish", "error", err)
			}
			cancel()
		}
		p.logger.Info("processor.done",
			"req_id", rid,
			"filename", filename,
			"status", res.Status(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}()

	p.logger.Info("processor.start", "req_id", rid, "filename", filename, "bytes", len(content))

	// 1) text
	sctx, cancel := p.stageContext(ctx)
	text, err := p.text.Extract(sctx, content, filename)
	cancel()
	if err != nil {
		res.Error = p.fail(rid, constants.StageTextExtraction, textErrorKind(err), err)
		return res
	}
	if text.Truncated {
		res.Warnings = append(res.Warnings, fmt.Sprintf("document text truncated to %d characters", textextract.MaxChars))
	}
	res.Warnings = append(res.Warnings, text.Warnings...)

	// 2) fields
	sctx, cancel = p.stageContext(ctx)
	data, err := p.fields.Extract(sctx, text.Text, filename)
	cancel()
	if err != nil {
		kind := "error"
		var xe *invoice.ExtractionError
		if errors.As(err, &xe) {
			kind = string(xe.Kind)
		}
		res.Error = p.fail(rid, constants.StageFieldExtraction, kind, err)
		return res
	}
	extracted := data.Clone()
	res.ExtractedData = &extracted

	// 3) category
	sctx, cancel = p.stageContext(ctx)
	cat := p.categories.Categorize(sctx, data.Clone())
	cancel()
	res.Categorization = &cat
	if cat.Status == constants.CategoryError {
		res.Error = p.fail(rid, constants.StageCategorization, string(cat.Status), errors.New(cat.Notes))
		return res
	}
	if !cat.Matched() {
		return res
	}

	// 4) bill
	if p.accounts == nil || p.bills == nil {
		return res
	}
	p.createBill(ctx, &res, data.Clone(), cat.AssignedCategory)
	return res
}

// createBill resolves the vendor contact only once a payload has been built,
// so a bill that cannot be mapped leaves the accounting system untouched.
func (p *Processor) createBill(ctx context.Context, res *Result, data invoice.ExtractedInvoiceData, category string) {
	rid := common.RequestIDFromContext(ctx)

	payload, report, err := p.bills.Build(ctx, data, category)
	switch {
	case err == nil:
	case billing.IsNoMapping(err):
		res.Warnings = append(res.Warnings, err.Error()+"; bill lines need manual coding")
	default:
		res.Error = p.fail(rid, constants.StageBillMapping, "precondition", err)
		return
	}
	res.Reconciliation = &report
	if report.Discrepancy {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"line items sum to %s but invoice total is %s; using invoice total",
			report.LinesTotal.StringFixed(2), report.AuthoritativeTotal.StringFixed(2)))
	}

	sctx, cancel := p.stageContext(ctx)
	contactID, created, err := accounting.ResolveContact(sctx, p.accounts, data.VendorName)
	cancel()
	if err != nil {
		res.Error = p.fail(rid, constants.StageAccounting, "contact", err)
		return
	}
	if created {
		res.Warnings = append(res.Warnings, fmt.Sprintf("created new contact %q", data.VendorName))
	}
	payload, err = payload.ForContact(contactID)
	if err != nil {
		res.Error = p.fail(rid, constants.StageAccounting, "contact", err)
		return
	}

	sctx, cancel = p.stageContext(ctx)
	ref, err := p.accounts.CreateDraftBill(sctx, payload)
	cancel()
	if err != nil {
		res.Error = p.fail(rid, constants.StageAccounting, "create_bill", err)
		return
	}
	res.BillReference = &ref
	p.logger.Info("processor.bill.created", "req_id", rid, "bill_id", ref.ID)
}

func (p *Processor) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.stageLimit > 0 {
		return context.WithTimeout(ctx, p.stageLimit)
	}
	return context.WithCancel(ctx)
}

func (p *Processor) fail(rid string, stage constants.Stage, kind string, err error) *StageError {
	p.logger.Error("processor.stage.failed", "req_id", rid, "stage", stage, "kind", kind, "error", err)
	return &StageError{Stage: stage, Kind: kind, Message: err.Error()}
}

func textErrorKind(err error) string {
	switch {
	case errors.Is(err, common.ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, textextract.ErrNoText):
		return "no_text"
	default:
		return "read_failed"
	}
}
