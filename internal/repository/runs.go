package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoicebot/constants"
	"github.com/joseph-ayodele/invoicebot/internal/common"
	"github.com/joseph-ayodele/invoicebot/internal/core"
	"github.com/joseph-ayodele/invoicebot/internal/entity"
)

const runsTable = "invoice_runs"

var runColumns = []string{
	"id", "filename", "sha256", "status", "vendor_name", "invoice_number",
	"total_amount", "currency", "category_status", "assigned_category",
	"bill_id", "error_stage", "error_message", "extracted_json",
	"created_at", "finished_at",
}

type ListFilter struct {
	Status constants.RunStatus // empty means any
	Limit  int
}

// RunRepository stores one row per processed document. It satisfies
// core.RunRecorder.
type RunRepository interface {
	Start(ctx context.Context, id uuid.UUID, filename, sha256 string) error
	Finish(ctx context.Context, res core.Result) error
	Get(ctx context.Context, id uuid.UUID) (*entity.InvoiceRun, error)
	List(ctx context.Context, f ListFilter) ([]entity.InvoiceRun, error)
}

type runRepo struct {
	db  *DB
	now func() time.Time
	log *slog.Logger
}

func NewRunRepository(db *DB, logger *slog.Logger) RunRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &runRepo{db: db, now: time.Now, log: logger}
}

func (r *runRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.Dialect())
}

func (r *runRepo) Start(ctx context.Context, id uuid.UUID, filename, sha256 string) error {
	query, args := r.builder().
		Insert(runsTable).
		Columns("id", "filename", "sha256", "status", "created_at").
		Values(id.String(), filename, sha256, string(constants.RunStatusRunning), formatTime(r.now())).
		Query()
	if _, err := r.db.SQL().ExecContext(ctx, query, args...); err != nil {
		r.log.Error("runs.start.failed", "run_id", id, "error", err)
		return fmt.Errorf("%w: insert run: %v", common.ErrDatabase, err)
	}
	r.log.Debug("runs.start", "run_id", id, "filename", filename)
	return nil
}

func (r *runRepo) Finish(ctx context.Context, res core.Result) error {
	upd := r.builder().
		Update(runsTable).
		Set("status", string(res.Status())).
		Set("finished_at", formatTime(r.now()))

	if d := res.ExtractedData; d != nil {
		raw, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encode extracted data: %w", err)
		}
		upd.Set("vendor_name", d.VendorName).
			Set("invoice_number", nullable(d.InvoiceNumber)).
			Set("total_amount", decimal.NewFromFloat(d.TotalAmount).String()).
			Set("currency", nullable(d.Currency)).
			Set("extracted_json", string(raw))
	}
	if c := res.Categorization; c != nil {
		upd.Set("category_status", string(c.Status)).
			Set("assigned_category", nullable(c.AssignedCategory))
	}
	if res.BillReference != nil {
		upd.Set("bill_id", res.BillReference.ID)
	}
	if e := res.Error; e != nil {
		upd.Set("error_stage", string(e.Stage)).
			Set("error_message", e.Message)
	}

	query, args := upd.Where(entsql.EQ("id", res.RunID.String())).Query()
	out, err := r.db.SQL().ExecContext(ctx, query, args...)
	if err != nil {
		r.log.Error("runs.finish.failed", "run_id", res.RunID, "error", err)
		return fmt.Errorf("%w: update run: %v", common.ErrDatabase, err)
	}
	if n, _ := out.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", res.RunID, common.ErrNotFound)
	}
	r.log.Debug("runs.finish", "run_id", res.RunID, "status", res.Status())
	return nil
}

func (r *runRepo) Get(ctx context.Context, id uuid.UUID) (*entity.InvoiceRun, error) {
	query, args := r.builder().
		Select(runColumns...).
		From(entsql.Table(runsTable)).
		Where(entsql.EQ("id", id.String())).
		Query()
	rows, err := r.db.SQL().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: get run: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("run %s: %w", id, common.ErrNotFound)
	}
	return &runs[0], nil
}

func (r *runRepo) List(ctx context.Context, f ListFilter) ([]entity.InvoiceRun, error) {
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	sel := r.builder().
		Select(runColumns...).
		From(entsql.Table(runsTable))
	if f.Status != "" {
		sel.Where(entsql.EQ("status", string(f.Status)))
	}
	query, args := sel.OrderBy(entsql.Desc("created_at")).Limit(limit).Query()

	rows, err := r.db.SQL().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list runs: %v", common.ErrDatabase, err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]entity.InvoiceRun, error) {
	var out []entity.InvoiceRun
	for rows.Next() {
		var (
			run                                           entity.InvoiceRun
			id, status, createdAt                         string
			vendor, number, total, currency, catStatus    sql.NullString
			category, billID, errStage, errMsg, extracted sql.NullString
			finishedAt                                    sql.NullString
		)
		if err := rows.Scan(&id, &run.Filename, &run.SHA256, &status, &vendor, &number,
			&total, &currency, &catStatus, &category, &billID, &errStage, &errMsg,
			&extracted, &createdAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("%w: scan run: %v", common.ErrDatabase, err)
		}

		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("%w: bad run id %q", common.ErrDatabase, id)
		}
		run.ID = parsed
		run.Status = constants.RunStatus(status)
		run.VendorName = ptr(vendor)
		run.InvoiceNumber = ptr(number)
		run.Currency = ptr(currency)
		run.CategoryStatus = ptr(catStatus)
		run.AssignedCategory = ptr(category)
		run.BillID = ptr(billID)
		run.ErrorStage = ptr(errStage)
		run.ErrorMessage = ptr(errMsg)
		if total.Valid {
			if d, err := decimal.NewFromString(total.String); err == nil {
				run.TotalAmount = &d
			}
		}
		if extracted.Valid && extracted.String != "" {
			run.ExtractedJSON = json.RawMessage(extracted.String)
		}
		run.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		if finishedAt.Valid {
			if t, err := time.Parse(timeLayout, finishedAt.String); err == nil {
				run.FinishedAt = &t
			}
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate runs: %v", common.ErrDatabase, err)
	}
	return out, nil
}

// IsNotFound reports whether err means the run does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}

// Fixed-width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func ptr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
