package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoicebot/internal/entity"
	"github.com/joseph-ayodele/invoicebot/internal/repository"
)

const sheet = "Invoice Runs"

// RunLister is the slice of repository.RunRepository the export needs.
type RunLister interface {
	List(ctx context.Context, f repository.ListFilter) ([]entity.InvoiceRun, error)
}

// Service produces XLSX workbooks of processed invoices.
type Service struct {
	runs   RunLister
	logger *slog.Logger
}

func NewService(runs RunLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{runs: runs, logger: logger}
}

var headers = []string{
	"Processed At",
	"File",
	"Status",
	"Vendor",
	"Invoice Number",
	"Total",
	"Currency",
	"Category Status",
	"Category",
	"Draft Bill",
	"Error",
}

// ExportRunsXLSX returns a workbook with one row per run, newest first.
func (s *Service) ExportRunsXLSX(ctx context.Context, f repository.ListFilter) ([]byte, error) {
	start := time.Now()

	runs, err := s.runs.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	x := excelize.NewFile()
	defer func() { _ = x.Close() }()
	if err := x.SetSheetName(x.GetSheetName(0), sheet); err != nil {
		return nil, err
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = x.SetCellValue(sheet, cell, h)
	}

	for i, r := range runs {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = x.SetCellValue(sheet, cell, v)
		}

		write(1, r.CreatedAt.UTC().Format(time.DateTime))
		write(2, r.Filename)
		write(3, string(r.Status))
		write(4, deref(r.VendorName))
		write(5, deref(r.InvoiceNumber))
		if r.TotalAmount != nil {
			// numeric cell so spreadsheet sums work
			write(6, r.TotalAmount.InexactFloat64())
		}
		write(7, deref(r.Currency))
		write(8, deref(r.CategoryStatus))
		write(9, deref(r.AssignedCategory))
		write(10, deref(r.BillID))
		if r.ErrorStage != nil {
			write(11, truncate(*r.ErrorStage+": "+deref(r.ErrorMessage), 200))
		}
	}

	_ = x.SetColWidth(sheet, "A", "A", 20)
	_ = x.SetColWidth(sheet, "B", "B", 30)
	_ = x.SetColWidth(sheet, "C", "C", 12)
	_ = x.SetColWidth(sheet, "D", "D", 28)
	_ = x.SetColWidth(sheet, "E", "G", 14)
	_ = x.SetColWidth(sheet, "H", "I", 24)
	_ = x.SetColWidth(sheet, "J", "J", 38)
	_ = x.SetColWidth(sheet, "K", "K", 60)

	buf, err := x.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(runs),
		"status", f.Status,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
