package server

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoicebot/constants"
	"github.com/joseph-ayodele/invoicebot/internal/core"
	"github.com/joseph-ayodele/invoicebot/internal/entity"
	"github.com/joseph-ayodele/invoicebot/internal/repository"
)

// InvoiceProcessor runs the full pipeline for one uploaded document.
type InvoiceProcessor interface {
	ProcessInvoice(ctx context.Context, content []byte, filename string) core.Result
}

// RunReader is the read side of the run history.
type RunReader interface {
	Get(ctx context.Context, id uuid.UUID) (*entity.InvoiceRun, error)
	List(ctx context.Context, f repository.ListFilter) ([]entity.InvoiceRun, error)
}

type RunExporter interface {
	ExportRunsXLSX(ctx context.Context, f repository.ListFilter) ([]byte, error)
}

type HealthChecker interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// ProcessResponse is the result body returned by both transports.
type ProcessResponse struct {
	core.Result
	Status  constants.RunStatus `json:"status"`
	Summary string              `json:"summary"`
}

func newProcessResponse(res core.Result) ProcessResponse {
	return ProcessResponse{Result: res, Status: res.Status(), Summary: res.Summary()}
}
