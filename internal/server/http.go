package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoicebot/constants"
	"github.com/joseph-ayodele/invoicebot/internal/common"
	"github.com/joseph-ayodele/invoicebot/internal/repository"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type HTTPConfig struct {
	MaxUploadBytes int
	HealthTimeout  time.Duration
}

// HTTPServer exposes the upload endpoint and run history over fiber.
type HTTPServer struct {
	app      *fiber.App
	proc     InvoiceProcessor
	runs     RunReader
	exporter RunExporter
	db       HealthChecker
	cfg      HTTPConfig
	logger   *slog.Logger
}

// NewHTTPServer builds the app and registers every route. runs, exporter
// and db may be nil; the matching routes then answer 503.
func NewHTTPServer(proc InvoiceProcessor, runs RunReader, exporter RunExporter, db HealthChecker, cfg HTTPConfig, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20 << 20
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = 3 * time.Second
	}
	s := &HTTPServer{proc: proc, runs: runs, exporter: exporter, db: db, cfg: cfg, logger: logger}
	s.app = fiber.New(fiber.Config{
		AppName:               "invoicebot",
		BodyLimit:             cfg.MaxUploadBytes,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())
	s.app.Use(s.requestLogger)

	s.app.Get("/healthz", s.health)
	v1 := s.app.Group("/v1")
	v1.Post("/invoices", s.processInvoice)
	v1.Get("/runs", s.listRuns)
	v1.Get("/runs/export.xlsx", s.exportRuns)
	v1.Get("/runs/:id", s.getRun)
	return s
}

// App returns the underlying fiber app, mostly for app.Test.
func (s *HTTPServer) App() *fiber.App { return s.app }

func (s *HTTPServer) Listen(addr string) error {
	s.logger.Info("http.listen", "addr", addr)
	return s.app.Listen(addr)
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *HTTPServer) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	rid := c.Get(fiber.HeaderXRequestID)
	if rid == "" {
		rid = uuid.NewString()
	}
	c.Set(fiber.HeaderXRequestID, rid)
	c.SetUserContext(common.WithRequestID(c.UserContext(), rid))

	err := c.Next()
	if err != nil {
		// let the error handler set the final status before logging it
		if herr := s.handleError(c, err); herr != nil {
			return herr
		}
	}
	s.logger.Info("http.request",
		"req_id", rid,
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (s *HTTPServer) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal error"
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code, msg = fe.Code, fe.Message
	case errors.Is(err, common.ErrNotFound):
		code, msg = fiber.StatusNotFound, err.Error()
	case errors.Is(err, common.ErrInvalidInput), common.IsValidation(err):
		code, msg = fiber.StatusBadRequest, err.Error()
	default:
		s.logger.Error("http.handler.failed", "req_id", common.RequestIDFromContext(c.UserContext()), "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

func (s *HTTPServer) health(c *fiber.Ctx) error {
	if s.db != nil {
		if err := s.db.HealthCheck(c.UserContext(), s.cfg.HealthTimeout); err != nil {
			s.logger.Warn("http.health.db_failed", "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "error": err.Error()})
		}
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *HTTPServer) processInvoice(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "multipart field 'file' is required")
	}
	if _, ok := constants.DetectFileType(fh.Filename); !ok {
		return fiber.NewError(fiber.StatusUnsupportedMediaType, "only .pdf and .txt invoices are supported")
	}
	f, err := fh.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not read uploaded file")
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not read uploaded file")
	}

	res := s.proc.ProcessInvoice(c.UserContext(), content, fh.Filename)
	return c.JSON(newProcessResponse(res))
}

func (s *HTTPServer) listRuns(c *fiber.Ctx) error {
	if s.runs == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "run history is not configured")
	}
	f, err := listFilter(c)
	if err != nil {
		return err
	}
	runs, err := s.runs.List(c.UserContext(), f)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"runs": runs, "count": len(runs)})
}

func (s *HTTPServer) getRun(c *fiber.Ctx) error {
	if s.runs == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "run history is not configured")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "id must be a UUID")
	}
	run, err := s.runs.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(run)
}

func (s *HTTPServer) exportRuns(c *fiber.Ctx) error {
	if s.exporter == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "export is not configured")
	}
	f, err := listFilter(c)
	if err != nil {
		return err
	}
	b, err := s.exporter.ExportRunsXLSX(c.UserContext(), f)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="invoice-runs.xlsx"`)
	return c.Send(b)
}

func listFilter(c *fiber.Ctx) (repository.ListFilter, error) {
	var f repository.ListFilter
	if raw := c.Query("status"); raw != "" {
		st, ok := constants.ParseRunStatus(raw)
		if !ok {
			return f, fiber.NewError(fiber.StatusBadRequest, "unknown status "+raw)
		}
		f.Status = st
	}
	f.Limit = c.QueryInt("limit", 0)
	if f.Limit < 0 {
		return f, fiber.NewError(fiber.StatusBadRequest, "limit must not be negative")
	}
	return f, nil
}
