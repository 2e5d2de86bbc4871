package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoicebot/internal/common"
)

func multipartRequest(t *testing.T, field, filename string, content []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if field != "" {
		part, err := w.CreateFormFile(field, filename)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatal(err)
		}
	} else if err := w.WriteField("note", "no file here"); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, w.FormDataContentType()
}

func decodeBody(t *testing.T, body io.Reader, v any) {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		t.Fatalf("decode %q: %v", b, err)
	}
}

func newTestHTTP(t *testing.T, d testDeps) *fiber.App {
	t.Helper()
	return NewHTTPServer(d.proc, d.runs, d.exporter, d.db, HTTPConfig{MaxUploadBytes: 1 << 20}, nil).App()
}

func TestProcessInvoiceEndpoint(t *testing.T) {
	d := newTestDeps(t)
	app := newTestHTTP(t, d)

	body, ct := multipartRequest(t, "file", "acme.txt", []byte("Invoice INV-7 total 42.50"))
	req := httptest.NewRequest("POST", "/v1/invoices", body)
	req.Header.Set("Content-Type", ct)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get(fiber.HeaderXRequestID) == "" {
		t.Error("missing request id header")
	}

	var got struct {
		RunID         string `json:"run_id"`
		Status        string `json:"status"`
		Summary       string `json:"summary"`
		ExtractedData struct {
			VendorName string `json:"vendor_name"`
		} `json:"extracted_data"`
	}
	decodeBody(t, resp.Body, &got)
	if got.Status != "SUCCEEDED" || got.ExtractedData.VendorName != "Acme" {
		t.Errorf("response = %+v", got)
	}
	if got.Summary == "" {
		t.Error("summary is empty")
	}
	if len(d.proc.calls) != 1 || d.proc.calls[0] != "acme.txt" || string(d.proc.seen[0]) != "Invoice INV-7 total 42.50" {
		t.Errorf("processor saw %v", d.proc.calls)
	}
}

func TestProcessInvoiceEndpointRejects(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		filename string
		want     int
	}{
		{name: "missing file", field: "", want: fiber.StatusBadRequest},
		{name: "unsupported extension", field: "file", filename: "scan.png", want: fiber.StatusUnsupportedMediaType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps(t)
			app := newTestHTTP(t, d)
			body, ct := multipartRequest(t, tt.field, tt.filename, []byte("data"))
			req := httptest.NewRequest("POST", "/v1/invoices", body)
			req.Header.Set("Content-Type", ct)
			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			var e map[string]string
			decodeBody(t, resp.Body, &e)
			if e["error"] == "" {
				t.Error("missing error message")
			}
			if len(d.proc.calls) != 0 {
				t.Error("processor should not run")
			}
		})
	}
}

func TestFailedExtractionStillReturnsResult(t *testing.T) {
	d := newTestDeps(t)
	app := newTestHTTP(t, d)

	body, ct := multipartRequest(t, "file", "junk.txt", []byte("garbage"))
	req := httptest.NewRequest("POST", "/v1/invoices", body)
	req.Header.Set("Content-Type", ct)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got map[string]any
	decodeBody(t, resp.Body, &got)
	if got["status"] != "FAILED" || got["error"] == nil {
		t.Errorf("response = %v", got)
	}
}

func TestRunsEndpoints(t *testing.T) {
	d := newTestDeps(t)
	app := newTestHTTP(t, d)
	ctx := t.Context()

	ok := d.proc.ProcessInvoice(ctx, []byte("fine"), "a.txt")
	time.Sleep(2 * time.Millisecond)
	d.proc.ProcessInvoice(ctx, []byte("garbage"), "b.txt")

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/runs", nil))
	if err != nil {
		t.Fatal(err)
	}
	var list struct {
		Count int `json:"count"`
		Runs  []struct {
			Filename string `json:"filename"`
			Status   string `json:"status"`
		} `json:"runs"`
	}
	decodeBody(t, resp.Body, &list)
	if list.Count != 2 || list.Runs[0].Filename != "b.txt" {
		t.Errorf("list = %+v", list)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/v1/runs?status=failed", nil))
	if err != nil {
		t.Fatal(err)
	}
	decodeBody(t, resp.Body, &list)
	if list.Count != 1 || list.Runs[0].Status != "FAILED" {
		t.Errorf("filtered list = %+v", list)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/v1/runs?status=bogus", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("bad status filter = %d", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/v1/runs/"+ok.RunID.String(), nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	var run struct {
		ID         string `json:"id"`
		VendorName string `json:"vendor_name"`
	}
	decodeBody(t, resp.Body, &run)
	if run.ID != ok.RunID.String() || run.VendorName != "Acme" {
		t.Errorf("run = %+v", run)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/v1/runs/"+uuid.NewString(), nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("missing run status = %d", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/v1/runs/not-a-uuid", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("bad id status = %d", resp.StatusCode)
	}
}

func TestExportEndpoint(t *testing.T) {
	d := newTestDeps(t)
	app := newTestHTTP(t, d)
	d.proc.ProcessInvoice(t.Context(), []byte("fine"), "a.txt")

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/runs/export.xlsx", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get(fiber.HeaderContentType); ct != xlsxContentType {
		t.Errorf("content type = %q", ct)
	}
	f, err := excelize.OpenReader(resp.Body)
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Invoice Runs")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Errorf("rows = %d, want header plus one run", len(rows))
	}
}

func TestValidationErrorsAreBadRequests(t *testing.T) {
	d := newTestDeps(t)
	app := newTestHTTP(t, d)
	app.Get("/v1/check", func(c *fiber.Ctx) error {
		return common.NewValidator().Field("currency", "usd", common.CurrencyCode).Error()
	})
	resp, err := app.Test(httptest.NewRequest("GET", "/v1/check", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	var e map[string]string
	decodeBody(t, resp.Body, &e)
	if !strings.Contains(e["error"], "currency") {
		t.Errorf("error = %q", e["error"])
	}
}

type failingDB struct{}

func (failingDB) HealthCheck(context.Context, time.Duration) error {
	return errors.New("connection refused")
}

func TestHealthz(t *testing.T) {
	d := newTestDeps(t)
	resp, err := newTestHTTP(t, d).Test(httptest.NewRequest("GET", "/healthz", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("healthy status = %d", resp.StatusCode)
	}

	app := NewHTTPServer(d.proc, d.runs, d.exporter, failingDB{}, HTTPConfig{}, nil).App()
	resp, err = app.Test(httptest.NewRequest("GET", "/healthz", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Errorf("unhealthy status = %d", resp.StatusCode)
	}
}

func TestRunsUnavailableWithoutRepository(t *testing.T) {
	d := newTestDeps(t)
	app := NewHTTPServer(d.proc, nil, nil, nil, HTTPConfig{}, nil).App()
	resp, err := app.Test(httptest.NewRequest("GET", "/v1/runs", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
