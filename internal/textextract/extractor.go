// Package textextract turns uploaded document bytes into plain text.
package textextract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/invoicebot/constants"
	"github.com/joseph-ayodele/invoicebot/internal/common"
)

// MaxChars caps the text handed to the field extraction prompt.
const MaxChars = 15000

// ErrNoText means the document parsed but no page produced any text.
var ErrNoText = errors.New("no text could be extracted from document")

type Result struct {
	Text      string
	Pages     int
	Method    string // "pdf-text" | "pdftotext" | "plain"
	Truncated bool
	Duration  time.Duration
	Warnings  []string
}

type Config struct {
	// Pdftotext is an optional poppler binary used when the embedded PDF
	// reader cannot open a file. Empty disables the fallback.
	Pdftotext string
	MaxChars  int
}

type Extractor struct {
	cfg    Config
	runner Runner
	log    *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Extractor {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = MaxChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{cfg: cfg, runner: execRunner{log: logger}, log: logger}
}

// WithRunner swaps the command runner; tests use it to stub pdftotext.
func (e *Extractor) WithRunner(r Runner) *Extractor {
	e.runner = r
	return e
}

// Extract picks a strategy from the filename extension.
func (e *Extractor) Extract(ctx context.Context, content []byte, filename string) (Result, error) {
	start := time.Now()
	rid := common.RequestIDFromContext(ctx)

	ft, ok := constants.DetectFileType(filename)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", common.ErrUnsupportedFormat, filepath.Ext(filename))
	}

	var (
		res Result
		err error
	)
	switch ft {
	case constants.FileTypeText:
		res = Result{Text: string(content), Pages: 1, Method: "plain"}
	case constants.FileTypePDF:
		res, err = e.extractPDF(ctx, content)
	}
	if err != nil {
		e.log.Error("textextract.failed", "req_id", rid, "filename", filename, "error", err)
		return Result{}, err
	}

	if strings.TrimSpace(res.Text) == "" {
		e.log.Warn("textextract.empty", "req_id", rid, "filename", filename, "pages", res.Pages)
		return Result{}, ErrNoText
	}

	res.Text, res.Truncated = Truncate(res.Text, e.cfg.MaxChars)
	res.Duration = time.Since(start)
	e.log.Info("textextract.ok",
		"req_id", rid,
		"filename", filename,
		"method", res.Method,
		"pages", res.Pages,
		"chars", utf8.RuneCountInString(res.Text),
		"truncated", res.Truncated,
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (e *Extractor) extractPDF(ctx context.Context, content []byte) (Result, error) {
	tmpDir, err := os.MkdirTemp("", "invoicebot-*")
	if err != nil {
		return Result{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			e.log.Warn("textextract.cleanup_failed", "dir", path, "error", err)
		}
	}(tmpDir)

	path := filepath.Join(tmpDir, "document.pdf")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return Result{}, fmt.Errorf("write temp file: %w", err)
	}

	pages, err := readPages(path)
	if err == nil {
		return Result{Text: strings.Join(pages, "\n"), Pages: len(pages), Method: "pdf-text"}, nil
	}
	if e.cfg.Pdftotext == "" {
		return Result{}, fmt.Errorf("read pdf: %w", err)
	}

	e.log.Warn("textextract.pdf_fallback", "error", err, "cmd", e.cfg.Pdftotext)
	out, errb, runErr := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if runErr != nil {
		return Result{}, fmt.Errorf("read pdf: %w (pdftotext: %v: %s)", err, runErr, truncate(string(errb), 200))
	}
	text := strings.ReplaceAll(string(out), "\f", "\n")
	return Result{
		Text:     text,
		Pages:    1 + strings.Count(string(out), "\f"),
		Method:   "pdftotext",
		Warnings: []string{"embedded reader failed: " + err.Error()},
	}, nil
}

// readPages returns the plain text of each page in order. The reader panics
// on some malformed inputs, so panics are turned into errors.
func readPages(path string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	n := r.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		txt, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, txt)
	}
	return pages, nil
}

// Truncate keeps at most max runes from the head of s.
func Truncate(s string, max int) (string, bool) {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s, false
	}
	i, n := 0, 0
	for i < len(s) && n < max {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		n++
	}
	return s[:i], true
}
