package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoicebot/constants"
	"github.com/joseph-ayodele/invoicebot/internal/app"
	"github.com/joseph-ayodele/invoicebot/internal/common"
	"github.com/joseph-ayodele/invoicebot/internal/core"
	"github.com/joseph-ayodele/invoicebot/internal/export"
	"github.com/joseph-ayodele/invoicebot/internal/ingest"
	repo "github.com/joseph-ayodele/invoicebot/internal/repository"
)

var (
	// Global flags
	inmem bool
	debug bool

	// process flags
	summaryOnly bool

	// export flags
	outPath      string
	statusFilter string
	limit        int
)

var rootCmd = &cobra.Command{
	Use:           "invoice-batch",
	Short:         "Process invoice documents and export run history",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}
		// logs go to stderr so stdout stays machine readable
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

var processCmd = &cobra.Command{
	Use:   "process <file|dir>",
	Short: "Run the pipeline over one invoice or every invoice in a directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcess,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the run history to an XLSX workbook",
	RunE:  runExport,
}

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate environment configuration and print the category setup",
	RunE:  runCheckConfig,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&inmem, "inmem", false, "use an in-memory SQLite database instead of DB_URL")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	processCmd.Flags().BoolVar(&summaryOnly, "summary", false, "print one summary line per document instead of JSON")

	exportCmd.Flags().StringVar(&outPath, "out", "invoice-runs.xlsx", "output XLSX path")
	exportCmd.Flags().StringVar(&statusFilter, "status", "", "only export runs with this status")
	exportCmd.Flags().IntVar(&limit, "limit", 0, "maximum number of runs (0 uses the default)")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(checkConfigCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if _, werr := fmt.Fprintf(os.Stderr, "Error: %v\n", err); werr != nil {
			fmt.Printf("Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func loadConfig() (*common.Config, error) {
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := slog.Default()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	files, err := collectFiles(args[0])
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .pdf or .txt invoices found in %s", args[0])
	}

	db, err := app.OpenStore(ctx, cfg, inmem, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	processor, err := app.NewProcessor(cfg, repo.NewRunRepository(db, logger), logger)
	if err != nil {
		return err
	}

	results := processFiles(ctx, processor, files, logger)
	failed := 0
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	for _, res := range results {
		if res.Status() == constants.RunStatusFailed {
			failed++
		}
		if summaryOnly {
			fmt.Fprintln(cmd.OutOrStdout(), res.Summary())
			continue
		}
		if err := enc.Encode(batchOutput{Result: res, Status: res.Status(), Summary: res.Summary()}); err != nil {
			return err
		}
	}
	logger.Info("batch.done", "documents", len(results), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(results))
	}
	return nil
}

type batchOutput struct {
	core.Result
	Status  constants.RunStatus `json:"status"`
	Summary string              `json:"summary"`
}

type invoiceProcessor interface {
	ProcessInvoice(ctx context.Context, content []byte, filename string) core.Result
}

func processFiles(ctx context.Context, p invoiceProcessor, files []string, logger *slog.Logger) []core.Result {
	out := make([]core.Result, 0, len(files))
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			logger.Error("batch.read.failed", "path", path, "error", err)
			out = append(out, core.Result{
				Filename: filepath.Base(path),
				Error:    &core.StageError{Stage: constants.StageTextExtraction, Kind: "read_failed", Message: err.Error()},
			})
			continue
		}
		out = append(out, p.ProcessInvoice(ctx, content, filepath.Base(path)))
	}
	return out
}

// collectFiles expands a directory into its supported invoices; a single
// file is returned as is.
func collectFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if _, ok := constants.DetectFileType(path); !ok {
			return nil, fmt.Errorf("%w: %s", common.ErrUnsupportedFormat, filepath.Base(path))
		}
		return []string{path}, nil
	}
	files, stats, err := ingest.ScanDirectory(path, true,
		filepath.Join(path, ingest.ProcessedDir), filepath.Join(path, ingest.FailedDir))
	if err != nil {
		return nil, err
	}
	slog.Info("batch.scan", "dir", path, "scanned", stats.Scanned, "matched", stats.Matched, "skipped", stats.Skipped)
	return files, nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := slog.Default()
	cfg := common.LoadConfig()

	var f repo.ListFilter
	if statusFilter != "" {
		st, ok := constants.ParseRunStatus(statusFilter)
		if !ok {
			return fmt.Errorf("%w: unknown status %q", common.ErrInvalidInput, statusFilter)
		}
		f.Status = st
	}
	f.Limit = limit

	db, err := app.OpenStore(ctx, cfg, inmem, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	b, err := export.NewService(repo.NewRunRepository(db, logger), logger).ExportRunsXLSX(ctx, f)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(outPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(outPath, b, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", outPath, len(b))
	return nil
}

func runCheckConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "extraction:      %s / %s\n", cfg.Extraction.Provider, cfg.Extraction.Model)
	fmt.Fprintf(w, "categorization:  %s / %s\n", cfg.Categorization.Provider, cfg.Categorization.Model)
	fmt.Fprintf(w, "categories:      %d allowed\n", len(cfg.Categories.Allowed))
	for _, c := range cfg.Categories.Allowed {
		code, ok := cfg.Categories.AccountCodes[c]
		if !ok {
			code = "(no account code)"
		}
		fmt.Fprintf(w, "  - %s -> %s\n", c, code)
	}
	fmt.Fprintf(w, "accounting:      enabled=%t\n", cfg.Accounting.Enabled)
	fmt.Fprintf(w, "database:        %s\n", repo.RedactDSN(cfg.Database.DSN))
	return nil
}
