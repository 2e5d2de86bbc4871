// Package app assembles the pipeline from configuration. Both binaries
// share it so the daemon and the batch CLI run the same stages.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/joseph-ayodele/invoicebot/internal/accounting"
	"github.com/joseph-ayodele/invoicebot/internal/billing"
	"github.com/joseph-ayodele/invoicebot/internal/categorize"
	"github.com/joseph-ayodele/invoicebot/internal/common"
	"github.com/joseph-ayodele/invoicebot/internal/core"
	"github.com/joseph-ayodele/invoicebot/internal/invoice"
	"github.com/joseph-ayodele/invoicebot/internal/llm/providers"
	"github.com/joseph-ayodele/invoicebot/internal/repository"
	"github.com/joseph-ayodele/invoicebot/internal/textextract"
)

// OpenStore opens and migrates the run database. inmem forces a private
// in-memory sqlite database regardless of DB_URL.
func OpenStore(ctx context.Context, cfg *common.Config, inmem bool, logger *slog.Logger) (*repository.DB, error) {
	var (
		db  *repository.DB
		err error
	)
	if inmem {
		db, err = repository.OpenSQLite(":memory:", logger)
	} else {
		db, err = repository.Open(ctx, repository.Config{
			DSN:              cfg.Database.DSN,
			MaxConns:         cfg.Database.MaxConns,
			MinConns:         cfg.Database.MinConns,
			MaxConnLifetime:  cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
			DialTimeout:      cfg.Database.DialTimeout,
			StatementTimeout: cfg.Database.StatementTimeout,
		}, logger)
	}
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// NewProcessor wires every stage. recorder may be nil.
func NewProcessor(cfg *common.Config, recorder core.RunRecorder, logger *slog.Logger) (*core.Processor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	extractProvider, err := providers.New(cfg.Extraction, logger)
	if err != nil {
		return nil, fmt.Errorf("extraction provider: %w", err)
	}
	categorizeProvider, err := providers.New(cfg.Categorization, logger)
	if err != nil {
		return nil, fmt.Errorf("categorization provider: %w", err)
	}

	text := textextract.New(textextract.Config{
		Pdftotext: cfg.Pipeline.Pdftotext,
		MaxChars:  cfg.Pipeline.MaxChars,
	}, logger)
	fields := invoice.NewExtractor(extractProvider, invoice.Config{
		Model:       cfg.Extraction.Model,
		Temperature: cfg.Extraction.Temperature,
	}, logger)
	classifier := categorize.NewClassifier(categorizeProvider, categorize.Config{
		Allowed:        cfg.Categories.Allowed,
		CompanyContext: cfg.Categories.CompanyContext,
		Model:          cfg.Categorization.Model,
		Temperature:    cfg.Categorization.Temperature,
	}, logger)

	opts := []core.Option{core.WithStageTimeout(cfg.Pipeline.StageTimeout)}
	if recorder != nil {
		opts = append(opts, core.WithRunRecorder(recorder))
	}
	if cfg.Accounting.Enabled {
		client := NewAccountingClient(cfg.Accounting, logger)
		opts = append(opts, core.WithAccounting(client, billing.NewMapper(billing.AccountMap(cfg.Categories.AccountCodes), logger)))
		logger.Info("app.accounting.enabled", "tenant", cfg.Accounting.TenantID, "mapped_categories", len(cfg.Categories.AccountCodes))
	} else {
		logger.Info("app.accounting.disabled")
	}

	return core.NewProcessor(logger, text, fields, classifier, opts...), nil
}

// NewAccountingClient prefers a static access token when one is configured,
// otherwise it refreshes through OAuth.
func NewAccountingClient(cfg common.AccountingConfig, logger *slog.Logger) *accounting.XeroClient {
	var tokens accounting.TokenStore
	if cfg.AccessToken != "" && cfg.RefreshToken == "" {
		tokens = accounting.StaticTokenStore{AccessToken: cfg.AccessToken}
	} else {
		tokens = accounting.NewOAuthTokenStore(cfg.ClientID, cfg.ClientSecret, cfg.TokenURL, cfg.RefreshToken, cfg.AccessToken,
			&http.Client{Timeout: cfg.Timeout})
	}
	return accounting.NewXeroClient(accounting.XeroConfig{
		BaseURL:  cfg.BaseURL,
		TenantID: cfg.TenantID,
		Timeout:  cfg.Timeout,
	}, tokens, logger)
}
