package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/invoicebot/internal/app"
	"github.com/joseph-ayodele/invoicebot/internal/common"
	"github.com/joseph-ayodele/invoicebot/internal/core/async"
	"github.com/joseph-ayodele/invoicebot/internal/export"
	"github.com/joseph-ayodele/invoicebot/internal/ingest"
	repo "github.com/joseph-ayodele/invoicebot/internal/repository"
	svc "github.com/joseph-ayodele/invoicebot/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// timestamps come from the process supervisor
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := app.OpenStore(ctx, cfg, false, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	runs := repo.NewRunRepository(db, logger)
	processor, err := app.NewProcessor(cfg, runs, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	// HTTP
	httpServer := svc.NewHTTPServer(processor, runs, export.NewService(runs, logger), db, svc.HTTPConfig{
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}, logger)
	go func() {
		if err := httpServer.Listen(cfg.Server.HTTPAddr); err != nil {
			logger.Error("http serve error", "error", err)
			stop()
		}
	}()

	// gRPC
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer, healthServer := svc.NewGRPCServer(svc.NewInvoicesService(processor, runs, cfg.Server.MaxUploadBytes, logger), logger)
	go func() {
		logger.Info("grpc.listen", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()

	// Inbox
	var queue *async.ProcessorQueue
	if cfg.Inbox.Dir != "" {
		queue = async.NewProcessorQueue(processor, logger,
			async.WithWorkers(cfg.Inbox.Workers),
			async.WithQueueSize(cfg.Inbox.QueueSize),
			async.WithProcessTimeout(cfg.Inbox.JobTimeout),
		)
		inbox := ingest.NewInbox(cfg.Inbox.Dir, cfg.Inbox.Debounce, queue, logger)
		go func() {
			if err := inbox.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("inbox stopped", "dir", cfg.Inbox.Dir, "error", err)
			}
		}()
	}

	logger.Info("invoicebot started", "http", cfg.Server.HTTPAddr, "grpc", cfg.Server.GRPCAddr, "inbox", cfg.Inbox.Dir)
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	healthServer.Shutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if queue != nil {
		queue.Shutdown(shutdownCtx)
	}
	grpcServer.GracefulStop()
}
