package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/metalyard/metalyard/internal/app"
	"github.com/metalyard/metalyard/internal/inventory"
	"github.com/metalyard/metalyard/internal/invoices"
	"github.com/metalyard/metalyard/internal/observability"
	"github.com/metalyard/metalyard/internal/platform/cache"
	"github.com/metalyard/metalyard/internal/platform/db"
	"github.com/metalyard/metalyard/internal/shared"
	"github.com/metalyard/metalyard/jobs"
	"github.com/metalyard/metalyard/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.DatabaseURL, db.PoolOptions{
		Password: cfg.DatabaseServiceKey,
		MaxConns: cfg.DatabaseMaxConns,
	})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	var redisClient *redis.Client
	if client, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr}); err != nil {
		logger.Warn("redis unavailable, rendered invoices will not be cached", slog.Any("error", err))
	} else {
		redisClient = client
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	jobMetrics := metrics.Jobs()

	invoiceRepo := invoices.NewRepository(pool)
	pdfClient := report.NewClient(cfg.GotenbergURL, report.Options{Retries: 2})
	if err := pdfClient.Ping(ctx); err != nil {
		logger.Warn("gotenberg not reachable, renders will retry", slog.Any("error", err))
	}
	renderer, err := invoices.NewRenderer(pdfClient)
	if err != nil {
		logger.Error("init invoice renderer", slog.Any("error", err))
		os.Exit(1)
	}
	invoiceConfig := invoices.ServiceConfig{Renderer: renderer, Logger: logger}
	if redisClient != nil {
		invoiceConfig.Cache = invoices.NewPDFCache(redisClient, cfg.InvoicePDFTTL)
	}
	invoiceService := invoices.NewService(invoiceRepo, shared.NewAuditLogger(pool), invoiceConfig)

	renderJob := jobs.NewInvoiceRenderJob(invoiceService, logger, jobMetrics)
	overdueJob := jobs.NewOverdueSweepJob(invoiceRepo, logger, jobMetrics)
	auditJob := jobs.NewAllocationAuditJob(inventory.NewRepository(pool), logger, jobMetrics)
	cleanupJob := jobs.NewIdempotencyCleanupJob(shared.NewIdempotencyStore(pool), logger, jobMetrics)

	cleanupTask, err := jobs.NewIdempotencyCleanupTask(jobs.DefaultIdempotencyRetention)
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskInvoiceRender, Handler: renderJob.Handle},
			{Type: jobs.TaskInvoiceOverdueSweep, Handler: overdueJob.Handle},
			{Type: jobs.TaskAllocationAudit, Handler: auditJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "@hourly", Task: jobs.NewOverdueSweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "@daily", Task: jobs.NewAllocationAuditTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 3 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := chi.NewRouter()
	router.Method(http.MethodGet, "/metrics", metrics.Handler())
	router.Route("/jobs", jobs.NewHandler(inspector, logger).MountRoutes)
	server := &http.Server{
		Addr:              cfg.WorkerMetricsAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("starting worker metrics server", slog.String("addr", cfg.WorkerMetricsAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
