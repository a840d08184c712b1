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

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/metalyard/metalyard/internal/app"
	"github.com/metalyard/metalyard/internal/auth"
	"github.com/metalyard/metalyard/internal/catalog"
	"github.com/metalyard/metalyard/internal/fulfillment"
	"github.com/metalyard/metalyard/internal/inventory"
	"github.com/metalyard/metalyard/internal/invoices"
	"github.com/metalyard/metalyard/internal/observability"
	"github.com/metalyard/metalyard/internal/platform/cache"
	"github.com/metalyard/metalyard/internal/platform/db"
	"github.com/metalyard/metalyard/internal/quotes"
	"github.com/metalyard/metalyard/internal/rfq"
	"github.com/metalyard/metalyard/internal/shared"
	"github.com/metalyard/metalyard/jobs"
	"github.com/metalyard/metalyard/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// Caching is optional: without Redis every read goes to Postgres and PDFs render
	// on demand.
	var redisClient *redis.Client
	if client, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr}); err != nil {
		logger.Warn("redis unavailable, caching disabled", slog.Any("error", err))
	} else {
		redisClient = client
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	queue := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	catalogService := catalog.NewService(catalog.NewRepository(pool), catalog.NewCache(redisClient, cfg.CatalogCacheTTL, logger))

	inventoryService := inventory.NewService(inventory.NewRepository(pool), auditLogger, inventory.ServiceConfig{
		AllowNegativeStock: cfg.InventoryAllowNegative,
	})

	quoteService := quotes.NewService(quotes.NewRepository(pool), auditLogger)

	fulfillmentService := fulfillment.NewService(fulfillment.NewRepository(pool), inventoryService, auditLogger, fulfillment.ServiceConfig{
		Queue:    queue,
		Observer: metrics,
		Logger:   logger,
	})

	renderer, err := invoices.NewRenderer(report.NewClient(cfg.GotenbergURL, report.Options{Retries: 1}))
	if err != nil {
		logger.Error("init invoice renderer", slog.Any("error", err))
		os.Exit(1)
	}
	invoiceConfig := invoices.ServiceConfig{
		Renderer: renderer,
		Queue:    queue,
		Logger:   logger,
	}
	if redisClient != nil {
		invoiceConfig.Cache = invoices.NewPDFCache(redisClient, cfg.InvoicePDFTTL)
	}
	invoiceService := invoices.NewService(invoices.NewRepository(pool), auditLogger, invoiceConfig)

	interpreter := rfq.NewOpenAIClient(rfq.OpenAIConfig{
		BaseURL:       cfg.AIBaseURL,
		APIKey:        cfg.AIAPIKey,
		DraftModel:    cfg.AIDraftModel,
		ParseModel:    cfg.AIParseModel,
		Timeout:       cfg.AITimeout,
		RatePerMinute: cfg.AIRatePerMinute,
	})
	rfqService := rfq.NewService(interpreter, inventoryService, logger)

	verifier := auth.NewProviderVerifier(auth.ProviderConfig{
		BaseURL: cfg.AuthURL,
		AnonKey: cfg.AuthAnonKey,
		Timeout: cfg.AuthTimeout,
	})

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Verifier:           verifier,
		CatalogHandler:     catalog.NewHandler(logger, catalogService),
		InventoryHandler:   inventory.NewHandler(logger, inventoryService),
		QuoteHandler:       quotes.NewHandler(logger, quoteService),
		FulfillmentHandler: fulfillment.NewHandler(logger, fulfillmentService),
		InvoiceHandler:     invoices.NewHandler(logger, invoiceService),
		RFQHandler:         rfq.NewHandler(logger, rfqService),
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
