package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juniorcfabio/ViralizaAi-sub005/internal/config"
	"github.com/juniorcfabio/ViralizaAi-sub005/internal/domain"
	"github.com/juniorcfabio/ViralizaAi-sub005/internal/handler"
	"github.com/juniorcfabio/ViralizaAi-sub005/internal/infra/cache"
	"github.com/juniorcfabio/ViralizaAi-sub005/internal/infra/keymutex"
	"github.com/juniorcfabio/ViralizaAi-sub005/internal/infra/observability"
	"github.com/juniorcfabio/ViralizaAi-sub005/internal/infra/processor"
	"github.com/juniorcfabio/ViralizaAi-sub005/internal/infra/resilience"
	"github.com/juniorcfabio/ViralizaAi-sub005/internal/infra/supabase"
	"github.com/juniorcfabio/ViralizaAi-sub005/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("settings_cache_ttl", cfg.SettingsCacheTTL),
		zap.Duration("settlement_interval", cfg.SettlementInterval),
	)

	if cfg.SupabaseURL == "" {
		logger.Fatal("SUPABASE_URL is required")
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "affiliates-api")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	supabaseCB := resilience.NewCircuitBreaker("supabase")
	processorCB := resilience.NewCircuitBreaker("payment-processor")

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	store := supabase.NewClient(
		httpClient,
		cfg.SupabaseURL,
		cfg.SupabaseAnonKey,
		cfg.SupabaseServiceKey,
		supabaseCB,
		resilienceCfg,
		logger,
	)
	payouts := processor.NewClient(httpClient, cfg.ProcessorAPIURL, cfg.ProcessorAPIKey, processorCB, resilienceCfg)

	// --- Services ---
	locker := keymutex.New()
	settingsCache := cache.New[domain.Settings](cfg.SettingsCacheTTL)

	settingsSvc := service.NewSettingsService(store, settingsCache, metrics, logger)
	registrySvc := service.NewRegistryService(store, store, settingsSvc, logger)
	trackerSvc := service.NewTrackerService(store, store, logger)
	ledgerSvc := service.NewLedgerService(store, store, store, settingsSvc, locker, metrics, logger)
	withdrawalSvc := service.NewWithdrawalService(store, store, store, payouts, settingsSvc, locker, metrics, logger)
	settlementSvc := service.NewSettlementService(ledgerSvc, withdrawalSvc, store, cfg.MaxConcurrency, metrics, logger)

	// --- Settlement scheduler ---
	schedCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	go settlementSvc.Start(schedCtx, cfg.SettlementInterval)

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Registry:    registrySvc,
		Tracker:     trackerSvc,
		Ledger:      ledgerSvc,
		Withdrawals: withdrawalSvc,
		Settlement:  settlementSvc,
		Settings:    settingsSvc,
	}, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	stopScheduler()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
