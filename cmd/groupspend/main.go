package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"groupspend/internal/cache"
	"groupspend/internal/cli"
	"groupspend/internal/dashboard"
	"groupspend/internal/events"
	"groupspend/internal/format"
	apphttp "groupspend/internal/http"
	"groupspend/internal/log"
	"groupspend/internal/metrics"
	"groupspend/internal/middleware/ratelimit"
	"groupspend/internal/preferences"
	"groupspend/internal/report"
	"groupspend/internal/services"
)

func main() {
	if err := run(); err != nil {
		log.FromContext(context.Background()).Error("groupspend exited with error", log.FieldError, err)
		os.Exit(1)
	}
}

func run() error {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	logger := cli.SetupLogger(cfg)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	store, err := cli.OpenBackend(ctx, logger, cfg)
	if err != nil {
		return err
	}
	down := &shutdown{timeout: cfg.ShutdownTimeout}
	down.add("close storage", func(context.Context) error { return store.Cleanup() })

	appMetrics := metrics.New()
	bus := events.NewBus()

	currency := cfg.Currency()
	engine := report.NewEngine(store.Repository, store.Repository,
		report.WithFormatter(format.ForLocale(cfg.DefaultLocale)),
		report.WithDefaultCurrency(currency),
		report.WithObserver(appMetrics),
		report.WithLogger(logger),
	)

	sessions := dashboard.NewRegistry(engine, dashboard.Options{
		TTL:           cfg.SessionTTL,
		MaxSessions:   cfg.SessionMax,
		DefaultLocale: cfg.DefaultLocale,
		Observer:      appMetrics,
		Logger:        logger,
		OnSizeChange:  appMetrics.SetSessions,
	})
	unsubscribe := bus.Subscribe(sessions)
	defer unsubscribe()

	cacheManager := cache.NewManager(logger)
	cacheManager.Register(sessions)
	cacheManager.StartCleanup(cfg.CacheCleanupInterval)
	down.add("cache cleanup", func(context.Context) error {
		cacheManager.Stop()
		return nil
	})

	expenseOpts := []services.ExpenseOption{
		services.WithDefaultCurrency(currency),
		services.WithEventObserver(appMetrics),
		services.WithExpenseLogger(logger),
	}

	broker, err := cli.ConnectAMQP(ctx, logger, cfg)
	if err != nil {
		// The service still works single-instance without the broker.
		logger.Error("AMQP unavailable, continuing without cross-instance events", log.FieldError, err)
	}
	if broker != nil {
		expenseOpts = append(expenseOpts, services.WithRemotePublisher(broker))
	}

	// Closing the expense service closes the broker connection.
	expenses := services.NewExpenseService(store.Repository, bus, expenseOpts...)
	down.add("expense service", func(context.Context) error { return expenses.Close() })

	if broker != nil {
		processor := services.NewRemoteProcessor(broker, bus, appMetrics, services.DefaultRemoteProcessorConfig(), logger)
		if err := processor.Start(ctx); err != nil {
			return down.run(fmt.Errorf("start remote processor: %w", err))
		}
		down.add("remote processor", processor.Stop)
	}

	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute})

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Dependencies{
		Directory:     services.NewDirectoryService(store.Repository, logger),
		Expenses:      expenses,
		Preferences:   preferences.NewService(store.Repository, logger),
		Sessions:      sessions,
		Ledger:        store.Repository,
		Recorder:      appMetrics,
		RateLimiter:   limiter,
		Logger:        logger,
		ReportTimeout: cfg.ReportTimeout,
	})
	down.add("http shutdown", srv.Shutdown)

	for _, cidr := range cfg.TrustedProxies {
		if err := srv.Detector().AddTrustedProxy(cidr); err != nil {
			return down.run(err)
		}
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting groupspend server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"amqp", broker != nil,
			"default_currency", string(currency))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var cause error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			cause = fmt.Errorf("http server: %w", err)
		}
	}

	if err := down.run(cause); err != nil {
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}
