package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	gkhttp "github.com/guildkit/guildkit/internal/adapter/http"
	"github.com/guildkit/guildkit/internal/adapter/licensehttp"
	gknats "github.com/guildkit/guildkit/internal/adapter/nats"
	gkotel "github.com/guildkit/guildkit/internal/adapter/otel"
	"github.com/guildkit/guildkit/internal/adapter/postgres"
	"github.com/guildkit/guildkit/internal/adapter/ristretto"
	"github.com/guildkit/guildkit/internal/adapter/ws"
	"github.com/guildkit/guildkit/internal/config"
	"github.com/guildkit/guildkit/internal/logger"
	"github.com/guildkit/guildkit/internal/middleware"
	capport "github.com/guildkit/guildkit/internal/port/capability"
	"github.com/guildkit/guildkit/internal/resilience"
	"github.com/guildkit/guildkit/internal/secrets"
	"github.com/guildkit/guildkit/internal/service"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"fanout", cfg.Dispatch.Fanout,
	)

	vault, err := secrets.Default()
	if err != nil {
		return fmt.Errorf("secrets: %w", err)
	}
	if tok := vault.BotToken(); tok != "" {
		cfg.Gateway.Token = tok
		slog.Info("bot token loaded", "token", vault.Redacted(secrets.KeyBotToken))
	}
	if key := vault.LicenseAPIKey(); key != "" {
		cfg.License.APIKey = key
		slog.Info("license api key loaded", "key", vault.Redacted(secrets.KeyLicenseAPIKey))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Observability ---
	otelShutdown, err := gkotel.Setup(ctx, cfg.Logging.Service, cfg.Otel.Endpoint)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		_ = otelShutdown(sctx)
	}()

	metrics, err := gkotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("postgres ready")

	queue, err := gknats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	cache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	// --- Services ---
	store := postgres.NewStore(pool)

	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Cooloff)
	licenses := licensehttp.NewClient(cfg.License.URL, cfg.License.APIKey, breaker, cache, cfg.License.CacheTTL)
	entitlements := service.NewEntitlementService(licenses)

	catalog := service.NewCatalogService()
	for _, key := range capport.Available() {
		plugin, err := capport.New(key)
		if err != nil {
			return fmt.Errorf("capability %s: %w", key, err)
		}
		if err := catalog.Register(plugin.Definition()); err != nil {
			return fmt.Errorf("catalog %s: %w", key, err)
		}
	}
	slog.Info("capability catalog built", "capabilities", capport.Available())

	runtime := service.NewRuntimeService(catalog, entitlements, store, cfg.Dispatch.Fanout)
	runtime.SetMetrics(metrics)

	cooldowns := service.NewCooldownTable()
	commands := service.NewCommandService(cooldowns)
	resolver := service.NewArgumentResolver()

	// --- Transport ---
	gateway := ws.NewGateway(cfg.Gateway.URL, cfg.Gateway.Token, runtime)
	dispatcher := service.NewDispatcherService(
		commands, resolver, cooldowns, entitlements,
		gateway, gateway, metrics, cfg.Dispatch.Owners,
	)
	gateway.SetDispatcher(dispatcher)

	if err := registerCommands(commands, runtime, gateway); err != nil {
		return fmt.Errorf("commands: %w", err)
	}

	// --- Event ingress ---
	unsubEvents, err := queue.SubscribeEvents(ctx, runtime)
	if err != nil {
		return fmt.Errorf("event subscriber: %w", err)
	}
	defer unsubEvents()

	unsubLifecycle, err := queue.SubscribeLifecycle(ctx, runtime)
	if err != nil {
		return fmt.Errorf("lifecycle subscriber: %w", err)
	}
	defer unsubLifecycle()

	gatewayDone := make(chan error, 1)
	go func() { gatewayDone <- gateway.Run(ctx) }()

	// --- Operator API ---
	ready := func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if !queue.IsConnected() {
			return fmt.Errorf("nats disconnected")
		}
		return nil
	}
	handlers := gkhttp.NewHandlers(catalog, commands, runtime, entitlements, cooldowns, ready)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(gkhttp.SecurityHeaders)
	r.Use(gkhttp.Logger)
	r.Use(gkotel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	gkhttp.MountRoutes(r, handlers, cfg.Admin.TokenHash)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("operator api listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("operator api failed", "error", err)
		}
	}()

	// --- Shutdown ---
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	select {
	case <-done:
		slog.Info("shutdown signal received")
	case err := <-gatewayDone:
		if err != nil {
			slog.Error("gateway terminated", "error", err)
		}
	}

	cancel() // stops the gateway read loop and in-flight dispatches

	shutdownCtx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer scancel()

	if err := queue.Drain(); err != nil {
		slog.Warn("nats drain failed", "error", err)
	}
	runtime.Shutdown(shutdownCtx)
	cache.Close()

	return srv.Shutdown(shutdownCtx)
}
