package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/atelierhq/loom-core/internal/api"
	"github.com/atelierhq/loom-core/internal/auth"
	"github.com/atelierhq/loom-core/internal/compiler"
	"github.com/atelierhq/loom-core/internal/config"
	"github.com/atelierhq/loom-core/internal/modelhost"
	"github.com/atelierhq/loom-core/internal/ratelimit"
	"github.com/atelierhq/loom-core/internal/router"
	"github.com/atelierhq/loom-core/internal/router/policy"
	"github.com/atelierhq/loom-core/internal/sources"
	"github.com/atelierhq/loom-core/internal/telemetry"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	flag.Parse()

	// Bootstrap logger for config loading; replaced once telemetry config
	// is known.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	loader := config.NewLoader(*configDir, logger)
	if err := loader.Load(); err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	cfg := loader.Config()
	logger = telemetry.NewLogger(telemetry.LogOptions{
		Level:      cfg.Telemetry.LogLevel,
		Format:     cfg.Telemetry.LogFormat,
		File:       cfg.Telemetry.LogFile,
		MaxSizeMB:  cfg.Telemetry.LogMaxSizeMB,
		MaxBackups: cfg.Telemetry.LogMaxBackups,
		MaxAgeDays: cfg.Telemetry.LogMaxAgeDays,
	})
	slog.SetDefault(logger)

	if err := loader.Watch(); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}

	// Connect to PostgreSQL
	dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(context.Background()); err != nil {
		logger.Warn("database not reachable (service will start but auth will fail)", "error", err)
	} else {
		logger.Info("database connected")
	}

	// Connect to Redis
	var rdb *redis.Client
	if len(cfg.Redis.Addresses) > 0 && cfg.Redis.Addresses[0] != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addresses[0],
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable (key cache disabled, rate limits enforced locally)", "error", err)
			rdb = nil
		} else {
			logger.Info("redis connected")
		}
	}

	metrics := telemetry.NewMetrics()

	// Context sources
	knowledge := sources.NewKnowledgeClient(func() config.KnowledgeConfig {
		return loader.Config().Sources.Knowledge
	}, nil)
	repo := sources.NewRepoClient(func() config.RepositoryConfig {
		return loader.Config().Sources.Repository
	}, nil)
	modelHost := modelhost.New(func() config.ModelHostConfig {
		return loader.Config().Sources.ModelHost
	}, nil)

	comp := compiler.New(knowledge, repo, func() config.SourcesConfig {
		return loader.Config().Sources
	}, metrics, logger)

	// Routing engine
	routingCfg := func() config.RoutingConfig {
		return loader.Config().Routing
	}
	registry := router.NewRegistry(loader.Providers().Providers)
	tracker := router.NewHealthTracker(registry, metrics)

	gate := policy.NewGate(func() config.PolicyConfig {
		return loader.Config().Routing.Policy
	}, logger)
	if err := gate.Load(); err != nil {
		logger.Error("failed to load routing policies", "error", err)
		os.Exit(1)
	}

	engine := router.NewEngine(registry, tracker, modelHost, gate, routingCfg, metrics, logger)

	loader.OnReload(func() {
		registry.Reload(loader.Providers().Providers)
		tracker.EnsureRecords()
		if err := gate.Load(); err != nil {
			logger.Error("failed to reload routing policies, keeping previous", "error", err)
		}
		logger.Info("provider registry reloaded", "providers", len(loader.Providers().Providers))
	})

	// Background health prober
	probeCtx, probeCancel := context.WithCancel(context.Background())
	defer probeCancel()
	prober := router.NewProber(registry, tracker, modelHost, nil, routingCfg, metrics, logger)
	go prober.Run(probeCtx)

	// HTTP surface
	keyStore := auth.NewCachedKeyStore(dbPool, rdb)
	limiter := ratelimit.NewLimiter(rdb)
	handler := api.NewHandler(comp, engine, knowledge, repo, logger, version)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(api.RequestID)

	// Unauthenticated routes
	r.Get("/loom/v1/health", handler.Health)
	r.Get("/loom/v1/ready", handler.Ready)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(keyStore))
		r.Use(ratelimit.Middleware(limiter, metrics))

		r.Post("/v1/context/compile", handler.CompileContext)
		r.Post("/v1/context/estimate", handler.EstimateContext)
		r.Get("/v1/context/budget/{model}", handler.Budget)

		r.Post("/v1/route", handler.RouteTask)
		r.Post("/v1/providers/{name}/outcome", handler.ReportOutcome)
		r.Get("/v1/providers", handler.ListProviders)
		r.Get("/v1/providers/{name}/health", handler.ProviderHealth)
		r.Post("/v1/providers/{name}/enable", handler.EnableProvider)
		r.Post("/v1/providers/{name}/disable", handler.DisableProvider)
		r.Get("/v1/stats", handler.RoutingStats)
		r.Get("/v1/models", handler.ListModels)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Metrics served on a separate port so the scrape endpoint never sits
	// behind auth.
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Telemetry.MetricsPort),
		Handler: metricsMux,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("loom core starting", "addr", addr, "version", version)
		errCh <- srv.ListenAndServe()
	}()
	go func() {
		logger.Info("metrics listener starting", "addr", metricsSrv.Addr)
		errCh <- metricsSrv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	probeCancel()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	if err := metricsSrv.Shutdown(ctx); err != nil {
		logger.Warn("metrics listener shutdown failed", "error", err)
	}
	logger.Info("loom core stopped")
}
