// The lexd command serves the LexDesk telemetry ingest API and the offline
// cache gateway
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/wrale/wrale-lexdesk/internal/lexd/config"
	"github.com/wrale/wrale-lexdesk/internal/lexd/database"
	"github.com/wrale/wrale-lexdesk/internal/lexd/gateway"
	gatewayhttp "github.com/wrale/wrale-lexdesk/internal/lexd/gateway/http"
	gatewayredis "github.com/wrale/wrale-lexdesk/internal/lexd/gateway/redis"
	"github.com/wrale/wrale-lexdesk/internal/lexd/metrics"
	"github.com/wrale/wrale-lexdesk/internal/lexd/ratelimit"
	ratelimitredis "github.com/wrale/wrale-lexdesk/internal/lexd/ratelimit/redis"
	"github.com/wrale/wrale-lexdesk/internal/lexd/telemetry"
	telemetryhttp "github.com/wrale/wrale-lexdesk/internal/lexd/telemetry/http"
	telemetrypg "github.com/wrale/wrale-lexdesk/internal/lexd/telemetry/postgres"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Bootstrap logger until the configured level is known
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Load configuration
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger = newLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Build connection string
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	// Establish database connection and run migrations
	db, err := database.SetupDatabase(ctx, connStr, database.PoolOptions{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, 5, time.Second, logger)
	if err != nil {
		logger.Error("failed to setup database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var rdb redis.UniversalClient
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to redis", "error", err, "addr", cfg.Redis.Addr)
			os.Exit(1)
		}
	}

	m := metrics.New()

	handler, err := setupRouter(ctx, cfg, db, rdb, m, logger)
	if err != nil {
		logger.Error("failed to setup router", "error", err)
		os.Exit(1)
	}

	// Create HTTP server with timeouts and configuration
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start the server in a goroutine to allow for graceful shutdown
	go func() {
		logger.Info("starting server",
			"host", cfg.Server.Host,
			"port", cfg.Server.Port,
		)

		var err error
		if cfg.Server.TLSCert != "" && cfg.Server.TLSKey != "" {
			err = server.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func newZerolog(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
}

// setupRouter creates and configures the HTTP router with all application routes
func setupRouter(ctx context.Context, cfg *config.Config, db *sql.DB, rdb redis.UniversalClient, m *metrics.Metrics, logger *slog.Logger) (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", m.Handler())

	// Rate limiting
	var store ratelimit.Store = ratelimit.NewMemoryStore()
	if rdb != nil {
		store = ratelimitredis.NewStore(rdb)
	}
	limiter := ratelimit.NewService(store, logger)
	if err := ratelimit.RegisterDefaultLimits(limiter, cfg.Telemetry.RateLimit, cfg.Telemetry.RatePeriod); err != nil {
		return nil, fmt.Errorf("register rate limits: %w", err)
	}
	limits := ratelimit.NewCommonRateLimiters(limiter, logger)

	// Telemetry ingest
	telemetryService := telemetry.NewService(telemetrypg.NewRepository(db), m, logger)
	telemetryHandler := telemetryhttp.NewHandler(telemetryService, newZerolog(cfg.Log), cfg.Telemetry.MaxBatchBytes)
	r.Mount("/api/v1alpha1/analytics", telemetryHandler.Router(limits.AnalyticsLimiter()))

	if !cfg.Gateway.Enabled {
		return r, nil
	}

	// Offline cache gateway
	gh, err := setupGateway(ctx, cfg.Gateway, rdb, m, logger)
	if err != nil {
		return nil, err
	}
	r.Mount(gatewayhttp.ControlPrefix, gh.Router(limits))
	r.Handle("/*", gh)

	return r, nil
}

func setupGateway(ctx context.Context, cfg config.GatewayConfig, rdb redis.UniversalClient, m *metrics.Metrics, logger *slog.Logger) (*gatewayhttp.Handler, error) {
	origin, err := url.Parse(cfg.Upstream)
	if err != nil {
		return nil, fmt.Errorf("parse gateway upstream: %w", err)
	}

	var storage gateway.Storage = gateway.NewMemoryStorage()
	if cfg.Storage == "redis" {
		storage = gatewayredis.NewStorage(rdb, "")
	}

	hub := gatewayhttp.NewHub(logger, m)
	go hub.Run(ctx)

	worker, err := gateway.NewWorker(gateway.Config{
		AppName:        cfg.AppName,
		Version:        cfg.Version,
		Origin:         origin,
		PartnerHost:    cfg.PartnerHost,
		CriticalRoutes: cfg.CriticalRoutes,
		Precache:       cfg.Precache,
	}, storage,
		gateway.WithClient(&http.Client{Timeout: 30 * time.Second}),
		gateway.WithClients(hub),
		gateway.WithRecorder(m),
		gateway.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create gateway worker: %w", err)
	}

	go func() {
		if err := worker.Install(ctx); err != nil {
			logger.Error("gateway install failed", "error", err)
		}
	}()

	return gatewayhttp.NewHandler(worker, hub, logger), nil
}
