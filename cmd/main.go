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
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	httphandler "academy-platform/internal/adapters/http"
	"academy-platform/internal/adapters/messaging/kafka"
	"academy-platform/internal/adapters/storage/postgres"
	"academy-platform/internal/adapters/storage/redis"
	"academy-platform/internal/app"
	"academy-platform/internal/config"
	"academy-platform/internal/notification"
	"academy-platform/internal/observability"
)

const serviceName = "academy-api"

func main() {
	// --- 1. Configuration and Logging ---
	fallbackLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	cfg, err := config.Bootstrap()
	if err != nil {
		fallbackLogger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fallbackLogger.Error("Invalid config", "error", err)
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg.App.Env)
	logger.Info("Application starting", "env", cfg.App.Env, "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- 2. Observability ---
	shutdownTracer, err := observability.InitTracer(ctx, cfg.Jaeger.Port, serviceName, cfg.App.Env)
	if err != nil {
		logger.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("Failed to shutdown tracer", "error", err)
		}
	}()

	// --- 3. Dependencies ---
	store, err := postgres.NewStore(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		logger.Error("Failed to migrate PostgreSQL", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to PostgreSQL")

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("Failed to close Redis", "error", err)
		}
	}()
	var limiter httphandler.RateLimiter = redis.NewFixedWindowLimiter(rdb)
	if cfg.RateLimit.Strategy == "sliding" {
		limiter = redis.NewSlidingWindowLimiter(rdb)
	}

	bus, err := kafka.NewBus(kafka.Options{
		Brokers:        cfg.Kafka.Brokers(),
		ConsumerGroup:  cfg.Kafka.ConsumerGroup + "-api",
		DLQTopic:       cfg.Kafka.DLQTopic,
		ReplyTopic:     kafka.NewReplyTopic(serviceName),
		RequestTimeout: time.Duration(cfg.Kafka.RequestTimeout) * time.Second,
	}, logger)
	if err != nil {
		logger.Error("Failed to create Kafka bus", "error", err)
		os.Exit(1)
	}
	defer bus.Close()
	logger.Info("Kafka bus created")

	// --- 4. Service Layer ---
	sink := notification.NewSink(logger)
	courses := app.NewCourseService(store, sink, logger)
	lessons := app.NewLessonService(store, bus, sink, logger)
	registrations := app.NewRegistrationService(store, bus, sink, logger)
	handler := httphandler.NewHandler(courses, lessons, registrations, app.NewPaymentQueries(store), bus, logger)

	authn := httphandler.JWTMiddleware([]byte(cfg.JWT.JWTSecret), logger)
	if cfg.OIDC.URL != "" {
		oidcAuth, err := httphandler.NewOIDCAuthenticator(ctx, cfg.OIDC.URL, cfg.OIDC.ClientID, logger)
		if err != nil {
			logger.Error("Failed to initialize OIDC", "error", err)
			os.Exit(1)
		}
		authn = oidcAuth.Middleware
		logger.Info("OIDC authentication enabled", "issuer", cfg.OIDC.URL)
	}
	rateLimiter := httphandler.NewRateLimiterMiddleware(limiter, cfg.RateLimit.Limit, cfg.RateLimit.Window(), logger)

	// --- 5. HTTP Router ---
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		rateLimiter.Handler,
		middleware.Logger,
		middleware.Recoverer,
		observability.NewLoggerMiddleware(logger),
		observability.NewMetricsMiddleware(serviceName),
		observability.NewTracingMiddleware(serviceName),
	)
	r.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(r, authn)

	// --- 6. HTTP Server ---
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 2*time.Duration(cfg.Kafka.RequestTimeout)*time.Second + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bus.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server exited properly")
}
