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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"academy-platform/internal/adapters/messaging"
	"academy-platform/internal/adapters/messaging/kafka"
	"academy-platform/internal/adapters/storage/postgres"
	"academy-platform/internal/app"
	"academy-platform/internal/cardvalidation"
	"academy-platform/internal/config"
	"academy-platform/internal/core/domain"
	"academy-platform/internal/gateway"
	"academy-platform/internal/notification"
	"academy-platform/internal/observability"
	"academy-platform/internal/security"
)

const serviceName = "payments-worker"

func main() {
	fallbackLogger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	cfg, err := config.Bootstrap()
	if err != nil {
		fallbackLogger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fallbackLogger.Error("Invalid config", "error", err)
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg.App.Env).With("service", serviceName)
	logger.Info("payments worker starting", "env", cfg.App.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	store, err := postgres.NewStore(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	encrypter, err := security.NewEncryptionService(security.KeyMaterial(cfg.Payments.EncryptionKey))
	if err != nil {
		logger.Error("Failed to create encryption service", "error", err)
		os.Exit(1)
	}

	bus, err := kafka.NewBus(kafka.Options{
		Brokers:        cfg.Kafka.Brokers(),
		ConsumerGroup:  cfg.Kafka.ConsumerGroup + "-payments",
		DLQTopic:       cfg.Kafka.DLQTopic,
		RequestTimeout: time.Duration(cfg.Kafka.RequestTimeout) * time.Second,
	}, logger)
	if err != nil {
		logger.Error("Failed to create Kafka bus", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	gw := gateway.NewSimulatedGateway(cfg.Payments.Gateway.DeclineAbove, cfg.Payments.Gateway.DeclinedSuffixes)
	facade := gateway.NewCreditCardFacade(gw, encrypter, gateway.Settings{
		APIKey:        cfg.Payments.Gateway.APIKey,
		EncryptionKey: cfg.Payments.Gateway.EncryptionKey,
	}, logger)

	sink := notification.NewSink(logger)
	payments := app.NewPaymentService(store, cardvalidation.New(), encrypter, facade, sink, logger)
	commands := app.NewPaymentCommandHandler(payments, bus, sink, logger)
	messaging.Respond(bus, domain.TopicPaymentRequested, commands.HandlePaymentRequested)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bus.Run(gctx)
	})
	g.Go(func() error {
		return serveMetrics(gctx, cfg.Server.MetricsPort, logger)
	})

	logger.Info("payments worker ready", "topic", domain.TopicPaymentRequested)
	if err := g.Wait(); err != nil {
		logger.Error("payments worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("payments worker stopped")
}

// serveMetrics exposes /metrics until ctx is done. An empty addr disables it.
func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) error {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown failed", "error", err)
		}
	}()

	logger.Info("metrics server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
