package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"academy-platform/internal/adapters/messaging"
	"academy-platform/internal/adapters/messaging/kafka"
	"academy-platform/internal/adapters/storage/postgres"
	"academy-platform/internal/app"
	"academy-platform/internal/config"
	"academy-platform/internal/core/domain"
	"academy-platform/internal/jobs"
	"academy-platform/internal/notification"
	"academy-platform/internal/observability"
)

const serviceName = "enrollment-worker"

func main() {
	fallbackLogger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	cfg, err := config.Bootstrap()
	if err != nil {
		fallbackLogger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg.App.Env).With("service", serviceName)
	logger.Info("enrollment worker starting", "env", cfg.App.Env)

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

	bus, err := kafka.NewBus(kafka.Options{
		Brokers:       cfg.Kafka.Brokers(),
		ConsumerGroup: cfg.Kafka.ConsumerGroup + "-enrollment",
		DLQTopic:      cfg.Kafka.DLQTopic,
	}, logger)
	if err != nil {
		logger.Error("Failed to create Kafka bus", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	sink := notification.NewSink(logger)
	registrations := app.NewRegistrationService(store, bus, sink, logger)
	enrollment := app.NewEnrollmentHandler(registrations, logger)
	messaging.Subscribe(bus, domain.TopicPaymentApproved, enrollment.HandlePaymentApproved)
	messaging.Subscribe(bus, domain.TopicLessonFinished, enrollment.HandleLessonFinished)

	sweep := jobs.NewCertificationSweep(registrations, cfg.Jobs.CertificationSweep, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bus.Run(gctx)
	})
	g.Go(func() error {
		return sweep.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("enrollment worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("enrollment worker stopped")
}
