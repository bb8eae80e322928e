package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"academy-platform/internal/adapters/analytics/clickhouse"
	"academy-platform/internal/adapters/messaging"
	"academy-platform/internal/adapters/messaging/kafka"
	"academy-platform/internal/config"
	"academy-platform/internal/core/domain"
	"academy-platform/internal/observability"
)

const serviceName = "analytics-sink"

func main() {
	fallbackLogger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	cfg, err := config.Bootstrap()
	if err != nil {
		fallbackLogger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg.App.Env).With("service", serviceName)
	logger.Info("analytics sink starting", "env", cfg.App.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := clickhouse.Open(ctx, cfg.ClickHouse)
	if err != nil {
		logger.Error("failed to connect to ClickHouse", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Error("Failed to close ClickHouse connection", "error", err)
		}
	}()

	sink := clickhouse.NewSink(conn, logger)
	if err := sink.Migrate(ctx); err != nil {
		logger.Error("failed to prepare ClickHouse tables", "error", err)
		os.Exit(1)
	}

	bus, err := kafka.NewBus(kafka.Options{
		Brokers:       cfg.Kafka.Brokers(),
		ConsumerGroup: cfg.Kafka.ConsumerGroup + "-analytics",
		DLQTopic:      cfg.Kafka.DLQTopic,
	}, logger)
	if err != nil {
		logger.Error("failed to create Kafka bus", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	messaging.Subscribe(bus, domain.TopicPaymentApproved, sink.HandlePaymentApproved)
	messaging.Subscribe(bus, domain.TopicLessonStarted, sink.HandleLessonStarted)
	messaging.Subscribe(bus, domain.TopicLessonFinished, sink.HandleLessonFinished)
	messaging.Subscribe(bus, domain.TopicCourseFinished, sink.HandleCourseFinished)

	logger.Info("analytics sink ready")
	if err := bus.Run(ctx); err != nil {
		logger.Error("analytics sink stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("analytics sink stopped")
}
