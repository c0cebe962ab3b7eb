// Worker consumes notification.created events from Kafka and forwards them to the OTel log exporter.
// Set KAFKA_BROKERS, NOTIFICATION_KAFKA_TOPIC, KAFKA_GROUP_ID, and OTEL_EXPORTER_OTLP_ENDPOINT.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"storyloom/backend/internal/config"
	"storyloom/backend/internal/logging"
	"storyloom/backend/internal/notification/publish"
	telemetryotel "storyloom/backend/internal/telemetry/otel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		logger.Fatal("worker: KAFKA_BROKERS is required")
	}
	groupID := os.Getenv("KAFKA_GROUP_ID")
	if groupID == "" {
		groupID = "storyloom-notification-worker"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.Info("worker: shutting down...")
		cancel()
	}()

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, "storyloom-worker", cfg.OTLPInsecure)
	if err != nil {
		logger.Fatal("otel providers", zap.Error(err))
	}
	defer func() { _ = providers.Shutdown(context.Background()) }()

	consumer := publish.NewConsumer(brokers, cfg.NotificationKafkaTopic, groupID, telemetryotel.NewEventEmitter(providers.LoggerProvider))
	defer consumer.Close()

	logger.Info("worker: consuming", zap.String("topic", cfg.NotificationKafkaTopic), zap.String("group", groupID))
	for {
		if err := consumer.Next(ctx); err != nil {
			if ctx.Err() != nil {
				logger.Info("worker: stopped")
				return
			}
			if errors.Is(err, publish.ErrMalformedEvent) {
				logger.Warn("worker: skipping message", zap.Error(err))
				continue
			}
			logger.Warn("worker: consume failed", zap.Error(err))
		}
	}
}
