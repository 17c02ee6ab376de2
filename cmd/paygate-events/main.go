// Command paygate-events tails the payment events topic and logs every event.
//
// Brokers and topic come from KAFKA_BROKERS and KAFKA_TOPIC (localhost:19092 and payments.events by default).
// KAFKA_GROUP_ID sets the consumer group; without it the tool joins "paygate-events".
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/shestoi/paygate/internal/event"
	eventkafka "github.com/shestoi/paygate/internal/event/kafka"
	platformkafka "github.com/shestoi/paygate/platform/kafka"
	platformlogging "github.com/shestoi/paygate/platform/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := platformlogging.New(platformlogging.Config{
		ServiceName: "paygate-events",
		Env:         "local",
		Level:       os.Getenv("LOG_LEVEL"),
		Format:      "console",
		AddCaller:   true,
	})
	if err != nil {
		os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer platformlogging.Sync(logger)

	cfg := platformkafka.DefaultConfig()
	if err := platformkafka.LoadEnv(&cfg); err != nil {
		logger.Error("failed to load kafka config", zap.Error(err))
		os.Exit(1)
	}
	groupID := os.Getenv("KAFKA_GROUP_ID")
	if groupID == "" {
		groupID = "paygate-events"
	}

	logger.Info("tailing payment events",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
		zap.String("group_id", groupID),
	)

	sub := eventkafka.NewSubscriber(logger, cfg.Brokers, groupID, cfg.Topic, event.ListenerFunc(func(_ context.Context, e event.Event) {
		logger.Info(e.Name,
			zap.Time("occurred_at", e.OccurredAt),
			zap.String("gateway", e.Gateway),
			zap.String("method", e.Method),
			zap.String("customer_id", e.CustomerID),
			zap.String("transaction_id", e.TransactionID),
			zap.String("transaction_reference", e.TransactionReference),
			zap.String("amount", e.Amount),
			zap.String("currency", e.Currency),
			zap.String("message", e.Message),
		)
	}))
	defer func() {
		if err := sub.Close(); err != nil {
			logger.Error("failed to close kafka reader", zap.Error(err))
		}
	}()

	if err := sub.Run(ctx); err != nil {
		logger.Error("event tail stopped", zap.Error(err))
	}
}
