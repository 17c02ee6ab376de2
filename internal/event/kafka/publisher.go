// Package kafka publishes payment events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shestoi/paygate/internal/event"
)

const eventVersion = 1

// message is the JSON value of a published event.
type message struct {
	EventID              string `json:"event_id"`
	EventType            string `json:"event_type"`
	EventVersion         int    `json:"event_version"`
	OccurredAt           string `json:"occurred_at"`
	Gateway              string `json:"gateway"`
	Method               string `json:"method"`
	CustomerID           string `json:"customer_id"`
	TransactionID        string `json:"transaction_id"`
	TransactionReference string `json:"transaction_reference"`
	Amount               string `json:"amount"`
	Currency             string `json:"currency"`
	Message              string `json:"message"`
}

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher is an event.Listener writing every event as JSON. Failures are logged, not returned.
type Publisher struct {
	logger *zap.Logger
	writer MessageWriter
	topic  string
}

const (
	batchTimeout = 10 * time.Millisecond
	writeTimeout = 5 * time.Second
)

// NewPublisher returns a Publisher whose writer delivers in the background. Handle returns as soon
// as the message is queued; delivery failures are logged from the completion callback.
func NewPublisher(logger *zap.Logger, brokers []string, topic string) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: batchTimeout,
		WriteTimeout: writeTimeout,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion:   completionLogger(logger, topic),
	}
	return NewPublisherWithWriter(logger, writer, topic)
}

func completionLogger(logger *zap.Logger, topic string) func([]kafka.Message, error) {
	return func(msgs []kafka.Message, err error) {
		if err == nil {
			return
		}
		for _, m := range msgs {
			logger.Error("failed to deliver payment event",
				zap.Error(err),
				zap.String("topic", topic),
				zap.String("transaction_id", string(m.Key)),
			)
		}
	}
}

func NewPublisherWithWriter(logger *zap.Logger, writer MessageWriter, topic string) *Publisher {
	return &Publisher{logger: logger, writer: writer, topic: topic}
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func (p *Publisher) Handle(ctx context.Context, e event.Event) {
	occurred := e.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}

	payload := message{
		EventID:              uuid.NewString(),
		EventType:            e.Name,
		EventVersion:         eventVersion,
		OccurredAt:           occurred.UTC().Format(time.RFC3339),
		Gateway:              e.Gateway,
		Method:               e.Method,
		CustomerID:           e.CustomerID,
		TransactionID:        e.TransactionID,
		TransactionReference: e.TransactionReference,
		Amount:               e.Amount,
		Currency:             e.Currency,
		Message:              e.Message,
	}

	value, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("failed to marshal payment event",
			zap.Error(err),
			zap.String("event_type", e.Name),
			zap.String("transaction_id", e.TransactionID),
		)
		return
	}

	msg := kafka.Message{
		Key:   []byte(e.TransactionID),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish payment event",
			zap.Error(err),
			zap.String("topic", p.topic),
			zap.String("event_type", e.Name),
			zap.String("transaction_id", e.TransactionID),
		)
		return
	}

	p.logger.Debug("payment event published",
		zap.String("topic", p.topic),
		zap.String("event_type", e.Name),
		zap.String("transaction_id", e.TransactionID),
	)
}
