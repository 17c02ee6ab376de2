package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shestoi/paygate/internal/event"
)

// ErrUnsupportedVersion is returned for payloads written by a newer publisher.
var ErrUnsupportedVersion = errors.New("unsupported event version")

// MessageReader is the subset of *kafka.Reader the subscriber uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Subscriber reads published payment events and hands them to a listener.
// Offsets are committed after the listener returns, so delivery is at least once.
type Subscriber struct {
	logger   *zap.Logger
	reader   MessageReader
	listener event.Listener
	// backoff is the pause after a failed fetch.
	backoff time.Duration
}

const fetchBackoff = 500 * time.Millisecond

func NewSubscriber(logger *zap.Logger, brokers []string, groupID, topic string, listener event.Listener) *Subscriber {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return NewSubscriberWithReader(logger, reader, listener)
}

func NewSubscriberWithReader(logger *zap.Logger, reader MessageReader, listener event.Listener) *Subscriber {
	return &Subscriber{logger: logger, reader: reader, listener: listener, backoff: fetchBackoff}
}

func (s *Subscriber) Close() error {
	return s.reader.Close()
}

// Run consumes until ctx is cancelled or the reader is closed. Undecodable messages are logged
// and committed.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		m, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			s.logger.Error("failed to fetch payment event", zap.Error(err))
			if !s.wait(ctx) {
				return nil
			}
			continue
		}

		e, err := Decode(m.Value)
		if err != nil {
			s.logger.Warn("skipping undecodable payment event",
				zap.Error(err),
				zap.String("topic", m.Topic),
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
			)
		} else {
			s.listener.Handle(ctx, e)
		}

		if err := s.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error("failed to commit payment event offset",
				zap.Error(err),
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
			)
		}
	}
}

// wait sleeps for the backoff. It returns false when ctx ends first.
func (s *Subscriber) wait(ctx context.Context) bool {
	t := time.NewTimer(s.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Decode parses a value written by Publisher.
func Decode(value []byte) (event.Event, error) {
	var msg message
	if err := json.Unmarshal(value, &msg); err != nil {
		return event.Event{}, fmt.Errorf("failed to unmarshal payment event: %w", err)
	}
	if msg.EventVersion > eventVersion {
		return event.Event{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, msg.EventVersion)
	}
	if msg.EventType == "" {
		return event.Event{}, errors.New("payment event has no event_type")
	}

	var occurred time.Time
	if msg.OccurredAt != "" {
		t, err := time.Parse(time.RFC3339, msg.OccurredAt)
		if err != nil {
			return event.Event{}, fmt.Errorf("invalid occurred_at: %w", err)
		}
		occurred = t
	}

	return event.Event{
		Name:                 msg.EventType,
		OccurredAt:           occurred,
		Gateway:              msg.Gateway,
		Method:               msg.Method,
		CustomerID:           msg.CustomerID,
		TransactionID:        msg.TransactionID,
		TransactionReference: msg.TransactionReference,
		Amount:               msg.Amount,
		Currency:             msg.Currency,
		Message:              msg.Message,
	}, nil
}
