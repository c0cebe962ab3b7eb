package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"storyloom/backend/internal/notification/domain"
	"storyloom/backend/internal/telemetry"
)

// ErrMalformedEvent wraps messages that are not notification.created events.
var ErrMalformedEvent = errors.New("malformed notification event")

// messageReader is the subset of *kafka.Reader used by Consumer.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer reads notification.created events and forwards each one to an EventEmitter.
type Consumer struct {
	reader  messageReader
	emitter telemetry.EventEmitter
}

// NewConsumer returns a Consumer for topic in consumer group groupID.
func NewConsumer(brokers []string, topic, groupID string, emitter telemetry.EventEmitter) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: reader, emitter: emitter}
}

// DecodeEvent parses a notification.created message value.
func DecodeEvent(value []byte) (*domain.Notification, error) {
	var ev createdEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		return nil, err
	}
	if ev.Event != eventNotificationCreated || ev.Notification == nil {
		return nil, fmt.Errorf("unexpected event %q", ev.Event)
	}
	return ev.Notification, nil
}

// Next reads one message and emits it. Malformed messages are skipped with an error so the
// caller can log them; the offset is committed either way.
func (c *Consumer) Next(ctx context.Context) error {
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return err
	}
	n, err := DecodeEvent(msg.Value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	meta, err := json.Marshal(map[string]string{
		"notification_id": n.ID,
		"from_user":       n.FromUser,
		"story_id":        n.StoryID,
		"type":            string(n.Type),
	})
	if err != nil {
		return err
	}
	return c.emitter.Emit(ctx, &telemetry.Event{
		UserID:    n.ToUser,
		EventType: eventNotificationCreated,
		Source:    "notification-worker",
		Metadata:  meta,
		CreatedAt: n.CreatedAt,
	})
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
