package publish

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"storyloom/backend/internal/notification/domain"
)

const (
	eventNotificationCreated = "notification.created"
	kafkaWriteTimeout        = 5 * time.Second
)

// messageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// createdEvent is the JSON value written for each notification.
type createdEvent struct {
	Event        string               `json:"event"`
	Notification *domain.Notification `json:"notification"`
	PublishedAt  time.Time            `json:"publishedAt"`
}

// KafkaPublisher writes notification.created events to a Kafka topic, keyed by recipient so one
// user's events stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// NewKafkaPublisher returns a publisher for topic on brokers, or nil when either is empty.
// Call Close when shutting down.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaPublisher{writer: writer, topic: topic}
}

// Publish serializes n and writes it with a short timeout so a slow broker does not hold callers.
func (p *KafkaPublisher) Publish(ctx context.Context, n *domain.Notification) error {
	if p == nil || p.writer == nil || n == nil {
		return nil
	}
	payload, err := json.Marshal(createdEvent{
		Event:        eventNotificationCreated,
		Notification: n,
		PublishedAt:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, kafkaWriteTimeout)
	defer cancel()
	return p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(n.ToUser),
		Value: payload,
	})
}

// Close closes the Kafka writer. Safe on a nil publisher.
func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
