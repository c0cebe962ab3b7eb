package publish

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyloom/backend/internal/notification/domain"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type funcPublisher func(ctx context.Context, n *domain.Notification) error

func (f funcPublisher) Publish(ctx context.Context, n *domain.Notification) error { return f(ctx, n) }

func sample() *domain.Notification {
	return &domain.Notification{
		ID:        "n1",
		FromUser:  "sender1",
		ToUser:    "user123",
		StoryID:   "story1",
		Type:      domain.TypeCollaborationInvite,
		CreatedAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewKafkaPublisher_Unconfigured(t *testing.T) {
	assert.Nil(t, NewKafkaPublisher(nil, "notifications"))
	assert.Nil(t, NewKafkaPublisher([]string{"localhost:9092"}, ""))

	var p *KafkaPublisher
	assert.NoError(t, p.Publish(context.Background(), sample()))
	assert.NoError(t, p.Close())
}

func TestKafkaPublisher_WritesKeyedEvent(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, topic: "notifications"}

	require.NoError(t, p.Publish(context.Background(), sample()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "user123", string(w.msgs[0].Key))

	var ev struct {
		Event        string `json:"event"`
		Notification struct {
			ID     string `json:"id"`
			ToUser string `json:"toUser"`
			Type   string `json:"type"`
		} `json:"notification"`
	}
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, "notification.created", ev.Event)
	assert.Equal(t, "n1", ev.Notification.ID)
	assert.Equal(t, "collaboration_invite", ev.Notification.Type)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	brokerErr := errors.New("leader not available")
	p := &KafkaPublisher{writer: &fakeWriter{err: brokerErr}}
	assert.ErrorIs(t, p.Publish(context.Background(), sample()), brokerErr)
}

func TestMulti_PublishesToAllAndJoinsErrors(t *testing.T) {
	var calls int
	errA := errors.New("a failed")
	m := Multi{
		funcPublisher(func(ctx context.Context, n *domain.Notification) error { calls++; return errA }),
		nil,
		funcPublisher(func(ctx context.Context, n *domain.Notification) error { calls++; return nil }),
	}
	err := m.Publish(context.Background(), sample())
	assert.Equal(t, 2, calls)
	assert.ErrorIs(t, err, errA)

	assert.NoError(t, Multi{}.Publish(context.Background(), sample()))
}
