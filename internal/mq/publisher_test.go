package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	deadline bool
	err      error
	closed   bool
}

func (c *recordingChannel) PublishWithContext(ctx context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.exchange = exchange
	c.key = key
	c.msg = msg
	_, c.deadline = ctx.Deadline()
	return c.err
}

func (c *recordingChannel) Close() error {
	c.closed = true
	return nil
}

func TestPublish_SendsPersistentJSON(t *testing.T) {
	ch := &recordingChannel{}
	p := newPublisher(ch, "meter-field-ops.events.exchange", 5*time.Second, zaptest.NewLogger(t))

	event := EntrySubmittedEvent{Officer: "AGUNG", Accepted: []string{"518040000806"}, Total: 3, Success: 1, Failed: 2}
	require.NoError(t, p.Publish(context.Background(), "entry.submitted", event))

	assert.Equal(t, "meter-field-ops.events.exchange", ch.exchange)
	assert.Equal(t, "entry.submitted", ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	assert.True(t, ch.deadline)

	var decoded EntrySubmittedEvent
	require.NoError(t, json.Unmarshal(ch.msg.Body, &decoded))
	assert.Equal(t, event.Accepted, decoded.Accepted)
	assert.Equal(t, 2, decoded.Failed)
}

func TestPublish_WrapsChannelError(t *testing.T) {
	ch := &recordingChannel{err: errors.New("channel closed")}
	p := newPublisher(ch, "x", 0, zaptest.NewLogger(t))

	err := p.Publish(context.Background(), "import.completed", ImportCompletedEvent{Table: "customers"})
	assert.ErrorContains(t, err, "channel closed")
	assert.False(t, ch.deadline)
}

func TestNilPublisherIsNoop(t *testing.T) {
	var p *Publisher

	assert.NoError(t, p.Publish(context.Background(), "entry.submitted", EntrySubmittedEvent{}))
	assert.NoError(t, p.Close())

	p, err := NewPublisher(nil, "x", time.Second, zaptest.NewLogger(t))
	assert.NoError(t, err)
	assert.Nil(t, p)
}
