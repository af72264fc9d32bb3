package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange string
	key      string
	msg      amqp091.Publishing
}

type fakeChannel struct {
	sent   []published
	err    error
	closed int
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed++
	return nil
}

func TestPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p := newPublisher(ch, DefaultExchange, nil)
	p.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

	payload := map[string]any{"job_id": "j1", "records_processed": 3}
	require.NoError(t, p.Publish(context.Background(), "etl.job.completed", payload))

	require.Len(t, ch.sent, 1)
	got := ch.sent[0]
	assert.Equal(t, DefaultExchange, got.exchange)
	assert.Equal(t, "etl.job.completed", got.key)
	assert.Equal(t, "application/json", got.msg.ContentType)
	assert.Equal(t, amqp091.Persistent, got.msg.DeliveryMode)
	assert.Equal(t, "etl.job.completed", got.msg.Type)
	assert.Equal(t, p.now(), got.msg.Timestamp)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(got.msg.Body, &decoded))
	assert.Equal(t, "j1", decoded["job_id"])
	assert.Equal(t, 3.0, decoded["records_processed"])
}

func TestPublisher_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("unencodable payload", func(t *testing.T) {
		ch := &fakeChannel{}
		p := newPublisher(ch, DefaultExchange, nil)
		err := p.Publish(ctx, "etl.job.failed", make(chan int))
		require.Error(t, err)
		assert.Empty(t, ch.sent)
	})

	t.Run("broker rejects", func(t *testing.T) {
		ch := &fakeChannel{err: amqp091.ErrClosed}
		p := newPublisher(ch, DefaultExchange, nil)
		err := p.Publish(ctx, "etl.job.failed", map[string]string{})
		assert.True(t, errors.Is(err, amqp091.ErrClosed))
	})

	t.Run("publish after close", func(t *testing.T) {
		ch := &fakeChannel{}
		p := newPublisher(ch, DefaultExchange, nil)
		require.NoError(t, p.Close())
		require.NoError(t, p.Close())
		assert.Equal(t, 1, ch.closed)
		assert.ErrorIs(t, p.Publish(ctx, "etl.job.completed", nil), ErrPublisherClosed)
	})
}
