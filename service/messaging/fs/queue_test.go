package fs

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/afs"
)

type notification struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

func newTestQueue(t *testing.T, maxRetries int) *Queue[notification] {
	t.Helper()
	config := Config{
		BaseURL:    fmt.Sprintf("mem://localhost/outbox/%s", t.Name()),
		MaxRetries: maxRetries,
	}
	queue, err := NewQueue[notification](afs.New(), config)
	assert.NoError(t, err)
	return queue
}

func TestQueuePublishConsume(t *testing.T) {
	ctx := context.Background()
	queue := newTestQueue(t, 3)

	payload := notification{ID: "approval-1", Reason: "confirm required"}
	assert.NoError(t, queue.Publish(ctx, &payload))

	message, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, message)
	assert.EqualValues(t, payload, *message.T())

	assert.NoError(t, message.Ack())

	// outbox drained
	next, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.Nil(t, next)
}

func TestQueueRedelivery(t *testing.T) {
	ctx := context.Background()
	queue := newTestQueue(t, 1)

	payload := notification{ID: "approval-2"}
	assert.NoError(t, queue.Publish(ctx, &payload))

	message, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, message)
	assert.NoError(t, message.Nack(fmt.Errorf("listener down")))

	// nacked message is redelivered
	message, err = queue.Consume(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, message)
	assert.EqualValues(t, payload, *message.T())

	// exceeding the retry limit parks the message
	assert.NoError(t, message.Nack(fmt.Errorf("listener still down")))

	next, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.Nil(t, next)

	dead, err := queue.DeadCount(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, dead)
}

func TestQueueSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	baseURL := fmt.Sprintf("mem://localhost/outbox/%s", t.Name())
	fs := afs.New()

	queue, err := NewQueue[notification](fs, Config{BaseURL: baseURL, MaxRetries: 3})
	assert.NoError(t, err)
	assert.NoError(t, queue.Publish(ctx, &notification{ID: "survivor"}))

	// a new queue instance over the same location sees the pending entry
	reopened, err := NewQueue[notification](fs, Config{BaseURL: baseURL, MaxRetries: 3})
	assert.NoError(t, err)
	message, err := reopened.Consume(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, message)
	assert.Equal(t, "survivor", message.T().ID)
}
