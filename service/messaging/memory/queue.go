// Package memory implements messaging.Queue on a buffered channel. It is the
// default carrier for approval notifications inside a single process.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gatekit/gatekit/internal/idgen"
	"github.com/gatekit/gatekit/service/messaging"
)

// Config tunes redelivery behaviour of the in-memory queue.
type Config struct {
	MaxRetries  int
	RetryDelay  time.Duration
	DeadLetter  bool
	QueueBuffer int
}

// DefaultConfig suits approval notification volumes: a small buffer and a
// handful of quick redelivery attempts.
func DefaultConfig() Config {
	return Config{
		MaxRetries:  3,
		RetryDelay:  100 * time.Millisecond,
		DeadLetter:  true,
		QueueBuffer: 100,
	}
}

var errSettled = errors.New("message already settled")

// Message is a delivery handed out by Consume. Each delivery settles exactly
// once, through Ack or Nack.
type Message[T any] struct {
	id       string
	body     T
	queue    *Queue[T]
	attempts int
	mu       sync.Mutex
	settled  bool
}

// T returns the payload.
func (m *Message[T]) T() *T {
	return &m.body
}

// Ack settles the delivery as handled.
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settled {
		return errSettled
	}
	m.settled = true
	return nil
}

// Nack settles the delivery as failed. Until the retry limit is reached the
// payload is republished after the configured delay; afterwards it lands on
// the dead letter list when one is enabled.
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settled {
		return errSettled
	}
	m.settled = true
	m.queue.redeliver(m)
	return nil
}

// Queue is the channel backed messaging.Queue.
type Queue[T any] struct {
	deliveries chan *Message[T]
	config     Config

	deadMu sync.Mutex
	dead   []*Message[T]
}

// NewQueue builds a queue with the supplied configuration. A non-positive
// buffer falls back to the default.
func NewQueue[T any](config Config) *Queue[T] {
	if config.QueueBuffer <= 0 {
		config.QueueBuffer = DefaultConfig().QueueBuffer
	}
	return &Queue[T]{
		deliveries: make(chan *Message[T], config.QueueBuffer),
		config:     config,
	}
}

// Publish enqueues a copy of the payload as a fresh delivery.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	delivery := &Message[T]{id: idgen.New(), body: *t, queue: q}
	select {
	case q.deliveries <- delivery:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPublish enqueues a copy of the payload only when buffer space is
// available, reporting whether the delivery was accepted. It never blocks.
func (q *Queue[T]) TryPublish(ctx context.Context, t *T) bool {
	if ctx.Err() != nil {
		return false
	}
	delivery := &Message[T]{id: idgen.New(), body: *t, queue: q}
	select {
	case q.deliveries <- delivery:
		return true
	default:
		return false
	}
}

// Consume blocks until a delivery is available or ctx ends.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	select {
	case delivery := <-q.deliveries:
		return delivery, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *Queue[T]) redeliver(m *Message[T]) {
	attempts := m.attempts + 1
	if attempts > q.config.MaxRetries {
		if q.config.DeadLetter {
			q.deadMu.Lock()
			q.dead = append(q.dead, m)
			q.deadMu.Unlock()
		}
		return
	}
	next := &Message[T]{id: m.id, body: m.body, queue: q, attempts: attempts}
	time.AfterFunc(q.config.RetryDelay, func() {
		q.deliveries <- next
	})
}

// Size reports the number of queued deliveries.
func (q *Queue[T]) Size() int {
	return len(q.deliveries)
}

// DLQSize reports the number of dead lettered deliveries.
func (q *Queue[T]) DLQSize() int {
	q.deadMu.Lock()
	defer q.deadMu.Unlock()
	return len(q.dead)
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
