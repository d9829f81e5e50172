package event

import (
	"context"
	"time"

	"github.com/gatekit/gatekit/service/messaging"
)

// Publisher writes events of one payload type to its queue and mirrors each
// of them onto the service wide catch-all queue.
type Publisher[T any] struct {
	queue     messaging.Queue[Event[T]]
	broadcast messaging.Queue[Event[any]]
}

func NewPublisher[T any](queue messaging.Queue[Event[T]]) *Publisher[T] {
	return &Publisher[T]{queue: queue}
}

// Publish stamps the event and enqueues it. A failure on the catch-all copy
// does not fail the typed publish.
func (p *Publisher[T]) Publish(ctx context.Context, event *Event[T]) error {
	event.CreatedAt = time.Now()
	if p.broadcast != nil {
		_ = p.broadcast.Publish(ctx, &Event[any]{
			Context:   event.Context,
			CreatedAt: event.CreatedAt,
			Metadata:  event.Metadata,
			Data:      event.Data,
		})
	}
	return p.queue.Publish(ctx, event)
}

// Consume takes the next event off the typed queue, acknowledging it
// immediately.
func (p *Publisher[T]) Consume(ctx context.Context) (*Event[T], error) {
	msg, err := p.queue.Consume(ctx)
	if err != nil || msg == nil {
		return nil, err
	}
	if err = msg.Ack(); err != nil {
		return nil, err
	}
	return msg.T(), nil
}
