package event

import "context"

// Listener drains a typed publisher queue on its own goroutine and hands
// every event to the handler. Stop ends the goroutine.
type Listener[T any] struct {
	publisher *Publisher[T]
	handler   func(*Event[T])
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewListener[T any](publisher *Publisher[T], handler func(*Event[T])) *Listener[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Listener[T]{publisher: publisher, handler: handler, ctx: ctx, cancel: cancel}
}

func (l *Listener[T]) Start() {
	go func() {
		for {
			event, err := l.publisher.Consume(l.ctx)
			if l.ctx.Err() != nil {
				return
			}
			if err != nil || event == nil {
				continue
			}
			l.handler(event)
		}
	}()
}

func (l *Listener[T]) Stop() {
	l.cancel()
}
