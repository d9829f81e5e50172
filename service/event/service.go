// Package event provides typed publish/subscribe fan-out over the messaging
// queues. The gateway broadcasts tool execution results and approval
// notifications through it; operator surfaces attach listeners without the
// core knowing who consumes.
package event

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/viant/afs"

	"github.com/gatekit/gatekit/service/messaging"
	"github.com/gatekit/gatekit/service/messaging/fs"
	"github.com/gatekit/gatekit/service/messaging/memory"
)

// Service owns one queue per published payload type plus a catch-all queue
// that receives a copy of every event.
type Service struct {
	vendor      messaging.Vendor
	fsConfigOf  func(name string) fs.Config
	memConfigOf func(name string) memory.Config

	mu         sync.RWMutex
	broadcast  *Publisher[any]
	anyHandler *Listener[any]
	publishers map[reflect.Type]any
	listeners  map[reflect.Type]any
}

// New builds a Service on the requested queue vendor. The memory vendor
// works without options; the fs vendor needs WithNewFsQueueConfig so the
// service knows where each queue lives on disk.
func New(vendor messaging.Vendor, opts ...Option) (*Service, error) {
	ret := &Service{
		vendor:     vendor,
		publishers: make(map[reflect.Type]any),
		listeners:  make(map[reflect.Type]any),
	}
	for _, opt := range opts {
		opt(ret)
	}
	switch vendor {
	case messaging.VendorFs:
		if ret.fsConfigOf == nil {
			return nil, fmt.Errorf("fs queue vendor requires WithNewFsQueueConfig")
		}
	case messaging.VendorMemory:
		if ret.memConfigOf == nil {
			ret.memConfigOf = func(string) memory.Config { return memory.DefaultConfig() }
		}
	default:
		return nil, fmt.Errorf("unsupported queue vendor: %s", vendor)
	}
	queue, err := QueueOf[Event[any]](ret, "any")
	if err != nil {
		return nil, err
	}
	ret.broadcast = NewPublisher[any](queue)
	return ret, nil
}

// SetListener attaches a handler to the catch-all queue, replacing any
// previous one.
func (s *Service) SetListener(handler func(*Event[any])) {
	if s.anyHandler != nil {
		s.anyHandler.Stop()
	}
	s.anyHandler = NewListener[any](s.broadcast, handler)
	s.anyHandler.Start()
}

// QueueOf opens a vendor queue carrying values of type T under the given
// name.
func QueueOf[T any](s *Service, name string) (messaging.Queue[T], error) {
	switch s.vendor {
	case messaging.VendorFs:
		return fs.NewQueue[T](afs.New(), s.fsConfigOf(name))
	case messaging.VendorMemory:
		return memory.NewQueue[T](s.memConfigOf(name)), nil
	}
	return nil, fmt.Errorf("unsupported queue vendor: %s", s.vendor)
}

func typeKey[T any]() reflect.Type {
	var zero T
	rType := reflect.TypeOf(zero)
	if rType.Kind() == reflect.Ptr {
		rType = rType.Elem()
	}
	return rType
}

// PublisherOf returns the publisher for payload type T, opening its queue on
// first use. Every publish also lands on the catch-all queue.
func PublisherOf[T any](s *Service) (*Publisher[T], error) {
	key := typeKey[T]()
	s.mu.RLock()
	existing, ok := s.publishers[key]
	s.mu.RUnlock()
	if ok {
		return existing.(*Publisher[T]), nil
	}
	queue, err := QueueOf[Event[T]](s, key.String())
	if err != nil {
		return nil, err
	}
	publisher := NewPublisher[T](queue)
	publisher.broadcast = s.broadcast.queue
	s.mu.Lock()
	s.publishers[key] = publisher
	s.mu.Unlock()
	return publisher, nil
}

// SetListenerOf attaches a handler for payload type T, replacing any
// previous one.
func SetListenerOf[T any](s *Service, handler func(*Event[T])) error {
	key := typeKey[T]()
	s.mu.RLock()
	existing, ok := s.listeners[key]
	s.mu.RUnlock()
	if ok {
		existing.(*Listener[T]).Stop()
	}
	publisher, err := PublisherOf[T](s)
	if err != nil {
		return err
	}
	listener := NewListener[T](publisher, handler)
	s.mu.Lock()
	s.listeners[key] = listener
	s.mu.Unlock()
	listener.Start()
	return nil
}
