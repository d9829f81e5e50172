// Package messaging defines the delivery contract for gateway notifications
// such as approval requests, decisions and expiries.
package messaging

import "context"

// Vendor selects a queue implementation.
type Vendor string

const (
	// VendorMemory is the in-process channel backed queue, the default for
	// single binary deployments.
	VendorMemory Vendor = "memory"

	// VendorFs persists messages as files so notifications survive restarts
	// and can be shared between processes.
	VendorFs Vendor = "fs"
)

// Queue carries typed notifications between the registry and its consumers.
// Implementations must tolerate concurrent publishers and consumers.
type Queue[T any] interface {
	// Publish enqueues the payload.
	Publish(ctx context.Context, t *T) error

	// Consume blocks until a message is available or ctx ends.
	Consume(ctx context.Context) (Message[T], error)
}

// Message is a single consumed notification awaiting settlement.
type Message[T any] interface {
	// T exposes the payload.
	T() *T

	// Ack settles the message as handled.
	Ack() error

	// Nack settles the message as failed; the queue decides on redelivery.
	Nack(err error) error
}
