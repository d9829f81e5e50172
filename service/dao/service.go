// Package dao declares the persistence contract behind the approval
// registry's request and decision books.
package dao

import (
	"context"
	"errors"
)

// ErrNilEntity is returned by Save when the caller passes a nil record.
var ErrNilEntity = errors.New("dao: nil entity")

// Service persists records of type T keyed by K. The registry runs on the
// in-process memory store; a durable backend only has to provide these four
// methods. Load reports a missing key as (nil, nil) rather than an error so
// callers can treat absence as a regular outcome.
type Service[K comparable, T any] interface {
	Save(ctx context.Context, t *T) error

	Load(ctx context.Context, id K) (*T, error)

	Delete(ctx context.Context, id K) error

	List(ctx context.Context) ([]*T, error)
}
