package event

import (
	"github.com/gatekit/gatekit/service/messaging/fs"
	"github.com/gatekit/gatekit/service/messaging/memory"
)

// Option customises a Service.
type Option func(s *Service)

// WithNewFsQueueConfig supplies per-queue file system configuration, keyed
// by queue name. Required for the fs vendor.
func WithNewFsQueueConfig(configOf func(name string) fs.Config) Option {
	return func(s *Service) {
		s.fsConfigOf = configOf
	}
}

// WithNewMemoryQueueConfig supplies per-queue memory configuration, keyed by
// queue name.
func WithNewMemoryQueueConfig(configOf func(name string) memory.Config) Option {
	return func(s *Service) {
		s.memConfigOf = configOf
	}
}
