package gatekit

import (
	"github.com/viant/afs/storage"
	"github.com/viant/x"

	"github.com/gatekit/gatekit/logging"
	"github.com/gatekit/gatekit/service/approval"
	"github.com/gatekit/gatekit/service/event"
	"github.com/gatekit/gatekit/service/meta"
	"github.com/gatekit/gatekit/service/tool"
)

// Option customises the gateway service.
type Option func(s *Service)

// WithConfig sets the initial configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

// WithLogger sets the logger shared by all components.
func WithLogger(logger logging.Logger) Option {
	return func(s *Service) {
		s.logger = logging.OrNop(logger)
	}
}

// WithMetaService sets the config document loader.
func WithMetaService(service *meta.Service) Option {
	return func(s *Service) {
		s.metaService = service
	}
}

// WithMetaBaseURL sets the base URL relative config locations resolve
// against.
func WithMetaBaseURL(baseURL string) Option {
	return func(s *Service) {
		s.metaBaseURL = baseURL
	}
}

// WithMetaFsOptions sets storage options for the config document loader.
func WithMetaFsOptions(options ...storage.Option) Option {
	return func(s *Service) {
		s.metaFsOptions = options
	}
}

// WithExtensionTypes seeds the tool registry with data types.
func WithExtensionTypes(types ...*x.Type) Option {
	return func(s *Service) {
		s.extensionTypes = types
	}
}

// WithExtensionServices registers tool services at construction time.
func WithExtensionServices(services ...tool.Service) Option {
	return func(s *Service) {
		s.extensionServices = services
	}
}

// WithEventService attaches a typed event fan-out; tool execution outcomes
// are published through it.
func WithEventService(service *event.Service) Option {
	return func(s *Service) {
		s.eventService = service
	}
}

// WithResponseRegistry replaces the response-level approval registry.
func WithResponseRegistry(registry *approval.Registry) Option {
	return func(s *Service) {
		if registry != nil {
			s.responseApprovals = registry
		}
	}
}

// WithToolRegistry replaces the tool-level approval registry.
func WithToolRegistry(registry *approval.Registry) Option {
	return func(s *Service) {
		if registry != nil {
			s.toolApprovals = registry
		}
	}
}
