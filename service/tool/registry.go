package tool

import (
	"sort"
	"sync"

	"github.com/viant/x"
)

// TypesIniter lets a tool service register its input and output types when
// it joins the registry.
type TypesIniter interface {
	InitTypes(types *x.Registry)
}

// Registry holds the tool services the gate can dispatch to, keyed by
// normalised name, with a shared data type registry.
type Registry struct {
	types    *x.Registry
	services map[string]Service
	mux      sync.RWMutex
}

// NewRegistry creates a tool registry seeded with optional data types.
func NewRegistry(goTypes ...*x.Type) *Registry {
	ret := &Registry{
		types:    x.NewRegistry(),
		services: make(map[string]Service),
	}
	for _, t := range goTypes {
		if t != nil {
			ret.types.Register(t)
		}
	}
	return ret
}

// Types returns the data type registry.
func (r *Registry) Types() *x.Registry {
	return r.types
}

// Register adds a tool service, replacing any previous one with the same
// normalised name.
func (r *Registry) Register(service Service) {
	r.mux.Lock()
	defer r.mux.Unlock()
	if initer, ok := service.(TypesIniter); ok {
		initer.InitTypes(r.types)
	}
	r.services[Normalize(service.Name())] = service
}

// Lookup returns a tool service by name, or nil when absent.
func (r *Registry) Lookup(name string) Service {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return r.services[Normalize(name)]
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mux.RLock()
	defer r.mux.RUnlock()
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
