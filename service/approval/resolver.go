package approval

import "context"

// Resolver fans a verdict out across several live registries.  The gateway
// keeps separate registries for response-level and tool-level approvals, but
// operators resolve by ID without knowing which surface raised the request.
type Resolver struct {
	registries []*Registry
}

// NewResolver creates a resolver over the given registries.
func NewResolver(registries ...*Registry) *Resolver {
	ret := &Resolver{}
	for _, registry := range registries {
		ret.Add(registry)
	}
	return ret
}

// Add registers another registry.
func (r *Resolver) Add(registry *Registry) {
	if registry != nil {
		r.registries = append(r.registries, registry)
	}
}

// Resolve tries each registry in order and reports whether any of them had
// the request pending.
func (r *Resolver) Resolve(ctx context.Context, id string, decision Decision) bool {
	for _, registry := range r.registries {
		if registry.Resolve(ctx, id, decision) {
			return true
		}
	}
	return false
}

// ListPending merges pending records across all registries.
func (r *Resolver) ListPending(ctx context.Context) ([]*Record, error) {
	var merged []*Record
	for _, registry := range r.registries {
		pending, err := registry.ListPending(ctx)
		if err != nil {
			return nil, err
		}
		merged = append(merged, pending...)
	}
	return merged, nil
}
