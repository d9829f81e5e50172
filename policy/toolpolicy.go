package policy

import (
	"context"
	"strings"
)

// Tool execution modes recognised by the gate.
const (
	ModeAsk  = "ask"  // require reviewer confirmation for every tool call
	ModeAuto = "auto" // follow the classifier verdict (default)
	ModeDeny = "deny" // block all tool execution
)

// ToolPolicy is an optional per-run filter applied before content
// classification.  It is attached to a context so that callers who do not
// embed one keep the default classifier-driven behaviour; a nil *ToolPolicy
// means "follow the classifier" and is the zero-cost default.
type ToolPolicy struct {
	Mode      string   `json:"mode,omitempty" yaml:"mode,omitempty"`
	AllowList []string `json:"allow,omitempty" yaml:"allow,omitempty"`
	BlockList []string `json:"block,omitempty" yaml:"block,omitempty"`
}

// IsAllowed evaluates AllowList / BlockList.  Both lists match by exact
// case-insensitive comparison of the normalised tool name; BlockList has
// priority, and an empty AllowList admits everything.
func (p *ToolPolicy) IsAllowed(name string) bool {
	if p == nil {
		return true
	}
	normalized := strings.ToLower(name)
	for _, blocked := range p.BlockList {
		if normalized == strings.ToLower(blocked) {
			return false
		}
	}
	if len(p.AllowList) == 0 {
		return true
	}
	for _, allowed := range p.AllowList {
		if normalized == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

type toolPolicyKeyT struct{}

var toolPolicyKey toolPolicyKeyT

// WithToolPolicy embeds a tool policy in ctx.
func WithToolPolicy(ctx context.Context, p *ToolPolicy) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, toolPolicyKey, p)
}

// ToolPolicyFromContext extracts the tool policy, or nil when absent.
func ToolPolicyFromContext(ctx context.Context) *ToolPolicy {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(toolPolicyKey).(*ToolPolicy); ok {
		return v
	}
	return nil
}
