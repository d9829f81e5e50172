package gatekit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/x"

	"github.com/gatekit/gatekit/logging"
	"github.com/gatekit/gatekit/policy"
	"github.com/gatekit/gatekit/service/approval"
	"github.com/gatekit/gatekit/service/audit"
	"github.com/gatekit/gatekit/service/event"
	"github.com/gatekit/gatekit/service/gate"
	"github.com/gatekit/gatekit/service/meta"
	"github.com/gatekit/gatekit/service/secgate"
	"github.com/gatekit/gatekit/service/tool"
)

// ErrApprovalNotFound is returned by Resolve when no registry has the
// request pending; late and duplicate verdicts land here too.
var ErrApprovalNotFound = errors.New("approval request not found or expired")

// Service is the gateway facade.  It owns the tool registry, the content
// classifier, the security gateway client and two approval registries, one
// for model responses and one for tool calls, resolved through a single
// surface.
type Service struct {
	mux    sync.RWMutex
	config *Config

	logger        logging.Logger
	metaService   *meta.Service
	metaBaseURL   string
	metaFsOptions []storage.Option

	tools             *tool.Registry
	extensionTypes    []*x.Type
	extensionServices []tool.Service

	provider          *audit.Provider
	responseApprovals *approval.Registry
	toolApprovals     *approval.Registry
	resolver          *approval.Resolver
	gate              *gate.Gate
	gateway           *secgate.Service
	eventService      *event.Service
}

// New creates a gateway service.
func New(options ...Option) *Service {
	ret := &Service{}
	ret.init(options)
	return ret
}

func (s *Service) init(options []Option) {
	for _, option := range options {
		option(s)
	}
	s.ensureBaseSetup()
	s.tools = tool.NewRegistry(s.extensionTypes...)
	for _, service := range s.extensionServices {
		s.tools.Register(service)
	}
	s.resolver = approval.NewResolver(s.responseApprovals, s.toolApprovals)
	s.provider = audit.NewProvider(audit.WithLogger(s.logger))
	s.gate = gate.New(s.tools, s.toolApprovals,
		gate.WithProvider(s.provider),
		gate.WithAuditConfig(func() audit.Config { return s.Config().Audit }),
		gate.WithApprovalTimeout(s.config.Approval.Timeout()),
		gate.WithLogger(s.logger))
	s.gateway = secgate.New(s.config.Gateway, secgate.WithLogger(s.logger))
}

func (s *Service) ensureBaseSetup() {
	if s.config == nil {
		s.config = DefaultConfig()
	}
	if s.logger == nil {
		s.logger = logging.Nop()
	}
	if s.metaService == nil {
		s.metaService = meta.New(afs.New(), s.metaBaseURL, s.metaFsOptions...)
	}
	if s.responseApprovals == nil {
		s.responseApprovals = approval.New(approval.WithLogger(s.logger))
	}
	if s.toolApprovals == nil {
		s.toolApprovals = approval.New(approval.WithLogger(s.logger))
	}
}

// Config returns a copy of the current configuration.
func (s *Service) Config() *Config {
	s.mux.RLock()
	defer s.mux.RUnlock()
	snapshot := *s.config
	return &snapshot
}

// UpdateConfig swaps the live configuration.  The classifier picks the
// change up on its next call through the provider fingerprint; the security
// gateway client is rebuilt here.
func (s *Service) UpdateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("nil config")
	}
	if err := config.Validate(); err != nil {
		return err
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	s.config = config
	s.gateway = secgate.New(config.Gateway, secgate.WithLogger(s.logger))
	return nil
}

// Tools returns the tool registry.
func (s *Service) Tools() *tool.Registry {
	return s.tools
}

// RegisterExtensionServices adds tool services after construction.
func (s *Service) RegisterExtensionServices(services ...tool.Service) {
	for _, service := range services {
		s.tools.Register(service)
	}
}

// RegisterExtensionTypes adds data types to the tool registry.
func (s *Service) RegisterExtensionTypes(types ...*x.Type) {
	for i := range types {
		s.tools.Types().Register(types[i])
	}
}

// Gateway returns the security gateway client for the current config.
func (s *Service) Gateway() *secgate.Service {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.gateway
}

// Gate returns the tool execution gate.
func (s *Service) Gate() *gate.Gate {
	return s.gate
}

// ExecuteTool runs a tool call through the moderation gate and, when an
// event service is attached, publishes the outcome.
func (s *Service) ExecuteTool(ctx context.Context, call *gate.Call) (*gate.Result, error) {
	result, err := s.gate.Execute(ctx, call)
	if err != nil {
		return nil, err
	}
	if s.eventService != nil {
		if publisher, pErr := event.PublisherOf[*gate.Result](s.eventService); pErr == nil {
			eventContext := &event.Context{EventType: "tool.executed", SessionKey: call.SessionKey, Tool: call.Tool}
			if pErr = publisher.Publish(ctx, event.NewEvent(eventContext, result)); pErr != nil {
				s.logger.Warn("failed to publish tool execution event: %v", pErr)
			}
		}
	}
	return result, nil
}

// ResponseVerdict is the outcome of auditing a model response before it is
// shown to the user.
type ResponseVerdict struct {
	Allowed bool         `json:"allowed"`
	Audit   audit.Result `json:"audit"`
	// Message explains a refusal to the end user.
	Message string `json:"message,omitempty"`
	// ApprovalID is set when a reviewer was consulted.
	ApprovalID string `json:"approvalId,omitempty"`
}

// AuditResponse classifies a model response and, when the policy asks for
// confirmation, parks it on the response-level approval registry until a
// reviewer decides.  With auditing unconfigured everything is allowed.  The
// returned error is non-nil only when ctx was cancelled.
func (s *Service) AuditResponse(ctx context.Context, userMessage, aiResponse, sessionKey string) (*ResponseVerdict, error) {
	service := s.provider.Acquire(s.Config().Audit)
	if service == nil || !service.IsEnabled() {
		return &ResponseVerdict{Allowed: true}, nil
	}
	result, err := service.AuditText(ctx, aiResponse)
	if err != nil {
		return nil, err
	}
	switch result.Action {
	case policy.ActionBlock:
		s.logger.Warn("response blocked by content audit: label=%s", result.Label)
		return &ResponseVerdict{
			Allowed: false,
			Audit:   result,
			Message: fmt.Sprintf("内容安全审核未通过: %s", result.Description),
		}, nil
	case policy.ActionConfirm:
		return s.confirmResponse(ctx, userMessage, aiResponse, sessionKey, result)
	}
	return &ResponseVerdict{Allowed: true, Audit: result}, nil
}

func (s *Service) confirmResponse(ctx context.Context, userMessage, aiResponse, sessionKey string, result audit.Result) (*ResponseVerdict, error) {
	timeout := s.Config().Approval.Timeout()
	record, err := s.responseApprovals.Create(ctx, approval.Payload{
		UserMessage: userMessage,
		AIResponse:  aiResponse,
		Label:       string(result.Label),
		Description: result.Description,
		RiskLevel:   string(result.RiskLevel),
		Confidence:  result.Confidence,
		SessionKey:  sessionKey,
	}, timeout)
	if err != nil {
		s.logger.Warn("response approval request failed, allowing: %v", err)
		return &ResponseVerdict{Allowed: true, Audit: result}, nil
	}
	decision, resolved, err := s.responseApprovals.WaitForDecision(ctx, record, timeout)
	if err != nil {
		return nil, err
	}
	verdict := &ResponseVerdict{Audit: result, ApprovalID: record.ID}
	switch {
	case !resolved:
		verdict.Message = "内容确认超时，已被拦截。"
	case decision == approval.DecisionBlock:
		verdict.Message = "内容已被用户拦截。"
	default:
		verdict.Allowed = true
	}
	return verdict, nil
}

// Resolve records a reviewer verdict, first against the response-level
// registry, then the tool-level one.
func (s *Service) Resolve(ctx context.Context, id, decision string) error {
	if id == "" {
		return fmt.Errorf("id is required")
	}
	parsed, ok := approval.ParseDecision(decision)
	if !ok {
		return fmt.Errorf("decision must be %q or %q", approval.DecisionAllow, approval.DecisionBlock)
	}
	if !s.resolver.Resolve(ctx, id, parsed) {
		return ErrApprovalNotFound
	}
	return nil
}

// ListPending merges pending approvals across both registries.
func (s *Service) ListPending(ctx context.Context) ([]*approval.Record, error) {
	return s.resolver.ListPending(ctx)
}

// CheckSecurity screens content through the security gateway.
func (s *Service) CheckSecurity(ctx context.Context, content string, toolCalls []secgate.ToolCall, sessionKey string) secgate.Result {
	return s.Gateway().CheckSecurity(ctx, content, toolCalls, sessionKey)
}

// Shutdown releases background resources.
func (s *Service) Shutdown() {
	s.gate.Close()
}
