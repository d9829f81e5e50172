// Package gate wraps tool execution with content moderation and
// human-in-the-loop approval.  Every call is classified before it runs:
// block-rated calls terminate immediately, confirm-rated calls park on the
// approval registry until a reviewer decides or the wait times out, and only
// allow-rated calls reach the tool.  Rejections are cached per call ID so a
// retry of the same call does not prompt the reviewer twice; allows are
// never cached, each call is judged on its own.
package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/viant/structology/conv"

	"github.com/gatekit/gatekit/internal/clock"
	"github.com/gatekit/gatekit/logging"
	"github.com/gatekit/gatekit/policy"
	"github.com/gatekit/gatekit/service/approval"
	"github.com/gatekit/gatekit/service/audit"
	"github.com/gatekit/gatekit/service/tool"
	"github.com/gatekit/gatekit/tracing"
)

// DefaultApprovalTimeout bounds the wait for a human verdict.
const DefaultApprovalTimeout = 30 * time.Second

// Gate executes tool calls behind the content classifier and the approval
// registry.
type Gate struct {
	tools     *tool.Registry
	approvals *approval.Registry
	provider  *audit.Provider

	// auditConfig is read per call so live config edits take effect without
	// rebuilding the gate.
	auditConfig func() audit.Config

	approvalTimeout time.Duration
	blocked         *blockedCalls
	converter       *conv.Converter
	logger          logging.Logger
}

// Option customises a Gate.
type Option func(*Gate)

// WithAuditConfig sets the live classifier config source.
func WithAuditConfig(source func() audit.Config) Option {
	return func(g *Gate) {
		if source != nil {
			g.auditConfig = source
		}
	}
}

// WithProvider replaces the classifier provider.
func WithProvider(provider *audit.Provider) Option {
	return func(g *Gate) {
		if provider != nil {
			g.provider = provider
		}
	}
}

// WithApprovalTimeout sets how long a confirm-rated call waits for a verdict.
func WithApprovalTimeout(timeout time.Duration) Option {
	return func(g *Gate) {
		if timeout > 0 {
			g.approvalTimeout = timeout
		}
	}
}

// WithLogger sets the gate logger.
func WithLogger(logger logging.Logger) Option {
	return func(g *Gate) {
		g.logger = logging.OrNop(logger)
	}
}

// New creates a gate over the given tool registry and approval registry.
func New(tools *tool.Registry, approvals *approval.Registry, options ...Option) *Gate {
	converterOptions := conv.DefaultOptions()
	converterOptions.ClonePointerData = true
	converterOptions.IgnoreUnmapped = true
	ret := &Gate{
		tools:           tools,
		approvals:       approvals,
		provider:        audit.NewProvider(),
		auditConfig:     func() audit.Config { return audit.Config{} },
		approvalTimeout: DefaultApprovalTimeout,
		blocked:         newBlockedCalls(blockedTTL, sweepInterval),
		converter:       conv.NewConverter(converterOptions),
		logger:          logging.Nop(),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Close stops the blocked cache sweeper.
func (g *Gate) Close() {
	g.blocked.Close()
}

// Execute runs a tool call through the moderation flow.  The returned error
// is non-nil only when ctx was cancelled; every other outcome, including
// tool failures, is reported through the Result.
func (g *Gate) Execute(ctx context.Context, call *Call) (*Result, error) {
	name := tool.Normalize(call.Tool)
	ctx, span := tracing.StartSpan(ctx, "gate.execute", tracing.SpanKindInternal)
	span.WithAttributes(map[string]string{"tool.name": name, "tool.call_id": call.ID})

	result, err := g.execute(ctx, name, call)
	tracing.EndSpan(span, err)
	return result, err
}

func (g *Gate) execute(ctx context.Context, name string, call *Call) (*Result, error) {
	toolPolicy := policy.ToolPolicyFromContext(ctx)
	if toolPolicy != nil && (toolPolicy.Mode == policy.ModeDeny || !toolPolicy.IsAllowed(name)) {
		g.logger.Warn("tool execution denied by policy: tool=%s callId=%s", name, call.ID)
		return &Result{
			Status:  StatusBlocked,
			Tool:    name,
			Message: "此工具已被策略禁用。",
		}, nil
	}
	forceConfirm := toolPolicy != nil && toolPolicy.Mode == policy.ModeAsk

	service := g.provider.Acquire(g.auditConfig())
	audited := service != nil && service.IsEnabled() && !call.SkipAudit
	g.logger.Info("tool call check: tool=%s callId=%s audited=%t", name, call.ID, audited)
	if audited {
		if g.blocked.Has(call.ID) {
			g.logger.Debug("skipping audit, call already rejected: tool=%s callId=%s", name, call.ID)
			return &Result{
				Status:  StatusBlocked,
				Tool:    name,
				Message: "此工具执行已被用户拒绝。",
			}, nil
		}
		verdict, err := service.AuditText(ctx, auditSummary(name, call.Args))
		if err != nil {
			return nil, err
		}
		switch verdict.Action {
		case policy.ActionBlock:
			g.logger.Warn("tool execution blocked: %s - %s", name, verdict.Description)
			g.blocked.Add(call.ID)
			return &Result{
				Status:  StatusBlocked,
				Tool:    name,
				Message: fmt.Sprintf("内容安全审核未通过: %s。请修改您的请求后重试。", verdict.Description),
			}, nil
		case policy.ActionConfirm:
			result, err := g.confirm(ctx, name, call, verdict)
			if err != nil || result != nil {
				return result, err
			}
		default:
			// allow falls through to execution and is never cached, unless
			// the run policy insists on a reviewer
			if forceConfirm {
				result, err := g.confirm(ctx, name, call, verdict)
				if err != nil || result != nil {
					return result, err
				}
			}
		}
	} else if forceConfirm {
		if g.blocked.Has(call.ID) {
			return &Result{
				Status:  StatusBlocked,
				Tool:    name,
				Message: "此工具执行已被用户拒绝。",
			}, nil
		}
		verdict := audit.Result{
			Success:     true,
			Label:       policy.LabelNormal,
			RiskLevel:   policy.RiskLow,
			Action:      policy.ActionConfirm,
			Description: "策略要求确认",
		}
		result, err := g.confirm(ctx, name, call, verdict)
		if err != nil || result != nil {
			return result, err
		}
	}
	return g.run(ctx, name, call)
}

// confirm parks the call on the approval registry.  A nil, nil return means
// the reviewer allowed it and execution should proceed.
func (g *Gate) confirm(ctx context.Context, name string, call *Call, verdict audit.Result) (*Result, error) {
	approvalID := fmt.Sprintf("tool:%s:%d", call.ID, clock.NowUnixMilli())
	payload := approval.Payload{
		AIResponse:  auditSummary(name, call.Args),
		Label:       string(verdict.Label),
		Description: verdict.Description,
		RiskLevel:   string(verdict.RiskLevel),
		Confidence:  verdict.Confidence,
		ToolName:    name,
		ToolArgs:    call.Args,
		SessionKey:  call.SessionKey,
	}
	record, err := g.approvals.CreateWithID(ctx, approvalID, payload, g.approvalTimeout)
	if err != nil {
		g.logger.Warn("approval request failed, proceeding: %v", err)
		return nil, nil
	}
	g.logger.Info("awaiting tool execution approval: %s id=%s", name, approvalID)

	decision, resolved, err := g.approvals.WaitForDecision(ctx, record, g.approvalTimeout)
	if err != nil {
		return nil, err
	}
	if !resolved {
		g.logger.Warn("approval timed out, tool execution cancelled: %s id=%s", name, approvalID)
		g.blocked.Add(call.ID)
		return &Result{
			Status:  StatusBlocked,
			Tool:    name,
			Message: "工具执行被超时取消。如需继续，请重新发起对话。",
		}, nil
	}
	if decision == approval.DecisionBlock {
		g.logger.Warn("reviewer rejected tool execution: %s id=%s", name, approvalID)
		g.blocked.Add(call.ID)
		return &Result{
			Status:  StatusBlocked,
			Tool:    name,
			Message: "工具执行被用户拒绝。如需继续，请重新发起对话。",
		}, nil
	}
	g.logger.Info("reviewer approved tool execution: %s id=%s", name, approvalID)
	return nil, nil
}

func (g *Gate) run(ctx context.Context, name string, call *Call) (*Result, error) {
	service := g.tools.Lookup(call.Tool)
	if service == nil {
		return &Result{Status: StatusError, Tool: name, Error: fmt.Sprintf("tool %v not found", name)}, nil
	}
	signature := service.Methods().Lookup(call.Method)
	if signature == nil {
		return &Result{Status: StatusError, Tool: name, Error: tool.NewMethodNotFoundError(call.Method).Error()}, nil
	}
	method, err := service.Method(call.Method)
	if err != nil {
		return &Result{Status: StatusError, Tool: name, Error: err.Error()}, nil
	}

	input := newInstance(signature.Input)
	if len(call.Args) > 0 {
		if err := g.converter.Convert(call.Args, input); err != nil {
			return &Result{Status: StatusError, Tool: name, Error: fmt.Sprintf("invalid arguments: %v", err)}, nil
		}
	}
	output := newInstance(signature.Output)

	if err := g.invoke(ctx, method, input, output); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		g.logger.Error("tool %s failed: %v", name, err)
		return &Result{Status: StatusError, Tool: name, Error: err.Error()}, nil
	}
	return &Result{Status: StatusOK, Tool: name, Output: output}, nil
}

// invoke runs a tool method, converting panics into errors so a misbehaving
// tool cannot take down the gate.
func (g *Gate) invoke(ctx context.Context, method tool.Executable, input, output interface{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panic: %v", r)
		}
	}()
	return method(ctx, input, output)
}

func auditSummary(name string, args map[string]any) string {
	encoded, err := json.Marshal(args)
	if err != nil {
		encoded = []byte("{}")
	}
	return fmt.Sprintf("工具调用: %s\n参数: %s", name, encoded)
}

func newInstance(t reflect.Type) interface{} {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return reflect.New(t).Interface()
}
