// Package secgate implements the security gateway client used to screen
// model responses and tool calls against an external policy service.  Unlike
// the content classifier, this client fails closed: when the gateway cannot
// be reached or answers out of protocol, the result is the highest risk
// level so callers refuse by default.
package secgate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gatekit/gatekit/internal/clock"
	"github.com/gatekit/gatekit/logging"
	"github.com/gatekit/gatekit/tracing"
)

// DefaultTimeoutMs bounds a gateway round trip when the config does not set
// one.
const DefaultTimeoutMs = 5000

// RiskLevel is the gateway's verdict scale.  This scale is unrelated to the
// policy label risk levels; pass means no objection.
type RiskLevel string

const (
	RiskPass   RiskLevel = "pass"
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

func validRiskLevel(level RiskLevel) bool {
	switch level {
	case RiskPass, RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// Config controls the security gateway client.  Enabled is an opt-out flag:
// a nil value means enabled, matching deployments where the gateway is on
// unless explicitly switched off.
type Config struct {
	Enabled *bool  `yaml:"enabled" json:"enabled,omitempty"`
	BaseURL string `yaml:"baseURL" json:"baseURL"`
	Token   string `yaml:"token" json:"token,omitempty"`
	// TokenURL optionally points at a scy secret resource the token is
	// resolved from at config load time.
	TokenURL  string `yaml:"tokenURL" json:"tokenURL,omitempty"`
	TimeoutMs int    `yaml:"timeoutMs" json:"timeoutMs,omitempty"`
}

// Timeout returns the per request deadline.
func (c *Config) Timeout() time.Duration {
	if c.TimeoutMs > 0 {
		return time.Duration(c.TimeoutMs) * time.Millisecond
	}
	return DefaultTimeoutMs * time.Millisecond
}

// ToolCall names a tool invocation submitted for screening.
type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Result is the outcome of a security check.  Err is set when the verdict
// came from the fail-closed fallback rather than the gateway.
type Result struct {
	RiskLevel RiskLevel `json:"riskLevel"`
	Reason    string    `json:"reason,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Err       string    `json:"error,omitempty"`
}

// ProtocolError reports a gateway response that does not follow the check
// protocol.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("security gateway protocol error: %s", e.Message)
}

type checkRequest struct {
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`
	SessionKey string     `json:"sessionKey,omitempty"`
	Timestamp  int64      `json:"timestamp"`
}

type checkResponse struct {
	RiskLevel RiskLevel `json:"riskLevel"`
	Reason    string    `json:"reason,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
}

// Service is the security gateway client.
type Service struct {
	enabled   bool
	baseURL   string
	token     string
	timeoutMs int
	client    *http.Client
	logger    logging.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithHTTPClient sets the HTTP client used for gateway calls.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		if client != nil {
			s.client = client
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Service) {
		s.logger = logging.OrNop(logger)
	}
}

// New creates a security gateway client.
func New(config Config, options ...Option) *Service {
	ret := &Service{
		enabled:   config.Enabled == nil || *config.Enabled,
		baseURL:   strings.TrimSpace(config.BaseURL),
		token:     strings.TrimSpace(config.Token),
		timeoutMs: config.TimeoutMs,
		client:    &http.Client{},
		logger:    logging.Nop(),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// IsEnabled reports whether checks actually reach the gateway.  The token is
// optional; only the endpoint is required.
func (s *Service) IsEnabled() bool {
	return s.enabled && s.baseURL != ""
}

// CheckSecurity screens content, and optionally the tool calls it carries,
// against the gateway.  A disabled client passes everything; any failure to
// obtain a well-formed verdict yields a high-risk result with the reason.
func (s *Service) CheckSecurity(ctx context.Context, content string, toolCalls []ToolCall, sessionKey string) Result {
	if !s.IsEnabled() {
		return Result{RiskLevel: RiskPass}
	}
	ctx, span := tracing.StartSpan(ctx, "secgate.check", tracing.SpanKindClient)
	response, err := s.call(ctx, &checkRequest{
		Content:    content,
		ToolCalls:  toolCalls,
		SessionKey: sessionKey,
		Timestamp:  clock.NowUnixMilli(),
	})
	tracing.EndSpan(span, err)
	if err != nil {
		s.logger.Warn("security check failed, rejecting: %v", err)
		return Result{
			RiskLevel: RiskHigh,
			Reason:    fmt.Sprintf("安全接口调用失败: %v", err),
			Err:       err.Error(),
		}
	}
	return Result{RiskLevel: response.RiskLevel, Reason: response.Reason, Tags: response.Tags}
}

// CheckToolCall screens a single tool invocation.
func (s *Service) CheckToolCall(ctx context.Context, name string, arguments map[string]any, sessionKey string) Result {
	return s.CheckSecurity(ctx, fmt.Sprintf("工具调用: %s", name), []ToolCall{{Name: name, Arguments: arguments}}, sessionKey)
}

func (s *Service) call(parent context.Context, request *checkRequest) (*checkResponse, error) {
	timeout := DefaultTimeoutMs * time.Millisecond
	if s.timeoutMs > 0 {
		timeout = time.Duration(s.timeoutMs) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	payload, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, s.checkURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		httpRequest.Header.Set("Authorization", "Bearer "+s.token)
	}

	response, err := s.client.Do(httpRequest)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded && parent.Err() == nil {
			return nil, fmt.Errorf("security check timed out after %s", timeout)
		}
		return nil, err
	}
	defer response.Body.Close()
	if sp, ok := tracing.SpanFromContext(parent); ok {
		sp.SetStatusFromHTTPCode(response.StatusCode)
	}
	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", response.StatusCode, strings.TrimSpace(string(body)))
	}
	var reply checkResponse
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, &ProtocolError{Message: err.Error()}
	}
	if !validRiskLevel(reply.RiskLevel) {
		return nil, &ProtocolError{Message: "riskLevel must be one of pass|low|medium|high"}
	}
	return &reply, nil
}

// checkURL appends the check route, tolerating a trailing slash on the
// configured base URL.
func (s *Service) checkURL() string {
	if strings.HasSuffix(s.baseURL, "/") {
		return s.baseURL + "check"
	}
	return s.baseURL + "/check"
}
