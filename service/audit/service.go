// Package audit implements the content classifier client.  Texts are scored
// by a remote moderation API and mapped through the policy table to a risk
// level and an action.  The client fails open: when the classifier cannot be
// reached or misbehaves, every text comes back with a permissive synthetic
// result carrying the error, and the caller decides what to do with it.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gatekit/gatekit/logging"
	"github.com/gatekit/gatekit/policy"
	"github.com/gatekit/gatekit/tracing"
)

// Service classifies texts against the remote moderation API.
type Service struct {
	config Config
	table  *policy.Table
	client *http.Client
	logger logging.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithHTTPClient sets the HTTP client used for classifier calls.
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

// New creates a classifier client.  Label overrides from the config are
// folded into the policy table.
func New(config Config, options ...Option) *Service {
	ret := &Service{
		config: config,
		table:  policy.NewTable(config.Labels),
		client: &http.Client{},
		logger: logging.Nop(),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Config returns the config the service was built from.
func (s *Service) Config() Config {
	return s.config
}

// Table exposes the policy table so callers can inspect or adjust label
// actions at runtime.
func (s *Service) Table() *policy.Table {
	return s.table
}

// IsEnabled reports whether real classification happens.  A service missing
// endpoint or token behaves as disabled regardless of the enabled flag.
func (s *Service) IsEnabled() bool {
	return s.config.Enabled && s.config.BaseURL != "" && s.config.Token != ""
}

// AuditText classifies a single text.
func (s *Service) AuditText(ctx context.Context, text string) (Result, error) {
	results, err := s.AuditTexts(ctx, []string{text})
	if err != nil {
		return Result{}, err
	}
	return results[0], nil
}

// AuditTexts classifies a batch of texts, returning one result per input in
// order.  A non-nil error is returned only when ctx was cancelled; every
// other failure mode yields synthetic permissive results with Error set.
func (s *Service) AuditTexts(ctx context.Context, texts []string) ([]Result, error) {
	if !s.IsEnabled() {
		return s.syntheticResults(texts, true, 1.0, "Audit disabled", ""), nil
	}
	ctx, span := tracing.StartSpan(ctx, "audit.texts", tracing.SpanKindClient)
	span.WithAttributes(map[string]string{"audit.batch": fmt.Sprintf("%d", len(texts))})
	results, err := s.call(ctx, texts)
	tracing.EndSpan(span, err)
	if err == nil {
		return results, nil
	}
	if ctx.Err() != nil && ctx.Err() != context.DeadlineExceeded {
		return nil, ctx.Err()
	}
	s.logger.Warn("content audit failed: %v", err)
	return s.syntheticResults(texts, false, 0, "Audit failed", err.Error()), nil
}

func (s *Service) call(parent context.Context, texts []string) ([]Result, error) {
	ctx, cancel := context.WithTimeout(parent, s.config.Timeout())
	defer cancel()

	payload, err := json.Marshal(&auditRequest{Token: s.config.Token, Texts: texts})
	if err != nil {
		return nil, err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := s.client.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()
	if sp, ok := tracing.SpanFromContext(parent); ok {
		sp.SetStatusFromHTTPCode(response.StatusCode)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", response.StatusCode, http.StatusText(response.StatusCode))
	}
	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}
	var reply auditResponse
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("invalid audit response: %w", err)
	}
	if reply.Code != http.StatusOK || !reply.Data.Success {
		return nil, &APIError{Code: reply.Code, Message: reply.Message}
	}
	if len(reply.Data.Data) != len(texts) {
		return nil, fmt.Errorf("audit response mismatch: sent %d texts, got %d results", len(texts), len(reply.Data.Data))
	}

	results := make([]Result, 0, len(reply.Data.Data))
	for _, score := range reply.Data.Data {
		entry := s.table.Resolve(score.MainLabel)
		results = append(results, Result{
			Success:     true,
			Label:       score.MainLabel,
			Confidence:  score.MainConfidence,
			RiskLevel:   entry.RiskLevel,
			Action:      entry.Action,
			Description: entry.DescriptionZh,
			RequestID:   reply.RequestID,
		})
	}
	return results, nil
}

func (s *Service) syntheticResults(texts []string, success bool, confidence float64, description, errMessage string) []Result {
	results := make([]Result, 0, len(texts))
	for range texts {
		results = append(results, Result{
			Success:     success,
			Label:       policy.LabelNormal,
			Confidence:  confidence,
			RiskLevel:   policy.RiskLow,
			Action:      policy.ActionAllow,
			Description: description,
			Error:       errMessage,
		})
	}
	return results
}
