package audit

import (
	"fmt"

	"github.com/gatekit/gatekit/policy"
)

// Result is the outcome of classifying a single text.  Success reports
// whether the classifier actually answered; a failed call still yields a
// usable Result with the permissive defaults and Error set.
type Result struct {
	Success     bool             `json:"success"`
	Label       policy.Label     `json:"label"`
	Confidence  float64          `json:"confidence"`
	RiskLevel   policy.RiskLevel `json:"riskLevel"`
	Action      policy.Action    `json:"action"`
	Description string           `json:"description"`
	RequestID   string           `json:"requestId,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// APIError reports a well-formed classifier response that signals failure.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("audit api error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("audit api error %d", e.Code)
}

// auditRequest is the wire form of a classification request.
type auditRequest struct {
	Token string   `json:"token"`
	Texts []string `json:"texts"`
}

// textScore is a single per-text verdict inside a classifier response.
type textScore struct {
	Text           string       `json:"text"`
	MainLabel      policy.Label `json:"mainLabel"`
	MainConfidence float64      `json:"mainConfidence"`
}

// auditResponse is the classifier response envelope.
type auditResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Success   bool        `json:"success"`
		RequestID string      `json:"requestId"`
		Data      []textScore `json:"data"`
	} `json:"data"`
	RequestID string `json:"requestId"`
}

// FormatResult renders a result for display in the given language ("en" or
// "zh", defaulting to "zh").
func FormatResult(result Result, lang string) string {
	if !result.Success {
		if lang == "en" {
			return fmt.Sprintf("Audit failed: %s", result.Error)
		}
		return fmt.Sprintf("审计失败: %s", result.Error)
	}
	var action string
	switch result.Action {
	case policy.ActionAllow:
		action = "放行"
		if lang == "en" {
			action = "Allowed"
		}
	case policy.ActionConfirm:
		action = "需确认"
		if lang == "en" {
			action = "Needs confirmation"
		}
	case policy.ActionBlock:
		action = "已阻止"
		if lang == "en" {
			action = "Blocked"
		}
	}
	return fmt.Sprintf("[%s] %s", result.Description, action)
}
