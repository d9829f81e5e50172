package approval

// Decision is a human verdict on a pending approval request.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionBlock Decision = "block"
)

// ParseDecision normalises a textual decision, reporting whether it is valid.
func ParseDecision(value string) (Decision, bool) {
	switch Decision(value) {
	case DecisionAllow, DecisionBlock:
		return Decision(value), true
	}
	return "", false
}

// Payload carries the audited content and its classification so that a human
// reviewer can decide with full context.
type Payload struct {
	// UserMessage is the triggering user input; empty for tool-level requests.
	UserMessage string `json:"userMessage"`
	// AIResponse is the audited content, either a model response or a tool
	// call summary.
	AIResponse  string  `json:"aiResponse"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
	RiskLevel   string  `json:"riskLevel"`
	Confidence  float64 `json:"confidence"`
	// ToolName and ToolArgs are set only for tool execution approvals.
	ToolName   string         `json:"toolName,omitempty"`
	ToolArgs   map[string]any `json:"toolArgs,omitempty"`
	SessionKey string         `json:"sessionKey,omitempty"`
}

// Record is a single approval request with its lifecycle timestamps.  All
// timestamps are unix milliseconds.
type Record struct {
	ID           string   `json:"id"`
	Request      Payload  `json:"request"`
	CreatedAtMs  int64    `json:"createdAtMs"`
	ExpiresAtMs  int64    `json:"expiresAtMs"`
	ResolvedAtMs int64    `json:"resolvedAtMs,omitempty"`
	Decision     Decision `json:"decision,omitempty"`
}

// Resolved reports whether a verdict has been recorded.
func (r *Record) Resolved() bool {
	return r.Decision != ""
}

// Event is published on the registry queue whenever an approval request is
// created, decided or expires, so that UIs and operators can subscribe.
type Event struct {
	Topic   string            `json:"topic"`
	Record  *Record           `json:"record"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Event topics.
const (
	TopicRequestCreated  = "approval.request"
	TopicDecisionCreated = "approval.decision"
	TopicRequestExpired  = "approval.expired"
)
