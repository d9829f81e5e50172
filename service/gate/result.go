package gate

// Status classifies the terminal outcome of a gated tool call.
type Status string

const (
	StatusOK      Status = "ok"
	StatusBlocked Status = "blocked"
	StatusError   Status = "error"
)

// Call identifies a single tool invocation flowing through the gate.
type Call struct {
	// ID is the caller-assigned tool call identifier; the blocked cache and
	// approval IDs key off it.
	ID     string         `json:"id"`
	Tool   string         `json:"tool"`
	Method string         `json:"method"`
	Args   map[string]any `json:"args,omitempty"`
	// SessionKey correlates the call with a conversation.
	SessionKey string `json:"sessionKey,omitempty"`
	// SkipAudit bypasses classification for surfaces where a human already
	// sees the content.
	SkipAudit bool `json:"skipAudit,omitempty"`
}

// Result is the structured outcome handed back to the model.  Failures are
// data, not errors: a blocked or failed tool call still produces a Result so
// the conversation can continue.
type Result struct {
	Status   Status `json:"status"`
	Tool     string `json:"tool"`
	Message  string `json:"message,omitempty"`
	CanRetry bool   `json:"canRetry"`
	Output   any    `json:"output,omitempty"`
	Error    string `json:"error,omitempty"`
}
