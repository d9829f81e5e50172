package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gatekit/gatekit/policy"
)

// DefaultTimeoutMs bounds a classifier round trip when the config does not
// set one.
const DefaultTimeoutMs = 5000

// Config controls the content classifier client.
type Config struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// BaseURL is the classifier endpoint; requests POST directly to it.
	BaseURL string `yaml:"baseURL" json:"baseURL"`
	// Token authenticates with the classifier; it travels in the request body.
	Token string `yaml:"token" json:"token,omitempty"`
	// TokenURL optionally points at a scy secret resource the token is
	// resolved from at config load time.
	TokenURL  string `yaml:"tokenURL" json:"tokenURL,omitempty"`
	TimeoutMs int    `yaml:"timeoutMs" json:"timeoutMs,omitempty"`
	// Labels overrides the action of individual policy labels.
	Labels map[policy.Label]policy.Override `yaml:"labels" json:"labels,omitempty"`
}

// Timeout returns the per request deadline.
func (c *Config) Timeout() time.Duration {
	if c.TimeoutMs > 0 {
		return time.Duration(c.TimeoutMs) * time.Millisecond
	}
	return DefaultTimeoutMs * time.Millisecond
}

// Fingerprint identifies a config for caching; two configs with the same
// fingerprint build identical services.
func (c *Config) Fingerprint() string {
	var labels string
	if len(c.Labels) > 0 {
		data, _ := json.Marshal(c.Labels)
		labels = string(data)
	}
	return fmt.Sprintf("%t|%s|%s|%d|%s", c.Enabled, c.BaseURL, c.Token, c.TimeoutMs, labels)
}
