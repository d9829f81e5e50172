package gatekit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/scy"

	"github.com/gatekit/gatekit/service/audit"
	"github.com/gatekit/gatekit/service/meta"
	"github.com/gatekit/gatekit/service/secgate"
)

// Config is a serialisable representation of the gateway configuration.  It
// can be populated from YAML or JSON; the zero-value keeps both remote
// checks off and lets every call through.
type Config struct {
	Audit    audit.Config   `json:"audit" yaml:"audit"`
	Gateway  secgate.Config `json:"gateway" yaml:"gateway"`
	Approval ApprovalConfig `json:"approval" yaml:"approval"`
}

// ApprovalConfig controls the human-in-the-loop wait.
type ApprovalConfig struct {
	TimeoutMs int `json:"timeoutMs" yaml:"timeoutMs"`
}

// Timeout returns how long a confirm-rated item waits for a verdict.
func (c *ApprovalConfig) Timeout() time.Duration {
	if c.TimeoutMs > 0 {
		return time.Duration(c.TimeoutMs) * time.Millisecond
	}
	return 30 * time.Second
}

// DefaultConfig returns a Config populated with package defaults.
func DefaultConfig() *Config {
	return &Config{
		Audit:    audit.Config{TimeoutMs: audit.DefaultTimeoutMs},
		Gateway:  secgate.Config{TimeoutMs: secgate.DefaultTimeoutMs},
		Approval: ApprovalConfig{TimeoutMs: 30000},
	}
}

// Validate returns an error describing invalid settings, or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Audit.TimeoutMs < 0 {
		return fmt.Errorf("audit.timeoutMs must be >= 0")
	}
	if c.Gateway.TimeoutMs < 0 {
		return fmt.Errorf("gateway.timeoutMs must be >= 0")
	}
	if c.Approval.TimeoutMs < 0 {
		return fmt.Errorf("approval.timeoutMs must be >= 0")
	}
	if c.Audit.Enabled && c.Audit.BaseURL == "" {
		return fmt.Errorf("audit.baseURL is required when audit is enabled")
	}
	return nil
}

// LoadConfig reads a config document from a local path or afs URL, expands
// ${env.KEY} expressions and resolves secret token references.
func LoadConfig(ctx context.Context, location string, fsOptions ...storage.Option) (*Config, error) {
	config := DefaultConfig()
	metaService := meta.New(afs.New(), "", fsOptions...)
	if err := metaService.Load(ctx, location, config); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", location, err)
	}
	if err := ResolveSecrets(ctx, config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ResolveSecrets fills in tokens referenced by URL.  A literal token always
// wins over its URL counterpart.
func ResolveSecrets(ctx context.Context, config *Config) error {
	secrets := scy.New()
	if config.Audit.Token == "" && config.Audit.TokenURL != "" {
		token, err := loadSecret(ctx, secrets, config.Audit.TokenURL)
		if err != nil {
			return fmt.Errorf("failed to resolve audit token: %w", err)
		}
		config.Audit.Token = token
	}
	if config.Gateway.Token == "" && config.Gateway.TokenURL != "" {
		token, err := loadSecret(ctx, secrets, config.Gateway.TokenURL)
		if err != nil {
			return fmt.Errorf("failed to resolve gateway token: %w", err)
		}
		config.Gateway.Token = token
	}
	return nil
}

func loadSecret(ctx context.Context, secrets *scy.Service, URL string) (string, error) {
	resource := scy.NewResource(nil, URL, "")
	secret, err := secrets.Load(ctx, resource)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(secret.String()), nil
}
