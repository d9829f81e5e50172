package audit

import "sync"

// Provider hands out classifier services built from live config.  The built
// service is cached by config fingerprint so that repeated calls with an
// unchanged config reuse one instance, while an edited config transparently
// produces a fresh one.
type Provider struct {
	mu          sync.Mutex
	options     []Option
	service     *Service
	fingerprint string
}

// NewProvider creates a provider; options apply to every service it builds.
func NewProvider(options ...Option) *Provider {
	return &Provider{options: options}
}

// Acquire returns a service for the config, or nil when the config does not
// describe a usable classifier (disabled, or missing endpoint or token).
func (p *Provider) Acquire(config Config) *Service {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !config.Enabled || config.BaseURL == "" || config.Token == "" {
		p.service = nil
		p.fingerprint = ""
		return nil
	}
	fingerprint := config.Fingerprint()
	if p.service == nil || p.fingerprint != fingerprint {
		p.service = New(config, p.options...)
		p.fingerprint = fingerprint
	}
	return p.service
}
