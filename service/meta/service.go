// Package meta loads configuration documents for the gateway.  Documents are
// fetched through afs (local files, mem://, object storage), have their
// ${env.KEY} expressions expanded and are decoded from YAML or JSON into the
// supplied target.
package meta

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	"gopkg.in/yaml.v3"
)

// Service loads and decodes configuration documents.
type Service struct {
	fs        afs.Service
	baseURL   string
	fsOptions []storage.Option
}

// New creates a meta service.  baseURL is optional; when set, relative
// locations are resolved against it.
func New(fs afs.Service, baseURL string, options ...storage.Option) *Service {
	return &Service{fs: fs, baseURL: baseURL, fsOptions: options}
}

// Load fetches the document at location, expands ${env.KEY} expressions and
// decodes it into target (YAML; JSON is a YAML subset).
func (s *Service) Load(ctx context.Context, location string, target interface{}) error {
	URL := location
	if s.baseURL != "" && url.IsRelative(location) {
		URL = url.Join(s.baseURL, location)
	}
	data, err := s.fs.DownloadWithURL(ctx, URL, s.fsOptions...)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", URL, err)
	}
	expanded := expandEnvExpr(string(data))
	if err := yaml.Unmarshal([]byte(expanded), target); err != nil {
		return fmt.Errorf("failed to decode %s: %w", URL, err)
	}
	return nil
}
