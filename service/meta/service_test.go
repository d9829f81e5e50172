package meta

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
)

func TestServiceLoad(t *testing.T) {
	ctx := context.Background()
	fs := afs.New()

	doc := []byte("audit:\n  enabled: true\n  token: ${env.META_TEST_TOKEN}\n")
	err := fs.Upload(ctx, "mem://localhost/meta/config.yaml", file.DefaultFileOsMode, bytes.NewBuffer(doc))
	assert.NoError(t, err)

	os.Setenv("META_TEST_TOKEN", "sk-test")
	defer os.Unsetenv("META_TEST_TOKEN")

	type auditDoc struct {
		Audit struct {
			Enabled bool   `yaml:"enabled"`
			Token   string `yaml:"token"`
		} `yaml:"audit"`
	}

	var target auditDoc
	svc := New(fs, "mem://localhost/meta")
	assert.NoError(t, svc.Load(ctx, "config.yaml", &target))
	assert.True(t, target.Audit.Enabled)
	assert.Equal(t, "sk-test", target.Audit.Token)

	// absolute location bypasses the base URL
	var absolute auditDoc
	assert.NoError(t, svc.Load(ctx, "mem://localhost/meta/config.yaml", &absolute))
	assert.True(t, absolute.Audit.Enabled)

	// missing document surfaces an error
	assert.Error(t, svc.Load(ctx, "missing.yaml", &target))
}
