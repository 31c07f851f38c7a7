package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MrWalshy/emdd/plugins"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "emdd.yaml", `
output:
  type: raw
  directory: public
src:
  directory: pages
  copyFilesOfType: [".css"]
  templates: ["partials"]
contentPlugins: ["js", "toc"]
html:
  preamble: "<nav></nav>"
build:
  workers: 2
  cache: .emdd/cache.db
  backup: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	root := filepath.Dir(path)
	assert.Equal(t, root, cfg.Root)
	assert.Equal(t, "raw", cfg.Output.Type)
	assert.Equal(t, filepath.Join(root, "public"), cfg.OutputDir())
	assert.Equal(t, filepath.Join(root, "pages"), cfg.SourceDir())
	assert.Equal(t, []string{".css"}, cfg.Src.CopyFilesOfType)
	assert.Equal(t, []string{filepath.Join(root, "partials")}, cfg.TemplateDirs())
	assert.Equal(t, []string{"js", "toc"}, cfg.ContentPlugins)
	assert.Equal(t, "<nav></nav>", cfg.HTML.Preamble)
	assert.Equal(t, 2, cfg.Build.Workers)
	assert.Equal(t, filepath.Join(root, ".emdd", "cache.db"), cfg.CachePath())
	assert.False(t, cfg.Build.Backup)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "emdd.json", `{"output": {"directory": "/srv/site"}}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "html5", cfg.Output.Type)
	assert.Equal(t, "/srv/site", cfg.OutputDir())
	assert.Equal(t, ".emdd", cfg.Src.Extension)
	assert.Equal(t, plugins.DefaultPlugins, cfg.ContentPlugins)
	assert.Equal(t, 4, cfg.Build.Workers)
	assert.True(t, cfg.Build.Backup)
	assert.Equal(t, "", cfg.CachePath())
}

func TestLoadEnvironmentOverride(t *testing.T) {
	t.Setenv("EMDD_OUTPUT_TYPE", "raw")
	path := writeConfig(t, "emdd.yaml", "output:\n  type: html5\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "raw", cfg.Output.Type)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantIs  error
	}{
		{
			name:    "unknown output type",
			content: "output:\n  type: pdf\n",
			wantIs:  ErrInvalidConfig,
		},
		{
			name:    "unknown plugin",
			content: "contentPlugins: [\"js\", \"mermaid\"]\n",
			wantIs:  ErrInvalidConfig,
		},
		{
			name:    "extension without dot",
			content: "src:\n  extension: emdd\n",
			wantIs:  ErrInvalidConfig,
		},
		{
			name:    "no workers",
			content: "build:\n  workers: 0\n",
			wantIs:  ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "emdd.yaml", tt.content))
			require.ErrorIs(t, err, tt.wantIs)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
