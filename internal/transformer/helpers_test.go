package transformer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type testDir struct {
	path string
	t    *testing.T
}

func newTestDir(t *testing.T) *testDir {
	t.Helper()
	return &testDir{path: t.TempDir(), t: t}
}

func (td *testDir) createFile(name, content string) string {
	td.t.Helper()

	path := filepath.Join(td.path, name)
	require.NoError(td.t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(td.t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func (td *testDir) readFile(name string) string {
	td.t.Helper()

	content, err := os.ReadFile(filepath.Join(td.path, name))
	require.NoError(td.t, err)
	return string(content)
}

func (td *testDir) backups(name string) []string {
	td.t.Helper()

	matches, err := filepath.Glob(filepath.Join(td.path, name) + ".*.bak")
	require.NoError(td.t, err)
	return matches
}

func source(t *testing.T, path string) Source {
	t.Helper()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return Source{Content: strings.NewReader(string(content)), Path: path}
}
