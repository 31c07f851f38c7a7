package emdd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBackupOf(t *testing.T) {
	tests := []struct {
		name       string
		existing   string
		readOnly   bool
		wantBackup bool
		wantErr    bool
	}{
		{name: "missing file is not backed up"},
		{name: "existing file is copied", existing: "<h1>old</h1>", wantBackup: true},
		{name: "unwritable directory", existing: "<h1>old</h1>", readOnly: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.readOnly && os.Geteuid() == 0 {
				t.Skip("directory permissions are not enforced for root")
			}

			dir := t.TempDir()
			path := filepath.Join(dir, "index.html")
			if tt.existing != "" {
				require.NoError(t, os.WriteFile(path, []byte(tt.existing), 0644))
			}
			if tt.readOnly {
				require.NoError(t, os.Chmod(dir, 0555))
				t.Cleanup(func() { os.Chmod(dir, 0755) })
			}

			got, err := NewBackupManager().CreateBackupOf(path)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			if !tt.wantBackup {
				assert.Empty(t, got)
				return
			}
			assert.True(t, strings.HasPrefix(got, path+"."), got)
			assert.True(t, strings.HasSuffix(got, ".bak"), got)

			content, err := os.ReadFile(got)
			require.NoError(t, err)
			assert.Equal(t, tt.existing, string(content))
		})
	}
}

func TestBackupManagerPrunesOldBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main"), 0644))
	require.NoError(t, os.WriteFile(path+".notes.bak", []byte("unrelated"), 0644))

	bm := NewBackupManager()
	bm.Keep = 2

	var created []string
	for i := 0; i < 4; i++ {
		bk, err := bm.CreateBackupOf(path)
		require.NoError(t, err)
		created = append(created, bk)
		time.Sleep(2 * time.Millisecond)
	}

	backups, err := bm.Backups(path)
	require.NoError(t, err)
	assert.Equal(t, created[2:], backups)

	_, err = os.Stat(path + ".notes.bak")
	assert.NoError(t, err, "files that are not timestamped backups are left alone")
}
