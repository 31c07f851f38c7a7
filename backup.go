package emdd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const backupTimeFormat = "20060102_150405.000"

// BackupManager keeps timestamped copies of generated files before they are
// overwritten, so a rebuild never silently destroys hand edits to a tangled
// source file or a rendered page.
type BackupManager struct {
	// Keep is the number of backups retained per file. Zero keeps all of them.
	Keep int
}

func NewBackupManager() *BackupManager {
	return &BackupManager{}
}

// CreateBackupOf copies path to a sibling backup file if path exists.
//
// Returns the path to the backup file, or an empty string if no backup was created
func (bm *BackupManager) CreateBackupOf(path string) (backupPath string, err error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("checking file existence: %w", err)
	}

	backupPath = fmt.Sprintf("%s.%s.bak", path, time.Now().Format(backupTimeFormat))

	if err := copyFile(path, backupPath); err != nil {
		return "", fmt.Errorf("creating backup: %w", err)
	}

	slog.Debug("created backup", "backup", backupPath, "original", path)

	if bm.Keep > 0 {
		if err := bm.prune(path); err != nil {
			slog.Warn("failed to prune old backups", "path", path, "error", err)
		}
	}

	return backupPath, nil
}

// Backups lists the existing backups of path, oldest first.
func (bm *BackupManager) Backups(path string) ([]string, error) {
	matches, err := filepath.Glob(path + ".*.bak")
	if err != nil {
		return nil, fmt.Errorf("listing backups: %w", err)
	}
	var backups []string
	for _, m := range matches {
		stamp := strings.TrimSuffix(strings.TrimPrefix(m, path+"."), ".bak")
		if _, err := time.Parse(backupTimeFormat, stamp); err == nil {
			backups = append(backups, m)
		}
	}
	sort.Strings(backups)
	return backups, nil
}

func (bm *BackupManager) prune(path string) error {
	backups, err := bm.Backups(path)
	if err != nil {
		return err
	}
	for len(backups) > bm.Keep {
		if err := os.Remove(backups[0]); err != nil {
			return fmt.Errorf("removing backup: %w", err)
		}
		backups = backups[1:]
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating destination file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying file: %w", err)
	}

	return nil
}
