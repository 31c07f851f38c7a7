// Package cache records which sources a site build has already rendered so
// unchanged documents can be skipped.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS builds (
    source TEXT PRIMARY KEY,
    digest TEXT NOT NULL,
    output TEXT NOT NULL,
    built_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Entry is the last successful build of a source.
type Entry struct {
	Source  string
	Digest  string
	Output  string
	BuiltAt time.Time
}

// BuildCache is safe for concurrent use by the build workers.
type BuildCache struct {
	db *sql.DB
}

func Open(path string) (*BuildCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize cache schema: %w", err)
	}

	return &BuildCache{db: db}, nil
}

// Digest hashes the inputs a build depends on. Parts are length prefixed so
// moving bytes from one part to the next changes the digest.
func Digest(parts ...[]byte) string {
	h := sha256.New()
	var size [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(size[:], uint64(len(p)))
		h.Write(size[:])
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *BuildCache) Lookup(ctx context.Context, source string) (*Entry, error) {
	e := Entry{Source: source}
	err := c.db.QueryRowContext(ctx,
		`SELECT digest, output, built_at FROM builds WHERE source = ?`, source,
	).Scan(&e.Digest, &e.Output, &e.BuiltAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", source, err)
	}
	return &e, nil
}

// Fresh reports whether source was last built with the given digest and its
// output still exists.
func (c *BuildCache) Fresh(ctx context.Context, source, digest string) (bool, error) {
	e, err := c.Lookup(ctx, source)
	if err != nil || e == nil {
		return false, err
	}
	if e.Digest != digest {
		return false, nil
	}
	if _, err := os.Stat(e.Output); err != nil {
		return false, nil
	}
	return true, nil
}

func (c *BuildCache) Store(ctx context.Context, source, digest, output string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO builds (source, digest, output, built_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(source) DO UPDATE SET digest = excluded.digest, output = excluded.output, built_at = excluded.built_at`,
		source, digest, output, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("store %s: %w", source, err)
	}
	return nil
}

// Forget drops every entry, forcing a full rebuild.
func (c *BuildCache) Forget(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM builds`); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

func (c *BuildCache) Close() error {
	return c.db.Close()
}
