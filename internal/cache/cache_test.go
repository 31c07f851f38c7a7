package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T) (*BuildCache, string) {
	t.Helper()
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "state", "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, dir
}

func TestBuildCache(t *testing.T) {
	ctx := context.Background()
	c, dir := openTestCache(t)

	out := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(out, []byte("<p>x</p>"), 0644))

	digest := Digest([]byte("# Home"))

	fresh, err := c.Fresh(ctx, "index.emdd", digest)
	require.NoError(t, err)
	assert.False(t, fresh, "unknown source")

	require.NoError(t, c.Store(ctx, "index.emdd", digest, out))

	fresh, err = c.Fresh(ctx, "index.emdd", digest)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = c.Fresh(ctx, "index.emdd", Digest([]byte("# Changed")))
	require.NoError(t, err)
	assert.False(t, fresh, "changed content")

	require.NoError(t, os.Remove(out))
	fresh, err = c.Fresh(ctx, "index.emdd", digest)
	require.NoError(t, err)
	assert.False(t, fresh, "missing output")
}

func TestBuildCacheStoreReplaces(t *testing.T) {
	ctx := context.Background()
	c, _ := openTestCache(t)

	require.NoError(t, c.Store(ctx, "a.emdd", Digest([]byte("one")), "a.html"))
	require.NoError(t, c.Store(ctx, "a.emdd", Digest([]byte("two")), "b.html"))

	e, err := c.Lookup(ctx, "a.emdd")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, Digest([]byte("two")), e.Digest)
	assert.Equal(t, "b.html", e.Output)
}

func TestBuildCacheForget(t *testing.T) {
	ctx := context.Background()
	c, _ := openTestCache(t)

	require.NoError(t, c.Store(ctx, "a.emdd", Digest([]byte("one")), "a.html"))
	require.NoError(t, c.Forget(ctx))

	e, err := c.Lookup(ctx, "a.emdd")
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestDigest(t *testing.T) {
	tests := []struct {
		name  string
		a, b  [][]byte
		equal bool
	}{
		{name: "same input", a: [][]byte{[]byte("abc")}, b: [][]byte{[]byte("abc")}, equal: true},
		{name: "different content", a: [][]byte{[]byte("abc")}, b: [][]byte{[]byte("abd")}},
		{name: "bytes moved between parts", a: [][]byte{[]byte("ab"), []byte("c")}, b: [][]byte{[]byte("a"), []byte("bc")}},
		{name: "extra empty part", a: [][]byte{[]byte("abc")}, b: [][]byte{[]byte("abc"), nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := Digest(tt.a...), Digest(tt.b...)
			assert.Len(t, a, 64)
			assert.Equal(t, tt.equal, a == b)
		})
	}
}
