package cli

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/MrWalshy/emdd/internal/config"
	"github.com/MrWalshy/emdd/plugins"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readFile(t *testing.T, root, name string) string {
	t.Helper()
	content, err := os.ReadFile(filepath.Join(root, name))
	require.NoError(t, err)
	return string(content)
}

func newSite(t *testing.T) (string, *config.Config) {
	t.Helper()
	root := t.TempDir()

	writeFile(t, root, ".gitignore", "# drafts are private\ndrafts/\n")
	writeFile(t, root, "templates/footer.emdd", "@template(name=\"footer\")\n```\n<footer>f</footer>\n```\n")
	writeFile(t, root, "src/index.emdd", "# Home\n@weave(name=\"footer\");")
	writeFile(t, root, "src/blog/post.emdd", "post")
	writeFile(t, root, "src/style.css", "body {}")
	writeFile(t, root, "src/notes.txt", "not copied")
	writeFile(t, root, "src/drafts/wip.emdd", "@weave(name=\"missing\");")

	cfg := &config.Config{
		Root:           root,
		Output:         config.OutputConfig{Type: "raw", Directory: "out"},
		Src:            config.SrcConfig{Directory: "src", Extension: ".emdd", CopyFilesOfType: []string{".css"}, Templates: []string{"templates"}},
		ContentPlugins: plugins.DefaultPlugins,
		Build:          config.BuildConfig{Workers: 2, Backup: true},
		Highlight:      "github",
	}
	require.NoError(t, cfg.Validate())
	return root, cfg
}

func outPaths(report *BuildReport) []string {
	var paths []string
	for _, d := range report.Documents {
		paths = append(paths, d.OutPath)
	}
	sort.Strings(paths)
	return paths
}

func TestBuild(t *testing.T) {
	root, cfg := newSite(t)
	writeFile(t, root, "out/stale.html", "old")

	report, err := NewProcessor(cfg, ProcessOptions{}).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(root, "out", "blog", "post.html"),
		filepath.Join(root, "out", "index.html"),
	}, outPaths(report))
	assert.Equal(t, []string{filepath.Join(root, "out", "style.css")}, report.Copied)

	assert.Equal(t, "<h1>Home</h1>\n<footer>f</footer>", readFile(t, root, "out/index.html"))
	assert.Equal(t, "<p>post</p>", readFile(t, root, "out/blog/post.html"))
	assert.Equal(t, "body {}", readFile(t, root, "out/style.css"))

	for _, missing := range []string{"out/stale.html", "out/notes.txt", "out/drafts", "out/footer.html"} {
		_, err := os.Stat(filepath.Join(root, missing))
		assert.True(t, os.IsNotExist(err), missing)
	}
}

func TestBuildCache(t *testing.T) {
	root, cfg := newSite(t)
	cfg.Build.Cache = ".emdd/cache.db"
	ctx := context.Background()

	skipped := func(report *BuildReport) map[string]bool {
		m := make(map[string]bool)
		for _, d := range report.Documents {
			rel, err := filepath.Rel(filepath.Join(root, "src"), d.Path)
			require.NoError(t, err)
			m[rel] = d.Skipped
		}
		return m
	}

	report, err := NewProcessor(cfg, ProcessOptions{}).Build(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"index.emdd": false, filepath.Join("blog", "post.emdd"): false}, skipped(report))

	report, err = NewProcessor(cfg, ProcessOptions{}).Build(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"index.emdd": true, filepath.Join("blog", "post.emdd"): true}, skipped(report))

	writeFile(t, root, "src/blog/post.emdd", "edited")
	report, err = NewProcessor(cfg, ProcessOptions{}).Build(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"index.emdd": true, filepath.Join("blog", "post.emdd"): false}, skipped(report))
	assert.Equal(t, "<p>edited</p>", readFile(t, root, "out/blog/post.html"))

	report, err = NewProcessor(cfg, ProcessOptions{Force: true}).Build(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"index.emdd": false, filepath.Join("blog", "post.emdd"): false}, skipped(report))
}

func TestBuildCacheInvalidation(t *testing.T) {
	tests := []struct {
		name    string
		change  func(t *testing.T, root string, cfg *config.Config)
		wantOut string
	}{
		{
			name: "template edited",
			change: func(t *testing.T, root string, _ *config.Config) {
				writeFile(t, root, "templates/footer.emdd", "@template(name=\"footer\")\n```\n<footer>CHANGED</footer>\n```\n")
			},
			wantOut: "<h1>Home</h1>\n<footer>CHANGED</footer>",
		},
		{
			name: "template added",
			change: func(t *testing.T, root string, _ *config.Config) {
				writeFile(t, root, "templates/zz.emdd", "@template(name=\"footer\")\n```\n<footer>later</footer>\n```\n")
			},
			wantOut: "<h1>Home</h1>\n<footer>later</footer>",
		},
		{
			name: "postamble changed",
			change: func(_ *testing.T, _ string, cfg *config.Config) {
				cfg.Output.Type = "html5"
				cfg.HTML.Postamble = "<!-- built -->"
			},
			wantOut: "<!-- built -->",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, cfg := newSite(t)
			cfg.Build.Cache = ".emdd/cache.db"
			ctx := context.Background()

			_, err := NewProcessor(cfg, ProcessOptions{}).Build(ctx)
			require.NoError(t, err)
			assert.Equal(t, "<h1>Home</h1>\n<footer>f</footer>", readFile(t, root, "out/index.html"))

			tt.change(t, root, cfg)

			report, err := NewProcessor(cfg, ProcessOptions{}).Build(ctx)
			require.NoError(t, err)
			for _, d := range report.Documents {
				assert.False(t, d.Skipped, d.Path)
			}
			assert.Contains(t, readFile(t, root, "out/index.html"), tt.wantOut)
		})
	}
}

func TestBuildErrors(t *testing.T) {
	t.Run("failing document", func(t *testing.T) {
		root, cfg := newSite(t)
		writeFile(t, root, "src/broken.emdd", "@weave(name=\"nope\");")

		_, err := NewProcessor(cfg, ProcessOptions{}).Build(context.Background())
		require.ErrorIs(t, err, plugins.ErrTemplateNotFound)
		assert.Contains(t, err.Error(), "broken.emdd")
	})

	t.Run("no sources", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "src/readme.txt", "x")
		cfg := &config.Config{
			Root:   root,
			Output: config.OutputConfig{Type: "raw", Directory: "out"},
			Src:    config.SrcConfig{Directory: "src", Extension: ".emdd"},
			Build:  config.BuildConfig{Workers: 1},
		}

		_, err := NewProcessor(cfg, ProcessOptions{}).Build(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no .emdd files found")
	})

	t.Run("output is source", func(t *testing.T) {
		_, cfg := newSite(t)
		cfg.Output.Directory = "src"

		_, err := NewProcessor(cfg, ProcessOptions{}).Build(context.Background())
		require.Error(t, err)
	})

	t.Run("cancelled", func(t *testing.T) {
		_, cfg := newSite(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewProcessor(cfg, ProcessOptions{}).Build(ctx)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestFindFiles(t *testing.T) {
	root, cfg := newSite(t)
	p := NewProcessor(cfg, ProcessOptions{})

	files, err := p.findFiles(filepath.Join(root, "src"), "**/*{.css,.txt}", p.ignoreMatcher())
	require.NoError(t, err)
	sort.Strings(files)

	assert.Equal(t, []string{
		filepath.Join(root, "src", "notes.txt"),
		filepath.Join(root, "src", "style.css"),
	}, files)
}
