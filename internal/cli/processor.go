package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/MrWalshy/emdd"
	"github.com/MrWalshy/emdd/internal/cache"
	"github.com/MrWalshy/emdd/internal/config"
	"github.com/MrWalshy/emdd/internal/transformer"
	"github.com/MrWalshy/emdd/plugins"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

const maxFiles = 10000

type BuildResult struct {
	Path     string
	OutPath  string
	Files    []string
	Skipped  bool
	Duration time.Duration
}

type ProcessResult struct {
	BuildResult
	Error error
}

type BuildReport struct {
	Documents []BuildResult
	Copied    []string
	Duration  time.Duration
}

type ProcessOptions struct {
	// If true, cached results are ignored and every document is rebuilt
	Force bool
	// If true, no backup will be created
	NoBackup bool
}

// Processor builds a site described by a config: documents under the source
// directory are rendered in parallel and static files are copied alongside.
type Processor struct {
	cfg  *config.Config
	opts ProcessOptions
}

func NewProcessor(cfg *config.Config, opts ProcessOptions) *Processor {
	return &Processor{cfg: cfg, opts: opts}
}

func (p *Processor) Build(ctx context.Context) (*BuildReport, error) {
	startTime := time.Now()
	srcDir := p.cfg.SourceDir()
	outDir := p.cfg.OutputDir()
	slog.Debug("starting site build", "src", srcDir, "out", outDir, "workers", p.cfg.Build.Workers)

	if srcDir == outDir {
		return nil, fmt.Errorf("output directory %s must differ from the source directory", outDir)
	}

	var bc *cache.BuildCache
	if path := p.cfg.CachePath(); path != "" {
		var err error
		bc, err = cache.Open(path)
		if err != nil {
			return nil, err
		}
		defer bc.Close()
		if p.opts.Force {
			if err := bc.Forget(ctx); err != nil {
				return nil, err
			}
		}
	} else {
		// without a cache every output is regenerated, so stale pages are dropped
		if err := os.RemoveAll(outDir); err != nil {
			return nil, fmt.Errorf("failed to clean output directory: %w", err)
		}
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	templates, templateSources, err := p.loadTemplates()
	if err != nil {
		return nil, err
	}
	inputs := p.renderInputs(templateSources)

	matcher := p.ignoreMatcher()

	copied, err := p.copyStatic(srcDir, outDir, matcher)
	if err != nil {
		return nil, err
	}

	files, err := p.findFiles(srcDir, "**/*"+p.cfg.Src.Extension, matcher)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s files found in %s", p.cfg.Src.Extension, srcDir)
	}
	slog.Debug("found files to process", "count", len(files), "duration", time.Since(startTime))

	jobs := make(chan string, len(files))
	results := make(chan ProcessResult, len(files))

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Build.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				if err := ctx.Err(); err != nil {
					results <- ProcessResult{BuildResult: BuildResult{Path: path}, Error: err}
					continue
				}
				results <- p.processFile(ctx, path, templates, inputs, bc)
			}
		}()
	}

	for _, file := range files {
		jobs <- file
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	var errs []error
	report := &BuildReport{Copied: copied}

	for result := range results {
		if result.Error != nil {
			errs = append(errs, fmt.Errorf("failed to process %s: %w", result.Path, result.Error))
			slog.Debug("failed to process file", "path", result.Path, "error", result.Error)
			continue
		}
		report.Documents = append(report.Documents, result.BuildResult)
		slog.Debug("file built", "source", result.Path, "output", result.OutPath, "skipped", result.Skipped)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("encountered %d errors during build: %w", len(errs), errors.Join(errs...))
	}

	report.Duration = time.Since(startTime)
	slog.Debug("build completed", "duration", report.Duration, "processed", len(report.Documents))
	return report, nil
}

func (p *Processor) processFile(ctx context.Context, path string, templates *plugins.TemplateEngine, inputs string, bc *cache.BuildCache) ProcessResult {
	startTime := time.Now()
	result := ProcessResult{BuildResult: BuildResult{Path: path}}

	content, err := os.ReadFile(path)
	if err != nil {
		result.Error = fmt.Errorf("error reading file: %w", err)
		return result
	}

	digest := cache.Digest(content, []byte(inputs))
	if bc != nil {
		fresh, err := bc.Fresh(ctx, path, digest)
		if err != nil {
			slog.Warn("cache lookup failed, rebuilding", "path", path, "error", err)
		} else if fresh {
			out, err := emdd.ResolveOutputPath(path, p.cfg.SourceDir(), p.cfg.OutputDir())
			if err == nil {
				result.OutPath = out
				result.Skipped = true
				return result
			}
		}
	}

	// each document gets its own pipeline so script state never crosses documents
	t, err := transformer.NewTransformer(transformer.TransformOptions{
		Plugins:        p.cfg.ContentPlugins,
		DocumentType:   p.cfg.Output.Type,
		Preamble:       p.cfg.HTML.Preamble,
		Postamble:      p.cfg.HTML.Postamble,
		HighlightStyle: p.cfg.Highlight,
		Templates:      templates,
		SourceRoot:     p.cfg.SourceDir(),
		OutputDir:      p.cfg.OutputDir(),
		NoBackup:       p.opts.NoBackup || !p.cfg.Build.Backup,
	})
	if err != nil {
		result.Error = err
		return result
	}

	out, err := t.Transform(transformer.Source{Content: bytes.NewReader(content), Path: path})
	if err != nil {
		result.Error = err
		return result
	}

	for _, d := range out.Diagnostics {
		slog.Warn("malformed plugin rendered as text", "path", path, "line", d.Line, "column", d.Column, "message", d.Message)
	}

	if bc != nil {
		if err := bc.Store(ctx, path, digest, out.Path); err != nil {
			slog.Warn("failed to update build cache", "path", path, "error", err)
		}
	}

	result.OutPath = out.Path
	result.Files = out.Files
	result.Duration = time.Since(startTime)
	return result
}

// loadTemplates reads every source document in the configured template
// directories into a single seed store. The sources are returned in load order.
func (p *Processor) loadTemplates() (*plugins.TemplateEngine, []string, error) {
	var sources []string
	for _, dir := range p.cfg.TemplateDirs() {
		files, err := p.findFiles(dir, "**/*"+p.cfg.Src.Extension, p.ignoreMatcher())
		if err != nil {
			return nil, nil, fmt.Errorf("finding templates: %w", err)
		}
		for _, f := range files {
			content, err := os.ReadFile(f)
			if err != nil {
				return nil, nil, fmt.Errorf("reading template %s: %w", f, err)
			}
			sources = append(sources, string(content))
		}
	}

	templates, err := plugins.LoadTemplates(sources...)
	if err != nil {
		return nil, nil, err
	}
	slog.Debug("loaded templates", "count", len(templates.Names()))
	return templates, sources, nil
}

// renderInputs digests everything besides a document's own text that shapes
// its output. A change to any of it invalidates every cached document.
func (p *Processor) renderInputs(templateSources []string) string {
	parts := [][]byte{
		[]byte(emdd.Version),
		[]byte(p.cfg.Output.Type),
		[]byte(p.cfg.OutputDir()),
		[]byte(strings.Join(p.cfg.ContentPlugins, ",")),
		[]byte(p.cfg.HTML.Preamble),
		[]byte(p.cfg.HTML.Postamble),
		[]byte(p.cfg.Highlight),
	}
	for _, src := range templateSources {
		parts = append(parts, []byte(src))
	}
	return cache.Digest(parts...)
}

// ignoreMatcher builds a matcher from the .gitignore next to the config file.
// The .git directory is always ignored.
func (p *Processor) ignoreMatcher() gitignore.Matcher {
	patterns := []gitignore.Pattern{gitignore.ParsePattern(".git/", nil)}

	if data, err := os.ReadFile(filepath.Join(p.cfg.Root, ".gitignore")); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if line = strings.TrimSpace(line); line != "" && !strings.HasPrefix(line, "#") {
				patterns = append(patterns, gitignore.ParsePattern(line, nil))
			}
		}
	}

	return gitignore.NewMatcher(patterns)
}

// findFiles walks root and returns files matching the doublestar pattern,
// skipping anything the matcher ignores, the output directory and template
// directories.
func (p *Processor) findFiles(root, pattern string, matcher gitignore.Matcher) ([]string, error) {
	var files []string
	skip := map[string]bool{p.cfg.OutputDir(): true}
	for _, d := range p.cfg.TemplateDirs() {
		skip[d] = true
	}

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && path != root && skip[path] {
			return filepath.SkipDir
		}

		if matcher != nil && p.ignored(matcher, path, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		matched, err := doublestar.Match(pattern, filepath.ToSlash(rel))
		if err != nil {
			return fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if !matched {
			return nil
		}

		if len(files) >= maxFiles {
			return fmt.Errorf("max files limit reached (%d)", maxFiles)
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

func (p *Processor) ignored(matcher gitignore.Matcher, path string, isDir bool) bool {
	rel, err := filepath.Rel(p.cfg.Root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	return matcher.Match(strings.Split(rel, string(os.PathSeparator)), isDir)
}

// copyStatic copies files with the configured extensions from srcDir to the
// same relative location under outDir.
func (p *Processor) copyStatic(srcDir, outDir string, matcher gitignore.Matcher) ([]string, error) {
	exts := p.cfg.Src.CopyFilesOfType
	if len(exts) == 0 {
		return nil, nil
	}

	pattern := "**/*" + exts[0]
	if len(exts) > 1 {
		pattern = "**/*{" + strings.Join(exts, ",") + "}"
	}

	files, err := p.findFiles(srcDir, pattern, matcher)
	if err != nil {
		return nil, fmt.Errorf("finding static files: %w", err)
	}

	var copied []string
	for _, f := range files {
		rel, err := filepath.Rel(srcDir, f)
		if err != nil {
			return nil, err
		}
		dst := filepath.Join(outDir, rel)
		if err := copyFile(f, dst); err != nil {
			return nil, fmt.Errorf("copying %s: %w", rel, err)
		}
		copied = append(copied, dst)
	}

	slog.Debug("copied static files", "count", len(copied))
	return copied, nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
