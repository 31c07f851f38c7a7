package transformer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MrWalshy/emdd"
	"github.com/MrWalshy/emdd/plugins"
	diff "github.com/shogoki/gotextdiff"
)

var ErrPathOutsideSource = errors.New("woven file path leaves the source directory")

type TransformOptions struct {
	// Content plugins in registration order, plugins.DefaultPlugins when empty
	Plugins []string
	// Output document type, html5 or raw
	DocumentType string
	Preamble     string
	Postamble    string
	// Chroma style for highlighted fragments
	HighlightStyle string
	// Templates available to every document
	Templates *plugins.TemplateEngine
	// If set, outputs mirror SourceRoot under OutputDir instead of sitting next to the source
	OutputDir  string
	SourceRoot string
	// If true, no backup will be created
	NoBackup bool
	// If true, files woven with @file are not written
	NoTangle bool
}

func (o *TransformOptions) Pretty() string {
	plugs := o.Plugins
	if len(plugs) == 0 {
		plugs = plugins.DefaultPlugins
	}
	return fmt.Sprintf("type=%s plugins=%s backup=%s tangle=%s",
		o.documentType(),
		strings.Join(plugs, ","),
		boolToText(!o.NoBackup),
		boolToText(!o.NoTangle))
}

func (o *TransformOptions) documentType() string {
	if o.DocumentType == "" {
		return "html5"
	}
	return o.DocumentType
}

func boolToText(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// Transformer renders documents and writes their outputs. A Transformer owns a
// single pipeline and must not be used from more than one goroutine.
type Transformer struct {
	pipeline *emdd.Transpiler
	doc      emdd.DocumentProcessor
	woven    *plugins.MemorySink
	backup   *emdd.BackupManager

	opts TransformOptions
}

func NewTransformer(opts TransformOptions) (*Transformer, error) {
	woven := &plugins.MemorySink{}
	pipeline, err := plugins.NewPipeline(plugins.PipelineConfig{
		Plugins:        opts.Plugins,
		Templates:      opts.Templates,
		Sink:           woven,
		HighlightStyle: opts.HighlightStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("building pipeline: %w", err)
	}

	doc, err := plugins.NewDocumentProcessor(opts.documentType(), opts.Preamble, opts.Postamble)
	if err != nil {
		return nil, err
	}

	slog.Debug("created transformer", "options", opts.Pretty())
	return &Transformer{
		pipeline: pipeline,
		doc:      doc,
		woven:    woven,
		backup:   emdd.NewBackupManager(),
		opts:     opts,
	}, nil
}

type Source struct {
	Content io.Reader
	// Absolute path of the document
	Path string
}

// Rendered is the outcome of a pass that has not touched the filesystem.
type Rendered struct {
	*emdd.Result
	// Files woven from the document's fragments, relative to the source directory
	Files []plugins.OutputFile
}

// Output describes what Transform wrote.
type Output struct {
	Path        string
	Files       []string
	Diagnostics []emdd.Diagnostic
}

// Parse splits text into blocks using the identifiers of the configured
// plugins.
func (t *Transformer) Parse(text string) ([]*emdd.Block, []emdd.Diagnostic) {
	return t.pipeline.Parse(text)
}

// Render runs the pipeline over input without writing anything.
func (t *Transformer) Render(input Source) (*Rendered, error) {
	content, err := io.ReadAll(input.Content)
	if err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}

	t.woven.Files = nil
	res, err := t.pipeline.TranspileString(string(content), t.doc)
	if err != nil {
		return nil, err
	}

	for _, d := range res.Diagnostics {
		slog.Debug("recovered from malformed plugin", "path", input.Path, "line", d.Line, "column", d.Column, "message", d.Message)
	}

	return &Rendered{Result: res, Files: t.woven.Files}, nil
}

// Transform renders input, writes the document output and any woven files,
// backing up files it overwrites.
func (t *Transformer) Transform(input Source) (*Output, error) {
	slog.Debug("transforming document", "path", input.Path)
	if input.Path == "" {
		return nil, fmt.Errorf("source path is required for transformation")
	}

	r, err := t.Render(input)
	if err != nil {
		return nil, err
	}

	outPath, err := emdd.ResolveOutputPath(input.Path, t.opts.SourceRoot, t.opts.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output path error: %w", err)
	}

	srcDir := filepath.Dir(input.Path)
	if !t.opts.NoTangle {
		for _, f := range r.Files {
			if _, err := TanglePath(srcDir, f); err != nil {
				return nil, err
			}
		}
	}

	if err := t.write(outPath, r.Output); err != nil {
		return nil, err
	}

	out := &Output{Path: outPath, Diagnostics: r.Diagnostics}
	if t.opts.NoTangle {
		return out, nil
	}

	out.Files, err = t.Tangle(srcDir, r.Files)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TanglePath resolves where f is written relative to dir. Paths that climb out
// of dir are rejected.
func TanglePath(dir string, f plugins.OutputFile) (string, error) {
	path := filepath.Join(dir, f.Path())
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathOutsideSource, f.Path())
	}
	return path, nil
}

// Tangle writes woven files relative to dir and returns the written paths.
// Nothing is written if any file would land outside dir.
func (t *Transformer) Tangle(dir string, files []plugins.OutputFile) ([]string, error) {
	paths := make([]string, len(files))
	for i, f := range files {
		path, err := TanglePath(dir, f)
		if err != nil {
			return nil, err
		}
		paths[i] = path
	}

	written := make([]string, 0, len(files))
	for i, f := range files {
		path := paths[i]
		if err := t.write(path, f.Content); err != nil {
			return written, fmt.Errorf("tangle %s: %w", f.Path(), err)
		}
		written = append(written, path)
	}
	return written, nil
}

func (t *Transformer) write(path, content string) error {
	if !t.opts.NoBackup {
		bkPath, err := t.backup.CreateBackupOf(path)
		if err != nil {
			return fmt.Errorf("backup error: %w", err)
		}
		if bkPath != "" {
			slog.Info("file already existed. Created backup", "backup", bkPath, "original", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// Diff returns a unified diff between the file at path and content, or "" if
// they match. A missing file diffs against empty content.
func Diff(path, content string) (string, error) {
	old, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	if string(old) == content {
		return "", nil
	}
	return string(diff.Diff(path, old, path, []byte(content))), nil
}
