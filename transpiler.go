package emdd

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sahilm/fuzzy"
)

// PreProcessor runs before argument extraction and content processing. A
// pre-processor sees every plugin block carrying its identifier and may
// consume it by returning keep=false.
type PreProcessor interface {
	Name() string
	PreProcess(b *Block) (keep bool, err error)
}

// ContentProcessor renders the plugin blocks carrying its identifier. It
// receives the whole block list and annotates matching blocks via SetOutput.
type ContentProcessor interface {
	Name() string
	Transform(blocks []*Block) ([]*Block, error)
}

// PostProcessor runs over the rendered document.
type PostProcessor interface {
	PostProcess(blocks []*RenderedBlock) ([]*RenderedBlock, error)
}

// Resetter is implemented by processors holding per-pass state. Reset is
// called at the start of every pass.
type Resetter interface {
	Reset()
}

type Transpiler struct {
	preProcessors  []PreProcessor
	processors     []ContentProcessor
	postProcessors []PostProcessor
	lookup         map[string]ContentProcessor
	markdown       MarkdownRenderer
	arguments      DocumentArguments
}

type Option func(*Transpiler)

func WithPreProcessors(pps ...PreProcessor) Option {
	return func(t *Transpiler) {
		t.preProcessors = append(t.preProcessors, pps...)
	}
}

// WithContentProcessors registers content processors. They run in
// registration order; a later processor with the same name replaces the
// earlier one in the identifier lookup.
func WithContentProcessors(cps ...ContentProcessor) Option {
	return func(t *Transpiler) {
		t.processors = append(t.processors, cps...)
	}
}

func WithPostProcessors(pps ...PostProcessor) Option {
	return func(t *Transpiler) {
		t.postProcessors = append(t.postProcessors, pps...)
	}
}

func WithMarkdownRenderer(r MarkdownRenderer) Option {
	return func(t *Transpiler) {
		t.markdown = r
	}
}

func NewTranspiler(opts ...Option) *Transpiler {
	t := &Transpiler{
		lookup:   make(map[string]ContentProcessor),
		markdown: NewGoldmarkRenderer(),
	}
	for _, opt := range opts {
		opt(t)
	}
	for _, cp := range t.processors {
		t.lookup[cp.Name()] = cp
	}
	return t
}

// Identifiers returns every plugin identifier the pipeline understands, for
// use by the lexer.
func (t *Transpiler) Identifiers() []string {
	seen := map[string]bool{}
	var ids []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	add(t.arguments.Name())
	for _, pp := range t.preProcessors {
		add(pp.Name())
	}
	for _, cp := range t.processors {
		add(cp.Name())
	}
	return ids
}

// Parse tokenizes and parses source using the pipeline's identifiers.
func (t *Transpiler) Parse(source string) ([]*Block, []Diagnostic) {
	return Parse(source, t.Identifiers())
}

// TranspileString parses and transpiles source. Parser recoveries are
// reported on the result, they are never errors.
func (t *Transpiler) TranspileString(source string, doc DocumentProcessor) (*Result, error) {
	blocks, diagnostics := t.Parse(source)
	res, err := t.Transpile(blocks, doc)
	if err != nil {
		return nil, err
	}
	res.Diagnostics = diagnostics
	return res, nil
}

// Transpile runs a single pass over blocks. When doc is nil the rendered
// blocks are joined with newlines.
func (t *Transpiler) Transpile(blocks []*Block, doc DocumentProcessor) (*Result, error) {
	t.reset(blocks)

	blocks, err := t.preProcess(blocks)
	if err != nil {
		return nil, err
	}

	blocks, args := t.arguments.Extract(blocks)

	if err := t.checkProcessors(blocks); err != nil {
		return nil, err
	}

	for _, cp := range t.processors {
		slog.Debug("running content processor", "processor", cp.Name())
		blocks, err = cp.Transform(blocks)
		if err != nil {
			return nil, wrapStage("content", cp.Name(), err)
		}
	}

	if err := t.checkRendered(blocks); err != nil {
		return nil, err
	}

	rendered, err := t.render(blocks)
	if err != nil {
		return nil, err
	}

	for _, pp := range t.postProcessors {
		rendered, err = pp.PostProcess(rendered)
		if err != nil {
			return nil, wrapStage("post", fmt.Sprintf("%T", pp), err)
		}
	}

	output := JoinRendered(rendered)
	if doc != nil {
		output, err = doc.Process(rendered, args)
		if err != nil {
			return nil, wrapStage("document", fmt.Sprintf("%T", doc), err)
		}
	}

	return &Result{
		Output: output,
		Blocks: rendered,
		Args:   args,
	}, nil
}

func (t *Transpiler) reset(blocks []*Block) {
	_ = Walk(blocks, func(b *Block) error {
		b.ResetOutput()
		return nil
	})

	var all []any
	for _, p := range t.preProcessors {
		all = append(all, p)
	}
	for _, p := range t.processors {
		all = append(all, p)
	}
	for _, p := range t.postProcessors {
		all = append(all, p)
	}
	for _, p := range all {
		if r, ok := p.(Resetter); ok {
			r.Reset()
		}
	}
}

func (t *Transpiler) preProcess(blocks []*Block) ([]*Block, error) {
	if len(t.preProcessors) == 0 {
		return blocks, nil
	}

	keep := func(b *Block) (bool, error) {
		for _, pp := range t.preProcessors {
			if pp.Name() != b.Identifier {
				continue
			}
			ok, err := pp.PreProcess(b)
			if err != nil {
				return false, BlockError("pre", b, err)
			}
			if !ok {
				slog.Debug("block consumed by pre-processor", "identifier", b.Identifier, "line", b.Line)
				return false, nil
			}
		}
		return true, nil
	}

	out := blocks[:0:0]
	for _, b := range blocks {
		if b.IsPlugin() {
			ok, err := keep(b)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, b)
			}
			continue
		}

		segments := b.Segments[:0:0]
		for _, seg := range b.Segments {
			if !seg.IsText() {
				ok, err := keep(seg.Block)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}
			}
			segments = append(segments, seg)
		}
		out = append(out, b.withSegments(segments))
	}
	return out, nil
}

// checkProcessors fails on the first plugin whose identifier has no content
// processor.
func (t *Transpiler) checkProcessors(blocks []*Block) error {
	return Walk(blocks, func(b *Block) error {
		if _, ok := t.lookup[b.Identifier]; ok {
			return nil
		}
		return BlockError("content", b, fmt.Errorf("%w for @%s%s", ErrNoProcessor, b.Identifier, t.suggest(b.Identifier)))
	})
}

func (t *Transpiler) checkRendered(blocks []*Block) error {
	return Walk(blocks, func(b *Block) error {
		if _, ok := b.Output(); ok {
			return nil
		}
		return BlockError("content", b, fmt.Errorf("processor %q produced no output", b.Identifier))
	})
}

func (t *Transpiler) suggest(identifier string) string {
	names := make([]string, 0, len(t.lookup))
	for name := range t.lookup {
		names = append(names, name)
	}
	matches := fuzzy.Find(identifier, names)
	if len(matches) == 0 {
		return ""
	}
	return fmt.Sprintf(" (did you mean @%s?)", matches[0].Str)
}

func (t *Transpiler) render(blocks []*Block) ([]*RenderedBlock, error) {
	rendered := make([]*RenderedBlock, 0, len(blocks))
	for _, b := range blocks {
		value, err := t.renderBlock(b)
		if err != nil {
			return nil, BlockError("render", b, err)
		}
		rendered = append(rendered, &RenderedBlock{Block: b, Value: value})
	}
	return rendered, nil
}

func (t *Transpiler) renderBlock(b *Block) (string, error) {
	if b.IsPlugin() {
		out, _ := b.Output()
		if b.Format() == OutputMarkdown {
			html, err := t.markdown.Render(out)
			return strings.TrimSpace(html), err
		}
		return strings.TrimSpace(out), nil
	}

	var sb strings.Builder
	for _, seg := range b.Segments {
		if seg.IsText() {
			sb.WriteString(seg.Text)
			continue
		}
		out, _ := seg.Block.Output()
		sb.WriteString(out)
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", nil
	}

	html, err := t.markdown.Render(sb.String())
	return strings.TrimSpace(html), err
}

func wrapStage(stage, name string, err error) error {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return err
	}
	return &PipelineError{Stage: stage, Err: fmt.Errorf("%s: %w", name, err)}
}
