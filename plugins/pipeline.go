package plugins

import (
	"errors"
	"fmt"

	"github.com/MrWalshy/emdd"
)

var (
	ErrUnknownPlugin       = errors.New("unknown content plugin")
	ErrUnknownDocumentType = errors.New("unknown output type")
)

// DefaultPlugins is the content plugin order used when none is configured.
// Data producers come before weave so argsSource can see them.
var DefaultPlugins = []string{"data", "js", "lit", "weave", "toc", "fragment", "file"}

var knownPlugins = map[string]bool{
	"js": true, "data": true, "lit": true, "weave": true, "toc": true, "fragment": true, "file": true,
}

var documentTypes = []string{"html5", "raw"}

func KnownPlugin(name string) bool {
	return knownPlugins[name]
}

func KnownDocumentType(kind string) bool {
	for _, t := range documentTypes {
		if t == kind {
			return true
		}
	}
	return false
}

type PipelineConfig struct {
	// Plugins lists content plugin identifiers in registration order.
	Plugins []string
	// Templates are made available to every pass.
	Templates *TemplateEngine
	// Sink receives woven files. Files are discarded when nil.
	Sink FileSink
	// HighlightStyle is the chroma style used for fragments.
	HighlightStyle string
}

// NewPipeline builds a fresh transpiler with its own scope and template store.
// Pipelines must not be shared between concurrent passes.
func NewPipeline(cfg PipelineConfig) (*emdd.Transpiler, error) {
	names := cfg.Plugins
	if len(names) == 0 {
		names = DefaultPlugins
	}

	scope := NewScope()
	engine := NewTemplateEngine(scope)
	if cfg.Templates != nil {
		engine.Seed(cfg.Templates)
	}
	sink := cfg.Sink
	if sink == nil {
		sink = &MemorySink{}
	}

	var (
		pre     []emdd.PreProcessor
		content []emdd.ContentProcessor
		post    []emdd.PostProcessor
	)

	for _, name := range names {
		switch name {
		case "js":
			content = append(content, NewScriptProcessor(scope))
		case "data":
			content = append(content, NewDataProcessor(scope))
		case "lit":
			content = append(content, NewLiteralProcessor())
		case "weave":
			pre = append(pre, NewTemplatePreProcessor(engine))
			content = append(content, NewWeaveProcessor(engine))
		case "toc":
			content = append(content, NewTocProcessor())
			post = append(post, NewTocPostProcessor())
		case "fragment":
			content = append(content, NewFragmentProcessor(cfg.HighlightStyle))
		case "file":
			content = append(content, NewFileProcessor())
			post = append(post, NewFilePostProcessor(sink))
		default:
			return nil, fmt.Errorf("%w: %q%s", ErrUnknownPlugin, name, didYouMean(name, DefaultPlugins))
		}
	}

	return emdd.NewTranspiler(
		emdd.WithPreProcessors(pre...),
		emdd.WithContentProcessors(content...),
		emdd.WithPostProcessors(post...),
	), nil
}

// NewDocumentProcessor returns the document processor for an output type.
func NewDocumentProcessor(kind, preamble, postamble string) (emdd.DocumentProcessor, error) {
	switch kind {
	case "html5":
		return NewHTMLDocument(preamble, postamble), nil
	case "raw":
		return RawDocument{}, nil
	default:
		return nil, fmt.Errorf("%w: %q%s", ErrUnknownDocumentType, kind, didYouMean(kind, documentTypes))
	}
}

// LoadTemplates parses sources and collects the templates they define.
// Everything else in the sources is ignored.
func LoadTemplates(sources ...string) (*TemplateEngine, error) {
	engine := NewTemplateEngine(NewScope())
	pre := NewTemplatePreProcessor(engine)
	for _, src := range sources {
		blocks, _ := emdd.Parse(src, []string{pre.Name()})
		err := emdd.WalkIdentifier(blocks, pre.Name(), func(b *emdd.Block) error {
			_, err := pre.PreProcess(b)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("loading templates: %w", err)
		}
	}
	return engine, nil
}
