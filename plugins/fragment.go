package plugins

import (
	"bytes"
	"fmt"

	"github.com/MrWalshy/emdd"
	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"golang.org/x/net/html"
)

const (
	FileIdentifier     = "file"
	FragmentIdentifier = "fragment"

	FragmentTypeStructure = "structure"
	FragmentTypeFragment  = "fragment"
)

// FileProcessor validates file declarations. They render nothing; the file
// itself is produced by FilePostProcessor.
//
//	@file(name="main.go" dir="cmd/app" id="app");
type FileProcessor struct{}

func NewFileProcessor() *FileProcessor {
	return &FileProcessor{}
}

func (p *FileProcessor) Name() string {
	return FileIdentifier
}

func (p *FileProcessor) Transform(blocks []*emdd.Block) ([]*emdd.Block, error) {
	err := emdd.WalkIdentifier(blocks, p.Name(), func(b *emdd.Block) error {
		if _, ok := b.Param("name"); !ok {
			return emdd.BlockError("content", b, fmt.Errorf("%w: @file requires a name", ErrInvalidInvocation))
		}
		return b.SetOutput("", emdd.OutputRaw)
	})
	return blocks, err
}

// FragmentProcessor displays literate programming fragments as code listings.
// echo="off" hides a fragment; lang="go" highlights it.
type FragmentProcessor struct {
	style     string
	formatter *chromahtml.Formatter
}

func NewFragmentProcessor(style string) *FragmentProcessor {
	return &FragmentProcessor{
		style:     style,
		formatter: chromahtml.New(chromahtml.WithClasses(true)),
	}
}

func (p *FragmentProcessor) Name() string {
	return FragmentIdentifier
}

func (p *FragmentProcessor) Transform(blocks []*emdd.Block) ([]*emdd.Block, error) {
	err := emdd.WalkIdentifier(blocks, p.Name(), func(b *emdd.Block) error {
		if name, ok := b.Param("name"); !ok || name == "" {
			return emdd.BlockError("content", b, fmt.Errorf("%w: @fragment requires a name", ErrInvalidInvocation))
		}
		if b.ParamOr("echo", "on") == "off" {
			return b.SetOutput("", emdd.OutputRaw)
		}

		out, err := p.render(b.Body, b.ParamOr("lang", ""))
		if err != nil {
			return emdd.BlockError("content", b, err)
		}
		return b.SetOutput(out, emdd.OutputRaw)
	})
	return blocks, err
}

func (p *FragmentProcessor) render(code, lang string) (string, error) {
	if lang == "" {
		return "<pre><code>" + html.EscapeString(code) + "</code></pre>", nil
	}

	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get(p.style)
	if style == nil {
		style = styles.Fallback
	}

	it, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", fmt.Errorf("tokenising %s fragment: %w", lang, err)
	}

	var buf bytes.Buffer
	if err := p.formatter.Format(&buf, style, it); err != nil {
		return "", fmt.Errorf("highlighting %s fragment: %w", lang, err)
	}
	return buf.String(), nil
}
