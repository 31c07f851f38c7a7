package emdd

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// upper renders the value parameter in upper case.
type upper struct {
	seen   []string
	resets int
	format OutputFormat
}

func (u *upper) Name() string { return "up" }

func (u *upper) Reset() { u.resets++ }

func (u *upper) Transform(blocks []*Block) ([]*Block, error) {
	err := Walk(blocks, func(b *Block) error {
		u.seen = append(u.seen, b.Identifier)
		if b.Identifier != u.Name() {
			return nil
		}
		return b.SetOutput(strings.ToUpper(b.ParamOr("value", b.Body)), u.format)
	})
	return blocks, err
}

// swallow consumes every block it is offered.
type swallow struct {
	name string
	got  []*Block
}

func (s *swallow) Name() string { return s.name }

func (s *swallow) PreProcess(b *Block) (bool, error) {
	s.got = append(s.got, b)
	return false, nil
}

type lazy struct{}

func (lazy) Name() string                                { return "lazy" }
func (lazy) Transform(blocks []*Block) ([]*Block, error) { return blocks, nil }

type recordPost struct {
	values []string
}

func (r *recordPost) PostProcess(blocks []*RenderedBlock) ([]*RenderedBlock, error) {
	for _, b := range blocks {
		r.values = append(r.values, b.Value)
	}
	return blocks, nil
}

func TestTranspileMarkdownOnly(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "heading",
			source: "# Example h1",
			want:   "<h1>Example h1</h1>",
		},
		{
			name:   "heading and paragraph",
			source: "# Example h1\nThis is a paragraph",
			want:   "<h1>Example h1</h1>\n<p>This is a paragraph</p>",
		},
		{
			name:   "whitespace only",
			source: "\n\n  \n",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewTranspiler().TranspileString(tt.source, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Output)
		})
	}
}

func TestTranspileInlineOutputSplicedIntoMarkdown(t *testing.T) {
	up := &upper{}
	tr := NewTranspiler(WithContentProcessors(up))

	res, err := tr.TranspileString(`Hello @up(value="world"); again`, nil)
	require.NoError(t, err)
	assert.Equal(t, "<p>Hello WORLD again</p>", res.Output)
	assert.Equal(t, 1, up.resets)
}

func TestTranspileBlockOutputFormats(t *testing.T) {
	src := "@up()\n```\n*x*\n```"

	raw, err := NewTranspiler(WithContentProcessors(&upper{})).TranspileString(src, nil)
	require.NoError(t, err)
	assert.Equal(t, "*X*", raw.Output)

	md, err := NewTranspiler(WithContentProcessors(&upper{format: OutputMarkdown})).TranspileString(src, nil)
	require.NoError(t, err)
	assert.Equal(t, "<p><em>X</em></p>", md.Output)
}

func TestTranspileDocumentArguments(t *testing.T) {
	src := "@docArgs()\n```\n\"title\": \"first\", \"lang\": \"en\"\n```\n# Heading\n@docArgs()\n```\n\"title\": \"second\"\n```\n"

	res, err := NewTranspiler().TranspileString(src, nil)
	require.NoError(t, err)

	assert.Equal(t, "second", res.Args["title"])
	assert.Equal(t, "en", res.Args["lang"])
	assert.Equal(t, "<h1>Heading</h1>", res.Output)
	for _, b := range res.Blocks {
		assert.NotEqual(t, DocumentArgumentsIdentifier, b.Identifier())
	}
}

func TestTranspileInlineDocumentArguments(t *testing.T) {
	res, err := NewTranspiler().TranspileString(`Some text @docArgs(title="inline"); here`, nil)
	require.NoError(t, err)

	assert.Equal(t, "inline", res.Args["title"])
	assert.Equal(t, "<p>Some text  here</p>", res.Output)
}

func TestTranspileMalformedDocumentArguments(t *testing.T) {
	res, err := NewTranspiler().TranspileString("@docArgs()\n```\ntitle: nope\n```\n", nil)
	require.NoError(t, err)
	assert.Empty(t, res.Args)
	assert.Equal(t, "", res.Output)
}

func TestTranspileMissingProcessorIsFatal(t *testing.T) {
	blocks, _ := Parse("@tco();", []string{"tco"})

	_, err := NewTranspiler(WithContentProcessors(&upper{})).Transpile(blocks, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoProcessor))

	var pe *PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "tco", pe.Identifier)
	assert.Equal(t, 1, pe.Line)
}

func TestTranspileProcessorWithoutOutputIsFatal(t *testing.T) {
	_, err := NewTranspiler(WithContentProcessors(lazy{})).TranspileString("@lazy();", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "produced no output")
}

func TestPreProcessorConsumesBlocks(t *testing.T) {
	pre := &swallow{name: "template"}
	up := &upper{}
	tr := NewTranspiler(WithPreProcessors(pre), WithContentProcessors(up))

	src := "@template(name=\"t\")\n```\n<b>hi</b>\n```\ntext @template(name=\"u\"); more\n@up(value=\"x\");"
	res, err := tr.TranspileString(src, nil)
	require.NoError(t, err)

	assert.Len(t, pre.got, 2)
	assert.NotContains(t, up.seen, "template")
	assert.NotContains(t, res.Output, "hi")
	assert.Equal(t, "<p>text  more</p>\nX", res.Output)
}

func TestPostProcessorsSeeRenderedValues(t *testing.T) {
	post := &recordPost{}
	tr := NewTranspiler(WithContentProcessors(&upper{}), WithPostProcessors(post))

	_, err := tr.TranspileString("# A\n@up(value=\"b\");", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"<h1>A</h1>", "B"}, post.values)
}

func TestTranspileTwiceOverSameBlocks(t *testing.T) {
	tests := []struct {
		name      string
		source    string
		wantArgs  map[string]any
		swallowed int
	}{
		{
			name:     "plugin",
			source:   `@up(value="x");`,
			wantArgs: map[string]any{},
		},
		{
			name:     "nested docArgs",
			source:   `hi @docArgs(title="x"); there @up(value="y");`,
			wantArgs: map[string]any{"title": "x"},
		},
		{
			name:      "nested block consumed by a pre-processor",
			source:    `hi @sw(name="t"); there @up(value="y");`,
			wantArgs:  map[string]any{},
			swallowed: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sw := &swallow{name: "sw"}
			tr := NewTranspiler(WithPreProcessors(sw), WithContentProcessors(&upper{}))
			blocks, _ := tr.Parse(tt.source)

			first, err := tr.Transpile(blocks, nil)
			require.NoError(t, err)
			second, err := tr.Transpile(blocks, nil)
			require.NoError(t, err)

			assert.Equal(t, first.Output, second.Output)
			assert.Equal(t, tt.wantArgs, first.Args)
			assert.Equal(t, tt.wantArgs, second.Args)
			assert.Len(t, sw.got, 2*tt.swallowed, "the consumed block is seen on every pass")
		})
	}
}

func TestSetOutputIsWriteOnce(t *testing.T) {
	b := &Block{Kind: BlockPlugin, Identifier: "x"}
	require.NoError(t, b.SetOutput("a", OutputRaw))

	err := b.SetOutput("b", OutputRaw)
	require.ErrorIs(t, err, ErrOutputAlreadySet)

	out, ok := b.Output()
	assert.True(t, ok)
	assert.Equal(t, "a", out)
}

func TestIdentifiers(t *testing.T) {
	tr := NewTranspiler(
		WithPreProcessors(&swallow{name: "template"}),
		WithContentProcessors(&upper{}, lazy{}),
	)
	assert.Equal(t, []string{"docArgs", "template", "up", "lazy"}, tr.Identifiers())
}
