package emdd

import (
	"errors"
	"fmt"
	"strings"
)

type BlockKind int

const (
	// BlockMarkdown is a run of prose, possibly with inline plugins nested in it.
	BlockMarkdown BlockKind = iota
	// BlockPlugin is an @id(...) invocation at the start of a line with a fenced body.
	BlockPlugin
	// BlockInlinePlugin is an @id(...); invocation without a body.
	BlockInlinePlugin
)

func (k BlockKind) String() string {
	switch k {
	case BlockMarkdown:
		return "markdown"
	case BlockPlugin:
		return "plugin"
	case BlockInlinePlugin:
		return "inline"
	default:
		return fmt.Sprintf("BlockKind(%d)", int(k))
	}
}

// OutputFormat says how the rendering stage treats a plugin's output.
type OutputFormat int

const (
	// OutputRaw output is emitted as-is.
	OutputRaw OutputFormat = iota
	// OutputMarkdown output is passed through the markdown renderer.
	OutputMarkdown
)

var ErrOutputAlreadySet = errors.New("block output already set")

type Parameter struct {
	Name  string
	Value string
}

// Segment is one element of a markdown block: either a text run or a nested
// inline plugin.
type Segment struct {
	Text  string
	Block *Block
}

func (s Segment) IsText() bool {
	return s.Block == nil
}

type Block struct {
	Kind BlockKind

	// Plugin forms only
	Identifier string
	Parameters []Parameter
	Body       string

	// Markdown form only
	Segments []Segment

	// Raw is the exact source text consumed by a plugin invocation.
	Raw    string
	Line   int
	Column int
	Char   int

	output    string
	hasOutput bool
	format    OutputFormat
}

// withSegments returns b when segments is unchanged, otherwise a copy of b
// holding segments. The parsed tree is left intact so it can be transpiled
// again.
func (b *Block) withSegments(segments []Segment) *Block {
	if len(segments) == len(b.Segments) {
		return b
	}
	c := *b
	c.Segments = segments
	return &c
}

func (b *Block) IsPlugin() bool {
	return b.Kind == BlockPlugin || b.Kind == BlockInlinePlugin
}

// Param returns the value of the first parameter with the given name.
func (b *Block) Param(name string) (string, bool) {
	for _, p := range b.Parameters {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// ParamOr returns the named parameter or def when it is absent.
func (b *Block) ParamOr(name, def string) string {
	if v, ok := b.Param(name); ok {
		return v
	}
	return def
}

// SetOutput records the rendered value of a plugin block. A block's output can
// be written once per pipeline pass.
func (b *Block) SetOutput(value string, format OutputFormat) error {
	if b.hasOutput {
		return fmt.Errorf("@%s at line %d: %w", b.Identifier, b.Line, ErrOutputAlreadySet)
	}
	b.output = value
	b.format = format
	b.hasOutput = true
	return nil
}

func (b *Block) Output() (string, bool) {
	return b.output, b.hasOutput
}

func (b *Block) Format() OutputFormat {
	return b.format
}

// ResetOutput clears a previously recorded output so the block can take part
// in a new pass.
func (b *Block) ResetOutput() {
	b.output = ""
	b.hasOutput = false
	b.format = OutputRaw
}

// Text returns the source text of a block: the concatenated segments of a
// markdown block, or the raw invocation of a plugin.
func (b *Block) Text() string {
	if b.IsPlugin() {
		return b.Raw
	}
	var sb strings.Builder
	for _, seg := range b.Segments {
		if seg.IsText() {
			sb.WriteString(seg.Text)
		} else {
			sb.WriteString(seg.Block.Raw)
		}
	}
	return sb.String()
}

// Walk calls fn for every plugin block in blocks, including inline plugins
// nested in markdown blocks, in document order.
func Walk(blocks []*Block, fn func(*Block) error) error {
	for _, b := range blocks {
		if b.IsPlugin() {
			if err := fn(b); err != nil {
				return err
			}
			continue
		}
		for _, seg := range b.Segments {
			if seg.IsText() {
				continue
			}
			if err := fn(seg.Block); err != nil {
				return err
			}
		}
	}
	return nil
}

// WalkIdentifier is Walk restricted to plugins with the given identifier.
func WalkIdentifier(blocks []*Block, identifier string, fn func(*Block) error) error {
	return Walk(blocks, func(b *Block) error {
		if b.Identifier != identifier {
			return nil
		}
		return fn(b)
	})
}
