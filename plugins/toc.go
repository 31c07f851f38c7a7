package plugins

import (
	"fmt"
	"strings"

	"github.com/MrWalshy/emdd"
)

const TocIdentifier = "toc"

// TocProcessor marks where a table of contents goes. The list itself is
// filled in by TocPostProcessor once every heading has been rendered.
type TocProcessor struct{}

func NewTocProcessor() *TocProcessor {
	return &TocProcessor{}
}

func (p *TocProcessor) Name() string {
	return TocIdentifier
}

func (p *TocProcessor) Transform(blocks []*emdd.Block) ([]*emdd.Block, error) {
	err := emdd.WalkIdentifier(blocks, p.Name(), func(b *emdd.Block) error {
		return b.SetOutput("", emdd.OutputRaw)
	})
	return blocks, err
}

// TocPostProcessor builds a nested list of the document's headings and places
// it in every empty top-level toc block. A toc block may leave out heading
// levels with exclude, e.g. exclude="h4 h5 h6".
type TocPostProcessor struct{}

func NewTocPostProcessor() *TocPostProcessor {
	return &TocPostProcessor{}
}

func (p *TocPostProcessor) PostProcess(blocks []*emdd.RenderedBlock) ([]*emdd.RenderedBlock, error) {
	var targets []*emdd.RenderedBlock
	for _, b := range blocks {
		if b.Identifier() == TocIdentifier && b.Value == "" {
			targets = append(targets, b)
		}
	}
	if len(targets) == 0 {
		return blocks, nil
	}

	var headings []Heading
	for _, b := range blocks {
		headings = append(headings, ExtractHeadings(b.Value)...)
	}

	for _, target := range targets {
		excluded := make(map[string]bool)
		for _, tag := range strings.Fields(target.Block.ParamOr("exclude", "")) {
			excluded[tag] = true
		}

		var included []Heading
		for _, h := range headings {
			if !excluded[h.Tag] {
				included = append(included, h)
			}
		}
		target.Value = BuildToc(included)
	}

	return blocks, nil
}

// BuildToc renders headings as nested unordered lists, one nesting level per
// increase in heading level.
func BuildToc(headings []Heading) string {
	var sb strings.Builder
	sb.WriteString(`<ul class="toc">` + "\n")

	var levels []int
	for i, h := range headings {
		switch {
		case i == 0:
			levels = append(levels, h.Level)
		case h.Level > levels[len(levels)-1]:
			sb.WriteString("\n<ul>\n")
			levels = append(levels, h.Level)
		default:
			sb.WriteString("</li>\n")
			for len(levels) > 1 && h.Level <= levels[len(levels)-2] {
				levels = levels[:len(levels)-1]
				sb.WriteString("</ul>\n</li>\n")
			}
			if h.Level < levels[len(levels)-1] {
				levels[len(levels)-1] = h.Level
			}
		}
		fmt.Fprintf(&sb, `<li class="%s-toc">%s`, h.Tag, h.Text)
	}

	if len(headings) > 0 {
		sb.WriteString("</li>\n")
		for len(levels) > 1 {
			levels = levels[:len(levels)-1]
			sb.WriteString("</ul>\n</li>\n")
		}
	}

	sb.WriteString("</ul>")
	return sb.String()
}
