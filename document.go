package emdd

import "strings"

// RenderedBlock pairs a top-level block with its rendered HTML.
type RenderedBlock struct {
	Block *Block
	Value string
}

// Identifier returns the plugin identifier of the source block, or "" for
// markdown.
func (r *RenderedBlock) Identifier() string {
	if r.Block == nil || !r.Block.IsPlugin() {
		return ""
	}
	return r.Block.Identifier
}

// DocumentProcessor assembles the rendered blocks of a document, along with
// the merged document arguments, into the final output.
type DocumentProcessor interface {
	Process(blocks []*RenderedBlock, args map[string]any) (string, error)
}

// Result is the outcome of a single pipeline pass.
type Result struct {
	Output      string
	Blocks      []*RenderedBlock
	Args        map[string]any
	Diagnostics []Diagnostic
}

// JoinRendered joins the non-empty rendered values with newlines.
func JoinRendered(blocks []*RenderedBlock) string {
	values := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Value != "" {
			values = append(values, b.Value)
		}
	}
	return strings.Join(values, "\n")
}
