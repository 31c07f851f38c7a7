package plugins

import "github.com/MrWalshy/emdd"

// LiteralProcessor emits its body, or its value parameter in the inline form,
// without any processing.
type LiteralProcessor struct{}

func NewLiteralProcessor() *LiteralProcessor {
	return &LiteralProcessor{}
}

func (p *LiteralProcessor) Name() string {
	return "lit"
}

func (p *LiteralProcessor) Transform(blocks []*emdd.Block) ([]*emdd.Block, error) {
	err := emdd.WalkIdentifier(blocks, p.Name(), func(b *emdd.Block) error {
		out := b.Body
		if b.Kind == emdd.BlockInlinePlugin {
			out = b.ParamOr("value", "")
		}
		return b.SetOutput(out, emdd.OutputRaw)
	})
	return blocks, err
}
