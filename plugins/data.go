package plugins

import (
	"encoding/json"
	"fmt"

	"github.com/MrWalshy/emdd"
	"gopkg.in/yaml.v3"
)

// DataProcessor registers static data in the scope so templates can iterate
// it with argsSource and scripts can read it with source(name).
//
//	@data(name="authors")
//	```
//	- name: Ada
//	- name: Grace
//	```
//
// The body is YAML unless format="json". Data blocks render nothing.
type DataProcessor struct {
	scope *Scope
}

func NewDataProcessor(scope *Scope) *DataProcessor {
	return &DataProcessor{scope: scope}
}

func (p *DataProcessor) Name() string {
	return "data"
}

func (p *DataProcessor) Reset() {
	p.scope.Reset()
}

func (p *DataProcessor) Transform(blocks []*emdd.Block) ([]*emdd.Block, error) {
	err := emdd.WalkIdentifier(blocks, p.Name(), func(b *emdd.Block) error {
		name, ok := b.Param("name")
		if !ok || name == "" {
			return emdd.BlockError("content", b, fmt.Errorf("%w: @data requires a name", ErrInvalidInvocation))
		}

		source := b.Body
		if b.Kind == emdd.BlockInlinePlugin {
			source = b.ParamOr("value", "")
		}

		value, err := decodeData(source, b.ParamOr("format", "yaml"))
		if err != nil {
			return emdd.BlockError("content", b, err)
		}

		p.scope.Define(name, func() (any, error) {
			return value, nil
		})
		return b.SetOutput("", emdd.OutputRaw)
	})
	return blocks, err
}

func decodeData(source, format string) (any, error) {
	var value any
	switch format {
	case "yaml", "yml":
		if err := yaml.Unmarshal([]byte(source), &value); err != nil {
			return nil, fmt.Errorf("decoding yaml data: %w", err)
		}
	case "json":
		if err := json.Unmarshal([]byte(source), &value); err != nil {
			return nil, fmt.Errorf("decoding json data: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown data format %q", ErrInvalidInvocation, format)
	}
	return value, nil
}
