package plugins

import (
	"fmt"
	"log/slog"

	"github.com/MrWalshy/emdd"
	"github.com/dop251/goja"
)

// ScriptProcessor runs JavaScript blocks.
//
// Every script is the body of a function taking a single argument, context,
// an object shared by all scripts of the pass. The return value becomes the
// block output and is rendered as markdown.
//
//	@js(name="users" defer="true")   register without running
//	@js(call="users");               run a registered function
//	@js(value="return 1+1;");        inline script
//
// Scripts can read data sources registered in the scope with source(name).
type ScriptProcessor struct {
	scope   *Scope
	vm      *goja.Runtime
	context *goja.Object
}

func NewScriptProcessor(scope *Scope) *ScriptProcessor {
	p := &ScriptProcessor{scope: scope}
	p.Reset()
	return p
}

func (p *ScriptProcessor) Name() string {
	return "js"
}

// Reset discards the runtime, the shared context object and every function
// registered in the scope.
func (p *ScriptProcessor) Reset() {
	p.scope.Reset()
	p.vm = goja.New()
	p.context = p.vm.NewObject()
	_ = p.vm.Set("source", func(name string) (any, error) {
		return p.scope.Call(name)
	})
}

func (p *ScriptProcessor) Transform(blocks []*emdd.Block) ([]*emdd.Block, error) {
	err := emdd.WalkIdentifier(blocks, p.Name(), func(b *emdd.Block) error {
		out, err := p.run(b)
		if err != nil {
			return emdd.BlockError("content", b, err)
		}
		return b.SetOutput(out, emdd.OutputMarkdown)
	})
	return blocks, err
}

func (p *ScriptProcessor) run(b *emdd.Block) (string, error) {
	value, hasValue := b.Param("value")
	call, hasCall := b.Param("call")

	if b.Kind == emdd.BlockInlinePlugin && hasValue == hasCall {
		return "", fmt.Errorf("%w: inline @js needs exactly one of value or call", ErrInvalidInvocation)
	}

	if hasCall {
		res, err := p.scope.Call(call)
		if err != nil {
			return "", err
		}
		return stringify(res), nil
	}

	source := b.Body
	if b.Kind == emdd.BlockInlinePlugin || (source == "" && hasValue) {
		source = value
	}

	fn, err := p.compile(source)
	if err != nil {
		return "", err
	}

	if name, ok := b.Param("name"); ok {
		p.scope.Define(name, func() (any, error) {
			res, err := p.invoke(fn)
			if err != nil {
				return nil, err
			}
			return res.Export(), nil
		})
		slog.Debug("registered script function", "name", name, "line", b.Line)

		if b.ParamOr("defer", "") == "true" {
			return "", nil
		}
	}

	res, err := p.invoke(fn)
	if err != nil {
		return "", err
	}
	if goja.IsUndefined(res) || goja.IsNull(res) {
		return "", nil
	}
	return res.String(), nil
}

func (p *ScriptProcessor) compile(source string) (goja.Callable, error) {
	v, err := p.vm.RunString("(function(context) {\n" + source + "\n})")
	if err != nil {
		return nil, fmt.Errorf("compiling script: %w", err)
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, fmt.Errorf("compiling script: result is not a function")
	}
	return fn, nil
}

func (p *ScriptProcessor) invoke(fn goja.Callable) (goja.Value, error) {
	res, err := fn(goja.Undefined(), p.context)
	if err != nil {
		return nil, fmt.Errorf("running script: %w", err)
	}
	if res == nil {
		return goja.Undefined(), nil
	}
	return res, nil
}
