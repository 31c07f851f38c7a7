package plugins

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/MrWalshy/emdd"
)

// TemplateEngine stores named templates and weaves them with arguments.
//
// A template declares its arguments in a space separated args parameter and
// refers to each one as @name; in its body:
//
//	@template(name="card" args="title body")
//	```
//	<div><h3>@title;</h3><p>@body;</p></div>
//	```
type TemplateEngine struct {
	templates map[string]*emdd.Block
	seeded    map[string]*emdd.Block
	scope     *Scope
}

func NewTemplateEngine(scope *Scope) *TemplateEngine {
	return &TemplateEngine{
		templates: make(map[string]*emdd.Block),
		seeded:    make(map[string]*emdd.Block),
		scope:     scope,
	}
}

// AddTemplate registers b under its name parameter, replacing any template
// already registered under that name.
func (e *TemplateEngine) AddTemplate(b *emdd.Block) error {
	name, ok := b.Param("name")
	if !ok || name == "" {
		return ErrUnnamedTemplate
	}
	if _, exists := e.templates[name]; exists {
		slog.Debug("overwriting template", "name", name, "line", b.Line)
	}
	e.templates[name] = b
	return nil
}

func (e *TemplateEngine) Template(name string) (*emdd.Block, bool) {
	b, ok := e.templates[name]
	return b, ok
}

func (e *TemplateEngine) Names() []string {
	names := make([]string, 0, len(e.templates))
	for name := range e.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Seed makes the templates currently registered in other available to every
// subsequent pass of e. Templates registered by a document only live for the
// pass that registered them.
func (e *TemplateEngine) Seed(other *TemplateEngine) {
	for name, b := range other.templates {
		e.seeded[name] = b
	}
	e.Reset()
}

// Reset drops every template that was not seeded.
func (e *TemplateEngine) Reset() {
	e.templates = make(map[string]*emdd.Block, len(e.seeded))
	for name, b := range e.seeded {
		e.templates[name] = b
	}
}

// Weave substitutes args into the named template. Declared arguments missing
// from args are replaced with the empty string.
func (e *TemplateEngine) Weave(name string, args map[string]string) (string, error) {
	tpl, ok := e.Template(name)
	if !ok {
		return "", fmt.Errorf("%w: %q%s", ErrTemplateNotFound, name, didYouMean(name, e.Names()))
	}

	declared := strings.Fields(tpl.ParamOr("args", ""))
	if len(declared) == 0 {
		return tpl.Body, nil
	}

	pairs := make([]string, 0, 2*len(declared))
	for _, arg := range declared {
		pairs = append(pairs, "@"+arg+";", args[arg])
	}
	return strings.NewReplacer(pairs...).Replace(tpl.Body), nil
}

// WeaveEach weaves the named template once per argument map returned by the
// data source and concatenates the results.
func (e *TemplateEngine) WeaveEach(name, source string) (string, error) {
	v, err := e.scope.Call(source)
	if err != nil {
		return "", err
	}

	rows, err := argumentMaps(v)
	if err != nil {
		return "", fmt.Errorf("data source %q: %w", source, err)
	}

	var sb strings.Builder
	for _, args := range rows {
		out, err := e.Weave(name, args)
		if err != nil {
			return "", err
		}
		sb.WriteString(out)
	}
	return sb.String(), nil
}

// TemplatePreProcessor harvests template blocks into the engine and removes
// them from the document.
type TemplatePreProcessor struct {
	engine *TemplateEngine
}

func NewTemplatePreProcessor(engine *TemplateEngine) *TemplatePreProcessor {
	return &TemplatePreProcessor{engine: engine}
}

func (p *TemplatePreProcessor) Name() string {
	return "template"
}

func (p *TemplatePreProcessor) Reset() {
	p.engine.Reset()
}

func (p *TemplatePreProcessor) PreProcess(b *emdd.Block) (bool, error) {
	if err := p.engine.AddTemplate(b); err != nil {
		return false, err
	}
	return false, nil
}

// WeaveProcessor renders weave invocations.
//
// The block form takes its arguments from the body, written as the interior
// of a JSON object. The inline form takes them from its parameters, or from a
// data source named by argsSource.
type WeaveProcessor struct {
	engine *TemplateEngine
}

func NewWeaveProcessor(engine *TemplateEngine) *WeaveProcessor {
	return &WeaveProcessor{engine: engine}
}

func (p *WeaveProcessor) Name() string {
	return "weave"
}

func (p *WeaveProcessor) Transform(blocks []*emdd.Block) ([]*emdd.Block, error) {
	err := emdd.WalkIdentifier(blocks, p.Name(), func(b *emdd.Block) error {
		out, err := p.weave(b)
		if err != nil {
			return emdd.BlockError("content", b, err)
		}
		return b.SetOutput(out, emdd.OutputRaw)
	})
	return blocks, err
}

func (p *WeaveProcessor) weave(b *emdd.Block) (string, error) {
	name, ok := b.Param("name")
	if !ok || name == "" {
		return "", fmt.Errorf("%w: @weave requires a template name", ErrInvalidInvocation)
	}

	if source, ok := b.Param("argsSource"); ok {
		return p.engine.WeaveEach(name, source)
	}

	args := make(map[string]string)
	if b.Kind == emdd.BlockPlugin {
		var raw map[string]any
		if err := json.Unmarshal([]byte("{"+b.Body+"}"), &raw); err != nil {
			return "", fmt.Errorf("%w: weave arguments: %v", ErrInvalidInvocation, err)
		}
		args = stringMap(raw)
	} else {
		for _, param := range b.Parameters {
			if param.Name != "name" {
				args[param.Name] = param.Value
			}
		}
	}

	return p.engine.Weave(name, args)
}
