package emdd

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

var parameterNameRegex = regexp.MustCompile(`^[a-zA-Z_]*$`)

// Parser builds a block list from a token slice.
//
// Plugin invocations are parsed speculatively: on any failure the cursor is
// restored to the @ that started the attempt and the tokens are re-read as
// markdown, so parsing as a whole never fails.
type Parser struct {
	tokens      []Token
	current     int
	diagnostics []Diagnostic
}

func NewParser(tokens []Token) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Kind != TokenEOF {
		line := 1
		if len(tokens) > 0 {
			line = tokens[len(tokens)-1].Line
		}
		tokens = append(tokens, Token{Kind: TokenEOF, Line: line})
	}
	return &Parser{tokens: tokens}
}

// Parse tokenizes source with the given plugin identifiers and parses it.
func Parse(source string, identifiers []string) ([]*Block, []Diagnostic) {
	p := NewParser(Tokenize(source, identifiers))
	blocks := p.Parse()
	return blocks, p.Diagnostics()
}

func (p *Parser) Parse() []*Block {
	var blocks []*Block
	for !p.isAtEnd() {
		blocks = append(blocks, p.block())
	}
	slog.Debug("parsed document", "blocks", len(blocks), "recoveries", len(p.diagnostics))
	return blocks
}

// Diagnostics returns every recovery the parser made, in source order.
func (p *Parser) Diagnostics() []Diagnostic {
	return p.diagnostics
}

func (p *Parser) block() *Block {
	if p.atPluginStart() {
		start := p.current
		b, err := p.plugin()
		if err == nil {
			return b
		}
		p.recover(start, err)
		return p.markdown(true)
	}
	return p.markdown(false)
}

// markdown consumes prose up to the next plugin invocation that starts a line.
// Invocations in the middle of a line are parsed as nested inline plugins.
func (p *Parser) markdown(recovering bool) *Block {
	first := p.peek()
	b := &Block{Kind: BlockMarkdown, Line: first.Line, Column: first.Column, Char: first.Char}

	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			b.Segments = append(b.Segments, Segment{Text: text.String()})
			text.Reset()
		}
	}

	if recovering {
		// the @ of the failed invocation
		text.WriteString(p.advance().Literal)
	}

	for !p.isAtEnd() {
		if !p.atPluginStart() {
			text.WriteString(p.advance().Literal)
			continue
		}
		if p.atLineStart() {
			break
		}

		start := p.current
		child, err := p.plugin()
		if err != nil {
			p.recover(start, err)
			text.WriteString(p.advance().Literal)
			continue
		}
		flush()
		b.Segments = append(b.Segments, Segment{Block: child})
	}

	flush()
	return b
}

func (p *Parser) plugin() (*Block, error) {
	start := p.current
	lineStart := p.atLineStart()

	at := p.advance()
	id := p.advance()
	b := &Block{Identifier: id.Literal, Line: at.Line, Column: at.Column, Char: at.Char}

	params, err := p.parameters()
	if err != nil {
		return nil, err
	}
	b.Parameters = params

	if p.match(TokenSemicolon) {
		b.Kind = BlockInlinePlugin
		b.Raw = p.raw(start)
		return b, nil
	}

	if !lineStart {
		return nil, p.errorAt(p.peek(), "expected ';' after inline plugin parameters")
	}

	body, err := p.body()
	if err != nil {
		return nil, err
	}

	b.Kind = BlockPlugin
	b.Body = body
	b.Raw = p.raw(start)
	return b, nil
}

func (p *Parser) parameters() ([]Parameter, error) {
	p.skipSpaces()
	if err := p.consume(TokenLeftParen, "expected '(' after plugin identifier"); err != nil {
		return nil, err
	}

	var params []Parameter
	for {
		p.skipSpaces()
		if p.match(TokenRightParen) {
			return params, nil
		}
		if p.isAtEnd() {
			return nil, p.errorAt(p.peek(), "unterminated parameter list")
		}

		param, err := p.parameter()
		if err != nil {
			return nil, err
		}
		params = append(params, param)

		if !p.checkSpace() && !p.check(TokenRightParen) {
			return nil, p.errorAt(p.peek(), "expected ' ' or ')' after parameter value")
		}
	}
}

func (p *Parser) parameter() (Parameter, error) {
	nameTok := p.peek()
	var name strings.Builder
	for p.check(TokenCharacter) && !p.checkSpace() {
		name.WriteString(p.advance().Literal)
	}
	if !parameterNameRegex.MatchString(name.String()) {
		return Parameter{}, p.errorAt(nameTok, fmt.Sprintf("invalid parameter name %q", name.String()))
	}

	p.skipSpaces()
	if err := p.consume(TokenEquals, "expected '=' after parameter name"); err != nil {
		return Parameter{}, err
	}
	p.skipSpaces()
	if err := p.consume(TokenQuote, "expected '\"' to open parameter value"); err != nil {
		return Parameter{}, err
	}

	var value strings.Builder
	for !p.check(TokenQuote) {
		if p.isAtEnd() {
			return Parameter{}, p.errorAt(p.peek(), "unterminated parameter value")
		}
		if p.match(TokenBackslash) && p.isAtEnd() {
			return Parameter{}, p.errorAt(p.peek(), "unterminated escape in parameter value")
		}
		value.WriteString(p.advance().Literal)
	}
	p.advance()

	return Parameter{Name: name.String(), Value: value.String()}, nil
}

// body reads a fenced plugin body:
//
//	@id(...)
//	```
//	content
//	```
func (p *Parser) body() (string, error) {
	p.skipSpaces()
	if err := p.consume(TokenNewline, "expected newline before plugin body"); err != nil {
		return "", err
	}
	if !p.checkFence() {
		return "", p.errorAt(p.peek(), "expected '```' to open plugin body")
	}
	p.skipFence()

	// info string, ignored
	for !p.isAtEnd() && !p.check(TokenNewline) {
		p.advance()
	}
	if err := p.consume(TokenNewline, "expected newline after opening '```'"); err != nil {
		return "", err
	}

	var body strings.Builder
	for {
		if p.isAtEnd() {
			return "", p.errorAt(p.peek(), "unterminated plugin body, expected closing '```'")
		}
		if p.atLineStart() && p.checkClosingFence() {
			break
		}
		if p.match(TokenBackslash) && p.isAtEnd() {
			return "", p.errorAt(p.peek(), "unterminated escape in plugin body")
		}
		body.WriteString(p.advance().Literal)
	}

	p.skipFence()
	p.skipSpaces()
	if !p.isAtEnd() {
		if err := p.consume(TokenNewline, "expected newline after closing '```'"); err != nil {
			return "", err
		}
	}

	return strings.TrimSpace(body.String()), nil
}

func (p *Parser) recover(start int, err error) {
	var se *SyntaxError
	if errors.As(err, &se) {
		p.diagnostics = append(p.diagnostics, Diagnostic{
			Line:    se.Token.Line,
			Column:  se.Token.Column,
			Char:    se.Token.Char,
			Message: fmt.Sprintf("@%s: %s", p.tokens[start+1].Literal, se.Message),
		})
	}
	slog.Debug("failed to parse plugin, reverting to markdown", "error", err, "line", p.tokens[start].Line)
	p.current = start
}

func (p *Parser) errorAt(t Token, msg string) error {
	return &SyntaxError{Message: msg, Token: t}
}

func (p *Parser) raw(start int) string {
	var sb strings.Builder
	for _, t := range p.tokens[start:p.current] {
		sb.WriteString(t.Literal)
	}
	return sb.String()
}

func (p *Parser) atPluginStart() bool {
	return p.check(TokenAt) && p.peekAt(1).Kind == TokenPluginIdentifier
}

func (p *Parser) atLineStart() bool {
	return p.current == 0 || p.tokens[p.current-1].Kind == TokenNewline
}

func (p *Parser) checkFence() bool {
	return p.check(TokenBacktick) && p.peekAt(1).Kind == TokenBacktick && p.peekAt(2).Kind == TokenBacktick
}

// checkClosingFence reports whether the cursor is at ``` followed only by
// spaces up to the end of the line.
func (p *Parser) checkClosingFence() bool {
	if !p.checkFence() {
		return false
	}
	for i := 3; ; i++ {
		t := p.peekAt(i)
		switch {
		case t.Kind == TokenNewline, t.Kind == TokenEOF:
			return true
		case isSpaceToken(t):
			continue
		default:
			return false
		}
	}
}

func (p *Parser) skipFence() {
	for i := 0; i < 3; i++ {
		p.advance()
	}
}

func (p *Parser) skipSpaces() {
	for p.checkSpace() {
		p.advance()
	}
}

func (p *Parser) consume(kind TokenKind, msg string) error {
	if p.match(kind) {
		return nil
	}
	return p.errorAt(p.peek(), msg)
}

func (p *Parser) match(kind TokenKind) bool {
	if !p.check(kind) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) check(kind TokenKind) bool {
	return p.peek().Kind == kind
}

func (p *Parser) checkSpace() bool {
	return isSpaceToken(p.peek())
}

func (p *Parser) advance() Token {
	t := p.tokens[p.current]
	if t.Kind != TokenEOF {
		p.current++
	}
	return t
}

func (p *Parser) peek() Token {
	return p.tokens[p.current]
}

func (p *Parser) peekAt(n int) Token {
	if i := p.current + n; i < len(p.tokens) {
		return p.tokens[i]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) isAtEnd() bool {
	return p.check(TokenEOF)
}

func isSpaceToken(t Token) bool {
	return t.Kind == TokenCharacter && (t.Literal == " " || t.Literal == "\t")
}
