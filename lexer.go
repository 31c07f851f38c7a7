package emdd

import (
	"log/slog"
	"unicode/utf16"
)

var punctuation = map[rune]TokenKind{
	'@':  TokenAt,
	'(':  TokenLeftParen,
	')':  TokenRightParen,
	'{':  TokenLeftCurly,
	'}':  TokenRightCurly,
	'\\': TokenBackslash,
	'"':  TokenQuote,
	'=':  TokenEquals,
	';':  TokenSemicolon,
	'`':  TokenBacktick,
}

// Lexer turns emdd source into tokens. It never fails: anything it does not
// recognise becomes a character token.
type Lexer struct {
	identifiers map[string]struct{}
}

// NewLexer returns a lexer that recognises the given plugin identifiers.
// Identifiers are case-sensitive.
func NewLexer(identifiers []string) *Lexer {
	set := make(map[string]struct{}, len(identifiers))
	for _, id := range identifiers {
		set[id] = struct{}{}
	}
	return &Lexer{identifiers: set}
}

// Tokenize is shorthand for NewLexer(identifiers).Tokenize(source).
func Tokenize(source string, identifiers []string) []Token {
	return NewLexer(identifiers).Tokenize(source)
}

func (l *Lexer) Tokenize(source string) []Token {
	s := &scanner{src: []rune(source), line: 1, column: 1}

	for !s.atEnd() {
		r := s.src[s.pos]

		switch {
		case r == '\r':
			s.pos++
			s.char++
		case r == '\n':
			s.emit(TokenNewline, "\n")
			s.pos++
			s.line++
			s.column = 1
			s.char = 0
		case isAlpha(r) && s.previousIs(TokenAt):
			l.identifier(s)
		default:
			kind, ok := punctuation[r]
			if !ok {
				kind = TokenCharacter
			}
			s.emit(kind, string(r))
			s.pos++
		}
	}

	s.tokens = append(s.tokens, Token{Kind: TokenEOF, Line: s.line, Column: s.column, Char: s.char})
	return s.tokens
}

// identifier consumes the alphabetic run following an @. Unregistered runs
// fall back to one character token per rune.
func (l *Lexer) identifier(s *scanner) {
	start := s.pos
	for !s.atEnd() && isAlpha(s.src[s.pos]) {
		s.pos++
	}
	word := string(s.src[start:s.pos])

	if _, ok := l.identifiers[word]; ok {
		s.emit(TokenPluginIdentifier, word)
		return
	}

	slog.Debug("unregistered plugin identifier, treating as text", "word", word, "line", s.line)
	for _, r := range s.src[start:s.pos] {
		s.emit(TokenCharacter, string(r))
	}
}

type scanner struct {
	src    []rune
	pos    int
	line   int
	column int
	char   int
	tokens []Token
}

func (s *scanner) atEnd() bool {
	return s.pos >= len(s.src)
}

func (s *scanner) emit(kind TokenKind, literal string) {
	s.tokens = append(s.tokens, Token{Kind: kind, Literal: literal, Line: s.line, Column: s.column, Char: s.char})
	s.column++
	for _, r := range literal {
		if r != '\n' {
			s.char += utf16.RuneLen(r)
		}
	}
}

func (s *scanner) previousIs(kind TokenKind) bool {
	return len(s.tokens) > 0 && s.tokens[len(s.tokens)-1].Kind == kind
}

func isAlpha(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
