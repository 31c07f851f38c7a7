package emdd

import "fmt"

type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenNewline
	TokenCharacter
	TokenAt
	TokenLeftParen
	TokenRightParen
	TokenLeftCurly
	TokenRightCurly
	TokenBackslash
	TokenQuote
	TokenEquals
	TokenSemicolon
	TokenBacktick
	TokenPluginIdentifier
)

var tokenKindNames = map[TokenKind]string{
	TokenEOF:              "EOF",
	TokenNewline:          "NEWLINE",
	TokenCharacter:        "CHARACTER",
	TokenAt:               "AT",
	TokenLeftParen:        "LEFT_PAREN",
	TokenRightParen:       "RIGHT_PAREN",
	TokenLeftCurly:        "LEFT_CURLY",
	TokenRightCurly:       "RIGHT_CURLY",
	TokenBackslash:        "BACKSLASH",
	TokenQuote:            "QUOTE",
	TokenEquals:           "EQUALS",
	TokenSemicolon:        "SEMI_COLON",
	TokenBacktick:         "BACK_TICK",
	TokenPluginIdentifier: "PLUGIN_IDENTIFIER",
}

func (k TokenKind) String() string {
	if name, ok := tokenKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Token is a single lexeme of an emdd source document.
//
// Line and Column are 1-based. Column counts tokens, not bytes, so a plugin
// identifier occupies a single column. Char is the 0-based offset of the
// token's first character within its line in UTF-16 code units, the unit
// editors address text in.
type Token struct {
	Kind    TokenKind
	Literal string
	Line    int
	Column  int
	Char    int
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q) %d:%d", t.Kind, t.Literal, t.Line, t.Column)
}
