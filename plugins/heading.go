package plugins

import (
	"strings"
	"unicode"
)

type headingTokenKind int

const (
	headingText headingTokenKind = iota
	headingTag
	headingOpen
	headingClose
	headingSlash
	headingEOF
)

type headingToken struct {
	kind    headingTokenKind
	literal string
	line    int
	column  int
}

var headingTags = map[string]int{"h1": 1, "h2": 2, "h3": 3, "h4": 4, "h5": 5, "h6": 6}

// Heading is a heading element found in rendered HTML.
type Heading struct {
	Tag   string
	Level int
	Text  string
}

// lexHeadings splits HTML into the few tokens needed to find heading
// elements. Alphanumeric runs are tag candidates; everything else is text.
func lexHeadings(html string) []headingToken {
	var tokens []headingToken
	runes := []rune(html)
	line, column := 1, 1

	emit := func(kind headingTokenKind, literal string) {
		tokens = append(tokens, headingToken{kind: kind, literal: literal, line: line, column: column})
		column++
	}

	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case r == '<':
			emit(headingOpen, "<")
			i++
		case r == '>':
			emit(headingClose, ">")
			i++
		case r == '/':
			emit(headingSlash, "/")
			i++
		case isAlphanumeric(r):
			start := i
			for i < len(runes) && isAlphanumeric(runes[i]) {
				i++
			}
			word := string(runes[start:i])
			kind := headingText
			if _, ok := headingTags[word]; ok {
				kind = headingTag
			}
			emit(kind, word)
		default:
			emit(headingText, string(r))
			if r == '\n' {
				line++
				column = 1
			}
			i++
		}
	}

	return append(tokens, headingToken{kind: headingEOF, line: line, column: column})
}

func isAlphanumeric(r rune) bool {
	return r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

type headingParser struct {
	tokens  []headingToken
	current int
}

// ExtractHeadings returns the h1-h6 elements of html in document order. Markup
// nested inside a heading is dropped from its text.
func ExtractHeadings(html string) []Heading {
	p := &headingParser{tokens: lexHeadings(html)}
	var headings []Heading
	for !p.atEnd() {
		if h, ok := p.heading(); ok {
			headings = append(headings, h)
			continue
		}
		p.current++
	}
	return headings
}

func (p *headingParser) heading() (Heading, bool) {
	start := p.current
	if !p.check(0, headingOpen) || !p.check(1, headingTag) {
		return Heading{}, false
	}
	tag := p.tokens[p.current+1].literal
	p.current += 2

	// attributes
	for !p.atEnd() && !p.check(0, headingClose) {
		p.current++
	}
	if p.atEnd() {
		p.current = start
		return Heading{}, false
	}
	p.current++

	var text strings.Builder
	for !p.atEnd() {
		if p.closes(tag) {
			p.current += 4
			return Heading{Tag: tag, Level: headingTags[tag], Text: strings.TrimSpace(text.String())}, true
		}
		if p.check(0, headingOpen) {
			p.skipElement()
			continue
		}
		text.WriteString(p.tokens[p.current].literal)
		p.current++
	}

	p.current = start
	return Heading{}, false
}

func (p *headingParser) closes(tag string) bool {
	return p.check(0, headingOpen) && p.check(1, headingSlash) && p.check(2, headingTag) &&
		p.tokens[p.current+2].literal == tag && p.check(3, headingClose)
}

func (p *headingParser) skipElement() {
	for !p.atEnd() && !p.check(0, headingClose) {
		p.current++
	}
	if !p.atEnd() {
		p.current++
	}
}

func (p *headingParser) check(offset int, kind headingTokenKind) bool {
	i := p.current + offset
	return i < len(p.tokens) && p.tokens[i].kind == kind
}

func (p *headingParser) atEnd() bool {
	return p.tokens[p.current].kind == headingEOF
}
