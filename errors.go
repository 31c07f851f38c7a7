package emdd

import (
	"errors"
	"fmt"
)

var ErrNoProcessor = errors.New("no content processor registered")

// SyntaxError is produced while attempting to parse a plugin invocation. The
// parser recovers from every SyntaxError; they only surface as diagnostics.
type SyntaxError struct {
	Message string
	Token   Token
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Token.Line, e.Token.Column, e.Message)
}

// Diagnostic records a place where the parser fell back to treating a plugin
// invocation as plain text.
//
// Char is the 0-based UTF-16 offset within the line, see Token.
type Diagnostic struct {
	Line    int
	Column  int
	Char    int
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d: %s", d.Line, d.Column, d.Message)
}

// PipelineError is a fatal error raised while transpiling a document.
type PipelineError struct {
	Stage      string
	Identifier string
	Line       int
	Column     int
	Char       int
	Err        error
}

func (e *PipelineError) Error() string {
	if e.Identifier == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: @%s at line %d, column %d: %v", e.Stage, e.Identifier, e.Line, e.Column, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// BlockError attaches the position of b to err. Content and pre-processors use
// it so failures point at the offending invocation.
func BlockError(stage string, b *Block, err error) error {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return err
	}
	return &PipelineError{
		Stage:      stage,
		Identifier: b.Identifier,
		Line:       b.Line,
		Column:     b.Column,
		Char:       b.Char,
		Err:        err,
	}
}
