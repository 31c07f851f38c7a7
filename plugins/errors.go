package plugins

import (
	"errors"
	"fmt"

	"github.com/sahilm/fuzzy"
)

var (
	ErrUnnamedTemplate    = errors.New("template has no name")
	ErrTemplateNotFound   = errors.New("template not found")
	ErrDataSourceNotFound = errors.New("data source not found")
	ErrInvalidInvocation  = errors.New("invalid plugin invocation")
)

// didYouMean returns a hint naming the closest candidate to name, or "".
func didYouMean(name string, candidates []string) string {
	matches := fuzzy.Find(name, candidates)
	if len(matches) == 0 {
		return ""
	}
	return fmt.Sprintf(" (did you mean %q?)", matches[0].Str)
}
