package plugins

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrWalshy/emdd"
	"golang.org/x/net/html"
)

const defaultTitle = "Placeholder"

// HTMLDocument wraps the rendered blocks in an HTML5 page built from the
// document arguments: title, lang, description, links (stylesheets) and
// scripts.
type HTMLDocument struct {
	Preamble  string
	Postamble string
}

func NewHTMLDocument(preamble, postamble string) *HTMLDocument {
	return &HTMLDocument{Preamble: preamble, Postamble: postamble}
}

func (d *HTMLDocument) Process(blocks []*emdd.RenderedBlock, args map[string]any) (string, error) {
	title, _ := args["title"].(string)
	if title == "" {
		slog.Warn("document has no title, using placeholder")
		title = defaultTitle
	}
	lang, _ := args["lang"].(string)
	if lang == "" {
		lang = "en"
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n")
	fmt.Fprintf(&sb, "<html lang=\"%s\">\n", html.EscapeString(lang))
	sb.WriteString("<head>\n")
	sb.WriteString("<meta charset=\"utf-8\">\n")
	sb.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	fmt.Fprintf(&sb, "<title>%s</title>\n", html.EscapeString(title))
	if desc, ok := args["description"].(string); ok && desc != "" {
		fmt.Fprintf(&sb, "<meta name=\"description\" content=\"%s\">\n", html.EscapeString(desc))
	}
	for _, href := range stringList(args["links"]) {
		fmt.Fprintf(&sb, "<link rel=\"stylesheet\" href=\"%s\">\n", html.EscapeString(href))
	}
	sb.WriteString("</head>\n")
	sb.WriteString("<body>\n")

	for _, part := range []string{d.Preamble, emdd.JoinRendered(blocks), d.Postamble} {
		if part = strings.TrimSpace(part); part != "" {
			sb.WriteString(part)
			sb.WriteString("\n")
		}
	}

	for _, src := range stringList(args["scripts"]) {
		fmt.Fprintf(&sb, "<script src=\"%s\"></script>\n", html.EscapeString(src))
	}
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")

	return sb.String(), nil
}

// RawDocument concatenates the rendered blocks without a surrounding page, for
// fragments meant to be embedded elsewhere.
type RawDocument struct{}

func (RawDocument) Process(blocks []*emdd.RenderedBlock, _ map[string]any) (string, error) {
	return emdd.JoinRendered(blocks), nil
}

func stringList(v any) []string {
	switch v := v.(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, stringify(item))
		}
		return out
	default:
		return nil
	}
}
