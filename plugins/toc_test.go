package plugins

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractHeadings(t *testing.T) {
	tests := []struct {
		name string
		html string
		want []Heading
	}{
		{
			name: "simple",
			html: "<h1>My title</h1>\n<p>text</p>\n<h2>Second</h2>",
			want: []Heading{
				{Tag: "h1", Level: 1, Text: "My title"},
				{Tag: "h2", Level: 2, Text: "Second"},
			},
		},
		{
			name: "attributes and nested markup",
			html: `<h1 id="intro">Intro <code>go</code> &amp; more</h1><h3>Deep</h3>`,
			want: []Heading{
				{Tag: "h1", Level: 1, Text: "Intro go &amp; more"},
				{Tag: "h3", Level: 3, Text: "Deep"},
			},
		},
		{
			name: "non heading tags ignored",
			html: "<hr><h10>no</h10><p>h1 in text</p>",
			want: nil,
		},
		{
			name: "unterminated heading",
			html: "<h2>never closed",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractHeadings(tt.html))
		})
	}
}

func TestBuildToc(t *testing.T) {
	got := BuildToc([]Heading{
		{Tag: "h1", Level: 1, Text: "My title"},
		{Tag: "h2", Level: 2, Text: "My secondary title"},
	})

	want := `<ul class="toc">
<li class="h1-toc">My title
<ul>
<li class="h2-toc">My secondary title</li>
</ul>
</li>
</ul>`
	assert.Equal(t, want, got)
}

func TestBuildTocReturnsToOuterLevel(t *testing.T) {
	got := BuildToc([]Heading{
		{Tag: "h1", Level: 1, Text: "A"},
		{Tag: "h2", Level: 2, Text: "B"},
		{Tag: "h3", Level: 3, Text: "C"},
		{Tag: "h1", Level: 1, Text: "D"},
	})

	assert.Equal(t, strings.Count(got, "<ul"), strings.Count(got, "</ul>"))
	assert.Equal(t, strings.Count(got, "<li"), strings.Count(got, "</li>"))
	assert.True(t, strings.HasSuffix(got, "</ul>\n</li>\n<li class=\"h1-toc\">D</li>\n</ul>"))
}

func TestBuildTocEmpty(t *testing.T) {
	assert.Equal(t, "<ul class=\"toc\">\n</ul>", BuildToc(nil))
}

func TestTocInDocument(t *testing.T) {
	res := transpile(t, "# My title\n@toc();\n## My secondary title", "toc")

	want := `<h1>My title</h1>
<ul class="toc">
<li class="h1-toc">My title
<ul>
<li class="h2-toc">My secondary title</li>
</ul>
</li>
</ul>
<h2>My secondary title</h2>`
	assert.Equal(t, want, res.Output)
}

func TestTocExclude(t *testing.T) {
	res := transpile(t, "@toc(exclude=\"h2\");\n# A\n## B\n### C", "toc")

	require.NotEmpty(t, res.Blocks)
	toc := res.Blocks[0].Value

	assert.Contains(t, toc, `<li class="h1-toc">A`)
	assert.Contains(t, toc, `<li class="h3-toc">C`)
	assert.NotContains(t, toc, "h2-toc")
	assert.Less(t, strings.Index(toc, "h1-toc"), strings.Index(toc, "h3-toc"))
}

func TestTocMultipleInsertionPoints(t *testing.T) {
	res := transpile(t, "@toc();\n# A\n## B\n@toc(exclude=\"h2\");", "toc")

	var tocs []string
	for _, b := range res.Blocks {
		if b.Identifier() == TocIdentifier {
			tocs = append(tocs, b.Value)
		}
	}
	require.Len(t, tocs, 2)
	assert.Contains(t, tocs[0], "h2-toc")
	assert.NotContains(t, tocs[1], "h2-toc")
	assert.Contains(t, tocs[1], "h1-toc")
}
