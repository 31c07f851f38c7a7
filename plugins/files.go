package plugins

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/MrWalshy/emdd"
)

// MaxFragmentPasses bounds fragment substitution. Cyclic references stop
// resolving after this many passes instead of looping forever.
const MaxFragmentPasses = 10

// OutputFile is a source file woven from fragments.
type OutputFile struct {
	ID      string
	Name    string
	Dir     string
	Content string
	// Partial is set when placeholders were left unresolved.
	Partial bool
}

func (f OutputFile) Path() string {
	return filepath.Join(f.Dir, f.Name)
}

// FileSink receives the files produced by a pass.
type FileSink interface {
	WriteFile(f OutputFile) error
}

// MemorySink collects files in memory.
type MemorySink struct {
	Files []OutputFile
}

func (s *MemorySink) WriteFile(f OutputFile) error {
	s.Files = append(s.Files, f)
	return nil
}

// Fragment is a named piece of a woven file. Fragments refer to each other
// with <<name>> placeholders.
type Fragment struct {
	Name string
	Type string
	// File is the id of the owning file. Fragments without one are shared by
	// every file.
	File  string
	Value string
}

func (f Fragment) visibleFrom(other Fragment) bool {
	return f.File == "" || f.File == other.File
}

// FilePostProcessor assembles the files declared with @file from the document's
// fragments and hands them to its sink.
type FilePostProcessor struct {
	sink      FileSink
	maxPasses int
}

func NewFilePostProcessor(sink FileSink) *FilePostProcessor {
	return &FilePostProcessor{sink: sink, maxPasses: MaxFragmentPasses}
}

func (p *FilePostProcessor) PostProcess(blocks []*emdd.RenderedBlock) ([]*emdd.RenderedBlock, error) {
	var files []OutputFile
	var fragments []Fragment

	for _, rb := range blocks {
		b := rb.Block
		switch rb.Identifier() {
		case FileIdentifier:
			files = append(files, OutputFile{
				ID:   b.ParamOr("id", b.ParamOr("name", "")),
				Name: b.ParamOr("name", ""),
				Dir:  b.ParamOr("dir", ""),
			})
		case FragmentIdentifier:
			fragments = append(fragments, Fragment{
				Name:  b.ParamOr("name", ""),
				Type:  b.ParamOr("type", FragmentTypeFragment),
				File:  b.ParamOr("file", ""),
				Value: b.Body,
			})
		}
	}

	if len(files) == 0 {
		return blocks, nil
	}

	resolved, complete := ResolveFragments(fragments, p.maxPasses)

	for _, f := range files {
		structure := -1
		for i, frag := range resolved {
			if frag.Type == FragmentTypeStructure && frag.File == f.ID {
				structure = i
				break
			}
		}
		if structure < 0 {
			slog.Warn("no structure fragment for file, skipping", "file", f.Name, "id", f.ID)
			continue
		}

		f.Content = resolved[structure].Value
		f.Partial = !complete[structure]
		if f.Partial {
			slog.Warn("file has unresolved fragment placeholders", "file", f.Path(), "passes", p.maxPasses)
		}

		if err := p.sink.WriteFile(f); err != nil {
			return nil, fmt.Errorf("writing %s: %w", f.Path(), err)
		}
	}

	return blocks, nil
}

// ResolveFragments substitutes fragment values into each other's <<name>>
// placeholders, at most maxPasses times. Fragments sharing a name and owner are
// concatenated first. Each pass reads the values of the previous one, so the
// result does not depend on map iteration or evaluation order. The second
// return value reports, per fragment, whether no known placeholders remain.
func ResolveFragments(fragments []Fragment, maxPasses int) ([]Fragment, []bool) {
	merged := mergeFragments(fragments)

	for pass := 0; pass < maxPasses; pass++ {
		prev := make([]string, len(merged))
		for i, f := range merged {
			prev[i] = f.Value
		}

		changed := false
		for i := range merged {
			v := prev[i]
			for j, other := range merged {
				if i == j || !other.visibleFrom(merged[i]) {
					continue
				}
				v = strings.ReplaceAll(v, placeholder(other.Name), prev[j])
			}
			if v != prev[i] {
				changed = true
			}
			merged[i].Value = v
		}

		if !changed {
			break
		}
	}

	complete := make([]bool, len(merged))
	for i, f := range merged {
		complete[i] = true
		for _, other := range merged {
			if other.visibleFrom(f) && strings.Contains(f.Value, placeholder(other.Name)) {
				complete[i] = false
				break
			}
		}
	}

	return merged, complete
}

func mergeFragments(fragments []Fragment) []Fragment {
	index := make(map[[2]string]int)
	var merged []Fragment
	for _, f := range fragments {
		key := [2]string{f.File, f.Name}
		if i, ok := index[key]; ok {
			merged[i].Value += "\n" + f.Value
			if f.Type == FragmentTypeStructure {
				merged[i].Type = FragmentTypeStructure
			}
			continue
		}
		index[key] = len(merged)
		merged = append(merged, f)
	}
	return merged
}

func placeholder(name string) string {
	return "<<" + name + ">>"
}
