package emdd

import (
	"encoding/json"
	"log/slog"
)

const DocumentArgumentsIdentifier = "docArgs"

// DocumentArguments pulls docArgs invocations out of a document and merges
// them into a single argument map.
//
// The block form carries the interior of a JSON object:
//
//	@docArgs()
//	```
//	"title": "Home", "links": ["main.css"]
//	```
//
// The inline form carries string arguments as parameters.
type DocumentArguments struct{}

func (DocumentArguments) Name() string {
	return DocumentArgumentsIdentifier
}

// Parse returns the arguments declared by a single docArgs block. Malformed
// JSON is logged and yields an empty map.
func (DocumentArguments) Parse(b *Block) map[string]any {
	args := make(map[string]any)
	if b.Kind == BlockInlinePlugin {
		for _, p := range b.Parameters {
			args[p.Name] = p.Value
		}
		return args
	}

	if err := json.Unmarshal([]byte("{"+b.Body+"}"), &args); err != nil {
		slog.Warn("malformed document arguments, ignoring block", "line", b.Line, "error", err)
		return map[string]any{}
	}
	return args
}

// Extract removes every docArgs block from blocks, including inline ones
// nested in markdown, and returns the remaining blocks with the merged
// arguments. Later declarations win on key conflicts.
func (d DocumentArguments) Extract(blocks []*Block) ([]*Block, map[string]any) {
	merged := make(map[string]any)
	merge := func(b *Block) {
		for k, v := range d.Parse(b) {
			merged[k] = v
		}
	}

	kept := blocks[:0:0]
	for _, b := range blocks {
		if b.IsPlugin() {
			if b.Identifier == DocumentArgumentsIdentifier {
				merge(b)
				continue
			}
			kept = append(kept, b)
			continue
		}

		segments := b.Segments[:0:0]
		for _, seg := range b.Segments {
			if !seg.IsText() && seg.Block.Identifier == DocumentArgumentsIdentifier {
				merge(seg.Block)
				continue
			}
			segments = append(segments, seg)
		}
		kept = append(kept, b.withSegments(segments))
	}

	return kept, merged
}
