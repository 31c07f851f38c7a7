package emdd

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	SourceExtension = ".emdd"
	OutputExtension = ".html"
)

// ResolveOutputPath maps a source document to its rendered output path.
//
// With an empty outDir the output sits next to the source. Otherwise the
// source's location relative to srcRoot is mirrored under outDir.
func ResolveOutputPath(srcPath, srcRoot, outDir string) (string, error) {
	name := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath)) + OutputExtension

	if outDir == "" {
		return filepath.Join(filepath.Dir(srcPath), name), nil
	}

	rel := "."
	if srcRoot != "" {
		var err error
		rel, err = filepath.Rel(srcRoot, filepath.Dir(srcPath))
		if err != nil {
			return "", fmt.Errorf("resolving %s relative to %s: %w", srcPath, srcRoot, err)
		}
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("source %s is outside of source root %s", srcPath, srcRoot)
		}
	}

	return filepath.Join(outDir, rel, name), nil
}

func MustAbs(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		panic(err)
	}
	return abs
}
