// Package output owns everything about produced files: deterministic target
// paths mirrored from the watch root, atomic publishing through temp files,
// permission normalization, source cleanup, and the temp-file registry.
package output

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Suffixes distinguishing a 4K-original artifact from its 1080p derivative.
const (
	Suffix4K    = " - 4k"
	Suffix1080p = " - 1080p"
)

// tagPattern matches a trailing " - {Tag}" on a base name (no parentheses),
// which is stripped before suffixing so reprocessed outputs don't stack tags.
var tagPattern = regexp.MustCompile(` - [^()]+$`)

// SplitName splits a path into directory, tag-stripped base name, and
// extension.
func SplitName(path string) (dir, base, ext string) {
	dir, file := filepath.Split(path)
	ext = filepath.Ext(file)
	base = strings.TrimSuffix(file, ext)
	base = tagPattern.ReplaceAllString(base, "")
	return filepath.Clean(dir), base, ext
}

// Layout derives output paths by mirroring the watch tree into the output
// tree.
type Layout struct {
	WatchRoot  string
	OutputRoot string
}

// Targets are the final paths one source file can produce.
type Targets struct {
	// Dir is the mirrored output directory.
	Dir string
	// Default is always produced: the 4K artifact for a 4K source,
	// otherwise the 1080p-class re-encode.
	Default string
	// Scaled is the 1080p derivative, set only for 4K sources.
	Scaled string
}

// Targets computes the output paths for a source file.
func (l Layout) Targets(sourcePath string, is4K bool) (Targets, error) {
	dir, base, ext := SplitName(sourcePath)

	rel, err := filepath.Rel(l.WatchRoot, dir)
	if err != nil || strings.HasPrefix(rel, "..") {
		return Targets{}, fmt.Errorf("source %s is outside watch root %s", sourcePath, l.WatchRoot)
	}
	outDir := filepath.Join(l.OutputRoot, rel)

	t := Targets{Dir: outDir}
	if is4K {
		t.Default = filepath.Join(outDir, base+Suffix4K+ext)
		t.Scaled = filepath.Join(outDir, base+Suffix1080p+ext)
	} else {
		t.Default = filepath.Join(outDir, base+Suffix1080p+ext)
	}
	return t, nil
}
