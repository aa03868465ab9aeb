// Package patch resolves the objects of a Pure Data patch against vanilla Pd,
// the supported external libraries and the project's abstractions, and
// rewrites the patch so every object loads as a plain class name.
package patch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/phobologic/pd4web/internal/discover"
	"github.com/phobologic/pd4web/internal/model"
)

// Patch is one parsed .pd file.
type Patch struct {
	Path  string
	Dir   string
	Lines []model.PatchLine

	// Siblings holds the names of the .pd files in Dir.
	Siblings map[string]struct{}
}

// Parse tokenizes data without touching the file system.
func Parse(path string, data []byte) *Patch {
	records := SplitRecords(data)
	p := &Patch{
		Path:     path,
		Dir:      filepath.Dir(path),
		Lines:    make([]model.PatchLine, len(records)),
		Siblings: make(map[string]struct{}),
	}
	for i, rec := range records {
		p.Lines[i] = ParseLine(i, rec)
	}
	return p
}

// Load reads and parses the patch at path and lists its sibling files.
func Load(path string) (*Patch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading patch: %w", err)
	}
	p := Parse(path, data)

	siblings, err := discover.Patches(p.Dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", p.Dir, err)
	}
	p.Siblings = siblings
	return p, nil
}

// HasSibling reports whether name.pd lives next to the patch.
func (p *Patch) HasSibling(name string) bool {
	_, ok := p.Siblings[name]
	return ok
}

// SiblingPath returns the path of the sibling abstraction name.
func (p *Patch) SiblingPath(name string) string {
	return filepath.Join(p.Dir, name+discover.PatchExt)
}
