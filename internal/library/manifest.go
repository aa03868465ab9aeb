package library

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Entry is the persisted form of one library's manifest.
type Entry struct {
	Objects      []string          `json:"objs"`
	Abstractions []string          `json:"abs"`
	Setup        map[string]string `json:"setup,omitempty"`
}

// Manifest is the in-memory view of what a library exports.
type Manifest struct {
	Library      string
	Objects      map[string]struct{}
	Abstractions map[string]struct{}
	Unsupported  map[string]struct{}
	Setup        map[string]string
}

// NewManifest builds a Manifest from a persisted entry and the catalog's
// unsupported list.
func NewManifest(library string, e Entry, unsupported []string) *Manifest {
	m := &Manifest{
		Library:      library,
		Objects:      toSet(e.Objects),
		Abstractions: toSet(e.Abstractions),
		Unsupported:  toSet(unsupported),
		Setup:        make(map[string]string, len(e.Setup)),
	}
	for k, v := range e.Setup {
		m.Setup[k] = v
	}
	return m
}

// HasObject reports whether the library exports a compiled class called name.
func (m *Manifest) HasObject(name string) bool {
	_, ok := m.Objects[name]
	return ok
}

// HasAbstraction reports whether the library ships name.pd.
func (m *Manifest) HasAbstraction(name string) bool {
	_, ok := m.Abstractions[name]
	return ok
}

// IsUnsupported reports whether name is denylisted for the web target.
func (m *Manifest) IsUnsupported(name string) bool {
	_, ok := m.Unsupported[name]
	return ok
}

// SetupFunction returns the function that registers name, falling back to
// the loader naming convention.
func (m *Manifest) SetupFunction(name string) string {
	if fn, ok := m.Setup[name]; ok && fn != "" {
		return fn
	}
	return SetupFunctionName(name)
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}

// Store is the manifest cache document: a JSON object mapping library name
// to its Entry.
type Store struct {
	path    string
	entries map[string]Entry
}

// OpenStore reads the document at path. A missing file is an empty store.
func OpenStore(path string) (*Store, error) {
	s := &Store{path: path, entries: make(map[string]Entry)}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading manifest cache: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		return nil, fmt.Errorf("parsing manifest cache %s: %w", path, err)
	}
	return s, nil
}

// Path returns the location of the document.
func (s *Store) Path() string {
	return s.path
}

// Get returns the cached entry for library.
func (s *Store) Get(library string) (Entry, bool) {
	e, ok := s.entries[library]
	return e, ok
}

// Put replaces the cached entry for library. Call Save to persist.
func (s *Store) Put(library string, e Entry) {
	if e.Objects == nil {
		e.Objects = []string{}
	}
	if e.Abstractions == nil {
		e.Abstractions = []string{}
	}
	s.entries[library] = e
}

// Save writes the document, creating parent directories as needed.
func (s *Store) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating manifest dir: %w", err)
	}
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest cache: %w", err)
	}
	if err := os.WriteFile(s.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing manifest cache: %w", err)
	}
	return nil
}
