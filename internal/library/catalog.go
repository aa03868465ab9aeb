package library

import (
	"bufio"
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed libraries.yaml
var defaultCatalog []byte

//go:embed builtins.txt
var builtinList string

// Library is a catalog entry describing where a library comes from and
// which of its classes cannot be built.
type Library struct {
	Name         string   `yaml:"name"`
	Repo         string   `yaml:"repo"`
	Ref          string   `yaml:"ref"`
	SingleObject bool     `yaml:"single_object"`
	Unsupported  []string `yaml:"unsupported"`
}

// Catalog is the set of supported libraries.
type Catalog struct {
	libs map[string]Library
}

// ParseCatalog decodes a YAML catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var doc struct {
		Libraries []Library `yaml:"libraries"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing library catalog: %w", err)
	}

	c := &Catalog{libs: make(map[string]Library, len(doc.Libraries))}
	for _, lib := range doc.Libraries {
		if lib.Name == "" {
			return nil, fmt.Errorf("parsing library catalog: entry without name")
		}
		c.libs[lib.Name] = lib
	}
	return c, nil
}

// DefaultCatalog returns the catalog shipped with pd4web.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// Add inserts or replaces a library.
func (c *Catalog) Add(lib Library) {
	c.libs[lib.Name] = lib
}

// Get returns the entry for name.
func (c *Catalog) Get(name string) (Library, bool) {
	lib, ok := c.libs[name]
	return lib, ok
}

// Names returns the supported library names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.libs))
	for name := range c.libs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builtins returns the vanilla Pd class names.
func Builtins() map[string]struct{} {
	set := make(map[string]struct{})
	sc := bufio.NewScanner(strings.NewReader(builtinList))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		set[line] = struct{}{}
	}
	return set
}

// Merge overlays lib on the existing entry of the same name. Empty fields
// keep the catalog value; a new name is added as is.
func (c *Catalog) Merge(lib Library) {
	cur, ok := c.libs[lib.Name]
	if !ok {
		c.libs[lib.Name] = lib
		return
	}
	if lib.Repo != "" {
		cur.Repo = lib.Repo
	}
	if lib.Ref != "" {
		cur.Ref = lib.Ref
	}
	if lib.SingleObject {
		cur.SingleObject = true
	}
	cur.Unsupported = append(cur.Unsupported, lib.Unsupported...)
	c.libs[lib.Name] = cur
}
