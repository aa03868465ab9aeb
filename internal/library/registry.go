// Package library knows which Pd external libraries pd4web can build, where
// their sources live and what each of them exports.
package library

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("pd4web.library")

var (
	// ErrUnknownLibrary is returned for a name missing from the catalog.
	ErrUnknownLibrary = errors.New("unknown library")
	// ErrNotCached is returned in offline mode when a library has neither a
	// manifest entry nor sources on disk.
	ErrNotCached = errors.New("library not cached")
)

// Options configures a Registry.
type Options struct {
	// ExternalsDir holds one source bundle per library.
	ExternalsDir string
	// ManifestPath is the manifest cache document. Empty keeps the cache in
	// memory only.
	ManifestPath string
	// Offline forbids fetching sources.
	Offline bool

	Fetcher Fetcher
	Scanner *Scanner
	Catalog *Catalog
}

// Registry answers library questions for the resolver. It is safe for
// concurrent use.
type Registry struct {
	catalog      *Catalog
	builtins     map[string]struct{}
	store        *Store
	fetcher      Fetcher
	scanner      Scanner
	externalsDir string
	offline      bool

	mu    sync.Mutex
	cache map[string]*Manifest
}

// NewRegistry opens the manifest cache and returns a registry. Nil options
// fall back to the embedded catalog, GitFetcher and a default Scanner.
func NewRegistry(opts Options) (*Registry, error) {
	cat := opts.Catalog
	if cat == nil {
		var err error
		if cat, err = DefaultCatalog(); err != nil {
			return nil, err
		}
	}

	store := &Store{entries: make(map[string]Entry)}
	if opts.ManifestPath != "" {
		var err error
		if store, err = OpenStore(opts.ManifestPath); err != nil {
			return nil, err
		}
	}

	r := &Registry{
		catalog:      cat,
		builtins:     Builtins(),
		store:        store,
		fetcher:      opts.Fetcher,
		externalsDir: opts.ExternalsDir,
		offline:      opts.Offline,
		cache:        make(map[string]*Manifest),
	}
	if r.fetcher == nil {
		r.fetcher = GitFetcher{}
	}
	if opts.Scanner != nil {
		r.scanner = *opts.Scanner
	}
	return r, nil
}

// IsSupported reports whether name is a library pd4web can build.
func (r *Registry) IsSupported(name string) bool {
	_, ok := r.catalog.Get(name)
	return ok
}

// IsBuiltin reports whether name is a vanilla Pd class.
func (r *Registry) IsBuiltin(name string) bool {
	_, ok := r.builtins[name]
	return ok
}

// Libraries returns the supported library names in sorted order.
func (r *Registry) Libraries() []string {
	return r.catalog.Names()
}

// BundleDir returns the directory holding name's sources.
func (r *Registry) BundleDir(name string) string {
	return filepath.Join(r.externalsDir, name)
}

// Manifest returns what library name exports, fetching and scanning its
// sources on first use. Scanned entries are written to the manifest cache.
func (r *Registry) Manifest(ctx context.Context, name string) (*Manifest, error) {
	lib, ok := r.catalog.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLibrary, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.cache[name]; ok {
		return m, nil
	}

	entry, ok := r.store.Get(name)
	if !ok {
		var err error
		if entry, err = r.scan(ctx, lib); err != nil {
			return nil, err
		}
		r.store.Put(name, entry)
		if r.store.Path() != "" {
			if err := r.store.Save(); err != nil {
				return nil, err
			}
		}
	}

	m := NewManifest(name, entry, lib.Unsupported)
	if lib.SingleObject {
		m.Objects[name] = struct{}{}
	}
	r.cache[name] = m
	return m, nil
}

func (r *Registry) scan(ctx context.Context, lib Library) (Entry, error) {
	dir := r.BundleDir(lib.Name)
	if !hasEntries(dir) {
		if r.offline {
			return Entry{}, fmt.Errorf("%w: %s", ErrNotCached, lib.Name)
		}
		log.Infof("fetching %s from %s", lib.Name, lib.Repo)
		if err := r.fetcher.Fetch(ctx, lib, dir); err != nil {
			return Entry{}, fmt.Errorf("fetching %s: %w", lib.Name, err)
		}
	}

	log.Infof("scanning %s", dir)
	entry, err := r.scanner.Scan(dir)
	if err != nil {
		return Entry{}, err
	}
	log.Debugf("%s exports %d objects and %d abstractions", lib.Name, len(entry.Objects), len(entry.Abstractions))
	return entry, nil
}
