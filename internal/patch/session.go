package patch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/phobologic/pd4web/internal/discover"
	"github.com/phobologic/pd4web/internal/graph"
	"github.com/phobologic/pd4web/internal/library"
	"github.com/phobologic/pd4web/internal/model"
)

var log = commonlog.GetLogger("pd4web.patch")

// Registry is the library knowledge the resolver needs.
type Registry interface {
	IsSupported(name string) bool
	IsBuiltin(name string) bool
	BundleDir(name string) string
	Manifest(ctx context.Context, name string) (*library.Manifest, error)
}

// Options configures a Session.
type Options struct {
	// Root is the project root. Defaults to the directory of the top-level patch.
	Root string
	// OutputDir receives the rewritten top-level patch as index.pd.
	// Defaults to Root/WebPatch.
	OutputDir string
	// ScratchDir receives rewritten abstractions. Defaults to Root/.tmp.
	ScratchDir string

	BypassUnsupported bool
	GUI               bool
	GUIPrefix         string
}

// IndexFile is the name of the rewritten top-level patch.
const IndexFile = "index.pd"

// Session holds the state of one resolution run. A Session is not safe for
// concurrent use and is meant to run once.
type Session struct {
	reg  Registry
	opts Options

	used  *UsedObjects
	graph *graph.Graph

	processed  map[string]struct{}
	inProgress map[string]struct{}
	scratch    map[string]string // scratch basename -> source path

	declaredLibs  []string
	declaredPaths []string
	localPaths    []string
	localAbs      map[string]string // declared local abstraction -> path

	guiCounter   int
	guiReceivers []string
	inChannels   int
	outChannels  int
	midi         bool

	outputs  []string
	warnings []string
}

// NewSession returns a session resolving against reg.
func NewSession(reg Registry, opts Options) *Session {
	if opts.GUIPrefix == "" {
		opts.GUIPrefix = "pd4web_gui"
	}
	return &Session{
		reg:        reg,
		opts:       opts,
		used:       NewUsedObjects(),
		graph:      graph.New(),
		processed:  make(map[string]struct{}),
		inProgress: make(map[string]struct{}),
		scratch:    make(map[string]string),
		localAbs:   make(map[string]string),
	}
}

// Run resolves the patch at patchPath and every abstraction it reaches,
// writes the rewritten files and returns what the build step needs.
func (s *Session) Run(ctx context.Context, patchPath string) (*model.Result, error) {
	path, err := filepath.Abs(patchPath)
	if err != nil {
		return nil, fmt.Errorf("resolving patch path: %w", err)
	}
	if s.opts.Root == "" {
		s.opts.Root = filepath.Dir(path)
	}
	if s.opts.OutputDir == "" {
		s.opts.OutputDir = filepath.Join(s.opts.Root, "WebPatch")
	}
	if s.opts.ScratchDir == "" {
		s.opts.ScratchDir = filepath.Join(s.opts.Root, ".tmp")
	}

	top := s.rel(path)
	s.graph.AddNode(top)

	if err := s.processFile(ctx, path, filepath.Join(s.opts.OutputDir, IndexFile)); err != nil {
		return nil, err
	}

	log.Infof("%s: %d externals across %d patch files", top, s.used.Len(), len(s.graph.Nodes()))
	for node, n := range s.graph.FanIn() {
		if n > 1 {
			log.Debugf("%s is shared by %d patches", node, n)
		}
	}

	return &model.Result{
		Patch:        top,
		Objects:      s.used.List(),
		Abstractions: s.graph.Edges(),
		LoadOrder:    s.graph.LoadOrder(top),
		InChannels:   s.inChannels,
		OutChannels:  s.outChannels,
		MIDI:         s.midi,
		GUIReceivers: append([]string(nil), s.guiReceivers...),
		Outputs:      append([]string(nil), s.outputs...),
		Warnings:     append([]string(nil), s.warnings...),
	}, nil
}

// UsedObjects returns the objects recorded so far.
func (s *Session) UsedObjects() *UsedObjects {
	return s.used
}

// processFile resolves every line of the patch at path and writes the
// rewritten patch to out.
func (s *Session) processFile(ctx context.Context, path, out string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := Load(path)
	if err != nil {
		return err
	}
	log.Infof("processing %s", s.rel(path))

	s.inProgress[path] = struct{}{}
	defer delete(s.inProgress, path)

	for i := range p.Lines {
		line := &p.Lines[i]
		switch {
		case line.Kind == model.KindDeclare:
			err = s.declare(ctx, p, line)
		case line.IsObject():
			err = s.resolve(ctx, p, line)
		}
		if err != nil {
			return err
		}
	}

	if err := s.write(p, out); err != nil {
		return err
	}
	s.processed[path] = struct{}{}
	return nil
}

func (s *Session) write(p *Patch, out string) error {
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	if err := os.WriteFile(out, Render(p.Lines), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	s.outputs = append(s.outputs, s.rel(out))
	return nil
}

// declare handles the -lib and -path pairs of a declare record. The record
// itself is written unchanged.
func (s *Session) declare(ctx context.Context, p *Patch, line *model.PatchLine) error {
	for _, d := range ParseDeclare(line.Tokens) {
		switch {
		case d.IsLib():
			if !s.reg.IsSupported(d.Value) {
				return objectError(fmt.Errorf("%w: %s", ErrUnsupportedLibrary, d.Value), line.Tokens, p.Path)
			}
			if _, err := s.reg.Manifest(ctx, d.Value); err != nil {
				return fmt.Errorf("declare -lib %s: %w", d.Value, err)
			}
			s.declaredLibs = appendUnique(s.declaredLibs, d.Value)

		case d.IsPath():
			if s.reg.IsSupported(d.Value) {
				if _, err := s.reg.Manifest(ctx, d.Value); err != nil {
					return fmt.Errorf("declare -path %s: %w", d.Value, err)
				}
				s.declaredPaths = appendUnique(s.declaredPaths, d.Value)
				continue
			}
			dir := d.Value
			if !filepath.IsAbs(dir) {
				dir = filepath.Join(s.opts.Root, dir)
			}
			if err := s.addLocalPath(filepath.Clean(dir)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Session) addLocalPath(dir string) error {
	for _, d := range s.localPaths {
		if d == dir {
			return nil
		}
	}
	s.localPaths = append(s.localPaths, dir)

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		s.warn("declared path %s does not exist", s.rel(dir))
		return nil
	}
	files, err := discover.Files(dir, discover.Options{
		Extensions: []string{discover.PatchExt},
		Recursive:  true,
		SkipHelp:   true,
	})
	if err != nil {
		return fmt.Errorf("listing declared path %s: %w", dir, err)
	}
	for _, f := range files {
		if _, ok := s.localAbs[f.Name()]; !ok {
			s.localAbs[f.Name()] = filepath.Join(dir, f.Path)
		}
	}
	return nil
}

// useLibrary makes every class and abstraction of lib visible to bare names
// from now on.
func (s *Session) useLibrary(lib string) {
	s.declaredLibs = appendUnique(s.declaredLibs, lib)
	s.declaredPaths = appendUnique(s.declaredPaths, lib)
}

func (s *Session) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Warning(msg)
	s.warnings = append(s.warnings, msg)
}

// rel returns path relative to the project root when it lies below it.
func (s *Session) rel(path string) string {
	r, err := filepath.Rel(s.opts.Root, path)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return path
	}
	return filepath.ToSlash(r)
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
