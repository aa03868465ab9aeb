package patch

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/phobologic/pd4web/internal/discover"
	"github.com/phobologic/pd4web/internal/library"
	"github.com/phobologic/pd4web/internal/model"
)

// locate finds the file of an abstraction: first the project root joined
// with the name as written, then the library bundle, then every declared
// local path.
func (s *Session) locate(lib, fullName, name string) (string, error) {
	if path := filepath.Join(s.opts.Root, fullName+discover.PatchExt); fileExists(path) {
		return path, nil
	}

	if lib != "" && lib != model.PureData {
		path, err := discover.Find(s.reg.BundleDir(lib), name+discover.PatchExt)
		if err != nil {
			return "", fmt.Errorf("searching %s: %w", lib, err)
		}
		if path != "" {
			return path, nil
		}
	}

	for _, dir := range s.localPaths {
		if path := filepath.Join(dir, name+discover.PatchExt); fileExists(path) {
			return path, nil
		}
	}

	return "", ErrMissingAbstraction
}

func (s *Session) locateLine(p *Patch, line *model.PatchLine) error {
	path, err := s.locate(line.Library, line.FullName, line.Name)
	if err != nil {
		return objectError(err, line.Tokens, p.Path)
	}
	line.AbstractionPath = path
	return nil
}

// recurse processes the abstraction a line instantiates. Each file is
// processed at most once per session; reaching a file that is still being
// processed is a cycle.
func (s *Session) recurse(ctx context.Context, p *Patch, line *model.PatchLine) error {
	path, err := filepath.Abs(line.AbstractionPath)
	if err != nil {
		return fmt.Errorf("resolving abstraction path: %w", err)
	}
	path = filepath.Clean(path)
	line.AbstractionPath = path

	lib := ""
	if line.Library != model.PureData {
		lib = line.Library
	}
	s.graph.AddEdge(s.rel(p.Path), s.rel(path), lib)

	if _, ok := s.inProgress[path]; ok {
		return objectError(fmt.Errorf("%w: %s", ErrCyclicAbstraction, s.rel(path)), line.Tokens, p.Path)
	}
	if _, ok := s.processed[path]; ok {
		log.Debugf("%s already processed", s.rel(path))
		return nil
	}

	base := filepath.Base(path)
	if prev, ok := s.scratch[base]; ok && prev != path {
		return objectError(fmt.Errorf("%w: %s and %s both load as %s", ErrAbstractionNameClash, s.rel(prev), s.rel(path), base), line.Tokens, p.Path)
	}
	s.scratch[base] = path

	return s.processFile(ctx, path, filepath.Join(s.opts.ScratchDir, base))
}

// resolveClone finds the abstraction a clone object instantiates. The
// -do and -di flags are skipped, as are -x and -s together with their value.
func (s *Session) resolveClone(ctx context.Context, p *Patch, line *model.PatchLine) error {
	toks := line.Tokens
	for i := 5; i < len(toks); i++ {
		switch toks[i] {
		case "-do", "-di":
			continue
		case "-x", "-s":
			i++
			continue
		}
		found, err := s.cloneTarget(ctx, p, line, i)
		if err != nil {
			return err
		}
		if found {
			line.Category = model.CloneAbstraction
			line.CloneTarget = i
			return nil
		}
	}
	return objectError(ErrUnresolvableObject, line.Tokens, p.Path)
}

// cloneTarget checks whether token i names an abstraction and, if so, fills
// in the line's library and abstraction path.
func (s *Session) cloneTarget(ctx context.Context, p *Patch, line *model.PatchLine, i int) (bool, error) {
	tok := line.Tokens[i]

	if p.HasSibling(tok) {
		line.AbstractionPath = p.SiblingPath(tok)
		return true, nil
	}
	if path := filepath.Join(s.opts.Root, tok+discover.PatchExt); fileExists(path) {
		line.AbstractionPath = path
		return true, nil
	}
	if path, ok := s.localAbs[tok]; ok {
		line.AbstractionPath = path
		return true, nil
	}

	lib, err := s.firstDeclared(ctx, s.declaredPaths, tok, "abstraction", (*library.Manifest).HasAbstraction)
	if err != nil {
		return false, err
	}
	name := tok
	if lib == "" {
		l, obj, ok := splitQualified(tok)
		if !ok || !s.reg.IsSupported(l) {
			return false, nil
		}
		m, err := s.reg.Manifest(ctx, l)
		if err != nil {
			return false, fmt.Errorf("library %s: %w", l, err)
		}
		if !m.HasAbstraction(obj) {
			return false, nil
		}
		lib, name = l, obj
	}

	path, err := s.locate(lib, tok, name)
	if err != nil {
		return false, objectError(err, line.Tokens, p.Path)
	}
	line.Library = lib
	line.AbstractionPath = path
	return true, nil
}
