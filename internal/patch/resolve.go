package patch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/phobologic/pd4web/internal/discover"
	"github.com/phobologic/pd4web/internal/library"
	"github.com/phobologic/pd4web/internal/model"
)

// resolve classifies an object line, checks it against its library,
// recurses into abstractions and applies the per-object side effects.
func (s *Session) resolve(ctx context.Context, p *Patch, line *model.PatchLine) error {
	if err := s.classify(ctx, p, line); err != nil {
		return err
	}

	if line.Library != model.PureData && line.Library != "" {
		if err := s.checkLibrary(ctx, p, line); err != nil {
			return err
		}
	}

	if line.Category.IsAbstraction() {
		if err := s.recurse(ctx, p, line); err != nil {
			return err
		}
	}

	s.sideEffects(line)
	return nil
}

// classify assigns exactly one category to line. The checks run in a fixed
// order and the first match wins.
func (s *Session) classify(ctx context.Context, p *Patch, line *model.PatchLine) error {
	name := line.Tokens[4]
	line.FullName = name
	line.Name = name

	if isSlashBuiltin(name) {
		line.SlashBuiltin = true
	}

	if lib, obj, ok := splitQualified(name); ok {
		// Project file such as sub/voice.pd.
		if path := filepath.Join(s.opts.Root, name+discover.PatchExt); fileExists(path) {
			line.Category = model.LocalAbstraction
			line.Name = obj
			line.AbstractionPath = path
			return nil
		}

		if !s.reg.IsSupported(lib) {
			return objectError(fmt.Errorf("%w: %s", ErrUnsupportedLibrary, lib), line.Tokens, p.Path)
		}
		m, err := s.reg.Manifest(ctx, lib)
		if err != nil {
			return fmt.Errorf("library %s: %w", lib, err)
		}

		line.Library = lib
		line.Name = obj
		if m.HasAbstraction(obj) {
			line.Category = model.LibraryAbstraction
			return s.locateLine(p, line)
		}
		line.Category = model.External
		return nil
	}

	if path, ok := s.localAbs[name]; ok {
		line.Category = model.LocalAbstraction
		line.AbstractionPath = path
		return nil
	}

	if s.reg.IsSupported(name) {
		line.Category = model.External
		line.Library = name
		line.SingleLibraryObject = true
		return nil
	}

	if lib, err := s.firstDeclared(ctx, s.declaredLibs, name, "object", (*library.Manifest).HasObject); err != nil {
		return err
	} else if lib != "" {
		line.Category = model.External
		line.Library = lib
		return nil
	}

	if lib, err := s.firstDeclared(ctx, s.declaredPaths, name, "abstraction", (*library.Manifest).HasAbstraction); err != nil {
		return err
	} else if lib != "" {
		line.Category = model.LibraryAbstraction
		line.Library = lib
		return s.locateLine(p, line)
	}

	if isFloat(name) {
		line.Category = model.FloatLiteral
		return nil
	}

	if name == "clone" {
		return s.resolveClone(ctx, p, line)
	}

	if isDollar(name) {
		line.Category = model.DollarArg
		return nil
	}

	if s.reg.IsBuiltin(name) {
		line.Category = model.Native
		return nil
	}

	if p.HasSibling(name) {
		line.Category = model.LocalAbstraction
		line.AbstractionPath = p.SiblingPath(name)
		return nil
	}

	return objectError(ErrUnresolvableObject, line.Tokens, p.Path)
}

// firstDeclared returns the first library in libs whose manifest satisfies
// has for name. More than one match is reported as a warning.
func (s *Session) firstDeclared(ctx context.Context, libs []string, name, what string, has func(*library.Manifest, string) bool) (string, error) {
	var matches []string
	for _, lib := range libs {
		m, err := s.reg.Manifest(ctx, lib)
		if err != nil {
			return "", fmt.Errorf("library %s: %w", lib, err)
		}
		if has(m, name) {
			matches = append(matches, lib)
		}
	}
	if len(matches) == 0 {
		return "", nil
	}
	if len(matches) > 1 {
		s.warn("%s %q is provided by %s; using %s", what, name, strings.Join(matches, ", "), matches[0])
	}
	return matches[0], nil
}

// checkLibrary rejects objects the library marks unsupported, makes the
// library visible to the rest of the project and records compiled classes.
func (s *Session) checkLibrary(ctx context.Context, p *Patch, line *model.PatchLine) error {
	m, err := s.reg.Manifest(ctx, line.Library)
	if err != nil {
		return fmt.Errorf("library %s: %w", line.Library, err)
	}

	name := line.Name
	if line.Category == model.CloneAbstraction {
		name = bareName(line.Tokens[line.CloneTarget])
	}
	if m.IsUnsupported(name) {
		if !s.opts.BypassUnsupported {
			return objectError(fmt.Errorf("%w: %s/%s", ErrUnsupportedObject, line.Library, name), line.Tokens, p.Path)
		}
		s.warn("%s/%s is not supported, keeping it because bypass is enabled", line.Library, name)
	}

	s.useLibrary(line.Library)

	if line.Category == model.External {
		if !m.HasObject(name) {
			s.warn("%s does not export %q", line.Library, name)
		}
		if s.used.Add(line.Library, name, m.SetupFunction(name)) {
			log.Debugf("using %s/%s", line.Library, name)
		}
	}
	return nil
}

// splitQualified splits "lib/obj" into its library and object parts. The
// reserved names "/", "//", "/~", "//~" and dollar-prefixed paths are not
// qualified.
func splitQualified(name string) (lib, obj string, ok bool) {
	if isSlashBuiltin(name) || isDollar(name) {
		return "", "", false
	}
	i := strings.Index(name, "/")
	j := strings.LastIndex(name, "/")
	if i <= 0 || j == len(name)-1 {
		return "", "", false
	}
	return name[:i], name[j+1:], true
}

func isSlashBuiltin(name string) bool {
	switch name {
	case "/", "//", "/~", "//~":
		return true
	}
	return false
}

// bareName drops everything up to the last "/".
func bareName(name string) string {
	if isSlashBuiltin(name) {
		return name
	}
	if i := strings.LastIndex(name, "/"); i >= 0 && i < len(name)-1 {
		return name[i+1:]
	}
	return name
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
