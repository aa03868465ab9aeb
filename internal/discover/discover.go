// Package discover finds patch files and library sources on disk.
package discover

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"
)

// PatchExt is the extension of Pd patch and abstraction files.
const PatchExt = ".pd"

// FileEntry represents a discovered file.
type FileEntry struct {
	Path string // Relative to the search root
	Ext  string
}

// Name returns the file name without directory and extension.
func (f FileEntry) Name() string {
	base := filepath.Base(f.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Options controls a discovery walk.
type Options struct {
	// Extensions to keep, with the leading dot. Empty keeps everything.
	Extensions []string
	// Recursive descends into subdirectories.
	Recursive bool
	// SkipHelp drops Pd help patches (*-help.pd).
	SkipHelp bool
	// SkipDirs are directory names never entered, in addition to the
	// built-in list.
	SkipDirs []string
}

var skipDirs = map[string]struct{}{
	"node_modules": {},
	".git":         {},
	".hg":          {},
	".svn":         {},
	".tmp":         {},
	"build":        {},
	"dist":         {},
	"WebPatch":     {},
}

// Files discovers files under root matching opts.
// Results are sorted by path.
func Files(root string, opts Options) ([]FileEntry, error) {
	extSet := make(map[string]struct{}, len(opts.Extensions))
	for _, e := range opts.Extensions {
		extSet[e] = struct{}{}
	}
	extraSkip := make(map[string]struct{}, len(opts.SkipDirs))
	for _, d := range opts.SkipDirs {
		extraSkip[d] = struct{}{}
	}

	gitFiles := gitLsFiles(root)
	var gi *ignore.GitIgnore
	if gitFiles == nil {
		gi = loadGitignore(root)
	}

	var results []FileEntry

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil // skip errors
		}

		name := d.Name()

		if d.IsDir() {
			if path == root {
				return nil
			}
			if !opts.Recursive {
				return filepath.SkipDir
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if _, skip := extraSkip[name]; skip {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}

		ext := filepath.Ext(name)
		if len(extSet) > 0 {
			if _, ok := extSet[ext]; !ok {
				return nil
			}
		}
		if opts.SkipHelp && IsHelpPatch(name) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}

		if gitFiles != nil {
			if _, ok := gitFiles[filepath.ToSlash(rel)]; !ok {
				return nil
			}
		} else if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		results = append(results, FileEntry{Path: rel, Ext: ext})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})

	return results, nil
}

// Patches returns the names (without .pd) of the patch files directly inside
// dir. A missing directory yields an empty set.
func Patches(dir string) (map[string]struct{}, error) {
	names := make(map[string]struct{})
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return names, nil
	}
	entries, err := Files(dir, Options{Extensions: []string{PatchExt}})
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		names[e.Name()] = struct{}{}
	}
	return names, nil
}

// Find searches root recursively for a file called name and returns its
// absolute path, or "" when there is none. The first match in path order wins.
func Find(root, name string) (string, error) {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return "", nil
	}
	entries, err := Files(root, Options{
		Extensions: []string{filepath.Ext(name)},
		Recursive:  true,
	})
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if filepath.Base(e.Path) == name {
			return filepath.Join(root, e.Path), nil
		}
	}
	return "", nil
}

// IsHelpPatch reports whether a file name is a Pd help patch.
func IsHelpPatch(name string) bool {
	return strings.HasSuffix(name, "-help"+PatchExt)
}

func gitLsFiles(root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
