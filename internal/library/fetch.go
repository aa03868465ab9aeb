package library

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Fetcher places a library's sources in dest.
type Fetcher interface {
	Fetch(ctx context.Context, lib Library, dest string) error
}

// GitFetcher clones the library repository with the git binary.
type GitFetcher struct{}

// Fetch clones lib.Repo into dest at lib.Ref (default branch when empty).
// An existing non-empty dest is left untouched.
func (GitFetcher) Fetch(ctx context.Context, lib Library, dest string) error {
	if hasEntries(dest) {
		return nil
	}
	if lib.Repo == "" {
		return fmt.Errorf("library %q has no repository", lib.Name)
	}
	return gitClone(ctx, lib.Repo, lib.Ref, dest)
}

// gitClone shallow-clones url into dest, optionally at a tag or branch.
func gitClone(ctx context.Context, url, ref, dest string) error {
	args := []string{"clone", "--quiet", "--depth", "1", "--recurse-submodules"}
	if ref != "" {
		args = append(args, "--branch", ref)
	}
	args = append(args, url, dest)

	cmd := exec.CommandContext(ctx, "git", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git clone %s: %s: %w", url, strings.TrimSpace(string(out)), err)
	}
	return nil
}

func hasEntries(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}
