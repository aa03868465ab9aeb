package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/phobologic/pd4web/internal/config"
)

const (
	sentinelStart = "# pd4web:start"
	sentinelEnd   = "# pd4web:end"
)

// runInit implements `pd4web init`: it writes a default pd4web.toml when the
// project has none and keeps a pd4web block in .gitignore up to date.
func runInit(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("pd4web init", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var dryRun bool
	fs.BoolVar(&dryRun, "dry-run", false, "print what would be written without modifying any file")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: pd4web init [flags] [project-dir]

Create pd4web.toml in the project directory (unless it already exists) and add
the build staging directories to .gitignore. The .gitignore entries are wrapped
in sentinel comments so later runs update them in place.

project-dir defaults to the current directory.

Flags:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	dir := "."
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}

	cfg := config.Default(dir)
	section := generateSection(cfg)

	tomlPath := filepath.Join(dir, config.FileName)
	_, statErr := os.Stat(tomlPath)
	writeToml := os.IsNotExist(statErr)

	ignorePath := filepath.Join(dir, ".gitignore")
	existing, _ := os.ReadFile(ignorePath)
	updated := applySection(string(existing), section)

	if dryRun {
		if writeToml {
			_, _ = fmt.Fprintf(stdout, "# %s\n%s\n", tomlPath, config.Template)
		}
		_, _ = fmt.Fprintf(stdout, "# %s\n%s", ignorePath, updated)
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	if writeToml {
		if err := os.WriteFile(tomlPath, []byte(config.Template), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", tomlPath, err)
		}
		_, _ = fmt.Fprintf(stderr, "wrote %s\n", tomlPath)
	}
	if err := os.WriteFile(ignorePath, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", ignorePath, err)
	}

	_, _ = fmt.Fprintf(stderr, "wrote pd4web section to %s\n", ignorePath)
	return nil
}

// generateSection returns the sentinel-wrapped .gitignore block listing the
// directories pd4web writes to.
func generateSection(cfg *config.Config) string {
	lines := []string{
		sentinelStart,
		"# Generated by pd4web init; edits between the markers are overwritten.",
	}
	for _, d := range []string{cfg.Build.OutputDir, cfg.Build.ScratchDir, cfg.Build.ExternalsDir} {
		lines = append(lines, filepath.ToSlash(d)+"/")
	}
	lines = append(lines, sentinelEnd)
	return strings.Join(lines, "\n")
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not. It is a pure function for easy testing.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	// Append, ensuring a blank line separator.
	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if len(content) > 0 {
		content += "\n"
	}
	return content + section + "\n"
}
