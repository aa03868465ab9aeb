package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phobologic/pd4web/internal/config"
)

// TestApplySectionCreate verifies that applySection on empty content returns
// the section with a trailing newline.
func TestApplySectionCreate(t *testing.T) {
	t.Parallel()
	section := sentinelStart + "\nWebPatch/\n" + sentinelEnd
	got := applySection("", section)
	if got != section+"\n" {
		t.Errorf("applySection on empty content = %q", got)
	}
}

// TestApplySectionAppend verifies that existing content without a sentinel block
// is preserved and the section is appended after a blank line.
func TestApplySectionAppend(t *testing.T) {
	t.Parallel()
	existing := "*.o\nbuild/"
	section := sentinelStart + "\nWebPatch/\n" + sentinelEnd
	got := applySection(existing, section)

	want := existing + "\n\n" + section + "\n"
	if got != want {
		t.Errorf("applySection append:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

// TestApplySectionUpdate verifies that an existing sentinel block is replaced
// precisely, leaving surrounding content intact.
func TestApplySectionUpdate(t *testing.T) {
	t.Parallel()
	before := "*.o\n\n"
	after := "\n\nnode_modules/\n"
	old := before + sentinelStart + "\nold/\n" + sentinelEnd + after

	section := sentinelStart + "\nWebPatch/\n" + sentinelEnd
	got := applySection(old, section)

	if got != before+section+after {
		t.Errorf("applySection update:\n%s", got)
	}
	if strings.Contains(got, "old/") {
		t.Error("old block content should be replaced")
	}
}

func TestGenerateSection(t *testing.T) {
	t.Parallel()
	section := generateSection(config.Default(t.TempDir()))

	for _, want := range []string{sentinelStart, "WebPatch/", ".tmp/", "Pd4Web/Externals/", sentinelEnd} {
		if !strings.Contains(section, want) {
			t.Errorf("generated section missing %q:\n%s", want, section)
		}
	}
	if !strings.HasPrefix(section, sentinelStart) || !strings.HasSuffix(section, sentinelEnd) {
		t.Errorf("section should be wrapped in sentinels:\n%s", section)
	}
}

// TestInitCreatesFiles verifies that init writes pd4web.toml and a .gitignore
// block into an empty project.
func TestInitCreatesFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	var stdout, stderr bytes.Buffer
	if err := runInit([]string{dir}, &stdout, &stderr); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	toml, err := os.ReadFile(filepath.Join(dir, config.FileName))
	if err != nil {
		t.Fatalf("%s not created: %v", config.FileName, err)
	}
	if string(toml) != config.Template {
		t.Errorf("unexpected %s content:\n%s", config.FileName, toml)
	}

	ignore, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	if err != nil {
		t.Fatalf(".gitignore not created: %v", err)
	}
	if !strings.Contains(string(ignore), sentinelStart) {
		t.Error("sentinel start missing from .gitignore")
	}

	// The written template must load back cleanly.
	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("loading generated config: %v", err)
	}
	if cfg.Build.OutputDir != "WebPatch" {
		t.Errorf("OutputDir = %q, want WebPatch", cfg.Build.OutputDir)
	}
}

// TestInitKeepsExistingConfig verifies that init never overwrites a
// pd4web.toml the user already has.
func TestInitKeepsExistingConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, config.FileName)
	existing := "[project]\nname = \"mine\"\n"
	if err := os.WriteFile(path, []byte(existing), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if err := runInit([]string{dir}, &stdout, &stderr); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != existing {
		t.Errorf("existing config was modified:\n%s", data)
	}
}

// TestInitDryRun verifies that -dry-run prints both would-be files to stdout
// and touches nothing on disk.
func TestInitDryRun(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	var stdout, stderr bytes.Buffer
	if err := runInit([]string{"-dry-run", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	for _, name := range []string{config.FileName, ".gitignore"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			t.Errorf("-dry-run should not create %s", name)
		}
	}
	out := stdout.String()
	if !strings.Contains(out, "[build]") {
		t.Error("dry-run output missing config template")
	}
	if !strings.Contains(out, sentinelEnd) {
		t.Error("dry-run output missing sentinel end")
	}
}

// TestInitDryRunShowsFullFile verifies that -dry-run on an existing .gitignore
// shows the complete would-be content, including surrounding entries.
func TestInitDryRunShowsFullFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, ".gitignore")

	existing := "*.o\n"
	if err := os.WriteFile(path, []byte(existing), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if err := runInit([]string{"-dry-run", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	if !strings.Contains(stdout.String(), "*.o\n") {
		t.Error("dry-run output missing existing entries")
	}
	data, _ := os.ReadFile(path)
	if string(data) != existing {
		t.Error("-dry-run must not modify the file")
	}
}

// TestInitIdempotent verifies that running init twice produces identical output.
func TestInitIdempotent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, ".gitignore")

	var buf bytes.Buffer
	if err := runInit([]string{dir}, &buf, &buf); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first, _ := os.ReadFile(path)

	if err := runInit([]string{dir}, &buf, &buf); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second, _ := os.ReadFile(path)

	if string(first) != string(second) {
		t.Errorf("init is not idempotent:\nfirst:\n%s\nsecond:\n%s", first, second)
	}
}

func TestInitCreatesMissingDir(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "new-project")

	var stdout, stderr bytes.Buffer
	if err := runInit([]string{dir}, &stdout, &stderr); err != nil {
		t.Fatalf("runInit: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, config.FileName)); err != nil {
		t.Errorf("expected %s: %v", config.FileName, err)
	}
}
