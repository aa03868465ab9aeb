package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phobologic/pd4web/internal/library"
	"github.com/phobologic/pd4web/internal/patch"
)

func writeTestFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// createSampleProject writes a patch that only uses vanilla objects and one
// local abstraction, so resolving it never touches the network.
func createSampleProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeTestFile(t, dir, "main.pd", `#N canvas 0 50 450 300 12;
#X obj 30 30 osc~ 440;
#X obj 30 60 voice;
#X obj 30 90 dac~ 1 2;
#X obj 30 120 notein;
#X connect 0 0 2 0;
`)
	writeTestFile(t, dir, "voice.pd", `#N canvas 0 50 450 300 12;
#X obj 30 30 inlet~;
#X obj 30 60 outlet~;
`)
	return dir
}

func TestRunBasic(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	var stdout, stderr bytes.Buffer
	err := run([]string{"-offline", filepath.Join(dir, "main.pd")}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}

	out := stdout.String()
	if !strings.HasPrefix(out, reportHeader) {
		t.Error("missing report header")
	}
	for _, want := range []string{
		"patch: main.pd",
		"channels_out: 2",
		"midi: true",
		"objects[0]",
		"main.pd,voice.pd",
		"load_order[2]: voice.pd,main.pd",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	for _, rel := range []string{
		filepath.Join("WebPatch", patch.IndexFile),
		filepath.Join("WebPatch", "externals.cpp"),
		filepath.Join("WebPatch", "config.h"),
		filepath.Join(".tmp", "voice.pd"),
	} {
		if _, err := os.Stat(filepath.Join(dir, rel)); err != nil {
			t.Errorf("expected %s: %v", rel, err)
		}
	}

	h, err := os.ReadFile(filepath.Join(dir, "WebPatch", "config.h"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(h), "#define PD4WEB_MIDI 1") {
		t.Errorf("config.h missing MIDI flag:\n%s", h)
	}
}

func TestRunRaw(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	var stdout, stderr bytes.Buffer
	err := run([]string{filepath.Join(dir, "main.pd"), "-raw", "-offline"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}

	out := stdout.String()
	if strings.Contains(out, reportHeader) {
		t.Error("-raw should suppress the report header")
	}
	if !strings.HasPrefix(out, "patch:") {
		t.Errorf("-raw output should start with patch:, got:\n%s", out)
	}
}

func TestRunCachedExternal(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "main.pd", `#N canvas 0 50 450 300 12;
#X obj 30 30 else/mtof~;
#X obj 30 60 dac~;
`)
	writeTestFile(t, dir, "Pd4Web/Externals/Objects.json", `{
  "else": {"objs": ["mtof~"], "abs": []}
}
`)

	var stdout, stderr bytes.Buffer
	err := run([]string{"-offline", "-raw", filepath.Join(dir, "main.pd")}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}

	if !strings.Contains(stdout.String(), "else,mtof~,mtof_tilde_setup") {
		t.Errorf("missing external row:\n%s", stdout.String())
	}

	cpp, err := os.ReadFile(filepath.Join(dir, "WebPatch", "externals.cpp"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(cpp), `extern "C" void mtof_tilde_setup(void);`) {
		t.Errorf("externals.cpp missing declaration:\n%s", cpp)
	}

	index, err := os.ReadFile(filepath.Join(dir, "WebPatch", patch.IndexFile))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(index), "#X obj 30 30 mtof~;") {
		t.Errorf("library prefix should be stripped:\n%s", index)
	}
}

func TestRunOfflineMissingLibrary(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "main.pd", "#N canvas 0 50 450 300 12;\n#X obj 30 30 cyclone/counter;\n")

	var stdout, stderr bytes.Buffer
	err := run([]string{"-offline", filepath.Join(dir, "main.pd")}, &stdout, &stderr)
	if !errors.Is(err, library.ErrNotCached) {
		t.Fatalf("expected ErrNotCached, got %v", err)
	}
}

func TestRunUnresolvableObject(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "main.pd", "#N canvas 0 50 450 300 12;\n#X obj 30 30 nosuchthing 1;\n")

	var stdout, stderr bytes.Buffer
	err := run([]string{"-offline", filepath.Join(dir, "main.pd")}, &stdout, &stderr)
	if !errors.Is(err, patch.ErrUnresolvableObject) {
		t.Fatalf("expected ErrUnresolvableObject, got %v", err)
	}
	if !strings.Contains(err.Error(), "nosuchthing") {
		t.Errorf("error should name the object: %v", err)
	}
}

func TestRunProjectPatchFromConfig(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)
	writeTestFile(t, dir, "pd4web.toml", `[project]
patch = "main.pd"

[build]
output_dir = "out"
`)

	var stdout, stderr bytes.Buffer
	err := run([]string{"-offline", "-config", filepath.Join(dir, "pd4web.toml")}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "out", patch.IndexFile)); err != nil {
		t.Errorf("expected index.pd in configured output dir: %v", err)
	}
}

func TestRunNoGUI(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "main.pd", "#N canvas 0 50 450 300 12;\n#X obj 30 30 dac~;\n")

	var stdout, stderr bytes.Buffer
	if err := run([]string{"-offline", "-no-gui", filepath.Join(dir, "main.pd")}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	h, err := os.ReadFile(filepath.Join(dir, "WebPatch", "config.h"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(h), "#define PD4WEB_GUI 0") {
		t.Errorf("config.h should disable GUI:\n%s", h)
	}
}

func TestRunVersion(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	err := run([]string{"-V"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stdout.String(), "pd4web") {
		t.Errorf("version output: %q", stdout.String())
	}
}

func TestRunMissingPatch(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	err := run([]string{filepath.Join(t.TempDir(), "nope.pd")}, &stdout, &stderr)
	if err == nil {
		t.Fatal("expected error for missing patch")
	}
}

func TestRunPatchIsDirectory(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	err := run([]string{t.TempDir()}, &stdout, &stderr)
	if err == nil {
		t.Fatal("expected error for directory argument")
	}
}

func TestReorderArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"flags first", []string{"-v", "2", "main.pd"}, []string{"-v", "2", "main.pd"}},
		{"positional first", []string{"main.pd", "-v", "2"}, []string{"-v", "2", "main.pd"}},
		{"mixed", []string{"-config", "p.toml", "main.pd", "-offline"}, []string{"-config", "p.toml", "-offline", "main.pd"}},
		{"double dash", []string{"-raw", "--", "-odd.pd"}, []string{"-raw", "-odd.pd"}},
		{"no flags", []string{"main.pd"}, []string{"main.pd"}},
		{"no args", nil, nil},
		{"bool flag", []string{"-V"}, []string{"-V"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := reorderArgs(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("len: got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("index %d: got %q, want %q (full: %v)", i, got[i], tt.want[i], got)
					break
				}
			}
		})
	}
}
