package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakeSource = `#include "m_pd.h"

static t_class *mtof_class;

static void *mtof_new(void) { return pd_new(mtof_class); }

void mtof_tilde_setup(void) {
    mtof_class = class_new(gensym("mtof~"), (t_newmethod)mtof_new, 0, sizeof(t_object), 0, 0);
    class_addcreator((t_newmethod)mtof_new, gensym("fakelib/m2f~"), 0);
}

static t_class *noise_class;

void fakelib_setup(void) {
    noise_class = class_new(gensym("fakelib/noise"), 0, 0, sizeof(t_object), 0, 0);
}
`

type fakeFetcher struct {
	calls int
	files map[string]string
}

func (f *fakeFetcher) Fetch(_ context.Context, _ Library, dest string) error {
	f.calls++
	for name, content := range f.files {
		p := filepath.Join(dest, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := ParseCatalog([]byte(`
libraries:
  - name: fakelib
    repo: https://example.com/fakelib
    unsupported: [noise]
  - name: solo~
    repo: https://example.com/solo
    single_object: true
`))
	require.NoError(t, err)
	return c
}

func TestSetupFunctionName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"counter", "counter_setup"},
		{"mtof~", "mtof_tilde_setup"},
		{"earplug~", "earplug_tilde_setup"},
		{"play.file~", "setup_play0x2efile_tilde"},
		{"a-b", "setup_a0x2db"},
		{"x~y", "setup_x0x7ey"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SetupFunctionName(tt.name))
		})
	}
}

func TestDefaultCatalog(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)

	lib, ok := c.Get("else")
	require.True(t, ok)
	assert.Contains(t, lib.Unsupported, "sfont~")

	solo, ok := c.Get("earplug~")
	require.True(t, ok)
	assert.True(t, solo.SingleObject)

	assert.Contains(t, c.Names(), "cyclone")
}

func TestParseCatalogRejectsNamelessEntry(t *testing.T) {
	_, err := ParseCatalog([]byte("libraries:\n  - repo: x\n"))
	require.Error(t, err)
}

func TestCatalogMerge(t *testing.T) {
	c := testCatalog(t)
	c.Merge(Library{Name: "fakelib", Ref: "v2", Unsupported: []string{"bad~"}})
	c.Merge(Library{Name: "newlib", Repo: "https://example.com/new"})

	lib, _ := c.Get("fakelib")
	assert.Equal(t, "https://example.com/fakelib", lib.Repo)
	assert.Equal(t, "v2", lib.Ref)
	assert.ElementsMatch(t, []string{"noise", "bad~"}, lib.Unsupported)

	_, ok := c.Get("newlib")
	assert.True(t, ok)
}

func TestBuiltins(t *testing.T) {
	b := Builtins()
	for _, name := range []string{"osc~", "dac~", "clone", "/", "//~", "notein", "vsl"} {
		_, ok := b[name]
		assert.True(t, ok, name)
	}
	_, ok := b["counter"]
	assert.False(t, ok)
}

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "Objects.json")

	s, err := OpenStore(path)
	require.NoError(t, err)
	_, ok := s.Get("else")
	assert.False(t, ok)

	s.Put("else", Entry{Objects: []string{"counter"}})
	require.NoError(t, s.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"else": {"objs": ["counter"], "abs": []}}`, string(data))

	s2, err := OpenStore(path)
	require.NoError(t, err)
	e, ok := s2.Get("else")
	require.True(t, ok)
	assert.Equal(t, []string{"counter"}, e.Objects)
}

func TestOpenStoreInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Objects.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := OpenStore(path)
	require.Error(t, err)
}

func TestManifestQueries(t *testing.T) {
	m := NewManifest("fakelib", Entry{
		Objects:      []string{"mtof~", "noise"},
		Abstractions: []string{"helper"},
		Setup:        map[string]string{"noise": "fakelib_setup"},
	}, []string{"noise"})

	assert.True(t, m.HasObject("mtof~"))
	assert.False(t, m.HasObject("helper"))
	assert.True(t, m.HasAbstraction("helper"))
	assert.True(t, m.IsUnsupported("noise"))
	assert.False(t, m.IsUnsupported("mtof~"))
	assert.Equal(t, "fakelib_setup", m.SetupFunction("noise"))
	assert.Equal(t, "mtof_tilde_setup", m.SetupFunction("mtof~"))
}

func TestScannerScan(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"src/mtof.c":           fakeSource,
		"abs/helper.pd":        "#N canvas 0 0 450 300 12;\n",
		"abs/helper-help.pd":   "#N canvas 0 0 450 300 12;\n",
		"abs/other.pd":         "#N canvas 0 0 450 300 12;\n",
		"docs/readme.txt":      "ignored",
		"build/generated.c":    fakeSource,
		".hidden/secret.c":     fakeSource,
		"src/nested/empty.cpp": "",
	}
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}

	e, err := Scanner{Workers: 2}.Scan(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"m2f~", "mtof~", "noise"}, e.Objects)
	assert.Equal(t, []string{"helper", "other"}, e.Abstractions)
	assert.Equal(t, map[string]string{
		"m2f~":  "mtof_tilde_setup",
		"noise": "fakelib_setup",
	}, e.Setup)
}

func TestRegistryFetchesAndCaches(t *testing.T) {
	root := t.TempDir()
	fetcher := &fakeFetcher{files: map[string]string{"mtof.c": fakeSource}}
	manifestPath := filepath.Join(root, "Objects.json")

	r, err := NewRegistry(Options{
		ExternalsDir: root,
		ManifestPath: manifestPath,
		Fetcher:      fetcher,
		Catalog:      testCatalog(t),
	})
	require.NoError(t, err)

	assert.True(t, r.IsSupported("fakelib"))
	assert.False(t, r.IsSupported("cyclone"))
	assert.True(t, r.IsBuiltin("osc~"))
	assert.Equal(t, filepath.Join(root, "fakelib"), r.BundleDir("fakelib"))

	m, err := r.Manifest(context.Background(), "fakelib")
	require.NoError(t, err)
	assert.True(t, m.HasObject("mtof~"))
	assert.True(t, m.IsUnsupported("noise"))

	_, err = r.Manifest(context.Background(), "fakelib")
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)

	_, err = os.Stat(manifestPath)
	require.NoError(t, err)

	// A fresh registry reads the cache instead of fetching.
	fetcher2 := &fakeFetcher{}
	r2, err := NewRegistry(Options{
		ExternalsDir: t.TempDir(),
		ManifestPath: manifestPath,
		Fetcher:      fetcher2,
		Catalog:      testCatalog(t),
		Offline:      true,
	})
	require.NoError(t, err)
	m2, err := r2.Manifest(context.Background(), "fakelib")
	require.NoError(t, err)
	assert.True(t, m2.HasObject("m2f~"))
	assert.Equal(t, 0, fetcher2.calls)
}

func TestRegistrySingleObject(t *testing.T) {
	r, err := NewRegistry(Options{
		ExternalsDir: t.TempDir(),
		Fetcher:      &fakeFetcher{files: map[string]string{"README": "solo"}},
		Catalog:      testCatalog(t),
	})
	require.NoError(t, err)

	m, err := r.Manifest(context.Background(), "solo~")
	require.NoError(t, err)
	assert.True(t, m.HasObject("solo~"))
	assert.Equal(t, "solo_tilde_setup", m.SetupFunction("solo~"))
}

func TestRegistryErrors(t *testing.T) {
	r, err := NewRegistry(Options{
		ExternalsDir: t.TempDir(),
		Catalog:      testCatalog(t),
		Offline:      true,
	})
	require.NoError(t, err)

	_, err = r.Manifest(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrUnknownLibrary))

	_, err = r.Manifest(context.Background(), "fakelib")
	assert.True(t, errors.Is(err, ErrNotCached))
}

func TestGitFetcherSkipsPopulatedDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.c"), nil, 0o644))

	// No repository configured: would fail if a clone were attempted.
	err := GitFetcher{}.Fetch(context.Background(), Library{Name: "x"}, dir)
	assert.NoError(t, err)

	err = GitFetcher{}.Fetch(context.Background(), Library{Name: "x"}, filepath.Join(dir, "empty"))
	assert.Error(t, err)
}
