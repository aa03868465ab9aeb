// Package config handles pd4web.toml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// FileName is the project configuration file looked up next to the patch.
const FileName = "pd4web.toml"

// Config represents a pd4web.toml project configuration.
type Config struct {
	Project   Project            `toml:"project"`
	Build     Build              `toml:"build"`
	Resolve   Resolve            `toml:"resolve"`
	Libraries map[string]Library `toml:"libraries"`

	// Dir is the directory containing the pd4web.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name  string `toml:"name"`
	Patch string `toml:"patch"`
}

// Build configures where staged files are written, relative to Dir.
type Build struct {
	OutputDir    string `toml:"output_dir"`
	ScratchDir   string `toml:"scratch_dir"`
	ExternalsDir string `toml:"externals_dir"`
	Manifest     string `toml:"manifest"`
}

// Resolve tunes the patch resolver.
type Resolve struct {
	BypassUnsupported bool   `toml:"bypass_unsupported"`
	GUI               *bool  `toml:"gui"`
	GUIPrefix         string `toml:"gui_prefix"`
	Offline           bool   `toml:"offline"`
}

// Library adds or overrides a catalog entry.
type Library struct {
	Repo         string   `toml:"repo"`
	Ref          string   `toml:"ref"`
	SingleObject bool     `toml:"single_object"`
	Unsupported  []string `toml:"unsupported"`
}

// Default returns the configuration used when a project has no pd4web.toml.
func Default(dir string) *Config {
	c := &Config{Dir: dir}
	c.applyDefaults()
	return c
}

// Load parses a pd4web.toml file from the given directory, then applies
// defaults and environment overrides.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	return LoadFile(path)
}

// LoadFile parses the configuration file at path. Dir is set to the file's
// directory.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	c.applyDefaults()
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadOrDefault loads dir/pd4web.toml when present and falls back to
// Default otherwise. Environment overrides apply in both cases.
func LoadOrDefault(dir string) (*Config, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
		return Load(dir)
	}
	c := Default(dir)
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	return c, nil
}

// FindAndLoad walks up from start looking for pd4web.toml and loads the
// first one found. Without one, the defaults for start are returned.
func FindAndLoad(start string) (*Config, error) {
	start, err := filepath.Abs(start)
	if err != nil {
		return nil, err
	}
	for dir := start; ; {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return LoadOrDefault(start)
}

func (c *Config) applyDefaults() {
	if c.Build.OutputDir == "" {
		c.Build.OutputDir = "WebPatch"
	}
	if c.Build.ScratchDir == "" {
		c.Build.ScratchDir = ".tmp"
	}
	if c.Build.ExternalsDir == "" {
		c.Build.ExternalsDir = filepath.Join("Pd4Web", "Externals")
	}
	if c.Build.Manifest == "" {
		c.Build.Manifest = filepath.Join(c.Build.ExternalsDir, "Objects.json")
	}
	if c.Resolve.GUI == nil {
		on := true
		c.Resolve.GUI = &on
	}
	if c.Resolve.GUIPrefix == "" {
		c.Resolve.GUIPrefix = "pd4web_gui"
	}
}

// applyEnv loads Dir/.env (if any) and lets PD4WEB_* variables override the
// file. Variables already set in the process environment win over .env.
func (c *Config) applyEnv() error {
	_ = godotenv.Load(filepath.Join(c.Dir, ".env"))

	var err error
	if v := os.Getenv("PD4WEB_BYPASS_UNSUPPORTED"); v != "" {
		if c.Resolve.BypassUnsupported, err = strconv.ParseBool(v); err != nil {
			return fmt.Errorf("PD4WEB_BYPASS_UNSUPPORTED: %w", err)
		}
	}
	if v := os.Getenv("PD4WEB_OFFLINE"); v != "" {
		if c.Resolve.Offline, err = strconv.ParseBool(v); err != nil {
			return fmt.Errorf("PD4WEB_OFFLINE: %w", err)
		}
	}
	if v := os.Getenv("PD4WEB_GUI"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PD4WEB_GUI: %w", err)
		}
		c.Resolve.GUI = &on
	}
	if v := os.Getenv("PD4WEB_GUI_PREFIX"); v != "" {
		c.Resolve.GUIPrefix = v
	}
	return nil
}

// GUIEnabled reports whether empty GUI receivers get synthesized names.
func (c *Config) GUIEnabled() bool {
	return c.Resolve.GUI == nil || *c.Resolve.GUI
}

// OutputDirPath returns the absolute directory of the rewritten top-level patch.
func (c *Config) OutputDirPath() string {
	return c.abs(c.Build.OutputDir)
}

// ScratchDirPath returns the absolute directory of rewritten abstractions.
func (c *Config) ScratchDirPath() string {
	return c.abs(c.Build.ScratchDir)
}

// ExternalsDirPath returns the absolute directory holding library bundles.
func (c *Config) ExternalsDirPath() string {
	return c.abs(c.Build.ExternalsDir)
}

// ManifestPath returns the absolute path of the manifest cache document.
func (c *Config) ManifestPath() string {
	return c.abs(c.Build.Manifest)
}

func (c *Config) abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// Template is written by `pd4web init` when a project has no pd4web.toml.
const Template = `[project]
name = ""
# patch = "index.pd"

[build]
output_dir = "WebPatch"
scratch_dir = ".tmp"
externals_dir = "Pd4Web/Externals"

[resolve]
bypass_unsupported = false
gui = true
gui_prefix = "pd4web_gui"
offline = false

# [libraries.mylib]
# repo = "https://github.com/me/mylib"
# ref = "v1.0"
# unsupported = []
`
