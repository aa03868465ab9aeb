// pd4web resolves the externals and abstractions a Pure Data patch needs and
// stages it for a WebAssembly build.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/phobologic/pd4web/internal/config"
	"github.com/phobologic/pd4web/internal/emit"
	"github.com/phobologic/pd4web/internal/library"
	"github.com/phobologic/pd4web/internal/model"
	"github.com/phobologic/pd4web/internal/patch"
	"github.com/phobologic/pd4web/internal/toon"
)

var version = "dev"

const reportHeader = "# pd4web resolution report"

var log = commonlog.GetLogger("pd4web")

var configureLogging sync.Once

func main() {
	if len(os.Args) > 1 && os.Args[1] == "init" {
		if err := runInit(os.Args[2:], os.Stdout, os.Stderr); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("pd4web", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configPath  string
		bypass      bool
		noGUI       bool
		offline     bool
		verbosity   int
		raw         bool
		showVersion bool
	)

	fs.StringVar(&configPath, "config", "", "path to pd4web.toml (default: searched upward from the patch)")
	fs.BoolVar(&bypass, "bypass-unsupported", false, "warn instead of failing on objects that cannot be built")
	fs.BoolVar(&noGUI, "no-gui", false, "leave empty GUI receivers untouched")
	fs.BoolVar(&offline, "offline", false, "never fetch library sources")
	fs.IntVar(&verbosity, "v", 0, "log verbosity (0 quiet, 1 info, 2 debug)")
	fs.BoolVar(&raw, "raw", false, "print only the TOON report")
	fs.BoolVar(&showVersion, "V", false, "show version and exit")
	fs.BoolVar(&showVersion, "version", false, "show version and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: pd4web [flags] <patch.pd>
       pd4web init [-dry-run] [project-dir]

Flags:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}

	if showVersion {
		_, _ = fmt.Fprintf(stdout, "pd4web %s\n", version)
		return nil
	}

	configureLogging.Do(func() {
		commonlog.Configure(verbosity, nil)
	})

	cfg, patchPath, err := loadProject(configPath, fs.Arg(0))
	if err != nil {
		return err
	}

	info, err := os.Stat(patchPath)
	if err != nil {
		return fmt.Errorf("patch: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s: is a directory", patchPath)
	}

	cat, err := library.DefaultCatalog()
	if err != nil {
		return err
	}
	for name, l := range cfg.Libraries {
		cat.Merge(library.Library{
			Name:         name,
			Repo:         l.Repo,
			Ref:          l.Ref,
			SingleObject: l.SingleObject,
			Unsupported:  l.Unsupported,
		})
	}

	reg, err := library.NewRegistry(library.Options{
		ExternalsDir: cfg.ExternalsDirPath(),
		ManifestPath: cfg.ManifestPath(),
		Offline:      offline || cfg.Resolve.Offline,
		Catalog:      cat,
	})
	if err != nil {
		return fmt.Errorf("opening library registry: %w", err)
	}
	log.Debugf("supported libraries: %s", strings.Join(reg.Libraries(), ", "))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	gui := cfg.GUIEnabled() && !noGUI
	session := patch.NewSession(reg, patch.Options{
		Root:              cfg.Dir,
		OutputDir:         cfg.OutputDirPath(),
		ScratchDir:        cfg.ScratchDirPath(),
		BypassUnsupported: bypass || cfg.Resolve.BypassUnsupported,
		GUI:               gui,
		GUIPrefix:         cfg.Resolve.GUIPrefix,
	})

	res, err := session.Run(ctx, patchPath)
	if err != nil {
		return err
	}

	written, err := emit.WriteFiles(cfg.OutputDirPath(), res, emit.ConfigOptions{
		GUI:   gui,
		Patch: patch.IndexFile,
	})
	if err != nil {
		return err
	}
	for _, p := range written {
		res.Outputs = append(res.Outputs, relTo(cfg.Dir, p))
	}

	log.Infof("resolved %s: %d externals, %d abstractions", res.Patch, len(res.Objects), len(res.Abstractions))
	printReport(stdout, res, raw)
	return nil
}

// loadProject finds the configuration and the top-level patch. An explicit
// config path wins; otherwise pd4web.toml is searched upward from the patch.
// Without a patch argument the config's project.patch is used.
func loadProject(configPath, patchArg string) (*config.Config, string, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case configPath != "":
		cfg, err = config.LoadFile(configPath)
	case patchArg != "":
		cfg, err = config.FindAndLoad(filepath.Dir(patchArg))
	default:
		cfg, err = config.FindAndLoad(".")
	}
	if err != nil {
		return nil, "", err
	}

	if patchArg == "" {
		if cfg.Project.Patch == "" {
			return nil, "", fmt.Errorf("no patch given and %s sets no project.patch", config.FileName)
		}
		patchArg = filepath.Join(cfg.Dir, cfg.Project.Patch)
	}

	path, err := filepath.Abs(patchArg)
	if err != nil {
		return nil, "", fmt.Errorf("resolving patch path: %w", err)
	}
	return cfg, path, nil
}

func printReport(w io.Writer, res *model.Result, raw bool) {
	if !raw {
		_, _ = fmt.Fprintln(w, reportHeader)
		_, _ = fmt.Fprintln(w)
	}
	_, _ = fmt.Fprintln(w, toon.Encode(res))
}

func relTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// flagsWithValue lists flags that take a value argument.
var flagsWithValue = map[string]bool{
	"-config": true, "--config": true,
	"-v": true, "--v": true,
}

// reorderArgs moves positional arguments after all flags so Go's flag package
// can parse them correctly (it stops at the first non-flag arg).
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(args[i]) > 0 && args[i][0] == '-' {
			flags = append(flags, args[i])
			if flagsWithValue[args[i]] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}
