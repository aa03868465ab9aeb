// Package emit writes the C++ sources that hand a resolution result to the
// WebAssembly build.
package emit

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/template"

	"github.com/phobologic/pd4web/internal/model"
)

const (
	// ExternalsFile declares and calls every external's setup function.
	ExternalsFile = "externals.cpp"
	// ConfigFile carries the channel, MIDI and GUI build macros.
	ConfigFile = "config.h"

	defaultOutChannels = 2
)

var externalsTmpl = template.Must(template.New(ExternalsFile).Parse(`// Generated by pd4web. Do not edit.
#include <m_pd.h>

{{range .}}extern "C" void {{.SetupFunction}}(void);
{{end}}
void Pd4WebInitExternals() {
{{- range .}}
    {{.SetupFunction}}(); // {{.Library}}/{{.Name}}
{{- end}}
}
`))

var configTmpl = template.Must(template.New(ConfigFile).Parse(`// Generated by pd4web. Do not edit.
#pragma once

#define PD4WEB_CHS_IN {{.In}}
#define PD4WEB_CHS_OUT {{.Out}}
#define PD4WEB_MIDI {{.MIDI}}
#define PD4WEB_GUI {{.GUI}}
{{- if .Patch}}
#define PD4WEB_PATCH "{{.Patch}}"
{{- end}}
`))

// ConfigOptions carries build settings that are not part of the Result.
type ConfigOptions struct {
	GUI bool
	// Patch is the rewritten patch the runtime opens, such as "index.pd".
	Patch string
}

// Externals writes externals.cpp: one declaration per distinct setup
// function and an initializer calling them in first-use order.
func Externals(w io.Writer, objects []model.UsedObject) error {
	seen := make(map[string]struct{}, len(objects))
	var uniq []model.UsedObject
	for _, o := range objects {
		if _, dup := seen[o.SetupFunction]; dup || o.SetupFunction == "" {
			continue
		}
		seen[o.SetupFunction] = struct{}{}
		uniq = append(uniq, o)
	}
	if err := externalsTmpl.Execute(w, uniq); err != nil {
		return fmt.Errorf("rendering %s: %w", ExternalsFile, err)
	}
	return nil
}

// Config writes config.h.
func Config(w io.Writer, res *model.Result, opts ConfigOptions) error {
	out := res.OutChannels
	if out == 0 {
		out = defaultOutChannels
	}
	data := struct {
		In, Out   int
		MIDI, GUI string
		Patch     string
	}{
		In:    res.InChannels,
		Out:   out,
		MIDI:  boolMacro(res.MIDI),
		GUI:   boolMacro(opts.GUI),
		Patch: opts.Patch,
	}
	if err := configTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("rendering %s: %w", ConfigFile, err)
	}
	return nil
}

// WriteFiles writes externals.cpp and config.h into dir and returns their
// paths.
func WriteFiles(dir string, res *model.Result, opts ConfigOptions) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}

	var written []string
	for _, f := range []struct {
		name   string
		render func(io.Writer) error
	}{
		{ExternalsFile, func(w io.Writer) error { return Externals(w, res.Objects) }},
		{ConfigFile, func(w io.Writer) error { return Config(w, res, opts) }},
	} {
		path := filepath.Join(dir, f.name)
		if err := writeFile(path, f.render); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeFile(path string, render func(io.Writer) error) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()
	return render(file)
}

func boolMacro(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
