// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/pd4web/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts a resolution result into TOON format.
func Encode(res *model.Result) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("patch: %s", encodeValue(res.Patch)))
	parts = append(parts, fmt.Sprintf("channels_in: %d", res.InChannels))
	parts = append(parts, fmt.Sprintf("channels_out: %d", res.OutChannels))
	parts = append(parts, fmt.Sprintf("midi: %s", strconv.FormatBool(res.MIDI)))

	var objectRows [][]string
	for i := range res.Objects {
		o := &res.Objects[i]
		objectRows = append(objectRows, []string{o.Library, o.Name, o.SetupFunction})
	}
	parts = append(parts, formatTabular("objects", []string{"library", "name", "setup"}, objectRows))

	var depRows [][]string
	for i := range res.Abstractions {
		d := &res.Abstractions[i]
		depRows = append(depRows, []string{d.Source, d.Target, d.Library})
	}
	parts = append(parts, formatTabular("abstractions", []string{"source", "target", "library"}, depRows))

	parts = append(parts, formatList("load_order", res.LoadOrder))
	parts = append(parts, formatList("gui", res.GUIReceivers))
	parts = append(parts, formatList("outputs", res.Outputs))

	if len(res.Warnings) > 0 {
		parts = append(parts, formatList("warnings", res.Warnings))
	}

	return strings.Join(parts, "\n")
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

// formatList writes a primitive array inline: name[N]: a,b,c
func formatList(name string, values []string) string {
	encoded := make([]string, len(values))
	for i, v := range values {
		encoded[i] = encodeValue(v)
	}
	if len(encoded) == 0 {
		return fmt.Sprintf("%s[0]:", name)
	}
	return fmt.Sprintf("%s[%d]: %s", name, len(values), strings.Join(encoded, ","))
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
