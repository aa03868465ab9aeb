package patch

import (
	"strings"

	"github.com/phobologic/pd4web/internal/model"
)

// Render produces the rewritten patch text. Lines that load externals or
// abstractions, or whose GUI receivers were renamed, are rebuilt from their
// tokens; every other record is copied byte for byte.
func Render(lines []model.PatchLine) []byte {
	var b strings.Builder
	for i := range lines {
		if lines[i].NeedsRewrite() {
			b.WriteString(RenderLine(&lines[i]))
			continue
		}
		b.WriteString(lines[i].Raw)
	}
	return []byte(b.String())
}

// RenderLine rebuilds one object record with library prefixes stripped.
func RenderLine(line *model.PatchLine) string {
	toks := append([]string(nil), line.Tokens...)
	if line.IsObject() {
		toks[4] = bareName(toks[4])
		if line.CloneTarget > 0 && line.CloneTarget < len(toks) {
			toks[line.CloneTarget] = bareName(toks[line.CloneTarget])
		}
	}

	// Put back the comma in front of a box width ("osc~ 440, f 8").
	if n := len(toks); hasWidth(line.Raw) && n >= 7 && toks[n-2] == "f" && isInt(toks[n-1]) {
		toks[n-3] += ","
	}

	return strings.Join(toks, " ") + ";\n"
}
