// Package parse extracts Pd class registrations from library sources using
// tree-sitter.
package parse

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/pd4web/internal/lang"
	"github.com/phobologic/pd4web/internal/model"
)

var captureMap = map[string]struct {
	Alias bool
}{
	"definition.class": {false},
	"definition.alias": {true},
}

// ExtractClasses parses a source file and returns every class it registers
// with class_new or class_addcreator.
// The parser must be created for the correct language.
// filePath is used only for ClassDef.File and should be the bundle-relative path.
func ExtractClasses(l *lang.Language, parser *sitter.Parser, query *sitter.Query, source []byte, filePath string) []model.ClassDef {
	if len(source) == 0 {
		return nil
	}

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil
	}
	defer tree.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, tree.RootNode())

	var defs []model.ClassDef

	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		match = qc.FilterPredicates(match, source)

		var nameNode, defNode *sitter.Node
		var captureName string

		for _, c := range match.Captures {
			cname := query.CaptureNameForId(c.Index)
			if cname == "name" {
				nameNode = c.Node
			} else if _, ok := captureMap[cname]; ok {
				captureName = cname
				defNode = c.Node
			}
		}

		if nameNode == nil || captureName == "" || defNode == nil {
			continue
		}

		name := ClassName(lang.NodeText(nameNode, source))
		if name == "" {
			continue
		}

		var setup string
		if l.FindEnclosingFunction != nil {
			setup = l.FindEnclosingFunction(defNode, source)
		}

		defs = append(defs, model.ClassDef{
			Name:  name,
			Setup: setup,
			Alias: captureMap[captureName].Alias,
			File:  filePath,
			Line:  int(nameNode.StartPoint().Row) + 1,
		})
	}

	return defs
}

// ClassName turns a gensym string literal into a bare class name: quotes are
// removed and a library prefix such as "cyclone/" is dropped.
func ClassName(literal string) string {
	name := strings.TrimSuffix(strings.TrimPrefix(literal, `"`), `"`)
	switch name {
	case "/", "//", "/~", "//~":
		return name
	}
	if i := strings.LastIndex(name, "/"); i >= 0 && i < len(name)-1 {
		name = name[i+1:]
	}
	return name
}
