package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
)

func init() {
	Languages["c"] = &Language{
		Name:                  "c",
		Extensions:            []string{".c"},
		lang:                  c.GetLanguage(),
		FindEnclosingFunction: cFindEnclosingFunction,
	}
}

// cFindEnclosingFunction walks up to the nearest function_definition and
// returns its declared name. Shared by the C and C++ grammars, which use the
// same field names for function declarators.
func cFindEnclosingFunction(node *sitter.Node, source []byte) string {
	for cur := node.Parent(); cur != nil; cur = cur.Parent() {
		if cur.Type() != "function_definition" {
			continue
		}
		return declaratorName(cur.ChildByFieldName("declarator"), source)
	}
	return ""
}

// declaratorName unwraps pointer and function declarators down to the
// identifier they name.
func declaratorName(node *sitter.Node, source []byte) string {
	for node != nil {
		switch node.Type() {
		case "identifier", "field_identifier", "qualified_identifier":
			return NodeText(node, source)
		}
		node = node.ChildByFieldName("declarator")
	}
	return ""
}
