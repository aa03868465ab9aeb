// Package model defines core data structures for pd4web.
package model

// PureData is the library name used for vanilla Pd objects.
const PureData = "puredata"

// LineKind is the coarse kind of a patch record, taken from its first tokens.
type LineKind string

const (
	KindObject     LineKind = "obj"
	KindConnect    LineKind = "connect"
	KindMessage    LineKind = "msg"
	KindFloatAtom  LineKind = "floatatom"
	KindSymbolAtom LineKind = "symbolatom"
	KindText       LineKind = "text"
	KindRestore    LineKind = "restore"
	KindArray      LineKind = "array"
	KindDeclare    LineKind = "declare"
	KindCanvas     LineKind = "canvas"
	KindOther      LineKind = "other"
)

// Category is the resolution result for an object line. The zero value means
// the line has not been resolved.
type Category int

const (
	Unresolved Category = iota
	Native
	External
	LibraryAbstraction
	LocalAbstraction
	CloneAbstraction
	FloatLiteral
	DollarArg
)

var categoryNames = [...]string{
	Unresolved:         "unresolved",
	Native:             "native",
	External:           "external",
	LibraryAbstraction: "library-abstraction",
	LocalAbstraction:   "local-abstraction",
	CloneAbstraction:   "clone-abstraction",
	FloatLiteral:       "float-literal",
	DollarArg:          "dollar-arg",
}

// String returns the category name used in logs and reports.
func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return "unknown"
	}
	return categoryNames[c]
}

// IsAbstraction reports whether c loads another .pd file.
func (c Category) IsAbstraction() bool {
	return c == LibraryAbstraction || c == LocalAbstraction || c == CloneAbstraction
}

// PatchLine is one record of a patch file.
type PatchLine struct {
	Index  int
	Raw    string // exact bytes of the record, terminator included
	Tokens []string
	Kind   LineKind

	Category        Category
	Library         string
	Name            string // object name without library prefix
	FullName        string // object name as written in the patch
	AbstractionPath string

	SlashBuiltin        bool // one of / // /~ //~
	UIReceiver          bool
	SingleLibraryObject bool
	CloneTarget         int // token index of a clone's abstraction argument, 0 if none
}

// IsObject reports whether the line instantiates an object box.
func (l *PatchLine) IsObject() bool {
	return len(l.Tokens) >= 5 && l.Tokens[1] == "obj"
}

// NeedsRewrite reports whether the rewriter must re-emit the line from tokens.
func (l *PatchLine) NeedsRewrite() bool {
	if l.SlashBuiltin {
		return false
	}
	return l.Category == External || l.Category.IsAbstraction() || l.UIReceiver
}

// UsedObject is an external class the build step has to compile and link.
type UsedObject struct {
	Library       string
	Name          string
	SetupFunction string
}

// ClassDef is a Pd class registration found in library source code.
type ClassDef struct {
	Name  string
	Setup string // enclosing function, usually the library or class setup
	Alias bool   // registered with class_addcreator
	File  string
	Line  int
}

// Dependency represents an edge in the abstraction graph:
// Source instantiates the abstraction stored in Target.
type Dependency struct {
	Source  string
	Target  string
	Library string
}

// Result is everything a resolution run hands to the build step.
type Result struct {
	Patch        string
	Objects      []UsedObject
	Abstractions []Dependency
	LoadOrder    []string // abstraction files before the patches using them
	InChannels   int
	OutChannels  int
	MIDI         bool
	GUIReceivers []string
	Outputs      []string
	Warnings     []string
}
