// Package syntax defines the normalized syntax tree that language plugins
// produce and the graph builder consumes. Every plugin, whether it parses in
// process or shells out to an external tool, emits the same vocabulary.
package syntax

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// MaxDepth bounds recursion over syntax trees. Subtrees below it are dropped.
const MaxDepth = 512

// ErrTooDeep is returned by Walk when a tree exceeds MaxDepth.
var ErrTooDeep = errors.New("syntax tree exceeds maximum depth")

// --- Languages ---

// Language names a supported source language.
type Language string

const (
	Python     Language = "python"
	Go         Language = "go"
	TypeScript Language = "typescript"
	JavaScript Language = "javascript"
	Rust       Language = "rust"
	Java       Language = "java"
	Kotlin     Language = "kotlin"
	Dart       Language = "dart"
)

// Languages lists every supported language.
func Languages() []Language {
	return []Language{Python, Go, TypeScript, JavaScript, Rust, Java, Kotlin, Dart}
}

var aliases = map[string]Language{
	"py":         Python,
	"python":     Python,
	"python3":    Python,
	"go":         Go,
	"golang":     Go,
	"ts":         TypeScript,
	"typescript": TypeScript,
	"tsx":        TypeScript,
	"js":         JavaScript,
	"javascript": JavaScript,
	"jsx":        JavaScript,
	"rs":         Rust,
	"rust":       Rust,
	"java":       Java,
	"kt":         Kotlin,
	"kotlin":     Kotlin,
	"dart":       Dart,
}

// ParseLanguage resolves a language name or common alias, case-insensitively.
func ParseLanguage(s string) (Language, bool) {
	l, ok := aliases[strings.ToLower(strings.TrimSpace(s))]
	return l, ok
}

var extensions = map[string]Language{
	".py":   Python,
	".pyi":  Python,
	".go":   Go,
	".ts":   TypeScript,
	".tsx":  TypeScript,
	".mts":  TypeScript,
	".cts":  TypeScript,
	".js":   JavaScript,
	".jsx":  JavaScript,
	".mjs":  JavaScript,
	".cjs":  JavaScript,
	".rs":   Rust,
	".java": Java,
	".kt":   Kotlin,
	".kts":  Kotlin,
	".dart": Dart,
}

// LanguageForPath maps a file path to a language by extension. TypeScript
// declaration files are excluded.
func LanguageForPath(path string) (Language, bool) {
	if strings.HasSuffix(path, ".d.ts") {
		return "", false
	}
	l, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return l, ok
}

// Extensions returns the file extensions mapped to lang.
func Extensions(lang Language) []string {
	var out []string
	for ext, l := range extensions {
		if l == lang {
			out = append(out, ext)
		}
	}
	return out
}

// --- Tree ---

// Kind is the language-neutral classification of a syntax node.
type Kind string

const (
	KindModule      Kind = "module"
	KindPackage     Kind = "package"
	KindLibrary     Kind = "library"
	KindClass       Kind = "class"
	KindInterface   Kind = "interface"
	KindEnum        Kind = "enum"
	KindStruct      Kind = "struct"
	KindTrait       Kind = "trait"
	KindMixin       Kind = "mixin"
	KindExtension   Kind = "extension"
	KindObject      Kind = "object"
	KindFunction    Kind = "function"
	KindMethod      Kind = "method"
	KindConstructor Kind = "constructor"
	KindField       Kind = "field"
	KindVariable    Kind = "variable"
	KindParameter   Kind = "parameter"
	KindImport      Kind = "import"
	KindExport      Kind = "export"
	KindDecorator   Kind = "decorator"
	KindCall        Kind = "call"
)

var knownKinds = map[Kind]bool{
	KindModule: true, KindPackage: true, KindLibrary: true,
	KindClass: true, KindInterface: true, KindEnum: true, KindStruct: true,
	KindTrait: true, KindMixin: true, KindExtension: true, KindObject: true,
	KindFunction: true, KindMethod: true, KindConstructor: true,
	KindField: true, KindVariable: true, KindParameter: true,
	KindImport: true, KindExport: true, KindDecorator: true, KindCall: true,
}

// Valid reports whether k is part of the shared vocabulary.
func (k Kind) Valid() bool { return knownKinds[k] }

// IsTypeLike reports whether k declares a type that can own members.
func (k Kind) IsTypeLike() bool {
	switch k {
	case KindClass, KindInterface, KindEnum, KindStruct, KindTrait,
		KindMixin, KindExtension, KindObject:
		return true
	}
	return false
}

// IsCallable reports whether k declares executable code.
func (k Kind) IsCallable() bool {
	return k == KindFunction || k == KindMethod || k == KindConstructor
}

// Node is one element of a normalized syntax tree. Fields that do not apply
// to a kind are left at their zero value. For KindCall, Name is the callee
// expression as written.
type Node struct {
	Kind      Kind   `json:"kind"`
	Name      string `json:"name"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine,omitempty"`

	Exported   bool     `json:"exported,omitempty"`
	Visibility string   `json:"visibility,omitempty"`
	Modifiers  []string `json:"modifiers,omitempty"`
	IsAsync    bool     `json:"async,omitempty"`
	IsStatic   bool     `json:"static,omitempty"`
	IsAbstract bool     `json:"abstract,omitempty"`

	// Bases are superclasses or extended types; Implements and Mixins are
	// kept apart for languages that distinguish them.
	Bases      []string `json:"bases,omitempty"`
	Implements []string `json:"implements,omitempty"`
	Mixins     []string `json:"mixins,omitempty"`

	Signature      string `json:"signature,omitempty"`
	Receiver       string `json:"receiver,omitempty"`
	TypeAnnotation string `json:"type,omitempty"`
	DefaultValue   string `json:"default,omitempty"`
	Complexity     int    `json:"complexity,omitempty"`
	Docstring      string `json:"docstring,omitempty"`

	// Source is the module specifier of an import or re-export; Names are
	// the imported or exported symbols; Alias is the local binding.
	Source string   `json:"source,omitempty"`
	Names  []string `json:"names,omitempty"`
	Alias  string   `json:"alias,omitempty"`

	Children []*Node `json:"children,omitempty"`
}

// Add appends children and returns n.
func (n *Node) Add(children ...*Node) *Node {
	for _, c := range children {
		if c != nil {
			n.Children = append(n.Children, c)
		}
	}
	return n
}

// Walk visits n and its descendants depth-first. fn receives the node and its
// parent (nil for n); returning false skips the node's children. Walk stops
// with ErrTooDeep when nesting exceeds MaxDepth.
func Walk(n *Node, fn func(node, parent *Node) bool) error {
	if n == nil {
		return nil
	}
	return walk(n, nil, 0, fn)
}

func walk(n, parent *Node, depth int, fn func(node, parent *Node) bool) error {
	if depth > MaxDepth {
		return ErrTooDeep
	}
	if !fn(n, parent) {
		return nil
	}
	for _, c := range n.Children {
		if err := walk(c, n, depth+1, fn); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of nodes in the tree rooted at n, capped by
// MaxDepth.
func Count(n *Node) int {
	count := 0
	_ = Walk(n, func(*Node, *Node) bool {
		count++
		return true
	})
	return count
}

// Validate checks that every node uses a known kind, carries a name, and
// has a positive start line.
func Validate(n *Node) error {
	var bad error
	err := Walk(n, func(node, _ *Node) bool {
		if bad != nil {
			return false
		}
		switch {
		case !node.Kind.Valid():
			bad = &InvalidNodeError{Kind: node.Kind, Line: node.StartLine, Reason: "unknown kind"}
		case node.Name == "" && node.Kind != KindExport:
			bad = &InvalidNodeError{Kind: node.Kind, Line: node.StartLine, Reason: "missing name"}
		case node.StartLine <= 0:
			bad = &InvalidNodeError{Kind: node.Kind, Line: node.StartLine, Reason: "missing start line"}
		}
		return bad == nil
	})
	if err != nil {
		return err
	}
	return bad
}

// InvalidNodeError describes a malformed node in an externally produced tree.
type InvalidNodeError struct {
	Kind   Kind
	Line   int
	Reason string
}

func (e *InvalidNodeError) Error() string {
	return fmt.Sprintf("syntax node %s at line %d: %s", e.Kind, e.Line, e.Reason)
}
