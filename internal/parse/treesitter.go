package parse

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/dusk-indust/codegraph/internal/syntax"
)

// extractor converts a tree-sitter AST into a normalized syntax tree.
type extractor interface {
	Extract(w *tsWalker, root *tree_sitter.Node, path string) *syntax.Node
}

// treeSitterPlugin parses one language with tree-sitter grammars. A new
// tree-sitter parser is created per Parse call, so one plugin serves any
// number of concurrent workers.
type treeSitterPlugin struct {
	lang     syntax.Language
	grammars map[string]*tree_sitter.Language // by file extension
	fallback *tree_sitter.Language
	ext      extractor
}

var _ Plugin = (*treeSitterPlugin)(nil)

func (p *treeSitterPlugin) Language() syntax.Language { return p.lang }

func (p *treeSitterPlugin) CanParse(path string) bool {
	lang, ok := syntax.LanguageForPath(path)
	return ok && lang == p.lang
}

func (p *treeSitterPlugin) grammarFor(path string) *tree_sitter.Language {
	if g, ok := p.grammars[strings.ToLower(filepath.Ext(path))]; ok {
		return g
	}
	return p.fallback
}

// Parse extracts the syntax tree of a single source file.
func (p *treeSitterPlugin) Parse(ctx context.Context, src SourceUnit) ParsedUnit {
	if err := ctx.Err(); err != nil {
		return failed(src, "parse cancelled: %v", err)
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(p.grammarFor(src.Path)); err != nil {
		return failed(src, "set language %s: %v", p.lang, err)
	}

	tree := parser.Parse(src.Content, nil)
	if tree == nil {
		return failed(src, "tree-sitter returned nil tree for %s", src.RelPath)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return failed(src, "syntax error at line %d", firstErrorLine(root))
	}

	w := &tsWalker{src: src.Content}
	out := p.ext.Extract(w, root, src.RelPath)
	pu := succeeded(src, out)
	if w.truncated {
		pu.Diagnostic = "syntax tree truncated at maximum depth"
	}
	return pu
}

// --- Walking helpers ---

// tsWalker carries the source bytes and per-file state through an
// extraction.
type tsWalker struct {
	src       []byte
	root      *syntax.Node
	truncated bool
}

func (w *tsWalker) text(n *tree_sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Utf8Text(w.src)
}

func (w *tsWalker) field(n *tree_sitter.Node, name string) string {
	return w.text(n.ChildByFieldName(name))
}

// tooDeep records truncation once depth passes syntax.MaxDepth.
func (w *tsWalker) tooDeep(depth int) bool {
	if depth > syntax.MaxDepth {
		w.truncated = true
		return true
	}
	return false
}

// hasChild reports whether n has a direct child (named or not) of kind.
func hasChild(n *tree_sitter.Node, kind string) bool {
	for i := uint(0); i < n.ChildCount(); i++ {
		if c := n.Child(i); c != nil && c.Kind() == kind {
			return true
		}
	}
	return false
}

func namedChildren(n *tree_sitter.Node) []*tree_sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*tree_sitter.Node, 0, n.NamedChildCount())
	for i := uint(0); i < n.NamedChildCount(); i++ {
		if c := n.NamedChild(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

func startLine(n *tree_sitter.Node) int { return int(n.StartPosition().Row) + 1 }
func endLine(n *tree_sitter.Node) int   { return int(n.EndPosition().Row) + 1 }

// newNode builds a syntax node spanning n.
func newNode(kind syntax.Kind, name string, n *tree_sitter.Node) *syntax.Node {
	return &syntax.Node{Kind: kind, Name: name, StartLine: startLine(n), EndLine: endLine(n)}
}

// firstErrorLine finds the first ERROR or MISSING node in document order.
func firstErrorLine(root *tree_sitter.Node) int {
	stack := []*tree_sitter.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.IsError() || n.IsMissing() {
			return startLine(n)
		}
		if !n.HasError() {
			continue
		}
		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			if c := n.Child(uint(i)); c != nil {
				stack = append(stack, c)
			}
		}
	}
	return startLine(root)
}

// scan visits every descendant of n with an explicit work stack, skipping
// the subtrees whose kind is in stop. fn returns false to skip a subtree.
func scan(n *tree_sitter.Node, stop map[string]bool, fn func(*tree_sitter.Node) bool) {
	if n == nil {
		return
	}
	stack := namedChildren(n)
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if stop[c.Kind()] {
			continue
		}
		if !fn(c) {
			continue
		}
		kids := namedChildren(c)
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
}

// complexity returns 1 plus the number of branch points inside body, not
// counting nested definitions.
func complexity(body *tree_sitter.Node, stop map[string]bool, isBranch func(*tree_sitter.Node) bool) int {
	n := 1
	scan(body, stop, func(c *tree_sitter.Node) bool {
		if isBranch(c) {
			n++
		}
		return true
	})
	return n
}

// collectCalls returns one call node per call expression inside body, not
// descending into nested definitions. calleeField names the field holding
// the callee for each call kind.
func (w *tsWalker) collectCalls(body *tree_sitter.Node, stop map[string]bool, calleeField map[string]string) []*syntax.Node {
	var out []*syntax.Node
	scan(body, stop, func(c *tree_sitter.Node) bool {
		field, ok := calleeField[c.Kind()]
		if !ok {
			return true
		}
		callee := strings.TrimSpace(w.field(c, field))
		if callee != "" && !strings.ContainsAny(callee, "\n(") {
			out = append(out, newNode(syntax.KindCall, callee, c))
		}
		return true
	})
	return out
}

// operatorIs reports whether a binary node's operator is one of ops.
func (w *tsWalker) operatorIs(n *tree_sitter.Node, ops ...string) bool {
	op := w.field(n, "operator")
	for _, o := range ops {
		if op == o {
			return true
		}
	}
	return false
}

// firstLine returns the first line of s, trimmed.
func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// countLines counts the number of lines in source by counting newline bytes
// and adding one for the final line if the source is non-empty.
func countLines(source []byte) int {
	if len(source) == 0 {
		return 0
	}
	n := bytes.Count(source, []byte{'\n'}) + 1
	if source[len(source)-1] == '\n' {
		n--
	}
	return n
}
