package parse

import (
	"bufio"
	"bytes"
	"path"
	"regexp"
	"strings"

	"github.com/dusk-indust/codegraph/internal/syntax"
)

// --- Rules ---

// hRules are the line patterns for one language. Patterns use named groups:
// name, mods, kw, type, rest, src, alias, names, wild.
type hRules struct {
	root     syntax.Kind
	pkg      *regexp.Regexp
	imp      *regexp.Regexp
	exp      *regexp.Regexp
	typeDecl *regexp.Regexp
	function *regexp.Regexp
	ctor     *regexp.Regexp
	field    *regexp.Regexp
	// topLevel reports whether functions and variables may appear outside
	// type declarations.
	topLevel bool
}

var heuristicRules = map[syntax.Language]*hRules{
	syntax.Java: {
		root:     syntax.KindPackage,
		pkg:      regexp.MustCompile(`^package\s+(?P<name>[\w.]+)\s*;`),
		imp:      regexp.MustCompile(`^import\s+(?:static\s+)?(?P<src>[\w.]+?)(?P<wild>\.\*)?\s*;`),
		typeDecl: regexp.MustCompile(`^(?P<mods>(?:(?:public|protected|private|abstract|final|static|sealed|non-sealed|strictfp)\s+)*)(?P<kw>class|interface|enum|record|@interface)\s+(?P<name>\w+)(?P<rest>.*)$`),
		function: regexp.MustCompile(`^(?P<mods>(?:(?:public|protected|private|static|final|abstract|synchronized|native|default)\s+)*)(?:<[^>]*>\s+)?(?P<type>[\w.?]+(?:<.*>)?(?:\[\])*)\s+(?P<name>\w+)\s*\((?P<rest>.*)$`),
		ctor:     regexp.MustCompile(`^(?P<mods>(?:(?:public|protected|private)\s+)*)(?P<name>\w+)\s*\((?P<rest>.*)$`),
		field:    regexp.MustCompile(`^(?P<mods>(?:(?:public|protected|private|static|final|transient|volatile)\s+)*)(?P<type>[\w.?]+(?:<.*>)?(?:\[\])*)\s+(?P<name>\w+)\s*(?P<rest>=.*)?;$`),
	},
	syntax.Kotlin: {
		root:     syntax.KindPackage,
		topLevel: true,
		pkg:      regexp.MustCompile(`^package\s+(?P<name>[\w.]+)`),
		imp:      regexp.MustCompile(`^import\s+(?P<src>[\w.]+?)(?P<wild>\.\*)?(?:\s+as\s+(?P<alias>\w+))?\s*$`),
		typeDecl: regexp.MustCompile(`^(?P<mods>(?:(?:public|private|protected|internal|abstract|open|sealed|data|inner|enum|annotation|value|final|fun|inline)\s+)*)(?P<kw>class|interface|object)\s+(?P<name>\w+)(?P<rest>.*)$`),
		function: regexp.MustCompile(`^(?P<mods>(?:(?:public|private|protected|internal|override|open|abstract|suspend|inline|operator|infix|tailrec|external|final)\s+)*)fun\s+(?:<[^>]*>\s*)?(?:[\w.<>?]+\.)?(?P<name>\w+)\s*\((?P<rest>.*)$`),
		ctor:     regexp.MustCompile(`^(?P<mods>(?:(?:public|private|protected|internal)\s+)*)(?P<name>constructor)\s*\((?P<rest>.*)$`),
		field:    regexp.MustCompile(`^(?P<mods>(?:(?:public|private|protected|internal|override|open|lateinit|const|abstract|final)\s+)*)(?P<kw>val|var)\s+(?P<name>\w+)(?:\s*:\s*(?P<type>[^=]+?))?\s*(?P<rest>(?:=|by\s).*)?$`),
	},
	syntax.Dart: {
		root:     syntax.KindLibrary,
		topLevel: true,
		pkg:      regexp.MustCompile(`^library\s+(?P<name>[\w.]+)\s*;`),
		imp:      regexp.MustCompile(`^import\s+['"](?P<src>[^'"]+)['"](?:\s+(?:deferred\s+)?as\s+(?P<alias>\w+))?(?:\s+show\s+(?P<names>[\w,\s]+))?`),
		exp:      regexp.MustCompile(`^export\s+['"](?P<src>[^'"]+)['"](?:\s+show\s+(?P<names>[\w,\s]+))?`),
		typeDecl: regexp.MustCompile(`^(?P<mods>(?:(?:abstract|base|final|sealed|interface|mixin)\s+)*)(?P<kw>class|mixin|extension|enum)(?:\s+(?P<name>\w+))?(?P<rest>.*)$`),
		function: regexp.MustCompile(`^(?P<mods>(?:(?:static|external|abstract)\s+)*)(?:(?P<type>[\w.?]+(?:<.*>)?\??)\s+)?(?:(?:get|set|operator)\s+)?(?P<name>\w+)\s*(?:<[^>]*>)?\((?P<rest>.*)$`),
		ctor:     regexp.MustCompile(`^(?P<mods>(?:(?:const|factory|external)\s+)*)(?P<name>\w+(?:\.\w+)?)\s*\((?P<rest>.*)$`),
		field:    regexp.MustCompile(`^(?P<mods>(?:(?:static|final|const|late|var|covariant|external)\s+)*)(?:(?P<type>[\w.?]+(?:<.*>)?\??)\s+)?(?P<name>\w+)\s*(?P<rest>=.*)?;$`),
	},
}

var (
	annotationRe = regexp.MustCompile(`^@(?P<name>[\w.]+)(?:\([^)]*\))?\s*`)
	genericRe    = regexp.MustCompile(`<[^<>]*>`)

	hKeywords = map[string]bool{
		"if": true, "for": true, "while": true, "switch": true, "catch": true,
		"return": true, "new": true, "else": true, "throw": true, "case": true,
		"do": true, "try": true, "super": true, "this": true, "assert": true,
		"yield": true, "await": true, "when": true, "import": true, "package": true,
	}
)

// HasHeuristic reports whether lang has a line-scanning fallback.
func HasHeuristic(lang syntax.Language) bool {
	_, ok := heuristicRules[lang]
	return ok
}

// --- Scanner ---

type hFrame struct {
	node     *syntax.Node
	depth    int
	opened   bool
	typeLike bool
}

type hScanner struct {
	lang    syntax.Language
	rules   *hRules
	root    *syntax.Node
	stack   []*hFrame
	pending []*syntax.Node
	depth   int
	line    int
}

// ScanHeuristic builds a syntax tree for Java, Kotlin or Dart source by
// matching declarations line by line and tracking brace depth. Declarations
// inside function bodies are ignored. Languages without rules yield an empty
// root.
func ScanHeuristic(lang syntax.Language, relPath string, content []byte) *syntax.Node {
	rules, ok := heuristicRules[lang]
	if !ok {
		return &syntax.Node{Kind: syntax.KindModule, Name: relPath, StartLine: 1}
	}
	s := &hScanner{lang: lang, rules: rules}
	s.root = &syntax.Node{Kind: rules.root, Name: defaultRootName(lang, relPath), StartLine: 1}

	sc := bufio.NewScanner(bytes.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	inBlock := false
	for sc.Scan() {
		s.line++
		raw := sc.Text()
		code := strings.TrimSpace(stripLine(raw, &inBlock))
		if code == "" {
			continue
		}
		s.dropUnopened(code)
		s.match(strings.TrimSpace(raw), code)
		s.braces(code)
	}
	for _, f := range s.stack {
		f.node.EndLine = s.line
	}
	s.root.EndLine = s.line
	return s.root
}

func defaultRootName(lang syntax.Language, relPath string) string {
	p := strings.TrimSuffix(relPath, path.Ext(relPath))
	if lang == syntax.Dart {
		return p
	}
	dir := path.Dir(relPath)
	if dir == "." {
		return p
	}
	return strings.ReplaceAll(dir, "/", ".")
}

// dropUnopened pops a declaration frame whose body brace never followed on
// the next line.
func (s *hScanner) dropUnopened(code string) {
	top := s.top()
	if top == nil || top.opened || strings.HasPrefix(code, "{") || top.node.StartLine == s.line {
		return
	}
	top.node.EndLine = top.node.StartLine
	s.stack = s.stack[:len(s.stack)-1]
}

func (s *hScanner) top() *hFrame {
	if len(s.stack) == 0 {
		return nil
	}
	return s.stack[len(s.stack)-1]
}

// context returns the type that owns declarations at the current depth, and
// whether declarations are visible here at all.
func (s *hScanner) context() (*syntax.Node, bool) {
	top := s.top()
	if top == nil {
		return nil, s.depth == 0
	}
	if !top.typeLike || !top.opened {
		return nil, false
	}
	return top.node, s.depth == top.depth+1
}

func (s *hScanner) match(raw, code string) {
	r := s.rules
	if s.depth == 0 && len(s.stack) == 0 {
		if m := r.pkg.FindStringSubmatch(code); m != nil {
			s.root.Name = group(r.pkg, m, "name")
			return
		}
		if m := firstMatch(r.imp, code, raw); m != nil {
			s.root.Add(s.importNode(m))
			return
		}
		if r.exp != nil {
			if m := firstMatch(r.exp, code, raw); m != nil {
				exp := &syntax.Node{Kind: syntax.KindExport, StartLine: s.line, EndLine: s.line}
				exp.Source = group(r.exp, m, "src")
				exp.Names = splitNames(group(r.exp, m, "names"))
				exp.Name = exp.Source
				s.root.Add(exp)
				return
			}
		}
	}

	owner, visible := s.context()
	if !visible {
		return
	}

	for {
		m := annotationRe.FindStringSubmatchIndex(code)
		if m == nil || strings.HasPrefix(code, "@interface") {
			break
		}
		name := code[m[2]:m[3]]
		s.pending = append(s.pending, &syntax.Node{Kind: syntax.KindDecorator, Name: name, StartLine: s.line, EndLine: s.line})
		code = strings.TrimSpace(code[m[1]:])
	}
	if code == "" {
		return
	}

	parent := s.root
	if owner != nil {
		parent = owner
	}

	if m := r.typeDecl.FindStringSubmatch(code); m != nil {
		if t := s.typeNode(m, code); t != nil {
			parent.Add(t)
			s.open(t, code, true)
			return
		}
	}
	if owner != nil {
		if m := r.ctor.FindStringSubmatch(code); m != nil && s.isConstructor(owner, group(r.ctor, m, "name")) {
			c := s.callable(syntax.KindConstructor, group(r.ctor, m, "name"), group(r.ctor, m, "mods"), "", code)
			owner.Add(c)
			s.open(c, code, false)
			return
		}
	}
	if owner != nil || r.topLevel {
		if m := r.function.FindStringSubmatch(code); m != nil {
			name := group(r.function, m, "name")
			typ := group(r.function, m, "type")
			if !hKeywords[name] && !hKeywords[typ] {
				kind := syntax.KindFunction
				if owner != nil {
					kind = syntax.KindMethod
				}
				fn := s.callable(kind, name, group(r.function, m, "mods"), typ, code)
				if owner != nil && owner.Kind == syntax.KindInterface && !strings.Contains(code, "{") {
					fn.IsAbstract = true
				}
				parent.Add(fn)
				s.open(fn, code, false)
				return
			}
		}
		if m := r.field.FindStringSubmatch(code); m != nil {
			name := group(r.field, m, "name")
			typ := group(r.field, m, "type")
			mods := group(r.field, m, "mods") + group(r.field, m, "kw")
			if hKeywords[name] || hKeywords[typ] || (typ == "" && strings.TrimSpace(mods) == "") {
				return
			}
			kind := syntax.KindField
			if owner == nil {
				kind = syntax.KindVariable
			}
			f := &syntax.Node{Kind: kind, Name: name, StartLine: s.line, EndLine: s.line}
			f.TypeAnnotation = strings.TrimSpace(typ)
			f.DefaultValue = strings.TrimSpace(strings.TrimPrefix(group(r.field, m, "rest"), "="))
			s.modifiers(f, mods)
			f.Add(s.takePending()...)
			parent.Add(f)
		}
	}
}

func (s *hScanner) importNode(m []string) *syntax.Node {
	re := s.rules.imp
	src := group(re, m, "src")
	imp := &syntax.Node{Kind: syntax.KindImport, Name: src, Source: src, StartLine: s.line, EndLine: s.line}
	imp.Alias = group(re, m, "alias")
	switch {
	case group(re, m, "wild") != "":
		imp.Names = []string{"*"}
	case s.lang == syntax.Dart:
		imp.Names = splitNames(group(re, m, "names"))
	default:
		if i := strings.LastIndexByte(src, '.'); i >= 0 {
			imp.Names = []string{src[i+1:]}
		}
	}
	return imp
}

func (s *hScanner) typeNode(m []string, code string) *syntax.Node {
	re := s.rules.typeDecl
	kw, name, mods, rest := group(re, m, "kw"), group(re, m, "name"), group(re, m, "mods"), group(re, m, "rest")

	var kind syntax.Kind
	switch kw {
	case "interface", "@interface":
		kind = syntax.KindInterface
	case "enum":
		kind = syntax.KindEnum
	case "object":
		kind = syntax.KindObject
	case "mixin":
		kind = syntax.KindMixin
	case "extension":
		kind = syntax.KindExtension
	default:
		kind = syntax.KindClass
		if strings.Contains(mods, "enum") {
			kind = syntax.KindEnum
		}
		if s.lang == syntax.Dart && strings.Contains(mods, "interface") {
			kind = syntax.KindInterface
		}
	}
	if kind == syntax.KindExtension && (name == "" || name == "on") {
		// Unnamed Dart extension: name it after its target.
		if name == "on" {
			rest = " on" + rest
		}
		target := dartClause(rest, "on")
		if len(target) == 0 {
			return nil
		}
		name = "on " + target[0]
	}
	if name == "" || hKeywords[name] {
		return nil
	}

	t := &syntax.Node{Kind: kind, Name: name, StartLine: s.line, EndLine: s.line}
	s.modifiers(t, mods)
	t.Add(s.takePending()...)
	s.supertypes(t, rest)
	if kind == syntax.KindClass && strings.Contains(code, "(") && s.lang == syntax.Kotlin {
		// Primary constructor.
		if params := paramList(rest); params != "" || strings.HasPrefix(strings.TrimSpace(rest), "(") {
			ctor := &syntax.Node{Kind: syntax.KindConstructor, Name: "constructor", StartLine: s.line, EndLine: s.line, Exported: t.Exported, Visibility: t.Visibility}
			ctor.Add(s.params(params)...)
			t.Add(ctor)
		}
	}
	return t
}

func (s *hScanner) supertypes(t *syntax.Node, rest string) {
	rest = stripGenerics(rest)
	switch s.lang {
	case syntax.Java:
		t.Bases = javaClause(rest, "extends")
		t.Implements = javaClause(rest, "implements")

	case syntax.Kotlin:
		for _, item := range kotlinSupertypes(rest) {
			name := strings.TrimSpace(item)
			call := strings.Contains(name, "(")
			if i := strings.IndexByte(name, '('); i >= 0 {
				name = strings.TrimSpace(name[:i])
			}
			if name == "" {
				continue
			}
			if call || t.Kind == syntax.KindInterface {
				t.Bases = append(t.Bases, name)
			} else {
				t.Implements = append(t.Implements, name)
			}
		}

	case syntax.Dart:
		switch t.Kind {
		case syntax.KindMixin:
			t.Bases = dartClause(rest, "on")
		case syntax.KindExtension:
			t.TypeAnnotation = strings.Join(dartClause(rest, "on"), ", ")
		default:
			t.Bases = dartClause(rest, "extends")
			t.Mixins = dartClause(rest, "with")
		}
		t.Implements = dartClause(rest, "implements")
	}
}

func (s *hScanner) isConstructor(owner *syntax.Node, name string) bool {
	switch s.lang {
	case syntax.Kotlin:
		return name == "constructor"
	case syntax.Dart:
		base, _, _ := strings.Cut(name, ".")
		return base == owner.Name
	default:
		return name == owner.Name
	}
}

func (s *hScanner) callable(kind syntax.Kind, name, mods, ret, code string) *syntax.Node {
	fn := &syntax.Node{Kind: kind, Name: name, StartLine: s.line, EndLine: s.line}
	s.modifiers(fn, mods)
	fn.Signature = signature(code)
	fn.TypeAnnotation = strings.TrimSpace(ret)
	fn.IsAsync = strings.Contains(code, " async") || strings.Contains(mods, "suspend")
	fn.Add(s.takePending()...)
	fn.Add(s.params(paramList(code))...)
	return fn
}

// params splits a parameter list written on one line.
func (s *hScanner) params(list string) []*syntax.Node {
	var out []*syntax.Node
	for _, p := range splitTopLevel(list, ',') {
		p = strings.Trim(strings.TrimSpace(p), "{}[]")
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		var name, typ, def string
		if before, after, ok := strings.Cut(p, "="); ok {
			p, def = strings.TrimSpace(before), strings.TrimSpace(after)
		}
		switch s.lang {
		case syntax.Kotlin:
			n, t, _ := strings.Cut(p, ":")
			if words := strings.Fields(n); len(words) > 0 {
				name = words[len(words)-1]
			}
			typ = strings.TrimSpace(t)
		default:
			fields := strings.Fields(p)
			if len(fields) == 0 {
				continue
			}
			name = strings.TrimPrefix(fields[len(fields)-1], "this.")
			var typeParts []string
			for _, f := range fields[:len(fields)-1] {
				if f != "final" && f != "required" && f != "covariant" {
					typeParts = append(typeParts, f)
				}
			}
			typ = strings.Join(typeParts, " ")
		}
		name = strings.TrimPrefix(name, "...")
		if name == "" || strings.ContainsAny(name, "()<>") {
			continue
		}
		out = append(out, &syntax.Node{
			Kind: syntax.KindParameter, Name: name, StartLine: s.line, EndLine: s.line,
			TypeAnnotation: typ, DefaultValue: def,
		})
	}
	return out
}

func (s *hScanner) modifiers(n *syntax.Node, mods string) {
	n.Modifiers = strings.Fields(mods)
	for _, m := range n.Modifiers {
		switch m {
		case "abstract":
			n.IsAbstract = true
		case "static", "const":
			n.IsStatic = true
		case "public", "private", "protected", "internal":
			n.Visibility = m
		}
	}
	if n.Visibility == "" {
		switch s.lang {
		case syntax.Java:
			n.Visibility = "package"
		case syntax.Dart:
			n.Visibility = "public"
			if strings.HasPrefix(n.Name, "_") {
				n.Visibility = "private"
			}
		default:
			n.Visibility = "public"
		}
	}
	n.Exported = n.Visibility == "public"
}

// open pushes a frame for a declaration with a body. Declarations ending in
// ";" or an expression body have none.
func (s *hScanner) open(n *syntax.Node, code string, typeLike bool) {
	if !strings.Contains(code, "{") {
		if strings.HasSuffix(code, ";") || strings.Contains(code, "=") || !typeLike && s.lang != syntax.Java {
			return
		}
	}
	s.stack = append(s.stack, &hFrame{node: n, depth: s.depth, typeLike: typeLike})
}

func (s *hScanner) takePending() []*syntax.Node {
	p := s.pending
	s.pending = nil
	return p
}

// braces updates depth and closes frames whose bodies end on this line.
func (s *hScanner) braces(code string) {
	for _, ch := range code {
		switch ch {
		case '{':
			s.depth++
			if top := s.top(); top != nil && !top.opened && s.depth == top.depth+1 {
				top.opened = true
			}
		case '}':
			s.depth--
			if s.depth < 0 {
				s.depth = 0
			}
			for top := s.top(); top != nil && top.opened && s.depth <= top.depth; top = s.top() {
				top.node.EndLine = s.line
				s.stack = s.stack[:len(s.stack)-1]
			}
		}
	}
}

// --- Text helpers ---

// stripLine removes comments and blanks string contents, tracking block
// comments across lines.
func stripLine(line string, inBlock *bool) string {
	var b strings.Builder
	var quote rune
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		next := rune(0)
		if i+1 < len(runes) {
			next = runes[i+1]
		}
		switch {
		case *inBlock:
			if c == '*' && next == '/' {
				*inBlock = false
				i++
			}
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
				b.WriteRune(c)
			}
		case c == '/' && next == '/':
			return b.String()
		case c == '/' && next == '*':
			*inBlock = true
			i++
		case c == '"' || c == '\'':
			quote = c
			b.WriteRune(c)
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// firstMatch tries code, which has string contents blanked, and then the
// raw line for patterns that capture string literals.
func firstMatch(re *regexp.Regexp, code, raw string) []string {
	if m := re.FindStringSubmatch(code); m != nil {
		return m
	}
	return re.FindStringSubmatch(raw)
}

func group(re *regexp.Regexp, m []string, name string) string {
	i := re.SubexpIndex(name)
	if i < 0 || i >= len(m) {
		return ""
	}
	return m[i]
}

func splitNames(s string) []string {
	var out []string
	for _, n := range strings.Split(s, ",") {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func stripGenerics(s string) string {
	for {
		next := genericRe.ReplaceAllString(s, "")
		if next == s {
			return s
		}
		s = next
	}
}

// javaClause returns the comma-separated types after keyword, up to the next
// clause keyword or body.
func javaClause(rest, keyword string) []string {
	return clause(rest, keyword, []string{"extends", "implements", "permits", "{"})
}

func dartClause(rest, keyword string) []string {
	return clause(rest, keyword, []string{"extends", "with", "implements", "on", "{"})
}

func clause(rest, keyword string, stops []string) []string {
	fields := strings.Fields(strings.ReplaceAll(rest, "{", " { "))
	var out []string
	collecting := false
	for _, f := range fields {
		if f == keyword {
			collecting = true
			continue
		}
		if !collecting {
			continue
		}
		stop := false
		for _, s := range stops {
			if f == s {
				stop = true
			}
		}
		if stop {
			break
		}
		out = append(out, splitNames(f)...)
	}
	return out
}

// kotlinSupertypes returns the items after the ':' that follows the primary
// constructor, e.g. "(val x: Int) : Base(x), Iface {" yields "Base(x)" and
// "Iface".
func kotlinSupertypes(rest string) []string {
	depth := 0
	for i, c := range rest {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
		case '{':
			return nil
		case ':':
			if depth == 0 {
				tail := rest[i+1:]
				if j := strings.IndexByte(tail, '{'); j >= 0 {
					tail = tail[:j]
				}
				if j := strings.Index(tail, " where "); j >= 0 {
					tail = tail[:j]
				}
				return splitTopLevel(tail, ',')
			}
		}
	}
	return nil
}

// paramList returns the text inside the first balanced parentheses of s.
func paramList(s string) string {
	start := strings.IndexByte(s, '(')
	if start < 0 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[start+1 : i]
			}
		}
	}
	return s[start+1:]
}

// splitTopLevel splits s on sep outside brackets.
func splitTopLevel(s string, sep byte) []string {
	var out []string
	depth, last := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '<', '[', '{':
			depth++
		case ')', '>', ']', '}':
			depth--
		case sep:
			if depth == 0 {
				out = append(out, s[last:i])
				last = i + 1
			}
		}
	}
	if strings.TrimSpace(s[last:]) != "" {
		out = append(out, s[last:])
	}
	return out
}

func signature(code string) string {
	if i := strings.Index(code, "=>"); i >= 0 {
		code = code[:i]
	}
	if i := strings.IndexByte(code, '{'); i >= 0 {
		code = code[:i]
	}
	return strings.TrimSuffix(strings.TrimSpace(code), ";")
}
