package builder

import (
	"bufio"
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/codegraph/internal/syntax"
)

// Resolver rewrites raw import specifiers into project-relative file paths
// that match File node paths. It is built once per Build with the set of
// parsed files and any workspace metadata found at the project root
// (package.json workspaces, go.mod, pubspec.yaml). Paths are slash
// separated.
type Resolver struct {
	root       string
	fileSet    map[string]bool
	dirIndex   map[string][]string
	workspaces map[string]*workspace
	goModule   string
	dartName   string

	// JVM languages import by package and fully qualified type name.
	jvmPackages map[string][]string
	jvmTypes    map[string]string
}

// workspace holds metadata about a single npm/bun workspace package.
type workspace struct {
	dir            string            // project-relative directory, e.g. "packages/db"
	mainFile       string            // default export target
	subpathExports map[string]string // "./queries" -> "packages/db/src/queries.ts"
}

// NewResolver builds a Resolver from the project root and the known
// project-relative file paths.
func NewResolver(root string, files []string) *Resolver {
	r := &Resolver{
		root:        root,
		fileSet:     make(map[string]bool, len(files)),
		dirIndex:    make(map[string][]string),
		workspaces:  make(map[string]*workspace),
		jvmPackages: make(map[string][]string),
		jvmTypes:    make(map[string]string),
	}
	for _, f := range files {
		f = filepath.ToSlash(f)
		r.fileSet[f] = true
		dir := path.Dir(f)
		r.dirIndex[dir] = append(r.dirIndex[dir], f)
	}
	for dir := range r.dirIndex {
		sort.Strings(r.dirIndex[dir])
	}
	if root != "" {
		r.scanWorkspaces()
		r.scanGoMod()
		r.scanPubspec()
	}
	return r
}

// IndexPackage records that file declares package pkg (Java, Kotlin).
func (r *Resolver) IndexPackage(pkg, file string) {
	if pkg == "" {
		return
	}
	r.jvmPackages[pkg] = append(r.jvmPackages[pkg], file)
}

// IndexType records the file declaring a fully qualified type name.
func (r *Resolver) IndexType(fqn, file string) {
	if _, ok := r.jvmTypes[fqn]; !ok {
		r.jvmTypes[fqn] = file
	}
}

// Resolve returns the project files an import of spec (with the imported
// names) from fromFile refers to. External, standard library and
// unresolvable imports yield nil.
func (r *Resolver) Resolve(lang syntax.Language, spec string, names []string, fromFile string) []string {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil
	}
	switch lang {
	case syntax.TypeScript, syntax.JavaScript:
		return one(r.resolveECMA(spec, fromFile))
	case syntax.Go:
		return r.resolveGo(spec)
	case syntax.Python:
		return r.resolvePython(spec, names, fromFile)
	case syntax.Rust:
		return r.resolveRust(spec, names, fromFile)
	case syntax.Java, syntax.Kotlin:
		return r.resolveJVM(spec, fromFile)
	case syntax.Dart:
		return one(r.resolveDart(spec, fromFile))
	}
	return nil
}

func one(s string, ok bool) []string {
	if !ok {
		return nil
	}
	return []string{s}
}

// --- TypeScript / JavaScript ---

var ecmaExtensions = []string{
	".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs",
	"/index.ts", "/index.tsx", "/index.js", "/index.jsx", "/index.mjs",
}

func (r *Resolver) resolveECMA(spec, fromFile string) (string, bool) {
	if strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") {
		base := path.Join(path.Dir(fromFile), spec)
		if got, ok := r.probeFile(base, ecmaExtensions); ok {
			return got, true
		}
		// ESM sources import "./x.js" while the file on disk is x.ts.
		if ext := path.Ext(base); ext == ".js" || ext == ".jsx" || ext == ".mjs" {
			return r.probeFile(strings.TrimSuffix(base, ext), ecmaExtensions)
		}
		return "", false
	}
	return r.resolveWorkspace(spec)
}

func (r *Resolver) resolveWorkspace(spec string) (string, bool) {
	if ws, ok := r.workspaces[spec]; ok {
		return ws.mainFile, ws.mainFile != ""
	}

	// "@scope/pkg/sub/path" splits after the second slash, "pkg/sub" after
	// the first.
	var pkgName, subpath string
	if strings.HasPrefix(spec, "@") {
		first := strings.IndexByte(spec, '/')
		if first < 0 {
			return "", false
		}
		second := strings.IndexByte(spec[first+1:], '/')
		if second < 0 {
			return "", false
		}
		split := first + 1 + second
		pkgName, subpath = spec[:split], "./"+spec[split+1:]
	} else {
		slash := strings.IndexByte(spec, '/')
		if slash < 0 {
			return "", false
		}
		pkgName, subpath = spec[:slash], "./"+spec[slash+1:]
	}

	ws, ok := r.workspaces[pkgName]
	if !ok {
		return "", false
	}
	if target, ok := ws.subpathExports[subpath]; ok {
		return target, true
	}
	return r.probeFile(path.Join(ws.dir, subpath[2:]), ecmaExtensions)
}

// --- Go ---

// resolveGo maps an import path inside the project module to every
// non-test file of the imported package directory.
func (r *Resolver) resolveGo(spec string) []string {
	if r.goModule == "" {
		return nil
	}
	var rel string
	switch {
	case spec == r.goModule:
		rel = "."
	case strings.HasPrefix(spec, r.goModule+"/"):
		rel = strings.TrimPrefix(spec, r.goModule+"/")
	default:
		return nil
	}
	var out []string
	for _, f := range r.dirIndex[rel] {
		if strings.HasSuffix(f, ".go") && !strings.HasSuffix(f, "_test.go") {
			out = append(out, f)
		}
	}
	return out
}

// --- Python ---

var pyExtensions = []string{".py", "/__init__.py", ".pyi"}

func (r *Resolver) resolvePython(spec string, names []string, fromFile string) []string {
	if !strings.HasPrefix(spec, ".") {
		return one(r.resolvePythonAbsolute(spec, fromFile))
	}

	dots := len(spec) - len(strings.TrimLeft(spec, "."))
	module := spec[dots:]

	// One dot is the current package, each further dot climbs one level.
	base := path.Dir(fromFile)
	for i := 1; i < dots; i++ {
		base = path.Dir(base)
	}

	if module == "" {
		// "from . import a, b" may name submodules rather than symbols.
		var out []string
		for _, n := range names {
			if got, ok := r.probeFile(path.Join(base, n), pyExtensions); ok {
				out = append(out, got)
			}
		}
		if len(out) > 0 {
			return out
		}
		return one(r.probeFile(path.Join(base, "__init__"), []string{".py"}))
	}
	return one(r.probeFile(path.Join(base, strings.ReplaceAll(module, ".", "/")), pyExtensions))
}

// resolvePythonAbsolute tries the project root, the importing file's
// directory (script-style imports) and a src/ layout, in that order.
func (r *Resolver) resolvePythonAbsolute(spec, fromFile string) (string, bool) {
	rel := strings.ReplaceAll(spec, ".", "/")
	for _, base := range []string{
		rel,
		path.Join(path.Dir(fromFile), rel),
		path.Join("src", rel),
	} {
		if got, ok := r.probeFile(path.Clean(base), pyExtensions); ok {
			return got, true
		}
	}
	return "", false
}

// --- Rust ---

var rustExtensions = []string{".rs", "/mod.rs"}

// resolveRust resolves a use path. The parser splits `use a::b::C` into
// source "a::b" and name "C"; when the source itself is not a module the
// names are tried as submodules.
func (r *Resolver) resolveRust(spec string, names []string, fromFile string) []string {
	if i := strings.Index(spec, "::{"); i >= 0 {
		spec = spec[:i]
	}
	if got, ok := r.resolveRustPath(spec, fromFile); ok {
		return []string{got}
	}
	var out []string
	for _, n := range names {
		if n == "*" || n == "self" {
			continue
		}
		if got, ok := r.resolveRustPath(spec+"::"+n, fromFile); ok {
			out = append(out, got)
		}
	}
	return out
}

func (r *Resolver) resolveRustPath(spec, fromFile string) (string, bool) {
	switch {
	case strings.HasPrefix(spec, "crate::"):
		rel := strings.ReplaceAll(strings.TrimPrefix(spec, "crate::"), "::", "/")
		candidates := []string{path.Join("src", rel), rel}
		if crate := findCrateRoot(fromFile); crate != "" {
			candidates = append(candidates, path.Join(crate, rel))
		}
		for _, base := range candidates {
			if got, ok := r.probeFile(base, rustExtensions); ok {
				return got, true
			}
		}
		return "", false

	case strings.HasPrefix(spec, "self::"):
		rel := strings.ReplaceAll(strings.TrimPrefix(spec, "self::"), "::", "/")
		return r.probeFile(path.Join(path.Dir(fromFile), rel), rustExtensions)

	case strings.HasPrefix(spec, "super::"):
		rel := strings.ReplaceAll(strings.TrimPrefix(spec, "super::"), "::", "/")
		return r.probeFile(path.Join(path.Dir(path.Dir(fromFile)), rel), rustExtensions)
	}
	return "", false
}

// findCrateRoot walks up from a file to the nearest src directory, the
// conventional crate source root.
func findCrateRoot(file string) string {
	dir := path.Dir(file)
	for dir != "." && dir != "/" && dir != "" {
		if path.Base(dir) == "src" {
			return dir
		}
		dir = path.Dir(dir)
	}
	return ""
}

// --- Java / Kotlin ---

// resolveJVM maps a fully qualified type to its declaring file, a wildcard
// package import to every file of that package, and a top-level member
// import (Kotlin functions, static imports) to its package's files.
func (r *Resolver) resolveJVM(spec, fromFile string) []string {
	if f, ok := r.jvmTypes[spec]; ok {
		if f == fromFile {
			return nil
		}
		return []string{f}
	}
	pkg := spec
	if files, ok := r.jvmPackages[pkg]; ok {
		return without(files, fromFile)
	}
	if i := strings.LastIndexByte(spec, '.'); i > 0 {
		owner := spec[:i]
		if f, ok := r.jvmTypes[owner]; ok && f != fromFile {
			return []string{f}
		}
		if files, ok := r.jvmPackages[owner]; ok {
			return without(files, fromFile)
		}
	}
	return nil
}

func without(files []string, drop string) []string {
	var out []string
	for _, f := range files {
		if f != drop {
			out = append(out, f)
		}
	}
	return out
}

// --- Dart ---

func (r *Resolver) resolveDart(spec, fromFile string) (string, bool) {
	switch {
	case strings.HasPrefix(spec, "dart:"):
		return "", false
	case strings.HasPrefix(spec, "package:"):
		rest := strings.TrimPrefix(spec, "package:")
		slash := strings.IndexByte(rest, '/')
		if slash < 0 || r.dartName == "" || rest[:slash] != r.dartName {
			return "", false
		}
		return r.probeFile(path.Join("lib", rest[slash+1:]), nil)
	default:
		return r.probeFile(path.Join(path.Dir(fromFile), spec), []string{".dart"})
	}
}

// --- Shared helpers ---

// probeFile checks whether base, or base with one of the extensions
// appended, is a known file. No filesystem I/O.
func (r *Resolver) probeFile(base string, extensions []string) (string, bool) {
	base = path.Clean(base)
	if strings.HasPrefix(base, "../") {
		return "", false
	}
	if r.fileSet[base] {
		return base, true
	}
	for _, ext := range extensions {
		if c := base + ext; r.fileSet[c] {
			return c, true
		}
	}
	return "", false
}

// --- Workspace and module metadata ---

type packageJSON struct {
	Name       string          `json:"name"`
	Main       string          `json:"main"`
	Workspaces json.RawMessage `json:"workspaces"`
	Exports    json.RawMessage `json:"exports"`
}

func (r *Resolver) scanWorkspaces() {
	data, err := os.ReadFile(filepath.Join(r.root, "package.json"))
	if err != nil {
		return
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return
	}
	for _, pattern := range workspacePatterns(pkg.Workspaces) {
		matches, err := filepath.Glob(filepath.Join(r.root, pattern))
		if err != nil {
			continue
		}
		for _, dir := range matches {
			if info, err := os.Stat(dir); err == nil && info.IsDir() {
				r.loadWorkspace(dir)
			}
		}
	}
}

// workspacePatterns accepts both ["packages/*"] and {"packages": [...]}.
func workspacePatterns(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr
	}
	var obj struct {
		Packages []string `json:"packages"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Packages
	}
	return nil
}

func (r *Resolver) loadWorkspace(absDir string) {
	data, err := os.ReadFile(filepath.Join(absDir, "package.json"))
	if err != nil {
		return
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil || pkg.Name == "" {
		return
	}
	rel, err := filepath.Rel(r.root, absDir)
	if err != nil {
		return
	}
	ws := &workspace{dir: filepath.ToSlash(rel), subpathExports: make(map[string]string)}

	r.parseExports(ws, pkg.Exports)
	if ws.mainFile == "" && pkg.Main != "" {
		if got, ok := r.probeFile(path.Join(ws.dir, pkg.Main), ecmaExtensions); ok {
			ws.mainFile = got
		}
	}
	if ws.mainFile == "" {
		for _, try := range []string{path.Join(ws.dir, "src", "index"), path.Join(ws.dir, "index")} {
			if got, ok := r.probeFile(try, ecmaExtensions); ok {
				ws.mainFile = got
				break
			}
		}
	}
	r.workspaces[pkg.Name] = ws
}

func (r *Resolver) parseExports(ws *workspace, raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if got, ok := r.probeFile(path.Join(ws.dir, str), ecmaExtensions); ok {
			ws.mainFile = got
		}
		return
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return
	}
	for key, val := range obj {
		target := exportTarget(val)
		if target == "" {
			continue
		}
		got, ok := r.probeFile(path.Join(ws.dir, target), ecmaExtensions)
		if !ok {
			continue
		}
		if key == "." {
			ws.mainFile = got
		} else {
			ws.subpathExports[key] = got
		}
	}
}

// exportTarget extracts a file path from an export value, which is either a
// string or a conditional object preferring import, then default, then
// require.
func exportTarget(raw json.RawMessage) string {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	for _, key := range []string{"import", "default", "require"} {
		if v, ok := obj[key]; ok {
			return exportTarget(v)
		}
	}
	return ""
}

func (r *Resolver) scanGoMod() {
	f, err := os.Open(filepath.Join(r.root, "go.mod"))
	if err != nil {
		return
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "module ") {
			r.goModule = strings.Trim(strings.TrimSpace(strings.TrimPrefix(line, "module")), `"`)
			return
		}
	}
}

func (r *Resolver) scanPubspec() {
	data, err := os.ReadFile(filepath.Join(r.root, "pubspec.yaml"))
	if err != nil {
		return
	}
	var spec struct {
		Name string `yaml:"name"`
	}
	if err := yaml.Unmarshal(data, &spec); err == nil {
		r.dartName = spec.Name
	}
}
