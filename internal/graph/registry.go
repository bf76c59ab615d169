package graph

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Well-known optional property keys.
const (
	PropPath           = "path"
	PropLanguage       = "language"
	PropLineCount      = "line_count"
	PropSizeBytes      = "size_bytes"
	PropContentHash    = "content_hash"
	PropExported       = "exported"
	PropVisibility     = "visibility"
	PropSignature      = "signature"
	PropComplexity     = "complexity"
	PropBases          = "bases"
	PropInterfaces     = "interfaces"
	PropMixins         = "mixins"
	PropModifiers      = "modifiers"
	PropDecorators     = "decorators"
	PropSource         = "source"
	PropAlias          = "alias"
	PropNames          = "names"
	PropReceiver       = "receiver"
	PropIsAsync        = "is_async"
	PropIsStatic       = "is_static"
	PropIsAbstract     = "is_abstract"
	PropDefaultValue   = "default_value"
	PropTypeAnnotation = "type_annotation"
	PropDocstring      = "docstring"
	PropQualifiedName  = "qualified_name"
	PropLine           = "line"
	PropPosition       = "position"
)

// NodeSpec declares the legal shape of one node kind.
type NodeSpec struct {
	Kind NodeKind
	// Required lists bag keys that must be present in addition to the core
	// fields (id, name, file_path, start_line).
	Required []string
	// Props maps every permitted bag key, required or optional, to its
	// value type.
	Props map[string]ValueType
}

// Pair is a legal (source kind, target kind) combination.
type Pair struct {
	Source NodeKind
	Target NodeKind
}

// RelSpec declares the legal shape of one relationship kind.
type RelSpec struct {
	Kind  RelKind
	Pairs []Pair
	Props map[string]ValueType
}

// Registry is the single source of truth for which node and relationship
// shapes are legal. Registration is safe for concurrent use; validation and
// rendering never mutate the registry.
type Registry struct {
	mu    sync.RWMutex
	nodes map[NodeKind]NodeSpec
	rels  map[RelKind]relEntry
}

type relEntry struct {
	spec  RelSpec
	pairs map[Pair]bool
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		nodes: make(map[NodeKind]NodeSpec),
		rels:  make(map[RelKind]relEntry),
	}
}

// RegisterNode adds or replaces the declaration for a node kind.
func (r *Registry) RegisterNode(spec NodeSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes[spec.Kind] = spec
}

// RegisterRelationship adds or extends the declaration for a relationship kind.
// Registering the same kind twice merges the pair sets and optional keys.
func (r *Registry) RegisterRelationship(spec RelSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.rels[spec.Kind]
	if !ok {
		entry = relEntry{
			spec:  RelSpec{Kind: spec.Kind, Props: make(map[string]ValueType)},
			pairs: make(map[Pair]bool),
		}
	}
	for _, p := range spec.Pairs {
		if !entry.pairs[p] {
			entry.pairs[p] = true
			entry.spec.Pairs = append(entry.spec.Pairs, p)
		}
	}
	for k, t := range spec.Props {
		entry.spec.Props[k] = t
	}
	r.rels[spec.Kind] = entry
}

// NodeSpec returns the declaration registered for kind.
func (r *Registry) NodeSpec(kind NodeKind) (NodeSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.nodes[kind]
	return s, ok
}

// RelSpec returns the declaration registered for kind.
func (r *Registry) RelSpec(kind RelKind) (RelSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.rels[kind]
	return e.spec, ok
}

// NodeKinds returns the registered node kinds in sorted order.
func (r *Registry) NodeKinds() []NodeKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]NodeKind, 0, len(r.nodes))
	for k := range r.nodes {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RelKinds returns the registered relationship kinds in sorted order.
func (r *Registry) RelKinds() []RelKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RelKind, 0, len(r.rels))
	for k := range r.rels {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Allows reports whether rel may connect a src node to a dst node.
func (r *Registry) Allows(rel RelKind, src, dst NodeKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.rels[rel]
	return ok && e.pairs[Pair{Source: src, Target: dst}]
}

// ValidateNode checks that node has every core field and every required
// property for its kind, and that each bag entry is declared with the
// matching type. It returns nil for a valid node.
func (r *Registry) ValidateNode(node Node) error {
	spec, ok := r.NodeSpec(node.Kind)
	if !ok {
		return fmt.Errorf("%w: %w: node kind %q", ErrInvalidNode, ErrUnknownKind, node.Kind)
	}

	var missing []string
	if node.ID == "" {
		missing = append(missing, PropID)
	}
	if node.Name == "" {
		missing = append(missing, PropName)
	}
	if node.FilePath == "" {
		missing = append(missing, PropFilePath)
	}
	if node.StartLine <= 0 {
		missing = append(missing, PropStartLine)
	}
	for _, key := range spec.Required {
		if _, ok := node.Props[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s %q missing required %s",
			ErrInvalidNode, node.Kind, node.Name, strings.Join(missing, ", "))
	}

	if node.EndLine != 0 && node.EndLine < node.StartLine {
		return fmt.Errorf("%w: %s %q end_line %d before start_line %d",
			ErrInvalidNode, node.Kind, node.Name, node.EndLine, node.StartLine)
	}

	for _, key := range node.Props.Keys() {
		want, declared := spec.Props[key]
		if !declared {
			return fmt.Errorf("%w: %s %q has undeclared property %q",
				ErrInvalidNode, node.Kind, node.Name, key)
		}
		if got := node.Props[key].Type(); got != want {
			return fmt.Errorf("%w: %s %q property %q is %s, want %s",
				ErrInvalidNode, node.Kind, node.Name, key, got, want)
		}
	}
	return nil
}

// ValidateRelationship checks that edge references two ids, that its kind
// is registered, that (src, dst) is an allowed pair for that kind, and that
// its bag only carries declared properties.
func (r *Registry) ValidateRelationship(edge Edge, src, dst NodeKind) error {
	if edge.SourceID == "" || edge.TargetID == "" {
		return fmt.Errorf("%w: %s with empty endpoint id", ErrInvalidRelationship, edge.Kind)
	}
	spec, ok := r.RelSpec(edge.Kind)
	if !ok {
		return fmt.Errorf("%w: %w: relationship kind %q", ErrInvalidRelationship, ErrUnknownKind, edge.Kind)
	}
	if !r.Allows(edge.Kind, src, dst) {
		return fmt.Errorf("%w: %s not allowed from %s to %s", ErrInvalidRelationship, edge.Kind, src, dst)
	}
	for _, key := range edge.Props.Keys() {
		want, declared := spec.Props[key]
		if !declared {
			return fmt.Errorf("%w: %s has undeclared property %q", ErrInvalidRelationship, edge.Kind, key)
		}
		if got := edge.Props[key].Type(); got != want {
			return fmt.Errorf("%w: %s property %q is %s, want %s", ErrInvalidRelationship, edge.Kind, key, got, want)
		}
	}
	return nil
}
