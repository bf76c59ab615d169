package graph

// --- Enums ---

// NodeKind classifies nodes in the code knowledge graph. The string value is
// used verbatim as the node label in the graph store.
type NodeKind string

const (
	NodeKindFile      NodeKind = "File"
	NodeKindModule    NodeKind = "Module"
	NodeKindPackage   NodeKind = "Package"
	NodeKindLibrary   NodeKind = "Library"
	NodeKindClass     NodeKind = "Class"
	NodeKindInterface NodeKind = "Interface"
	NodeKindEnum      NodeKind = "Enum"
	NodeKindStruct    NodeKind = "Struct"
	NodeKindTrait     NodeKind = "Trait"
	NodeKindFunction  NodeKind = "Function"
	NodeKindMethod    NodeKind = "Method"
	NodeKindCtor      NodeKind = "Constructor"
	NodeKindField     NodeKind = "Field"
	NodeKindVariable  NodeKind = "Variable"
	NodeKindParameter NodeKind = "Parameter"
	NodeKindImport    NodeKind = "Import"
	NodeKindExport    NodeKind = "Export"
	NodeKindDecorator NodeKind = "Decorator"

	NodeKindJavaClass     NodeKind = "JavaClass"
	NodeKindJavaInterface NodeKind = "JavaInterface"
	NodeKindJavaEnum      NodeKind = "JavaEnum"

	NodeKindKotlinClass     NodeKind = "KotlinClass"
	NodeKindKotlinObject    NodeKind = "KotlinObject"
	NodeKindKotlinInterface NodeKind = "KotlinInterface"

	NodeKindDartClass     NodeKind = "DartClass"
	NodeKindDartMixin     NodeKind = "DartMixin"
	NodeKindDartExtension NodeKind = "DartExtension"
	NodeKindDartEnum      NodeKind = "DartEnum"
)

// RelKind classifies relationships between nodes. The string value is used
// verbatim as the relationship type in the graph store.
type RelKind string

const (
	RelContains        RelKind = "CONTAINS"
	RelDefinesClass    RelKind = "DEFINES_CLASS"
	RelDefinesFunction RelKind = "DEFINES_FUNCTION"
	RelDefinesMethod   RelKind = "DEFINES_METHOD"
	RelDefinesVariable RelKind = "DEFINES_VARIABLE"
	RelHasField        RelKind = "HAS_FIELD"
	RelBelongsTo       RelKind = "BELONGS_TO"
	RelHasParameter    RelKind = "HAS_PARAMETER"
	RelDecoratedBy     RelKind = "DECORATED_BY"
	RelImports         RelKind = "IMPORTS"
	RelExports         RelKind = "EXPORTS"
	RelCalls           RelKind = "CALLS"
	RelInheritsFrom    RelKind = "INHERITS_FROM"
	RelExtends         RelKind = "EXTENDS"
	RelImplements      RelKind = "IMPLEMENTS"
	RelMixesIn         RelKind = "MIXES_IN"
)

// Dialect identifies the Cypher flavour spoken by a graph store. Statements
// are portable across dialects except for schema DDL and a handful of
// string functions.
type Dialect string

const (
	DialectNeo4j    Dialect = "neo4j"
	DialectMemgraph Dialect = "memgraph"
	DialectKuzu     Dialect = "kuzu"
	DialectMemory   Dialect = "memory"
)

// LowerFunc returns the name of the lower-case string function.
func (d Dialect) LowerFunc() string {
	if d == DialectKuzu {
		return "lower"
	}
	return "toLower"
}

// --- Kind families ---

// RootKinds are the per-file container kinds (one per parsed file).
var RootKinds = []NodeKind{NodeKindModule, NodeKindPackage, NodeKindLibrary}

// ClassLikeKinds are every kind that can own methods and fields.
var ClassLikeKinds = []NodeKind{
	NodeKindClass, NodeKindInterface, NodeKindEnum, NodeKindStruct, NodeKindTrait,
	NodeKindJavaClass, NodeKindJavaInterface, NodeKindJavaEnum,
	NodeKindKotlinClass, NodeKindKotlinObject, NodeKindKotlinInterface,
	NodeKindDartClass, NodeKindDartMixin, NodeKindDartExtension, NodeKindDartEnum,
}

// CallableKinds are kinds that take parameters and make calls.
var CallableKinds = []NodeKind{NodeKindFunction, NodeKindMethod, NodeKindCtor}

// AllNodeKinds lists every node kind in declaration order.
func AllNodeKinds() []NodeKind {
	out := []NodeKind{NodeKindFile}
	out = append(out, RootKinds...)
	out = append(out, ClassLikeKinds...)
	out = append(out, CallableKinds...)
	out = append(out,
		NodeKindField, NodeKindVariable, NodeKindParameter,
		NodeKindImport, NodeKindExport, NodeKindDecorator,
	)
	return out
}

// AllRelKinds lists every relationship kind in declaration order.
func AllRelKinds() []RelKind {
	return []RelKind{
		RelContains, RelDefinesClass, RelDefinesFunction, RelDefinesMethod,
		RelDefinesVariable, RelHasField, RelBelongsTo, RelHasParameter,
		RelDecoratedBy, RelImports, RelExports, RelCalls,
		RelInheritsFrom, RelExtends, RelImplements, RelMixesIn,
	}
}

// IsClassLike reports whether k is one of ClassLikeKinds.
func (k NodeKind) IsClassLike() bool {
	return containsKind(ClassLikeKinds, k)
}

// IsCallable reports whether k is one of CallableKinds.
func (k NodeKind) IsCallable() bool {
	return containsKind(CallableKinds, k)
}

// IsRoot reports whether k is one of RootKinds.
func (k NodeKind) IsRoot() bool {
	return containsKind(RootKinds, k)
}

func containsKind(kinds []NodeKind, k NodeKind) bool {
	for _, c := range kinds {
		if c == k {
			return true
		}
	}
	return false
}
