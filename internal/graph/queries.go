package graph

// Named read queries. Every store answers these by name; the Cypher text
// sent to a database is rendered per dialect by the query package.
const (
	QueryFunctionsInFile       = "functions_in_file"
	QueryClassesInFile         = "classes_in_file"
	QueryMethodsInClass        = "methods_in_class"
	QueryImportsInFile         = "imports_in_file"
	QueryCallersOf             = "callers_of"
	QueryCalleesOf             = "callees_of"
	QueryClassHierarchyOf      = "class_hierarchy_of"
	QueryFileDependenciesOf    = "file_dependencies_of"
	QueryUnusedPublicFunctions = "unused_public_functions"
	QueryUnusedPublicClasses   = "unused_public_classes"
	QueryComplexFunctions      = "complex_functions"
	QueryCircularDependencies  = "circular_dependency_candidates"
	QuerySearchByName          = "search_by_name"
	QueryFileDependencyEdges   = "file_dependency_edges"
	QueryProjectStats          = "project_stats"
	QueryProjectFiles          = "project_files"
)

// Parameter keys used by the named queries.
const (
	ParamPath        = "path"
	ParamName        = "name"
	ParamThreshold   = "threshold"
	ParamPattern     = "pattern"
	ParamLimit       = "limit"
	ParamKinds       = "kinds"
	ParamCallables   = "callables"
	ParamEntryPoints = "entrypoints"
)

// EntryPoints are function names that are reachable without a visible
// caller and are never reported as unused.
var EntryPoints = []string{"main", "init", "__init__", "__main__", "setup", "teardown"}

// LabelOf returns the expression yielding the primary label of variable v.
func (d Dialect) LabelOf(v string) string {
	if d == DialectKuzu {
		return "label(" + v + ")"
	}
	return "labels(" + v + ")[0]"
}

// TypeOf returns the expression yielding the type of relationship variable v.
func (d Dialect) TypeOf(v string) string {
	if d == DialectKuzu {
		return "label(" + v + ")"
	}
	return "type(" + v + ")"
}

// KindNames converts node kinds to their label strings.
func KindNames(kinds []NodeKind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
