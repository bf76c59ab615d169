package graph

import (
	"fmt"
	"sort"
	"strings"
)

// Op classifies a Statement.
type Op string

const (
	OpCreateNode Op = "create_node"
	OpCreateRel  Op = "create_rel"
	OpSchema     Op = "schema"
	OpQuery      Op = "query"
)

// Reserved parameter names for relationship endpoints.
const (
	ParamSource = "src"
	ParamTarget = "dst"
)

// Statement is a parameterized Cypher command. Name identifies named queries
// and is empty for mutations; Label is the node label or relationship type a
// mutation writes.
type Statement struct {
	Op     Op             `json:"op"`
	Name   string         `json:"name,omitempty"`
	Label  string         `json:"label,omitempty"`
	Text   string         `json:"text"`
	Params map[string]any `json:"params,omitempty"`
}

// NewQuery returns a read Statement with normalized parameters.
func NewQuery(name, text string, params map[string]any) Statement {
	return Statement{Op: OpQuery, Name: name, Text: text, Params: NormalizeParams(params)}
}

// String returns the statement text.
func (s Statement) String() string { return s.Text }

// NormalizeParams converts Go values into the shapes every store accepts:
// all integers become int64 and string lists stay []string.
func NormalizeParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		switch n := v.(type) {
		case int:
			out[k] = int64(n)
		case int32:
			out[k] = int64(n)
		case uint:
			out[k] = int64(n)
		case uint32:
			out[k] = int64(n)
		case Value:
			out[k] = n.Any()
		default:
			out[k] = v
		}
	}
	return out
}

// --- Mutations ---

// RenderCreateNode validates node and renders its CREATE statement. Keys are
// emitted in sorted order so identical nodes render identical text.
func (r *Registry) RenderCreateNode(node Node) (Statement, error) {
	if err := r.ValidateNode(node); err != nil {
		return Statement{}, err
	}
	props := node.Properties()
	keys := sortedKeys(props)

	var b strings.Builder
	b.WriteString("CREATE (n:")
	b.WriteString(Ident(string(node.Kind)))
	b.WriteString(" {")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: $%s", k, k)
	}
	b.WriteString("})")

	return Statement{
		Op:     OpCreateNode,
		Label:  string(node.Kind),
		Text:   b.String(),
		Params: props,
	}, nil
}

// RenderCreateRelationship validates edge against the endpoint kinds and
// renders a statement that matches both endpoints by label and id before
// creating the relationship.
func (r *Registry) RenderCreateRelationship(edge Edge, src, dst NodeKind) (Statement, error) {
	if err := r.ValidateRelationship(edge, src, dst); err != nil {
		return Statement{}, err
	}
	params := make(map[string]any, len(edge.Props)+2)
	params[ParamSource] = edge.SourceID
	params[ParamTarget] = edge.TargetID

	var b strings.Builder
	fmt.Fprintf(&b, "MATCH (a:%s {id: $%s}), (b:%s {id: $%s}) CREATE (a)-[r:%s",
		Ident(string(src)), ParamSource, Ident(string(dst)), ParamTarget, edge.Kind)
	if keys := edge.Props.Keys(); len(keys) > 0 {
		b.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s: $%s", k, k)
			params[k] = edge.Props[k].Any()
		}
		b.WriteString("}")
	}
	b.WriteString("]->(b)")

	return Statement{
		Op:     OpCreateRel,
		Label:  string(edge.Kind),
		Text:   b.String(),
		Params: params,
	}, nil
}

// --- Schema ---

// RenderSchema returns the DDL that prepares a store of the given dialect for
// the registered shapes. Node statements always precede relationship
// statements.
func (r *Registry) RenderSchema(d Dialect) []Statement {
	switch d {
	case DialectKuzu:
		return r.kuzuSchema()
	case DialectMemgraph:
		var out []Statement
		for _, k := range r.NodeKinds() {
			out = append(out, Statement{
				Op:    OpSchema,
				Label: string(k),
				Text:  fmt.Sprintf("CREATE INDEX ON :%s(id)", Ident(string(k))),
			})
		}
		return out
	default:
		var out []Statement
		for _, k := range r.NodeKinds() {
			out = append(out, Statement{
				Op:    OpSchema,
				Label: string(k),
				Text: fmt.Sprintf("CREATE INDEX ckg_%s_id IF NOT EXISTS FOR (n:%s) ON (n.id)",
					strings.ToLower(string(k)), Ident(string(k))),
			})
		}
		return out
	}
}

func (r *Registry) kuzuSchema() []Statement {
	var out []Statement
	for _, k := range r.NodeKinds() {
		spec, _ := r.NodeSpec(k)
		cols := []string{
			"id STRING",
			"name STRING",
			"file_path STRING",
			"start_line INT64",
			"end_line INT64",
		}
		for _, key := range sortedKeys(spec.Props) {
			cols = append(cols, key+" "+kuzuType(spec.Props[key]))
		}
		cols = append(cols, "PRIMARY KEY(id)")
		out = append(out, Statement{
			Op:    OpSchema,
			Label: string(k),
			Text:  fmt.Sprintf("CREATE NODE TABLE IF NOT EXISTS %s(%s)", Ident(string(k)), strings.Join(cols, ", ")),
		})
	}
	for _, k := range r.RelKinds() {
		spec, _ := r.RelSpec(k)
		var parts []string
		for _, p := range spec.Pairs {
			parts = append(parts, fmt.Sprintf("FROM %s TO %s", Ident(string(p.Source)), Ident(string(p.Target))))
		}
		for _, key := range sortedKeys(spec.Props) {
			parts = append(parts, key+" "+kuzuType(spec.Props[key]))
		}
		out = append(out, Statement{
			Op:    OpSchema,
			Label: string(k),
			Text:  fmt.Sprintf("CREATE REL TABLE IF NOT EXISTS %s(%s)", k, strings.Join(parts, ", ")),
		})
	}
	return out
}

// Ident quotes a label so that labels colliding with reserved words (Struct,
// Enum) stay legal in every dialect.
func Ident(name string) string {
	return "`" + name + "`"
}

func kuzuType(t ValueType) string {
	switch t {
	case ValueInt:
		return "INT64"
	case ValueBool:
		return "BOOLEAN"
	case ValueStringList:
		return "STRING[]"
	default:
		return "STRING"
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
