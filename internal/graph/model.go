package graph

import (
	"fmt"
	"sort"
)

// ValueType is the type of a property value. Property bags only carry the
// four scalar/array shapes the graph stores agree on.
type ValueType int

const (
	ValueString ValueType = iota + 1
	ValueInt
	ValueBool
	ValueStringList
)

// String returns the type name used in diagnostics.
func (t ValueType) String() string {
	switch t {
	case ValueString:
		return "string"
	case ValueInt:
		return "int"
	case ValueBool:
		return "bool"
	case ValueStringList:
		return "string-list"
	default:
		return "invalid"
	}
}

// Value is a typed property value. The zero Value is invalid.
type Value struct {
	typ  ValueType
	str  string
	num  int64
	flag bool
	list []string
}

// String returns a string Value.
func String(s string) Value { return Value{typ: ValueString, str: s} }

// Int returns an int Value.
func Int(n int) Value { return Value{typ: ValueInt, num: int64(n)} }

// Bool returns a bool Value.
func Bool(b bool) Value { return Value{typ: ValueBool, flag: b} }

// Strings returns a string-list Value. The slice is copied.
func Strings(l []string) Value {
	cp := make([]string, len(l))
	copy(cp, l)
	return Value{typ: ValueStringList, list: cp}
}

// Type returns the value's type, or 0 for the zero Value.
func (v Value) Type() ValueType { return v.typ }

// Str returns the string payload ("" for other types).
func (v Value) Str() string { return v.str }

// Int64 returns the int payload (0 for other types).
func (v Value) Int64() int64 { return v.num }

// Flag returns the bool payload (false for other types).
func (v Value) Flag() bool { return v.flag }

// List returns a copy of the string-list payload (nil for other types).
func (v Value) List() []string {
	if v.list == nil {
		return nil
	}
	cp := make([]string, len(v.list))
	copy(cp, v.list)
	return cp
}

// Any returns the payload as a plain Go value suitable for statement
// parameters. Ints are always int64.
func (v Value) Any() any {
	switch v.typ {
	case ValueString:
		return v.str
	case ValueInt:
		return v.num
	case ValueBool:
		return v.flag
	case ValueStringList:
		return v.List()
	default:
		return nil
	}
}

// GoString implements fmt.GoStringer for readable test failures.
func (v Value) GoString() string {
	return fmt.Sprintf("%s(%v)", v.typ, v.Any())
}

// Props is an open attribute bag with typed values.
type Props map[string]Value

// Keys returns the property keys in sorted order.
func (p Props) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set stores v under key, allocating the map if needed, and returns it.
func (p Props) Set(key string, v Value) Props {
	if p == nil {
		p = make(Props)
	}
	p[key] = v
	return p
}

// --- Models ---

// Node is a vertex of the code knowledge graph.
type Node struct {
	ID        string   `json:"id"`
	Kind      NodeKind `json:"kind"`
	Name      string   `json:"name"`
	FilePath  string   `json:"filePath"`
	StartLine int      `json:"startLine"`
	EndLine   int      `json:"endLine,omitempty"`
	Props     Props    `json:"-"`
}

// Edge is a typed relationship between two nodes, referenced by id.
type Edge struct {
	Kind     RelKind `json:"kind"`
	SourceID string  `json:"sourceId"`
	TargetID string  `json:"targetId"`
	Props    Props   `json:"-"`
}

// Properties flattens a node into the property map written to the store:
// the core fields plus every bag entry.
func (n Node) Properties() map[string]any {
	out := make(map[string]any, len(n.Props)+5)
	for k, v := range n.Props {
		out[k] = v.Any()
	}
	out[PropID] = n.ID
	out[PropName] = n.Name
	out[PropFilePath] = n.FilePath
	out[PropStartLine] = int64(n.StartLine)
	if n.EndLine > 0 {
		out[PropEndLine] = int64(n.EndLine)
	}
	return out
}

// Core property keys present on every node.
const (
	PropID        = "id"
	PropName      = "name"
	PropFilePath  = "file_path"
	PropStartLine = "start_line"
	PropEndLine   = "end_line"
)
