package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileNode(id string) Node {
	return Node{
		ID:        id,
		Kind:      NodeKindFile,
		Name:      "a.py",
		FilePath:  "pkg/a.py",
		StartLine: 1,
		Props: Props{
			PropPath:     String("pkg/a.py"),
			PropLanguage: String("python"),
		},
	}
}

func TestValidateNode(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		name    string
		mutate  func(n *Node)
		wantErr string
	}{
		{"valid file", func(n *Node) {}, ""},
		{"missing id", func(n *Node) { n.ID = "" }, "missing required id"},
		{"missing start line", func(n *Node) { n.StartLine = 0 }, "missing required start_line"},
		{"missing required language", func(n *Node) { delete(n.Props, PropLanguage) }, "missing required language"},
		{"undeclared property", func(n *Node) { n.Props[PropSignature] = String("x") }, `undeclared property "signature"`},
		{"wrong value type", func(n *Node) { n.Props[PropLineCount] = String("12") }, `property "line_count" is string, want int`},
		{"end before start", func(n *Node) { n.StartLine = 10; n.EndLine = 2 }, "end_line 2 before start_line 10"},
		{"unknown kind", func(n *Node) { n.Kind = "Widget" }, "unknown kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := fileNode("File:pkg/a.py:1:a.py#1")
			tt.mutate(&n)
			err := r.ValidateNode(n)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidNode))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateNode_ImportRequiresSource(t *testing.T) {
	r := DefaultRegistry()
	imp := Node{ID: "i1", Kind: NodeKindImport, Name: "os", FilePath: "a.py", StartLine: 1}

	err := r.ValidateNode(imp)
	require.ErrorIs(t, err, ErrInvalidNode)
	assert.Contains(t, err.Error(), "source")

	imp.Props = Props{PropSource: String("os"), PropNames: Strings([]string{"path"})}
	assert.NoError(t, r.ValidateNode(imp))
}

func TestValidateRelationship(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		name    string
		edge    Edge
		src     NodeKind
		dst     NodeKind
		wantErr bool
	}{
		{"file contains module", Edge{Kind: RelContains, SourceID: "f", TargetID: "m"}, NodeKindFile, NodeKindModule, false},
		{"module contains file", Edge{Kind: RelContains, SourceID: "m", TargetID: "f"}, NodeKindModule, NodeKindFile, true},
		{"java extends", Edge{Kind: RelExtends, SourceID: "a", TargetID: "b"}, NodeKindJavaClass, NodeKindJavaClass, false},
		{"java class extends interface", Edge{Kind: RelExtends, SourceID: "a", TargetID: "b"}, NodeKindJavaClass, NodeKindJavaInterface, true},
		{"dart mixes in", Edge{Kind: RelMixesIn, SourceID: "a", TargetID: "b"}, NodeKindDartClass, NodeKindDartMixin, false},
		{"kotlin object implements", Edge{Kind: RelImplements, SourceID: "a", TargetID: "b"}, NodeKindKotlinObject, NodeKindKotlinInterface, false},
		{"file imports file", Edge{Kind: RelImports, SourceID: "a", TargetID: "b"}, NodeKindFile, NodeKindFile, false},
		{"calls with line", Edge{Kind: RelCalls, SourceID: "a", TargetID: "b", Props: Props{PropLine: Int(4)}}, NodeKindFunction, NodeKindMethod, false},
		{"calls with undeclared prop", Edge{Kind: RelCalls, SourceID: "a", TargetID: "b", Props: Props{PropAlias: String("x")}}, NodeKindFunction, NodeKindFunction, true},
		{"empty endpoint", Edge{Kind: RelCalls, SourceID: "", TargetID: "b"}, NodeKindFunction, NodeKindFunction, true},
		{"unknown kind", Edge{Kind: "OWNS", SourceID: "a", TargetID: "b"}, NodeKindFile, NodeKindFile, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.ValidateRelationship(tt.edge, tt.src, tt.dst)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRelationship)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegisterRelationship_MergesPairs(t *testing.T) {
	r := NewRegistry()
	r.RegisterRelationship(RelSpec{Kind: RelCalls, Pairs: []Pair{{NodeKindFunction, NodeKindFunction}}})
	r.RegisterRelationship(RelSpec{
		Kind:  RelCalls,
		Pairs: []Pair{{NodeKindFunction, NodeKindFunction}, {NodeKindMethod, NodeKindFunction}},
		Props: map[string]ValueType{PropLine: ValueInt},
	})

	spec, ok := r.RelSpec(RelCalls)
	require.True(t, ok)
	assert.Len(t, spec.Pairs, 2)
	assert.Equal(t, ValueInt, spec.Props[PropLine])
	assert.True(t, r.Allows(RelCalls, NodeKindMethod, NodeKindFunction))
	assert.False(t, r.Allows(RelCalls, NodeKindFunction, NodeKindMethod))
}

func TestDefaultRegistry_CoversAllKinds(t *testing.T) {
	r := DefaultRegistry()
	assert.ElementsMatch(t, AllNodeKinds(), r.NodeKinds())
	assert.ElementsMatch(t, AllRelKinds(), r.RelKinds())
}
