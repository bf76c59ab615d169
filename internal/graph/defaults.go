package graph

// DefaultRegistry returns a Registry holding every node and relationship
// shape the builder emits.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	registerDefaultNodes(r)
	registerDefaultRelationships(r)
	return r
}

// --- Node shapes ---

var (
	rootProps = map[string]ValueType{
		PropLanguage:      ValueString,
		PropDocstring:     ValueString,
		PropQualifiedName: ValueString,
	}

	classProps = map[string]ValueType{
		PropExported:      ValueBool,
		PropVisibility:    ValueString,
		PropBases:         ValueStringList,
		PropInterfaces:    ValueStringList,
		PropMixins:        ValueStringList,
		PropModifiers:     ValueStringList,
		PropDecorators:    ValueStringList,
		PropDocstring:     ValueString,
		PropIsAbstract:    ValueBool,
		PropQualifiedName: ValueString,
	}

	callableProps = map[string]ValueType{
		PropExported:      ValueBool,
		PropVisibility:    ValueString,
		PropSignature:     ValueString,
		PropComplexity:    ValueInt,
		PropModifiers:     ValueStringList,
		PropDecorators:    ValueStringList,
		PropReceiver:      ValueString,
		PropIsAsync:       ValueBool,
		PropIsStatic:      ValueBool,
		PropIsAbstract:    ValueBool,
		PropDocstring:     ValueString,
		PropQualifiedName: ValueString,
	}
)

func registerDefaultNodes(r *Registry) {
	r.RegisterNode(NodeSpec{
		Kind:     NodeKindFile,
		Required: []string{PropPath, PropLanguage},
		Props: map[string]ValueType{
			PropPath:        ValueString,
			PropLanguage:    ValueString,
			PropLineCount:   ValueInt,
			PropSizeBytes:   ValueInt,
			PropContentHash: ValueString,
		},
	})

	for _, k := range RootKinds {
		r.RegisterNode(NodeSpec{Kind: k, Props: rootProps})
	}
	for _, k := range ClassLikeKinds {
		r.RegisterNode(NodeSpec{Kind: k, Props: classProps})
	}
	for _, k := range CallableKinds {
		r.RegisterNode(NodeSpec{Kind: k, Props: callableProps})
	}

	r.RegisterNode(NodeSpec{
		Kind: NodeKindField,
		Props: map[string]ValueType{
			PropExported:       ValueBool,
			PropVisibility:     ValueString,
			PropTypeAnnotation: ValueString,
			PropDefaultValue:   ValueString,
			PropModifiers:      ValueStringList,
			PropIsStatic:       ValueBool,
		},
	})
	r.RegisterNode(NodeSpec{
		Kind: NodeKindVariable,
		Props: map[string]ValueType{
			PropExported:       ValueBool,
			PropTypeAnnotation: ValueString,
			PropDefaultValue:   ValueString,
			PropModifiers:      ValueStringList,
		},
	})
	r.RegisterNode(NodeSpec{
		Kind: NodeKindParameter,
		Props: map[string]ValueType{
			PropTypeAnnotation: ValueString,
			PropDefaultValue:   ValueString,
			PropPosition:       ValueInt,
		},
	})
	r.RegisterNode(NodeSpec{
		Kind:     NodeKindImport,
		Required: []string{PropSource},
		Props: map[string]ValueType{
			PropSource: ValueString,
			PropAlias:  ValueString,
			PropNames:  ValueStringList,
		},
	})
	r.RegisterNode(NodeSpec{
		Kind: NodeKindExport,
		Props: map[string]ValueType{
			PropSource: ValueString,
			PropNames:  ValueStringList,
		},
	})
	r.RegisterNode(NodeSpec{
		Kind: NodeKindDecorator,
		Props: map[string]ValueType{
			PropQualifiedName: ValueString,
		},
	})
}

// --- Relationship shapes ---

func registerDefaultRelationships(r *Registry) {
	containers := append(append(append([]NodeKind{}, RootKinds...), ClassLikeKinds...),
		NodeKindFunction, NodeKindMethod)

	r.RegisterRelationship(RelSpec{Kind: RelContains, Pairs: fanOut([]NodeKind{NodeKindFile}, RootKinds)})
	r.RegisterRelationship(RelSpec{Kind: RelDefinesClass, Pairs: fanOut(containers, ClassLikeKinds)})
	r.RegisterRelationship(RelSpec{Kind: RelDefinesFunction, Pairs: fanOut(containers, []NodeKind{NodeKindFunction})})
	r.RegisterRelationship(RelSpec{
		Kind:  RelDefinesMethod,
		Pairs: fanOut(ClassLikeKinds, []NodeKind{NodeKindMethod, NodeKindCtor}),
	})
	r.RegisterRelationship(RelSpec{
		Kind: RelDefinesVariable,
		Pairs: fanOut(
			append(append([]NodeKind{}, RootKinds...), NodeKindFunction, NodeKindMethod),
			[]NodeKind{NodeKindVariable},
		),
	})
	r.RegisterRelationship(RelSpec{Kind: RelHasField, Pairs: fanOut(ClassLikeKinds, []NodeKind{NodeKindField})})
	r.RegisterRelationship(RelSpec{Kind: RelBelongsTo, Pairs: fanOut([]NodeKind{NodeKindField}, ClassLikeKinds)})
	r.RegisterRelationship(RelSpec{Kind: RelHasParameter, Pairs: fanOut(CallableKinds, []NodeKind{NodeKindParameter})})
	r.RegisterRelationship(RelSpec{
		Kind:  RelDecoratedBy,
		Pairs: fanOut(append([]NodeKind{NodeKindFunction, NodeKindMethod}, ClassLikeKinds...), []NodeKind{NodeKindDecorator}),
	})

	importTargets := append(append([]NodeKind{}, ClassLikeKinds...), NodeKindFunction)
	imports := fanOut([]NodeKind{NodeKindFile}, []NodeKind{NodeKindImport, NodeKindFile})
	imports = append(imports, fanOut([]NodeKind{NodeKindImport}, importTargets)...)
	r.RegisterRelationship(RelSpec{
		Kind:  RelImports,
		Pairs: imports,
		Props: map[string]ValueType{PropLine: ValueInt, PropAlias: ValueString},
	})

	r.RegisterRelationship(RelSpec{
		Kind:  RelExports,
		Pairs: fanOut([]NodeKind{NodeKindModule, NodeKindLibrary}, []NodeKind{NodeKindExport}),
	})
	// A call whose callee is a type is an instantiation.
	r.RegisterRelationship(RelSpec{
		Kind:  RelCalls,
		Pairs: fanOut(CallableKinds, append(append([]NodeKind{}, CallableKinds...), ClassLikeKinds...)),
		Props: map[string]ValueType{PropLine: ValueInt},
	})

	r.RegisterRelationship(RelSpec{Kind: RelInheritsFrom, Pairs: []Pair{
		{NodeKindClass, NodeKindClass},
		{NodeKindInterface, NodeKindInterface},
		{NodeKindTrait, NodeKindTrait},
	}})
	r.RegisterRelationship(RelSpec{Kind: RelExtends, Pairs: []Pair{
		{NodeKindJavaClass, NodeKindJavaClass},
		{NodeKindJavaInterface, NodeKindJavaInterface},
		{NodeKindKotlinClass, NodeKindKotlinClass},
		{NodeKindKotlinObject, NodeKindKotlinClass},
		{NodeKindKotlinInterface, NodeKindKotlinInterface},
		{NodeKindDartClass, NodeKindDartClass},
	}})
	r.RegisterRelationship(RelSpec{Kind: RelImplements, Pairs: []Pair{
		{NodeKindJavaClass, NodeKindJavaInterface},
		{NodeKindJavaEnum, NodeKindJavaInterface},
		{NodeKindKotlinClass, NodeKindKotlinInterface},
		{NodeKindKotlinObject, NodeKindKotlinInterface},
		{NodeKindDartClass, NodeKindDartClass},
		{NodeKindClass, NodeKindInterface},
		{NodeKindStruct, NodeKindTrait},
		{NodeKindStruct, NodeKindInterface},
		{NodeKindEnum, NodeKindTrait},
	}})
	r.RegisterRelationship(RelSpec{Kind: RelMixesIn, Pairs: []Pair{
		{NodeKindDartClass, NodeKindDartMixin},
	}})
}

// fanOut returns the cross product of sources and targets.
func fanOut(sources, targets []NodeKind) []Pair {
	out := make([]Pair, 0, len(sources)*len(targets))
	for _, s := range sources {
		for _, t := range targets {
			out = append(out, Pair{Source: s, Target: t})
		}
	}
	return out
}
