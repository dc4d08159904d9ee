package graph

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// csharpFamily covers C# sources.
type csharpFamily struct{}

func (csharpFamily) container(n *tree_sitter.Node) bool {
	switch n.Kind() {
	case "compilation_unit", "namespace_declaration", "file_scoped_namespace_declaration",
		"declaration_list", "global_statement":
		return true
	}
	return false
}

func (f csharpFamily) declare(s *scope, n *tree_sitter.Node) {
	f.declareType(s, n, false)
}

func isCSharpType(kind string) bool {
	switch kind {
	case "class_declaration", "struct_declaration", "record_declaration",
		"record_struct_declaration", "interface_declaration":
		return true
	}
	return false
}

func (f csharpFamily) declareType(s *scope, n *tree_sitter.Node, inInterface bool) {
	name := field(n, "name", s.src)
	exported := inInterface || csPublic(n, s.src)

	switch n.Kind() {
	case "class_declaration", "struct_declaration", "record_declaration", "record_struct_declaration",
		"interface_declaration":
		kind := SymbolKindClass
		keyword := "class"
		switch n.Kind() {
		case "interface_declaration":
			kind, keyword = SymbolKindInterface, "interface"
		case "struct_declaration", "record_struct_declaration":
			keyword = "struct"
		case "record_declaration":
			keyword = "record"
		}
		s.add(decl{kind: kind, name: name, node: n, exported: exported,
			sig: joinSig(keyword, " ", name, field(n, "type_parameters", s.src))})

		iface := n.Kind() == "interface_declaration"
		for _, m := range namedChildren(n.ChildByFieldName("body")) {
			switch m.Kind() {
			case "method_declaration", "constructor_declaration":
				f.declareMethod(s, m, exported && (iface || csPublic(m, s.src)))
			default:
				if isCSharpType(m.Kind()) || m.Kind() == "enum_declaration" || m.Kind() == "delegate_declaration" {
					f.declareType(s, m, iface)
				}
			}
		}

	case "enum_declaration":
		s.add(decl{kind: SymbolKindEnum, name: name, node: n, exported: exported, sig: "enum " + name})

	case "delegate_declaration":
		s.add(decl{kind: SymbolKindType, name: name, node: n, exported: exported,
			sig: joinSig("delegate ", csReturnType(n, s.src), " ", name, field(n, "parameters", s.src))})
	}
}

func (csharpFamily) declareMethod(s *scope, m *tree_sitter.Node, exported bool) {
	name := field(m, "name", s.src)
	sig := joinSig(name, field(m, "parameters", s.src))
	if ret := csReturnType(m, s.src); ret != "" {
		sig = joinSig(ret, " ", sig)
	}
	s.add(decl{kind: SymbolKindMethod, name: name, node: m, exported: exported, sig: sig})
}

// csReturnType reads the return type field, named "returns" in current
// grammars and "type" in older ones.
func csReturnType(n *tree_sitter.Node, src []byte) string {
	if t := field(n, "returns", src); t != "" {
		return t
	}
	return field(n, "type", src)
}

// csPublic reports whether a declaration carries the public modifier.
func csPublic(n *tree_sitter.Node, src []byte) bool {
	for _, c := range children(n) {
		if c.Kind() == "modifier" && text(c, src) == "public" {
			return true
		}
	}
	return false
}

// imports turns using directives into using edges. The namespace is the
// directive's target, ignoring any alias.
func (csharpFamily) imports(n *tree_sitter.Node, src []byte) []importRef {
	if n.Kind() != "using_directive" {
		return nil
	}
	alias := n.ChildByFieldName("name")
	var target *tree_sitter.Node
	for _, c := range namedChildren(n) {
		if alias != nil && c.Id() == alias.Id() {
			continue
		}
		switch c.Kind() {
		case "qualified_name", "identifier", "alias_qualified_name", "generic_name":
			target = c
		}
	}
	if target == nil {
		return nil
	}
	return []importRef{{
		specifier: text(target, src),
		kind:      EdgeKindUsing,
		line:      startLine(n),
		names:     []string{Wildcard},
		binds:     true,
	}}
}

func (csharpFamily) dynamicImport(*tree_sitter.Node, []byte) (importRef, bool) {
	return importRef{}, false
}

func (csharpFamily) decisions(n *tree_sitter.Node, src []byte) int {
	switch n.Kind() {
	case "if_statement":
		if n.ChildByFieldName("alternative") != nil {
			return 2
		}
		return 1
	case "conditional_expression", "for_statement", "foreach_statement",
		"while_statement", "do_statement":
		return 1
	case "binary_expression":
		switch field(n, "operator", src) {
		case "&&", "||":
			return 1
		}
	}
	return 0
}
