package graph

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// rustFamily covers Rust sources.
type rustFamily struct{}

func (rustFamily) container(n *tree_sitter.Node) bool {
	switch n.Kind() {
	case "source_file", "declaration_list":
		return true
	case "mod_item":
		// `mod foo;` has no body and is an import, not a container.
		return n.ChildByFieldName("body") != nil
	}
	return false
}

func (f rustFamily) declare(s *scope, n *tree_sitter.Node) {
	name := field(n, "name", s.src)
	pub := isRustPub(n)
	switch n.Kind() {
	case "function_item":
		s.add(decl{kind: SymbolKindFunction, name: name, node: n, exported: pub, sig: rsFuncSig(n, name, s.src)})
	case "struct_item", "union_item":
		s.add(decl{kind: SymbolKindType, name: name, node: n, exported: pub,
			sig: joinSig("struct ", name, field(n, "type_parameters", s.src))})
	case "enum_item":
		s.add(decl{kind: SymbolKindEnum, name: name, node: n, exported: pub, sig: "enum " + name})
	case "trait_item":
		s.add(decl{kind: SymbolKindInterface, name: name, node: n, exported: pub,
			sig: joinSig("trait ", name, field(n, "type_parameters", s.src))})
		f.declareMembers(s, n, pub)
	case "type_item":
		s.add(decl{kind: SymbolKindType, name: name, node: n, exported: pub,
			sig: joinSig("type ", name, field(n, "type_parameters", s.src))})
	case "impl_item":
		// Trait impl methods are as visible as the trait itself.
		f.declareMembers(s, n, n.ChildByFieldName("trait") != nil)
	}
}

// declareMembers emits the function items of an impl or trait body as
// methods.
func (rustFamily) declareMembers(s *scope, owner *tree_sitter.Node, forcePub bool) {
	for _, m := range namedChildren(owner.ChildByFieldName("body")) {
		if m.Kind() != "function_item" && m.Kind() != "function_signature_item" {
			continue
		}
		name := field(m, "name", s.src)
		s.add(decl{kind: SymbolKindMethod, name: name, node: m, exported: forcePub || isRustPub(m),
			sig: rsFuncSig(m, name, s.src)})
	}
}

func rsFuncSig(n *tree_sitter.Node, name string, src []byte) string {
	sig := joinSig(name, field(n, "type_parameters", src), field(n, "parameters", src))
	if ret := field(n, "return_type", src); ret != "" {
		sig += " -> " + collapseSpace(ret)
	}
	return sig
}

// isRustPub checks if a node has a visibility_modifier child.
func isRustPub(node *tree_sitter.Node) bool {
	return firstNamedOfKind(node, "visibility_modifier") != nil
}

func (rustFamily) imports(n *tree_sitter.Node, src []byte) []importRef {
	switch n.Kind() {
	case "use_declaration":
		arg := n.ChildByFieldName("argument")
		if arg == nil {
			return nil
		}
		return []importRef{{
			specifier: collapseSpace(text(arg, src)),
			kind:      EdgeKindStatic,
			line:      startLine(n),
			names:     rsUseNames(arg, src),
			binds:     true,
		}}
	case "mod_item":
		// `mod foo;` pulls in a sibling file; inline modules are containers.
		if n.ChildByFieldName("body") != nil {
			return nil
		}
		return []importRef{{
			specifier: "self::" + field(n, "name", src),
			kind:      EdgeKindStatic,
			line:      startLine(n),
			names:     []string{Wildcard},
		}}
	}
	return nil
}

// rsUseNames returns the names a use tree binds from its target module.
func rsUseNames(arg *tree_sitter.Node, src []byte) []string {
	switch arg.Kind() {
	case "scoped_identifier":
		return []string{field(arg, "name", src)}
	case "use_as_clause":
		if p := arg.ChildByFieldName("path"); p != nil && p.Kind() == "scoped_identifier" {
			return []string{field(p, "name", src)}
		}
	case "scoped_use_list":
		var names []string
		for _, item := range namedChildren(arg.ChildByFieldName("list")) {
			switch item.Kind() {
			case "identifier":
				names = append(names, text(item, src))
			case "self":
			case "use_as_clause":
				names = append(names, rsLastSegment(field(item, "path", src)))
			default:
				names = append(names, Wildcard)
			}
		}
		if len(names) > 0 {
			return names
		}
	}
	return []string{Wildcard}
}

func rsLastSegment(p string) string {
	if i := strings.LastIndex(p, "::"); i >= 0 {
		return p[i+2:]
	}
	return p
}

func (rustFamily) dynamicImport(*tree_sitter.Node, []byte) (importRef, bool) {
	return importRef{}, false
}

func (rustFamily) decisions(n *tree_sitter.Node, src []byte) int {
	switch n.Kind() {
	case "if_expression", "else_clause", "for_expression", "while_expression", "loop_expression":
		return 1
	case "binary_expression":
		switch field(n, "operator", src) {
		case "&&", "||":
			return 1
		}
	}
	return 0
}
