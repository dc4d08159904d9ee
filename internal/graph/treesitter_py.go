package graph

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// pythonFamily covers Python sources and stubs.
type pythonFamily struct{}

func (pythonFamily) container(n *tree_sitter.Node) bool {
	switch n.Kind() {
	case "module", "if_statement", "elif_clause", "else_clause", "try_statement",
		"except_clause", "finally_clause", "with_statement", "block":
		return true
	}
	return false
}

func (f pythonFamily) declare(s *scope, n *tree_sitter.Node) {
	switch n.Kind() {
	case "function_definition", "class_definition":
		f.declareDef(s, n, n, false)
	case "decorated_definition":
		if def := n.ChildByFieldName("definition"); def != nil {
			f.declareDef(s, def, n, false)
		}
	}
}

func (f pythonFamily) declareDef(s *scope, n, anchor *tree_sitter.Node, inClass bool) {
	name := field(n, "name", s.src)
	exported := !strings.HasPrefix(name, "_")
	doc := pyDocstring(n, s.src)

	switch n.Kind() {
	case "function_definition":
		kind := SymbolKindFunction
		if inClass {
			kind = SymbolKindMethod
		}
		sig := joinSig(name, field(n, "parameters", s.src))
		if ret := field(n, "return_type", s.src); ret != "" {
			sig += " -> " + collapseSpace(ret)
		}
		s.add(decl{kind: kind, name: name, node: n, anchor: anchor, exported: exported, sig: sig, doc: doc})

	case "class_definition":
		sig := "class " + name
		if supers := field(n, "superclasses", s.src); supers != "" {
			sig = joinSig(sig, supers)
		}
		s.add(decl{kind: SymbolKindClass, name: name, node: n, anchor: anchor, exported: exported, sig: sig, doc: doc})

		for _, m := range namedChildren(n.ChildByFieldName("body")) {
			switch m.Kind() {
			case "function_definition":
				f.declareDef(s, m, m, true)
			case "decorated_definition":
				if def := m.ChildByFieldName("definition"); def != nil && def.Kind() == "function_definition" {
					f.declareDef(s, def, m, true)
				}
			}
		}
	}
}

// pyDocstring returns the string literal opening the body of a definition.
func pyDocstring(n *tree_sitter.Node, src []byte) string {
	body := n.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first == nil || first.Kind() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	lit := first.NamedChild(0)
	if lit == nil || lit.Kind() != "string" {
		return ""
	}
	return stripStringQuotes(text(lit, src))
}

func (pythonFamily) imports(n *tree_sitter.Node, src []byte) []importRef {
	switch n.Kind() {
	case "import_statement":
		// import a.b, c as d
		var refs []importRef
		for _, c := range namedChildren(n) {
			mod := c
			if c.Kind() == "aliased_import" {
				mod = c.ChildByFieldName("name")
			}
			if mod == nil || mod.Kind() != "dotted_name" {
				continue
			}
			refs = append(refs, importRef{
				specifier: text(mod, src),
				kind:      EdgeKindStatic,
				line:      startLine(n),
				names:     []string{Wildcard},
				binds:     true,
			})
		}
		return refs

	case "import_from_statement", "future_import_statement":
		module := n.ChildByFieldName("module_name")
		if module == nil {
			return nil
		}
		ref := importRef{
			specifier: text(module, src),
			kind:      EdgeKindStatic,
			line:      startLine(n),
			binds:     true,
		}
		for i := uint(0); i < n.NamedChildCount(); i++ {
			c := n.NamedChild(i)
			if c == nil || c.Id() == module.Id() {
				continue
			}
			switch c.Kind() {
			case "wildcard_import":
				ref.names = append(ref.names, Wildcard)
			case "dotted_name":
				ref.names = append(ref.names, text(c, src))
			case "aliased_import":
				ref.names = append(ref.names, field(c, "name", src))
			}
		}
		return []importRef{ref}
	}
	return nil
}

// dynamicImport recognises importlib.import_module('x') and __import__('x').
func (pythonFamily) dynamicImport(n *tree_sitter.Node, src []byte) (importRef, bool) {
	if n.Kind() != "call" {
		return importRef{}, false
	}
	switch field(n, "function", src) {
	case "importlib.import_module", "import_module", "__import__":
	default:
		return importRef{}, false
	}
	args := n.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return importRef{}, false
	}
	arg := args.NamedChild(0)
	if arg == nil || arg.Kind() != "string" {
		return importRef{}, false
	}
	spec := stripStringQuotes(text(arg, src))
	if spec == "" || strings.ContainsAny(spec, "{}") {
		return importRef{}, false
	}
	return importRef{
		specifier: spec,
		kind:      EdgeKindDynamic,
		line:      startLine(n),
		names:     []string{Wildcard},
	}, true
}

func (pythonFamily) decisions(n *tree_sitter.Node, _ []byte) int {
	switch n.Kind() {
	case "if_statement", "elif_clause", "conditional_expression",
		"for_statement", "while_statement", "boolean_operator":
		return 1
	case "else_clause":
		if p := n.Parent(); p != nil && p.Kind() == "if_statement" {
			return 1
		}
	}
	return 0
}
