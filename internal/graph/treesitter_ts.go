package graph

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// ecmaFamily covers TypeScript, TSX and JavaScript.
type ecmaFamily struct{}

func (ecmaFamily) container(n *tree_sitter.Node) bool {
	switch n.Kind() {
	case "program", "statement_block", "internal_module", "module",
		"ambient_declaration", "if_statement", "else_clause":
		return true
	case "expression_statement":
		return firstNamedOfKind(n, "internal_module", "module") != nil
	}
	return false
}

func (f ecmaFamily) declare(s *scope, n *tree_sitter.Node) {
	switch n.Kind() {
	case "export_statement":
		f.declareExport(s, n)
	default:
		f.declareNode(s, n, n, false)
	}
}

// declareExport handles every form of export statement that is not a
// re-export: exported declarations, `export default`, and `export { a }`.
func (f ecmaFamily) declareExport(s *scope, n *tree_sitter.Node) {
	if n.ChildByFieldName("source") != nil {
		return
	}
	if d := n.ChildByFieldName("declaration"); d != nil {
		f.declareNode(s, d, n, true)
		return
	}
	if v := n.ChildByFieldName("value"); v != nil {
		switch v.Kind() {
		case "identifier":
			s.markExported(text(v, s.src))
		case "function_expression", "function", "arrow_function", "generator_function":
			s.add(decl{kind: SymbolKindFunction, name: defaultName(v, s.src), node: v, anchor: n,
				exported: true, sig: f.funcSig(v, defaultName(v, s.src), s.src)})
		case "class":
			f.declareClass(s, v, n, true)
		}
		return
	}
	for _, c := range namedChildren(n) {
		switch c.Kind() {
		case "export_clause":
			for _, spec := range namedChildren(c) {
				if spec.Kind() == "export_specifier" {
					s.markExported(field(spec, "name", s.src))
				}
			}
		case "function_declaration", "generator_function_declaration", "class_declaration",
			"abstract_class_declaration", "interface_declaration", "type_alias_declaration",
			"enum_declaration", "lexical_declaration", "variable_declaration":
			f.declareNode(s, c, n, true)
		}
	}
}

func defaultName(n *tree_sitter.Node, src []byte) string {
	if name := field(n, "name", src); name != "" {
		return name
	}
	return "default"
}

func (s *scope) markExported(name string) {
	if name == "" {
		return
	}
	if s.exportedNames == nil {
		s.exportedNames = make(map[string]bool)
	}
	s.exportedNames[name] = true
}

// declareNode emits the symbol for declaration n. anchor is the node whose
// preceding comments document it (the export wrapper when present).
func (f ecmaFamily) declareNode(s *scope, n, anchor *tree_sitter.Node, exported bool) {
	name := field(n, "name", s.src)
	switch n.Kind() {
	case "function_declaration", "generator_function_declaration":
		s.add(decl{kind: SymbolKindFunction, name: name, node: n, anchor: anchor,
			exported: exported, sig: f.funcSig(n, name, s.src)})
	case "class_declaration", "abstract_class_declaration":
		f.declareClass(s, n, anchor, exported)
	case "interface_declaration":
		s.add(decl{kind: SymbolKindInterface, name: name, node: n, anchor: anchor, exported: exported,
			sig: joinSig("interface ", name, field(n, "type_parameters", s.src))})
	case "type_alias_declaration":
		s.add(decl{kind: SymbolKindType, name: name, node: n, anchor: anchor, exported: exported,
			sig: joinSig("type ", name, field(n, "type_parameters", s.src))})
	case "enum_declaration":
		s.add(decl{kind: SymbolKindEnum, name: name, node: n, anchor: anchor, exported: exported,
			sig: "enum " + name})
	case "lexical_declaration", "variable_declaration":
		for _, d := range namedChildren(n) {
			if d.Kind() != "variable_declarator" {
				continue
			}
			v := d.ChildByFieldName("value")
			if v == nil {
				continue
			}
			switch v.Kind() {
			case "arrow_function", "function_expression", "function", "generator_function":
				vname := field(d, "name", s.src)
				s.add(decl{kind: SymbolKindFunction, name: vname, node: d, anchor: anchor,
					exported: exported, sig: f.funcSig(v, vname, s.src)})
			}
		}
	case "ambient_declaration":
		for _, c := range namedChildren(n) {
			f.declareNode(s, c, anchor, exported)
		}
	case "internal_module", "module":
		if body := n.ChildByFieldName("body"); body != nil && anchor != n {
			// Exported namespaces are not containers themselves; walk the body.
			s.walk(body)
		}
	}
}

func (f ecmaFamily) declareClass(s *scope, n, anchor *tree_sitter.Node, exported bool) {
	name := defaultName(n, s.src)
	s.add(decl{kind: SymbolKindClass, name: name, node: n, anchor: anchor, exported: exported,
		sig: joinSig("class ", name, field(n, "type_parameters", s.src))})

	body := n.ChildByFieldName("body")
	for _, m := range namedChildren(body) {
		if m.Kind() != "method_definition" && m.Kind() != "abstract_method_signature" {
			continue
		}
		mname := field(m, "name", s.src)
		s.add(decl{kind: SymbolKindMethod, name: mname, node: m,
			exported: exported && !ecmaPrivateMember(m, mname, s.src),
			sig:      f.funcSig(m, mname, s.src)})
	}
}

func ecmaPrivateMember(m *tree_sitter.Node, name string, src []byte) bool {
	if strings.HasPrefix(name, "#") {
		return true
	}
	for _, c := range namedChildren(m) {
		if c.Kind() == "accessibility_modifier" {
			mod := text(c, src)
			return mod == "private" || mod == "protected"
		}
	}
	return false
}

// funcSig renders name(params): ret from the parameter and return-type
// fields. Arrow functions with a single bare parameter use the parameter
// field instead.
func (ecmaFamily) funcSig(n *tree_sitter.Node, name string, src []byte) string {
	params := field(n, "parameters", src)
	if params == "" {
		if p := field(n, "parameter", src); p != "" {
			params = "(" + p + ")"
		}
	}
	if params == "" {
		return ""
	}
	return joinSig(name, field(n, "type_parameters", src), params, field(n, "return_type", src))
}

func (ecmaFamily) imports(n *tree_sitter.Node, src []byte) []importRef {
	switch n.Kind() {
	case "import_statement":
		return ecmaImport(n, src)
	case "export_statement":
		source := n.ChildByFieldName("source")
		if source == nil {
			return nil
		}
		ref := importRef{
			specifier: unquote(text(source, src)),
			kind:      EdgeKindStatic,
			line:      startLine(n),
			reexport:  true,
		}
		if clause := firstNamedOfKind(n, "export_clause"); clause != nil {
			for _, spec := range namedChildren(clause) {
				if spec.Kind() == "export_specifier" {
					ref.names = append(ref.names, field(spec, "name", src))
				}
			}
		} else {
			ref.names = []string{Wildcard}
		}
		return []importRef{ref}
	}
	return nil
}

func ecmaImport(n *tree_sitter.Node, src []byte) []importRef {
	ref := importRef{kind: EdgeKindStatic, line: startLine(n)}
	if source := n.ChildByFieldName("source"); source != nil {
		ref.specifier = unquote(text(source, src))
	}

	for _, c := range namedChildren(n) {
		switch c.Kind() {
		case "import_clause":
			ref.binds = true
			for _, part := range namedChildren(c) {
				switch part.Kind() {
				case "identifier", "namespace_import":
					ref.names = append(ref.names, Wildcard)
				case "named_imports":
					for _, spec := range namedChildren(part) {
						if spec.Kind() == "import_specifier" {
							ref.names = append(ref.names, field(spec, "name", src))
						}
					}
				}
			}
		case "import_require_clause":
			// import x = require('./y')
			ref.binds = true
			ref.names = []string{Wildcard}
			if source := c.ChildByFieldName("source"); source != nil {
				ref.specifier = unquote(text(source, src))
			}
		}
	}
	if ref.specifier == "" {
		return nil
	}
	return []importRef{ref}
}

// dynamicImport recognises require('x') and import('x') with a literal
// argument.
func (ecmaFamily) dynamicImport(n *tree_sitter.Node, src []byte) (importRef, bool) {
	if n.Kind() != "call_expression" {
		return importRef{}, false
	}
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return importRef{}, false
	}
	if fn.Kind() != "import" && !(fn.Kind() == "identifier" && text(fn, src) == "require") {
		return importRef{}, false
	}
	arg := firstNamedOfKind(n.ChildByFieldName("arguments"), "string", "template_string")
	if arg == nil || (arg.Kind() == "template_string" && strings.Contains(text(arg, src), "${")) {
		return importRef{}, false
	}
	return importRef{
		specifier: unquote(text(arg, src)),
		kind:      EdgeKindDynamic,
		line:      startLine(n),
		names:     []string{Wildcard},
	}, true
}

func (ecmaFamily) decisions(n *tree_sitter.Node, src []byte) int {
	switch n.Kind() {
	case "if_statement", "else_clause", "ternary_expression",
		"for_statement", "for_in_statement", "while_statement", "do_statement":
		return 1
	case "binary_expression":
		switch field(n, "operator", src) {
		case "&&", "||":
			return 1
		}
	}
	return 0
}
