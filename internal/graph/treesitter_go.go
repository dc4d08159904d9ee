package graph

import (
	"unicode"
	"unicode/utf8"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// goFamily covers Go sources.
type goFamily struct{}

func (goFamily) container(n *tree_sitter.Node) bool {
	return n.Kind() == "source_file"
}

func (goFamily) declare(s *scope, n *tree_sitter.Node) {
	switch n.Kind() {
	case "function_declaration":
		name := field(n, "name", s.src)
		s.add(decl{kind: SymbolKindFunction, name: name, node: n, exported: isGoExported(name),
			sig: joinSig(name, field(n, "type_parameters", s.src), field(n, "parameters", s.src), goResult(n, s.src))})

	case "method_declaration":
		name := field(n, "name", s.src)
		s.add(decl{kind: SymbolKindMethod, name: name, node: n, exported: isGoExported(name),
			sig: joinSig(field(n, "receiver", s.src), " ", name, field(n, "parameters", s.src), goResult(n, s.src))})

	case "type_declaration":
		for _, spec := range namedChildren(n) {
			if spec.Kind() != "type_spec" && spec.Kind() != "type_alias" {
				continue
			}
			name := field(spec, "name", s.src)
			kind := SymbolKindType
			if t := spec.ChildByFieldName("type"); t != nil && t.Kind() == "interface_type" {
				kind = SymbolKindInterface
			}
			// A single-spec declaration is documented above the type keyword.
			anchor := spec
			if n.NamedChildCount() == 1 {
				anchor = n
			}
			s.add(decl{kind: kind, name: name, node: spec, anchor: anchor, exported: isGoExported(name),
				sig: joinSig("type ", name, field(spec, "type_parameters", s.src))})
		}
	}
}

func goResult(n *tree_sitter.Node, src []byte) string {
	if r := field(n, "result", src); r != "" {
		return " " + r
	}
	return ""
}

// isGoExported checks whether a Go identifier is exported (starts with an
// uppercase letter).
func isGoExported(name string) bool {
	if name == "" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}

func (goFamily) imports(n *tree_sitter.Node, src []byte) []importRef {
	if n.Kind() != "import_declaration" {
		return nil
	}
	var specs []*tree_sitter.Node
	for _, c := range namedChildren(n) {
		switch c.Kind() {
		case "import_spec":
			specs = append(specs, c)
		case "import_spec_list":
			for _, sc := range namedChildren(c) {
				if sc.Kind() == "import_spec" {
					specs = append(specs, sc)
				}
			}
		}
	}

	refs := make([]importRef, 0, len(specs))
	for _, spec := range specs {
		ref := importRef{
			specifier: unquote(field(spec, "path", src)),
			kind:      EdgeKindStatic,
			line:      startLine(spec),
		}
		// Blank imports are kept for their side effects only.
		if field(spec, "name", src) != "_" {
			ref.names = []string{Wildcard}
			ref.binds = true
		}
		refs = append(refs, ref)
	}
	return refs
}

func (goFamily) dynamicImport(*tree_sitter.Node, []byte) (importRef, bool) {
	return importRef{}, false
}

func (goFamily) decisions(n *tree_sitter.Node, src []byte) int {
	switch n.Kind() {
	case "if_statement":
		if n.ChildByFieldName("alternative") != nil {
			return 2
		}
		return 1
	case "for_statement":
		return 1
	case "binary_expression":
		switch field(n, "operator", src) {
		case "&&", "||":
			return 1
		}
	}
	return 0
}
