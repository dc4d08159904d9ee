package graph

import (
	"slices"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// family holds the grammar-specific node-shape knowledge for one group of
// languages. It is selected once per file from the language.
type family interface {
	// declare emits the symbols declared by n, if any.
	declare(s *scope, n *tree_sitter.Node)

	// container reports whether n only wraps further top-level statements
	// (module, namespace and conditional blocks). Extraction and resolution
	// descend into containers and nothing else.
	container(n *tree_sitter.Node) bool

	// imports returns the static import references of statement n.
	imports(n *tree_sitter.Node, src []byte) []importRef

	// dynamicImport recognises call-style imports such as require() and
	// import().
	dynamicImport(n *tree_sitter.Node, src []byte) (importRef, bool)

	// decisions returns the number of decision points n itself contributes
	// to cyclomatic complexity.
	decisions(n *tree_sitter.Node, src []byte) int
}

func familyFor(lang Language) family {
	switch lang {
	case LangTypeScript, LangTSX, LangJavaScript:
		return ecmaFamily{}
	case LangPython:
		return pythonFamily{}
	case LangCSharp:
		return csharpFamily{}
	case LangGo:
		return goFamily{}
	case LangRust:
		return rustFamily{}
	}
	return nil
}

// importRef is one import-like construct found in source.
type importRef struct {
	specifier string
	kind      EdgeKind
	line      int
	endLine   int
	names     []string
	// reexport marks export-from statements; they become export symbols.
	reexport bool
	// binds reports whether the statement introduces names into the file.
	// Side-effect imports produce an edge but no symbol.
	binds bool
}

// scope is the per-file extraction state handed to family visitors.
type scope struct {
	path    string
	src     []byte
	fam     family
	symbols []SymbolRecord

	// exportedNames collects names exported by a separate statement, such
	// as `export { a, b }`. They are applied after the walk.
	exportedNames map[string]bool
}

// decl describes a symbol a family wants recorded.
type decl struct {
	kind     SymbolKind
	name     string
	node     *tree_sitter.Node // range of the symbol
	anchor   *tree_sitter.Node // node whose preceding comments document it
	exported bool
	sig      string
	doc      string // overrides comment lookup when set
}

// add records d, filling in the line range, docstring and, for functions
// and methods, complexity.
func (s *scope) add(d decl) {
	if d.name == "" || d.node == nil {
		return
	}
	anchor := d.anchor
	if anchor == nil {
		anchor = d.node
	}
	doc := d.doc
	if doc == "" {
		doc = leadingComment(anchor, s.src)
	}
	sig := d.sig
	if sig == "" {
		sig = string(d.kind) + " " + d.name
	}

	rec := SymbolRecord{
		FilePath:  s.path,
		Kind:      d.kind,
		Name:      d.name,
		StartLine: startLine(d.node),
		EndLine:   endLine(d.node),
		Exported:  d.exported,
		Signature: strPtr(sig),
		Docstring: strPtr(doc),
	}
	if d.kind == SymbolKindFunction || d.kind == SymbolKindMethod {
		rec.Complexity = IntPtr(1 + countDecisions(s.fam, d.node, s.src))
	}
	s.symbols = append(s.symbols, rec)
}

// walk runs declaration extraction over the subtree rooted at n.
func (s *scope) walk(n *tree_sitter.Node) {
	walkTree(n, func(node *tree_sitter.Node, _ []*tree_sitter.Node) bool {
		if refs := s.fam.imports(node, s.src); len(refs) > 0 {
			s.addImports(node, refs)
			return false
		}
		s.fam.declare(s, node)
		return s.fam.container(node)
	})
}

func (s *scope) addImports(node *tree_sitter.Node, refs []importRef) {
	for _, ref := range refs {
		if !ref.binds && !ref.reexport {
			continue
		}
		kind := SymbolKindImport
		if ref.reexport {
			kind = SymbolKindExport
		}
		s.symbols = append(s.symbols, SymbolRecord{
			FilePath:  s.path,
			Kind:      kind,
			Name:      ref.specifier,
			StartLine: startLine(node),
			EndLine:   endLine(node),
			Exported:  ref.reexport,
		})
	}
}

// ExtractSymbols returns the symbols declared in s, in source order. It never
// fails; unknown node shapes are skipped.
func ExtractSymbols(s *Syntax) []SymbolRecord {
	if s == nil || s.fam == nil || s.root == nil {
		return nil
	}
	sc := &scope{path: s.Path, src: s.Source, fam: s.fam}
	sc.walk(s.root)

	if len(sc.exportedNames) > 0 {
		for i := range sc.symbols {
			sym := &sc.symbols[i]
			if sym.Kind.IsDeclaration() && sym.Kind != SymbolKindMethod && sc.exportedNames[sym.Name] {
				sym.Exported = true
			}
		}
	}

	slices.SortStableFunc(sc.symbols, func(a, b SymbolRecord) int {
		return a.StartLine - b.StartLine
	})
	return sc.symbols
}

// --- doc comments ---

func isComment(n *tree_sitter.Node) bool {
	return n != nil && strings.Contains(n.Kind(), "comment")
}

// leadingComment returns the comment block immediately preceding n, with
// comment markers stripped. Comments separated from n by a blank line, or
// trailing another statement on its line, are not included.
func leadingComment(n *tree_sitter.Node, src []byte) string {
	var parts []string
	next := n
	for prev := n.PrevSibling(); isComment(prev); prev = prev.PrevSibling() {
		if next.StartPosition().Row-prev.EndPosition().Row > 1 {
			break
		}
		if before := prev.PrevSibling(); before != nil && !isComment(before) &&
			before.EndPosition().Row == prev.StartPosition().Row {
			break
		}
		parts = append(parts, text(prev, src))
		next = prev
	}
	if len(parts) == 0 {
		return ""
	}
	slices.Reverse(parts)
	return stripCommentMarkers(strings.Join(parts, "\n"))
}

// stripCommentMarkers removes line, block and doc comment markers and the
// leading asterisks of block-comment interiors.
func stripCommentMarkers(raw string) string {
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		for _, prefix := range []string{"///", "//!", "//", "/**", "/*", "#"} {
			if strings.HasPrefix(line, prefix) {
				line = line[len(prefix):]
				break
			}
		}
		line = strings.TrimSuffix(strings.TrimSpace(line), "*/")
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "*") {
			line = strings.TrimSpace(strings.TrimLeft(line, "*"))
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// stripStringQuotes removes string prefixes (r, b, u, f) and the surrounding
// single or triple quotes of a string literal.
func stripStringQuotes(lit string) string {
	lit = strings.TrimLeft(lit, "rRbBuUfF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(lit) >= 2*len(q) && strings.HasPrefix(lit, q) && strings.HasSuffix(lit, q) {
			return strings.TrimSpace(lit[len(q) : len(lit)-len(q)])
		}
	}
	return strings.TrimSpace(lit)
}

// unquote strips the quotes of an import specifier literal.
func unquote(s string) string {
	return strings.Trim(s, "\"'`")
}

// joinSig concatenates signature parts, skipping empty ones.
func joinSig(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p)
	}
	return collapseSpace(b.String())
}

// collapseSpace folds runs of whitespace into single spaces so multi-line
// parameter lists render on one line.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
