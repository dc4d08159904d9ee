package graph

import (
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	"golang.org/x/mod/modfile"
)

// Resolver maps raw import specifiers to project-relative file paths. It is
// built once per run from the complete set of discovered paths and never
// touches the file system afterwards, so every resolution in a run sees the
// same path set.
type Resolver struct {
	fileSet  map[string]bool
	dirIndex map[string][]string
	goModule string
}

// NewResolver builds a Resolver from the project root and every known
// project-relative, forward-slash path. The root go.mod, when present,
// supplies the module path used for Go import resolution.
func NewResolver(root string, knownFiles []string) *Resolver {
	r := &Resolver{
		fileSet:  make(map[string]bool, len(knownFiles)),
		dirIndex: make(map[string][]string),
	}
	for _, f := range knownFiles {
		r.fileSet[f] = true
		dir := path.Dir(f)
		r.dirIndex[dir] = append(r.dirIndex[dir], f)
	}
	for dir := range r.dirIndex {
		slices.Sort(r.dirIndex[dir])
	}
	if root != "" {
		r.goModule = readGoModule(filepath.Join(root, "go.mod"))
	}
	return r
}

// WithGoModule overrides the Go module path.
func (r *Resolver) WithGoModule(module string) *Resolver {
	r.goModule = module
	return r
}

// Contains reports whether p is a known project path.
func (r *Resolver) Contains(p string) bool {
	return r.fileSet[p]
}

func readGoModule(gomod string) string {
	data, err := os.ReadFile(gomod)
	if err != nil {
		return ""
	}
	return modfile.ModulePath(data)
}

// ResolveDependencies returns the dependency edges of s in source order.
// Only top-level statements are inspected, descending into module,
// namespace and conditional wrappers; call-style imports are found anywhere
// inside those statements.
func ResolveDependencies(s *Syntax, r *Resolver) []DependencyEdge {
	if s == nil || s.fam == nil || s.root == nil {
		return nil
	}
	var edges []DependencyEdge
	emit := func(ref importRef) {
		if ref.specifier == "" {
			return
		}
		edge := DependencyEdge{
			SourceFile:      s.Path,
			ImportSpecifier: ref.specifier,
			Kind:            ref.kind,
			Line:            ref.line,
			ImportedNames:   ref.names,
		}
		if r != nil {
			edge.TargetFile = strPtr(r.Resolve(s.Path, s.Language, ref.specifier, ref.names))
		}
		edges = append(edges, edge)
	}

	walkTree(s.root, func(n *tree_sitter.Node, _ []*tree_sitter.Node) bool {
		if refs := s.fam.imports(n, s.Source); len(refs) > 0 {
			for _, ref := range refs {
				emit(ref)
			}
			return false
		}
		if s.fam.container(n) {
			return true
		}
		walkTree(n, func(inner *tree_sitter.Node, _ []*tree_sitter.Node) bool {
			if ref, ok := s.fam.dynamicImport(inner, s.Source); ok {
				emit(ref)
			}
			return true
		})
		return false
	})
	return edges
}

// Resolve maps one specifier written in importer to a project path, or ""
// when it is external or cannot be found. A non-empty result is always a
// member of the resolver's path set.
func (r *Resolver) Resolve(importer string, lang Language, specifier string, names []string) string {
	var resolved string
	switch lang {
	case LangTypeScript, LangTSX, LangJavaScript:
		resolved = r.resolveEcma(importer, specifier)
	case LangPython:
		resolved = r.resolvePython(importer, specifier, names)
	case LangGo:
		resolved = r.resolveGo(specifier)
	case LangRust:
		resolved = r.resolveRust(importer, specifier)
	}
	if !r.fileSet[resolved] {
		return ""
	}
	return resolved
}

// --- TypeScript / JavaScript resolution ---

var (
	ecmaSourceExts   = []string{".ts", ".tsx", ".mts", ".cts", ".js", ".jsx", ".mjs", ".cjs", ".d.ts"}
	ecmaCompiledExts = []string{".js", ".jsx", ".mjs", ".cjs"}
)

func isRelative(spec string) bool {
	return spec == "." || spec == ".." || strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}

func (r *Resolver) resolveEcma(importer, spec string) string {
	// Package-style specifiers name installed packages.
	if !isRelative(spec) {
		return ""
	}
	base, ok := joinWithin(path.Dir(importer), spec)
	if !ok {
		return ""
	}

	if r.fileSet[base] {
		return base
	}
	if p := r.probe(base, ecmaSourceExts); p != "" {
		return p
	}
	for _, ext := range ecmaCompiledExts {
		if stem, found := strings.CutSuffix(base, ext); found {
			if p := r.probe(stem, ecmaSourceExts); p != "" {
				return p
			}
		}
	}
	return r.probe(path.Join(base, "index"), ecmaSourceExts)
}

// joinWithin joins rel onto dir and reports false when the result escapes
// the project root.
func joinWithin(dir, rel string) (string, bool) {
	p := path.Join(dir, rel)
	if p == ".." || strings.HasPrefix(p, "../") {
		return "", false
	}
	return p, true
}

// --- Python resolution ---

var pythonProbes = []string{".py", ".pyi", "/__init__.py", "/__init__.pyi"}

func (r *Resolver) resolvePython(importer, spec string, names []string) string {
	dots := len(spec) - len(strings.TrimLeft(spec, "."))
	module := strings.ReplaceAll(spec[dots:], ".", "/")

	var bases []string
	if dots > 0 {
		dir := path.Dir(importer)
		for i := 1; i < dots; i++ {
			if dir == "." {
				return "" // above the project root
			}
			dir = path.Dir(dir)
		}
		bases = []string{dir}
	} else {
		bases = []string{".", path.Dir(importer), "src"}
	}

	for _, dir := range bases {
		if module == "" {
			// from . import x: prefer the submodule x, then the package.
			if len(names) == 1 && names[0] != Wildcard {
				if p := r.probe(path.Join(dir, names[0]), pythonProbes); p != "" {
					return p
				}
			}
			if p := r.probe(path.Join(dir, "__init__"), []string{".py", ".pyi"}); p != "" {
				return p
			}
			continue
		}
		base := path.Join(dir, module)
		if p := r.probe(base, pythonProbes); p != "" {
			return p
		}
		// from pkg import mod, where mod is a file rather than a name.
		if len(names) == 1 && names[0] != Wildcard {
			if p := r.probe(path.Join(base, names[0]), pythonProbes); p != "" {
				return p
			}
		}
	}
	return ""
}

// --- Go resolution ---

func (r *Resolver) resolveGo(spec string) string {
	if r.goModule == "" {
		return ""
	}
	var relDir string
	switch {
	case spec == r.goModule:
		relDir = "."
	case strings.HasPrefix(spec, r.goModule+"/"):
		relDir = strings.TrimPrefix(spec, r.goModule+"/")
	default:
		return "" // stdlib or external module
	}

	// dirIndex is sorted, so the first non-test file is deterministic.
	for _, f := range r.dirIndex[relDir] {
		if strings.HasSuffix(f, ".go") && !strings.HasSuffix(f, "_test.go") {
			return f
		}
	}
	return ""
}

// --- Rust resolution ---

var rustProbes = []string{".rs", "/mod.rs"}

func (r *Resolver) resolveRust(importer, spec string) string {
	// Strip use lists and globs: "crate::model::{A, B}" → "crate::model".
	if i := strings.Index(spec, "::{"); i >= 0 {
		spec = spec[:i]
	}
	spec = strings.TrimSuffix(spec, "::*")
	if i := strings.Index(spec, " as "); i >= 0 {
		spec = spec[:i]
	}

	segs := strings.Split(spec, "::")
	segs0 := segs[0]
	var dir string
	switch segs0 {
	case "crate":
		dir = r.crateRoot(importer)
	case "self":
		dir = rustModuleDir(importer)
	case "super":
		dir = path.Dir(rustModuleDir(importer))
		for len(segs) > 1 && segs[1] == "super" {
			dir = path.Dir(dir)
			segs = segs[1:]
		}
	default:
		return "" // external crate
	}
	segs = segs[1:]

	// use crate::a::b::Item names an item inside a/b.rs; try the longest
	// module path first.
	for n := len(segs); n > 0; n-- {
		base := path.Join(append([]string{dir}, segs[:n]...)...)
		if p := r.probe(base, rustProbes); p != "" {
			return p
		}
	}
	if segs0 == "crate" {
		// An item declared in the crate root itself.
		if p := r.probe(path.Join(dir, "lib"), rustProbes[:1]); p != "" {
			return p
		}
		return r.probe(path.Join(dir, "main"), rustProbes[:1])
	}
	return ""
}

// rustModuleDir returns the directory holding the submodules of the module
// defined by file: the file's own directory for crate roots and mod.rs,
// otherwise a directory named after the file.
func rustModuleDir(file string) string {
	switch path.Base(file) {
	case "lib.rs", "main.rs", "mod.rs":
		return path.Dir(file)
	}
	return strings.TrimSuffix(file, ".rs")
}

// crateRoot returns the directory of the nearest enclosing lib.rs or
// main.rs, falling back to the nearest "src" directory.
func (r *Resolver) crateRoot(importer string) string {
	for dir := path.Dir(importer); ; dir = path.Dir(dir) {
		if r.fileSet[path.Join(dir, "lib.rs")] || r.fileSet[path.Join(dir, "main.rs")] {
			return dir
		}
		if dir == "." || dir == "/" {
			break
		}
	}
	for dir := path.Dir(importer); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if path.Base(dir) == "src" {
			return dir
		}
	}
	return "src"
}

// --- Shared helpers ---

// probe returns the first of base+ext present in the path set.
func (r *Resolver) probe(base string, exts []string) string {
	for _, ext := range exts {
		if candidate := base + ext; r.fileSet[candidate] {
			return candidate
		}
	}
	return ""
}
