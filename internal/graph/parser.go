package graph

import (
	"context"
	"fmt"
	"log/slog"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// Syntax is a parsed source file. The tree is owned by the Syntax and must be
// released with Close once extraction and resolution are done.
type Syntax struct {
	Path     string
	Language Language
	Source   []byte

	tree *tree_sitter.Tree
	root *tree_sitter.Node
	fam  family
}

// Root returns the root node of the syntax tree.
func (s *Syntax) Root() *tree_sitter.Node {
	return s.root
}

// Close releases the underlying tree-sitter tree.
func (s *Syntax) Close() {
	if s.tree != nil {
		s.tree.Close()
		s.tree = nil
	}
}

// Parser turns source text into a Syntax tree.
// Implementations: TreeSitterParser (production).
type Parser interface {
	// Parse parses source for the given language. A parse failure is returned
	// as an error; callers treat the file as producing no structure.
	Parse(ctx context.Context, path string, source []byte, lang Language) (*Syntax, error)

	// Supports reports whether lang has a registered grammar.
	Supports(lang Language) bool

	// Close releases parser resources (Tree-sitter C memory).
	Close() error
}

// ParseResult holds everything the engine derives from one file.
type ParseResult struct {
	Symbols    []SymbolRecord
	Edges      []DependencyEdge
	Complexity int
}

// Analyze runs the symbol extractor, the dependency resolver and the
// complexity computation over a parsed file. It never fails: a panic in any
// stage is logged and that stage contributes nothing.
func Analyze(s *Syntax, r *Resolver, logger *slog.Logger) ParseResult {
	if logger == nil {
		logger = slog.Default()
	}
	var res ParseResult
	guard(logger, s.Path, "extract", func() { res.Symbols = ExtractSymbols(s) })
	guard(logger, s.Path, "resolve", func() { res.Edges = ResolveDependencies(s, r) })
	guard(logger, s.Path, "complexity", func() { res.Complexity = FileComplexity(s) })
	return res
}

// guard runs fn and converts a panic into a diagnostic log entry.
func guard(logger *slog.Logger, path, stage string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("graph: stage panicked", "stage", stage, "path", path, "err", fmt.Sprint(r))
		}
	}()
	fn()
}
