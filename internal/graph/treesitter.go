package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unsafe"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// ErrUnparseable is returned when a grammar could not produce any usable
// structure for a file.
var ErrUnparseable = errors.New("graph: unparseable source")

// grammars maps each supported language to its tree-sitter grammar.
var grammars = map[Language]func() unsafe.Pointer{
	LangTypeScript: tree_sitter_typescript.LanguageTypescript,
	LangTSX:        tree_sitter_typescript.LanguageTSX,
	LangJavaScript: tree_sitter_javascript.Language,
	LangPython:     tree_sitter_python.Language,
	LangCSharp:     tree_sitter_csharp.Language,
	LangGo:         tree_sitter_go.Language,
	LangRust:       tree_sitter_rust.Language,
}

// parserPool holds idle parsers for one grammar. The grammar and the first
// parser are created on first use.
type parserPool struct {
	lang Language

	mu       sync.Mutex
	language *tree_sitter.Language
	idle     []*tree_sitter.Parser
	closed   bool
}

func (pp *parserPool) get() (*tree_sitter.Parser, error) {
	pp.mu.Lock()
	defer pp.mu.Unlock()

	if pp.closed {
		return nil, fmt.Errorf("graph: parser for %s is closed", pp.lang)
	}
	if pp.language == nil {
		pp.language = tree_sitter.NewLanguage(grammars[pp.lang]())
	}
	if n := len(pp.idle); n > 0 {
		p := pp.idle[n-1]
		pp.idle = pp.idle[:n-1]
		return p, nil
	}

	p := tree_sitter.NewParser()
	if err := p.SetLanguage(pp.language); err != nil {
		p.Close()
		return nil, fmt.Errorf("graph: set language %s: %w", pp.lang, err)
	}
	return p, nil
}

func (pp *parserPool) put(p *tree_sitter.Parser) {
	pp.mu.Lock()
	defer pp.mu.Unlock()

	if pp.closed {
		p.Close()
		return
	}
	pp.idle = append(pp.idle, p)
}

func (pp *parserPool) close() {
	pp.mu.Lock()
	defer pp.mu.Unlock()

	for _, p := range pp.idle {
		p.Close()
	}
	pp.idle = nil
	pp.closed = true
}

// TreeSitterParser implements Parser with the tree-sitter grammars for
// TypeScript, TSX, JavaScript, Python, C#, Go and Rust. It is owned by its
// caller and safe for concurrent use: every Parse borrows a parser from the
// grammar's pool and returns it when the tree is built.
type TreeSitterParser struct {
	pools map[Language]*parserPool
}

// NewTreeSitterParser creates a TreeSitterParser with every supported grammar
// registered. No grammar is loaded until a file of that language is parsed.
func NewTreeSitterParser() *TreeSitterParser {
	pools := make(map[Language]*parserPool, len(grammars))
	for lang := range grammars {
		pools[lang] = &parserPool{lang: lang}
	}
	return &TreeSitterParser{pools: pools}
}

// Parse builds the syntax tree of source.
func (p *TreeSitterParser) Parse(ctx context.Context, path string, source []byte, lang Language) (*Syntax, error) {
	pool, ok := p.pools[lang]
	if !ok {
		return nil, fmt.Errorf("graph: unsupported language %q for %s", lang, path)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parser, err := pool.get()
	if err != nil {
		return nil, err
	}
	tree := parser.Parse(source, nil)
	pool.put(parser)

	if tree == nil {
		return nil, fmt.Errorf("graph: parse %s: %w", path, ErrUnparseable)
	}
	root := tree.RootNode()
	if !usable(root) {
		tree.Close()
		return nil, fmt.Errorf("graph: parse %s: %w", path, ErrUnparseable)
	}

	return &Syntax{
		Path:     path,
		Language: lang,
		Source:   source,
		tree:     tree,
		root:     root,
		fam:      familyFor(lang),
	}, nil
}

// usable reports whether a tree has at least one well-formed top-level
// construct. Trees with scattered error nodes are still usable.
func usable(root *tree_sitter.Node) bool {
	if root == nil || root.IsError() {
		return false
	}
	if !root.HasError() {
		return true
	}
	for i := uint(0); i < root.NamedChildCount(); i++ {
		child := root.NamedChild(i)
		if child != nil && !child.IsError() && !child.HasError() {
			return true
		}
	}
	return false
}

// Supports reports whether lang has a registered grammar.
func (p *TreeSitterParser) Supports(lang Language) bool {
	_, ok := p.pools[lang]
	return ok
}

// Close frees every pooled parser. Parse fails after Close.
func (p *TreeSitterParser) Close() error {
	for _, pool := range p.pools {
		pool.close()
	}
	return nil
}
