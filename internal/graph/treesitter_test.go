package graph

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// findSymbol returns the first symbol whose Name and Kind match, or nil.
func findSymbol(symbols []SymbolRecord, name string, kind SymbolKind) *SymbolRecord {
	for i := range symbols {
		if symbols[i].Name == name && symbols[i].Kind == kind {
			return &symbols[i]
		}
	}
	return nil
}

// findEdge returns the first edge with the given specifier, or nil.
func findEdge(edges []DependencyEdge, spec string) *DependencyEdge {
	for i := range edges {
		if edges[i].ImportSpecifier == spec {
			return &edges[i]
		}
	}
	return nil
}

// fixtureFiles lists the project-relative paths of a fixture project.
// Tests run from internal/graph/, so fixtures live at ../../testdata/...
func fixtureFiles(t *testing.T, project string) (string, []string) {
	t.Helper()
	root := filepath.Join("..", "..", "testdata", "fixtures", project)
	var paths []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	require.NoError(t, err, "walking fixture %s", project)
	return root, paths
}

// analyzeFixture parses one fixture file and resolves it against its project.
func analyzeFixture(t *testing.T, p *TreeSitterParser, project, rel string) ParseResult {
	t.Helper()
	root, paths := fixtureFiles(t, project)
	src, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err, "reading fixture %s/%s", project, rel)

	syn, err := p.Parse(context.Background(), rel, src, DetectLanguage(rel))
	require.NoError(t, err)
	defer syn.Close()
	return Analyze(syn, NewResolver(root, paths), nil)
}

// assertLineRange checks that StartLine and EndLine are populated and valid.
func assertLineRange(t *testing.T, sym *SymbolRecord) {
	t.Helper()
	assert.Greater(t, sym.StartLine, 0, "StartLine should be > 0 for %s", sym.Name)
	assert.LessOrEqual(t, sym.StartLine, sym.EndLine, "StartLine <= EndLine for %s", sym.Name)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// ---------------------------------------------------------------------------
// Parser adapter
// ---------------------------------------------------------------------------

func TestTreeSitterParser_Supports(t *testing.T) {
	p := NewTreeSitterParser()
	defer p.Close()

	for _, lang := range SupportedLanguages {
		assert.True(t, p.Supports(lang), "should support %s", lang)
	}
	assert.False(t, p.Supports(LangNone))
	assert.False(t, p.Supports(Language("ruby")))
}

func TestTreeSitterParser_UnsupportedLanguage(t *testing.T) {
	p := NewTreeSitterParser()
	defer p.Close()

	_, err := p.Parse(context.Background(), "test.rb", []byte("puts 'hello'"), Language("ruby"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported language")
}

func TestTreeSitterParser_Unparseable(t *testing.T) {
	p := NewTreeSitterParser()
	defer p.Close()

	_, err := p.Parse(context.Background(), "broken.ts", []byte("}}}}"), LangTypeScript)
	require.ErrorIs(t, err, ErrUnparseable)
}

func TestTreeSitterParser_EmptyFile(t *testing.T) {
	p := NewTreeSitterParser()
	defer p.Close()

	for _, lang := range SupportedLanguages {
		t.Run(string(lang), func(t *testing.T) {
			syn, err := p.Parse(context.Background(), "empty", nil, lang)
			require.NoError(t, err, "an empty file is valid source")
			defer syn.Close()

			res := Analyze(syn, nil, nil)
			assert.Empty(t, res.Symbols)
			assert.Empty(t, res.Edges)
			assert.Equal(t, 0, res.Complexity, "no top-level construct means complexity 0")
		})
	}
}

func TestTreeSitterParser_ConcurrentParse(t *testing.T) {
	p := NewTreeSitterParser()
	defer p.Close()

	src := []byte("export function f(a: number) { return a > 1 && a < 5; }\n")
	done := make(chan int, 8)
	for range 8 {
		go func() {
			syn, err := p.Parse(context.Background(), "f.ts", src, LangTypeScript)
			if err != nil {
				done <- -1
				return
			}
			defer syn.Close()
			done <- FileComplexity(syn)
		}()
	}
	for range 8 {
		assert.Equal(t, 2, <-done)
	}
}

func TestTreeSitterParser_Close(t *testing.T) {
	p := NewTreeSitterParser()
	assert.NoError(t, p.Close())
	assert.NoError(t, p.Close(), "second Close should be safe")

	_, err := p.Parse(context.Background(), "a.go", []byte("package a\n"), LangGo)
	assert.Error(t, err, "Parse after Close should fail")
}

// ---------------------------------------------------------------------------
// TypeScript / JavaScript
// ---------------------------------------------------------------------------

func TestExtract_TypeScript(t *testing.T) {
	p := NewTreeSitterParser()
	defer p.Close()

	t.Run("types.ts", func(t *testing.T) {
		res := analyzeFixture(t, p, "ts_project", "types.ts")
		require.Len(t, res.Symbols, 4)

		user := findSymbol(res.Symbols, "User", SymbolKindInterface)
		require.NotNil(t, user)
		assert.True(t, user.Exported)
		assert.Equal(t, "A registered user.", deref(user.Docstring))
		assertLineRange(t, user)

		role := findSymbol(res.Symbols, "UserRole", SymbolKindType)
		require.NotNil(t, role)
		assert.True(t, role.Exported)

		status := findSymbol(res.Symbols, "Status", SymbolKindEnum)
		require.NotNil(t, status)
		assert.True(t, status.Exported)

		validate := findSymbol(res.Symbols, "validateEmail", SymbolKindFunction)
		require.NotNil(t, validate)
		assert.True(t, validate.Exported, "exported by the separate `export default` statement")
		assert.Equal(t, "validateEmail(email: string): boolean", deref(validate.Signature))
		assert.Equal(t, "Checks an address has a local part and a domain.", deref(validate.Docstring))
		assert.Equal(t, 2, deref(validate.Complexity))
		assert.Nil(t, user.Complexity, "only functions and methods carry complexity")

		assert.Empty(t, res.Edges)
		assert.Equal(t, 2, res.Complexity)
	})

	t.Run("service.ts", func(t *testing.T) {
		res := analyzeFixture(t, p, "ts_project", "service.ts")
		assert.Len(t, res.Symbols, 7)

		imp := findSymbol(res.Symbols, "./types", SymbolKindImport)
		require.NotNil(t, imp)
		assert.False(t, imp.Exported)

		us := findSymbol(res.Symbols, "UserService", SymbolKindClass)
		require.NotNil(t, us)
		assert.True(t, us.Exported)
		assert.Equal(t, "Keeps users in memory.", deref(us.Docstring))

		find := findSymbol(res.Symbols, "find", SymbolKindMethod)
		require.NotNil(t, find)
		assert.True(t, find.Exported)
		assert.Equal(t, 3, deref(find.Complexity), "for-of plus if")

		token := findSymbol(res.Symbols, "token", SymbolKindMethod)
		require.NotNil(t, token)
		assert.False(t, token.Exported, "private members are not exported")

		active := findSymbol(res.Symbols, "isActive", SymbolKindFunction)
		require.NotNil(t, active)
		assert.True(t, active.Exported)
		assert.Equal(t, "isActive(s: Status): boolean", deref(active.Signature))

		require.Len(t, res.Edges, 2)
		types := findEdge(res.Edges, "./types")
		require.NotNil(t, types)
		assert.Equal(t, "types.ts", types.Target())
		assert.Equal(t, EdgeKindStatic, types.Kind)
		assert.Equal(t, []string{"User", "Status"}, types.ImportedNames)

		ext := findEdge(res.Edges, "crypto")
		require.NotNil(t, ext)
		assert.False(t, ext.Resolved(), "package imports are never resolved")
		assert.Equal(t, []string{Wildcard}, ext.ImportedNames)
	})

	t.Run("index.ts", func(t *testing.T) {
		res := analyzeFixture(t, p, "ts_project", "index.ts")

		main := findSymbol(res.Symbols, "main", SymbolKindFunction)
		require.NotNil(t, main)
		assert.True(t, main.Exported)
		assert.Equal(t, 2, deref(main.Complexity), "?? is not a decision point")

		reexport := findSymbol(res.Symbols, "./service", SymbolKindExport)
		require.NotNil(t, reexport)
		assert.True(t, reexport.Exported)
		assert.Nil(t, findSymbol(res.Symbols, "./polyfills.js", SymbolKindImport),
			"side-effect imports bind nothing")
		assert.Len(t, res.Symbols, 4)

		require.Len(t, res.Edges, 5)
		assert.Equal(t, "polyfills.ts", findEdge(res.Edges, "./polyfills.js").Target(),
			"compiled extension resolves to the source file")

		dyn := findEdge(res.Edges, "./plugins/loader")
		require.NotNil(t, dyn)
		assert.Equal(t, EdgeKindDynamic, dyn.Kind)
		assert.Equal(t, "plugins/loader.js", dyn.Target())

		last := res.Edges[4]
		assert.Equal(t, "./service", last.ImportSpecifier)
		assert.Equal(t, []string{"isActive"}, last.ImportedNames)
		assert.Equal(t, "service.ts", last.Target())
	})

	t.Run("loader.js", func(t *testing.T) {
		res := analyzeFixture(t, p, "ts_project", "plugins/loader.js")

		run := findSymbol(res.Symbols, "run", SymbolKindFunction)
		require.NotNil(t, run)
		assert.False(t, run.Exported)

		require.Len(t, res.Edges, 1)
		assert.Equal(t, EdgeKindDynamic, res.Edges[0].Kind)
		assert.Equal(t, "path", res.Edges[0].ImportSpecifier)
		assert.False(t, res.Edges[0].Resolved())
	})
}

// ---------------------------------------------------------------------------
// Python
// ---------------------------------------------------------------------------

func TestExtract_Python(t *testing.T) {
	p := NewTreeSitterParser()
	defer p.Close()

	t.Run("models.py", func(t *testing.T) {
		res := analyzeFixture(t, p, "py_project", "models.py")
		assert.Len(t, res.Symbols, 6)

		user := findSymbol(res.Symbols, "User", SymbolKindClass)
		require.NotNil(t, user)
		assert.True(t, user.Exported)
		assert.Equal(t, "A registered user.", deref(user.Docstring))
		assertLineRange(t, user)

		display := findSymbol(res.Symbols, "display", SymbolKindMethod)
		require.NotNil(t, display)
		assert.Equal(t, "display(self) -> str", deref(display.Signature))

		initFn := findSymbol(res.Symbols, "__init__", SymbolKindMethod)
		require.NotNil(t, initFn)
		assert.False(t, initFn.Exported)

		genID := findSymbol(res.Symbols, "_generate_id", SymbolKindFunction)
		require.NotNil(t, genID)
		assert.False(t, genID.Exported, "underscore-prefixed names are private")

		create := findSymbol(res.Symbols, "create_user", SymbolKindFunction)
		require.NotNil(t, create)
		assert.True(t, create.Exported)
		assert.Equal(t, "create_user(name: str, email: str) -> User", deref(create.Signature))
		assert.Equal(t, "Builds a user after checking the address.", deref(create.Docstring))
		assert.Equal(t, 3, deref(create.Complexity), "if plus `or`")

		require.Len(t, res.Edges, 1)
		assert.Equal(t, "uuid", res.Edges[0].ImportSpecifier)
		assert.False(t, res.Edges[0].Resolved())
	})

	t.Run("service.py", func(t *testing.T) {
		res := analyzeFixture(t, p, "py_project", "service.py")

		find := findSymbol(res.Symbols, "find", SymbolKindMethod)
		require.NotNil(t, find)
		assert.Equal(t, 3, deref(find.Complexity))

		require.Len(t, res.Edges, 2)
		assert.Equal(t, "models.py", res.Edges[0].Target())
		assert.Equal(t, []string{"User", "create_user"}, res.Edges[0].ImportedNames)
		assert.Equal(t, ".", res.Edges[1].ImportSpecifier)
		assert.Equal(t, "models.py", res.Edges[1].Target(), "from . import models")
	})

	t.Run("__init__.py", func(t *testing.T) {
		res := analyzeFixture(t, p, "py_project", "__init__.py")
		for _, s := range res.Symbols {
			assert.Equal(t, SymbolKindImport, s.Kind)
		}
		require.Len(t, res.Edges, 2)
		assert.Equal(t, "models.py", res.Edges[0].Target())
		assert.Equal(t, "service.py", res.Edges[1].Target())
	})
}

// ---------------------------------------------------------------------------
// C#
// ---------------------------------------------------------------------------

func TestExtract_CSharp(t *testing.T) {
	p := NewTreeSitterParser()
	defer p.Close()

	t.Run("User.cs", func(t *testing.T) {
		res := analyzeFixture(t, p, "cs_project", "User.cs")

		user := findSymbol(res.Symbols, "User", SymbolKindClass)
		require.NotNil(t, user)
		assert.True(t, user.Exported)
		assert.Equal(t, "<summary>A registered user.</summary>", deref(user.Docstring))

		valid := findSymbol(res.Symbols, "IsValid", SymbolKindMethod)
		require.NotNil(t, valid)
		assert.True(t, valid.Exported)
		assert.Equal(t, "bool IsValid()", deref(valid.Signature))
		assert.Equal(t, 2, deref(valid.Complexity))

		reset := findSymbol(res.Symbols, "Reset", SymbolKindMethod)
		require.NotNil(t, reset)
		assert.False(t, reset.Exported)

		role := findSymbol(res.Symbols, "Role", SymbolKindEnum)
		require.NotNil(t, role)
		assert.True(t, role.Exported)

		audit := findSymbol(res.Symbols, "IAuditable", SymbolKindInterface)
		require.NotNil(t, audit)
		assert.False(t, audit.Exported, "internal types are not exported")

		require.Len(t, res.Edges, 1)
		assert.Equal(t, EdgeKindUsing, res.Edges[0].Kind)
		assert.Equal(t, "System", res.Edges[0].ImportSpecifier)
		assert.False(t, res.Edges[0].Resolved(), "using directives never resolve")
	})

	t.Run("UserService.cs", func(t *testing.T) {
		res := analyzeFixture(t, p, "cs_project", "UserService.cs")

		find := findSymbol(res.Symbols, "Find", SymbolKindMethod)
		require.NotNil(t, find)
		assert.Equal(t, "User Find(string name)", deref(find.Signature))
		assert.Equal(t, "Finds a user by name.", deref(find.Docstring))
		assert.Equal(t, 4, deref(find.Complexity), "foreach, if and its else branch")

		require.Len(t, res.Edges, 3)
		assert.Equal(t, "System.Text.Json", res.Edges[2].ImportSpecifier, "alias is dropped")
		for _, e := range res.Edges {
			assert.Equal(t, EdgeKindUsing, e.Kind)
			assert.Nil(t, e.TargetFile)
		}
	})
}

// ---------------------------------------------------------------------------
// Go
// ---------------------------------------------------------------------------

func TestExtract_Go(t *testing.T) {
	p := NewTreeSitterParser()
	defer p.Close()

	t.Run("model.go", func(t *testing.T) {
		res := analyzeFixture(t, p, "go_project", "model.go")
		require.Len(t, res.Symbols, 3)

		user := findSymbol(res.Symbols, "User", SymbolKindType)
		require.NotNil(t, user)
		assert.True(t, user.Exported)
		assert.Equal(t, "User represents a system user.", deref(user.Docstring))
		assertLineRange(t, user)

		repo := findSymbol(res.Symbols, "Repository", SymbolKindInterface)
		require.NotNil(t, repo)
		assert.True(t, repo.Exported)

		newUser := findSymbol(res.Symbols, "newUser", SymbolKindFunction)
		require.NotNil(t, newUser)
		assert.False(t, newUser.Exported)
		assert.Nil(t, newUser.Docstring)
		assert.Equal(t, "newUser(name, email string) *User", deref(newUser.Signature))

		assert.Empty(t, res.Edges)
	})

	t.Run("service.go", func(t *testing.T) {
		res := analyzeFixture(t, p, "go_project", "service.go")
		assert.Len(t, res.Symbols, 5)

		getUser := findSymbol(res.Symbols, "GetUser", SymbolKindMethod)
		require.NotNil(t, getUser)
		assert.True(t, getUser.Exported)
		assert.Equal(t, "(s *UserService) GetUser(id int) (*User, error)", deref(getUser.Signature))
		assert.Equal(t, 2, deref(getUser.Complexity))

		require.NotNil(t, findSymbol(res.Symbols, "fmt", SymbolKindImport))
		require.Len(t, res.Edges, 1)
		assert.Equal(t, "fmt", res.Edges[0].ImportSpecifier)
		assert.False(t, res.Edges[0].Resolved())
		assert.Equal(t, 3, res.Complexity)
	})
}

// ---------------------------------------------------------------------------
// Rust
// ---------------------------------------------------------------------------

func TestExtract_Rust(t *testing.T) {
	p := NewTreeSitterParser()
	defer p.Close()

	t.Run("model.rs", func(t *testing.T) {
		res := analyzeFixture(t, p, "rs_project", "src/model.rs")
		assert.Len(t, res.Symbols, 6)

		user := findSymbol(res.Symbols, "User", SymbolKindType)
		require.NotNil(t, user)
		assert.True(t, user.Exported)
		assert.Equal(t, "A registered user.", deref(user.Docstring))

		repo := findSymbol(res.Symbols, "Repository", SymbolKindInterface)
		require.NotNil(t, repo)
		assert.True(t, repo.Exported)

		save := findSymbol(res.Symbols, "save", SymbolKindMethod)
		require.NotNil(t, save)
		assert.True(t, save.Exported, "trait methods share the trait's visibility")

		newFn := findSymbol(res.Symbols, "new", SymbolKindMethod)
		require.NotNil(t, newFn)
		assert.True(t, newFn.Exported)
		assert.Equal(t, "new(id: u64, name: &str) -> Self", deref(newFn.Signature))

		validate := findSymbol(res.Symbols, "validate_email", SymbolKindMethod)
		require.NotNil(t, validate)
		assert.False(t, validate.Exported)
		assert.Equal(t, 2, deref(validate.Complexity))
	})

	t.Run("service.rs", func(t *testing.T) {
		res := analyzeFixture(t, p, "rs_project", "src/service.rs")

		us := findSymbol(res.Symbols, "UserService", SymbolKindType)
		require.NotNil(t, us)
		assert.True(t, us.Exported)

		for _, name := range []string{"new", "get_user", "create_user"} {
			m := findSymbol(res.Symbols, name, SymbolKindMethod)
			require.NotNil(t, m, name)
			assert.True(t, m.Exported, name)
		}

		require.Len(t, res.Edges, 1)
		assert.Equal(t, "src/model.rs", res.Edges[0].Target())
		assert.Equal(t, []string{"Repository", "User"}, res.Edges[0].ImportedNames)
	})

	t.Run("main.rs", func(t *testing.T) {
		res := analyzeFixture(t, p, "rs_project", "src/main.rs")

		main := findSymbol(res.Symbols, "main", SymbolKindFunction)
		require.NotNil(t, main)
		assert.False(t, main.Exported)
		assert.Len(t, res.Symbols, 3, "two use declarations and main")

		require.Len(t, res.Edges, 4)
		assert.Equal(t, "src/model.rs", findEdge(res.Edges, "self::model").Target())
		assert.Equal(t, "src/service.rs", findEdge(res.Edges, "self::service").Target())
		assert.Equal(t, "src/model.rs", findEdge(res.Edges, "crate::model::User").Target())
		assert.False(t, findEdge(res.Edges, "std::collections::HashMap").Resolved())
	})
}

func TestResolveDependencies_RustModules(t *testing.T) {
	p := NewTreeSitterParser()
	defer p.Close()

	src := []byte("mod a;\npub mod b;\n\nmod inner {\n    use crate::c::C;\n}\n")
	syn, err := p.Parse(context.Background(), "src/lib.rs", src, LangRust)
	require.NoError(t, err)
	defer syn.Close()

	r := NewResolver(t.TempDir(), []string{"src/lib.rs", "src/a.rs", "src/b/mod.rs", "src/c.rs"})
	edges := ResolveDependencies(syn, r)

	require.Len(t, edges, 3, "two mod declarations and the use inside the inline module")
	a := findEdge(edges, "self::a")
	require.NotNil(t, a)
	assert.Equal(t, "src/a.rs", a.Target())
	assert.Equal(t, 1, a.Line)
	b := findEdge(edges, "self::b")
	require.NotNil(t, b)
	assert.Equal(t, "src/b/mod.rs", b.Target())
	c := findEdge(edges, "crate::c::C")
	require.NotNil(t, c)
	assert.Equal(t, "src/c.rs", c.Target())
	assert.Equal(t, 5, c.Line)
}

// ---------------------------------------------------------------------------
// Doc comments
// ---------------------------------------------------------------------------

func TestStripCommentMarkers(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"line", "// hello", "hello"},
		{"doc line", "/// hello\n/// world", "hello\nworld"},
		{"inner doc", "//! crate docs", "crate docs"},
		{"hash", "# note", "note"},
		{"block", "/* short */", "short"},
		{"jsdoc", "/**\n * Adds.\n * @param a first\n */", "Adds.\n@param a first"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripCommentMarkers(tt.raw))
		})
	}
}

func TestStripStringQuotes(t *testing.T) {
	assert.Equal(t, "Doc.", stripStringQuotes(`"""Doc."""`))
	assert.Equal(t, "Doc.", stripStringQuotes(`'''Doc.'''`))
	assert.Equal(t, "raw", stripStringQuotes(`r"raw"`))
	assert.Equal(t, "x", stripStringQuotes(`'x'`))
}

func TestLeadingComment_BlankLineBreaksAdjacency(t *testing.T) {
	p := NewTreeSitterParser()
	defer p.Close()

	src := []byte("// unrelated\n\nfunction a() {}\n\n// about b\nfunction b() {}\n")
	syn, err := p.Parse(context.Background(), "x.js", src, LangJavaScript)
	require.NoError(t, err)
	defer syn.Close()

	syms := ExtractSymbols(syn)
	require.Len(t, syms, 2)
	assert.Nil(t, syms[0].Docstring)
	assert.Equal(t, "about b", deref(syms[1].Docstring))
}
