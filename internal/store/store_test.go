package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/archscan/internal/graph"
)

// backend opens a fresh, schema-initialised Store for one test.
type backend func(t *testing.T) Store

func newMemStore(t *testing.T) Store {
	t.Helper()
	s := NewMemStore()
	require.NoError(t, s.InitSchema(context.Background()))
	return s
}

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "archscan.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.InitSchema(context.Background()))
	return s
}

func TestMemStore(t *testing.T)    { runStoreSuite(t, newMemStore) }
func TestSQLiteStore(t *testing.T) { runStoreSuite(t, newSQLiteStore) }

func TestSQLiteStore_InMemory(t *testing.T) {
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.InitSchema(ctx))
	require.NoError(t, s.InitSchema(ctx), "schema creation is idempotent")
	require.NoError(t, s.UpsertFile(ctx, testFile("p", "a.ts", "h1")))

	files, err := s.ListFiles(ctx, "p")
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "archscan.db")
	ctx := context.Background()

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.InitSchema(ctx))
	require.NoError(t, s.SaveProject(ctx, graph.Project{ID: "p", RootPath: "/repo", LastIndexedCommit: "abc"}))
	require.NoError(t, s.SaveFile(ctx, testFile("p", "a.ts", "h1"), nil, []graph.DependencyEdge{
		{SourceFile: "a.ts", ImportSpecifier: "react", Kind: graph.EdgeKindStatic, Line: 1},
	}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.InitSchema(ctx))

	p, err := s.GetProject(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, "abc", p.LastIndexedCommit)

	edges, err := s.ListDependencies(ctx, "p")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Nil(t, edges[0].TargetFile)
	assert.Nil(t, edges[0].ImportedNames)
}

// ---------------------------------------------------------------------------
// Shared suite
// ---------------------------------------------------------------------------

func testFile(project, path, hash string) graph.FileRecord {
	return graph.FileRecord{
		ProjectID:    project,
		Path:         path,
		AbsolutePath: "/repo/" + path,
		Language:     graph.DetectLanguage(path),
		SizeBytes:    42,
		LineCount:    3,
		ContentHash:  hash,
		Complexity:   2,
		Cohesion:     1,
		IndexedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func runStoreSuite(t *testing.T, open backend) {
	t.Run("Project", func(t *testing.T) { testProject(t, open(t)) })
	t.Run("EnsureProject", func(t *testing.T) { testEnsureProject(t, open(t)) })
	t.Run("FileLifecycle", func(t *testing.T) { testFileLifecycle(t, open(t)) })
	t.Run("SaveFileReplacesContents", func(t *testing.T) { testSaveFileReplaces(t, open(t)) })
	t.Run("DeleteFileUnresolvesImporters", func(t *testing.T) { testDeleteFile(t, open(t)) })
	t.Run("ProjectsAreIsolated", func(t *testing.T) { testProjectIsolation(t, open(t)) })
	t.Run("Runs", func(t *testing.T) { testRuns(t, open(t)) })
	t.Run("Findings", func(t *testing.T) { testFindings(t, open(t)) })
	t.Run("Dependencies", func(t *testing.T) { testDependencies(t, open(t)) })
	t.Run("QuerySymbols", func(t *testing.T) { testQuerySymbols(t, open(t)) })
}

func testProject(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.GetProject(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveProject(ctx, graph.Project{ID: "p", RootPath: "/repo"}))
	require.NoError(t, s.SaveProject(ctx, graph.Project{ID: "p", RootPath: "/repo", LastIndexedCommit: "deadbeef", LastIndexedAt: at}))

	got, err := s.GetProject(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, "/repo", got.RootPath)
	assert.Equal(t, "deadbeef", got.LastIndexedCommit)
	assert.True(t, at.Equal(got.LastIndexedAt))
}

func testFileLifecycle(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.GetFile(ctx, "p", "a.ts")
	assert.ErrorIs(t, err, ErrNotFound)

	f := testFile("p", "src/a.ts", "h1")
	f.IsTest = true
	require.NoError(t, s.UpsertFile(ctx, f))
	require.NoError(t, s.UpsertFile(ctx, testFile("p", "src/0.ts", "h0")))

	f.ContentHash = "h2"
	require.NoError(t, s.UpsertFile(ctx, f), "upsert replaces by (project, path)")

	got, err := s.GetFile(ctx, "p", "src/a.ts")
	require.NoError(t, err)
	assert.Equal(t, "h2", got.ContentHash)
	assert.Equal(t, graph.LangTypeScript, got.Language)
	assert.True(t, got.IsTest)
	assert.True(t, f.IndexedAt.Equal(got.IndexedAt))

	files, err := s.ListFiles(ctx, "p")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "src/0.ts", files[0].Path, "files are sorted by path")

	m := graph.FileMetrics{Complexity: 7, EfferentCoupling: 3, AfferentCoupling: 1, Cohesion: 0.25}
	require.NoError(t, s.UpdateFileMetrics(ctx, "p", "src/a.ts", m))
	got, err = s.GetFile(ctx, "p", "src/a.ts")
	require.NoError(t, err)
	assert.Equal(t, m, got.Metrics())
	assert.Equal(t, "h2", got.ContentHash, "metric updates leave the rest alone")

	err = s.UpdateFileMetrics(ctx, "p", "nope.ts", m)
	assert.ErrorIs(t, err, ErrNotFound)
}

func testSaveFileReplaces(t *testing.T, s Store) {
	ctx := context.Background()

	symbols := []graph.SymbolRecord{
		{FilePath: "a.ts", Kind: graph.SymbolKindImport, Name: "./b", StartLine: 1, EndLine: 1},
		{
			FilePath: "a.ts", Kind: graph.SymbolKindFunction, Name: "foo", StartLine: 3, EndLine: 5,
			Exported: true, Signature: graph.StrPtr("foo(x: number): number"),
			Docstring: graph.StrPtr("Doubles x."), Complexity: graph.IntPtr(2),
		},
	}
	edges := []graph.DependencyEdge{
		{SourceFile: "a.ts", TargetFile: graph.StrPtr("b.ts"), ImportSpecifier: "./b", Kind: graph.EdgeKindStatic, Line: 1, ImportedNames: []string{"bar", "baz"}},
		{SourceFile: "a.ts", ImportSpecifier: "react", Kind: graph.EdgeKindStatic, Line: 2, ImportedNames: []string{graph.Wildcard}},
	}
	require.NoError(t, s.SaveFile(ctx, testFile("p", "a.ts", "h1"), symbols, edges))
	require.NoError(t, s.SaveFile(ctx, testFile("p", "b.ts", "h2"), nil, nil))

	gotSyms, err := s.ListSymbols(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, symbols, gotSyms)

	gotEdges, err := s.ListDependencies(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, edges, gotEdges)

	// Reprocessing replaces the set; it never appends.
	require.NoError(t, s.SaveFile(ctx, testFile("p", "a.ts", "h3"), symbols[1:], edges[:1]))
	gotSyms, err = s.ListSymbols(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, symbols[1:], gotSyms)
	gotEdges, err = s.ListDependencies(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, edges[:1], gotEdges)

	require.NoError(t, s.ReplaceSymbols(ctx, "p", "a.ts", nil))
	require.NoError(t, s.ReplaceDependencies(ctx, "p", "a.ts", nil))
	gotSyms, err = s.ListSymbols(ctx, "p")
	require.NoError(t, err)
	assert.Empty(t, gotSyms)
	gotEdges, err = s.ListDependencies(ctx, "p")
	require.NoError(t, err)
	assert.Empty(t, gotEdges)
}

func testDeleteFile(t *testing.T, s Store) {
	ctx := context.Background()

	require.NoError(t, s.SaveFile(ctx, testFile("p", "b.ts", "hb"),
		[]graph.SymbolRecord{{FilePath: "b.ts", Kind: graph.SymbolKindFunction, Name: "bar", StartLine: 1, EndLine: 1, Exported: true}},
		[]graph.DependencyEdge{{SourceFile: "b.ts", TargetFile: graph.StrPtr("c.ts"), ImportSpecifier: "./c", Kind: graph.EdgeKindStatic, Line: 1}},
	))
	require.NoError(t, s.SaveFile(ctx, testFile("p", "a.ts", "ha"), nil,
		[]graph.DependencyEdge{{SourceFile: "a.ts", TargetFile: graph.StrPtr("b.ts"), ImportSpecifier: "./b", Kind: graph.EdgeKindStatic, Line: 1}},
	))
	require.NoError(t, s.SaveFile(ctx, testFile("p", "c.ts", "hc"), nil, nil))

	require.NoError(t, s.DeleteFile(ctx, "p", "b.ts"))

	files, err := s.ListFiles(ctx, "p")
	require.NoError(t, err)
	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"a.ts", "c.ts"}, paths)

	syms, err := s.ListSymbols(ctx, "p")
	require.NoError(t, err)
	assert.Empty(t, syms)

	edges, err := s.ListDependencies(ctx, "p")
	require.NoError(t, err)
	require.Len(t, edges, 1, "edges owned by the deleted file are gone")
	assert.Equal(t, "a.ts", edges[0].SourceFile)
	assert.Nil(t, edges[0].TargetFile, "importers of a deleted file become unresolved")

	require.NoError(t, s.DeleteFile(ctx, "p", "never-existed.ts"))
}

func testProjectIsolation(t *testing.T, s Store) {
	ctx := context.Background()

	require.NoError(t, s.SaveFile(ctx, testFile("p1", "a.ts", "h1"),
		[]graph.SymbolRecord{{FilePath: "a.ts", Kind: graph.SymbolKindClass, Name: "A", StartLine: 1, EndLine: 2}}, nil))
	require.NoError(t, s.SaveFile(ctx, testFile("p2", "a.ts", "h2"), nil, nil))

	f1, err := s.GetFile(ctx, "p1", "a.ts")
	require.NoError(t, err)
	f2, err := s.GetFile(ctx, "p2", "a.ts")
	require.NoError(t, err)
	assert.Equal(t, "h1", f1.ContentHash)
	assert.Equal(t, "h2", f2.ContentHash)

	syms, err := s.ListSymbols(ctx, "p2")
	require.NoError(t, err)
	assert.Empty(t, syms)
}

func testRuns(t *testing.T, s Store) {
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	_, err := s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	run := graph.IndexRun{ID: "r1", ProjectID: "p", Layer: graph.LayerStructure, Status: graph.RunRunning, FilesTotal: 10, StartedAt: started}
	require.NoError(t, s.CreateRun(ctx, run))
	require.NoError(t, s.UpdateRunProgress(ctx, "r1", 4, 10))

	got, err := s.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, graph.RunRunning, got.Status)
	assert.Equal(t, 4, got.FilesProcessed)
	assert.True(t, started.Equal(got.StartedAt))
	assert.True(t, got.FinishedAt.IsZero())

	require.NoError(t, s.CompleteRun(ctx, "r1", 10))
	got, err = s.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, graph.RunCompleted, got.Status)
	assert.Equal(t, 10, got.FilesProcessed)
	assert.False(t, got.FinishedAt.IsZero())

	// Terminated exactly once.
	assert.ErrorIs(t, s.FailRun(ctx, "r1", "late"), ErrRunTerminated)
	assert.ErrorIs(t, s.CompleteRun(ctx, "r1", 10), ErrRunTerminated)
	assert.ErrorIs(t, s.UpdateRunProgress(ctx, "r1", 1, 1), ErrRunTerminated)

	run2 := graph.IndexRun{ID: "r2", ProjectID: "p", Layer: graph.LayerAnalysis, Status: graph.RunRunning, StartedAt: started}
	require.NoError(t, s.CreateRun(ctx, run2))
	require.NoError(t, s.FailRun(ctx, "r2", "structure: walk: boom"))
	got, err = s.GetRun(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, graph.RunFailed, got.Status)
	assert.Equal(t, graph.LayerAnalysis, got.Layer)
	assert.Equal(t, "structure: walk: boom", got.Error)

	assert.ErrorIs(t, s.CompleteRun(ctx, "nope", 0), ErrNotFound)
}

func testFindings(t *testing.T, s Store) {
	ctx := context.Background()

	findings := []graph.Finding{
		{ID: "f1", Category: "dead_code", Severity: graph.SeverityLow, Title: "unused", Evidence: map[string]any{"file": "b.ts", "symbols": []string{"bar"}}},
		{ID: "f2", Category: "cycles", Severity: graph.SeverityHigh, Title: "cycle", Evidence: map[string]any{"files": []string{"a.ts", "b.ts"}, "size": 2}},
		{ID: "f3", Category: "coupling", Severity: graph.SeverityMedium, Title: "coupled", Evidence: map[string]any{"file": "a.ts"}},
	}
	require.NoError(t, s.ReplaceFindings(ctx, "p", findings))

	got, err := s.ListFindings(ctx, "p", "")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"f2", "f3", "f1"}, findingIDs(got), "most severe first")

	// Evidence survives storage as the same JSON document.
	want, err := json.Marshal(findings[1].Evidence)
	require.NoError(t, err)
	have, err := json.Marshal(got[0].Evidence)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(have))

	got, err = s.ListFindings(ctx, "p", graph.SeverityMedium)
	require.NoError(t, err)
	assert.Equal(t, []string{"f2", "f3"}, findingIDs(got))

	// Replaced wholesale.
	require.NoError(t, s.ReplaceFindings(ctx, "p", findings[:1]))
	got, err = s.ListFindings(ctx, "p", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"f1"}, findingIDs(got))

	require.NoError(t, s.ReplaceFindings(ctx, "p", nil))
	got, err = s.ListFindings(ctx, "p", "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func findingIDs(fs []graph.Finding) []string {
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.ID)
	}
	return out
}

func testDependencies(t *testing.T, s Store) {
	ctx := context.Background()

	// a -> b -> c, a -> d, d -> external
	edge := func(src, dst string) graph.DependencyEdge {
		return graph.DependencyEdge{SourceFile: src, TargetFile: graph.StrPtr(dst), ImportSpecifier: "./" + dst, Kind: graph.EdgeKindStatic, Line: 1}
	}
	require.NoError(t, s.SaveFile(ctx, testFile("p", "a.ts", "h"), nil, []graph.DependencyEdge{edge("a.ts", "b.ts"), edge("a.ts", "d.ts")}))
	require.NoError(t, s.SaveFile(ctx, testFile("p", "b.ts", "h"), nil, []graph.DependencyEdge{edge("b.ts", "c.ts")}))
	require.NoError(t, s.SaveFile(ctx, testFile("p", "c.ts", "h"), nil, nil))
	require.NoError(t, s.SaveFile(ctx, testFile("p", "d.ts", "h"), nil, []graph.DependencyEdge{
		{SourceFile: "d.ts", ImportSpecifier: "lodash", Kind: graph.EdgeKindStatic, Line: 1},
	}))

	chains, err := Dependencies(ctx, s, "p", "a.ts", DirectionUpstream, 5)
	require.NoError(t, err)
	require.Len(t, chains, 3)
	assert.Equal(t, 1, chains[0].Depth)
	assert.Equal(t, 1, chains[1].Depth)
	assert.Equal(t, []string{"a.ts", "b.ts", "c.ts"}, chains[2].Nodes)

	chains, err = Dependencies(ctx, s, "p", "a.ts", DirectionUpstream, 1)
	require.NoError(t, err)
	assert.Len(t, chains, 2, "depth limit")

	chains, err = Dependencies(ctx, s, "p", "c.ts", DirectionDownstream, 5)
	require.NoError(t, err)
	require.Len(t, chains, 2)
	assert.Equal(t, []string{"c.ts", "b.ts", "a.ts"}, chains[1].Nodes)

	chains, err = Dependencies(ctx, s, "p", "a.ts", DirectionUpstream, 0)
	require.NoError(t, err)
	assert.Empty(t, chains)

	_, err = Dependencies(ctx, s, "p", "a.ts", Direction("sideways"), 3)
	assert.Error(t, err)
}

func testQuerySymbols(t *testing.T, s Store) {
	ctx := context.Background()

	require.NoError(t, s.SaveFile(ctx, testFile("p", "svc.ts", "h"), []graph.SymbolRecord{
		{FilePath: "svc.ts", Kind: graph.SymbolKindClass, Name: "UserService", StartLine: 1, EndLine: 20, Exported: true},
		{FilePath: "svc.ts", Kind: graph.SymbolKindMethod, Name: "findUser", StartLine: 2, EndLine: 5},
		{FilePath: "svc.ts", Kind: graph.SymbolKindFunction, Name: "helper", StartLine: 22, EndLine: 24},
	}, nil))

	got, err := QuerySymbols(ctx, s, "p", "user", "", 0)
	require.NoError(t, err)
	assert.Len(t, got, 2, "case-insensitive substring match")

	got, err = QuerySymbols(ctx, s, "p", "user", graph.SymbolKindMethod, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "findUser", got[0].Name)

	got, err = QuerySymbols(ctx, s, "p", "", "", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2, "limit")
}

func testEnsureProject(t *testing.T, s Store) {
	ctx := context.Background()

	require.NoError(t, EnsureProject(ctx, s, "p", "/src/p"))
	p, err := s.GetProject(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, "/src/p", p.RootPath)

	p.LastIndexedCommit = "abc123"
	require.NoError(t, s.SaveProject(ctx, *p))

	// Moving the root keeps the rest of the registry entry.
	require.NoError(t, EnsureProject(ctx, s, "p", "/moved/p"))
	p, err = s.GetProject(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, "/moved/p", p.RootPath)
	assert.Equal(t, "abc123", p.LastIndexedCommit)
}
