package export

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/archscan/internal/detect"
	"github.com/dusk-indust/archscan/internal/graph"
	"github.com/dusk-indust/archscan/internal/store"
)

func seed(t *testing.T) store.Store {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemStore()
	require.NoError(t, s.SaveProject(ctx, graph.Project{ID: "p", RootPath: "/repo"}))

	save := func(path string, edges ...graph.DependencyEdge) {
		f := graph.FileRecord{ProjectID: "p", Path: path, Language: graph.LangTypeScript, ContentHash: "h-" + path, Cohesion: 1}
		syms := []graph.SymbolRecord{{FilePath: path, Kind: graph.SymbolKindFunction, Name: "fn", StartLine: 1, EndLine: 1}}
		require.NoError(t, s.SaveFile(ctx, f, syms, edges))
	}
	to := func(from, target string) graph.DependencyEdge {
		return graph.DependencyEdge{SourceFile: from, TargetFile: graph.StrPtr(target), ImportSpecifier: "./x", Kind: graph.EdgeKindStatic}
	}
	save("src/b.ts", to("src/b.ts", "src/a.ts"))
	save("src/a.ts",
		to("src/a.ts", "src/b.ts"),
		to("src/a.ts", "src/b.ts"),
		to("src/a.ts", "lib/c.ts"),
		graph.DependencyEdge{SourceFile: "src/a.ts", ImportSpecifier: "react", Kind: graph.EdgeKindStatic},
	)
	save("lib/c.ts")

	require.NoError(t, s.ReplaceFindings(ctx, "p", []graph.Finding{
		{ID: "f1", Category: detect.CategoryCycle, Severity: graph.SeverityLow, Title: "cycle",
			Evidence: map[string]any{"files": []any{"src/a.ts", "src/b.ts"}, "size": 2}},
		{ID: "f2", Category: detect.CategoryDeadCode, Severity: graph.SeverityLow, Title: "dead",
			Evidence: map[string]any{"file": "lib/c.ts"}},
	}))
	return s
}

func TestExportProject_JSON(t *testing.T) {
	s := seed(t)
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	e, err := ExportProject(context.Background(), s, "p", now)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-04T05:06:07Z", e.ExportedAt)
	assert.Equal(t, 3, e.Summary.Files)
	assert.Equal(t, 3, e.Summary.Symbols)
	assert.Equal(t, 5, e.Summary.Dependencies, "edges are exported raw")
	assert.Equal(t, 4, e.Summary.ResolvedEdges)
	assert.Equal(t, map[string]int{"low": 2}, e.Summary.FindingsBySeverity)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, e))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Contains(t, decoded, "files")
	assert.Contains(t, decoded, "findings")
	assert.Equal(t, "p", decoded["project"].(map[string]any)["id"])
}

func TestExportProject_EmptyCollections(t *testing.T) {
	s := store.NewMemStore()
	require.NoError(t, s.SaveProject(context.Background(), graph.Project{ID: "empty", RootPath: "/e"}))

	e, err := ExportProject(context.Background(), s, "empty", time.Now())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, e))
	assert.Contains(t, buf.String(), `"files": []`)
	assert.NotContains(t, buf.String(), "null")
}

func TestExportProject_UnknownProject(t *testing.T) {
	_, err := ExportProject(context.Background(), store.NewMemStore(), "nope", time.Now())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGenerateMermaid(t *testing.T) {
	out, err := GenerateMermaid(context.Background(), seed(t), "p")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	assert.Contains(t, out, `subgraph N0["lib"]`)
	assert.Contains(t, out, `subgraph N2["src"]`)
	assert.Contains(t, out, `N3["src/a.ts"]`)

	// a.ts imports b.ts twice; the diagram draws one arrow.
	assert.Equal(t, 1, strings.Count(out, "N3 ==> N4"))
	assert.Contains(t, out, "N4 ==> N3")
	assert.Contains(t, out, "N3 --> N1")
	assert.Contains(t, out, "class N3,N4 cycle")
}

func TestShortPath(t *testing.T) {
	assert.Equal(t, "a.ts", shortPath("a.ts"))
	assert.Equal(t, "src/a.ts", shortPath("src/a.ts"))
	assert.Equal(t, "pkg/a.ts", shortPath("deep/src/pkg/a.ts"))
}
