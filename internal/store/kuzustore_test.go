//go:build cgo

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/archscan/internal/graph"
)

// newKuzuStore creates a fresh in-memory KuzuStore with an initialized schema.
// It registers a cleanup function to close the store when the test finishes.
func newKuzuStore(t *testing.T) Store {
	t.Helper()
	s, err := NewKuzuStore()
	require.NoError(t, err, "NewKuzuStore should not fail")
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.InitSchema(context.Background()), "InitSchema should not fail")
	return s
}

func TestKuzuStore(t *testing.T) { runStoreSuite(t, newKuzuStore) }

func TestKuzuStore_InitSchema(t *testing.T) {
	s, err := NewKuzuStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()

	// First call creates the tables.
	require.NoError(t, s.InitSchema(ctx))

	// Second call should be idempotent (IF NOT EXISTS).
	require.NoError(t, s.InitSchema(ctx))
}

func TestKuzuStore_PlaceholderTargetsAreNotFiles(t *testing.T) {
	s := newKuzuStore(t)
	ctx := context.Background()

	// b.ts is referenced before it is stored.
	require.NoError(t, s.SaveFile(ctx, testFile("p", "a.ts", "ha"), nil, []graph.DependencyEdge{
		{SourceFile: "a.ts", TargetFile: graph.StrPtr("b.ts"), ImportSpecifier: "./b", Kind: graph.EdgeKindStatic, Line: 1},
	}))

	files, err := s.ListFiles(ctx, "p")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.ts", files[0].Path)

	_, err = s.GetFile(ctx, "p", "b.ts")
	assert.ErrorIs(t, err, ErrNotFound)

	// The IMPORTS relationship already exists and survives the upsert.
	require.NoError(t, s.UpsertFile(ctx, testFile("p", "b.ts", "hb")))
	chains, err := Dependencies(ctx, s, "p", "b.ts", DirectionDownstream, 1)
	require.NoError(t, err)
	require.Len(t, chains, 1)
	assert.Equal(t, []string{"b.ts", "a.ts"}, chains[0].Nodes)
}

func TestKuzuStore_DuplicateImportsCollapseInTraversal(t *testing.T) {
	s := newKuzuStore(t)
	ctx := context.Background()

	edge := graph.DependencyEdge{SourceFile: "a.ts", TargetFile: graph.StrPtr("b.ts"), ImportSpecifier: "./b", Kind: graph.EdgeKindStatic, Line: 1}
	require.NoError(t, s.SaveFile(ctx, testFile("p", "b.ts", "hb"), nil, nil))
	require.NoError(t, s.SaveFile(ctx, testFile("p", "a.ts", "ha"), nil, []graph.DependencyEdge{edge, edge}))

	edges, err := s.ListDependencies(ctx, "p")
	require.NoError(t, err)
	assert.Len(t, edges, 2, "edges are stored raw")

	chains, err := Dependencies(ctx, s, "p", "a.ts", DirectionUpstream, 3)
	require.NoError(t, err)
	assert.Len(t, chains, 1)
}

func TestKuzuFileStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "graph", "archscan.kuzu")
	ctx := context.Background()

	s, err := NewKuzuFileStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.InitSchema(ctx))
	require.NoError(t, s.SaveProject(ctx, graph.Project{ID: "p", RootPath: "/repo"}))
	require.NoError(t, s.Close())

	s, err = NewKuzuFileStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.InitSchema(ctx))

	p, err := s.GetProject(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, "/repo", p.RootPath)
}
