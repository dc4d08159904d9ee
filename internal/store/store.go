// Package store is the persistence gateway of the analysis engine. Every
// durable read and write of files, symbols, dependency edges, findings and
// index runs goes through the Store interface.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/dusk-indust/archscan/internal/graph"
)

var (
	// ErrNotFound is returned by point lookups that match nothing.
	ErrNotFound = errors.New("store: not found")
	// ErrRunTerminated is returned when a run that already completed or
	// failed is updated again.
	ErrRunTerminated = errors.New("store: run already terminated")
)

// Store is the interface for the structural graph backend.
// Implementations: SQLiteStore (default), KuzuStore (graph-native, cgo),
// MemStore (tests and one-shot runs).
type Store interface {
	io.Closer

	// Schema setup, called once before any data is written.
	InitSchema(ctx context.Context) error

	// Project registry.
	SaveProject(ctx context.Context, p graph.Project) error
	GetProject(ctx context.Context, id string) (*graph.Project, error)

	// Files, keyed by (project, path).
	UpsertFile(ctx context.Context, f graph.FileRecord) error
	GetFile(ctx context.Context, projectID, path string) (*graph.FileRecord, error)
	ListFiles(ctx context.Context, projectID string) ([]graph.FileRecord, error)
	DeleteFile(ctx context.Context, projectID, path string) error
	UpdateFileMetrics(ctx context.Context, projectID, path string, m graph.FileMetrics) error

	// Per-file contents. SaveFile upserts the file and replaces its symbols
	// and outgoing edges in one unit; the Replace methods do one part.
	SaveFile(ctx context.Context, f graph.FileRecord, symbols []graph.SymbolRecord, edges []graph.DependencyEdge) error
	ReplaceSymbols(ctx context.Context, projectID, path string, symbols []graph.SymbolRecord) error
	ReplaceDependencies(ctx context.Context, projectID, path string, edges []graph.DependencyEdge) error
	ListSymbols(ctx context.Context, projectID string) ([]graph.SymbolRecord, error)
	ListDependencies(ctx context.Context, projectID string) ([]graph.DependencyEdge, error)

	// Run tracking. A run is terminated exactly once.
	CreateRun(ctx context.Context, run graph.IndexRun) error
	UpdateRunProgress(ctx context.Context, runID string, processed, total int) error
	CompleteRun(ctx context.Context, runID string, processed int) error
	FailRun(ctx context.Context, runID string, reason string) error
	GetRun(ctx context.Context, runID string) (*graph.IndexRun, error)

	// Findings are replaced wholesale per analysis run.
	ReplaceFindings(ctx context.Context, projectID string, findings []graph.Finding) error
	ListFindings(ctx context.Context, projectID string, minSeverity graph.Severity) ([]graph.Finding, error)
}

// EnsureProject registers projectID at root, or updates its root path if
// the project moved. Other registry fields are preserved.
func EnsureProject(ctx context.Context, s Store, projectID, root string) error {
	p, err := s.GetProject(ctx, projectID)
	switch {
	case errors.Is(err, ErrNotFound):
		return s.SaveProject(ctx, graph.Project{ID: projectID, RootPath: root})
	case err != nil:
		return fmt.Errorf("get project: %w", err)
	case p.RootPath != root:
		p.RootPath = root
		return s.SaveProject(ctx, *p)
	}
	return nil
}

// Direction controls dependency traversal direction.
type Direction string

const (
	DirectionUpstream   Direction = "upstream"   // what does this file depend on?
	DirectionDownstream Direction = "downstream" // what depends on this file?
)

// DependencyChain is one file reachable from the start of a traversal,
// with the path that reached it.
type DependencyChain struct {
	Nodes []string `json:"nodes"`
	Depth int      `json:"depth"`
}

// Dependencies performs a BFS over the resolved edges of a project from
// path in the given direction, up to maxDepth hops. It returns one chain per
// reachable file, nearest first.
func Dependencies(ctx context.Context, s Store, projectID, path string, dir Direction, maxDepth int) ([]DependencyChain, error) {
	if maxDepth <= 0 {
		return nil, nil
	}
	if dir != DirectionUpstream && dir != DirectionDownstream {
		return nil, fmt.Errorf("store: unknown direction %q", dir)
	}

	var next func(id string) ([]string, error)
	if n, ok := s.(neighborer); ok {
		next = func(id string) ([]string, error) { return n.neighbors(ctx, projectID, id, dir) }
	} else {
		edges, err := s.ListDependencies(ctx, projectID)
		if err != nil {
			return nil, err
		}
		adj := make(map[string][]string)
		for _, e := range edges {
			if e.TargetFile == nil {
				continue
			}
			from, to := e.SourceFile, *e.TargetFile
			if dir == DirectionDownstream {
				from, to = to, from
			}
			adj[from] = append(adj[from], to)
		}
		next = func(id string) ([]string, error) { return adj[id], nil }
	}

	// BFS state: each entry tracks the path from the start to the node.
	type bfsEntry struct {
		id   string
		path []string
	}
	visited := map[string]bool{path: true}
	queue := []bfsEntry{{id: path, path: []string{path}}}
	var chains []DependencyChain

	for depth := 0; depth < maxDepth && len(queue) > 0; depth++ {
		var nextQueue []bfsEntry
		for _, entry := range queue {
			neighbors, err := next(entry.id)
			if err != nil {
				return nil, err
			}
			for _, nb := range neighbors {
				if visited[nb] {
					continue
				}
				visited[nb] = true
				newPath := make([]string, len(entry.path), len(entry.path)+1)
				copy(newPath, entry.path)
				newPath = append(newPath, nb)
				chains = append(chains, DependencyChain{Nodes: newPath, Depth: len(newPath) - 1})
				nextQueue = append(nextQueue, bfsEntry{id: nb, path: newPath})
			}
		}
		queue = nextQueue
	}
	return chains, nil
}

// neighborer is implemented by graph-native stores that answer one hop of
// a traversal directly.
type neighborer interface {
	neighbors(ctx context.Context, projectID, path string, dir Direction) ([]string, error)
}

// QuerySymbols returns the symbols of a project whose name contains query
// (case-insensitive), optionally restricted to one kind, up to limit
// results. A limit <= 0 returns all matches.
func QuerySymbols(ctx context.Context, s Store, projectID, query string, kind graph.SymbolKind, limit int) ([]graph.SymbolRecord, error) {
	symbols, err := s.ListSymbols(ctx, projectID)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	var out []graph.SymbolRecord
	for _, sym := range symbols {
		if kind != "" && sym.Kind != kind {
			continue
		}
		if !strings.Contains(strings.ToLower(sym.Name), q) {
			continue
		}
		out = append(out, sym)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// sortFindings orders findings most severe first, then by category and id,
// so listings are stable across backends.
func sortFindings(fs []graph.Finding) {
	slices.SortStableFunc(fs, func(a, b graph.Finding) int {
		if d := b.Severity.Rank() - a.Severity.Rank(); d != 0 {
			return d
		}
		if c := strings.Compare(a.Category, b.Category); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// filterSeverity drops findings ranked below minSev. An empty minSev keeps
// all.
func filterSeverity(fs []graph.Finding, minSev graph.Severity) []graph.Finding {
	if minSev == "" {
		return fs
	}
	out := fs[:0]
	for _, f := range fs {
		if f.Severity.Rank() >= minSev.Rank() {
			out = append(out, f)
		}
	}
	return out
}

// sortSymbols orders symbols by file, then source position.
func sortSymbols(syms []graph.SymbolRecord) {
	slices.SortStableFunc(syms, func(a, b graph.SymbolRecord) int {
		if c := strings.Compare(a.FilePath, b.FilePath); c != 0 {
			return c
		}
		return a.StartLine - b.StartLine
	})
}

// timeString renders t for text columns; the zero time is "".
func timeString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// joinNames and splitNames store imported names in a single text column.
// Names are identifiers or "*" and never contain the separator.
func joinNames(names []string) string {
	return strings.Join(names, ",")
}

func splitNames(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
