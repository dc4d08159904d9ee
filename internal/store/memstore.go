package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/dusk-indust/archscan/internal/graph"
)

// Compile-time assertion: *MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// memProject holds everything stored for one project.
type memProject struct {
	files    map[string]graph.FileRecord
	symbols  map[string][]graph.SymbolRecord   // key: file path
	edges    map[string][]graph.DependencyEdge // key: source file path
	findings []graph.Finding
}

// MemStore implements Store using Go maps. Thread-safe via sync.RWMutex.
type MemStore struct {
	mu       sync.RWMutex
	registry map[string]graph.Project
	projects map[string]*memProject
	runs     map[string]graph.IndexRun
	now      func() time.Time
}

// NewMemStore returns an initialized MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{
		registry: make(map[string]graph.Project),
		projects: make(map[string]*memProject),
		runs:     make(map[string]graph.IndexRun),
		now:      time.Now,
	}
}

// project returns the data of id, creating it on first use. Callers hold
// the write lock.
func (m *MemStore) project(id string) *memProject {
	p, ok := m.projects[id]
	if !ok {
		p = &memProject{
			files:   make(map[string]graph.FileRecord),
			symbols: make(map[string][]graph.SymbolRecord),
			edges:   make(map[string][]graph.DependencyEdge),
		}
		m.projects[id] = p
	}
	return p
}

// InitSchema is a no-op for the in-memory store.
func (m *MemStore) InitSchema(_ context.Context) error {
	return nil
}

// SaveProject stores or replaces a registry entry.
func (m *MemStore) SaveProject(_ context.Context, p graph.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry[p.ID] = p
	return nil
}

// GetProject returns the registry entry for id.
func (m *MemStore) GetProject(_ context.Context, id string) (*graph.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.registry[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return &p, nil
}

// UpsertFile stores a file record keyed by project and path.
func (m *MemStore) UpsertFile(_ context.Context, f graph.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.project(f.ProjectID).files[f.Path] = f
	return nil
}

// GetFile returns one file record.
func (m *MemStore) GetFile(_ context.Context, projectID, path string) (*graph.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.projects[projectID]; ok {
		if f, ok := p.files[path]; ok {
			return &f, nil
		}
	}
	return nil, fmt.Errorf("file %s: %w", path, ErrNotFound)
}

// ListFiles returns the files of a project sorted by path.
func (m *MemStore) ListFiles(_ context.Context, projectID string) ([]graph.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[projectID]
	if !ok {
		return nil, nil
	}
	out := make([]graph.FileRecord, 0, len(p.files))
	for _, path := range slices.Sorted(maps.Keys(p.files)) {
		out = append(out, p.files[path])
	}
	return out, nil
}

// DeleteFile removes a file with its symbols and outgoing edges. Edges of
// other files that targeted it become unresolved.
func (m *MemStore) DeleteFile(_ context.Context, projectID, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[projectID]
	if !ok {
		return nil
	}
	delete(p.files, path)
	delete(p.symbols, path)
	delete(p.edges, path)
	for src, edges := range p.edges {
		for i := range edges {
			if edges[i].Target() == path {
				edges[i].TargetFile = nil
			}
		}
		p.edges[src] = edges
	}
	return nil
}

// UpdateFileMetrics overwrites the derived metrics of a file.
func (m *MemStore) UpdateFileMetrics(_ context.Context, projectID, path string, metrics graph.FileMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[projectID]
	if !ok {
		return fmt.Errorf("file %s: %w", path, ErrNotFound)
	}
	f, ok := p.files[path]
	if !ok {
		return fmt.Errorf("file %s: %w", path, ErrNotFound)
	}
	f.Complexity = metrics.Complexity
	f.EfferentCoupling = metrics.EfferentCoupling
	f.AfferentCoupling = metrics.AfferentCoupling
	f.Cohesion = metrics.Cohesion
	p.files[path] = f
	return nil
}

// SaveFile upserts f and replaces its symbols and edges under one lock.
func (m *MemStore) SaveFile(_ context.Context, f graph.FileRecord, symbols []graph.SymbolRecord, edges []graph.DependencyEdge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.project(f.ProjectID)
	p.files[f.Path] = f
	p.symbols[f.Path] = slices.Clone(symbols)
	p.edges[f.Path] = slices.Clone(edges)
	return nil
}

// ReplaceSymbols replaces every symbol owned by path.
func (m *MemStore) ReplaceSymbols(_ context.Context, projectID, path string, symbols []graph.SymbolRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.project(projectID).symbols[path] = slices.Clone(symbols)
	return nil
}

// ReplaceDependencies replaces every edge whose source is path.
func (m *MemStore) ReplaceDependencies(_ context.Context, projectID, path string, edges []graph.DependencyEdge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.project(projectID).edges[path] = slices.Clone(edges)
	return nil
}

// ListSymbols returns every symbol of a project, ordered by file and line.
func (m *MemStore) ListSymbols(_ context.Context, projectID string) ([]graph.SymbolRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[projectID]
	if !ok {
		return nil, nil
	}
	var out []graph.SymbolRecord
	for _, path := range slices.Sorted(maps.Keys(p.symbols)) {
		out = append(out, p.symbols[path]...)
	}
	sortSymbols(out)
	return out, nil
}

// ListDependencies returns every edge of a project grouped by source file,
// in extraction order within a file.
func (m *MemStore) ListDependencies(_ context.Context, projectID string) ([]graph.DependencyEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[projectID]
	if !ok {
		return nil, nil
	}
	var out []graph.DependencyEdge
	for _, path := range slices.Sorted(maps.Keys(p.edges)) {
		for _, e := range p.edges[path] {
			e.ImportedNames = slices.Clone(e.ImportedNames)
			out = append(out, e)
		}
	}
	return out, nil
}

// CreateRun records a new run.
func (m *MemStore) CreateRun(_ context.Context, run graph.IndexRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; ok {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	m.runs[run.ID] = run
	return nil
}

// runningRun returns the run with id if it is still running. Callers hold
// the write lock.
func (m *MemStore) runningRun(id string) (graph.IndexRun, error) {
	run, ok := m.runs[id]
	if !ok {
		return run, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if run.Status != graph.RunRunning {
		return run, fmt.Errorf("run %s: %w", id, ErrRunTerminated)
	}
	return run, nil
}

// UpdateRunProgress records progress of a running run.
func (m *MemStore) UpdateRunProgress(_ context.Context, runID string, processed, total int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, err := m.runningRun(runID)
	if err != nil {
		return err
	}
	run.FilesProcessed = processed
	run.FilesTotal = total
	m.runs[runID] = run
	return nil
}

// CompleteRun marks a running run completed.
func (m *MemStore) CompleteRun(_ context.Context, runID string, processed int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, err := m.runningRun(runID)
	if err != nil {
		return err
	}
	run.Status = graph.RunCompleted
	run.FilesProcessed = processed
	run.FinishedAt = m.now()
	m.runs[runID] = run
	return nil
}

// FailRun marks a running run failed with reason.
func (m *MemStore) FailRun(_ context.Context, runID string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, err := m.runningRun(runID)
	if err != nil {
		return err
	}
	run.Status = graph.RunFailed
	run.Error = reason
	run.FinishedAt = m.now()
	m.runs[runID] = run
	return nil
}

// GetRun returns a run by id.
func (m *MemStore) GetRun(_ context.Context, runID string) (*graph.IndexRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return &run, nil
}

// ReplaceFindings replaces all findings of a project.
func (m *MemStore) ReplaceFindings(_ context.Context, projectID string, findings []graph.Finding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.project(projectID).findings = slices.Clone(findings)
	return nil
}

// ListFindings returns the findings of a project at or above minSeverity,
// most severe first.
func (m *MemStore) ListFindings(_ context.Context, projectID string, minSeverity graph.Severity) ([]graph.Finding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[projectID]
	if !ok {
		return nil, nil
	}
	out := slices.Clone(p.findings)
	sortFindings(out)
	return filterSeverity(out, minSeverity), nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error {
	return nil
}
