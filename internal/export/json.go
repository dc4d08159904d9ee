// Package export renders a persisted project graph for consumers outside
// the engine: a JSON document and a Mermaid dependency diagram.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dusk-indust/archscan/internal/graph"
	"github.com/dusk-indust/archscan/internal/store"
)

// ProjectExport is the top-level JSON export structure.
type ProjectExport struct {
	Project      graph.Project          `json:"project"`
	ExportedAt   string                 `json:"exportedAt"`
	Summary      Summary                `json:"summary"`
	Files        []graph.FileRecord     `json:"files"`
	Symbols      []graph.SymbolRecord   `json:"symbols"`
	Dependencies []graph.DependencyEdge `json:"dependencies"`
	Findings     []graph.Finding        `json:"findings"`
}

// Summary holds the headline counts of an export.
type Summary struct {
	Files              int            `json:"files"`
	Symbols            int            `json:"symbols"`
	Dependencies       int            `json:"dependencies"`
	ResolvedEdges      int            `json:"resolvedDependencies"`
	FindingsBySeverity map[string]int `json:"findingsBySeverity"`
}

// ExportProject builds a ProjectExport from the store.
func ExportProject(ctx context.Context, s store.Store, projectID string, now time.Time) (*ProjectExport, error) {
	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	files, err := s.ListFiles(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("export: list files: %w", err)
	}
	symbols, err := s.ListSymbols(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("export: list symbols: %w", err)
	}
	edges, err := s.ListDependencies(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("export: list dependencies: %w", err)
	}
	findings, err := s.ListFindings(ctx, projectID, "")
	if err != nil {
		return nil, fmt.Errorf("export: list findings: %w", err)
	}

	e := &ProjectExport{
		Project:      *project,
		ExportedAt:   now.UTC().Format(time.RFC3339),
		Files:        nonNil(files),
		Symbols:      nonNil(symbols),
		Dependencies: nonNil(edges),
		Findings:     nonNil(findings),
		Summary: Summary{
			Files:              len(files),
			Symbols:            len(symbols),
			Dependencies:       len(edges),
			FindingsBySeverity: make(map[string]int),
		},
	}
	for _, edge := range edges {
		if edge.Resolved() {
			e.Summary.ResolvedEdges++
		}
	}
	for _, f := range findings {
		e.Summary.FindingsBySeverity[string(f.Severity)]++
	}
	return e, nil
}

// WriteJSON writes e as indented JSON.
func WriteJSON(w io.Writer, e *ProjectExport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(e); err != nil {
		return fmt.Errorf("export: encode: %w", err)
	}
	return nil
}

// nonNil keeps empty collections as [] rather than null in the output.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
