package detect

import (
	"fmt"
	"slices"
	"strings"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/dusk-indust/archscan/internal/graph"
)

// CycleDetector reports every strongly connected component of more than
// one file in the resolved dependency graph.
type CycleDetector struct{}

// Name implements Detector.
func (*CycleDetector) Name() string { return CategoryCycle }

// Detect implements Detector.
func (*CycleDetector) Detect(s *Snapshot) []graph.Finding {
	paths := make([]string, 0, len(s.Files))
	for _, f := range s.Files {
		paths = append(paths, f.Path)
	}
	slices.Sort(paths)

	ids := make(map[string]int64, len(paths))
	g := simple.NewDirectedGraph()
	for i, p := range paths {
		ids[p] = int64(i)
		g.AddNode(simple.Node(i))
	}
	for _, e := range s.resolvedEdges() {
		from, ok := ids[e.SourceFile]
		if !ok {
			continue
		}
		to := ids[*e.TargetFile]
		// simple graphs reject self-loops; a file importing itself is not a
		// cycle between files.
		if from == to {
			continue
		}
		g.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
	}

	var cycles [][]string
	for _, scc := range topo.TarjanSCC(g) {
		if len(scc) < 2 {
			continue
		}
		members := make([]string, 0, len(scc))
		for _, n := range scc {
			members = append(members, paths[n.ID()])
		}
		slices.Sort(members)
		cycles = append(cycles, members)
	}
	slices.SortFunc(cycles, func(a, b []string) int { return strings.Compare(a[0], b[0]) })

	findings := make([]graph.Finding, 0, len(cycles))
	for _, members := range cycles {
		findings = append(findings, graph.Finding{
			Category: CategoryCycle,
			Severity: cycleSeverity(len(members)),
			Title:    fmt.Sprintf("Circular dependency between %d files", len(members)),
			Description: fmt.Sprintf("The files %s import each other directly or transitively.",
				strings.Join(members, ", ")),
			Evidence: map[string]any{
				"files": members,
				"size":  len(members),
			},
			Suggestion: "Break the cycle by extracting the shared declarations into a separate module or inverting one dependency.",
		})
	}
	return findings
}

func cycleSeverity(size int) graph.Severity {
	switch {
	case size > 5:
		return graph.SeverityHigh
	case size >= 3:
		return graph.SeverityMedium
	default:
		return graph.SeverityLow
	}
}
