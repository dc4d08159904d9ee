package graph

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// countDecisions sums the decision points of every node in the subtree
// rooted at n. Nesting depth carries no weight.
func countDecisions(fam family, n *tree_sitter.Node, src []byte) int {
	total := 0
	walkTree(n, func(node *tree_sitter.Node, _ []*tree_sitter.Node) bool {
		total += fam.decisions(node, src)
		return true
	})
	return total
}

// FileComplexity returns the cyclomatic complexity of a parsed file: 1 plus
// every decision point in the tree. A file with no top-level construct has
// complexity 0, the same as an unparseable one.
func FileComplexity(s *Syntax) int {
	if s == nil || s.fam == nil || s.root == nil || s.root.NamedChildCount() == 0 {
		return 0
	}
	return 1 + countDecisions(s.fam, s.root, s.Source)
}

// Coupling holds the edge counts of one file.
type Coupling struct {
	Efferent int
	Afferent int
}

// ComputeCoupling counts, for every file, the edges it is the source of and
// the resolved edges that target it. Counts are raw: two imports of the same
// target count twice.
func ComputeCoupling(edges []DependencyEdge) map[string]Coupling {
	out := make(map[string]Coupling)
	for _, e := range edges {
		c := out[e.SourceFile]
		c.Efferent++
		out[e.SourceFile] = c

		if e.TargetFile != nil {
			t := out[*e.TargetFile]
			t.Afferent++
			out[*e.TargetFile] = t
		}
	}
	return out
}

// Cohesion returns 1 - external/total clamped to [0, 1], where external is
// the file's outgoing edge count and total its declaration count. A file
// without declarations has nothing to be incohesive about and scores 1.
func Cohesion(externalRefs, declarations int) float64 {
	if declarations <= 0 {
		return 1
	}
	c := 1 - float64(externalRefs)/float64(declarations)
	return min(max(c, 0), 1)
}

// DeclarationCount counts the symbols of a file that declare something,
// leaving out import and export statements.
func DeclarationCount(symbols []SymbolRecord) int {
	n := 0
	for _, s := range symbols {
		if s.Kind.IsDeclaration() {
			n++
		}
	}
	return n
}

// ComputeMetrics derives the per-file metrics of a whole project from its
// complexity values, symbols and edges. Files absent from complexity are
// ignored.
func ComputeMetrics(complexity map[string]int, symbols []SymbolRecord, edges []DependencyEdge) map[string]FileMetrics {
	decls := make(map[string]int)
	for _, s := range symbols {
		if s.Kind.IsDeclaration() {
			decls[s.FilePath]++
		}
	}
	coupling := ComputeCoupling(edges)

	out := make(map[string]FileMetrics, len(complexity))
	for path, cx := range complexity {
		c := coupling[path]
		out[path] = FileMetrics{
			Complexity:       cx,
			EfferentCoupling: c.Efferent,
			AfferentCoupling: c.Afferent,
			Cohesion:         Cohesion(c.Efferent, decls[path]),
		}
	}
	return out
}
