package detect

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/dusk-indust/archscan/internal/graph"
)

// DeadCodeDetector reports exported declarations that no other file
// references. A symbol counts as referenced when a resolved edge into its
// file imports it by name or imports the whole module. Go files are
// referenced as packages: a wildcard edge into any file of the directory
// references every file in it.
//
// Methods are reached through their receiver and never reported. Test
// files and languages without file-level import resolution (C#) are left
// out because their references cannot be observed.
type DeadCodeDetector struct {
	PerFileThreshold int
}

// Name implements Detector.
func (*DeadCodeDetector) Name() string { return CategoryDeadCode }

// Detect implements Detector.
func (d *DeadCodeDetector) Detect(s *Snapshot) []graph.Finding {
	byName := make(map[string]map[string]bool) // target file -> imported names
	goDirs := make(map[string]bool)            // Go package dirs imported as a whole
	for _, e := range s.resolvedEdges() {
		target := *e.TargetFile
		if e.SourceFile == target {
			continue
		}
		names := byName[target]
		if names == nil {
			names = make(map[string]bool)
			byName[target] = names
		}
		for _, n := range e.ImportedNames {
			names[n] = true
		}
		if f, ok := s.File(target); ok && f.Language == graph.LangGo && slices.Contains(e.ImportedNames, graph.Wildcard) {
			goDirs[path.Dir(target)] = true
		}
	}

	unused := make(map[string][]string)
	for _, sym := range s.Symbols {
		if !sym.Exported || !sym.Kind.IsDeclaration() || sym.Kind == graph.SymbolKindMethod {
			continue
		}
		f, ok := s.File(sym.FilePath)
		if !ok || f.IsTest || f.Language == graph.LangCSharp || f.Language == graph.LangNone {
			continue
		}
		if names := byName[sym.FilePath]; names[graph.Wildcard] || names[sym.Name] {
			continue
		}
		if f.Language == graph.LangGo && goDirs[path.Dir(sym.FilePath)] {
			continue
		}
		unused[sym.FilePath] = append(unused[sym.FilePath], sym.Name)
	}

	threshold := d.PerFileThreshold
	if threshold <= 0 {
		threshold = DefaultDeadCodePerFile
	}
	var findings []graph.Finding
	for _, file := range sortedKeys(unused) {
		names := unused[file]
		slices.Sort(names)
		names = slices.Compact(names)
		sev := graph.SeverityLow
		if len(names) > threshold {
			sev = graph.SeverityMedium
		}
		findings = append(findings, graph.Finding{
			Category:    CategoryDeadCode,
			Severity:    sev,
			Title:       fmt.Sprintf("%d unreferenced export(s) in %s", len(names), file),
			Description: fmt.Sprintf("No other file imports %s from %s.", strings.Join(names, ", "), file),
			Evidence: map[string]any{
				"file":    file,
				"symbols": names,
				"count":   len(names),
			},
			Suggestion: "Remove the unused exports or make them private if they are only used locally.",
		})
	}
	return findings
}
