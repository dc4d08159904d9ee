package detect

import (
	"fmt"
	"math"
	"strings"

	"github.com/dusk-indust/archscan/internal/graph"
)

// GodModuleDetector reports files that exceed the declaration, line or
// complexity limits. Severity follows the worst metric-to-limit ratio.
type GodModuleDetector struct {
	MaxSymbols    int
	MaxLines      int
	MaxComplexity int
}

// Name implements Detector.
func (*GodModuleDetector) Name() string { return CategoryGodModule }

// Detect implements Detector.
func (d *GodModuleDetector) Detect(s *Snapshot) []graph.Finding {
	decls := make(map[string]int)
	for _, sym := range s.Symbols {
		if sym.Kind.IsDeclaration() {
			decls[sym.FilePath]++
		}
	}

	limits := []struct {
		metric string
		limit  int
		value  func(f graph.FileRecord) int
	}{
		{"symbols", positive(d.MaxSymbols, DefaultMaxSymbols), func(f graph.FileRecord) int { return decls[f.Path] }},
		{"lines", positive(d.MaxLines, DefaultMaxLines), func(f graph.FileRecord) int { return f.LineCount }},
		{"complexity", positive(d.MaxComplexity, DefaultMaxComplexity), func(f graph.FileRecord) int { return f.Complexity }},
	}

	var findings []graph.Finding
	for _, f := range s.Files {
		var exceeded []string
		worst := 0.0
		for _, l := range limits {
			v := l.value(f)
			if v <= l.limit {
				continue
			}
			exceeded = append(exceeded, fmt.Sprintf("%s %d > %d", l.metric, v, l.limit))
			worst = math.Max(worst, float64(v)/float64(l.limit))
		}
		if len(exceeded) == 0 {
			continue
		}
		findings = append(findings, graph.Finding{
			Category:    CategoryGodModule,
			Severity:    godModuleSeverity(worst),
			Title:       fmt.Sprintf("Oversized module %s", f.Path),
			Description: fmt.Sprintf("%s exceeds its size limits: %s.", f.Path, strings.Join(exceeded, ", ")),
			Evidence: map[string]any{
				"file":       f.Path,
				"symbols":    decls[f.Path],
				"lines":      f.LineCount,
				"complexity": f.Complexity,
				"ratio":      math.Round(worst*100) / 100,
				"exceeded":   exceeded,
			},
			Suggestion: "Split the module along its responsibilities into smaller files.",
		})
	}
	return findings
}

func godModuleSeverity(ratio float64) graph.Severity {
	switch {
	case ratio > 2:
		return graph.SeverityHigh
	case ratio > 1.5:
		return graph.SeverityMedium
	default:
		return graph.SeverityLow
	}
}

func positive(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
