package detect

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/dusk-indust/archscan/internal/graph"
)

// Layer is one architectural layer, matched by doublestar path patterns.
type Layer struct {
	Name     string   `yaml:"name" json:"name"`
	Patterns []string `yaml:"patterns" json:"patterns"`
}

// DefaultLayers returns the layers from lowest to highest.
func DefaultLayers() []Layer {
	return []Layer{
		{Name: "data", Patterns: []string{"**/db/**", "**/data/**", "**/models/**", "**/repositories/**", "**/repository/**", "**/migrations/**", "**/entities/**"}},
		{Name: "domain", Patterns: []string{"**/domain/**", "**/core/**"}},
		{Name: "service", Patterns: []string{"**/services/**", "**/service/**", "**/usecases/**"}},
		{Name: "api", Patterns: []string{"**/api/**", "**/controllers/**", "**/handlers/**", "**/routes/**"}},
		{Name: "presentation", Patterns: []string{"**/views/**", "**/ui/**", "**/components/**", "**/pages/**", "**/presentation/**"}},
	}
}

// LayeringDetector reports edges from a lower layer to a higher one. Files
// that match no layer are ignored. The first matching layer wins.
type LayeringDetector struct {
	Layers  []Layer
	SkipGap int
}

// Name implements Detector.
func (*LayeringDetector) Name() string { return CategoryLayering }

// Detect implements Detector.
func (d *LayeringDetector) Detect(s *Snapshot) []graph.Finding {
	layers := d.Layers
	if len(layers) == 0 {
		layers = DefaultLayers()
	}
	skipGap := positive(d.SkipGap, DefaultLayerSkipGap)

	cache := make(map[string]int)
	layerOf := func(p string) int {
		if i, ok := cache[p]; ok {
			return i
		}
		i := classifyLayer(layers, p)
		cache[p] = i
		return i
	}

	seen := make(map[[2]string]bool)
	var findings []graph.Finding
	for _, e := range s.resolvedEdges() {
		target := *e.TargetFile
		pair := [2]string{e.SourceFile, target}
		if seen[pair] {
			continue
		}
		from, to := layerOf(e.SourceFile), layerOf(target)
		if from < 0 || to < 0 || from >= to {
			continue
		}
		seen[pair] = true

		gap := to - from
		evidence := map[string]any{
			"source":      e.SourceFile,
			"target":      target,
			"sourceLayer": layers[from].Name,
			"targetLayer": layers[to].Name,
			"gap":         gap,
			"line":        e.Line,
		}
		findings = append(findings, graph.Finding{
			Category: CategoryLayering,
			Severity: layeringSeverity(gap),
			Title:    fmt.Sprintf("%s layer depends on %s layer", layers[from].Name, layers[to].Name),
			Description: fmt.Sprintf("%s (%s) imports %s (%s); lower layers must not depend on higher ones.",
				e.SourceFile, layers[from].Name, target, layers[to].Name),
			Evidence:   evidence,
			Suggestion: "Invert the dependency, for example by defining an interface in the lower layer.",
		})
		if gap >= skipGap {
			findings = append(findings, graph.Finding{
				Category:    CategoryLayerSkip,
				Severity:    layeringSeverity(gap),
				Title:       fmt.Sprintf("Dependency skips %d layers", gap-1),
				Description: fmt.Sprintf("%s reaches from %s across %s to %s.", e.SourceFile, layers[from].Name, skipped(layers, from, to), layers[to].Name),
				Evidence:    evidence,
				Suggestion:  "Route the dependency through the intermediate layers.",
			})
		}
	}
	return findings
}

// classifyLayer returns the index of the first layer matching p, or -1.
func classifyLayer(layers []Layer, p string) int {
	for i, l := range layers {
		for _, pat := range l.Patterns {
			if ok, _ := doublestar.Match(pat, p); ok {
				return i
			}
		}
	}
	return -1
}

func skipped(layers []Layer, from, to int) string {
	names := make([]string, 0, to-from-1)
	for i := from + 1; i < to; i++ {
		names = append(names, layers[i].Name)
	}
	return strings.Join(names, ", ")
}

func layeringSeverity(gap int) graph.Severity {
	switch {
	case gap >= 3:
		return graph.SeverityHigh
	case gap == 2:
		return graph.SeverityMedium
	default:
		return graph.SeverityLow
	}
}
