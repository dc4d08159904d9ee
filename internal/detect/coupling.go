package detect

import (
	"fmt"

	"github.com/dusk-indust/archscan/internal/graph"
)

// CouplingDetector reports files whose stored coupling or cohesion crosses
// a limit. Every crossed limit is its own finding.
type CouplingDetector struct {
	MaxEfferent int
	MaxAfferent int
	MaxTotal    int
	MinCohesion float64
}

// Name implements Detector.
func (*CouplingDetector) Name() string { return CategoryCoupling }

// Detect implements Detector.
func (d *CouplingDetector) Detect(s *Snapshot) []graph.Finding {
	maxEff := positive(d.MaxEfferent, DefaultMaxEfferent)
	maxAff := positive(d.MaxAfferent, DefaultMaxAfferent)
	maxTotal := positive(d.MaxTotal, DefaultMaxTotal)
	minCoh := d.MinCohesion
	if minCoh <= 0 {
		minCoh = DefaultMinCohesion
	}

	var findings []graph.Finding
	for _, f := range s.Files {
		checks := []struct {
			metric, what string
			value, limit int
		}{
			{"efferent", "imports", f.EfferentCoupling, maxEff},
			{"afferent", "is imported by", f.AfferentCoupling, maxAff},
			{"total", "has coupling", f.EfferentCoupling + f.AfferentCoupling, maxTotal},
		}
		for _, c := range checks {
			if c.value <= c.limit {
				continue
			}
			sev := graph.SeverityMedium
			if c.value >= 2*c.limit {
				sev = graph.SeverityHigh
			}
			findings = append(findings, graph.Finding{
				Category:    CategoryCoupling,
				Severity:    sev,
				Title:       fmt.Sprintf("High %s coupling in %s", c.metric, f.Path),
				Description: fmt.Sprintf("%s %s %d edges, above the limit of %d.", f.Path, c.what, c.value, c.limit),
				Evidence: map[string]any{
					"file":      f.Path,
					"metric":    c.metric,
					"value":     c.value,
					"threshold": c.limit,
				},
				Suggestion: "Reduce the number of dependencies or split the module.",
			})
		}

		if f.Cohesion < minCoh {
			sev := graph.SeverityMedium
			if f.Cohesion < minCoh/2 {
				sev = graph.SeverityHigh
			}
			findings = append(findings, graph.Finding{
				Category:    CategoryCoupling,
				Severity:    sev,
				Title:       fmt.Sprintf("Low cohesion in %s", f.Path),
				Description: fmt.Sprintf("%s has cohesion %.2f, below the minimum of %.2f.", f.Path, f.Cohesion, minCoh),
				Evidence: map[string]any{
					"file":      f.Path,
					"metric":    "cohesion",
					"value":     f.Cohesion,
					"threshold": minCoh,
				},
				Suggestion: "Move unrelated declarations into the modules they depend on.",
			})
		}
	}
	return findings
}
