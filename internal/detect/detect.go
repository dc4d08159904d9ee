// Package detect runs structural pattern detectors over a persisted project
// graph: dependency cycles, unreferenced exports, god modules, layering
// violations and excessive coupling.
package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/dusk-indust/archscan/internal/graph"
)

// Finding categories.
const (
	CategoryCycle     = "cycles"
	CategoryDeadCode  = "dead_code"
	CategoryGodModule = "god_module"
	CategoryLayering  = "layering"
	CategoryLayerSkip = "layer_skip"
	CategoryCoupling  = "coupling"
)

// Detector is one independent analysis over a Snapshot. A detector that
// cannot make sense of part of its input emits nothing for that part.
type Detector interface {
	Name() string
	Detect(s *Snapshot) []graph.Finding
}

// Snapshot is the read-only view of a project that detectors consume.
type Snapshot struct {
	Files   []graph.FileRecord
	Symbols []graph.SymbolRecord
	Edges   []graph.DependencyEdge

	byPath map[string]graph.FileRecord
}

// NewSnapshot indexes the persisted sets of one project.
func NewSnapshot(files []graph.FileRecord, symbols []graph.SymbolRecord, edges []graph.DependencyEdge) *Snapshot {
	s := &Snapshot{Files: files, Symbols: symbols, Edges: edges, byPath: make(map[string]graph.FileRecord, len(files))}
	for _, f := range files {
		s.byPath[f.Path] = f
	}
	return s
}

// File returns the record for path.
func (s *Snapshot) File(path string) (graph.FileRecord, bool) {
	f, ok := s.byPath[path]
	return f, ok
}

// resolvedEdges yields the edges whose target is a known file.
func (s *Snapshot) resolvedEdges() []graph.DependencyEdge {
	var out []graph.DependencyEdge
	for _, e := range s.Edges {
		if e.TargetFile == nil {
			continue
		}
		if _, ok := s.byPath[*e.TargetFile]; !ok {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Thresholds holds every tunable limit of the detectors.
type Thresholds struct {
	DeadCodePerFile int `yaml:"deadCodePerFile"`

	MaxSymbols    int `yaml:"maxSymbols"`
	MaxLines      int `yaml:"maxLines"`
	MaxComplexity int `yaml:"maxComplexity"`

	LayerSkipGap int `yaml:"layerSkipGap"`

	MaxEfferent int     `yaml:"maxEfferent"`
	MaxAfferent int     `yaml:"maxAfferent"`
	MaxTotal    int     `yaml:"maxTotal"`
	MinCohesion float64 `yaml:"minCohesion"`
}

// Default thresholds.
const (
	DefaultDeadCodePerFile = 5
	DefaultMaxSymbols      = 30
	DefaultMaxLines        = 500
	DefaultMaxComplexity   = 60
	DefaultLayerSkipGap    = 2
	DefaultMaxEfferent     = 15
	DefaultMaxAfferent     = 20
	DefaultMaxTotal        = 30
	DefaultMinCohesion     = 0.3
)

// DefaultThresholds returns the documented default limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DeadCodePerFile: DefaultDeadCodePerFile,
		MaxSymbols:      DefaultMaxSymbols,
		MaxLines:        DefaultMaxLines,
		MaxComplexity:   DefaultMaxComplexity,
		LayerSkipGap:    DefaultLayerSkipGap,
		MaxEfferent:     DefaultMaxEfferent,
		MaxAfferent:     DefaultMaxAfferent,
		MaxTotal:        DefaultMaxTotal,
		MinCohesion:     DefaultMinCohesion,
	}
}

// WithDefaults fills every zero field of t from DefaultThresholds.
func (t Thresholds) WithDefaults() Thresholds {
	d := DefaultThresholds()
	fill := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&t.DeadCodePerFile, d.DeadCodePerFile)
	fill(&t.MaxSymbols, d.MaxSymbols)
	fill(&t.MaxLines, d.MaxLines)
	fill(&t.MaxComplexity, d.MaxComplexity)
	fill(&t.LayerSkipGap, d.LayerSkipGap)
	fill(&t.MaxEfferent, d.MaxEfferent)
	fill(&t.MaxAfferent, d.MaxAfferent)
	fill(&t.MaxTotal, d.MaxTotal)
	if t.MinCohesion <= 0 {
		t.MinCohesion = d.MinCohesion
	}
	return t
}

// Defaults returns the five detectors configured with t and layers.
func Defaults(t Thresholds, layers []Layer) []Detector {
	t = t.WithDefaults()
	if len(layers) == 0 {
		layers = DefaultLayers()
	}
	return []Detector{
		&CycleDetector{},
		&DeadCodeDetector{PerFileThreshold: t.DeadCodePerFile},
		&GodModuleDetector{MaxSymbols: t.MaxSymbols, MaxLines: t.MaxLines, MaxComplexity: t.MaxComplexity},
		&LayeringDetector{Layers: layers, SkipGap: t.LayerSkipGap},
		&CouplingDetector{MaxEfferent: t.MaxEfferent, MaxAfferent: t.MaxAfferent, MaxTotal: t.MaxTotal, MinCohesion: t.MinCohesion},
	}
}

// Runner runs detectors independently of each other.
type Runner struct {
	detectors []Detector
	logger    *slog.Logger
}

// NewRunner returns a Runner over detectors.
func NewRunner(logger *slog.Logger, detectors ...Detector) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{detectors: detectors, logger: logger}
}

// Run executes every detector in order and returns their findings with
// fingerprint IDs assigned. A detector that panics is logged and
// contributes nothing. Cancellation is checked between detectors.
func (r *Runner) Run(ctx context.Context, s *Snapshot) ([]graph.Finding, error) {
	var all []graph.Finding
	for _, d := range r.detectors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found := r.runOne(d, s)
		for i := range found {
			if found[i].ID == "" {
				found[i].ID = Fingerprint(found[i])
			}
		}
		r.logger.Debug("detect: detector finished", "detector", d.Name(), "findings", len(found))
		all = append(all, found...)
	}
	return all, nil
}

func (r *Runner) runOne(d Detector, s *Snapshot) (found []graph.Finding) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("detect: detector panicked", "detector", d.Name(), "panic", fmt.Sprint(p))
			found = nil
		}
	}()
	return d.Detect(s)
}

// Fingerprint returns a stable identifier for a finding derived from its
// category, title and evidence, so the same problem keeps its ID across
// analysis runs.
func Fingerprint(f graph.Finding) string {
	h := xxhash.New()
	_, _ = h.WriteString(f.Category)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(f.Title)
	_, _ = h.WriteString("\x00")
	// encoding/json sorts map keys, which makes the encoding canonical.
	if ev, err := json.Marshal(f.Evidence); err == nil {
		_, _ = h.Write(ev)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// sortedKeys returns the keys of m in order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
