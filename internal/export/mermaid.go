package export

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/dusk-indust/archscan/internal/detect"
	"github.com/dusk-indust/archscan/internal/store"
)

// GenerateMermaid produces a Mermaid graph TD diagram of a project. Files
// are grouped by directory; resolved edges become arrows, deduplicated per
// file pair. Files that belong to a reported cycle are highlighted.
func GenerateMermaid(ctx context.Context, s store.Store, projectID string) (string, error) {
	files, err := s.ListFiles(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("export: list files: %w", err)
	}
	edges, err := s.ListDependencies(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("export: list dependencies: %w", err)
	}
	findings, err := s.ListFindings(ctx, projectID, "")
	if err != nil {
		return "", fmt.Errorf("export: list findings: %w", err)
	}

	inCycle := make(map[string]bool)
	for _, f := range findings {
		if f.Category != detect.CategoryCycle {
			continue
		}
		for _, p := range evidenceStrings(f.Evidence["files"]) {
			inCycle[p] = true
		}
	}

	// Build node → ID mapping for Mermaid (alphanumeric only).
	nodeIDs := make(map[string]string)
	nextID := 0
	getID := func(key string) string {
		if id, ok := nodeIDs[key]; ok {
			return id
		}
		id := fmt.Sprintf("N%d", nextID)
		nextID++
		nodeIDs[key] = id
		return id
	}

	byDir := make(map[string][]string)
	for _, f := range files {
		dir := path.Dir(f.Path)
		byDir[dir] = append(byDir[dir], f.Path)
	}
	dirs := make([]string, 0, len(byDir))
	for d := range byDir {
		dirs = append(dirs, d)
	}
	slices.Sort(dirs)

	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, dir := range dirs {
		members := byDir[dir]
		slices.Sort(members)
		fmt.Fprintf(&sb, "  subgraph %s[\"%.40s\"]\n", getID(dir+"/"), dir)
		for _, member := range members {
			fmt.Fprintf(&sb, "    %s[\"%s\"]\n", getID(member), escapeLabel(shortPath(member)))
		}
		sb.WriteString("  end\n")
	}

	seen := make(map[[2]string]bool)
	for _, e := range edges {
		if e.TargetFile == nil || e.SourceFile == *e.TargetFile {
			continue
		}
		pair := [2]string{e.SourceFile, *e.TargetFile}
		if seen[pair] {
			continue
		}
		seen[pair] = true
		arrow := "-->"
		if inCycle[pair[0]] && inCycle[pair[1]] {
			arrow = "==>"
		}
		fmt.Fprintf(&sb, "  %s %s %s\n", getID(pair[0]), arrow, getID(pair[1]))
	}

	if len(inCycle) > 0 {
		sb.WriteString("  classDef cycle fill:#fdd,stroke:#c00\n")
		cyclic := make([]string, 0, len(inCycle))
		for _, f := range files {
			if inCycle[f.Path] {
				cyclic = append(cyclic, getID(f.Path))
			}
		}
		if len(cyclic) > 0 {
			fmt.Fprintf(&sb, "  class %s cycle\n", strings.Join(cyclic, ","))
		}
	}

	return sb.String(), nil
}

// evidenceStrings reads a string list from finding evidence, which holds
// []string when fresh and []any after a JSON round trip.
func evidenceStrings(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, x := range s {
			if str, ok := x.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// shortPath returns the last 2 path segments for readability.
func shortPath(p string) string {
	parts := strings.Split(p, "/")
	if len(parts) <= 2 {
		return p
	}
	return strings.Join(parts[len(parts)-2:], "/")
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}
