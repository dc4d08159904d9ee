package mcptools

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/archscan/internal/config"
	"github.com/dusk-indust/archscan/internal/graph"
	"github.com/dusk-indust/archscan/internal/incremental"
	"github.com/dusk-indust/archscan/internal/indexer"
	"github.com/dusk-indust/archscan/internal/store"
)

// CodeIntelService holds the store and parser used by MCP tool handlers.
type CodeIntelService struct {
	store  store.Store
	parser graph.Parser
	logger *slog.Logger
	// vcs overrides the git-backed VCS built from each project's config.
	vcs incremental.VCS
}

// NewCodeIntelService creates a CodeIntelService with the given store and parser.
func NewCodeIntelService(s store.Store, parser graph.Parser, logger *slog.Logger) *CodeIntelService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CodeIntelService{store: s, parser: parser, logger: logger}
}

// IndexProject registers a repository if needed, then runs the structure
// and analysis layers over it.
func (s *CodeIntelService) IndexProject(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IndexProjectInput,
) (*mcp.CallToolResult, IndexProjectOutput, error) {
	if input.RepoPath == "" {
		return nil, IndexProjectOutput{}, fmt.Errorf("repoPath is required")
	}
	root, err := filepath.Abs(input.RepoPath)
	if err != nil {
		return nil, IndexProjectOutput{}, fmt.Errorf("resolve repoPath: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, IndexProjectOutput{}, fmt.Errorf("cannot access repoPath: %w", err)
	}
	if !info.IsDir() {
		return nil, IndexProjectOutput{}, fmt.Errorf("repoPath is not a directory: %s", root)
	}

	projectID := cmp.Or(input.ProjectID, root)
	if err := store.EnsureProject(ctx, s.store, projectID, root); err != nil {
		return nil, IndexProjectOutput{}, err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, IndexProjectOutput{}, err
	}
	ix := indexer.New(s.store, s.parser, s.indexerOptions(cfg))

	res, err := ix.Index(ctx, projectID, input.Full)
	if err != nil {
		return nil, IndexProjectOutput{}, fmt.Errorf("index %s: %w", projectID, err)
	}
	return nil, IndexProjectOutput{ProjectID: projectID, Result: *res}, nil
}

func (s *CodeIntelService) indexerOptions(cfg *config.ProjectConfig) indexer.Options {
	vcs := s.vcs
	if vcs == nil {
		vcs = incremental.NewGitVCS(cfg.GitTimeout)
	}
	return indexer.Options{
		Workers:    cfg.Workers,
		Walk:       cfg.WalkOptions(),
		Thresholds: cfg.Thresholds,
		Layers:     cfg.Layers,
		VCS:        vcs,
		Logger:     s.logger,
	}
}

// ListFindings returns the findings of the latest analysis run.
func (s *CodeIntelService) ListFindings(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListFindingsInput,
) (*mcp.CallToolResult, ListFindingsOutput, error) {
	if input.ProjectID == "" {
		return nil, ListFindingsOutput{}, fmt.Errorf("projectId is required")
	}
	minSev := graph.Severity(strings.ToLower(input.MinSeverity))
	if minSev != "" && minSev.Rank() == 0 {
		return nil, ListFindingsOutput{}, fmt.Errorf("unknown severity %q", input.MinSeverity)
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 50
	}

	findings, err := s.store.ListFindings(ctx, input.ProjectID, minSev)
	if err != nil {
		return nil, ListFindingsOutput{}, fmt.Errorf("list findings: %w", err)
	}
	if input.Category != "" {
		findings = slices.DeleteFunc(findings, func(f graph.Finding) bool { return f.Category != input.Category })
	}
	total := len(findings)
	if len(findings) > limit {
		findings = findings[:limit]
	}
	return nil, ListFindingsOutput{Findings: findings, Total: total}, nil
}

// QuerySymbols searches for symbols by name substring match.
func (s *CodeIntelService) QuerySymbols(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QuerySymbolsInput,
) (*mcp.CallToolResult, QuerySymbolsOutput, error) {
	if input.ProjectID == "" {
		return nil, QuerySymbolsOutput{}, fmt.Errorf("projectId is required")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	kind := graph.SymbolKind(strings.ToLower(input.Kind))
	symbols, err := store.QuerySymbols(ctx, s.store, input.ProjectID, input.Query, kind, limit)
	if err != nil {
		return nil, QuerySymbolsOutput{}, fmt.Errorf("query symbols: %w", err)
	}

	return nil, QuerySymbolsOutput{
		Symbols: symbols,
		Total:   len(symbols),
	}, nil
}

// GetFileMetrics returns one file's metrics, or the files ranked by a metric.
func (s *CodeIntelService) GetFileMetrics(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetFileMetricsInput,
) (*mcp.CallToolResult, GetFileMetricsOutput, error) {
	if input.ProjectID == "" {
		return nil, GetFileMetricsOutput{}, fmt.Errorf("projectId is required")
	}
	if input.Path != "" {
		f, err := s.store.GetFile(ctx, input.ProjectID, input.Path)
		if err != nil {
			return nil, GetFileMetricsOutput{}, fmt.Errorf("get file: %w", err)
		}
		return nil, GetFileMetricsOutput{Files: []graph.FileRecord{*f}}, nil
	}

	less, ok := rankings[cmp.Or(strings.ToLower(input.SortBy), "complexity")]
	if !ok {
		return nil, GetFileMetricsOutput{}, fmt.Errorf("unknown sortBy %q", input.SortBy)
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	files, err := s.store.ListFiles(ctx, input.ProjectID)
	if err != nil {
		return nil, GetFileMetricsOutput{}, fmt.Errorf("list files: %w", err)
	}
	slices.SortStableFunc(files, less)
	if len(files) > limit {
		files = files[:limit]
	}
	return nil, GetFileMetricsOutput{Files: files}, nil
}

// rankings order files worst first for each metric.
var rankings = map[string]func(a, b graph.FileRecord) int{
	"complexity": func(a, b graph.FileRecord) int { return cmp.Compare(b.Complexity, a.Complexity) },
	"efferent":   func(a, b graph.FileRecord) int { return cmp.Compare(b.EfferentCoupling, a.EfferentCoupling) },
	"afferent":   func(a, b graph.FileRecord) int { return cmp.Compare(b.AfferentCoupling, a.AfferentCoupling) },
	"cohesion":   func(a, b graph.FileRecord) int { return cmp.Compare(a.Cohesion, b.Cohesion) },
	"lines":      func(a, b graph.FileRecord) int { return cmp.Compare(b.LineCount, a.LineCount) },
}

// GetDependencies traverses the dependency graph from a given file.
func (s *CodeIntelService) GetDependencies(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetDependenciesInput,
) (*mcp.CallToolResult, GetDependenciesOutput, error) {
	if input.ProjectID == "" || input.Path == "" {
		return nil, GetDependenciesOutput{}, fmt.Errorf("projectId and path are required")
	}

	direction := store.DirectionDownstream
	if strings.EqualFold(input.Direction, "upstream") {
		direction = store.DirectionUpstream
	}

	maxDepth := input.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 5
	}

	chains, err := store.Dependencies(ctx, s.store, input.ProjectID, input.Path, direction, maxDepth)
	if err != nil {
		return nil, GetDependenciesOutput{}, fmt.Errorf("get dependencies: %w", err)
	}

	return nil, GetDependenciesOutput{Chains: chains}, nil
}
