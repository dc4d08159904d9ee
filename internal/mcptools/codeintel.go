package mcptools

import (
	"github.com/dusk-indust/archscan/internal/graph"
	"github.com/dusk-indust/archscan/internal/indexer"
	"github.com/dusk-indust/archscan/internal/store"
)

// --- MCP Tool Input Types ---
// These structs define the JSON schema for each MCP tool's input.
// The MCP Go SDK auto-generates JSON schemas from struct tags.

// IndexProjectInput is the input for the index_project MCP tool.
type IndexProjectInput struct {
	RepoPath  string `json:"repoPath" jsonschema:"the absolute path to the repository to index"`
	ProjectID string `json:"projectId,omitempty" jsonschema:"identifier to store the project under (default: the absolute repository path)"`
	Full      bool   `json:"full,omitempty" jsonschema:"reprocess every file instead of only changed ones"`
}

// IndexProjectOutput is the result of the index_project MCP tool.
type IndexProjectOutput struct {
	ProjectID string         `json:"projectId"`
	Result    indexer.Result `json:"result"`
}

// ListFindingsInput is the input for the list_findings MCP tool.
type ListFindingsInput struct {
	ProjectID   string `json:"projectId" jsonschema:"project identifier returned by index_project"`
	MinSeverity string `json:"minSeverity,omitempty" jsonschema:"lowest severity to include: low, medium or high (default: low)"`
	Category    string `json:"category,omitempty" jsonschema:"filter by category: cycles, dead_code, god_module, layering, layer_skip, coupling"`
	Limit       int    `json:"limit,omitempty" jsonschema:"maximum number of results (default: 50)"`
}

// ListFindingsOutput is the result of the list_findings MCP tool.
type ListFindingsOutput struct {
	Findings []graph.Finding `json:"findings"`
	Total    int             `json:"total"`
}

// QuerySymbolsInput is the input for the query_symbols MCP tool.
type QuerySymbolsInput struct {
	ProjectID string `json:"projectId" jsonschema:"project identifier returned by index_project"`
	Query     string `json:"query" jsonschema:"search query for symbol names (substring match)"`
	Kind      string `json:"kind,omitempty" jsonschema:"filter by symbol kind: function, method, class, interface, type, enum, import, export"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum number of results (default: 20)"`
}

// QuerySymbolsOutput is the result of the query_symbols MCP tool.
type QuerySymbolsOutput struct {
	Symbols []graph.SymbolRecord `json:"symbols"`
	Total   int                  `json:"total"`
}

// GetFileMetricsInput is the input for the get_file_metrics MCP tool.
type GetFileMetricsInput struct {
	ProjectID string `json:"projectId" jsonschema:"project identifier returned by index_project"`
	Path      string `json:"path,omitempty" jsonschema:"project-relative file path; omit to rank all files"`
	SortBy    string `json:"sortBy,omitempty" jsonschema:"ranking metric: complexity, efferent, afferent, cohesion or lines (default: complexity)"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum number of files when ranking (default: 20)"`
}

// GetFileMetricsOutput is the result of the get_file_metrics MCP tool.
type GetFileMetricsOutput struct {
	Files []graph.FileRecord `json:"files"`
}

// GetDependenciesInput is the input for the get_dependencies MCP tool.
type GetDependenciesInput struct {
	ProjectID string `json:"projectId" jsonschema:"project identifier returned by index_project"`
	Path      string `json:"path" jsonschema:"project-relative file path to start from"`
	Direction string `json:"direction,omitempty" jsonschema:"upstream (what it depends on) or downstream (what depends on it). Default: downstream"`
	MaxDepth  int    `json:"maxDepth,omitempty" jsonschema:"maximum traversal depth (default: 5)"`
}

// GetDependenciesOutput is the result of the get_dependencies MCP tool.
type GetDependenciesOutput struct {
	Chains []store.DependencyChain `json:"chains"`
}
