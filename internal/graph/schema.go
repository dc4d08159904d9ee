package graph

import "time"

// --- Enums ---

// Language identifies the grammar used to parse a file. LangNone marks files
// that are stored but never parsed.
type Language string

const (
	LangNone       Language = ""
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangJavaScript Language = "javascript"
	LangPython     Language = "python"
	LangCSharp     Language = "csharp"
	LangGo         Language = "go"
	LangRust       Language = "rust"
)

// SupportedLanguages lists every language with a registered grammar.
var SupportedLanguages = []Language{
	LangTypeScript, LangTSX, LangJavaScript, LangPython, LangCSharp, LangGo, LangRust,
}

// SymbolKind classifies symbols within a file.
type SymbolKind string

const (
	SymbolKindFunction  SymbolKind = "function"
	SymbolKindMethod    SymbolKind = "method"
	SymbolKindClass     SymbolKind = "class"
	SymbolKindInterface SymbolKind = "interface"
	SymbolKindType      SymbolKind = "type"
	SymbolKindEnum      SymbolKind = "enum"
	SymbolKindImport    SymbolKind = "import"
	SymbolKindExport    SymbolKind = "export"
)

// IsDeclaration reports whether the kind names a declaration rather than an
// import or re-export statement.
func (k SymbolKind) IsDeclaration() bool {
	return k != SymbolKindImport && k != SymbolKindExport
}

// EdgeKind classifies how a dependency was expressed in source.
type EdgeKind string

const (
	EdgeKindStatic  EdgeKind = "static"
	EdgeKindDynamic EdgeKind = "dynamic"
	EdgeKindUsing   EdgeKind = "using"
)

// Wildcard is the imported-name marker for namespace, wildcard and
// whole-module imports. It references every export of the target.
const Wildcard = "*"

// Severity ranks findings.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities; unknown values rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	default:
		return 0
	}
}

// RunStatus is the lifecycle state of an IndexRun.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunLayer names the pipeline layer an IndexRun tracks.
type RunLayer string

const (
	LayerStructure RunLayer = "structure"
	LayerAnalysis  RunLayer = "analysis"
)

// --- Models ---

// Project is the registry entry the indexer needs from its caller.
type Project struct {
	ID                string    `json:"id"`
	RootPath          string    `json:"rootPath"`
	LastIndexedCommit string    `json:"lastIndexedCommit,omitempty"`
	LastIndexedAt     time.Time `json:"lastIndexedAt,omitzero"`
}

// FileRecord is one file of a project with its derived metrics.
type FileRecord struct {
	ProjectID        string    `json:"projectId"`
	Path             string    `json:"path"`
	AbsolutePath     string    `json:"absolutePath"`
	Language         Language  `json:"language,omitempty"`
	SizeBytes        int64     `json:"sizeBytes"`
	LineCount        int       `json:"lineCount"`
	ContentHash      string    `json:"contentHash"`
	Complexity       int       `json:"complexity"`
	EfferentCoupling int       `json:"efferentCoupling"`
	AfferentCoupling int       `json:"afferentCoupling"`
	Cohesion         float64   `json:"cohesion"`
	IsDoc            bool      `json:"isDoc"`
	IsTest           bool      `json:"isTest"`
	IsConfig         bool      `json:"isConfig"`
	IndexedAt        time.Time `json:"indexedAt,omitzero"`
}

// FileMetrics is the mutable, derived part of a FileRecord.
type FileMetrics struct {
	Complexity       int     `json:"complexity"`
	EfferentCoupling int     `json:"efferentCoupling"`
	AfferentCoupling int     `json:"afferentCoupling"`
	Cohesion         float64 `json:"cohesion"`
}

// Metrics returns the derived metrics of f.
func (f FileRecord) Metrics() FileMetrics {
	return FileMetrics{
		Complexity:       f.Complexity,
		EfferentCoupling: f.EfferentCoupling,
		AfferentCoupling: f.AfferentCoupling,
		Cohesion:         f.Cohesion,
	}
}

// SymbolRecord is a named, located declaration or import/export statement.
type SymbolRecord struct {
	FilePath   string     `json:"filePath"`
	Kind       SymbolKind `json:"kind"`
	Name       string     `json:"name"`
	StartLine  int        `json:"startLine"`
	EndLine    int        `json:"endLine"`
	Exported   bool       `json:"exported"`
	Signature  *string    `json:"signature,omitempty"`
	Docstring  *string    `json:"docstring,omitempty"`
	Complexity *int       `json:"complexity,omitempty"` // function/method only
}

// DependencyEdge is a directed reference from one file to another. A nil
// TargetFile means external or unresolved.
type DependencyEdge struct {
	SourceFile      string   `json:"sourceFile"`
	TargetFile      *string  `json:"targetFile,omitempty"`
	ImportSpecifier string   `json:"importSpecifier"`
	Kind            EdgeKind `json:"kind"`
	Line            int      `json:"line"`
	ImportedNames   []string `json:"importedNames,omitempty"`
}

// Resolved reports whether the edge points at a project file.
func (e DependencyEdge) Resolved() bool {
	return e.TargetFile != nil
}

// Target returns the resolved target path or "".
func (e DependencyEdge) Target() string {
	if e.TargetFile == nil {
		return ""
	}
	return *e.TargetFile
}

// Finding is the output of a pattern detector.
type Finding struct {
	ID          string         `json:"id"`
	Category    string         `json:"category"`
	Severity    Severity       `json:"severity"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Evidence    map[string]any `json:"evidence"`
	Suggestion  string         `json:"suggestion"`
}

// IndexRun tracks one execution of one pipeline layer.
type IndexRun struct {
	ID             string    `json:"id"`
	ProjectID      string    `json:"projectId"`
	Layer          RunLayer  `json:"layer"`
	Status         RunStatus `json:"status"`
	FilesProcessed int       `json:"filesProcessed"`
	FilesTotal     int       `json:"filesTotal"`
	StartedAt      time.Time `json:"startedAt"`
	FinishedAt     time.Time `json:"finishedAt,omitzero"`
	Error          string    `json:"error,omitempty"`
}

// strPtr returns a pointer to s, or nil for the empty string.
func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StrPtr is the exported form of strPtr for callers building records.
func StrPtr(s string) *string { return strPtr(s) }

// IntPtr returns a pointer to n.
func IntPtr(n int) *int { return &n }
