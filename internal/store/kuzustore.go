//go:build cgo

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	kuzu "github.com/kuzudb/go-kuzu"

	"github.com/dusk-indust/archscan/internal/graph"
)

// KuzuStore implements the Store interface using KuzuDB as the graph backend.
// Files are nodes, resolved dependency edges are IMPORTS relationships and
// symbols hang off their file through DEFINES. It requires CGO because the
// go-kuzu driver wraps KuzuDB's C library.
type KuzuStore struct {
	mu   sync.Mutex // one connection; serialises statements and transactions
	db   *kuzu.Database
	conn *kuzu.Connection
	now  func() time.Time
}

// Compile-time check that KuzuStore satisfies Store.
var _ Store = (*KuzuStore)(nil)

// NewKuzuStore creates a KuzuStore backed by an in-memory KuzuDB instance.
func NewKuzuStore() (*KuzuStore, error) {
	return openKuzu(":memory:")
}

// NewKuzuFileStore creates a KuzuStore backed by a file-based KuzuDB at the
// given path. KuzuDB creates the leaf itself for new databases.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	return openKuzu(dbPath)
}

func openKuzu(dbPath string) (*KuzuStore, error) {
	db, err := kuzu.OpenDatabase(dbPath, kuzu.DefaultSystemConfig())
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn, now: time.Now}, nil
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// ---------- Schema setup ----------

// ddlStatements defines the Cypher DDL executed by InitSchema.
// Node tables must precede relationship tables.
var ddlStatements = []string{
	`CREATE NODE TABLE IF NOT EXISTS Project(
		id STRING,
		root_path STRING,
		last_indexed_commit STRING,
		last_indexed_at STRING,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS File(
		id STRING,
		project STRING,
		path STRING,
		absolute_path STRING,
		language STRING,
		size_bytes INT64,
		line_count INT64,
		content_hash STRING,
		complexity INT64,
		efferent INT64,
		afferent INT64,
		cohesion DOUBLE,
		is_doc BOOLEAN,
		is_test BOOLEAN,
		is_config BOOLEAN,
		indexed_at STRING,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Symbol(
		id STRING,
		project STRING,
		file_path STRING,
		seq INT64,
		kind STRING,
		name STRING,
		start_line INT64,
		end_line INT64,
		exported BOOLEAN,
		signature STRING,
		docstring STRING,
		complexity INT64,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Dependency(
		id STRING,
		project STRING,
		source_file STRING,
		seq INT64,
		target_file STRING,
		specifier STRING,
		kind STRING,
		line INT64,
		names STRING,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS IndexRun(
		id STRING,
		project STRING,
		layer STRING,
		status STRING,
		files_processed INT64,
		files_total INT64,
		started_at STRING,
		finished_at STRING,
		error STRING,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Finding(
		key STRING,
		project STRING,
		seq INT64,
		id STRING,
		category STRING,
		severity STRING,
		title STRING,
		description STRING,
		evidence STRING,
		suggestion STRING,
		PRIMARY KEY(key)
	)`,
	`CREATE REL TABLE IF NOT EXISTS DEFINES(FROM File TO Symbol)`,
	`CREATE REL TABLE IF NOT EXISTS IMPORTS(FROM File TO File)`,
}

// InitSchema creates all node and relationship tables if they do not exist.
func (s *KuzuStore) InitSchema(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stmt := range ddlStatements {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
		res.Close()
	}
	return nil
}

// fileID is the primary key of a File node: files are unique per project.
func fileID(projectID, path string) string {
	return projectID + "\x00" + path
}

func rowID(projectID, path string, seq int) string {
	return fmt.Sprintf("%s\x00%s\x00%d", projectID, path, seq)
}

// ---------- Projects ----------

// SaveProject stores or replaces a registry entry.
func (s *KuzuStore) SaveProject(_ context.Context, p graph.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exec(
		`MERGE (p:Project {id: $id})
		 SET p.root_path = $root, p.last_indexed_commit = $commit, p.last_indexed_at = $at`,
		map[string]any{
			"id":     p.ID,
			"root":   p.RootPath,
			"commit": p.LastIndexedCommit,
			"at":     timeString(p.LastIndexedAt),
		},
	)
}

// GetProject returns the registry entry for id.
func (s *KuzuStore) GetProject(_ context.Context, id string) (*graph.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.query(
		`MATCH (p:Project {id: $id})
		 RETURN p.id, p.root_path, p.last_indexed_commit, p.last_indexed_at`,
		map[string]any{"id": id},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	r := rows[0]
	return &graph.Project{
		ID:                toString(r[0]),
		RootPath:          toString(r[1]),
		LastIndexedCommit: toString(r[2]),
		LastIndexedAt:     parseTime(toString(r[3])),
	}, nil
}

// ---------- Files ----------

func (s *KuzuStore) upsertFile(f graph.FileRecord) error {
	return s.exec(
		`MERGE (f:File {id: $id})
		 SET f.project = $project, f.path = $path, f.absolute_path = $abs,
		     f.language = $lang, f.size_bytes = $size, f.line_count = $lines,
		     f.content_hash = $hash, f.complexity = $cx, f.efferent = $eff,
		     f.afferent = $aff, f.cohesion = $coh, f.is_doc = $doc,
		     f.is_test = $test, f.is_config = $config, f.indexed_at = $at`,
		map[string]any{
			"id":      fileID(f.ProjectID, f.Path),
			"project": f.ProjectID,
			"path":    f.Path,
			"abs":     f.AbsolutePath,
			"lang":    string(f.Language),
			"size":    f.SizeBytes,
			"lines":   int64(f.LineCount),
			"hash":    f.ContentHash,
			"cx":      int64(f.Complexity),
			"eff":     int64(f.EfferentCoupling),
			"aff":     int64(f.AfferentCoupling),
			"coh":     f.Cohesion,
			"doc":     f.IsDoc,
			"test":    f.IsTest,
			"config":  f.IsConfig,
			"at":      timeString(f.IndexedAt),
		},
	)
}

// UpsertFile stores a file record keyed by project and path.
func (s *KuzuStore) UpsertFile(_ context.Context, f graph.FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertFile(f)
}

// fileReturn lists the File columns in the order rowToFile expects.
const fileReturn = `f.project, f.path, f.absolute_path, f.language, f.size_bytes,
	f.line_count, f.content_hash, f.complexity, f.efferent, f.afferent, f.cohesion,
	f.is_doc, f.is_test, f.is_config, f.indexed_at`

func rowToFile(r []any) graph.FileRecord {
	return graph.FileRecord{
		ProjectID:        toString(r[0]),
		Path:             toString(r[1]),
		AbsolutePath:     toString(r[2]),
		Language:         graph.Language(toString(r[3])),
		SizeBytes:        int64(toInt(r[4])),
		LineCount:        toInt(r[5]),
		ContentHash:      toString(r[6]),
		Complexity:       toInt(r[7]),
		EfferentCoupling: toInt(r[8]),
		AfferentCoupling: toInt(r[9]),
		Cohesion:         toFloat64(r[10]),
		IsDoc:            toBool(r[11]),
		IsTest:           toBool(r[12]),
		IsConfig:         toBool(r[13]),
		IndexedAt:        parseTime(toString(r[14])),
	}
}

// GetFile returns one file record. Placeholder nodes created for import
// targets that were never upserted are not files.
func (s *KuzuStore) GetFile(_ context.Context, projectID, path string) (*graph.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.query(
		`MATCH (f:File {id: $id}) WHERE f.content_hash IS NOT NULL RETURN `+fileReturn,
		map[string]any{"id": fileID(projectID, path)},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("file %s: %w", path, ErrNotFound)
	}
	f := rowToFile(rows[0])
	return &f, nil
}

// ListFiles returns the files of a project sorted by path.
func (s *KuzuStore) ListFiles(_ context.Context, projectID string) ([]graph.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.query(
		`MATCH (f:File) WHERE f.project = $project AND f.content_hash IS NOT NULL
		 RETURN `+fileReturn+` ORDER BY f.path`,
		map[string]any{"project": projectID},
	)
	if err != nil {
		return nil, err
	}
	out := make([]graph.FileRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToFile(r))
	}
	return out, nil
}

// DeleteFile removes a file with its symbols and outgoing edges. Edges of
// other files that targeted it become unresolved.
func (s *KuzuStore) DeleteFile(_ context.Context, projectID, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	params := map[string]any{"project": projectID, "path": path}
	stmts := []string{
		`MATCH (s:Symbol) WHERE s.project = $project AND s.file_path = $path DETACH DELETE s`,
		`MATCH (d:Dependency) WHERE d.project = $project AND d.source_file = $path DELETE d`,
		`MATCH (d:Dependency) WHERE d.project = $project AND d.target_file = $path SET d.target_file = ''`,
		`MATCH (f:File) WHERE f.project = $project AND f.path = $path DETACH DELETE f`,
	}
	return s.inTx(func() error {
		for _, stmt := range stmts {
			if err := s.exec(stmt, params); err != nil {
				return fmt.Errorf("kuzu: delete file %s: %w", path, err)
			}
		}
		return nil
	})
}

// UpdateFileMetrics overwrites the derived metrics of a file.
func (s *KuzuStore) UpdateFileMetrics(_ context.Context, projectID, path string, m graph.FileMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.query(
		`MATCH (f:File {id: $id})
		 SET f.complexity = $cx, f.efferent = $eff, f.afferent = $aff, f.cohesion = $coh
		 RETURN f.id`,
		map[string]any{
			"id":  fileID(projectID, path),
			"cx":  int64(m.Complexity),
			"eff": int64(m.EfferentCoupling),
			"aff": int64(m.AfferentCoupling),
			"coh": m.Cohesion,
		},
	)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("file %s: %w", path, ErrNotFound)
	}
	return nil
}

// ---------- Symbols and dependencies ----------

func (s *KuzuStore) replaceSymbols(projectID, path string, symbols []graph.SymbolRecord) error {
	if err := s.exec(
		`MATCH (s:Symbol) WHERE s.project = $project AND s.file_path = $path DETACH DELETE s`,
		map[string]any{"project": projectID, "path": path},
	); err != nil {
		return err
	}
	for i, sym := range symbols {
		cx := int64(-1)
		if sym.Complexity != nil {
			cx = int64(*sym.Complexity)
		}
		if err := s.exec(
			`MERGE (f:File {id: $fid})
			 ON CREATE SET f.project = $project, f.path = $path
			 CREATE (f)-[:DEFINES]->(:Symbol {
				id: $id, project: $project, file_path: $path, seq: $seq,
				kind: $kind, name: $name, start_line: $sl, end_line: $el,
				exported: $exported, signature: $sig, docstring: $doc, complexity: $cx
			 })`,
			map[string]any{
				"fid":      fileID(projectID, path),
				"id":       rowID(projectID, path, i),
				"project":  projectID,
				"path":     path,
				"seq":      int64(i),
				"kind":     string(sym.Kind),
				"name":     sym.Name,
				"sl":       int64(sym.StartLine),
				"el":       int64(sym.EndLine),
				"exported": sym.Exported,
				"sig":      derefString(sym.Signature),
				"doc":      derefString(sym.Docstring),
				"cx":       cx,
			},
		); err != nil {
			return fmt.Errorf("kuzu: insert symbol %s in %s: %w", sym.Name, path, err)
		}
	}
	return nil
}

func (s *KuzuStore) replaceDependencies(projectID, path string, edges []graph.DependencyEdge) error {
	params := map[string]any{"project": projectID, "path": path, "fid": fileID(projectID, path)}
	if err := s.exec(
		`MATCH (d:Dependency) WHERE d.project = $project AND d.source_file = $path DELETE d`,
		params,
	); err != nil {
		return err
	}
	if err := s.exec(`MATCH (a:File {id: $fid})-[r:IMPORTS]->(:File) DELETE r`,
		map[string]any{"fid": params["fid"]}); err != nil {
		return err
	}

	for i, e := range edges {
		if err := s.exec(
			`CREATE (:Dependency {
				id: $id, project: $project, source_file: $path, seq: $seq,
				target_file: $target, specifier: $spec, kind: $kind, line: $line, names: $names
			 })`,
			map[string]any{
				"id":      rowID(projectID, path, i),
				"project": projectID,
				"path":    path,
				"seq":     int64(i),
				"target":  e.Target(),
				"spec":    e.ImportSpecifier,
				"kind":    string(e.Kind),
				"line":    int64(e.Line),
				"names":   joinNames(e.ImportedNames),
			},
		); err != nil {
			return fmt.Errorf("kuzu: insert dependency %q in %s: %w", e.ImportSpecifier, path, err)
		}
		if !e.Resolved() {
			continue
		}
		// The target may not have been upserted yet in this run; MERGE
		// creates a placeholder that the upsert fills in later.
		if err := s.exec(
			`MERGE (a:File {id: $src}) ON CREATE SET a.project = $project, a.path = $path
			 MERGE (b:File {id: $dst}) ON CREATE SET b.project = $project, b.path = $target
			 CREATE (a)-[:IMPORTS]->(b)`,
			map[string]any{
				"src":     params["fid"],
				"dst":     fileID(projectID, e.Target()),
				"project": projectID,
				"path":    path,
				"target":  e.Target(),
			},
		); err != nil {
			return fmt.Errorf("kuzu: link %s -> %s: %w", path, e.Target(), err)
		}
	}
	return nil
}

// SaveFile upserts f and replaces its symbols and edges in one transaction.
func (s *KuzuStore) SaveFile(_ context.Context, f graph.FileRecord, symbols []graph.SymbolRecord, edges []graph.DependencyEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(func() error {
		if err := s.upsertFile(f); err != nil {
			return err
		}
		if err := s.replaceSymbols(f.ProjectID, f.Path, symbols); err != nil {
			return err
		}
		return s.replaceDependencies(f.ProjectID, f.Path, edges)
	})
}

// ReplaceSymbols replaces every symbol owned by path.
func (s *KuzuStore) ReplaceSymbols(_ context.Context, projectID, path string, symbols []graph.SymbolRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(func() error { return s.replaceSymbols(projectID, path, symbols) })
}

// ReplaceDependencies replaces every edge whose source is path.
func (s *KuzuStore) ReplaceDependencies(_ context.Context, projectID, path string, edges []graph.DependencyEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(func() error { return s.replaceDependencies(projectID, path, edges) })
}

// ListSymbols returns every symbol of a project, ordered by file and line.
func (s *KuzuStore) ListSymbols(_ context.Context, projectID string) ([]graph.SymbolRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.query(
		`MATCH (s:Symbol) WHERE s.project = $project
		 RETURN s.file_path, s.kind, s.name, s.start_line, s.end_line, s.exported,
		        s.signature, s.docstring, s.complexity
		 ORDER BY s.file_path, s.seq`,
		map[string]any{"project": projectID},
	)
	if err != nil {
		return nil, err
	}
	out := make([]graph.SymbolRecord, 0, len(rows))
	for _, r := range rows {
		sym := graph.SymbolRecord{
			FilePath:  toString(r[0]),
			Kind:      graph.SymbolKind(toString(r[1])),
			Name:      toString(r[2]),
			StartLine: toInt(r[3]),
			EndLine:   toInt(r[4]),
			Exported:  toBool(r[5]),
			Signature: graph.StrPtr(toString(r[6])),
			Docstring: graph.StrPtr(toString(r[7])),
		}
		if cx := toInt(r[8]); cx >= 0 {
			sym.Complexity = graph.IntPtr(cx)
		}
		out = append(out, sym)
	}
	sortSymbols(out)
	return out, nil
}

// ListDependencies returns every edge of a project grouped by source file,
// in extraction order within a file.
func (s *KuzuStore) ListDependencies(_ context.Context, projectID string) ([]graph.DependencyEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.query(
		`MATCH (d:Dependency) WHERE d.project = $project
		 RETURN d.source_file, d.target_file, d.specifier, d.kind, d.line, d.names
		 ORDER BY d.source_file, d.seq`,
		map[string]any{"project": projectID},
	)
	if err != nil {
		return nil, err
	}
	out := make([]graph.DependencyEdge, 0, len(rows))
	for _, r := range rows {
		out = append(out, graph.DependencyEdge{
			SourceFile:      toString(r[0]),
			TargetFile:      graph.StrPtr(toString(r[1])),
			ImportSpecifier: toString(r[2]),
			Kind:            graph.EdgeKind(toString(r[3])),
			Line:            toInt(r[4]),
			ImportedNames:   splitNames(toString(r[5])),
		})
	}
	return out, nil
}

// neighbors returns the files one IMPORTS hop away from path. Dependencies
// uses it instead of loading every edge of the project.
func (s *KuzuStore) neighbors(_ context.Context, projectID, path string, dir Direction) ([]string, error) {
	var cypher string
	switch dir {
	case DirectionUpstream:
		cypher = "MATCH (a:File {id: $id})-[:IMPORTS]->(b:File) RETURN DISTINCT b.path ORDER BY b.path"
	case DirectionDownstream:
		cypher = "MATCH (a:File)-[:IMPORTS]->(b:File {id: $id}) RETURN DISTINCT a.path ORDER BY a.path"
	default:
		return nil, fmt.Errorf("kuzu: unknown direction: %s", dir)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.query(cypher, map[string]any{"id": fileID(projectID, path)})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, toString(r[0]))
	}
	return out, nil
}

// ---------- Runs ----------

// CreateRun records a new run.
func (s *KuzuStore) CreateRun(_ context.Context, run graph.IndexRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exec(
		`CREATE (:IndexRun {
			id: $id, project: $project, layer: $layer, status: $status,
			files_processed: $processed, files_total: $total,
			started_at: $started, finished_at: $finished, error: $error
		 })`,
		map[string]any{
			"id":        run.ID,
			"project":   run.ProjectID,
			"layer":     string(run.Layer),
			"status":    string(run.Status),
			"processed": int64(run.FilesProcessed),
			"total":     int64(run.FilesTotal),
			"started":   timeString(run.StartedAt),
			"finished":  timeString(run.FinishedAt),
			"error":     run.Error,
		},
	)
}

// updateRunning applies set to a run that is still running. Callers hold mu.
func (s *KuzuStore) updateRunning(runID, set string, params map[string]any) error {
	rows, err := s.query(`MATCH (r:IndexRun {id: $id}) RETURN r.status`, map[string]any{"id": runID})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if graph.RunStatus(toString(rows[0][0])) != graph.RunRunning {
		return fmt.Errorf("run %s: %w", runID, ErrRunTerminated)
	}
	params["id"] = runID
	return s.exec(`MATCH (r:IndexRun {id: $id}) SET `+set, params)
}

// UpdateRunProgress records progress of a running run.
func (s *KuzuStore) UpdateRunProgress(_ context.Context, runID string, processed, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateRunning(runID, `r.files_processed = $processed, r.files_total = $total`,
		map[string]any{"processed": int64(processed), "total": int64(total)})
}

// CompleteRun marks a running run completed.
func (s *KuzuStore) CompleteRun(_ context.Context, runID string, processed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateRunning(runID,
		`r.status = $status, r.files_processed = $processed, r.finished_at = $at`,
		map[string]any{
			"status":    string(graph.RunCompleted),
			"processed": int64(processed),
			"at":        timeString(s.now()),
		})
}

// FailRun marks a running run failed with reason.
func (s *KuzuStore) FailRun(_ context.Context, runID string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateRunning(runID, `r.status = $status, r.error = $error, r.finished_at = $at`,
		map[string]any{
			"status": string(graph.RunFailed),
			"error":  reason,
			"at":     timeString(s.now()),
		})
}

// GetRun returns a run by id.
func (s *KuzuStore) GetRun(_ context.Context, runID string) (*graph.IndexRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.query(
		`MATCH (r:IndexRun {id: $id})
		 RETURN r.id, r.project, r.layer, r.status, r.files_processed, r.files_total,
		        r.started_at, r.finished_at, r.error`,
		map[string]any{"id": runID},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	r := rows[0]
	return &graph.IndexRun{
		ID:             toString(r[0]),
		ProjectID:      toString(r[1]),
		Layer:          graph.RunLayer(toString(r[2])),
		Status:         graph.RunStatus(toString(r[3])),
		FilesProcessed: toInt(r[4]),
		FilesTotal:     toInt(r[5]),
		StartedAt:      parseTime(toString(r[6])),
		FinishedAt:     parseTime(toString(r[7])),
		Error:          toString(r[8]),
	}, nil
}

// ---------- Findings ----------

// ReplaceFindings replaces all findings of a project.
func (s *KuzuStore) ReplaceFindings(_ context.Context, projectID string, findings []graph.Finding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(func() error {
		if err := s.exec(`MATCH (f:Finding) WHERE f.project = $project DELETE f`,
			map[string]any{"project": projectID}); err != nil {
			return err
		}
		for i, f := range findings {
			evidence, err := json.Marshal(f.Evidence)
			if err != nil {
				return fmt.Errorf("kuzu: encode evidence of %s: %w", f.ID, err)
			}
			if err := s.exec(
				`CREATE (:Finding {
					key: $key, project: $project, seq: $seq, id: $id, category: $category,
					severity: $severity, title: $title, description: $description,
					evidence: $evidence, suggestion: $suggestion
				 })`,
				map[string]any{
					"key":         rowID(projectID, "", i),
					"project":     projectID,
					"seq":         int64(i),
					"id":          f.ID,
					"category":    f.Category,
					"severity":    string(f.Severity),
					"title":       f.Title,
					"description": f.Description,
					"evidence":    string(evidence),
					"suggestion":  f.Suggestion,
				},
			); err != nil {
				return fmt.Errorf("kuzu: insert finding %s: %w", f.ID, err)
			}
		}
		return nil
	})
}

// ListFindings returns the findings of a project at or above minSeverity,
// most severe first.
func (s *KuzuStore) ListFindings(_ context.Context, projectID string, minSeverity graph.Severity) ([]graph.Finding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.query(
		`MATCH (f:Finding) WHERE f.project = $project
		 RETURN f.id, f.category, f.severity, f.title, f.description, f.evidence, f.suggestion
		 ORDER BY f.seq`,
		map[string]any{"project": projectID},
	)
	if err != nil {
		return nil, err
	}
	out := make([]graph.Finding, 0, len(rows))
	for _, r := range rows {
		f := graph.Finding{
			ID:          toString(r[0]),
			Category:    toString(r[1]),
			Severity:    graph.Severity(toString(r[2])),
			Title:       toString(r[3]),
			Description: toString(r[4]),
			Suggestion:  toString(r[6]),
		}
		if err := json.Unmarshal([]byte(toString(r[5])), &f.Evidence); err != nil {
			return nil, fmt.Errorf("kuzu: decode evidence of %s: %w", f.ID, err)
		}
		out = append(out, f)
	}
	sortFindings(out)
	return filterSeverity(out, minSeverity), nil
}

// ---------- Internal helpers ----------

// inTx runs fn inside a KuzuDB write transaction. Callers hold mu.
func (s *KuzuStore) inTx(fn func() error) error {
	res, err := s.conn.Query("BEGIN TRANSACTION")
	if err != nil {
		return fmt.Errorf("kuzu: begin: %w", err)
	}
	res.Close()
	if err := fn(); err != nil {
		if res, rbErr := s.conn.Query("ROLLBACK"); rbErr == nil {
			res.Close()
		}
		return err
	}
	res, err = s.conn.Query("COMMIT")
	if err != nil {
		return fmt.Errorf("kuzu: commit: %w", err)
	}
	res.Close()
	return nil
}

// exec runs a parameterized Cypher statement that produces no result rows.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// query runs a parameterized Cypher statement and collects all result rows.
// Each row is a []any slice with values in column order.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

// ---------- Type coercion helpers ----------
// KuzuDB returns typed Go values (int64, float64, bool, string) and nil for
// properties never set.

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case int32:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func toBool(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return false
}
