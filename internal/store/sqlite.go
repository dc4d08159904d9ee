package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/dusk-indust/archscan/internal/graph"
)

// Compile-time check that SQLiteStore satisfies Store.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store on a single SQLite database file. It is the
// default durable backend and needs no cgo.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// OpenSQLite opens or creates the database at path. The special path
// ":memory:" gives a private in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create parent directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// One connection: writes are serialised by the indexer anyway, and an
	// in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}
	return &SQLiteStore{db: db, path: path, now: time.Now}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------- Schema setup ----------

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		root_path TEXT NOT NULL,
		last_indexed_commit TEXT NOT NULL DEFAULT '',
		last_indexed_at TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS files (
		project_id TEXT NOT NULL,
		path TEXT NOT NULL,
		absolute_path TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT '',
		size_bytes INTEGER NOT NULL,
		line_count INTEGER NOT NULL,
		content_hash TEXT NOT NULL,
		complexity INTEGER NOT NULL DEFAULT 0,
		efferent_coupling INTEGER NOT NULL DEFAULT 0,
		afferent_coupling INTEGER NOT NULL DEFAULT 0,
		cohesion REAL NOT NULL DEFAULT 1,
		is_doc INTEGER NOT NULL DEFAULT 0,
		is_test INTEGER NOT NULL DEFAULT 0,
		is_config INTEGER NOT NULL DEFAULT 0,
		indexed_at TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (project_id, path)
	)`,
	`CREATE TABLE IF NOT EXISTS symbols (
		project_id TEXT NOT NULL,
		file_path TEXT NOT NULL,
		seq INTEGER NOT NULL,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		start_line INTEGER NOT NULL,
		end_line INTEGER NOT NULL,
		exported INTEGER NOT NULL,
		signature TEXT,
		docstring TEXT,
		complexity INTEGER,
		PRIMARY KEY (project_id, file_path, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(project_id, name)`,
	`CREATE TABLE IF NOT EXISTS dependencies (
		project_id TEXT NOT NULL,
		source_file TEXT NOT NULL,
		seq INTEGER NOT NULL,
		target_file TEXT,
		import_specifier TEXT NOT NULL,
		kind TEXT NOT NULL,
		line INTEGER NOT NULL,
		imported_names TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (project_id, source_file, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_dependencies_target ON dependencies(project_id, target_file)`,
	`CREATE TABLE IF NOT EXISTS index_runs (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		layer TEXT NOT NULL,
		status TEXT NOT NULL,
		files_processed INTEGER NOT NULL DEFAULT 0,
		files_total INTEGER NOT NULL DEFAULT 0,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS findings (
		project_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		id TEXT NOT NULL,
		category TEXT NOT NULL,
		severity TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		evidence TEXT NOT NULL,
		suggestion TEXT NOT NULL,
		PRIMARY KEY (project_id, seq)
	)`,
}

// InitSchema creates all tables if they do not exist.
func (s *SQLiteStore) InitSchema(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range sqliteSchema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("sqlite: init schema: %w", err)
			}
		}
		return nil
	})
}

// withTx runs fn in a transaction, rolling back when fn fails or panics.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// ---------- Projects ----------

// SaveProject stores or replaces a registry entry.
func (s *SQLiteStore) SaveProject(ctx context.Context, p graph.Project) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, root_path, last_indexed_commit, last_indexed_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   root_path = excluded.root_path,
		   last_indexed_commit = excluded.last_indexed_commit,
		   last_indexed_at = excluded.last_indexed_at`,
		p.ID, p.RootPath, p.LastIndexedCommit, timeString(p.LastIndexedAt))
	if err != nil {
		return fmt.Errorf("sqlite: save project %s: %w", p.ID, err)
	}
	return nil
}

// GetProject returns the registry entry for id.
func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*graph.Project, error) {
	var p graph.Project
	var at string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, root_path, last_indexed_commit, last_indexed_at FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.RootPath, &p.LastIndexedCommit, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get project %s: %w", id, err)
	}
	p.LastIndexedAt = parseTime(at)
	return &p, nil
}

// ---------- Files ----------

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const fileColumns = `project_id, path, absolute_path, language, size_bytes, line_count,
	content_hash, complexity, efferent_coupling, afferent_coupling, cohesion,
	is_doc, is_test, is_config, indexed_at`

func upsertFile(ctx context.Context, ex execer, f graph.FileRecord) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO files (`+fileColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(project_id, path) DO UPDATE SET
		   absolute_path = excluded.absolute_path,
		   language = excluded.language,
		   size_bytes = excluded.size_bytes,
		   line_count = excluded.line_count,
		   content_hash = excluded.content_hash,
		   complexity = excluded.complexity,
		   efferent_coupling = excluded.efferent_coupling,
		   afferent_coupling = excluded.afferent_coupling,
		   cohesion = excluded.cohesion,
		   is_doc = excluded.is_doc,
		   is_test = excluded.is_test,
		   is_config = excluded.is_config,
		   indexed_at = excluded.indexed_at`,
		f.ProjectID, f.Path, f.AbsolutePath, string(f.Language), f.SizeBytes, f.LineCount,
		f.ContentHash, f.Complexity, f.EfferentCoupling, f.AfferentCoupling, f.Cohesion,
		f.IsDoc, f.IsTest, f.IsConfig, timeString(f.IndexedAt))
	if err != nil {
		return fmt.Errorf("sqlite: upsert file %s: %w", f.Path, err)
	}
	return nil
}

// UpsertFile stores a file record keyed by project and path.
func (s *SQLiteStore) UpsertFile(ctx context.Context, f graph.FileRecord) error {
	return upsertFile(ctx, s.db, f)
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanFile(sc scanner) (graph.FileRecord, error) {
	var f graph.FileRecord
	var lang, at string
	err := sc.Scan(&f.ProjectID, &f.Path, &f.AbsolutePath, &lang, &f.SizeBytes, &f.LineCount,
		&f.ContentHash, &f.Complexity, &f.EfferentCoupling, &f.AfferentCoupling, &f.Cohesion,
		&f.IsDoc, &f.IsTest, &f.IsConfig, &at)
	f.Language = graph.Language(lang)
	f.IndexedAt = parseTime(at)
	return f, err
}

// GetFile returns one file record.
func (s *SQLiteStore) GetFile(ctx context.Context, projectID, path string) (*graph.FileRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE project_id = ? AND path = ?`, projectID, path)
	f, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get file %s: %w", path, err)
	}
	return &f, nil
}

// ListFiles returns the files of a project sorted by path.
func (s *SQLiteStore) ListFiles(ctx context.Context, projectID string) ([]graph.FileRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE project_id = ? ORDER BY path`, projectID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list files: %w", err)
	}
	defer rows.Close()

	var out []graph.FileRecord
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan file: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// DeleteFile removes a file with its symbols and outgoing edges. Edges of
// other files that targeted it become unresolved.
func (s *SQLiteStore) DeleteFile(ctx context.Context, projectID, path string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmts := []string{
			`DELETE FROM files WHERE project_id = ? AND path = ?`,
			`DELETE FROM symbols WHERE project_id = ? AND file_path = ?`,
			`DELETE FROM dependencies WHERE project_id = ? AND source_file = ?`,
			`UPDATE dependencies SET target_file = NULL WHERE project_id = ? AND target_file = ?`,
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt, projectID, path); err != nil {
				return fmt.Errorf("sqlite: delete file %s: %w", path, err)
			}
		}
		return nil
	})
}

// UpdateFileMetrics overwrites the derived metrics of a file.
func (s *SQLiteStore) UpdateFileMetrics(ctx context.Context, projectID, path string, m graph.FileMetrics) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE files SET complexity = ?, efferent_coupling = ?, afferent_coupling = ?, cohesion = ?
		 WHERE project_id = ? AND path = ?`,
		m.Complexity, m.EfferentCoupling, m.AfferentCoupling, m.Cohesion, projectID, path)
	if err != nil {
		return fmt.Errorf("sqlite: update metrics %s: %w", path, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("file %s: %w", path, ErrNotFound)
	}
	return nil
}

// ---------- Symbols and dependencies ----------

func replaceSymbols(ctx context.Context, tx *sql.Tx, projectID, path string, symbols []graph.SymbolRecord) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM symbols WHERE project_id = ? AND file_path = ?`, projectID, path); err != nil {
		return fmt.Errorf("sqlite: clear symbols %s: %w", path, err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO symbols (project_id, file_path, seq, kind, name, start_line, end_line,
		   exported, signature, docstring, complexity)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare symbols: %w", err)
	}
	defer stmt.Close()

	for i, sym := range symbols {
		var cx sql.NullInt64
		if sym.Complexity != nil {
			cx = sql.NullInt64{Int64: int64(*sym.Complexity), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, projectID, path, i, string(sym.Kind), sym.Name,
			sym.StartLine, sym.EndLine, sym.Exported,
			nullString(sym.Signature), nullString(sym.Docstring), cx); err != nil {
			return fmt.Errorf("sqlite: insert symbol %s in %s: %w", sym.Name, path, err)
		}
	}
	return nil
}

func replaceDependencies(ctx context.Context, tx *sql.Tx, projectID, path string, edges []graph.DependencyEdge) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM dependencies WHERE project_id = ? AND source_file = ?`, projectID, path); err != nil {
		return fmt.Errorf("sqlite: clear dependencies %s: %w", path, err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO dependencies (project_id, source_file, seq, target_file, import_specifier,
		   kind, line, imported_names)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare dependencies: %w", err)
	}
	defer stmt.Close()

	for i, e := range edges {
		if _, err := stmt.ExecContext(ctx, projectID, path, i, nullString(e.TargetFile),
			e.ImportSpecifier, string(e.Kind), e.Line, joinNames(e.ImportedNames)); err != nil {
			return fmt.Errorf("sqlite: insert dependency %q in %s: %w", e.ImportSpecifier, path, err)
		}
	}
	return nil
}

// SaveFile upserts f and replaces its symbols and edges in one transaction.
func (s *SQLiteStore) SaveFile(ctx context.Context, f graph.FileRecord, symbols []graph.SymbolRecord, edges []graph.DependencyEdge) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := upsertFile(ctx, tx, f); err != nil {
			return err
		}
		if err := replaceSymbols(ctx, tx, f.ProjectID, f.Path, symbols); err != nil {
			return err
		}
		return replaceDependencies(ctx, tx, f.ProjectID, f.Path, edges)
	})
}

// ReplaceSymbols replaces every symbol owned by path.
func (s *SQLiteStore) ReplaceSymbols(ctx context.Context, projectID, path string, symbols []graph.SymbolRecord) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return replaceSymbols(ctx, tx, projectID, path, symbols)
	})
}

// ReplaceDependencies replaces every edge whose source is path.
func (s *SQLiteStore) ReplaceDependencies(ctx context.Context, projectID, path string, edges []graph.DependencyEdge) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return replaceDependencies(ctx, tx, projectID, path, edges)
	})
}

// ListSymbols returns every symbol of a project, ordered by file and line.
func (s *SQLiteStore) ListSymbols(ctx context.Context, projectID string) ([]graph.SymbolRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT file_path, kind, name, start_line, end_line, exported, signature, docstring, complexity
		 FROM symbols WHERE project_id = ? ORDER BY file_path, seq`, projectID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list symbols: %w", err)
	}
	defer rows.Close()

	var out []graph.SymbolRecord
	for rows.Next() {
		var sym graph.SymbolRecord
		var kind string
		var sig, doc sql.NullString
		var cx sql.NullInt64
		if err := rows.Scan(&sym.FilePath, &kind, &sym.Name, &sym.StartLine, &sym.EndLine,
			&sym.Exported, &sig, &doc, &cx); err != nil {
			return nil, fmt.Errorf("sqlite: scan symbol: %w", err)
		}
		sym.Kind = graph.SymbolKind(kind)
		sym.Signature = fromNullString(sig)
		sym.Docstring = fromNullString(doc)
		if cx.Valid {
			sym.Complexity = graph.IntPtr(int(cx.Int64))
		}
		out = append(out, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortSymbols(out)
	return out, nil
}

// ListDependencies returns every edge of a project grouped by source file,
// in extraction order within a file.
func (s *SQLiteStore) ListDependencies(ctx context.Context, projectID string) ([]graph.DependencyEdge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_file, target_file, import_specifier, kind, line, imported_names
		 FROM dependencies WHERE project_id = ? ORDER BY source_file, seq`, projectID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list dependencies: %w", err)
	}
	defer rows.Close()

	var out []graph.DependencyEdge
	for rows.Next() {
		var e graph.DependencyEdge
		var target sql.NullString
		var kind, names string
		if err := rows.Scan(&e.SourceFile, &target, &e.ImportSpecifier, &kind, &e.Line, &names); err != nil {
			return nil, fmt.Errorf("sqlite: scan dependency: %w", err)
		}
		e.TargetFile = fromNullString(target)
		e.Kind = graph.EdgeKind(kind)
		e.ImportedNames = splitNames(names)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ---------- Runs ----------

// CreateRun records a new run.
func (s *SQLiteStore) CreateRun(ctx context.Context, run graph.IndexRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO index_runs (id, project_id, layer, status, files_processed, files_total,
		   started_at, finished_at, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ProjectID, string(run.Layer), string(run.Status), run.FilesProcessed,
		run.FilesTotal, timeString(run.StartedAt), timeString(run.FinishedAt), run.Error)
	if err != nil {
		return fmt.Errorf("sqlite: create run %s: %w", run.ID, err)
	}
	return nil
}

// updateRunning applies an update to a run that is still running and
// reports ErrNotFound or ErrRunTerminated otherwise.
func (s *SQLiteStore) updateRunning(ctx context.Context, runID, set string, args ...any) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM index_runs WHERE id = ?`, runID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("sqlite: get run %s: %w", runID, err)
		}
		if graph.RunStatus(status) != graph.RunRunning {
			return fmt.Errorf("run %s: %w", runID, ErrRunTerminated)
		}
		args = append(args, runID)
		if _, err := tx.ExecContext(ctx, `UPDATE index_runs SET `+set+` WHERE id = ?`, args...); err != nil {
			return fmt.Errorf("sqlite: update run %s: %w", runID, err)
		}
		return nil
	})
}

// UpdateRunProgress records progress of a running run.
func (s *SQLiteStore) UpdateRunProgress(ctx context.Context, runID string, processed, total int) error {
	return s.updateRunning(ctx, runID, `files_processed = ?, files_total = ?`, processed, total)
}

// CompleteRun marks a running run completed.
func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, processed int) error {
	return s.updateRunning(ctx, runID, `status = ?, files_processed = ?, finished_at = ?`,
		string(graph.RunCompleted), processed, timeString(s.now()))
}

// FailRun marks a running run failed with reason.
func (s *SQLiteStore) FailRun(ctx context.Context, runID string, reason string) error {
	return s.updateRunning(ctx, runID, `status = ?, error = ?, finished_at = ?`,
		string(graph.RunFailed), reason, timeString(s.now()))
}

// GetRun returns a run by id.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*graph.IndexRun, error) {
	var run graph.IndexRun
	var layer, status, started, finished string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, layer, status, files_processed, files_total, started_at, finished_at, error
		 FROM index_runs WHERE id = ?`, runID).
		Scan(&run.ID, &run.ProjectID, &layer, &status, &run.FilesProcessed, &run.FilesTotal,
			&started, &finished, &run.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get run %s: %w", runID, err)
	}
	run.Layer = graph.RunLayer(layer)
	run.Status = graph.RunStatus(status)
	run.StartedAt = parseTime(started)
	run.FinishedAt = parseTime(finished)
	return &run, nil
}

// ---------- Findings ----------

// ReplaceFindings replaces all findings of a project.
func (s *SQLiteStore) ReplaceFindings(ctx context.Context, projectID string, findings []graph.Finding) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM findings WHERE project_id = ?`, projectID); err != nil {
			return fmt.Errorf("sqlite: clear findings: %w", err)
		}
		for i, f := range findings {
			evidence, err := json.Marshal(f.Evidence)
			if err != nil {
				return fmt.Errorf("sqlite: encode evidence of %s: %w", f.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO findings (project_id, seq, id, category, severity, title, description,
				   evidence, suggestion)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				projectID, i, f.ID, f.Category, string(f.Severity), f.Title, f.Description,
				string(evidence), f.Suggestion); err != nil {
				return fmt.Errorf("sqlite: insert finding %s: %w", f.ID, err)
			}
		}
		return nil
	})
}

// ListFindings returns the findings of a project at or above minSeverity,
// most severe first.
func (s *SQLiteStore) ListFindings(ctx context.Context, projectID string, minSeverity graph.Severity) ([]graph.Finding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, category, severity, title, description, evidence, suggestion
		 FROM findings WHERE project_id = ? ORDER BY seq`, projectID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list findings: %w", err)
	}
	defer rows.Close()

	var out []graph.Finding
	for rows.Next() {
		var f graph.Finding
		var severity, evidence string
		if err := rows.Scan(&f.ID, &f.Category, &severity, &f.Title, &f.Description,
			&evidence, &f.Suggestion); err != nil {
			return nil, fmt.Errorf("sqlite: scan finding: %w", err)
		}
		f.Severity = graph.Severity(severity)
		if err := json.Unmarshal([]byte(evidence), &f.Evidence); err != nil {
			return nil, fmt.Errorf("sqlite: decode evidence of %s: %w", f.ID, err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortFindings(out)
	return filterSeverity(out, minSeverity), nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
