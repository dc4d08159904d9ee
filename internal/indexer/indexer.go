// Package indexer runs the structural pipeline for one project: walk, select
// changed files, parse, extract, resolve, persist, recompute metrics, then
// run the pattern detectors over the persisted graph.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/archscan/internal/detect"
	"github.com/dusk-indust/archscan/internal/graph"
	"github.com/dusk-indust/archscan/internal/incremental"
	"github.com/dusk-indust/archscan/internal/store"
	"github.com/dusk-indust/archscan/internal/walker"
)

// ErrRunAborted is returned when the caller cancels a run between files.
var ErrRunAborted = errors.New("indexer: run aborted")

// Options configures an Indexer.
type Options struct {
	Workers    int // default runtime.NumCPU()
	Walk       walker.Options
	Thresholds detect.Thresholds
	Layers     []detect.Layer
	// VCS reports revision changes; nil disables diff-based selection.
	VCS    incremental.VCS
	Logger *slog.Logger
	// OnProgress is called synchronously from the indexing goroutines; it
	// may be nil.
	OnProgress func(ProgressEvent)
	// Now is the clock used for timestamps; nil means time.Now.
	Now func() time.Time
}

// Indexer owns the pipeline for any number of projects. Per-run state is
// local to each call.
type Indexer struct {
	store      store.Store
	parser     graph.Parser
	controller *incremental.Controller
	opts       Options
	logger     *slog.Logger
}

// New returns an Indexer persisting through s and parsing with p. The
// parser is owned by the caller.
func New(s store.Store, p graph.Parser, opts Options) *Indexer {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Walk.Logger == nil {
		opts.Walk.Logger = opts.Logger
	}
	return &Indexer{
		store:      s,
		parser:     p,
		controller: incremental.NewController(opts.VCS, opts.Logger),
		opts:       opts,
		logger:     opts.Logger,
	}
}

// Result summarises one Index call.
type Result struct {
	StructureRunID string           `json:"structureRunId"`
	AnalysisRunID  string           `json:"analysisRunId,omitempty"`
	Mode           incremental.Mode `json:"mode"`
	Discovered     int              `json:"discovered"`
	Processed      int              `json:"processed"`
	Removed        []string         `json:"removed,omitempty"`
	HeadCommit     string           `json:"headCommit,omitempty"`
	Findings       int              `json:"findings"`
}

// Index runs the structure layer for projectID and, when it completes, the
// analysis layer. A failed structure run is returned as an error and the
// analysis layer is not started.
func (ix *Indexer) Index(ctx context.Context, projectID string, full bool) (*Result, error) {
	res, err := ix.Structure(ctx, projectID, full)
	if err != nil {
		return res, err
	}
	runID, findings, err := ix.Analyze(ctx, projectID)
	res.AnalysisRunID = runID
	res.Findings = len(findings)
	if err != nil {
		return res, err
	}
	return res, nil
}

// Structure runs the structure layer: files, symbols, edges and metrics.
func (ix *Indexer) Structure(ctx context.Context, projectID string, full bool) (*Result, error) {
	project, err := ix.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("indexer: project %s: %w", projectID, err)
	}

	runID := uuid.NewString()
	res := &Result{StructureRunID: runID}
	if err := ix.store.CreateRun(ctx, graph.IndexRun{
		ID:        runID,
		ProjectID: projectID,
		Layer:     graph.LayerStructure,
		Status:    graph.RunRunning,
		StartedAt: ix.opts.Now(),
	}); err != nil {
		return nil, fmt.Errorf("indexer: create run: %w", err)
	}
	ix.emit(ProgressEvent{RunID: runID, Layer: graph.LayerStructure, Status: ProgressStarted})
	log := ix.logger.With("run", runID, "project", projectID)

	processed, err := ix.structure(ctx, log, project, runID, full, res)
	if err != nil {
		ix.fail(ctx, log, runID, graph.LayerStructure, err)
		return res, err
	}
	res.Processed = processed

	if err := ix.store.CompleteRun(ctx, runID, processed); err != nil {
		err = fmt.Errorf("indexer: complete run %s: %w", runID, err)
		ix.fail(ctx, log, runID, graph.LayerStructure, err)
		return res, err
	}
	ix.emit(ProgressEvent{RunID: runID, Layer: graph.LayerStructure, Status: ProgressComplete, Processed: processed, Total: processed})
	log.Info("indexer: structure run completed", "mode", res.Mode, "processed", processed, "removed", len(res.Removed))
	return res, nil
}

func (ix *Indexer) structure(ctx context.Context, log *slog.Logger, project *graph.Project, runID string, full bool, res *Result) (int, error) {
	discovered, err := walker.Walk(ctx, project.RootPath, ix.opts.Walk)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, fmt.Errorf("%w: %w", ErrRunAborted, ctxErr)
		}
		return 0, fmt.Errorf("indexer: run %s: %w", runID, err)
	}
	res.Discovered = len(discovered)

	stored, err := ix.store.ListFiles(ctx, project.ID)
	if err != nil {
		return 0, fmt.Errorf("indexer: run %s: list files: %w", runID, err)
	}
	persisted := make(map[string]string, len(stored))
	prior := make(map[string]graph.FileRecord, len(stored))
	for _, f := range stored {
		persisted[f.Path] = f.ContentHash
		prior[f.Path] = f
	}

	sel := ix.controller.Select(ctx, incremental.Request{
		Root:       project.RootPath,
		Full:       full,
		LastCommit: project.LastIndexedCommit,
		Discovered: discovered,
		Persisted:  persisted,
	})
	res.Mode, res.Removed, res.HeadCommit = sel.Mode, sel.Removed, sel.HeadCommit

	for _, p := range sel.Removed {
		if err := ix.store.DeleteFile(ctx, project.ID, p); err != nil {
			return 0, fmt.Errorf("indexer: run %s: remove %s: %w", runID, p, err)
		}
	}

	selected, err := ix.withStaleImporters(ctx, project.ID, sel, discovered, persisted)
	if err != nil {
		return 0, fmt.Errorf("indexer: run %s: %w", runID, err)
	}
	if err := ix.store.UpdateRunProgress(ctx, runID, 0, len(selected)); err != nil {
		return 0, fmt.Errorf("indexer: run %s: progress: %w", runID, err)
	}

	// The resolver sees the complete path set before any file is processed.
	paths := make([]string, len(discovered))
	for i, f := range discovered {
		paths[i] = f.Path
	}
	resolver := graph.NewResolver(project.RootPath, paths)

	processed, err := ix.processFiles(ctx, log, project.ID, runID, resolver, selected, prior)
	if err != nil {
		return processed, err
	}

	if err := ix.recomputeMetrics(ctx, project.ID); err != nil {
		return processed, fmt.Errorf("indexer: run %s: metrics: %w", runID, err)
	}

	project.LastIndexedCommit = sel.HeadCommit
	project.LastIndexedAt = ix.opts.Now()
	if err := ix.store.SaveProject(ctx, *project); err != nil {
		return processed, fmt.Errorf("indexer: run %s: save project: %w", runID, err)
	}
	return processed, nil
}

// withStaleImporters extends the selection, when the path set changed, with
// unselected stored files that hold unresolved edges: a new or removed file
// can change what their specifiers resolve to.
func (ix *Indexer) withStaleImporters(ctx context.Context, projectID string, sel incremental.Selection, discovered []walker.FileEntry, persisted map[string]string) ([]walker.FileEntry, error) {
	pathSetChanged := len(sel.Removed) > 0
	for _, f := range discovered {
		if _, ok := persisted[f.Path]; !ok {
			pathSetChanged = true
			break
		}
	}
	if !pathSetChanged || sel.Mode == incremental.ModeFull {
		return sel.Selected, nil
	}

	edges, err := ix.store.ListDependencies(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}
	stale := make(map[string]bool)
	for _, e := range edges {
		if e.TargetFile == nil {
			stale[e.SourceFile] = true
		}
	}
	chosen := make(map[string]bool, len(sel.Selected))
	for _, f := range sel.Selected {
		chosen[f.Path] = true
	}
	selected := slices.Clone(sel.Selected)
	for _, f := range discovered {
		if stale[f.Path] && !chosen[f.Path] {
			selected = append(selected, f)
		}
	}
	return selected, nil
}

// processFiles parses and analyses files on a bounded worker pool.
// Persistence is serialised. Cancellation is observed between files.
func (ix *Indexer) processFiles(ctx context.Context, log *slog.Logger, projectID, runID string, resolver *graph.Resolver, files []walker.FileEntry, prior map[string]graph.FileRecord) (int, error) {
	var (
		mu        sync.Mutex
		processed int
	)
	total := len(files)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.opts.Workers)
	for _, entry := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, res := ix.analyzeFile(gctx, log, projectID, resolver, entry)
			// IndexedAt dates the content, so reprocessing unchanged bytes
			// keeps the stored record identical.
			if old, ok := prior[entry.Path]; ok && old.ContentHash == rec.ContentHash && !old.IndexedAt.IsZero() {
				rec.IndexedAt = old.IndexedAt
			}

			mu.Lock()
			defer mu.Unlock()
			if err := ix.store.SaveFile(gctx, rec, res.Symbols, res.Edges); err != nil {
				return fmt.Errorf("indexer: run %s: save %s: %w", runID, entry.Path, err)
			}
			processed++
			if err := ix.store.UpdateRunProgress(gctx, runID, processed, total); err != nil {
				return fmt.Errorf("indexer: run %s: progress: %w", runID, err)
			}
			ix.emit(ProgressEvent{RunID: runID, Layer: graph.LayerStructure, Status: ProgressFile, Path: entry.Path, Processed: processed, Total: total})
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return processed, fmt.Errorf("%w after %d/%d files: %w", ErrRunAborted, processed, total, ctxErr)
		}
		return processed, err
	}
	return processed, nil
}

// analyzeFile derives the record, symbols and edges of one file. Per-file
// failures are logged and yield an empty result.
func (ix *Indexer) analyzeFile(ctx context.Context, log *slog.Logger, projectID string, resolver *graph.Resolver, entry walker.FileEntry) (graph.FileRecord, graph.ParseResult) {
	class := graph.Classify(entry.Path)
	rec := graph.FileRecord{
		ProjectID:    projectID,
		Path:         entry.Path,
		AbsolutePath: entry.AbsolutePath,
		Language:     entry.Language,
		SizeBytes:    entry.SizeBytes,
		LineCount:    entry.LineCount,
		ContentHash:  entry.ContentHash,
		Cohesion:     1,
		IsDoc:        class.IsDoc,
		IsTest:       class.IsTest,
		IsConfig:     class.IsConfig,
		IndexedAt:    ix.opts.Now(),
	}
	if entry.Language == graph.LangNone || !ix.parser.Supports(entry.Language) {
		return rec, graph.ParseResult{}
	}

	syn, err := ix.parser.Parse(ctx, entry.Path, entry.Content, entry.Language)
	if err != nil {
		log.Warn("indexer: parse failed, storing file without structure", "path", entry.Path, "err", err)
		return rec, graph.ParseResult{}
	}
	defer syn.Close()

	res := graph.Analyze(syn, resolver, log)
	rec.Complexity = res.Complexity
	return rec, res
}

// recomputeMetrics refreshes coupling and cohesion of every stored file,
// since afferent coupling of unchanged files moves with their importers.
func (ix *Indexer) recomputeMetrics(ctx context.Context, projectID string) error {
	files, err := ix.store.ListFiles(ctx, projectID)
	if err != nil {
		return err
	}
	symbols, err := ix.store.ListSymbols(ctx, projectID)
	if err != nil {
		return err
	}
	edges, err := ix.store.ListDependencies(ctx, projectID)
	if err != nil {
		return err
	}

	complexity := make(map[string]int, len(files))
	for _, f := range files {
		complexity[f.Path] = f.Complexity
	}
	metrics := graph.ComputeMetrics(complexity, symbols, edges)
	for _, f := range files {
		m := metrics[f.Path]
		if m == f.Metrics() {
			continue
		}
		if err := ix.store.UpdateFileMetrics(ctx, projectID, f.Path, m); err != nil {
			return fmt.Errorf("update %s: %w", f.Path, err)
		}
	}
	return nil
}

// Analyze runs every configured detector over the persisted graph of
// projectID and replaces its findings. Detector failures never fail the run.
func (ix *Indexer) Analyze(ctx context.Context, projectID string) (string, []graph.Finding, error) {
	runID := uuid.NewString()
	if err := ix.store.CreateRun(ctx, graph.IndexRun{
		ID:        runID,
		ProjectID: projectID,
		Layer:     graph.LayerAnalysis,
		Status:    graph.RunRunning,
		StartedAt: ix.opts.Now(),
	}); err != nil {
		return "", nil, fmt.Errorf("indexer: create analysis run: %w", err)
	}
	ix.emit(ProgressEvent{RunID: runID, Layer: graph.LayerAnalysis, Status: ProgressStarted})
	log := ix.logger.With("run", runID, "project", projectID)

	findings, files, err := ix.analyze(ctx, log, projectID)
	if err != nil {
		err = fmt.Errorf("indexer: analysis run %s: %w", runID, err)
		ix.fail(ctx, log, runID, graph.LayerAnalysis, err)
		return runID, nil, err
	}
	if err := ix.store.CompleteRun(ctx, runID, files); err != nil {
		err = fmt.Errorf("indexer: complete run %s: %w", runID, err)
		ix.fail(ctx, log, runID, graph.LayerAnalysis, err)
		return runID, nil, err
	}
	ix.emit(ProgressEvent{RunID: runID, Layer: graph.LayerAnalysis, Status: ProgressComplete, Processed: files, Total: files})
	log.Info("indexer: analysis run completed", "findings", len(findings))
	return runID, findings, nil
}

func (ix *Indexer) analyze(ctx context.Context, log *slog.Logger, projectID string) ([]graph.Finding, int, error) {
	files, err := ix.store.ListFiles(ctx, projectID)
	if err != nil {
		return nil, 0, err
	}
	symbols, err := ix.store.ListSymbols(ctx, projectID)
	if err != nil {
		return nil, 0, err
	}
	edges, err := ix.store.ListDependencies(ctx, projectID)
	if err != nil {
		return nil, 0, err
	}

	runner := detect.NewRunner(log, detect.Defaults(ix.opts.Thresholds, ix.opts.Layers)...)
	findings, err := runner.Run(ctx, detect.NewSnapshot(files, symbols, edges))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrRunAborted, err)
	}
	if err := ix.store.ReplaceFindings(ctx, projectID, findings); err != nil {
		return nil, 0, fmt.Errorf("replace findings: %w", err)
	}
	return findings, len(files), nil
}

// fail marks a run failed. It uses a context detached from cancellation so
// an aborted run is still terminated.
func (ix *Indexer) fail(ctx context.Context, log *slog.Logger, runID string, layer graph.RunLayer, cause error) {
	log.Error("indexer: run failed", "layer", layer, "err", cause)
	if err := ix.store.FailRun(context.WithoutCancel(ctx), runID, cause.Error()); err != nil {
		log.Error("indexer: mark run failed", "err", err)
	}
	ix.emit(ProgressEvent{RunID: runID, Layer: layer, Status: ProgressFailed, Message: cause.Error()})
}

// emit sends a progress event if a callback is registered.
func (ix *Indexer) emit(ev ProgressEvent) {
	if ix.opts.OnProgress != nil {
		ix.opts.OnProgress(ev)
	}
}
