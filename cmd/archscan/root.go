package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/archscan/internal/config"
	"github.com/dusk-indust/archscan/internal/graph"
	"github.com/dusk-indust/archscan/internal/incremental"
	"github.com/dusk-indust/archscan/internal/indexer"
	"github.com/dusk-indust/archscan/internal/store"
)

var (
	projectRoot string
	projectID   string
	storeFlag   string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "archscan",
	Short: "archscan - structural analysis of source repositories",
	Long: `archscan walks a repository, parses its source files with tree-sitter,
extracts symbols and file dependencies, computes coupling and complexity
metrics, and reports architectural problems: dependency cycles, dead code,
god modules, layering violations and excessive coupling.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&projectRoot, "project-root", ".", "path to the target project")
	rootCmd.PersistentFlags().StringVar(&projectID, "project-id", "", "identifier the project is stored under (default: the absolute project root)")
	rootCmd.PersistentFlags().StringVar(&storeFlag, "store", "", "storage backend: sqlite, kuzu or memory (default: from archscan.yml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose output")
}

// workspace is the resolved project a command operates on.
type workspace struct {
	root      string
	projectID string
	cfg       *config.ProjectConfig
	store     store.Store
}

// openWorkspace loads the project config, opens its store and registers the
// project. The caller closes the workspace.
func openWorkspace(ctx context.Context) (*workspace, error) {
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot access project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root is not a directory: %s", root)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	if storeFlag != "" && storeFlag != cfg.Store {
		cfg.Store = storeFlag
		cfg.StorePath = config.DefaultStorePath(root, storeFlag)
	}

	s, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.InitSchema(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	id := projectID
	if id == "" {
		id = root
	}
	if err := store.EnsureProject(ctx, s, id, root); err != nil {
		s.Close()
		return nil, err
	}
	return &workspace{root: root, projectID: id, cfg: cfg, store: s}, nil
}

// openStore opens the backend named by the config.
func openStore(cfg *config.ProjectConfig) (store.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return store.NewMemStore(), nil
	case config.StoreKuzu:
		s, err := store.NewKuzuFileStore(cfg.StorePath)
		if err != nil {
			return nil, fmt.Errorf("open graph: %w", err)
		}
		return s, nil
	case config.StoreSQLite:
		s, err := store.OpenSQLite(cfg.StorePath)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

func (w *workspace) Close() error {
	return w.store.Close()
}

// indexer builds an Indexer for the workspace. onProgress may be nil.
func (w *workspace) indexer(parser graph.Parser, onProgress func(indexer.ProgressEvent)) *indexer.Indexer {
	return indexer.New(w.store, parser, indexer.Options{
		Workers:    w.cfg.Workers,
		Walk:       w.cfg.WalkOptions(),
		Thresholds: w.cfg.Thresholds,
		Layers:     w.cfg.Layers,
		VCS:        incremental.NewGitVCS(w.cfg.GitTimeout),
		Logger:     slog.Default(),
		OnProgress: onProgress,
	})
}

// printProgress drains pr to w until it is closed, then closes done.
func printProgress(w io.Writer, pr *indexer.ProgressReporter, done chan<- struct{}) {
	defer close(done)
	for ev := range pr.Events() {
		fmt.Fprintln(w, indexer.FormatProgress(ev))
	}
	if n := pr.Dropped(); n > 0 {
		fmt.Fprintf(w, "(%d progress lines skipped)\n", n)
	}
}
