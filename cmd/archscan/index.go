package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/archscan/internal/graph"
	"github.com/dusk-indust/archscan/internal/indexer"
)

var indexFull bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index the project and run the detectors",
	Long: `Walk the project, parse changed files, refresh symbols, dependencies and
metrics, then run every detector over the stored graph.

Only files whose content changed since the last run are reprocessed unless
--full is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ws, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer ws.Close()

		parser := graph.NewTreeSitterParser()
		defer parser.Close()

		var onProgress func(indexer.ProgressEvent)
		if verbose {
			pr := indexer.NewProgressReporter()
			done := make(chan struct{})
			go printProgress(cmd.ErrOrStderr(), pr, done)
			defer func() {
				pr.Close()
				<-done
			}()
			onProgress = pr.Emit
		}

		res, err := ws.indexer(parser, onProgress).Index(ctx, ws.projectID, indexFull)
		if err != nil {
			return err
		}
		printIndexResult(cmd.OutOrStdout(), res)
		return nil
	},
}

func init() {
	indexCmd.Flags().BoolVar(&indexFull, "full", false, "reprocess every file instead of only changed ones")
	rootCmd.AddCommand(indexCmd)
}

func printIndexResult(w io.Writer, res *indexer.Result) {
	fmt.Fprintf(w, "Indexed (%s): %d discovered, %d processed, %d removed\n",
		res.Mode, res.Discovered, res.Processed, res.Removed)
	if res.HeadCommit != "" {
		fmt.Fprintf(w, "Head commit: %s\n", res.HeadCommit)
	}
	fmt.Fprintf(w, "Findings: %d\n", len(res.Findings))
	for _, sev := range []graph.Severity{graph.SeverityHigh, graph.SeverityMedium, graph.SeverityLow} {
		n := 0
		for _, f := range res.Findings {
			if f.Severity == sev {
				n++
			}
		}
		if n > 0 {
			fmt.Fprintf(w, "  %-6s %d\n", sev, n)
		}
	}
}
