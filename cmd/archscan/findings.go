package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/archscan/internal/graph"
)

var (
	findingsMinSeverity string
	findingsCategory    string
)

var findingsCmd = &cobra.Command{
	Use:   "findings",
	Short: "List the findings of the latest analysis run",
	Long: `List stored findings, most severe first.

Examples:
  archscan findings
  archscan findings --min-severity medium
  archscan findings --category cycles`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		minSev := graph.Severity(strings.ToLower(findingsMinSeverity))
		if minSev != "" && minSev.Rank() == 0 {
			return fmt.Errorf("unknown severity %q (want low, medium or high)", findingsMinSeverity)
		}

		ctx := cmd.Context()
		ws, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer ws.Close()

		findings, err := ws.store.ListFindings(ctx, ws.projectID, minSev)
		if err != nil {
			return fmt.Errorf("list findings: %w", err)
		}
		if findingsCategory != "" {
			findings = slices.DeleteFunc(findings, func(f graph.Finding) bool { return f.Category != findingsCategory })
		}
		printFindings(cmd.OutOrStdout(), findings)
		return nil
	},
}

func init() {
	findingsCmd.Flags().StringVar(&findingsMinSeverity, "min-severity", "", "lowest severity to show: low, medium or high")
	findingsCmd.Flags().StringVar(&findingsCategory, "category", "", "only show one category (cycles, dead_code, god_module, layering, layer_skip, coupling)")
	rootCmd.AddCommand(findingsCmd)
}

func printFindings(w io.Writer, findings []graph.Finding) {
	if len(findings) == 0 {
		fmt.Fprintln(w, "No findings.")
		return
	}
	for i, f := range findings {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "[%s] %s: %s\n", strings.ToUpper(string(f.Severity)), f.Category, f.Title)
		if f.Description != "" {
			fmt.Fprintf(w, "  %s\n", f.Description)
		}
		if f.Suggestion != "" {
			fmt.Fprintf(w, "  -> %s\n", f.Suggestion)
		}
		fmt.Fprintf(w, "  id: %s\n", f.ID)
	}
}
