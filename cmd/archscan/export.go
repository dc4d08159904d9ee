package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/archscan/internal/export"
)

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the stored graph as JSON or a Mermaid diagram",
	Long: `Export the indexed project.

Formats:
  json     files, symbols, dependencies and findings with a summary
  mermaid  file dependency flowchart grouped by directory, cycles highlighted`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportFormat != "json" && exportFormat != "mermaid" {
			return fmt.Errorf("unknown format %q (want json or mermaid)", exportFormat)
		}

		ctx := cmd.Context()
		ws, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer ws.Close()

		w := cmd.OutOrStdout()
		if exportOutput != "" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			defer f.Close()
			w = f
		}

		if exportFormat == "mermaid" {
			mermaid, err := export.GenerateMermaid(ctx, ws.store, ws.projectID)
			if err != nil {
				return err
			}
			_, err = io.WriteString(w, mermaid)
			return err
		}

		e, err := export.ExportProject(ctx, ws.store, ws.projectID, time.Now())
		if err != nil {
			return err
		}
		return export.WriteJSON(w, e)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "output format: json or mermaid")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to a file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}
