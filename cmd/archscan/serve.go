package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/archscan/internal/graph"
	"github.com/dusk-indust/archscan/internal/mcptools"
)

var serveHTTPAddr string

var serveCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Serve the analysis tools over the Model Context Protocol",
	Long: `Run an MCP server exposing index_project, list_findings, query_symbols,
get_file_metrics and get_dependencies.

The server speaks stdio by default; --http serves streamable HTTP instead.
All projects share the store configured for --project-root.`,
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

		svc := mcptools.NewCodeIntelService(ws.store, parser, slog.Default())
		if serveHTTPAddr != "" {
			fmt.Fprintf(os.Stderr, "archscan MCP server listening on %s\n", serveHTTPAddr)
			return mcptools.RunMCPServer(ctx, svc, serveHTTPAddr)
		}
		return mcptools.RunMCPServerStdio(ctx, svc)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHTTPAddr, "http", "", "serve streamable HTTP on this address instead of stdio")
	rootCmd.AddCommand(serveCmd)
}
