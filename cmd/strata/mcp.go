package main

import (
	"fmt"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

func newMCPCmd(o *rootOptions) *cobra.Command {
	var (
		transport string
		port      int
	)
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the Model Context Protocol (MCP) server",
		Long: `Exposes the storage service as MCP tools for AI agents.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Logs go to stderr.
- sse: Uses Server-Sent Events over HTTP.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if transport != "stdio" && transport != "sse" {
				return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
			}
			return o.withApp(cmd, func(app *strata.App) error {
				srv := mcp.NewServer(app.Storage, app.Repo, strata.Version, mcp.WithLogger(o.logger))
				if transport == "stdio" {
					o.logger.Info("Starting Strata MCP Server (Stdio)")
					return srv.ServeStdio()
				}
				o.logger.Info("Starting Strata MCP Server (SSE)", "port", port)
				if err := srv.ServeSSE(cmd.Context(), port); err != nil {
					return err
				}
				o.logger.Info("MCP Server stopped gracefully")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	cmd.Flags().IntVar(&port, "port", 8080, "Port to listen on (only for SSE)")
	return cmd
}
