package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/aretw0/redline/internal/cli"
	"github.com/aretw0/redline/pkg/adapters/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the review service and every active skill as MCP tools, so an agent
can start reviews, inspect pending edits, submit decisions and resume tasks.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		app, err := loadApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		transport, _ := cmd.Flags().GetString("transport")
		domainID, _ := cmd.Flags().GetString("domain")
		port := app.Config.Server.MCPPort
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		srv := mcp.NewServer(app.Service, app.Dispatcher, mcp.WithLogger(app.Logger), mcp.WithDomain(domainID))

		switch transport {
		case "stdio":
			// Logs go to stderr; stdout carries JSON-RPC.
			app.Logger.Info("Starting redline MCP server (stdio)")
			return srv.ServeStdio()
		case "sse":
			app.Logger.Info("Starting redline MCP server (SSE)", "port", port)
			if err := srv.ServeSSE(ctx, port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			app.Logger.Info("MCP server stopped gracefully")
			return nil
		default:
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 0, "Port to listen on (only for SSE, overrides server.mcp_port)")
	mcpCmd.Flags().String("domain", "", "Only export skills available in this domain")
}
