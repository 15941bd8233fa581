package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-core/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Expose search, ask, ingest_document, and conversation_history as MCP
tools, plus the ingested documents as MCP resources.

The default transport is stdio JSON-RPC, suitable for Claude Desktop and
other MCP-compatible assistants. Pass --port to serve streamable HTTP
instead, for MCP Inspector or remote clients.

Examples:
  sercha mcp serve
  sercha mcp serve --port 8080`,
	RunE: runMCPServe,
}

var mcpPort int

func init() {
	mcpServeCmd.Flags().IntVarP(&mcpPort, "port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	ports := &mcp.Ports{
		Chat:      chatService,
		Retrieval: retrievalService,
		Ingest:    ingestService,
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	if mcpPort > 0 {
		addr := fmt.Sprintf(":%d", mcpPort)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
