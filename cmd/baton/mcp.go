package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/batonlabs/baton/pkg/adapters/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the flock as an MCP server",
	Long: `Exposes sessions as MCP tools (start_session, step_session,
submit_input, get_session, list_sessions) so agent hosts can drive the
flock. Supports stdio and SSE transports.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")
		logger := getLogger(cmd)

		orch, _, err := loadOrchestrator(cmd)
		if err != nil {
			return err
		}

		sessions, cleanup, err := getSessionManager(cmd, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		server := mcp.NewServer(orch, sessions)

		switch transport {
		case "stdio":
			return server.ServeStdio()
		case "sse":
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return server.ServeSSE(ctx, port)
		default:
			return fmt.Errorf("unknown transport %q (want stdio or sse)", transport)
		}
	},
}

func init() {
	mcpCmd.Flags().StringP("transport", "t", "stdio", "Transport: stdio or sse")
	mcpCmd.Flags().IntP("port", "p", 8081, "Port for the SSE transport")
	rootCmd.AddCommand(mcpCmd)
}
