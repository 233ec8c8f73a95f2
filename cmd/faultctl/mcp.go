package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/collision-fault-assistant/internal/adapters/mcp"
	"github.com/kirillkom/collision-fault-assistant/internal/bootstrap"
	"github.com/kirillkom/collision-fault-assistant/internal/config"
)

func newMCPCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the analysis tools over MCP stdio",
		Long: `Runs the analysis lifecycle as a Model Context Protocol server on stdio.

Tools: init_analysis, get_analysis, re_evaluate, ask_followup, list_queries.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := bootstrap.New(cmd.Context(), *cfg, serviceName)
			if err != nil {
				return err
			}
			defer app.Close()

			slog.Info("mcp_server_starting")
			return mcpserver.ServeStdio(mcpadapter.NewServer(app.Evaluation, app.Evaluation))
		},
	}
}
