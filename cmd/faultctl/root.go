package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kirillkom/collision-fault-assistant/internal/config"
	"github.com/kirillkom/collision-fault-assistant/internal/observability/logging"
)

const serviceName = "faultctl"

func newRootCmd() *cobra.Command {
	cfg := &config.Config{}

	root := &cobra.Command{
		Use:           "faultctl",
		Short:         "Administer the collision fault analysis service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			*cfg = loaded
			// stdout carries command output and the MCP protocol.
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), serviceName, cfg.LogLevel, "text"))
			return nil
		},
	}

	root.AddCommand(
		newMigrateCmd(cfg),
		newMCPCmd(cfg),
		newAnalysisCmd(cfg),
	)
	return root
}
