package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kirillkom/collision-fault-assistant/internal/bootstrap"
	"github.com/kirillkom/collision-fault-assistant/internal/config"
)

func newAnalysisCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analysis",
		Short: "Inspect stored analyses",
	}

	show := &cobra.Command{
		Use:   "show <analysis-id>",
		Short: "Print an analysis as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap.New(cmd.Context(), *cfg, serviceName)
			if err != nil {
				return err
			}
			defer app.Close()

			analysis, err := app.Evaluation.GetAnalysis(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), analysis)
		},
	}

	var userID string
	queries := &cobra.Command{
		Use:   "queries <analysis-id>",
		Short: "Print the follow-up thread of a user on an analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap.New(cmd.Context(), *cfg, serviceName)
			if err != nil {
				return err
			}
			defer app.Close()

			thread, err := app.Evaluation.ListQueries(cmd.Context(), userID, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), thread)
		},
	}
	queries.Flags().StringVar(&userID, "user", "", "user id owning the thread")
	_ = queries.MarkFlagRequired("user")

	cmd.AddCommand(show, queries)
	return cmd
}

func printJSON(w io.Writer, v any) error {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(body))
	return err
}
