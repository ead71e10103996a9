package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/redline/internal/presentation/graph"
	"github.com/aretw0/redline/internal/runtime"
	"github.com/aretw0/redline/pkg/domain"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the review state machine as a Mermaid diagram",
	Long:  `Outputs a Mermaid diagram (graph TD) of the review state machine. With --task the node the task is parked on is highlighted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var overlay *graph.Overlay
		if taskID, _ := cmd.Flags().GetString("task"); taskID != "" {
			app, err := loadApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			state, err := app.Service.Get(cmd.Context(), taskID)
			if err != nil {
				return err
			}
			overlay = &graph.Overlay{
				CurrentNode: state.Node,
				Suspended:   state.Status == domain.StatusAwaitingApproval,
			}
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(runtime.Edges(), overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("task", "", "Highlight the current node of this task")
}
