package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aretw0/redline/internal/cli"
	"github.com/aretw0/redline/internal/presentation/tui"
)

var reviewCmd = &cobra.Command{
	Use:   "review [document]",
	Short: "Review a contract interactively",
	Long: `Runs the review for a parsed contract (JSON or YAML clause tree) and asks for
a decision on every proposed edit. Pass --task-id alone to continue a task that
is waiting for approval.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		taskID, _ := cmd.Flags().GetString("task-id")
		domainID, _ := cmd.Flags().GetString("domain")
		auto, _ := cmd.Flags().GetBool("auto-approve")

		opts := cli.ReviewOptions{
			TaskID:      taskID,
			DomainID:    domainID,
			AutoApprove: auto,
			In:          cmd.InOrStdin(),
			Out:         cmd.OutOrStdout(),
		}
		if len(args) > 0 {
			doc, err := cli.LoadDocument(args[0])
			if err != nil {
				return err
			}
			opts.Document = doc
		} else if taskID == "" {
			return fmt.Errorf("a document path or --task-id is required")
		}

		interactive := term.IsTerminal(int(os.Stdout.Fd()))
		if !auto && !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("stdin is not a terminal; use --auto-approve or the HTTP/MCP interfaces")
		}
		if interactive {
			tui.PrintBanner(opts.Out)
			width := 0
			if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
				width = w
			}
			if render, err := tui.NewRenderer(width); err == nil {
				opts.Render = render
			}
		}

		app, err := loadApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		_, err = cli.RunReview(ctx, app.Service, opts)
		return cli.HandleExecutionError(err)
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)

	reviewCmd.Flags().String("domain", "supply", "Domain plugin whose checklist drives the review")
	reviewCmd.Flags().String("task-id", "", "Task id to create, or an existing task to continue")
	reviewCmd.Flags().Bool("auto-approve", false, "Approve every proposed edit without prompting")
}
