package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/redline/pkg/plugin"
)

var validateCmd = &cobra.Command{
	Use:   "validate [plugin.yaml...]",
	Short: "Check plugin files and checklists for consistency",
	Long: `Parses the given plugin files, then loads the configured stack and reports any
checklist item whose required skill is unknown or belongs to another domain.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			def, err := plugin.LoadFile(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: domain %s, %d clauses\n", path, def.Domain, len(def.Checklist))
		}

		app, err := loadApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.CheckChecklists(); err != nil {
			return fmt.Errorf("validation failed:\n%w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Checklists are valid for %v\n", app.Plugins.Domains())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
