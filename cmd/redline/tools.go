package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the skills exposed as tools",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		domainID, _ := cmd.Flags().GetString("domain")
		category, _ := cmd.Flags().GetString("category")
		asJSON, _ := cmd.Flags().GetBool("json")
		tools := app.Skills.DescribeTools(domainID, category)

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(tools)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tDOMAIN\tCATEGORY\tDESCRIPTION")
		for _, t := range tools {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Name, t.Domain, t.Category, t.Description)
		}
		return w.Flush()
	},
}

var invokeCmd = &cobra.Command{
	Use:   "invoke <skill> [json-args]",
	Short: "Invoke a skill directly with JSON arguments",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		input := map[string]any{}
		if len(args) == 2 {
			if err := json.Unmarshal([]byte(args[1]), &input); err != nil {
				return fmt.Errorf("arguments must be a JSON object: %w", err)
			}
		}

		res := app.Dispatcher.Invoke(cmd.Context(), args[0], input)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
		if !res.Success {
			return fmt.Errorf("skill %s failed", args[0])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.AddCommand(invokeCmd)

	toolsCmd.Flags().String("domain", "", "Only list skills available in this domain")
	toolsCmd.Flags().String("category", "", "Only list skills in this category")
	toolsCmd.Flags().Bool("json", false, "Print tool descriptions as JSON")
}
