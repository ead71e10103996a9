package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/redline"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of redline",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "redline version %s\n", strings.TrimSpace(redline.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
