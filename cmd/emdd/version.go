package main

import (
	"fmt"

	"github.com/MrWalshy/emdd"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the emdd version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "emdd %s\n", emdd.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
