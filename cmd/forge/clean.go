package main

import "github.com/spf13/cobra"

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the target directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return engine.Clean(cmd.Context(), manifestPath(), commonOptions())
	},
}

func init() {
	RootCmd.AddCommand(cleanCmd)
}
