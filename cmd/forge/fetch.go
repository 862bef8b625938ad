package main

import "github.com/spf13/cobra"

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Resolve and download every dependency without building",
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := engine.Fetch(cmd.Context(), manifestPath(), commonOptions())
		printReport(report)
		return err
	},
}

func init() {
	RootCmd.AddCommand(fetchCmd)
}
