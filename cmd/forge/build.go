package main

import (
	"github.com/spf13/cobra"

	"github.com/vikramraodp/forge/internal/core"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Compile the selected packages",
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := engine.Build(cmd.Context(), manifestPath(), core.BuildOptions{CommonOptions: commonOptions()})
		printReport(report)
		return err
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Type-check the selected packages without producing artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := engine.Check(cmd.Context(), manifestPath(), core.BuildOptions{CommonOptions: commonOptions()})
		printReport(report)
		return err
	},
}

func init() {
	RootCmd.AddCommand(buildCmd)
	RootCmd.AddCommand(checkCmd)
}
