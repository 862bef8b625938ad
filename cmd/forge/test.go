package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vikramraodp/forge/internal/core"
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Build and run the selected test targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := core.TestOptions{CommonOptions: commonOptions(), TestFilter: viper.GetString("test-filter")}
		report, err := engine.Test(cmd.Context(), manifestPath(), opts)
		printReport(report)
		return err
	},
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Build and run the selected benchmark targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := core.TestOptions{CommonOptions: commonOptions(), TestFilter: viper.GetString("test-filter")}
		report, err := engine.Bench(cmd.Context(), manifestPath(), opts)
		printReport(report)
		return err
	},
}

func init() {
	testCmd.Flags().String("test-filter", "", "substring filter passed through to the test binary")
	if err := viper.BindPFlag("test-filter", testCmd.Flags().Lookup("test-filter")); err != nil {
		panic(err)
	}
	RootCmd.AddCommand(testCmd)
	RootCmd.AddCommand(benchCmd)
}
