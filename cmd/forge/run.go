package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vikramraodp/forge/internal/core"
)

var runCmd = &cobra.Command{
	Use:                "run [args...]",
	Short:              "Build and run a binary target",
	DisableFlagParsing: false,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := core.RunOptions{CommonOptions: commonOptions(), Bin: viper.GetString("bin"), Args: args}
		code, err := engine.Run(cmd.Context(), manifestPath(), opts)
		if err != nil {
			return err
		}
		if code != 0 {
			os.Exit(code)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().String("bin", "", "which binary target to run, when a package has more than one")
	if err := viper.BindPFlag("bin", runCmd.Flags().Lookup("bin")); err != nil {
		panic(err)
	}
	RootCmd.AddCommand(runCmd)
}
