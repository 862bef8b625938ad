package main

import "github.com/spf13/cobra"

var generateLockfileCmd = &cobra.Command{
	Use:   "generate-lockfile",
	Short: "Resolve dependencies and write forge.lock without building",
	RunE: func(cmd *cobra.Command, args []string) error {
		resolved, err := engine.GenerateLockfile(cmd.Context(), manifestPath())
		if err != nil {
			return err
		}
		engine.Log.Infof("locked %d packages", len(resolved.Packages))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(generateLockfileCmd)
}
