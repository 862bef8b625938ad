package main

import "github.com/spf13/cobra"

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Build release binaries and copy them into FORGE_HOME/bin",
	RunE: func(cmd *cobra.Command, args []string) error {
		installed, err := engine.Install(cmd.Context(), manifestPath(), commonOptions())
		if err != nil {
			return err
		}
		for _, p := range installed {
			engine.Log.Infof("installed %s", p)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(installCmd)
}
