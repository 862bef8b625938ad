package main

import (
	"github.com/spf13/cobra"

	"github.com/vikramraodp/forge/internal/core"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Re-resolve dependencies and rewrite forge.lock",
	RunE: func(cmd *cobra.Command, args []string) error {
		names, _ := cmd.Flags().GetStringSlice("packages")
		resolved, err := engine.Update(cmd.Context(), manifestPath(), core.UpdateOptions{Package: names})
		if err != nil {
			return err
		}
		engine.Log.Infof("updated %d packages", len(resolved.Packages))
		return nil
	},
}

func init() {
	updateCmd.Flags().StringSlice("packages", nil, "update only the named package(s); repeatable")
	RootCmd.AddCommand(updateCmd)
}
