package main

import "github.com/spf13/cobra"

var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Print workspace and dependency metadata as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := engine.MetadataJSON(cmd.Context(), manifestPath())
		if err != nil {
			return err
		}
		cmd.Println(string(out))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(metadataCmd)
}
