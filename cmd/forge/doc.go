package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vikramraodp/forge/internal/core"
)

var docCmd = &cobra.Command{
	Use:   "doc",
	Short: "Build documentation for the selected packages",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := core.DocOptions{CommonOptions: commonOptions(), Open: viper.GetBool("open")}
		report, indexPath, err := engine.Doc(cmd.Context(), manifestPath(), opts)
		printReport(report)
		if err == nil {
			engine.Log.Infof("wrote %s", indexPath)
		}
		return err
	},
}

func init() {
	docCmd.Flags().Bool("open", false, "open the generated index in a browser")
	if err := viper.BindPFlag("open", docCmd.Flags().Lookup("open")); err != nil {
		panic(err)
	}
	RootCmd.AddCommand(docCmd)
}
