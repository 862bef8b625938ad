package main

import "github.com/spf13/cobra"

var pkgidCmd = &cobra.Command{
	Use:   "pkgid [name]",
	Short: "Print a package's fully qualified id",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		id, err := engine.Pkgid(cmd.Context(), manifestPath(), name)
		if err != nil {
			return err
		}
		cmd.Println(id)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(pkgidCmd)
}
