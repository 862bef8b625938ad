package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var readManifestCmd = &cobra.Command{
	Use:   "read-manifest",
	Short: "Print the resolved manifest for the current package as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := manifestPath()
		if path == "" {
			path = "."
		}
		m, err := engine.ReadManifest(path)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(m.Summary, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(out))
		return nil
	},
}

var verifyProjectCmd = &cobra.Command{
	Use:   "verify-project",
	Short: "Check that the manifest/workspace is well-formed",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := manifestPath()
		if path == "" {
			path = "."
		}
		ok, reason := engine.VerifyProject(path)
		if ok {
			cmd.Println(`{"success":"true"}`)
			return nil
		}
		out, err := json.Marshal(map[string]string{"invalid": reason})
		if err != nil {
			return err
		}
		cmd.Println(string(out))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(readManifestCmd)
	RootCmd.AddCommand(verifyProjectCmd)
}
