package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/vikramraodp/forge/internal/config"
	"github.com/vikramraodp/forge/internal/core"
	"github.com/vikramraodp/forge/internal/metrics"
	"github.com/vikramraodp/forge/internal/ui"
)

var engine *core.Engine

// RootCmd is the base command; every subcommand hangs off it.
var RootCmd = &cobra.Command{
	Use:   "forge",
	Short: "A package manager and build orchestrator",
	Long: `
forge resolves dependencies, builds, tests, and documents a workspace of
packages described by forge.toml manifests.
`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return buildEngine()
	},
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().String("manifest-path", "", "path to forge.toml (default: forge.toml in the working directory)")
	RootCmd.PersistentFlags().StringP("package", "p", "", "selects one workspace member")
	RootCmd.PersistentFlags().Bool("workspace", false, "apply to every workspace member")
	RootCmd.PersistentFlags().Bool("all", false, "alias for --workspace")
	RootCmd.PersistentFlags().StringSlice("exclude", nil, "exclude a member when --workspace is set")
	RootCmd.PersistentFlags().IntP("jobs", "j", 0, "number of parallel build jobs; 0 derives from CPU count")
	RootCmd.PersistentFlags().Bool("release", false, "build in the release profile")
	RootCmd.PersistentFlags().String("target", "", "target triple; empty means host")
	RootCmd.PersistentFlags().String("target-dir", "", "override the output directory")
	RootCmd.PersistentFlags().StringSlice("features", nil, "features to activate")
	RootCmd.PersistentFlags().Bool("no-default-features", false, "do not activate the default feature")
	RootCmd.PersistentFlags().Bool("all-features", false, "activate every feature")
	RootCmd.PersistentFlags().Bool("frozen", false, "forbid any lockfile or manifest change")
	RootCmd.PersistentFlags().Bool("locked", false, "forbid lockfile changes; error instead of re-resolving")
	RootCmd.PersistentFlags().Bool("offline", false, "never touch the network")
	RootCmd.PersistentFlags().String("message-format", "human", "human or json")

	if err := viper.BindPFlags(RootCmd.PersistentFlags()); err != nil {
		panic(err)
	}
}

func buildEngine() error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	if viper.GetBool("offline") {
		cfg.Net.Offline = true
	}

	var zlog *zap.Logger
	if messageFormat() == "json" {
		zlog, err = zap.NewProduction()
		if err != nil {
			return err
		}
	}
	log := ui.New(os.Stdout, zlog, messageFormat() != "json")
	rec := metrics.New(os.Getenv("FORGE_METRICS_PATH"))

	engine = core.New(cfg, log, rec)
	return nil
}

func messageFormat() string {
	return strings.ToLower(viper.GetString("message-format"))
}

func manifestPath() string {
	return viper.GetString("manifest-path")
}

func commonOptions() core.CommonOptions {
	workspace := viper.GetBool("workspace") || viper.GetBool("all")
	return core.CommonOptions{
		Package:           viper.GetString("package"),
		Workspace:         workspace,
		Exclude:           viper.GetStringSlice("exclude"),
		Jobs:              viper.GetInt("jobs"),
		Release:           viper.GetBool("release"),
		Target:            viper.GetString("target"),
		TargetDir:         viper.GetString("target-dir"),
		Features:          viper.GetStringSlice("features"),
		NoDefaultFeatures: viper.GetBool("no-default-features"),
		AllFeatures:       viper.GetBool("all-features"),
		MessageFormatJSON: messageFormat() == "json",
	}
}
