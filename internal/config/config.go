// Package config loads the process-wide configuration object: home
// directories, network retry policy, and the offline/frozen/locked
// switches that gate the resolver and source layer. Flags bind into a
// *viper.Viper, a TOML config file is read if present, and environment
// variables override both, all collapsed into a single Config value the
// rest of the program only ever reads.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Net holds the network retry policy for Source errors.
type Net struct {
	Retry   int
	Offline bool
}

// Config is the process-wide configuration object. It is built once at
// startup and passed down explicitly; nothing in this project reads
// viper's global singleton after Load returns.
type Config struct {
	Home      string // FORGE_HOME: downloaded sources, registry index, git checkouts
	TargetDir string // FORGE_TARGET_DIR, or <manifest dir>/target
	Net       Net

	Frozen bool // forbid any lockfile or manifest change
	Locked bool // forbid lockfile changes, error instead of re-resolving
	Jobs   int  // 0 means "derive from GOMAXPROCS/NumCPU"

	Flags string // FORGEFLAGS, appended to every compiler invocation
}

// Load builds a Config from persistent flags already bound to v; the
// caller's cobra command binds its flags via v.BindPFlags before calling
// Load.
func Load(v *viper.Viper) (Config, error) {
	v.SetEnvPrefix("FORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	home := v.GetString("home")
	if home == "" {
		home = os.Getenv("FORGE_HOME")
	}
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return Config{}, err
		}
		home = filepath.Join(userHome, ".forge")
	}

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(home)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	cfg := Config{
		Home:      home,
		TargetDir: v.GetString("target-dir"),
		Net: Net{
			Retry:   v.GetInt("net.retry"),
			Offline: v.GetBool("offline"),
		},
		Frozen: v.GetBool("frozen"),
		Locked: v.GetBool("locked"),
		Jobs:   v.GetInt("jobs"),
		Flags:  os.Getenv("FORGEFLAGS"),
	}
	if cfg.Frozen {
		cfg.Locked = true
		cfg.Net.Offline = true
	}
	return cfg, nil
}

// TargetDirFor resolves the target directory for a manifest rooted at
// manifestDir, honoring an explicit override before falling back to the
// manifest-relative default.
func (c Config) TargetDirFor(manifestDir string) string {
	if c.TargetDir != "" {
		return c.TargetDir
	}
	return filepath.Join(manifestDir, "target")
}
