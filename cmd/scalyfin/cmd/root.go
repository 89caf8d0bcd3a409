// Package cmd implements the CLI commands for scalyfin.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/scalyfin/scalyfin/internal/config"
	"github.com/scalyfin/scalyfin/internal/version"
)

// cfgFile holds the config file path from the CLI flag.
var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "scalyfin",
	Short:   "Watch-folder video transcode daemon",
	Version: version.Short(),
	Long: `scalyfin watches a directory tree for incoming video files, waits until
each file has finished being written, and transcodes it into delivery-ready
outputs in a mirrored output tree.

4K sources produce both a 4K artifact and a 1080p derivative; everything
else produces a single 1080p-class output. Hardware encoding (AMD VAAPI,
Rockchip RKMPP) is used when configured, with automatic software fallback.`,
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., /etc/scalyfin, $HOME/.scalyfin)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")
}

// loadConfig reads configuration and applies explicit CLI flag overrides.
// Flag values only win when the flag was actually set, preserving the
// priority: CLI flag > env var > config file > default.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	overrideIfSet(cmd.Flags(), "log-level", &cfg.Logging.Level)
	overrideIfSet(cmd.Flags(), "log-format", &cfg.Logging.Format)
	return cfg, nil
}

// overrideIfSet copies a flag value only when the flag was explicitly given
// on the command line.
func overrideIfSet(flags *pflag.FlagSet, name string, dst *string) {
	if f := flags.Lookup(name); f != nil && f.Changed {
		*dst = f.Value.String()
	}
}
