package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/thruflo/camloop/internal/config"
)

// Version is set at build time via ldflags.
var Version = "dev"

// configPath is shared by every subcommand.
var configPath string

var rootCmd = &cobra.Command{
	Use:   "camloop",
	Short: "Camera slideshow skill server for voice assistants with a screen",
	Long: `Camloop serves a voice assistant skill that shows a looping slideshow
of camera snapshots on the device screen. The device drives the loop by
calling back after every step; the server rebuilds each step from the
callback and stops the loop once its time is up.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("camloop version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFile, "path to config file")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig seeds unset environment variables from the env file next to
// path, then loads and validates the config.
func loadConfig(path string) (*config.Config, error) {
	envPath := filepath.Join(filepath.Dir(path), config.DefaultEnvFile)
	vars, err := config.LoadEnvFile(envPath)
	if err != nil {
		return nil, err
	}
	if err := config.SeedEnv(vars); err != nil {
		return nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
