package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/processkit/trackersync/internal/config"
	"github.com/processkit/trackersync/internal/ui"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "advanced",
	Short:   "Manage psync configuration",
	// Skip the root config load so a broken file can be replaced.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Write the default configuration as TOML to ./.psync/config.toml, or to
~/.config/psync/config.toml with --global.

Secrets are better kept in the environment: PSYNC_TRACKER_TOKEN and
ANTHROPIC_API_KEY.`,
	Run: func(cmd *cobra.Command, args []string) {
		global, _ := cmd.Flags().GetBool("global")
		force, _ := cmd.Flags().GetBool("force")

		path := config.ProjectConfigPath()
		if global {
			path = config.GlobalConfigPath()
		}

		if err := config.WriteDefault(path, force); err != nil {
			exitf("Error: %v", err)
		}
		fmt.Printf("%s Wrote %s\n", ui.RenderPass("✓"), path)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Run: func(cmd *cobra.Command, args []string) {
		loaded, err := config.Load()
		if err != nil {
			exitf("Error: %v", err)
		}
		if loaded.Tracker.Token != "" {
			loaded.Tracker.Token = "********"
		}
		if loaded.Condense.APIKey != "" {
			loaded.Condense.APIKey = "********"
		}
		if err := toml.NewEncoder(os.Stdout).Encode(loaded); err != nil {
			exitf("Error: %v", err)
		}
	},
}

func init() {
	configInitCmd.Flags().Bool("global", false, "write the per-user config instead of the project config")
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")

	configCmd.AddCommand(configInitCmd, configShowCmd)
}
