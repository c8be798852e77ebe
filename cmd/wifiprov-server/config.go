package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/wifiprov/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var forceInit bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write the built-in defaults to a configuration file.

The file is written to --config, or to the user configuration directory
when --config is not set. An existing file is left alone unless --force
is given.`,
	Example: `  wifiprov-server config init
  sudo wifiprov-server config init --config /etc/wifiprov/config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			p, err := config.GetConfigPath()
			if err != nil {
				return err
			}
			path = p
		}
		if _, err := os.Stat(path); err == nil && !forceInit {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.Save(config.Default(), path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after applying the config file and WIFIPROV_*
environment variables. Secrets are masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := config.Load(configPath, nil)
		if err != nil {
			return err
		}
		data, err := config.Marshal(cfg.Redacted())
		if err != nil {
			return err
		}
		if path != "" {
			fmt.Printf("# %s\n", path)
		} else {
			fmt.Println("# built-in defaults")
		}
		fmt.Print(string(data))
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
