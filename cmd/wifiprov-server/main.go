// Wifiprov-server is the Wi-Fi provisioning portal.
//
// It serves a WebSocket channel on which a browser or the wifiprov-cli client
// lists nearby networks and asks the device to join one. Requests are
// single-flight: while a scan or connection attempt is running, further
// requests are rejected as busy.
//
// Usage:
//
//	wifiprov-server serve [flags]
//
// See 'wifiprov-server serve --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/wifiprov/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var configPath string

var rootCmd = &cobra.Command{
	Use:   "wifiprov-server",
	Short: "Wi-Fi provisioning portal",
	Long: `A provisioning portal for headless devices.

Clients connect to the WebSocket channel, ask for the list of nearby
networks and send the credentials of the network to join. The radio is
driven through NetworkManager (nmcli), wpa_supplicant (D-Bus) or a mock
backend for development.

Use 'wifiprov-cli' to talk to a running portal from a terminal.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: user config dir, then /etc/wifiprov/config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Get()
		fmt.Printf("wifiprov-server %s (commit: %s, %s)\n", info.Version, info.Commit, info.GoVersion)
	},
}
