// Wifiprov-cli talks to a wifiprov portal from a terminal.
//
// It finds portals over mDNS, lists the networks a portal can see and asks
// it to join one.
//
// Usage:
//
//	wifiprov-cli [command] [flags]
//
// See 'wifiprov-cli --help' for available commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/muurk/wifiprov/internal/logging"
	"github.com/muurk/wifiprov/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		var shown silentError
		if !errors.As(err, &shown) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wifiprov-cli",
	Short: "Wi-Fi provisioning client",
	Long: `A terminal client for wifiprov portals.

Without --portal, the first portal that answers on mDNS is used.
Set WIFIPROV_LOG_LEVEL=debug to see protocol traffic.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Silent unless WIFIPROV_LOG_LEVEL is set, so the UI output stays clean.
		return logging.InitializeFromEnv()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("wifiprov-cli %s (commit: %s)\n", version.Version, version.Commit)
	},
}
