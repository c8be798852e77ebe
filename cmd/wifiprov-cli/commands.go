package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/wifiprov/internal/client"
	"github.com/muurk/wifiprov/internal/discovery"
	"github.com/muurk/wifiprov/internal/provision"
	"github.com/muurk/wifiprov/internal/ui"
)

// Common flags
var (
	portalAddr    string
	timeout       time.Duration
	outputFormat  string
	discoverWait  time.Duration
	fresh         bool
	password      string
	passwordStdin bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&portalAddr, "portal", "", "Portal address, e.g. 192.168.4.1 or ws://host:8080/ws (skips discovery)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", client.DefaultTimeout, "Request timeout")
	rootCmd.PersistentFlags().DurationVar(&discoverWait, "discover-timeout", discovery.DefaultScanTimeout, "mDNS discovery timeout")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "text", "Output format (text, json)")

	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(statusCmd)
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find portals on the local network",
	Long: `Browse mDNS for wifiprov portals and list every portal that answers
within --discover-timeout.`,
	Example: `  wifiprov-cli discover
  wifiprov-cli discover --discover-timeout 10s`,
	RunE: runDiscover,
}

func runDiscover(cmd *cobra.Command, args []string) error {
	p := ui.NewPrinter(os.Stdout)
	scanner := discovery.NewScanner()
	scanner.Timeout = discoverWait

	portals, err := ui.RunWithSpinner(cmd.Context(), os.Stdout, "Looking for portals...", scanner.Scan)
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}

	if outputFormat == "json" {
		return printJSON(portals)
	}

	if len(portals) == 0 {
		p.Println(ui.NewFailureResult("No portals found", nil, []string{
			"Check that this machine is on the portal's hotspot or network",
			"Some networks block mDNS; pass --portal with the portal address",
			"Try a longer --discover-timeout",
		}).SetWidth(p.Width()).Render())
		return nil
	}

	for _, portal := range portals {
		details := []ui.Field{
			{Key: "Channel", Value: portal.WebSocketURL()},
			{Key: "Host", Value: portal.Hostname},
		}
		if portal.Version != "" {
			details = append(details, ui.Field{Key: "Version", Value: portal.Version})
		}
		p.PrintSuccess(portal.Instance, details...)
	}
	return nil
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List the networks the portal can see",
	Long: `Ask the portal for nearby networks. By default the portal's network
list is requested (get_networks); --fresh asks for a new scan (scan_wifi).
Duplicate SSIDs are merged and the strongest signal is listed first.`,
	Example: `  wifiprov-cli scan
  wifiprov-cli scan --portal 192.168.4.1 --fresh
  wifiprov-cli scan --format json`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&fresh, "fresh", false, "Request a fresh scan (scan_wifi)")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, url, err := openPortal(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	request := c.Networks
	if fresh {
		request = c.Scan
	}

	p := ui.NewPrinter(os.Stdout)
	if outputFormat != "json" {
		p.PrintHeader("Wi-Fi scan", "wifiprov-cli scan", ui.Field{Key: "Portal", Value: url})
	}

	networks, err := ui.RunWithSpinner(ctx, os.Stdout, "Scanning for networks...", withTimeout(request))
	if err != nil {
		if outputFormat == "json" {
			return err
		}
		p.PrintError("Scan failed", err)
		return errSilent(err)
	}

	if outputFormat == "json" {
		return printJSON(networks)
	}
	p.PrintNetworks(networks)
	return nil
}

var connectCmd = &cobra.Command{
	Use:   "connect SSID",
	Short: "Ask the portal to join a network",
	Long: `Send the credentials of a network to the portal and wait for the result.

The password is prompted for (input hidden) unless --password or
--password-stdin is given. Leave it empty for open networks.`,
	Example: `  wifiprov-cli connect HomeNetwork
  wifiprov-cli connect CoffeeShop --password ""
  echo "s3cret" | wifiprov-cli connect HomeNetwork --password-stdin`,
	Args: cobra.ExactArgs(1),
	RunE: runConnect,
}

func init() {
	connectCmd.Flags().StringVar(&password, "password", "", "Network password (visible in shell history)")
	connectCmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
}

func runConnect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	req := provision.ConnectRequest{SSID: args[0]}

	switch {
	case cmd.Flags().Changed("password"):
		req.Password = password
	case passwordStdin:
		pw, err := ui.PromptPassword(os.Stdin, os.Stderr, req.SSID)
		if err != nil {
			return err
		}
		req.Password = pw
	default:
		pw, err := ui.PromptPassword(os.Stdin, os.Stdout, req.SSID)
		if err != nil {
			return err
		}
		req.Password = pw
	}

	c, url, err := openPortal(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	p := ui.NewPrinter(os.Stdout)
	if outputFormat != "json" {
		p.PrintHeader("Wi-Fi connect", "wifiprov-cli connect",
			ui.Field{Key: "Portal", Value: url},
			ui.Field{Key: "SSID", Value: req.SSID},
		)
	}

	connect := func(ctx context.Context) (string, error) { return c.Connect(ctx, req) }
	ip, err := ui.RunWithSpinner(ctx, os.Stdout, fmt.Sprintf("Connecting to %s...", req.SSID), withTimeout(connect))

	if outputFormat == "json" {
		res := provision.ConnectResult{Success: err == nil, IP: ip}
		if err != nil {
			res.Error = provision.WireMessage(err)
		}
		if perr := printJSON(res); perr != nil {
			return perr
		}
		return errSilent(err)
	}

	if err != nil {
		p.PrintError("Could not connect to "+req.SSID, err)
		return errSilent(err)
	}
	p.PrintSuccess("Connected to "+req.SSID, ui.Field{Key: "IP address", Value: ip})
	p.Println("  The portal has left its hotspot; reconnect this machine to " + req.SSID + ".")
	return nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the portal's session and link state",
	RunE: func(cmd *cobra.Command, args []string) error {
		url, err := resolvePortal(cmd.Context())
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		st, err := client.New(url).Status(ctx)
		if err != nil {
			return err
		}
		if outputFormat == "json" {
			return printJSON(st)
		}

		details := []ui.Field{
			{Key: "Phase", Value: st.Phase.String()},
			{Key: "Clients", Value: fmt.Sprint(st.Clients)},
			{Key: "Version", Value: st.Version},
		}
		if st.PendingOperation != "" {
			details = append(details, ui.Field{Key: "Pending", Value: fmt.Sprintf("%s #%d", st.PendingOperation, st.PendingRequestID)})
		}
		if st.Link != nil {
			details = append(details, ui.Field{Key: "Link", Value: st.Link.Mode})
			if st.Link.SSID != "" {
				details = append(details, ui.Field{Key: "SSID", Value: st.Link.SSID})
			}
			if st.Link.IP != "" {
				details = append(details, ui.Field{Key: "IP", Value: st.Link.IP})
			}
		}
		ui.NewPrinter(os.Stdout).PrintSuccess(url, details...)
		return nil
	},
}

// resolvePortal returns the channel URL from --portal or mDNS discovery.
func resolvePortal(ctx context.Context) (string, error) {
	if portalAddr != "" {
		return client.PortalURL(portalAddr)
	}
	scanner := discovery.NewScanner()
	scanner.Timeout = discoverWait
	portal, err := scanner.First(ctx)
	if err != nil {
		return "", fmt.Errorf("%w; pass --portal to skip discovery", err)
	}
	return portal.WebSocketURL(), nil
}

func openPortal(ctx context.Context) (*client.Client, string, error) {
	url, err := resolvePortal(ctx)
	if err != nil {
		return nil, "", err
	}
	c := client.New(url)
	c.Timeout = timeout
	if err := c.Open(ctx); err != nil {
		return nil, url, err
	}
	return c, url, nil
}

func withTimeout[T any](fn func(context.Context) (T, error)) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return fn(ctx)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// silentError marks a failure that has already been rendered.
type silentError struct{ err error }

func (e silentError) Error() string { return e.err.Error() }
func (e silentError) Unwrap() error { return e.err }

func errSilent(err error) error {
	if err == nil {
		return nil
	}
	return silentError{err}
}
