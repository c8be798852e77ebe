package radio

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wifiprov/internal/logging"
	"github.com/muurk/wifiprov/internal/provision"
)

// Messages reported to the UI for classified nmcli failures.
const (
	MsgAuthFailed      = "authentication failed"
	MsgNetworkNotFound = "network not found"
	MsgNotConnected    = "connection not established"
)

// NMCLIConfig configures the NetworkManager adapter.
type NMCLIConfig struct {
	// Binary is the nmcli executable. Defaults to "nmcli".
	Binary string
	// Interface is the wireless interface, e.g. "wlan0".
	Interface string
	// Hotspot is the NetworkManager connection that serves the setup
	// access point. Empty disables hotspot handling.
	Hotspot string
	// HotspotSettle is how long to wait after taking the hotspot down
	// before scanning for the target network.
	HotspotSettle time.Duration
	// RestoreHotspot brings the hotspot back after a failed connect so the
	// UI can reach the device again.
	RestoreHotspot bool
}

// NMCLI drives NetworkManager through its command line client.
type NMCLI struct {
	cfg    NMCLIConfig
	runner CommandRunner

	// LookupIP resolves the interface address after connecting.
	LookupIP func(iface string) (string, error)
}

var (
	_ provision.Radio = (*NMCLI)(nil)
	_ LinkReporter    = (*NMCLI)(nil)
)

// NewNMCLI creates a NetworkManager adapter. A nil runner uses ExecRunner.
func NewNMCLI(cfg NMCLIConfig, runner CommandRunner) *NMCLI {
	if cfg.Binary == "" {
		cfg.Binary = "nmcli"
	}
	if cfg.Interface == "" {
		cfg.Interface = "wlan0"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &NMCLI{
		cfg:    cfg,
		runner: runner,
		LookupIP: func(iface string) (string, error) {
			ip, err := InterfaceIPv4(iface)
			if err != nil {
				return HostIPv4()
			}
			return ip, nil
		},
	}
}

// Scan rescans and lists visible networks.
func (n *NMCLI) Scan(ctx context.Context) ([]provision.NetworkInfo, error) {
	out, err := n.run(ctx, "-t", "-f", "SSID,SECURITY,SIGNAL", "dev", "wifi", "list", "ifname", n.cfg.Interface, "--rescan", "yes")
	if err != nil {
		return nil, err
	}
	return ParseWifiList(out), nil
}

// Connect joins req.SSID, creating a connection profile when none exists.
func (n *NMCLI) Connect(ctx context.Context, req provision.ConnectRequest) (provision.ConnectResult, error) {
	if n.cfg.Hotspot != "" {
		if _, err := n.run(ctx, "con", "down", n.cfg.Hotspot); err != nil {
			logging.Debug("Hotspot was not active", zap.String("hotspot", n.cfg.Hotspot), zap.Error(err))
		}
		if err := sleepCtx(ctx, n.cfg.HotspotSettle); err != nil {
			return provision.ConnectResult{}, err
		}
	}

	result, err := n.connect(ctx, req)
	if err != nil && n.cfg.Hotspot != "" && n.cfg.RestoreHotspot {
		// The caller's context may already be spent; restoring the AP must still happen.
		restoreCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if rerr := n.HotspotUp(restoreCtx); rerr != nil {
			logging.Warn("Failed to restore hotspot", zap.String("hotspot", n.cfg.Hotspot), zap.Error(rerr))
		}
	}
	return result, err
}

func (n *NMCLI) connect(ctx context.Context, req provision.ConnectRequest) (provision.ConnectResult, error) {
	exists, err := n.profileExists(ctx, req.SSID)
	if err != nil {
		return provision.ConnectResult{}, err
	}

	created := false
	switch {
	case !exists:
		args := []string{"con", "add", "type", "wifi", "con-name", req.SSID, "ifname", n.cfg.Interface, "ssid", req.SSID}
		if req.Password != "" {
			args = append(args, "wifi-sec.key-mgmt", "wpa-psk", "wifi-sec.psk", req.Password)
		}
		if _, err := n.run(ctx, args...); err != nil {
			return provision.ConnectResult{}, err
		}
		created = true
	case req.Password != "":
		if _, err := n.run(ctx, "con", "modify", req.SSID, "wifi-sec.key-mgmt", "wpa-psk", "wifi-sec.psk", req.Password); err != nil {
			return provision.ConnectResult{}, err
		}
	}

	if _, err := n.run(ctx, "con", "up", req.SSID); err != nil {
		if created {
			n.deleteProfile(req.SSID)
		}
		return provision.ConnectResult{}, err
	}

	out, err := n.run(ctx, "-t", "-f", "TYPE,STATE", "dev")
	if err != nil {
		return provision.ConnectResult{}, err
	}
	if !wifiConnected(out) {
		return provision.ConnectResult{}, errors.New(MsgNotConnected)
	}
	// A device still serving the hotspot also reports wifi:connected.
	ap, err := n.hotspotActive(ctx)
	if err != nil {
		return provision.ConnectResult{}, err
	}
	if ap {
		return provision.ConnectResult{}, errors.New(MsgNotConnected)
	}

	ip, err := n.LookupIP(n.cfg.Interface)
	if err != nil {
		logging.Warn("Connected but no address found", zap.String("interface", n.cfg.Interface), zap.Error(err))
	}
	return provision.ConnectResult{Success: true, IP: ip}, nil
}

// HotspotUp activates the setup access point connection.
func (n *NMCLI) HotspotUp(ctx context.Context) error {
	if n.cfg.Hotspot == "" {
		return errors.New("no hotspot connection configured")
	}
	_, err := n.run(ctx, "con", "up", n.cfg.Hotspot)
	return err
}

// HotspotDown deactivates the setup access point connection.
func (n *NMCLI) HotspotDown(ctx context.Context) error {
	if n.cfg.Hotspot == "" {
		return errors.New("no hotspot connection configured")
	}
	_, err := n.run(ctx, "con", "down", n.cfg.Hotspot)
	return err
}

// LinkState reports AP mode when the hotspot connection is active, otherwise
// whether the wireless device is connected.
func (n *NMCLI) LinkState(ctx context.Context) (LinkState, error) {
	state := LinkState{Mode: ModeUnknown, Interface: n.cfg.Interface}

	ap, err := n.hotspotActive(ctx)
	if err != nil {
		return state, err
	}
	if ap {
		state.Mode = ModeAP
		state.IP, _ = n.LookupIP(n.cfg.Interface)
		return state, nil
	}

	devs, err := n.run(ctx, "-t", "-f", "DEVICE,TYPE,STATE,CONNECTION", "dev")
	if err != nil {
		return state, err
	}
	state.Mode = ModeDisconnected
	for _, fields := range terseLines(devs) {
		if len(fields) < 4 || fields[1] != "wifi" {
			continue
		}
		if n.cfg.Interface != "" && fields[0] != n.cfg.Interface {
			continue
		}
		state.Interface = fields[0]
		if fields[2] == "connected" {
			state.Mode = ModeConnected
			state.SSID = fields[3]
			state.IP, _ = n.LookupIP(fields[0])
		}
		break
	}
	return state, nil
}

// hotspotActive reports whether the hotspot connection is among the active
// connections. It is always false when no hotspot is configured.
func (n *NMCLI) hotspotActive(ctx context.Context) (bool, error) {
	if n.cfg.Hotspot == "" {
		return false, nil
	}
	active, err := n.run(ctx, "-t", "-f", "NAME,TYPE,DEVICE", "con", "show", "--active")
	if err != nil {
		return false, err
	}
	for _, fields := range terseLines(active) {
		if len(fields) >= 1 && fields[0] == n.cfg.Hotspot {
			return true, nil
		}
	}
	return false, nil
}

func (n *NMCLI) profileExists(ctx context.Context, name string) (bool, error) {
	out, err := n.run(ctx, "-t", "-f", "NAME", "con", "show")
	if err != nil {
		return false, err
	}
	for _, fields := range terseLines(out) {
		if len(fields) > 0 && fields[0] == name {
			return true, nil
		}
	}
	return false, nil
}

func (n *NMCLI) deleteProfile(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := n.run(ctx, "con", "delete", name); err != nil {
		logging.Debug("Failed to delete connection profile", zap.String("name", name), zap.Error(err))
	}
}

func (n *NMCLI) run(ctx context.Context, args ...string) ([]byte, error) {
	stdout, stderr, err := n.runner.Run(ctx, n.cfg.Binary, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		cerr := classifyNMCLIError(args, stderr, err)
		logging.Warn("nmcli command failed",
			zap.String("args", strings.Join(redactArgs(args), " ")),
			zap.String("output", cerr.Output),
			zap.Error(err),
		)
		return nil, cerr
	}
	return stdout, nil
}

// CommandError is a failed nmcli invocation. Error returns a short message
// for the UI; Output keeps what nmcli printed.
type CommandError struct {
	Message string
	Output  string
	Err     error
}

func (e *CommandError) Error() string { return e.Message }

func (e *CommandError) Unwrap() error { return e.Err }

// classifyNMCLIError turns nmcli's stderr into a message fit for the UI.
func classifyNMCLIError(args []string, stderr []byte, err error) *CommandError {
	out := strings.TrimSpace(string(stderr))
	lower := strings.ToLower(out)
	cerr := &CommandError{Output: out, Err: err}

	switch {
	case strings.Contains(lower, "secrets were required"),
		strings.Contains(lower, "no secrets"),
		strings.Contains(lower, "psk: property is invalid"),
		strings.Contains(lower, "authentication"),
		strings.Contains(lower, "4-way handshake"):
		cerr.Message = MsgAuthFailed
	case strings.Contains(lower, "no network with ssid"),
		strings.Contains(lower, "could not be found"):
		cerr.Message = MsgNetworkNotFound
	default:
		verb := "nmcli " + strings.Join(firstNonFlags(args, 2), " ")
		if out != "" {
			cerr.Message = fmt.Sprintf("%s failed: %s", verb, strings.TrimPrefix(firstLine(out), "Error: "))
		} else {
			cerr.Message = fmt.Sprintf("%s failed: %v", verb, err)
		}
	}
	return cerr
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func firstNonFlags(args []string, n int) []string {
	var out []string
	skip := false
	for _, a := range args {
		if skip {
			skip = false
			continue
		}
		if strings.HasPrefix(a, "-") {
			skip = a == "-f" || a == "--fields"
			continue
		}
		out = append(out, a)
		if len(out) == n {
			break
		}
	}
	return out
}

// ParseWifiList parses `nmcli -t -f SSID,SECURITY,SIGNAL dev wifi list`.
// Hidden networks (empty SSID) are skipped; deduplication is left to the
// session.
func ParseWifiList(out []byte) []provision.NetworkInfo {
	var networks []provision.NetworkInfo
	for _, fields := range terseLines(out) {
		if len(fields) == 0 || fields[0] == "" {
			continue
		}
		n := provision.NetworkInfo{SSID: fields[0], Security: provision.SecurityOpen}
		if len(fields) > 1 {
			n.Security = provision.ParseSecurity(fields[1])
		}
		if len(fields) > 2 {
			if sig, err := strconv.Atoi(fields[2]); err == nil {
				n.Signal = clampSignal(sig)
			}
		}
		networks = append(networks, n)
	}
	return networks
}

func wifiConnected(out []byte) bool {
	for _, fields := range terseLines(out) {
		if len(fields) >= 2 && fields[0] == "wifi" && fields[1] == "connected" {
			return true
		}
	}
	return false
}

// terseLines splits nmcli terse output into fields. Colons inside values
// are escaped as `\:` and backslashes as `\\`.
func terseLines(out []byte) [][]string {
	var lines [][]string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, splitTerse(line))
	}
	return lines
}

func splitTerse(line string) []string {
	var (
		fields []string
		cur    strings.Builder
	)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\\' && i+1 < len(line):
			i++
			cur.WriteByte(line[i])
		case c == ':':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(fields, cur.String())
}

func clampSignal(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
