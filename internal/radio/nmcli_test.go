package radio

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/wifiprov/internal/provision"
)

type response struct {
	stdout string
	stderr string
	err    error
}

// scriptedRunner answers commands by matching the joined argument list
// against prefixes.
type scriptedRunner struct {
	mu     sync.Mutex
	script map[string]response
	calls  []string
	onCall func(args string)
}

func (r *scriptedRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	joined := strings.Join(args, " ")

	r.mu.Lock()
	r.calls = append(r.calls, joined)
	onCall := r.onCall
	var (
		best    response
		bestLen = -1
	)
	for prefix, resp := range r.script {
		if strings.HasPrefix(joined, prefix) && len(prefix) > bestLen {
			best, bestLen = resp, len(prefix)
		}
	}
	r.mu.Unlock()

	if onCall != nil {
		onCall(joined)
	}
	return []byte(best.stdout), []byte(best.stderr), best.err
}

func (r *scriptedRunner) called(prefix string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

func newTestNMCLI(cfg NMCLIConfig, runner *scriptedRunner) *NMCLI {
	n := NewNMCLI(cfg, runner)
	n.LookupIP = func(string) (string, error) { return "192.168.1.42", nil }
	return n
}

var exitErr = errors.New("exit status 4")

func TestParseWifiList(t *testing.T) {
	out := []byte(strings.Join([]string{
		"Home:WPA2:80",
		"Home:WPA2:40",
		`Cafe\:Guest:--:55`,
		":WPA2:90",
		"Lab:WPA1 WPA2:120",
		`Back\\slash::10`,
		"",
	}, "\n"))

	got := ParseWifiList(out)
	assert.Equal(t, []provision.NetworkInfo{
		{SSID: "Home", Security: provision.SecurityWPA2, Signal: 80},
		{SSID: "Home", Security: provision.SecurityWPA2, Signal: 40},
		{SSID: "Cafe:Guest", Security: provision.SecurityOpen, Signal: 55},
		{SSID: "Lab", Security: provision.SecurityWPA2, Signal: 100},
		{SSID: `Back\slash`, Security: provision.SecurityOpen, Signal: 10},
	}, got)
}

func TestSplitTerse(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"a:b:c", []string{"a", "b", "c"}},
		{`a\:b:c`, []string{"a:b", "c"}},
		{"a::c", []string{"a", "", "c"}},
		{"a:", []string{"a", ""}},
		{`trailing\`, []string{`trailing\`}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, splitTerse(tt.in), tt.in)
	}
}

func TestNMCLIScan(t *testing.T) {
	runner := &scriptedRunner{script: map[string]response{
		"-t -f SSID,SECURITY,SIGNAL dev wifi list": {stdout: "Home:WPA2:70\nCafe::50\n"},
	}}
	n := newTestNMCLI(NMCLIConfig{Interface: "wlan0"}, runner)

	nets, err := n.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, nets, 2)
	assert.True(t, runner.called("-t -f SSID,SECURITY,SIGNAL dev wifi list ifname wlan0 --rescan yes"))
}

func TestNMCLIScanFailure(t *testing.T) {
	runner := &scriptedRunner{script: map[string]response{
		"-t -f SSID": {stderr: "Error: Device 'wlan0' not found.\n", err: exitErr},
	}}
	n := newTestNMCLI(NMCLIConfig{}, runner)

	_, err := n.Scan(context.Background())
	require.Error(t, err)
	assert.Equal(t, "nmcli dev wifi failed: Device 'wlan0' not found.", err.Error())
	assert.ErrorIs(t, err, exitErr)
}

func TestNMCLIConnectCreatesProfile(t *testing.T) {
	runner := &scriptedRunner{script: map[string]response{
		"-t -f NAME con show":  {stdout: "hotspot\nOther\n"},
		"-t -f TYPE,STATE dev": {stdout: "ethernet:unavailable\nwifi:connected\n"},
	}}
	n := newTestNMCLI(NMCLIConfig{Interface: "wlan0", Hotspot: "hotspot"}, runner)

	res, err := n.Connect(context.Background(), provision.ConnectRequest{SSID: "Cafe", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, provision.ConnectResult{Success: true, IP: "192.168.1.42"}, res)

	assert.True(t, runner.called("con down hotspot"))
	assert.True(t, runner.called("con add type wifi con-name Cafe ifname wlan0 ssid Cafe wifi-sec.key-mgmt wpa-psk wifi-sec.psk secret"))
	assert.True(t, runner.called("con up Cafe"))
}

func TestNMCLIConnectOpenNetworkOmitsSecurity(t *testing.T) {
	runner := &scriptedRunner{script: map[string]response{
		"-t -f TYPE,STATE dev": {stdout: "wifi:connected\n"},
	}}
	n := newTestNMCLI(NMCLIConfig{}, runner)

	_, err := n.Connect(context.Background(), provision.ConnectRequest{SSID: "OpenNet"})
	require.NoError(t, err)

	assert.True(t, runner.called("con add type wifi con-name OpenNet ifname wlan0 ssid OpenNet"))
	assert.False(t, runner.called("con add type wifi con-name OpenNet ifname wlan0 ssid OpenNet wifi-sec"))
	assert.False(t, runner.called("con down"), "no hotspot configured")
}

func TestNMCLIConnectExistingProfileUpdatesPassword(t *testing.T) {
	runner := &scriptedRunner{script: map[string]response{
		"-t -f NAME con show":  {stdout: "Cafe\n"},
		"-t -f TYPE,STATE dev": {stdout: "wifi:connected\n"},
	}}
	n := newTestNMCLI(NMCLIConfig{}, runner)

	_, err := n.Connect(context.Background(), provision.ConnectRequest{SSID: "Cafe", Password: "new"})
	require.NoError(t, err)
	assert.False(t, runner.called("con add"))
	assert.True(t, runner.called("con modify Cafe wifi-sec.key-mgmt wpa-psk wifi-sec.psk new"))
}

func TestNMCLIConnectAuthFailure(t *testing.T) {
	runner := &scriptedRunner{script: map[string]response{
		"con up Cafe": {
			stderr: "Error: Connection activation failed: Secrets were required, but not provided.\n",
			err:    exitErr,
		},
	}}
	n := newTestNMCLI(NMCLIConfig{Hotspot: "hotspot", RestoreHotspot: true}, runner)

	_, err := n.Connect(context.Background(), provision.ConnectRequest{SSID: "Cafe", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, MsgAuthFailed, err.Error())

	var cerr *CommandError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Output, "Secrets were required")

	assert.True(t, runner.called("con delete Cafe"), "new profile removed after failure")
	assert.True(t, runner.called("con up hotspot"), "hotspot restored")
}

func TestNMCLIConnectNetworkNotFound(t *testing.T) {
	runner := &scriptedRunner{script: map[string]response{
		"con up Gone": {stderr: "Error: No network with SSID 'Gone' found.\n", err: exitErr},
	}}
	n := newTestNMCLI(NMCLIConfig{}, runner)

	_, err := n.Connect(context.Background(), provision.ConnectRequest{SSID: "Gone"})
	require.Error(t, err)
	assert.Equal(t, MsgNetworkNotFound, err.Error())
}

func TestNMCLIConnectNotVerified(t *testing.T) {
	runner := &scriptedRunner{script: map[string]response{
		"-t -f TYPE,STATE dev": {stdout: "wifi:disconnected\n"},
	}}
	n := newTestNMCLI(NMCLIConfig{}, runner)

	_, err := n.Connect(context.Background(), provision.ConnectRequest{SSID: "Cafe"})
	require.Error(t, err)
	assert.Equal(t, MsgNotConnected, err.Error())
}

func TestNMCLIConnectHotspotStillActive(t *testing.T) {
	runner := &scriptedRunner{script: map[string]response{
		"-t -f TYPE,STATE dev":                     {stdout: "wifi:connected\n"},
		"-t -f NAME,TYPE,DEVICE con show --active": {stdout: "hotspot:802-11-wireless:wlan0\n"},
	}}
	n := newTestNMCLI(NMCLIConfig{Hotspot: "hotspot"}, runner)

	_, err := n.Connect(context.Background(), provision.ConnectRequest{SSID: "Cafe"})
	require.Error(t, err)
	assert.Equal(t, MsgNotConnected, err.Error())
}

func TestNMCLIConnectContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := &scriptedRunner{script: map[string]response{
		"con up": {err: exitErr},
	}}
	runner.onCall = func(args string) {
		if strings.HasPrefix(args, "con up") {
			cancel()
		}
	}
	n := newTestNMCLI(NMCLIConfig{}, runner)

	_, err := n.Connect(ctx, provision.ConnectRequest{SSID: "Cafe"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNMCLILinkState(t *testing.T) {
	t.Run("ap", func(t *testing.T) {
		runner := &scriptedRunner{script: map[string]response{
			"-t -f NAME,TYPE,DEVICE con show --active": {stdout: "hotspot:802-11-wireless:wlan0\n"},
		}}
		n := newTestNMCLI(NMCLIConfig{Hotspot: "hotspot"}, runner)
		st, err := n.LinkState(context.Background())
		require.NoError(t, err)
		assert.Equal(t, ModeAP, st.Mode)
	})

	t.Run("connected", func(t *testing.T) {
		runner := &scriptedRunner{script: map[string]response{
			"-t -f NAME,TYPE,DEVICE con show --active": {stdout: "Cafe:802-11-wireless:wlan0\n"},
			"-t -f DEVICE,TYPE,STATE,CONNECTION dev":   {stdout: "eth0:ethernet:unavailable:\nwlan0:wifi:connected:Cafe\n"},
		}}
		n := newTestNMCLI(NMCLIConfig{Hotspot: "hotspot"}, runner)
		st, err := n.LinkState(context.Background())
		require.NoError(t, err)
		assert.Equal(t, LinkState{Mode: ModeConnected, Interface: "wlan0", SSID: "Cafe", IP: "192.168.1.42"}, st)
	})

	t.Run("disconnected", func(t *testing.T) {
		runner := &scriptedRunner{script: map[string]response{
			"-t -f DEVICE,TYPE,STATE,CONNECTION dev": {stdout: "wlan0:wifi:disconnected:\n"},
		}}
		n := newTestNMCLI(NMCLIConfig{}, runner)
		st, err := n.LinkState(context.Background())
		require.NoError(t, err)
		assert.Equal(t, ModeDisconnected, st.Mode)
	})
}

func TestRedactArgs(t *testing.T) {
	got := redactArgs([]string{"con", "add", "wifi-sec.psk", "hunter2"})
	assert.Equal(t, []string{"con", "add", "wifi-sec.psk", "***"}, got)
}
