package radio

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/wifiprov/internal/provision"
	"github.com/muurk/wifiprov/internal/radio/wpa"
)

type fakeSupplicant struct {
	mu       sync.Mutex
	bss      []wpa.BSS
	scanErr  error
	states   []string
	added    map[string]string
	removed  []dbus.ObjectPath
	selected dbus.ObjectPath
	saved    bool
}

func (f *fakeSupplicant) Scan(ctx context.Context) error { return f.scanErr }

func (f *fakeSupplicant) BSSs(ctx context.Context) ([]wpa.BSS, error) { return f.bss, nil }

func (f *fakeSupplicant) AddNetwork(ctx context.Context, ssid, psk string) (dbus.ObjectPath, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.added == nil {
		f.added = map[string]string{}
	}
	f.added[ssid] = psk
	return dbus.ObjectPath("/fi/w1/wpa_supplicant1/Interfaces/0/Networks/0"), nil
}

func (f *fakeSupplicant) SelectNetwork(ctx context.Context, path dbus.ObjectPath) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = path
	return nil
}

func (f *fakeSupplicant) RemoveNetwork(ctx context.Context, path dbus.ObjectPath) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, path)
	return nil
}

func (f *fakeSupplicant) SaveConfig(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = true
	return nil
}

// State replays states in order and then repeats the last one.
func (f *fakeSupplicant) State(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.states) == 0 {
		return "scanning", nil
	}
	s := f.states[0]
	if len(f.states) > 1 {
		f.states = f.states[1:]
	}
	return s, nil
}

func newTestWPA(sup *fakeSupplicant) *WPA {
	w := newWPA(WPAConfig{PollInterval: time.Millisecond}, sup)
	w.LookupIP = func(string) (string, error) { return "10.0.0.7", nil }
	return w
}

func TestWPAScan(t *testing.T) {
	sup := &fakeSupplicant{bss: []wpa.BSS{
		{SSID: "Home", Signal: -50, Privacy: true, RSN: []string{"wpa-psk"}},
		{SSID: "", Signal: -30},
		{SSID: "Cafe", Signal: -80},
	}}
	w := newTestWPA(sup)

	nets, err := w.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []provision.NetworkInfo{
		{SSID: "Home", Security: provision.SecurityWPA2, Signal: 100},
		{SSID: "Cafe", Security: provision.SecurityOpen, Signal: 40},
	}, nets)
}

func TestWPAConnectSuccess(t *testing.T) {
	sup := &fakeSupplicant{states: []string{"scanning", "associating", "4way_handshake", "completed"}}
	w := newTestWPA(sup)

	res, err := w.Connect(context.Background(), provision.ConnectRequest{SSID: "Cafe", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, provision.ConnectResult{Success: true, IP: "10.0.0.7"}, res)
	assert.Equal(t, "secret", sup.added["Cafe"])
	assert.NotEmpty(t, sup.selected)
	assert.True(t, sup.saved)
	assert.Empty(t, sup.removed)
}

func TestWPAConnectWrongPassword(t *testing.T) {
	sup := &fakeSupplicant{states: []string{"associating", "4way_handshake", "disconnected"}}
	w := newTestWPA(sup)

	_, err := w.Connect(context.Background(), provision.ConnectRequest{SSID: "Cafe", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, MsgAuthFailed, err.Error())
	assert.Len(t, sup.removed, 1)
}

func TestWPAConnectDeadline(t *testing.T) {
	sup := &fakeSupplicant{states: []string{"scanning"}}
	w := newTestWPA(sup)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := w.Connect(ctx, provision.ConnectRequest{SSID: "Far"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, sup.removed, 1)
}

func TestAssocTracker(t *testing.T) {
	var tr assocTracker

	done, err := tr.observe("disconnected")
	assert.False(t, done, "disconnected before a handshake is not a failure")
	assert.NoError(t, err)

	done, _ = tr.observe("4way_handshake")
	assert.False(t, done)

	done, err = tr.observe("disconnected")
	assert.True(t, done)
	assert.EqualError(t, err, MsgAuthFailed)
}

func TestWPALinkState(t *testing.T) {
	w := newTestWPA(&fakeSupplicant{states: []string{"completed"}})
	st, err := w.LinkState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, LinkState{Mode: ModeConnected, Interface: "wlan0", IP: "10.0.0.7"}, st)

	w = newTestWPA(&fakeSupplicant{states: []string{"inactive"}})
	st, err = w.LinkState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ModeDisconnected, st.Mode)
}
