package radio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/muurk/wifiprov/internal/logging"
	"github.com/muurk/wifiprov/internal/provision"
	"github.com/muurk/wifiprov/internal/radio/wpa"
)

// supplicantInterface is the part of *wpa.Interface the adapter uses.
type supplicantInterface interface {
	Scan(ctx context.Context) error
	BSSs(ctx context.Context) ([]wpa.BSS, error)
	AddNetwork(ctx context.Context, ssid, psk string) (dbus.ObjectPath, error)
	SelectNetwork(ctx context.Context, path dbus.ObjectPath) error
	RemoveNetwork(ctx context.Context, path dbus.ObjectPath) error
	SaveConfig(ctx context.Context) error
	State(ctx context.Context) (string, error)
}

// WPAConfig configures the wpa_supplicant adapter.
type WPAConfig struct {
	Interface    string
	PollInterval time.Duration
}

// WPA drives wpa_supplicant over D-Bus.
type WPA struct {
	cfg   WPAConfig
	iface supplicantInterface
	sup   *wpa.Supplicant

	// LookupIP resolves the interface address once associated.
	LookupIP func(iface string) (string, error)
}

var (
	_ provision.Radio = (*WPA)(nil)
	_ LinkReporter    = (*WPA)(nil)
)

// NewWPA connects to wpa_supplicant and binds to cfg.Interface.
func NewWPA(ctx context.Context, cfg WPAConfig) (*WPA, error) {
	sup, err := wpa.Dial()
	if err != nil {
		return nil, err
	}
	w := newWPA(cfg, nil)
	iface, err := sup.Interface(ctx, w.cfg.Interface)
	if err != nil {
		sup.Close()
		return nil, err
	}
	w.iface = iface
	w.sup = sup
	return w, nil
}

func newWPA(cfg WPAConfig, iface supplicantInterface) *WPA {
	if cfg.Interface == "" {
		cfg.Interface = "wlan0"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	return &WPA{cfg: cfg, iface: iface, LookupIP: InterfaceIPv4}
}

// Close releases the D-Bus connection.
func (w *WPA) Close() error {
	if w.sup == nil {
		return nil
	}
	return w.sup.Close()
}

// Scan triggers a scan and returns every BSS with a visible SSID.
func (w *WPA) Scan(ctx context.Context) ([]provision.NetworkInfo, error) {
	if err := w.iface.Scan(ctx); err != nil {
		return nil, err
	}
	bsss, err := w.iface.BSSs(ctx)
	if err != nil {
		return nil, err
	}

	networks := make([]provision.NetworkInfo, 0, len(bsss))
	for _, b := range bsss {
		if b.SSID == "" {
			continue
		}
		networks = append(networks, provision.NetworkInfo{
			SSID:     b.SSID,
			Security: provision.ParseSecurity(b.Security()),
			Signal:   b.Quality(),
		})
	}
	return networks, nil
}

// Connect adds a network block for req, selects it and waits until the
// supplicant reports "completed" and the interface has an address.
func (w *WPA) Connect(ctx context.Context, req provision.ConnectRequest) (provision.ConnectResult, error) {
	path, err := w.iface.AddNetwork(ctx, req.SSID, req.Password)
	if err != nil {
		return provision.ConnectResult{}, err
	}

	fail := func(err error) (provision.ConnectResult, error) {
		rmCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if rerr := w.iface.RemoveNetwork(rmCtx, path); rerr != nil {
			logging.Debug("Failed to remove network block", zap.String("path", string(path)), zap.Error(rerr))
		}
		return provision.ConnectResult{}, err
	}

	if err := w.iface.SelectNetwork(ctx, path); err != nil {
		return fail(err)
	}
	if err := w.waitAssociated(ctx); err != nil {
		return fail(err)
	}

	ip, err := WaitIPv4(ctx, w.cfg.Interface, w.LookupIP, w.cfg.PollInterval)
	if err != nil {
		if ctx.Err() != nil {
			return fail(ctx.Err())
		}
		return fail(err)
	}

	if err := w.iface.SaveConfig(ctx); err != nil {
		logging.Warn("Failed to persist network", zap.String("ssid", req.SSID), zap.Error(err))
	}
	return provision.ConnectResult{Success: true, IP: ip}, nil
}

func (w *WPA) waitAssociated(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	var tr assocTracker
	for {
		state, err := w.iface.State(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		done, err := tr.observe(state)
		if done || err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LinkState reports the supplicant's view of the interface.
func (w *WPA) LinkState(ctx context.Context) (LinkState, error) {
	state, err := w.iface.State(ctx)
	if err != nil {
		return LinkState{Mode: ModeUnknown, Interface: w.cfg.Interface}, err
	}
	ls := LinkState{Interface: w.cfg.Interface}
	switch state {
	case "completed":
		ls.Mode = ModeConnected
		ls.IP, _ = w.LookupIP(w.cfg.Interface)
	case "disconnected", "inactive", "interface_disabled":
		ls.Mode = ModeDisconnected
	default:
		ls.Mode = ModeUnknown
	}
	return ls, nil
}

// assocTracker follows supplicant states during association. Dropping back
// to disconnected after the 4-way handshake started means the key was wrong.
type assocTracker struct {
	handshake bool
	last      string
}

func (t *assocTracker) observe(state string) (bool, error) {
	if state != t.last {
		logging.Debug("Supplicant state", zap.String("from", t.last), zap.String("to", state))
		t.last = state
	}
	switch state {
	case "completed":
		return true, nil
	case "4way_handshake", "group_handshake":
		t.handshake = true
	case "disconnected", "inactive":
		if t.handshake {
			return true, errors.New(MsgAuthFailed)
		}
	case "interface_disabled":
		return true, fmt.Errorf("interface disabled")
	}
	return false, nil
}
