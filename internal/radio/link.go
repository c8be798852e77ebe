package radio

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mdlayher/wifi"
)

// LinkMode describes what the wireless interface is currently doing.
type LinkMode string

const (
	ModeAP           LinkMode = "ap"
	ModeConnected    LinkMode = "connected"
	ModeDisconnected LinkMode = "disconnected"
	ModeUnknown      LinkMode = "unknown"
)

// AllModes lists every link mode.
func AllModes() []LinkMode {
	return []LinkMode{ModeAP, ModeConnected, ModeDisconnected, ModeUnknown}
}

// LinkState is a snapshot of the wireless interface.
type LinkState struct {
	Mode      LinkMode `json:"mode"`
	Interface string   `json:"interface,omitempty"`
	SSID      string   `json:"ssid,omitempty"`
	IP        string   `json:"ip,omitempty"`
}

// LinkReporter reports the current link state.
type LinkReporter interface {
	LinkState(ctx context.Context) (LinkState, error)
}

// NL80211Reporter reads link state from the kernel over nl80211.
type NL80211Reporter struct {
	// Interface is the wireless interface name. Empty selects the first
	// station or AP interface found.
	Interface string

	// LookupIP resolves the interface's IPv4 address. Defaults to InterfaceIPv4.
	LookupIP func(iface string) (string, error)
}

// LinkState implements LinkReporter.
func (r *NL80211Reporter) LinkState(ctx context.Context) (LinkState, error) {
	if err := ctx.Err(); err != nil {
		return LinkState{Mode: ModeUnknown}, err
	}

	c, err := wifi.New()
	if err != nil {
		return LinkState{Mode: ModeUnknown}, fmt.Errorf("failed to open nl80211: %w", err)
	}
	defer c.Close()

	ifis, err := c.Interfaces()
	if err != nil {
		return LinkState{Mode: ModeUnknown}, fmt.Errorf("failed to list wireless interfaces: %w", err)
	}

	ifi := selectInterface(ifis, r.Interface)
	if ifi == nil {
		return LinkState{Mode: ModeUnknown, Interface: r.Interface}, fmt.Errorf("wireless interface %q not found", r.Interface)
	}

	state := LinkState{Interface: ifi.Name}
	lookup := r.LookupIP
	if lookup == nil {
		lookup = InterfaceIPv4
	}

	if ifi.Type == wifi.InterfaceTypeAP {
		state.Mode = ModeAP
		state.IP, _ = lookup(ifi.Name)
		return state, nil
	}

	bss, err := c.BSS(ifi)
	switch {
	case errors.Is(err, os.ErrNotExist):
		state.Mode = ModeDisconnected
		return state, nil
	case err != nil:
		state.Mode = ModeUnknown
		return state, fmt.Errorf("failed to read BSS for %s: %w", ifi.Name, err)
	}

	state.Mode = ModeConnected
	state.SSID = bss.SSID
	state.IP, _ = lookup(ifi.Name)
	return state, nil
}

func selectInterface(ifis []*wifi.Interface, name string) *wifi.Interface {
	for _, ifi := range ifis {
		if name != "" {
			if ifi.Name == name {
				return ifi
			}
			continue
		}
		if ifi.Name != "" && (ifi.Type == wifi.InterfaceTypeStation || ifi.Type == wifi.InterfaceTypeAP) {
			return ifi
		}
	}
	return nil
}
