package radio

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/muurk/wifiprov/internal/provision"
)

// Driver selects a radio backend.
type Driver string

const (
	DriverNMCLI Driver = "nmcli"
	DriverWPA   Driver = "wpa"
	DriverMock  Driver = "mock"
)

// Drivers lists the supported backends.
func Drivers() []Driver {
	return []Driver{DriverNMCLI, DriverWPA, DriverMock}
}

// ParseDriver converts a config value to a Driver.
func ParseDriver(s string) (Driver, error) {
	switch d := Driver(strings.ToLower(strings.TrimSpace(s))); d {
	case DriverNMCLI, DriverWPA, DriverMock:
		return d, nil
	case "":
		return DriverNMCLI, nil
	}
	return "", fmt.Errorf("unknown radio driver %q (want nmcli, wpa or mock)", s)
}

// HotspotController toggles the setup access point.
type HotspotController interface {
	HotspotUp(ctx context.Context) error
	HotspotDown(ctx context.Context) error
}

// Options selects and configures a backend.
type Options struct {
	Driver         Driver
	Interface      string
	Hotspot        string
	HotspotSettle  time.Duration
	RestoreHotspot bool
	PollInterval   time.Duration
	// NL80211 reads link state from the kernel instead of the driver.
	NL80211 bool
	Mock    MockConfig
}

// Device bundles the pieces of an opened backend.
type Device struct {
	Driver  Driver
	Radio   provision.Radio
	Link    LinkReporter
	Hotspot HotspotController // nil when the backend has no hotspot support

	closeFn func() error
}

// Close releases backend resources.
func (d *Device) Close() error {
	if d.closeFn == nil {
		return nil
	}
	return d.closeFn()
}

// Open creates the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (*Device, error) {
	dev := &Device{Driver: opts.Driver}

	switch opts.Driver {
	case DriverNMCLI, "":
		n := NewNMCLI(NMCLIConfig{
			Interface:      opts.Interface,
			Hotspot:        opts.Hotspot,
			HotspotSettle:  opts.HotspotSettle,
			RestoreHotspot: opts.RestoreHotspot,
		}, nil)
		dev.Driver = DriverNMCLI
		dev.Radio, dev.Link = n, n
		if opts.Hotspot != "" {
			dev.Hotspot = n
		}
	case DriverWPA:
		w, err := NewWPA(ctx, WPAConfig{Interface: opts.Interface, PollInterval: opts.PollInterval})
		if err != nil {
			return nil, fmt.Errorf("failed to open wpa_supplicant: %w", err)
		}
		dev.Radio, dev.Link = w, w
		dev.closeFn = w.Close
	case DriverMock:
		m := NewMock(opts.Mock)
		dev.Radio, dev.Link = m, m
		return dev, nil
	default:
		return nil, fmt.Errorf("unknown radio driver %q", opts.Driver)
	}

	if opts.NL80211 {
		dev.Link = &NL80211Reporter{Interface: opts.Interface}
	}
	return dev, nil
}
