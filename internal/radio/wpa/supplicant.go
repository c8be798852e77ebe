// Package wpa is a small client for the wpa_supplicant D-Bus API.
package wpa

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	Service = "fi.w1.wpa_supplicant1"
	Path    = dbus.ObjectPath("/fi/w1/wpa_supplicant1")

	ifaceInterface = Service + ".Interface"
	bssInterface   = Service + ".BSS"
	propsGetAll    = "org.freedesktop.DBus.Properties.GetAll"
)

// Supplicant is a connection to the wpa_supplicant daemon.
type Supplicant struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// Dial connects to wpa_supplicant on the system bus.
func Dial() (*Supplicant, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("could not connect to system bus: %w", err)
	}
	return &Supplicant{conn: conn, obj: conn.Object(Service, Path)}, nil
}

// Close releases the bus connection.
func (s *Supplicant) Close() error {
	return s.conn.Close()
}

// Interface returns the supplicant interface for ifname, asking
// wpa_supplicant to manage it when it does not already.
func (s *Supplicant) Interface(ctx context.Context, ifname string) (*Interface, error) {
	var path dbus.ObjectPath
	err := s.obj.CallWithContext(ctx, Service+".GetInterface", 0, ifname).Store(&path)
	if err != nil {
		args := map[string]interface{}{"Ifname": ifname}
		if cerr := s.obj.CallWithContext(ctx, Service+".CreateInterface", 0, args).Store(&path); cerr != nil {
			return nil, fmt.Errorf("could not get interface %s: %v (create: %w)", ifname, err, cerr)
		}
	}
	return &Interface{conn: s.conn, obj: s.conn.Object(Service, path)}, nil
}

// Interface is one network interface managed by wpa_supplicant.
type Interface struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// Scan starts an active scan and waits for the ScanDone signal.
func (i *Interface) Scan(ctx context.Context) error {
	match := []dbus.MatchOption{
		dbus.WithMatchObjectPath(i.obj.Path()),
		dbus.WithMatchInterface(ifaceInterface),
		dbus.WithMatchMember("ScanDone"),
	}
	if err := i.conn.AddMatchSignal(match...); err != nil {
		return fmt.Errorf("could not subscribe to ScanDone: %w", err)
	}
	defer i.conn.RemoveMatchSignal(match...)

	signals := make(chan *dbus.Signal, 8)
	i.conn.Signal(signals)
	defer i.conn.RemoveSignal(signals)

	call := i.obj.CallWithContext(ctx, ifaceInterface+".Scan", 0, map[string]interface{}{"Type": "active"})
	if call.Err != nil {
		return fmt.Errorf("could not start scan: %w", call.Err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-signals:
			if !ok {
				return fmt.Errorf("bus connection closed during scan")
			}
			if sig.Path != i.obj.Path() || sig.Name != ifaceInterface+".ScanDone" {
				continue
			}
			if len(sig.Body) > 0 {
				if success, ok := sig.Body[0].(bool); ok && !success {
					return fmt.Errorf("scan failed")
				}
			}
			return nil
		}
	}
}

// BSSs returns every BSS currently known to the interface. Entries that
// cannot be decoded are skipped.
func (i *Interface) BSSs(ctx context.Context) ([]BSS, error) {
	v, err := i.obj.GetProperty(ifaceInterface + ".BSSs")
	if err != nil {
		return nil, fmt.Errorf("could not get BSSs: %w", err)
	}
	paths, ok := v.Value().([]dbus.ObjectPath)
	if !ok {
		return nil, fmt.Errorf("unexpected BSSs type %s", v.Signature())
	}

	out := make([]BSS, 0, len(paths))
	for _, p := range paths {
		var props map[string]dbus.Variant
		if err := i.conn.Object(Service, p).CallWithContext(ctx, propsGetAll, 0, bssInterface).Store(&props); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		bss, err := DecodeBSS(props)
		if err != nil {
			continue
		}
		out = append(out, bss)
	}
	return out, nil
}

// AddNetwork registers a network block. An empty psk adds an open network.
func (i *Interface) AddNetwork(ctx context.Context, ssid, psk string) (dbus.ObjectPath, error) {
	args := map[string]interface{}{
		"ssid":      ssid,
		"scan_ssid": int32(1),
	}
	if psk != "" {
		args["psk"] = psk
	} else {
		args["key_mgmt"] = "NONE"
	}

	var path dbus.ObjectPath
	if err := i.obj.CallWithContext(ctx, ifaceInterface+".AddNetwork", 0, args).Store(&path); err != nil {
		return "", fmt.Errorf("could not add network: %w", err)
	}
	return path, nil
}

// SelectNetwork disables all other networks and associates with path.
func (i *Interface) SelectNetwork(ctx context.Context, path dbus.ObjectPath) error {
	if call := i.obj.CallWithContext(ctx, ifaceInterface+".SelectNetwork", 0, path); call.Err != nil {
		return fmt.Errorf("could not select network: %w", call.Err)
	}
	return nil
}

// RemoveNetwork deletes a network block.
func (i *Interface) RemoveNetwork(ctx context.Context, path dbus.ObjectPath) error {
	if call := i.obj.CallWithContext(ctx, ifaceInterface+".RemoveNetwork", 0, path); call.Err != nil {
		return fmt.Errorf("could not remove network: %w", call.Err)
	}
	return nil
}

// SaveConfig persists network blocks to the supplicant's config file.
func (i *Interface) SaveConfig(ctx context.Context) error {
	if call := i.obj.CallWithContext(ctx, ifaceInterface+".SaveConfig", 0); call.Err != nil {
		return fmt.Errorf("could not save config: %w", call.Err)
	}
	return nil
}

// State returns the interface state, e.g. "scanning", "4way_handshake" or
// "completed".
func (i *Interface) State(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := i.obj.GetProperty(ifaceInterface + ".State")
	if err != nil {
		return "", fmt.Errorf("could not get state: %w", err)
	}
	s, ok := v.Value().(string)
	if !ok {
		return "", fmt.Errorf("unexpected state type %s", v.Signature())
	}
	return s, nil
}
