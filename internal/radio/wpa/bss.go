package wpa

import (
	"errors"
	"net"
	"strings"

	"github.com/godbus/dbus/v5"
)

// BSS is a decoded fi.w1.wpa_supplicant1.BSS object.
type BSS struct {
	SSID      string
	BSSID     string
	Signal    int16 // dBm
	Frequency uint16
	Privacy   bool
	WPA       []string // key management suites from the WPA IE
	RSN       []string // key management suites from the RSN IE
}

// Security names the strongest scheme the BSS advertises: WPA3, WPA2, WPA,
// WEP or OPEN.
func (b BSS) Security() string {
	for _, km := range b.RSN {
		if strings.HasPrefix(km, "sae") {
			return "WPA3"
		}
	}
	switch {
	case len(b.RSN) > 0:
		return "WPA2"
	case len(b.WPA) > 0:
		return "WPA"
	case b.Privacy:
		return "WEP"
	}
	return "OPEN"
}

// Quality converts the signal to a 0-100 percentage.
func (b BSS) Quality() int {
	q := 2 * (int(b.Signal) + 100)
	switch {
	case q < 0:
		return 0
	case q > 100:
		return 100
	}
	return q
}

// DecodeBSS decodes the property map returned by Properties.GetAll.
func DecodeBSS(props map[string]dbus.Variant) (BSS, error) {
	var b BSS

	v, ok := props["SSID"]
	if !ok {
		return b, errors.New("mandatory property SSID was missing")
	}
	ssid, ok := v.Value().([]byte)
	if !ok {
		return b, errors.New("SSID is not a byte array")
	}
	b.SSID = string(ssid)

	if v, ok := props["BSSID"]; ok {
		if raw, ok := v.Value().([]byte); ok {
			b.BSSID = net.HardwareAddr(raw).String()
		}
	}
	if v, ok := props["Signal"]; ok {
		b.Signal, _ = v.Value().(int16)
	}
	if v, ok := props["Frequency"]; ok {
		b.Frequency, _ = v.Value().(uint16)
	}
	if v, ok := props["Privacy"]; ok {
		b.Privacy, _ = v.Value().(bool)
	}
	b.WPA = keyMgmt(props["WPA"])
	b.RSN = keyMgmt(props["RSN"])
	return b, nil
}

func keyMgmt(v dbus.Variant) []string {
	m, ok := v.Value().(map[string]dbus.Variant)
	if !ok {
		return nil
	}
	km, ok := m["KeyMgmt"]
	if !ok {
		return nil
	}
	suites, _ := km.Value().([]string)
	return suites
}
