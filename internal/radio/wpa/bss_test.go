package wpa

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rsn(suites ...string) dbus.Variant {
	return dbus.MakeVariant(map[string]dbus.Variant{"KeyMgmt": dbus.MakeVariant(suites)})
}

func TestDecodeBSS(t *testing.T) {
	props := map[string]dbus.Variant{
		"SSID":      dbus.MakeVariant([]byte("Home")),
		"BSSID":     dbus.MakeVariant([]byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}),
		"Signal":    dbus.MakeVariant(int16(-55)),
		"Frequency": dbus.MakeVariant(uint16(2437)),
		"Privacy":   dbus.MakeVariant(true),
		"RSN":       rsn("wpa-psk"),
		"WPA":       dbus.MakeVariant(map[string]dbus.Variant{}),
	}

	b, err := DecodeBSS(props)
	require.NoError(t, err)
	assert.Equal(t, "Home", b.SSID)
	assert.Equal(t, "de:ad:be:ef:00:01", b.BSSID)
	assert.Equal(t, int16(-55), b.Signal)
	assert.Equal(t, uint16(2437), b.Frequency)
	assert.Equal(t, "WPA2", b.Security())
	assert.Equal(t, 90, b.Quality())
}

func TestDecodeBSSMissingSSID(t *testing.T) {
	_, err := DecodeBSS(map[string]dbus.Variant{"Signal": dbus.MakeVariant(int16(-40))})
	assert.Error(t, err)

	_, err = DecodeBSS(map[string]dbus.Variant{"SSID": dbus.MakeVariant("not-bytes")})
	assert.Error(t, err)
}

func TestBSSSecurity(t *testing.T) {
	tests := []struct {
		name string
		bss  BSS
		want string
	}{
		{"open", BSS{}, "OPEN"},
		{"wep", BSS{Privacy: true}, "WEP"},
		{"wpa", BSS{Privacy: true, WPA: []string{"wpa-psk"}}, "WPA"},
		{"wpa2", BSS{Privacy: true, RSN: []string{"wpa-psk"}}, "WPA2"},
		{"wpa3", BSS{Privacy: true, RSN: []string{"wpa-psk", "sae"}}, "WPA3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.bss.Security())
		})
	}
}

func TestBSSQualityClamped(t *testing.T) {
	assert.Equal(t, 100, BSS{Signal: -20}.Quality())
	assert.Equal(t, 0, BSS{Signal: -120}.Quality())
}
