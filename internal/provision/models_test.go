package provision

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSecurity(t *testing.T) {
	tests := []struct {
		in   string
		want Security
	}{
		{"", SecurityOpen},
		{"--", SecurityOpen},
		{"open", SecurityOpen},
		{"WEP", SecurityWEP},
		{"WPA1", SecurityWPA},
		{"WPA1 WPA2", SecurityWPA2},
		{"wpa2", SecurityWPA2},
		{"WPA2 WPA3", SecurityWPA3},
		{"SAE", SecurityWPA3},
		{"802.1X", SecurityUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSecurity(tt.in))
		})
	}
}

func TestNetworkInfoJSON(t *testing.T) {
	data, err := json.Marshal(NetworkInfo{SSID: "Home", Security: SecurityWPA2, Signal: 71})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ssid":"Home","security":"WPA2","signal":71}`, string(data))

	var n NetworkInfo
	require.NoError(t, json.Unmarshal([]byte(`{"ssid":"Cafe","security":"OPEN"}`), &n))
	assert.Equal(t, NetworkInfo{SSID: "Cafe", Security: SecurityOpen}, n)
}

func TestScanResultNetworksNeverNull(t *testing.T) {
	data, err := json.Marshal(ScanResult{Success: false, Networks: Normalize(nil, SortBySignal), Error: "boom"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"networks":[],"error":"boom"}`, string(data))
}

func TestNormalize(t *testing.T) {
	in := []NetworkInfo{
		{SSID: "beta", Security: SecurityWPA2, Signal: 50},
		{SSID: "", Security: SecurityOpen, Signal: 99},
		{SSID: "Alpha", Security: SecurityOpen, Signal: 50},
		{SSID: "Home", Security: SecurityWPA2, Signal: 30},
		{SSID: "Home", Security: SecurityWPA2, Signal: 90},
		{SSID: "Home", Security: SecurityWPA2, Signal: 60},
	}

	t.Run("by signal", func(t *testing.T) {
		got := Normalize(in, SortBySignal)
		assert.Equal(t, []NetworkInfo{
			{SSID: "Home", Security: SecurityWPA2, Signal: 90},
			{SSID: "Alpha", Security: SecurityOpen, Signal: 50},
			{SSID: "beta", Security: SecurityWPA2, Signal: 50},
		}, got)
	})

	t.Run("by ssid", func(t *testing.T) {
		got := Normalize(in, SortBySSID)
		var names []string
		for _, n := range got {
			names = append(names, n.SSID)
		}
		assert.Equal(t, []string{"Alpha", "beta", "Home"}, names)
	})

	t.Run("duplicate home appears once", func(t *testing.T) {
		got := Normalize([]NetworkInfo{
			{SSID: "Home", Security: SecurityWPA2},
			{SSID: "Home", Security: SecurityWPA2},
		}, SortBySignal)
		assert.Len(t, got, 1)
	})

	t.Run("prefers known security on equal signal", func(t *testing.T) {
		got := Normalize([]NetworkInfo{
			{SSID: "Lab", Security: SecurityUnknown, Signal: 40},
			{SSID: "Lab", Security: SecurityWPA3, Signal: 40},
		}, SortBySignal)
		require.Len(t, got, 1)
		assert.Equal(t, SecurityWPA3, got[0].Security)
	})
}

func TestParseSortOrder(t *testing.T) {
	o, err := ParseSortOrder("SSID")
	require.NoError(t, err)
	assert.Equal(t, SortBySSID, o)

	o, err = ParseSortOrder("")
	require.NoError(t, err)
	assert.Equal(t, SortBySignal, o)

	_, err = ParseSortOrder("random")
	assert.Error(t, err)
}

func TestConnectRequestStringHidesPassword(t *testing.T) {
	s := ConnectRequest{SSID: "Cafe", Password: "hunter2"}.String()
	assert.NotContains(t, s, "hunter2")
	assert.Contains(t, s, "password=set")
}

func TestPhaseText(t *testing.T) {
	for _, p := range []Phase{PhaseIdle, PhaseScanning, PhaseConnecting} {
		text, _ := p.MarshalText()
		var got Phase
		if err := got.UnmarshalText(text); err != nil || got != p {
			t.Errorf("UnmarshalText(%q) = %v, %v", text, got, err)
		}
	}
	var p Phase
	if err := p.UnmarshalText([]byte("sleeping")); err == nil {
		t.Error("expected error for unknown phase")
	}
}
