package radio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDriver(t *testing.T) {
	tests := []struct {
		in      string
		want    Driver
		wantErr bool
	}{
		{"", DriverNMCLI, false},
		{"nmcli", DriverNMCLI, false},
		{" WPA ", DriverWPA, false},
		{"mock", DriverMock, false},
		{"iwd", "", true},
	}
	for _, tt := range tests {
		got, err := ParseDriver(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestOpenMock(t *testing.T) {
	dev, err := Open(context.Background(), Options{Driver: DriverMock, NL80211: true})
	require.NoError(t, err)
	defer dev.Close()

	assert.IsType(t, &Mock{}, dev.Radio)
	assert.IsType(t, &Mock{}, dev.Link, "mock keeps its own link state")
	assert.Nil(t, dev.Hotspot)
}

func TestOpenNMCLI(t *testing.T) {
	dev, err := Open(context.Background(), Options{Driver: DriverNMCLI, Hotspot: "setup-ap"})
	require.NoError(t, err)

	assert.IsType(t, &NMCLI{}, dev.Radio)
	assert.NotNil(t, dev.Hotspot)

	dev, err = Open(context.Background(), Options{NL80211: true, Interface: "wlan1"})
	require.NoError(t, err)
	assert.Equal(t, DriverNMCLI, dev.Driver)
	assert.Nil(t, dev.Hotspot)
	assert.Equal(t, &NL80211Reporter{Interface: "wlan1"}, dev.Link)
}

func TestOpenUnknown(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "iwd"})
	assert.Error(t, err)
}
