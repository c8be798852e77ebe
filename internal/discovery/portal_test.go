package discovery

import "testing"

func TestPortal_String(t *testing.T) {
	p := &Portal{
		Instance: "wifiprov-pi",
		Hostname: "raspberrypi.local.",
		IP:       "192.168.4.1",
		Port:     8080,
	}

	expected := "wifiprov-pi (raspberrypi.local.) at 192.168.4.1:8080"
	if p.String() != expected {
		t.Errorf("Portal.String() = %v, want %v", p.String(), expected)
	}
}

func TestPortal_WebSocketURL(t *testing.T) {
	tests := []struct {
		name     string
		portal   *Portal
		expected string
	}{
		{
			name:     "advertised path",
			portal:   &Portal{IP: "192.168.4.1", Port: 8080, Path: "/ws"},
			expected: "ws://192.168.4.1:8080/ws",
		},
		{
			name:     "missing path",
			portal:   &Portal{IP: "10.0.0.5", Port: 80},
			expected: "ws://10.0.0.5:80/ws",
		},
		{
			name:     "relative path",
			portal:   &Portal{IP: "10.0.0.5", Port: 80, Path: "channel"},
			expected: "ws://10.0.0.5:80/channel",
		},
		{
			name:     "IPv6",
			portal:   &Portal{IP: "fe80::1", Port: 8080, Path: "/ws"},
			expected: "ws://[fe80::1]:8080/ws",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.portal.WebSocketURL(); got != tt.expected {
				t.Errorf("WebSocketURL() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestPortal_GetMetadata(t *testing.T) {
	p := &Portal{Metadata: map[string]string{"version": "1.0"}}
	if got := p.GetMetadata("version"); got != "1.0" {
		t.Errorf("GetMetadata(version) = %v, want 1.0", got)
	}
	if got := p.GetMetadata("missing"); got != "" {
		t.Errorf("GetMetadata(missing) = %v, want empty", got)
	}

	var empty Portal
	if got := empty.GetMetadata("version"); got != "" {
		t.Errorf("GetMetadata on nil metadata = %v, want empty", got)
	}
}
