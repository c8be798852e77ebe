package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Portal is a provisioning server found on the local network.
type Portal struct {
	// Instance is the mDNS instance name (e.g., "wifiprov-livingroom")
	Instance string

	// Hostname is the mDNS hostname (e.g., "raspberrypi.local.")
	Hostname string

	IP   string
	Port int

	// Path is the WebSocket endpoint advertised in the TXT "path" record
	Path string

	// Version is the server version from the TXT "version" record
	Version string

	// Metadata holds every TXT record
	Metadata map[string]string

	DiscoveredAt time.Time
}

// String returns a human-readable description of the portal
func (p *Portal) String() string {
	return fmt.Sprintf("%s (%s) at %s", p.Instance, p.Hostname, net.JoinHostPort(p.IP, strconv.Itoa(p.Port)))
}

// WebSocketURL returns the ws:// URL of the portal's channel endpoint
func (p *Portal) WebSocketURL() string {
	path := p.Path
	if path == "" {
		path = DefaultPath
	}
	if path[0] != '/' {
		path = "/" + path
	}
	return "ws://" + net.JoinHostPort(p.IP, strconv.Itoa(p.Port)) + path
}

// GetMetadata retrieves a TXT value by key, or returns empty string if not found
func (p *Portal) GetMetadata(key string) string {
	if p.Metadata == nil {
		return ""
	}
	return p.Metadata[key]
}
