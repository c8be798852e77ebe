package client

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/muurk/wifiprov/internal/discovery"
)

// PortalURL turns a user-supplied portal address into a channel URL.
// It accepts a bare host ("192.168.4.1"), host:port, or an http, https,
// ws or wss URL. A missing path becomes the default channel path.
func PortalURL(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", fmt.Errorf("empty portal address")
	}
	if !strings.Contains(addr, "://") {
		addr = "ws://" + addr
	}

	u, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("invalid portal address %q: %w", addr, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported portal scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("portal address %q has no host", addr)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = discovery.DefaultPath
	}
	return u.String(), nil
}
