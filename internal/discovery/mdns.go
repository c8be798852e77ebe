package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/wifiprov/internal/logging"
)

const (
	// ServiceType is the mDNS service type portals advertise
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain
	ServiceDomain = "local."

	// ServiceTag is the TXT "svc" value that marks a wifiprov portal among
	// other _http._tcp services
	ServiceTag = "wifiprov"

	// DefaultPath is the WebSocket path when none is advertised
	DefaultPath = "/ws"

	// DefaultScanTimeout is the default timeout for portal discovery
	DefaultScanTimeout = 5 * time.Second

	// DefaultPort is used when an entry carries no port
	DefaultPort = 80
)

// Scanner browses the local network for portals
type Scanner struct {
	// Timeout is the maximum time to wait for answers
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// Scan collects every portal that answers within the timeout
func (s *Scanner) Scan(ctx context.Context) ([]*Portal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	var (
		mu      sync.Mutex
		portals = make([]*Portal, 0)
		seen    = make(map[string]bool)
		drained = make(chan struct{})
	)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		defer close(drained)
		for entry := range entries {
			p := parseServiceEntry(entry)
			if p == nil {
				continue
			}
			mu.Lock()
			if !seen[p.Instance] {
				seen[p.Instance] = true
				portals = append(portals, p)
			}
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	// zeroconf closes entries once the browse context ends.
	select {
	case <-drained:
	case <-time.After(time.Second):
	}

	mu.Lock()
	defer mu.Unlock()
	logging.Debug("mDNS scan complete", zap.Int("portals", len(portals)))
	return portals, nil
}

// First returns the first portal that answers
func (s *Scanner) First(ctx context.Context) (*Portal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan *Portal, 1)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			if p := parseServiceEntry(entry); p != nil {
				select {
				case found <- p:
				default:
				}
				cancel()
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case p := <-found:
		return p, nil
	case <-ctx.Done():
		select {
		case p := <-found:
			return p, nil
		default:
		}
		return nil, fmt.Errorf("no portal found within %s", s.Timeout)
	}
}

// parseServiceEntry converts a zeroconf entry to a Portal.
// Returns nil if the entry is not a wifiprov portal.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Portal {
	if entry == nil {
		return nil
	}

	metadata := parseTXT(entry.Text)
	if metadata["svc"] != ServiceTag {
		return nil
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	path := metadata["path"]
	if path == "" {
		path = DefaultPath
	}

	return &Portal{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Path:         path,
		Version:      metadata["version"],
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// parseTXT splits "key=value" records; a bare key maps to "".
func parseTXT(records []string) map[string]string {
	metadata := make(map[string]string, len(records))
	for _, txt := range records {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}
	return metadata
}

// QuickScan performs a scan with a 3-second timeout
func QuickScan(ctx context.Context) ([]*Portal, error) {
	scanner := NewScanner()
	scanner.Timeout = 3 * time.Second
	return scanner.Scan(ctx)
}
