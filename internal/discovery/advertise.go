package discovery

import (
	"fmt"
	"net"
	"os"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/wifiprov/internal/logging"
)

// Advertisement describes how the portal announces itself
type Advertisement struct {
	// Instance is the service instance name. Defaults to "wifiprov-<hostname>".
	Instance string
	Port     int
	Path     string
	Version  string
	// Interfaces restricts announcements to the named interfaces; empty means all.
	Interfaces []string
}

// TXT returns the TXT records for the advertisement
func (a Advertisement) TXT() []string {
	path := a.Path
	if path == "" {
		path = DefaultPath
	}
	txt := []string{"svc=" + ServiceTag, "path=" + path}
	if a.Version != "" {
		txt = append(txt, "version="+a.Version)
	}
	return txt
}

// Advertiser is a running mDNS registration
type Advertiser struct {
	server *zeroconf.Server
}

// Advertise registers the portal on the local network until Shutdown
func Advertise(a Advertisement) (*Advertiser, error) {
	if a.Instance == "" {
		host, _ := os.Hostname()
		if host == "" {
			host = "portal"
		}
		a.Instance = "wifiprov-" + host
	}

	var ifaces []net.Interface
	for _, name := range a.Interfaces {
		ifi, err := net.InterfaceByName(name)
		if err != nil {
			return nil, fmt.Errorf("mDNS interface %s: %w", name, err)
		}
		ifaces = append(ifaces, *ifi)
	}

	server, err := zeroconf.Register(a.Instance, ServiceType, ServiceDomain, a.Port, a.TXT(), ifaces)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logging.Info("mDNS service registered",
		zap.String("instance", a.Instance),
		zap.String("service", ServiceType),
		zap.Int("port", a.Port),
	)
	return &Advertiser{server: server}, nil
}

// Shutdown withdraws the registration
func (a *Advertiser) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
}
