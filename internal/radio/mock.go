package radio

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/muurk/wifiprov/internal/provision"
)

// DefaultFailPassword makes Mock.Connect report an authentication failure.
const DefaultFailPassword = "wrongpassword"

// MockConfig configures the simulated radio.
type MockConfig struct {
	Networks       []provision.NetworkInfo
	ScanLatency    time.Duration
	ConnectLatency time.Duration
	FailPassword   string
	IP             string
}

// DefaultMockNetworks is what the mock radio sees when none are configured.
func DefaultMockNetworks() []provision.NetworkInfo {
	return []provision.NetworkInfo{
		{SSID: "HomeNetwork", Security: provision.SecurityWPA2, Signal: 82},
		{SSID: "CoffeeShop", Security: provision.SecurityOpen, Signal: 64},
		{SSID: "Neighbour-5G", Security: provision.SecurityWPA3, Signal: 41},
		{SSID: "HomeNetwork", Security: provision.SecurityWPA2, Signal: 37},
		{SSID: "OldRouter", Security: provision.SecurityWEP, Signal: 18},
	}
}

// Mock is an in-memory radio for development and demos.
type Mock struct {
	cfg MockConfig

	mu        sync.Mutex
	connected string
}

var (
	_ provision.Radio = (*Mock)(nil)
	_ LinkReporter    = (*Mock)(nil)
)

// NewMock returns a mock radio, filling unset fields with defaults.
func NewMock(cfg MockConfig) *Mock {
	if cfg.Networks == nil {
		cfg.Networks = DefaultMockNetworks()
	}
	if cfg.FailPassword == "" {
		cfg.FailPassword = DefaultFailPassword
	}
	if cfg.IP == "" {
		cfg.IP = "192.168.1.42"
	}
	return &Mock{cfg: cfg}
}

// Scan returns the configured networks after ScanLatency.
func (m *Mock) Scan(ctx context.Context) ([]provision.NetworkInfo, error) {
	if err := sleepCtx(ctx, m.cfg.ScanLatency); err != nil {
		return nil, err
	}
	out := make([]provision.NetworkInfo, len(m.cfg.Networks))
	copy(out, m.cfg.Networks)
	return out, nil
}

// Connect succeeds for any known SSID unless the password is FailPassword.
func (m *Mock) Connect(ctx context.Context, req provision.ConnectRequest) (provision.ConnectResult, error) {
	if err := sleepCtx(ctx, m.cfg.ConnectLatency); err != nil {
		return provision.ConnectResult{}, err
	}
	if !m.known(req.SSID) {
		return provision.ConnectResult{}, errors.New(MsgNetworkNotFound)
	}
	if req.Password == m.cfg.FailPassword {
		return provision.ConnectResult{}, errors.New(MsgAuthFailed)
	}

	m.mu.Lock()
	m.connected = req.SSID
	m.mu.Unlock()
	return provision.ConnectResult{Success: true, IP: m.cfg.IP}, nil
}

// LinkState reports AP mode until a connect succeeds.
func (m *Mock) LinkState(ctx context.Context) (LinkState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connected == "" {
		return LinkState{Mode: ModeAP, Interface: "mock0"}, nil
	}
	return LinkState{Mode: ModeConnected, Interface: "mock0", SSID: m.connected, IP: m.cfg.IP}, nil
}

func (m *Mock) known(ssid string) bool {
	for _, n := range m.cfg.Networks {
		if n.SSID == ssid {
			return true
		}
	}
	return false
}
