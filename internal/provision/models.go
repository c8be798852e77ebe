package provision

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Security is the authentication scheme advertised by a wireless network.
type Security int

const (
	SecurityUnknown Security = iota
	SecurityOpen
	SecurityWEP
	SecurityWPA
	SecurityWPA2
	SecurityWPA3
)

// String returns the wire name of the security scheme.
func (s Security) String() string {
	switch s {
	case SecurityOpen:
		return "OPEN"
	case SecurityWEP:
		return "WEP"
	case SecurityWPA:
		return "WPA"
	case SecurityWPA2:
		return "WPA2"
	case SecurityWPA3:
		return "WPA3"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the security scheme as its wire name.
func (s Security) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts any spelling understood by ParseSecurity.
func (s *Security) UnmarshalText(text []byte) error {
	*s = ParseSecurity(string(text))
	return nil
}

// ParseSecurity maps a security description to the strongest scheme it names.
// It understands the wire names as well as nmcli's space separated flag lists
// such as "WPA1 WPA2" or "WPA2 WPA3". An empty description, "--", "none" and
// "open" all mean an open network.
func ParseSecurity(desc string) Security {
	d := strings.ToUpper(strings.TrimSpace(desc))
	switch {
	case d == "" || d == "--" || d == "NONE" || d == "OPEN":
		return SecurityOpen
	case strings.Contains(d, "WPA3") || strings.Contains(d, "SAE"):
		return SecurityWPA3
	case strings.Contains(d, "WPA2") || strings.Contains(d, "RSN"):
		return SecurityWPA2
	case strings.Contains(d, "WPA"):
		return SecurityWPA
	case strings.Contains(d, "WEP"):
		return SecurityWEP
	default:
		return SecurityUnknown
	}
}

// NetworkInfo describes one network seen during a scan.
type NetworkInfo struct {
	SSID     string   `json:"ssid"`
	Security Security `json:"security"`
	// Signal is a 0-100 quality figure used for ordering. Zero means unknown.
	Signal int `json:"signal,omitempty"`
}

// ConnectRequest asks the radio to join a network. An empty Password means
// no credential was supplied.
type ConnectRequest struct {
	SSID     string `json:"ssid"`
	Password string `json:"password,omitempty"`
}

// String renders the request without its credential.
func (r ConnectRequest) String() string {
	if r.Password == "" {
		return fmt.Sprintf("ssid=%q password=none", r.SSID)
	}
	return fmt.Sprintf("ssid=%q password=set", r.SSID)
}

// ConnectResult is the outcome of a connection attempt.
type ConnectResult struct {
	Success bool   `json:"success"`
	IP      string `json:"ip,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ScanResult is the outcome of a scan.
type ScanResult struct {
	Success  bool          `json:"success"`
	Networks []NetworkInfo `json:"networks"`
	Error    string        `json:"error,omitempty"`
}

// SortOrder selects how scan results are ordered.
type SortOrder int

const (
	// SortBySignal orders strongest first, ties broken by SSID.
	SortBySignal SortOrder = iota
	// SortBySSID orders case-insensitively by SSID.
	SortBySSID
)

// ParseSortOrder accepts "signal" or "ssid".
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "signal":
		return SortBySignal, nil
	case "ssid", "name":
		return SortBySSID, nil
	default:
		return SortBySignal, fmt.Errorf("unknown sort order %q (want signal or ssid)", s)
	}
}

func (o SortOrder) String() string {
	if o == SortBySSID {
		return "ssid"
	}
	return "signal"
}

// Normalize drops networks without an SSID, collapses duplicates by SSID
// keeping the strongest entry, and orders the remainder. The returned slice is
// never nil.
func Normalize(networks []NetworkInfo, order SortOrder) []NetworkInfo {
	best := make(map[string]int, len(networks))
	out := make([]NetworkInfo, 0, len(networks))
	for _, n := range networks {
		if n.SSID == "" {
			continue
		}
		if i, ok := best[n.SSID]; ok {
			cur := out[i]
			if n.Signal > cur.Signal || (n.Signal == cur.Signal && cur.Security == SecurityUnknown) {
				out[i] = n
			}
			continue
		}
		best[n.SSID] = len(out)
		out = append(out, n)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if order == SortBySignal && a.Signal != b.Signal {
			return a.Signal > b.Signal
		}
		la, lb := strings.ToLower(a.SSID), strings.ToLower(b.SSID)
		if la != lb {
			return la < lb
		}
		return a.SSID < b.SSID
	})
	return out
}

// Phase is the session's current activity.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseScanning
	PhaseConnecting
)

func (p Phase) String() string {
	switch p {
	case PhaseScanning:
		return "scanning"
	case PhaseConnecting:
		return "connecting"
	default:
		return "idle"
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*p = PhaseIdle
	case "scanning":
		*p = PhaseScanning
	case "connecting":
		*p = PhaseConnecting
	default:
		return fmt.Errorf("unknown phase %q", text)
	}
	return nil
}

// Operation identifies the kind of request.
type Operation int

const (
	OpScan Operation = iota
	OpConnect
)

func (o Operation) String() string {
	if o == OpConnect {
		return "connect"
	}
	return "scan"
}

// MarshalText encodes the operation by name.
func (o Operation) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Origin records which channel client and inbound event produced a request.
// The session carries it through to the outcome untouched.
type Origin struct {
	ClientID string
	Event    string
}

// Outcome is the single terminal result of an accepted request.
type Outcome struct {
	RequestID uint64
	Op        Operation
	Origin    Origin
	SSID      string // connect target; empty for scans

	// Exactly one of Scan or Connect is set, matching Op.
	Scan    *ScanResult
	Connect *ConnectResult

	// Err is a *Error of type Adapter or Timeout when the request failed.
	Err error

	Started  time.Time
	Duration time.Duration
}

// Success reports whether the request succeeded.
func (o Outcome) Success() bool {
	switch o.Op {
	case OpConnect:
		return o.Connect != nil && o.Connect.Success
	default:
		return o.Scan != nil && o.Scan.Success
	}
}

// Label classifies the outcome as "success", "timeout" or "error".
func (o Outcome) Label() string {
	switch {
	case o.Success():
		return "success"
	case IsTimeoutError(o.Err):
		return "timeout"
	default:
		return "error"
	}
}
