package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/muurk/wifiprov/internal/provision"
)

// Inbound events (client to server)
const (
	EventGetNetworks = "get_networks"
	EventScanWifi    = "scan_wifi"
	EventConnectWifi = "connect_wifi"
)

// Outbound events (server to client)
const (
	EventNetworksList     = "networks_list"
	EventScanResults      = "scan_results"
	EventConnectionResult = "connection_result"
)

// MaxMessageSize bounds a single inbound frame.
const MaxMessageSize = 8192

var (
	// ErrMalformed is returned when a frame is not a JSON envelope.
	ErrMalformed = errors.New("malformed message")
	// ErrUnknownEvent is returned for events the server does not handle.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrInvalidPayload is returned when a known event carries unusable data.
	ErrInvalidPayload = errors.New("invalid payload")
)

// Envelope is the framing for every event: {"event": "...", "data": {...}}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ConnectPayload is the data of a connect_wifi event.
type ConnectPayload struct {
	SSID     string  `json:"ssid"`
	Password *string `json:"password,omitempty"`
}

// Request is a decoded inbound event.
type Request struct {
	Event   string
	Op      provision.Operation
	Connect provision.ConnectRequest
}

// ParseEnvelope decodes a single frame.
func ParseEnvelope(data []byte) (*Envelope, error) {
	if len(data) > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrMalformed, len(data), MaxMessageSize)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	env.Event = strings.TrimSpace(env.Event)
	if env.Event == "" {
		return nil, fmt.Errorf("%w: missing event name", ErrMalformed)
	}
	return &env, nil
}

// ParseRequest decodes an inbound frame into a session request.
//
// Errors wrap ErrMalformed, ErrUnknownEvent or ErrInvalidPayload. For the
// last two the returned Request still carries the event name so a result
// shaped rejection can be sent back.
func ParseRequest(data []byte) (Request, error) {
	env, err := ParseEnvelope(data)
	if err != nil {
		return Request{}, err
	}

	req := Request{Event: env.Event}
	switch env.Event {
	case EventGetNetworks, EventScanWifi:
		req.Op = provision.OpScan
		return req, nil

	case EventConnectWifi:
		req.Op = provision.OpConnect
		conn, err := DecodeConnectPayload(env.Data)
		if err != nil {
			return req, err
		}
		req.Connect = conn
		return req, nil

	default:
		return req, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

// DecodeConnectPayload extracts the SSID and optional password. A missing
// or null password becomes the empty string. The SSID is not validated here.
func DecodeConnectPayload(data json.RawMessage) (provision.ConnectRequest, error) {
	if len(data) == 0 || string(data) == "null" {
		return provision.ConnectRequest{}, fmt.Errorf("%w: connect_wifi requires data", ErrInvalidPayload)
	}

	var p ConnectPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return provision.ConnectRequest{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	req := provision.ConnectRequest{SSID: p.SSID}
	if p.Password != nil {
		req.Password = *p.Password
	}
	return req, nil
}

// IsInbound reports whether event is one the server accepts.
func IsInbound(event string) bool {
	switch event {
	case EventGetNetworks, EventScanWifi, EventConnectWifi:
		return true
	}
	return false
}

// ReplyEvent maps an inbound event to the event its result is sent on.
func ReplyEvent(inbound string) (string, bool) {
	switch inbound {
	case EventGetNetworks:
		return EventNetworksList, true
	case EventScanWifi:
		return EventScanResults, true
	case EventConnectWifi:
		return EventConnectionResult, true
	}
	return "", false
}

// DecodeScanResult decodes the data of a networks_list or scan_results event.
func DecodeScanResult(env *Envelope) (provision.ScanResult, error) {
	var r provision.ScanResult
	if env.Event != EventNetworksList && env.Event != EventScanResults {
		return r, fmt.Errorf("%w: %q is not a scan result", ErrUnknownEvent, env.Event)
	}
	if err := json.Unmarshal(env.Data, &r); err != nil {
		return r, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return r, nil
}

// DecodeConnectResult decodes the data of a connection_result event.
func DecodeConnectResult(env *Envelope) (provision.ConnectResult, error) {
	var r provision.ConnectResult
	if env.Event != EventConnectionResult {
		return r, fmt.Errorf("%w: %q is not a connection result", ErrUnknownEvent, env.Event)
	}
	if err := json.Unmarshal(env.Data, &r); err != nil {
		return r, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return r, nil
}
