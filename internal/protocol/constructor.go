package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/muurk/wifiprov/internal/provision"
)

// Build encodes an event with its data into a frame.
func Build(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s data: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s envelope: %w", event, err)
	}
	return frame, nil
}

// BuildRequest encodes an inbound event. data may be nil for scans.
func BuildRequest(event string, data any) ([]byte, error) {
	if data == nil {
		return json.Marshal(Envelope{Event: event})
	}
	return Build(event, data)
}

// BuildConnectRequest encodes a connect_wifi event. The password field is
// omitted when empty.
func BuildConnectRequest(req provision.ConnectRequest) ([]byte, error) {
	p := ConnectPayload{SSID: req.SSID}
	if req.Password != "" {
		p.Password = &req.Password
	}
	return Build(EventConnectWifi, p)
}

// OutcomeEvent returns the event an outcome is reported on: the reply event
// of the request that produced it. Scans that did not originate from a known
// event are reported on scan_results.
func OutcomeEvent(o provision.Outcome) string {
	if o.Op == provision.OpConnect {
		return EventConnectionResult
	}
	event, ok := ReplyEvent(o.Origin.Event)
	if !ok || event == EventConnectionResult {
		return EventScanResults
	}
	return event
}

// BuildOutcome encodes a session outcome on its OutcomeEvent.
func BuildOutcome(o provision.Outcome) ([]byte, error) {
	switch o.Op {
	case provision.OpConnect:
		if o.Connect == nil {
			return nil, fmt.Errorf("connect outcome %d has no result", o.RequestID)
		}
		return Build(EventConnectionResult, o.Connect)

	default:
		if o.Scan == nil {
			return nil, fmt.Errorf("scan outcome %d has no result", o.RequestID)
		}
		scan := *o.Scan
		if scan.Networks == nil {
			scan.Networks = []provision.NetworkInfo{}
		}
		return Build(OutcomeEvent(o), scan)
	}
}

// BuildRejection encodes a failed, result-shaped reply to inbound for a
// request the session did not accept (busy, validation, closed).
func BuildRejection(inbound string, err error) ([]byte, error) {
	event, ok := ReplyEvent(inbound)
	if !ok {
		return nil, fmt.Errorf("%w: %q has no reply event", ErrUnknownEvent, inbound)
	}

	msg := provision.WireMessage(err)
	if event == EventConnectionResult {
		return Build(event, provision.ConnectResult{Success: false, Error: msg})
	}
	return Build(event, provision.ScanResult{Success: false, Networks: []provision.NetworkInfo{}, Error: msg})
}
