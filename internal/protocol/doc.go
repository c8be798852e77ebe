// Package protocol implements the named-event protocol spoken between the
// provisioning UI and the server.
//
// Every WebSocket text frame carries one event:
//
//	{"event": "connect_wifi", "data": {"ssid": "Cafe", "password": "secret"}}
//
// # Events
//
// Inbound (UI to server):
//   - get_networks: request a scan, answered on networks_list
//   - scan_wifi: request a scan, answered on scan_results
//   - connect_wifi {ssid, password?}: answered on connection_result
//
// Outbound (server to UI):
//   - networks_list / scan_results {success, networks, error?}
//   - connection_result {success, ip?, error?}
//
// A request the session rejects (busy, empty SSID) is answered with the same
// result-shaped event, success false and the reason in error.
//
// # Parsing
//
//	req, err := protocol.ParseRequest(frame)
//	switch {
//	case errors.Is(err, protocol.ErrUnknownEvent):
//	    // log and drop
//	case errors.Is(err, protocol.ErrInvalidPayload):
//	    reply, _ := protocol.BuildRejection(req.Event, err)
//	}
//
// # Construction
//
//	frame, err := protocol.BuildOutcome(outcome)
//	frame, err := protocol.BuildRejection(protocol.EventConnectWifi, busyErr)
//
// All functions are stateless and safe for concurrent use.
package protocol
