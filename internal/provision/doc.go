// Package provision implements the Wi-Fi provisioning session: a single,
// process-wide state machine that serializes scan and connect requests
// against a slow radio.
//
// # Phases
//
// The session is always in exactly one of three phases:
//
//	Idle ──scan──▶ Scanning ──result/error/timeout──▶ Idle
//	Idle ──connect──▶ Connecting ──result/error/timeout──▶ Idle
//
// A request that arrives while Scanning or Connecting is rejected with a
// Busy error. Requests are never queued and an in-flight operation is never
// cancelled by a new one. A connect request with an empty SSID is rejected
// with a Validation error before the phase is consulted.
//
// # Request IDs
//
// Every accepted request receives a monotonically increasing id. A radio
// completion is only turned into an Outcome when its id matches the pending
// one; anything else is a stale result, logged and counted but never
// published.
//
// # Timeouts
//
// Scans and connects are bounded (10s and 30s by default). When the bound
// elapses the session publishes a Timeout outcome and returns to Idle. The
// radio's context is cancelled at the same moment, but radios that ignore
// cancellation may keep working in the background; their eventual answer is
// discarded as stale.
//
// # Usage
//
//	s := provision.NewSession(radio, provision.DefaultConfig(),
//	    provision.WithPublisher(hub),
//	    provision.WithRecorder(metrics.Recorder{}),
//	)
//	go s.Run(ctx)
//
//	id, err := s.Connect(ctx, provision.ConnectRequest{SSID: "Cafe"}, origin)
//	if provision.IsBusyError(err) {
//	    // tell the requester to wait
//	}
package provision
