// Package gateway connects browser UI clients to the provisioning session
// over WebSocket.
//
// Each client gets a read pump that turns inbound events into session
// requests and a write pump that drains a bounded send queue. The hub is
// subscribed to the session as a publisher: terminal outcomes are broadcast
// to every connected client, so a UI that reconnected mid-operation still
// sees the result. Busy, validation and rate-limit rejections are sent only
// to the client that made the request.
package gateway
