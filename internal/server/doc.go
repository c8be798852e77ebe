// Package server exposes the provisioning gateway and a small HTTP API.
//
// Routes:
//
//	GET /ws             WebSocket channel (see package gateway)
//	GET /api/v1/status  session phase, connected clients, link state, version
//	GET /healthz        {"status":"ok"}
//	GET /metrics        Prometheus metrics, when enabled
//
// Run serves until its context is cancelled, then closes every channel
// client and drains the HTTP server within Config.ShutdownTimeout.
package server
