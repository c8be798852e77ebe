// Package logging provides structured logging for the provisioning server.
//
// This package wraps a global zap logger with convenience functions for the
// logging patterns used throughout the server.
//
// # Log Levels
//
//   - Debug: channel events, phase transitions
//   - Info: client connections, accepted requests, link mode changes
//   - Warn: failed or stale radio results, dropped clients
//   - Error: startup failures
//
// # Structured Logging
//
// All log functions take zap fields:
//
//	logging.Info("Request accepted",
//	    zap.Uint64("request_id", id),
//	    zap.String("operation", "connect"),
//	)
//
// # Specialized Logging
//
//	logging.LogConnection(remoteAddr, clientID, "websocket_upgraded")
//	logging.LogChannelEvent(clientID, "received", "connect_wifi", len(frame))
//	logging.LogTransition("idle", "connecting", 7)
//	logging.LogLinkChange("ap", "connected", "Cafe", "192.168.1.42")
//
// Payloads are never logged: connect requests carry passwords.
//
// # Configuration
//
// Initialize logging at startup:
//
//	if err := logging.Initialize("info"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// When no level is given, WIFIPROV_LOG_LEVEL is consulted; when that is also
// empty the logger is a no-op, which keeps CLI output clean.
package logging
