// Package client is the CLI side of the provisioning channel.
//
// A Client holds one WebSocket connection to a portal and performs
// request/reply round trips on it: each request event is answered by the
// first frame carrying its reply event. Failed results are turned back into
// *provision.Error values so callers can branch on busy, validation,
// timeout or radio failures.
//
//	c := client.New("ws://192.168.4.1/ws")
//	if err := c.Open(ctx); err != nil { ... }
//	defer c.Close()
//	networks, err := c.Scan(ctx)
package client
