package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/wifiprov/internal/logging"
	"github.com/muurk/wifiprov/internal/protocol"
	"github.com/muurk/wifiprov/internal/provision"
	"github.com/muurk/wifiprov/internal/server"
)

const (
	// DefaultTimeout bounds a single round trip. It exceeds the server's
	// connect timeout so a server-side timeout is reported rather than ours.
	DefaultTimeout = 45 * time.Second

	// DefaultMaxRetries is the number of extra dial attempts
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the delay before the first dial retry
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultMaxRetryDelay caps the exponential backoff
	DefaultMaxRetryDelay = 5 * time.Second
)

// ErrNotOpen is returned by round trips made before Open or after Close.
var ErrNotOpen = errors.New("channel not open")

// Client talks to a provisioning portal over its WebSocket channel.
type Client struct {
	// URL is the channel endpoint (e.g., "ws://192.168.4.1/ws")
	URL string

	Dialer     *websocket.Dialer
	HTTPClient *http.Client

	// Timeout bounds each round trip when ctx has no earlier deadline
	Timeout time.Duration

	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration

	// mu serializes round trips on the single connection
	mu   sync.Mutex
	conn *websocket.Conn
}

// New creates a client for the channel endpoint at wsURL.
func New(wsURL string) *Client {
	return &Client{
		URL:           wsURL,
		Dialer:        &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		HTTPClient:    &http.Client{Timeout: 10 * time.Second},
		Timeout:       DefaultTimeout,
		MaxRetries:    DefaultMaxRetries,
		RetryDelay:    DefaultRetryDelay,
		MaxRetryDelay: DefaultMaxRetryDelay,
	}
}

// SetRetry configures dial retry behavior
func (c *Client) SetRetry(maxRetries int, retryDelay time.Duration) {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
}

// Open dials the channel, retrying transient failures with exponential backoff.
func (c *Client) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	var lastErr error
	delay := c.RetryDelay
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.MaxRetryDelay {
				delay = c.MaxRetryDelay
			}
		}

		conn, resp, err := c.Dialer.DialContext(ctx, c.URL, nil)
		if err == nil {
			conn.SetReadLimit(1 << 20)
			c.conn = conn
			logging.Debug("Channel open", zap.String("url", c.URL), zap.Int("attempt", attempt+1))
			return nil
		}

		lastErr = fmt.Errorf("failed to dial %s: %w", c.URL, err)
		if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return fmt.Errorf("%w (HTTP %d)", lastErr, resp.StatusCode)
		}
		if ctx.Err() != nil {
			return lastErr
		}
		logging.Debug("Dial failed, retrying", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return lastErr
}

// Close closes the channel.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Networks asks for the network list (get_networks).
func (c *Client) Networks(ctx context.Context) ([]provision.NetworkInfo, error) {
	return c.scan(ctx, protocol.EventGetNetworks)
}

// Scan asks for a fresh scan (scan_wifi).
func (c *Client) Scan(ctx context.Context) ([]provision.NetworkInfo, error) {
	return c.scan(ctx, protocol.EventScanWifi)
}

func (c *Client) scan(ctx context.Context, event string) ([]provision.NetworkInfo, error) {
	frame, err := protocol.BuildRequest(event, nil)
	if err != nil {
		return nil, err
	}
	env, err := c.roundTrip(ctx, event, frame)
	if err != nil {
		return nil, err
	}
	res, err := protocol.DecodeScanResult(env)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, provision.ParseWireMessage(provision.OpScan, res.Error)
	}
	return res.Networks, nil
}

// Connect asks the portal to join a network (connect_wifi) and returns the
// address it obtained.
func (c *Client) Connect(ctx context.Context, req provision.ConnectRequest) (string, error) {
	frame, err := protocol.BuildConnectRequest(req)
	if err != nil {
		return "", err
	}
	env, err := c.roundTrip(ctx, protocol.EventConnectWifi, frame)
	if err != nil {
		return "", err
	}
	res, err := protocol.DecodeConnectResult(env)
	if err != nil {
		return "", err
	}
	if !res.Success {
		return "", provision.ParseWireMessage(provision.OpConnect, res.Error)
	}
	return res.IP, nil
}

// roundTrip sends frame and waits for the first reply event of inbound.
// Other events (broadcasts of other clients' results) are skipped.
func (c *Client) roundTrip(ctx context.Context, inbound string, frame []byte) (*protocol.Envelope, error) {
	want, ok := protocol.ReplyEvent(inbound)
	if !ok {
		return nil, fmt.Errorf("%w: %s", protocol.ErrUnknownEvent, inbound)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, ErrNotOpen
	}
	conn := c.conn

	deadline := time.Now().Add(c.Timeout)
	ctxDeadline := false
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline, ctxDeadline = d, true
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return nil, err
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	// Unblock the read when ctx is cancelled.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.UnderlyingConn().SetReadDeadline(time.Now())
	})
	defer stop()

	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", inbound, err)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			// A failed read leaves the connection unusable.
			_ = conn.Close()
			c.conn = nil
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			var ne net.Error
			if ctxDeadline && errors.As(err, &ne) && ne.Timeout() {
				return nil, context.DeadlineExceeded
			}
			return nil, fmt.Errorf("waiting for %s: %w", want, err)
		}
		env, err := protocol.ParseEnvelope(data)
		if err != nil {
			logging.Debug("Skipping unreadable frame", zap.Error(err))
			continue
		}
		if env.Event != want {
			logging.Debug("Skipping event", zap.String("event", env.Event), zap.String("want", want))
			continue
		}
		return env, nil
	}
}

// Status fetches the portal's /api/v1/status document.
func (c *Client) Status(ctx context.Context) (*server.Status, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid portal URL: %w", err)
	}
	switch u.Scheme {
	case "wss":
		u.Scheme = "https"
	default:
		u.Scheme = "http"
	}
	u.Path = "/api/v1/status"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	var st server.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("failed to parse status: %w", err)
	}
	return &st, nil
}
