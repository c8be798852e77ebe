package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/muurk/wifiprov/internal/logging"
	"github.com/muurk/wifiprov/internal/metrics"
	"github.com/muurk/wifiprov/internal/protocol"
	"github.com/muurk/wifiprov/internal/provision"
)

// submitTimeout bounds how long a read pump waits for the session to admit
// or reject a request.
const submitTimeout = 5 * time.Second

// ErrRateLimited is sent to clients that exceed their event budget.
var ErrRateLimited = errors.New(provision.RateLimitMessage)

// Session is the part of *provision.Session the hub drives.
type Session interface {
	Scan(ctx context.Context, origin provision.Origin) (uint64, error)
	Connect(ctx context.Context, req provision.ConnectRequest, origin provision.Origin) (uint64, error)
}

// Config holds hub settings.
type Config struct {
	// AllowedOrigins lists browser origins allowed to open the channel.
	// Requests without an Origin header and same-host origins are always
	// allowed. "*" allows everything.
	AllowedOrigins []string

	// SendBuffer is the per-client outbound queue length.
	SendBuffer int

	// RateLimit is the sustained number of inbound events per second per
	// client; RateBurst is the bucket size. Zero disables limiting.
	RateLimit float64
	RateBurst int
}

// DefaultConfig returns the standard hub settings.
func DefaultConfig() Config {
	return Config{
		SendBuffer: 16,
		RateLimit:  5,
		RateBurst:  10,
	}
}

// Hub bridges UI channel clients to the shared session. It implements
// provision.Publisher: every outcome is broadcast to all connected clients,
// while rejections go only to the client that made the request.
type Hub struct {
	session  Session
	cfg      Config
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool
	wg      sync.WaitGroup
}

var _ provision.Publisher = (*Hub)(nil)

// NewHub creates a hub that submits requests to session.
func NewHub(session Session, cfg Config) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultConfig().SendBuffer
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		session: session,
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		clients: make(map[*Client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// ServeHTTP upgrades the request to a WebSocket and starts the client pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error
		logging.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	c := &Client{
		id:         uuid.NewString(),
		hub:        h,
		conn:       conn,
		remoteAddr: r.RemoteAddr,
		send:       make(chan []byte, h.cfg.SendBuffer),
		done:       make(chan struct{}),
	}
	if h.cfg.RateLimit > 0 {
		burst := h.cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(h.cfg.RateLimit), burst)
	}

	if !h.register(c) {
		_ = conn.Close()
		return
	}

	logging.LogConnection(c.remoteAddr, c.id, "websocket_upgraded")

	go func() {
		defer h.wg.Done()
		c.writePump()
	}()
	go func() {
		defer h.wg.Done()
		c.readPump()
	}()
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.wg.Add(2)
	metrics.ConnectedClients.Inc()
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if ok {
		metrics.ConnectedClients.Dec()
		logging.LogConnection(c.remoteAddr, c.id, "websocket_closed")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish broadcasts an outcome to every connected client. A client whose
// send queue is full is disconnected rather than allowed to stall the others.
func (h *Hub) Publish(o provision.Outcome) {
	frame, err := protocol.BuildOutcome(o)
	if err != nil {
		logging.Error("Failed to encode outcome",
			zap.Uint64("request_id", o.RequestID),
			zap.Error(err),
		)
		return
	}

	event := protocol.OutcomeEvent(o)

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	logging.Debug("Broadcasting outcome",
		zap.Uint64("request_id", o.RequestID),
		zap.String("event", event),
		zap.Int("clients", len(clients)),
	)

	for _, c := range clients {
		if !c.enqueue(event, frame) {
			logging.Warn("Dropping slow client",
				zap.String("client_id", c.id),
				zap.String("remote_addr", c.remoteAddr),
			)
			c.close()
		}
	}
}

// Close disconnects every client and waits for their pumps to exit.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	h.cancel()
	for _, c := range clients {
		c.close()
	}
	h.wg.Wait()
}

// handle processes one inbound frame from c.
func (h *Hub) handle(c *Client, data []byte) {
	req, err := protocol.ParseRequest(data)
	if req.Event != "" {
		metrics.ChannelEvent("in", req.Event)
	}
	logging.LogChannelEvent(c.id, "received", req.Event, len(data))

	switch {
	case errors.Is(err, protocol.ErrMalformed), errors.Is(err, protocol.ErrUnknownEvent):
		logging.Warn("Ignoring inbound message",
			zap.String("client_id", c.id),
			zap.String("event", req.Event),
			zap.Error(err),
		)
		return
	case errors.Is(err, protocol.ErrInvalidPayload):
		c.reject(req.Event, provision.NewValidationError(req.Op, "invalid connect_wifi payload"))
		return
	case err != nil:
		logging.Warn("Failed to parse inbound message", zap.String("client_id", c.id), zap.Error(err))
		return
	}

	if c.limiter != nil && !c.limiter.Allow() {
		logging.Warn("Client rate limited",
			zap.String("client_id", c.id),
			zap.String("event", req.Event),
		)
		c.reject(req.Event, ErrRateLimited)
		return
	}

	ctx, cancel := context.WithTimeout(h.ctx, submitTimeout)
	defer cancel()

	origin := provision.Origin{ClientID: c.id, Event: req.Event}
	switch req.Op {
	case provision.OpConnect:
		_, err = h.session.Connect(ctx, req.Connect, origin)
	default:
		_, err = h.session.Scan(ctx, origin)
	}
	if err != nil {
		c.reject(req.Event, err)
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// Allow same-origin (no Origin header)
	if origin == "" {
		return true
	}

	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || origin == allowed {
			return true
		}
	}

	if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
		return true
	}

	logging.Warn("WebSocket origin rejected",
		zap.String("origin", origin),
		zap.String("remote_addr", r.RemoteAddr),
	)
	return false
}
