package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/muurk/wifiprov/internal/logging"
	"github.com/muurk/wifiprov/internal/metrics"
	"github.com/muurk/wifiprov/internal/protocol"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10
)

// Client is one UI channel connection.
type Client struct {
	id         string
	hub        *Hub
	conn       *websocket.Conn
	remoteAddr string
	limiter    *rate.Limiter

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// ID returns the client's connection id.
func (c *Client) ID() string { return c.id }

// enqueue queues a frame without blocking. It returns false when the queue
// is full.
func (c *Client) enqueue(event string, frame []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}

	select {
	case c.send <- frame:
		metrics.ChannelEvent("out", event)
		logging.LogChannelEvent(c.id, "sent", event, len(frame))
		return true
	case <-c.done:
		return true
	default:
		return false
	}
}

// reject sends a result-shaped failure for inbound to this client only.
func (c *Client) reject(inbound string, err error) {
	frame, buildErr := protocol.BuildRejection(inbound, err)
	if buildErr != nil {
		logging.Warn("Failed to build rejection",
			zap.String("client_id", c.id),
			zap.String("event", inbound),
			zap.Error(buildErr),
		)
		return
	}
	reply, _ := protocol.ReplyEvent(inbound)
	logging.Info("Request rejected",
		zap.String("client_id", c.id),
		zap.String("event", inbound),
		zap.Error(err),
	)
	if !c.enqueue(reply, frame) {
		c.close()
	}
}

// close stops the client. The write pump flushes queued frames and then
// closes the connection.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// readPump reads frames until the connection fails. Disconnecting never
// cancels a request already admitted by the session.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.close()
	}()

	c.conn.SetReadLimit(protocol.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logging.Info("Connection closed with error",
					zap.String("client_id", c.id),
					zap.Error(err),
				)
			}
			return
		}
		if msgType != websocket.TextMessage {
			logging.Debug("Ignoring non-text frame",
				zap.String("client_id", c.id),
				zap.Int("message_type", msgType),
			)
			continue
		}
		c.hub.handle(c, data)
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logging.Debug("Write failed", zap.String("client_id", c.id), zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.drain()
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// drain writes the frames queued before close.
func (c *Client) drain() {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	for {
		select {
		case frame := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logging.Debug("Write failed", zap.String("client_id", c.id), zap.Error(err))
				return
			}
		default:
			return
		}
	}
}
