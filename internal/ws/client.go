package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"wordclash-backend/internal/game"
	"wordclash-backend/internal/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Outbound queue per connection. A client that falls this far behind
	// is disconnected rather than buffered further.
	sendQueueSize = 256
)

// Client is one WebSocket connection. It satisfies the connection surface
// rooms and the lobby registry expect: a non-blocking Send and an
// idempotent Close. All writes to the socket happen on the write pump.
type Client struct {
	conn   *websocket.Conn
	hub    *Hub
	send   chan []byte
	id     string
	ip     string
	logger *logging.Logger

	mutex  sync.RWMutex
	closed bool

	connectedAt time.Time
}

func newClient(conn *websocket.Conn, hub *Hub, id, ip string) *Client {
	return &Client{
		conn:        conn,
		hub:         hub,
		send:        make(chan []byte, sendQueueSize),
		id:          id,
		ip:          ip,
		logger:      logging.CreateLogger("ws.client", "connId", id),
		connectedAt: time.Now(),
	}
}

// ID returns the connection identifier.
func (c *Client) ID() string {
	return c.id
}

// IP returns the resolved client address.
func (c *Client) IP() string {
	return c.ip
}

// Send marshals v and queues it for the write pump. Returns false when the
// message was not queued: marshal failure, connection closed, or queue
// full. A full queue closes the connection, the client is too far behind.
func (c *Client) Send(v interface{}) bool {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("marshaling outbound message", "error", err.Error())
		return false
	}

	c.mutex.RLock()
	if c.closed {
		c.mutex.RUnlock()
		return false
	}
	select {
	case c.send <- data:
		c.mutex.RUnlock()
		return true
	default:
	}
	c.mutex.RUnlock()

	c.logger.Warn("send queue full, closing connection")
	c.Close()
	return false
}

// Close shuts the connection down. Safe to call from any goroutine, any
// number of times.
func (c *Client) Close() {
	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mutex.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.conn.Close()
}

// IsClosed reports whether Close has run.
func (c *Client) IsClosed() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.closed
}

// run starts the read and write pumps.
func (c *Client) run() {
	go c.writePump()
	go c.readPump()
}

// readPump owns all reads on the connection. Messages pass the rate check
// and then dispatch to the message handler; the pump exits on the first
// read error and unregisters the client.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
	}()

	// The read limit is a hard backstop at twice the policy cap. Frames
	// between the two are answered with an error by the rate check below
	// instead of a 1009 close.
	c.conn.SetReadLimit(2 * c.hub.maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("read failed", "error", err.Error())
			}
			return
		}

		if sm := c.hub.security; sm != nil {
			switch err := sm.CheckMessageRate(c.id, len(data)); err {
			case nil:
			case ErrRateLimited:
				c.Send(game.ErrorMessage{
					Type:    game.TypeError,
					Code:    "RATE_LIMITED",
					Message: "too many messages, slow down",
				})
				continue
			case ErrMessageTooLarge:
				c.Send(game.ErrorMessage{
					Type:    game.TypeError,
					Code:    "INVALID_MESSAGE",
					Message: "message too large",
				})
				continue
			default:
				c.logger.Warn("message rejected", "error", err.Error())
				return
			}
		}

		c.hub.handler.Handle(c, data)
	}
}

// writePump owns all writes: queued messages, pings, and the final close
// frame when the send queue is closed under it.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
