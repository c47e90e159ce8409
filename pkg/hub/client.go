package hub

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Dashboard socket timings. Dashboards only listen, so reads exist to
// notice disconnects and to answer pings.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4 * 1024
	clientBuffer   = 256
)

// Client is one dashboard connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// NewClient creates a client and joins it to the hub. It returns nil when
// the hub has stopped.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	c := &Client{hub: hub, conn: conn, send: make(chan Message, clientBuffer)}
	if !hub.join(c) {
		return nil
	}
	return c
}

// Handler returns the Fiber websocket handler serving this hub.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		if c := NewClient(h, conn); c != nil {
			c.Run()
		}
	})
}

// Run forwards hub updates to the dashboard until either side goes away.
// It blocks in the caller's goroutine.
func (c *Client) Run() {
	go c.forward()
	c.drain()
}

// drain discards incoming frames; the connection is dead once a read fails.
func (c *Client) drain() {
	defer c.hub.leave(c)
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	extend := func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) }
	_ = extend("")
	c.conn.SetPongHandler(extend)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// forward owns all writes to the connection.
func (c *Client) forward() {
	keepalive := time.NewTicker(pingPeriod)
	defer keepalive.Stop()
	defer c.conn.Close()

	for {
		var err error
		select {
		case msg, open := <-c.send:
			if !open {
				_ = c.write(websocket.CloseMessage, nil)
				return
			}
			err = c.write(websocket.TextMessage, msg.Data)
		case <-keepalive.C:
			err = c.write(websocket.PingMessage, nil)
		}
		if err != nil {
			return
		}
	}
}

func (c *Client) write(kind int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(kind, data)
}
