package relay

import (
	"sync"

	"github.com/gorilla/websocket"
)

const clientSendBuffer = 32

// Client is one connected channel. A client starts unbound; the first
// valid message carrying a from identity binds it in the registry.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	mu       sync.Mutex
	identity string

	closeOnce sync.Once
}

func newClient(id string, conn *websocket.Conn) *Client {
	return &Client{
		id:   id,
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
	}
}

// ID is the connection identifier, distinct from the logical identity.
func (c *Client) ID() string {
	return c.id
}

// Identity returns the identity currently bound to this channel, or ""
// while the channel is unbound.
func (c *Client) Identity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

func (c *Client) setIdentity(identity string) {
	c.mu.Lock()
	c.identity = identity
	c.mu.Unlock()
}

// trySend queues payload for the write pump without blocking. It reports
// false when the buffer is full or the send channel is already closed;
// the caller treats either as an unreachable channel.
func (c *Client) trySend(payload []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

func (c *Client) closeConn() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
}
