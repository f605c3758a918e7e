package relay

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 70 * time.Second
	pingPeriod = 30 * time.Second
)

// Relay owns the set of live channels and runs the per-connection read
// and write pumps. Each channel moves unbound -> bound -> closed; closing
// unconditionally evicts the channel's identity from the registry, but
// only while the registry still points at this channel.
type Relay struct {
	registry *Registry
	router   *Router
	logger   *slog.Logger
}

func New(registry *Registry, router *Router, logger *slog.Logger) *Relay {
	return &Relay{
		registry: registry,
		router:   router,
		logger:   logger,
	}
}

// HandleConnection serves one websocket connection until it closes. It
// blocks for the lifetime of the connection.
func (r *Relay) HandleConnection(conn *websocket.Conn) {
	id, err := gonanoid.New(16)
	if err != nil {
		r.logger.Error("failed to generate connection id", "error", err)
		_ = conn.Close()
		return
	}

	client := newClient(id, conn)
	r.logger.Debug("channel open", "conn_id", client.ID())

	go r.writePump(client)
	r.readPump(client)
}

func (r *Relay) readPump(client *Client) {
	defer func() {
		client.closeConn()
		identity := client.Identity()
		r.registry.UnbindHandle(identity, client)
		client.closeSend()
		if identity != "" {
			r.logger.Info("user disconnected", "user", identity, "conn_id", client.ID())
		} else {
			r.logger.Debug("channel closed unbound", "conn_id", client.ID())
		}
	}()

	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := client.conn.ReadMessage()
		if err != nil {
			r.logger.Debug("read error", "conn_id", client.ID(), "error", err)
			return
		}
		r.router.Route(payload, client)
	}
}

func (r *Relay) writePump(client *Client) {
	defer client.closeConn()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-client.send:
			if !ok {
				return
			}
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
