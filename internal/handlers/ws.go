package handlers

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

// HandleWebSocket upgrades the request and hands the connection to the
// relay. No handshake: the first message a client sends establishes its
// identity.
func (h *Handlers) HandleWebSocket(c *gin.Context) {
	conn, err := h.wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Default().Warn("ws upgrade failed", "ip", c.ClientIP(), "error", err)
		return
	}

	h.relay.HandleConnection(conn)
}
