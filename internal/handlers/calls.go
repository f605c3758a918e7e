package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

type statusResponse struct {
	ConnectedUsers int    `json:"connectedUsers"`
	ServerStatus   string `json:"serverStatus"`
}

// GetUserCalls returns the most recent call records involving the user,
// newest first, capped at ten.
func (h *Handlers) GetUserCalls(c *gin.Context) {
	userID := c.Param("user_id")

	records, err := h.calls.RecentCalls(userID, 0)
	if err != nil {
		slog.Default().Error("failed to fetch calls", "user", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch calls"})
		return
	}

	c.JSON(http.StatusOK, records)
}

// GetStatus reports how many users currently hold a live channel.
func (h *Handlers) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, statusResponse{
		ConnectedUsers: h.registry.Count(),
		ServerStatus:   "running",
	})
}
