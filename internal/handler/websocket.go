package handler

import (
	"github.com/gin-gonic/gin"

	"room_link/internal/hub"
	"room_link/pkg/logger"
)

type WebSocketHandler struct {
	hub *hub.Hub
	log logger.Logger
}

func NewWebSocketHandler(h *hub.Hub, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: h, log: log}
}

// Connect hands the request to the hub, which authenticates against the
// session store and performs the upgrade itself.
func (h *WebSocketHandler) Connect(c *gin.Context) {
	roomID := c.Param("id")
	participantID := c.Query("participantId")
	h.hub.Serve(c.Writer, c.Request, roomID, participantID)
}
