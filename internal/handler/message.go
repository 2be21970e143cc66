package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"room_link/internal/domain"
	"room_link/internal/hub"
	"room_link/internal/service"
	apperrors "room_link/pkg/errors"
	"room_link/pkg/logger"
)

type MessageHandler struct {
	messages service.MessageLogService
	hub      *hub.Hub
	log      logger.Logger
}

func NewMessageHandler(messages service.MessageLogService, h *hub.Hub, log logger.Logger) *MessageHandler {
	return &MessageHandler{
		messages: messages,
		hub:      h,
		log:      log,
	}
}

func (h *MessageHandler) List(c *gin.Context) {
	messages, err := h.messages.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages, "count": len(messages)})
}

type PostMessageRequest struct {
	ParticipantID string `json:"participantId" binding:"required"`
	Text          string `json:"text" binding:"required"`
}

// Post is the HTTP fallback for clients without a live socket. The
// message still reaches connected clients through the hub.
func (h *MessageHandler) Post(c *gin.Context) {
	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(fmt.Errorf("%w: %s", apperrors.ErrValidation, err.Error()))
		return
	}

	roomID := c.Param("id")
	msg, err := h.messages.Append(c.Request.Context(), roomID, req.ParticipantID, req.Text, func(msg *domain.Message) {
		h.hub.BroadcastMessage(roomID, msg)
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}
