package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"room_link/internal/service"
	apperrors "room_link/pkg/errors"
	"room_link/pkg/logger"
)

type CallTokenHandler struct {
	admission service.AdmissionService
	tokens    service.CallTokenService
	log       logger.Logger
}

func NewCallTokenHandler(admission service.AdmissionService, tokens service.CallTokenService, log logger.Logger) *CallTokenHandler {
	return &CallTokenHandler{
		admission: admission,
		tokens:    tokens,
		log:       log,
	}
}

type IssueTokenRequest struct {
	ParticipantID string `json:"participantId" binding:"required"`
}

// Issue mints a fresh call token for a participant already on the
// roster. The stored token may be near expiry after a long session; a
// reissue keeps the video call joinable without a re-join.
func (h *CallTokenHandler) Issue(c *gin.Context) {
	var req IssueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(fmt.Errorf("%w: %s", apperrors.ErrValidation, err.Error()))
		return
	}

	roomID := c.Param("id")
	room, err := h.admission.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		c.Error(err)
		return
	}

	participant := room.FindParticipant(req.ParticipantID)
	if participant == nil {
		c.Error(apperrors.ErrParticipantNotFound)
		return
	}

	token, err := h.tokens.Issue(roomID, participant.UserID, participant.Name, participant.IsAdmin)
	if err != nil {
		h.log.Error("Failed to issue call token", "room_id", roomID, "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  participantUser(participant),
	})
}
