package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"room_link/internal/domain"
	"room_link/internal/service"
	apperrors "room_link/pkg/errors"
	"room_link/pkg/logger"
)

type RoomHandler struct {
	admission service.AdmissionService
	lifecycle service.LifecycleService
	log       logger.Logger
}

func NewRoomHandler(admission service.AdmissionService, lifecycle service.LifecycleService, log logger.Logger) *RoomHandler {
	return &RoomHandler{
		admission: admission,
		lifecycle: lifecycle,
		log:       log,
	}
}

type CreateRoomRequest struct {
	CreatorName string `json:"creatorName" binding:"required"`
}

func (h *RoomHandler) Create(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(fmt.Errorf("%w: %s", apperrors.ErrValidation, err.Error()))
		return
	}

	room, creator, err := h.admission.CreateRoom(c.Request.Context(), req.CreatorName)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"roomId":        room.RoomID,
		"creatorUserId": creator.UserID,
		"token":         creator.CallToken,
		"shareableLink": h.lifecycle.ShareableLink(room.RoomID),
	})
}

func (h *RoomHandler) List(c *gin.Context) {
	rooms, err := h.lifecycle.ActiveRooms(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	if rooms == nil {
		rooms = []string{}
	}

	c.JSON(http.StatusOK, gin.H{"rooms": rooms, "count": len(rooms)})
}

// participantView is a Participant with the call token stripped: tokens
// are returned only to their owner, never in a room listing.
type participantView struct {
	UserID  string `json:"userId"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"isAdmin"`
}

func (h *RoomHandler) Get(c *gin.Context) {
	room, err := h.admission.GetRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	participants := make([]participantView, 0, len(room.Participants))
	for _, p := range room.Participants {
		participants = append(participants, participantView{
			UserID:  p.UserID,
			Name:    p.Name,
			IsAdmin: p.IsAdmin,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"roomId":           room.RoomID,
		"creatorName":      room.CreatorName,
		"createdAt":        room.CreatedAt,
		"isActive":         room.IsActive,
		"participantCount": len(participants),
		"participants":     participants,
	})
}

type JoinRoomRequest struct {
	Name string `json:"name" binding:"required"`
	// UserID carries a previously issued identity so a reconnecting
	// participant does not produce a duplicate roster entry.
	UserID string `json:"userId"`
}

func (h *RoomHandler) Join(c *gin.Context) {
	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(fmt.Errorf("%w: %s", apperrors.ErrValidation, err.Error()))
		return
	}

	participant, err := h.admission.Join(c.Request.Context(), c.Param("id"), req.Name, req.UserID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"userId": participant.UserID,
		"token":  participant.CallToken,
		"user":   participantUser(participant),
	})
}

type LeaveRoomRequest struct {
	ParticipantID string `json:"participantId" binding:"required"`
}

func (h *RoomHandler) Leave(c *gin.Context) {
	var req LeaveRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(fmt.Errorf("%w: %s", apperrors.ErrValidation, err.Error()))
		return
	}

	ended, err := h.admission.Leave(c.Request.Context(), c.Param("id"), req.ParticipantID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "ended": ended})
}

func (h *RoomHandler) RemoveParticipant(c *gin.Context) {
	roomID := c.Param("id")
	participantID := c.Param("participantId")

	if err := h.admission.Remove(c.Request.Context(), roomID, participantID); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Participant removed"})
}

func (h *RoomHandler) End(c *gin.Context) {
	if err := h.lifecycle.EndRoom(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func participantUser(p *domain.Participant) gin.H {
	return gin.H{
		"id":      p.UserID,
		"name":    p.Name,
		"isAdmin": p.IsAdmin,
	}
}
