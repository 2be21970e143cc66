package handler

import (
	"room_link/internal/config"
	"room_link/internal/hub"
	"room_link/internal/repository"
	"room_link/internal/service"
	"room_link/pkg/logger"
)

type Handlers struct {
	Health    *HealthHandler
	Room      *RoomHandler
	Message   *MessageHandler
	CallToken *CallTokenHandler
	WebSocket *WebSocketHandler
}

func NewHandlers(services *service.Services, h *hub.Hub, store repository.SessionStore, cfg *config.Config, log logger.Logger) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(store, cfg),
		Room:      NewRoomHandler(services.Admission, services.Lifecycle, log),
		Message:   NewMessageHandler(services.Messages, h, log),
		CallToken: NewCallTokenHandler(services.Admission, services.CallTokens, log),
		WebSocket: NewWebSocketHandler(h, log),
	}
}
