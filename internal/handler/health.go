package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"room_link/internal/config"
	"room_link/internal/repository"
)

type HealthHandler struct {
	store       repository.SessionStore
	environment string
}

func NewHealthHandler(store repository.SessionStore, cfg *config.Config) *HealthHandler {
	return &HealthHandler{
		store:       store,
		environment: cfg.Environment,
	}
}

func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"store":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"service":     "room-link",
		"environment": h.environment,
	})
}
