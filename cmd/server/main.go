package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"room_link/internal/config"
	"room_link/internal/handler"
	"room_link/internal/hub"
	"room_link/internal/metrics"
	"room_link/internal/middleware"
	"room_link/internal/repository"
	"room_link/internal/service"
	"room_link/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Log.Level)

	store, err := newStore(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize session store", "error", err)
	}
	defer store.Close()

	services := service.NewServices(store, cfg, appLogger)

	h := hub.New(store, services.Messages, appLogger)
	hubCtx, stopHub := context.WithCancel(context.Background())
	go h.Run(hubCtx)

	services.BindEvictor(h)

	handlers := handler.NewHandlers(services, h, store, cfg, appLogger)

	router := setupRouter(handlers, cfg, appLogger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLogger.Info("Starting server", "addr", srv.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Fatal("Server forced to shutdown", "error", err)
	}

	stopHub()
	appLogger.Info("Server exited")
}

// newStore picks the backend from config. An empty Redis address selects
// the in-process store, which keeps local development dependency-free.
func newStore(cfg *config.Config, appLogger logger.Logger) (repository.SessionStore, error) {
	if cfg.Redis.Addr == "" {
		appLogger.Info("Using in-memory session store")
		return repository.NewMemoryStore(), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	appLogger.Info("Redis connection established", "addr", cfg.Redis.Addr)
	return repository.NewRedisStore(rdb, appLogger), nil
}

func setupRouter(handlers *handler.Handlers, cfg *config.Config, appLogger logger.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.App.AllowOrigin))
	router.Use(middleware.RequestLogger(appLogger))
	router.Use(middleware.ErrorHandler())

	router.GET("/health", handlers.Health.Check)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	router.GET("/ws/rooms/:id", handlers.WebSocket.Connect)

	api := router.Group("/api/v1")
	{
		rooms := api.Group("/rooms")
		{
			rooms.POST("", handlers.Room.Create)
			rooms.GET("", handlers.Room.List)
			rooms.GET("/:id", handlers.Room.Get)
			rooms.POST("/:id/join", handlers.Room.Join)
			rooms.POST("/:id/leave", handlers.Room.Leave)
			rooms.POST("/:id/end", handlers.Room.End)
			rooms.DELETE("/:id/participants/:participantId", handlers.Room.RemoveParticipant)
			rooms.GET("/:id/messages", handlers.Message.List)
			rooms.POST("/:id/messages", handlers.Message.Post)
			rooms.POST("/:id/call/token", handlers.CallToken.Issue)
		}
	}

	return router
}
