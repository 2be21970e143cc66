package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"room_link/internal/config"
	"room_link/internal/hub"
	"room_link/internal/middleware"
	"room_link/internal/repository"
	"room_link/internal/service"
	"room_link/pkg/logger"
)

func newTestRouter(t *testing.T) (*gin.Engine, *service.Services) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	cfg := &config.Config{
		Environment: "test",
		Room:        config.RoomConfig{TTL: time.Minute},
		LiveKit: config.LiveKitConfig{
			APIKey:    "devkey",
			APISecret: "devsecret_devsecret_devsecret_00",
			TokenTTL:  time.Hour,
		},
		App: config.AppConfig{URL: "http://localhost:3000"},
	}

	services := service.NewServices(store, cfg, logger.Nop())

	h := hub.New(store, services.Messages, logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	services.BindEvictor(h)

	t.Cleanup(func() {
		cancel()
		store.Close()
	})

	handlers := NewHandlers(services, h, store, cfg, logger.Nop())

	router := gin.New()
	router.Use(middleware.ErrorHandler())
	router.GET("/health", handlers.Health.Check)
	api := router.Group("/api/v1")
	rooms := api.Group("/rooms")
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

	return router, services
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func createRoom(t *testing.T, router *gin.Engine, name string) (roomID, creatorID, token string) {
	t.Helper()
	rec, body := doJSON(t, router, http.MethodPost, "/api/v1/rooms", gin.H{"creatorName": name})
	require.Equal(t, http.StatusCreated, rec.Code)
	return body["roomId"].(string), body["creatorUserId"].(string), body["token"].(string)
}

func TestCreateRoomEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, body := doJSON(t, router, http.MethodPost, "/api/v1/rooms", gin.H{"creatorName": "alice"})
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.NotEmpty(t, body["roomId"])
	assert.NotEmpty(t, body["creatorUserId"])
	assert.NotEmpty(t, body["token"])
	assert.Equal(t, "http://localhost:3000/join/"+body["roomId"].(string), body["shareableLink"])
}

func TestCreateRoomRejectsMissingCreatorName(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, body := doJSON(t, router, http.MethodPost, "/api/v1/rooms", gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body, "error")

	// The create body takes creatorName; the join body's "name" field is
	// not accepted here.
	rec, _ = doJSON(t, router, http.MethodPost, "/api/v1/rooms", gin.H{"name": "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRoomHidesTokens(t *testing.T) {
	router, _ := newTestRouter(t)
	roomID, _, _ := createRoom(t, router, "alice")

	rec, body := doJSON(t, router, http.MethodGet, "/api/v1/rooms/"+roomID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, roomID, body["roomId"])
	assert.Equal(t, float64(1), body["participantCount"])

	participants := body["participants"].([]interface{})
	require.Len(t, participants, 1)
	entry := participants[0].(map[string]interface{})
	assert.Equal(t, "alice", entry["name"])
	assert.Equal(t, true, entry["isAdmin"])
	assert.NotContains(t, entry, "token")
}

func TestGetMissingRoom(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, _ := doJSON(t, router, http.MethodGet, "/api/v1/rooms/no-such-room", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJoinAndListMessagesFlow(t *testing.T) {
	router, _ := newTestRouter(t)
	roomID, _, _ := createRoom(t, router, "alice")

	rec, joinBody := doJSON(t, router, http.MethodPost, "/api/v1/rooms/"+roomID+"/join", gin.H{"name": "bob"})
	require.Equal(t, http.StatusOK, rec.Code)
	bobID := joinBody["userId"].(string)
	assert.NotEmpty(t, joinBody["token"])

	user := joinBody["user"].(map[string]interface{})
	assert.Equal(t, "bob", user["name"])
	assert.Equal(t, false, user["isAdmin"])

	rec, msgBody := doJSON(t, router, http.MethodPost, "/api/v1/rooms/"+roomID+"/messages", gin.H{
		"participantId": bobID,
		"text":          "hello",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	sender := msgBody["sender"].(map[string]interface{})
	assert.Equal(t, bobID, sender["senderId"])

	rec, listBody := doJSON(t, router, http.MethodGet, "/api/v1/rooms/"+roomID+"/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), listBody["count"])

	rec, _ = doJSON(t, router, http.MethodPost, "/api/v1/rooms/"+roomID+"/messages", gin.H{
		"participantId": "stranger",
		"text":          "hi",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLeaveEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	roomID, creatorID, _ := createRoom(t, router, "alice")

	rec, joinBody := doJSON(t, router, http.MethodPost, "/api/v1/rooms/"+roomID+"/join", gin.H{"name": "bob"})
	require.Equal(t, http.StatusOK, rec.Code)
	bobID := joinBody["userId"].(string)

	rec, body := doJSON(t, router, http.MethodPost, "/api/v1/rooms/"+roomID+"/leave", gin.H{"participantId": bobID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["ended"])

	rec, body = doJSON(t, router, http.MethodPost, "/api/v1/rooms/"+roomID+"/leave", gin.H{"participantId": creatorID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ended"])

	rec, _ = doJSON(t, router, http.MethodGet, "/api/v1/rooms/"+roomID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRemoveParticipantEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	roomID, creatorID, _ := createRoom(t, router, "alice")

	rec, joinBody := doJSON(t, router, http.MethodPost, "/api/v1/rooms/"+roomID+"/join", gin.H{"name": "bob"})
	require.Equal(t, http.StatusOK, rec.Code)
	bobID := joinBody["userId"].(string)

	rec, _ = doJSON(t, router, http.MethodDelete, "/api/v1/rooms/"+roomID+"/participants/"+bobID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, router, http.MethodDelete, "/api/v1/rooms/"+roomID+"/participants/"+bobID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doJSON(t, router, http.MethodDelete, "/api/v1/rooms/"+roomID+"/participants/"+creatorID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEndRoomEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	roomID, _, _ := createRoom(t, router, "alice")

	rec, _ := doJSON(t, router, http.MethodPost, "/api/v1/rooms/"+roomID+"/end", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, router, http.MethodGet, "/api/v1/rooms/"+roomID, nil)
	assert.Equal(t, http.StatusGone, rec.Code)

	rec, _ = doJSON(t, router, http.MethodPost, "/api/v1/rooms/"+roomID+"/join", gin.H{"name": "late"})
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestListRoomsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, body := doJSON(t, router, http.MethodGet, "/api/v1/rooms", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), body["count"])

	roomID, _, _ := createRoom(t, router, "alice")

	rec, body = doJSON(t, router, http.MethodGet, "/api/v1/rooms", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])
	assert.Contains(t, body["rooms"].([]interface{}), roomID)
}

func TestReissueCallToken(t *testing.T) {
	router, _ := newTestRouter(t)
	roomID, creatorID, _ := createRoom(t, router, "alice")

	rec, body := doJSON(t, router, http.MethodPost, "/api/v1/rooms/"+roomID+"/call/token", gin.H{"participantId": creatorID})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.NotEmpty(t, body["token"])
	user := body["user"].(map[string]interface{})
	assert.Equal(t, creatorID, user["id"])
	assert.Equal(t, true, user["isAdmin"])

	rec, _ = doJSON(t, router, http.MethodPost, "/api/v1/rooms/"+roomID+"/call/token", gin.H{"participantId": "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, body := doJSON(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}
