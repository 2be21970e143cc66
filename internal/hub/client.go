package hub

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"room_link/internal/domain"
	apperrors "room_link/pkg/errors"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	sendBufferSize = 256
	appendTimeout  = 5 * time.Second
)

// client is one live websocket connection bound to a room and a roster
// identity. The read pump is the only reader and the write pump the only
// writer of the underlying connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	roomID        string
	participantID string
}

func newClient(h *Hub, conn *websocket.Conn, roomID, participantID string) *client {
	return &client{
		hub:           h,
		conn:          conn,
		send:          make(chan []byte, sendBufferSize),
		roomID:        roomID,
		participantID: participantID,
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.detach(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("Connection read error", "room_id", c.roomID, "user_id", c.participantID, "error", err)
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			c.hub.log.Debug("Discarding malformed frame", "room_id", c.roomID, "user_id", c.participantID)
			continue
		}

		switch ev.Event {
		case EventChatMessage:
			if done := c.handleChat(ev.Data); done {
				return
			}
		case EventJoinRoom:
			// Legacy re-join signal. The connection was admitted to exactly
			// one room at upgrade time; a join naming any other room is
			// ignored rather than honored.
			var roomID string
			if err := json.Unmarshal(ev.Data, &roomID); err == nil && roomID != c.roomID {
				c.hub.log.Debug("Ignoring join for foreign room", "room_id", c.roomID, "requested", roomID)
			}
		default:
			c.hub.log.Debug("Discarding unknown event", "room_id", c.roomID, "event", ev.Event)
		}
	}
}

// handleChat persists the text through the message log and enqueues the
// fan-out from inside the log's append section, so the hub sees
// broadcasts in exactly log order. Persist-then-broadcast: a message no
// subscriber ever sees can still be in the log, never the reverse.
// Returns true when the connection should close.
func (c *client) handleChat(data json.RawMessage) bool {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		c.hub.log.Debug("Discarding malformed chat payload", "room_id", c.roomID, "user_id", c.participantID)
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	_, err := c.hub.messages.Append(ctx, c.roomID, c.participantID, text, func(msg *domain.Message) {
		c.hub.BroadcastMessage(c.roomID, msg)
	})
	cancel()
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrRoomNotFound),
			errors.Is(err, apperrors.ErrRoomGone),
			errors.Is(err, apperrors.ErrParticipantNotFound):
			// The room or this identity no longer exists; the connection
			// has outlived its authorization.
			return true
		case errors.Is(err, apperrors.ErrValidation):
			return false
		default:
			c.hub.log.Error("Failed to persist chat message", "room_id", c.roomID, "error", err)
			return false
		}
	}
	return false
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
