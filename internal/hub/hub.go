package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"room_link/internal/domain"
	"room_link/internal/metrics"
	"room_link/internal/repository"
	"room_link/internal/service"
	"room_link/pkg/logger"
)

const (
	// EventChatMessage carries raw text from a client and a full Message
	// object from the server.
	EventChatMessage = "chat:msg"

	// EventJoinRoom is the fallback re-join signal. It can only re-assert
	// the room the connection authenticated for.
	EventJoinRoom = "joinRoom"
)

// Event is the wire envelope for the real-time protocol.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	roomID string
	frame  []byte
}

type eviction struct {
	roomID        string
	participantID string // empty evicts the whole room
}

// Hub groups live connections by room and fans chat messages out to
// exactly the connections of one room. It owns connection membership only:
// room state is read from the session store at connect time and never
// written here. A Hub is an explicitly constructed value with a Run
// lifecycle, passed by reference to whoever accepts connections.
type Hub struct {
	store    repository.SessionStore
	messages service.MessageLogService
	log      logger.Logger

	upgrader websocket.Upgrader

	register   chan *client
	unregister chan *client
	broadcast  chan outbound
	evict      chan eviction
	done       chan struct{}

	rooms map[string]map[*client]struct{}
}

func New(store repository.SessionStore, messages service.MessageLogService, log logger.Logger) *Hub {
	return &Hub{
		store:    store,
		messages: messages,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan outbound, 64),
		evict:      make(chan eviction),
		done:       make(chan struct{}),
		rooms:      make(map[string]map[*client]struct{}),
	}
}

// Run is the hub's single event loop. One loop serializes all fan-out, so
// per-room delivery order equals the order broadcasts were enqueued.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for roomID := range h.rooms {
				h.dropRoom(roomID)
			}
			return

		case c := <-h.register:
			group, ok := h.rooms[c.roomID]
			if !ok {
				group = make(map[*client]struct{})
				h.rooms[c.roomID] = group
			}
			group[c] = struct{}{}
			metrics.ConnectionsActive.Inc()
			h.log.Debug("Connection attached", "room_id", c.roomID, "user_id", c.participantID)

		case c := <-h.unregister:
			h.dropClient(c)

		case out := <-h.broadcast:
			for c := range h.rooms[out.roomID] {
				select {
				case c.send <- out.frame:
				default:
					// A full buffer means a stalled reader; drop it so it
					// cannot back-pressure the rest of the room.
					h.log.Warn("Dropping slow connection", "room_id", c.roomID, "user_id", c.participantID)
					h.dropClient(c)
				}
			}
			metrics.MessagesBroadcast.Inc()

		case ev := <-h.evict:
			if ev.participantID == "" {
				h.dropRoom(ev.roomID)
				continue
			}
			for c := range h.rooms[ev.roomID] {
				if c.participantID == ev.participantID {
					h.dropClient(c)
				}
			}
		}
	}
}

// dropClient removes c from its group and closes its send channel. Only
// the Run loop may call this; membership in the group guards against a
// double close.
func (h *Hub) dropClient(c *client) {
	group, ok := h.rooms[c.roomID]
	if !ok {
		return
	}
	if _, ok := group[c]; !ok {
		return
	}
	delete(group, c)
	if len(group) == 0 {
		delete(h.rooms, c.roomID)
	}
	close(c.send)
	metrics.ConnectionsActive.Dec()
}

func (h *Hub) dropRoom(roomID string) {
	for c := range h.rooms[roomID] {
		h.dropClient(c)
	}
}

// BroadcastMessage fans a persisted message out to every live connection
// of the room, the sender included.
func (h *Hub) BroadcastMessage(roomID string, msg *domain.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("Failed to marshal message for broadcast", "room_id", roomID, "error", err)
		return
	}
	frame, err := json.Marshal(Event{Event: EventChatMessage, Data: data})
	if err != nil {
		h.log.Error("Failed to marshal broadcast frame", "room_id", roomID, "error", err)
		return
	}
	select {
	case h.broadcast <- outbound{roomID: roomID, frame: frame}:
	case <-h.done:
	}
}

// EvictParticipant force-closes the participant's live connections in the
// room. Roster state is untouched; this is the hub half of the
// roster-removal integration point.
func (h *Hub) EvictParticipant(roomID, participantID string) {
	select {
	case h.evict <- eviction{roomID: roomID, participantID: participantID}:
	case <-h.done:
	}
}

// CloseRoom force-closes every connection in the room (teardown path).
func (h *Hub) CloseRoom(roomID string) {
	select {
	case h.evict <- eviction{roomID: roomID}:
	case <-h.done:
	}
}

// Serve authenticates and attaches one websocket connection. The check
// runs once, against the session store, before the upgrade: unknown room,
// inactive room or a participant missing from the roster is rejected with
// no payload. The check fails closed, so storage trouble reads as "no
// such room". A connection that passes is trusted for its lifetime unless
// evicted.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, roomID, participantID string) {
	if roomID == "" || participantID == "" {
		metrics.ConnectionsRejected.Inc()
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	room, err := h.store.GetRoom(ctx, roomID)
	cancel()
	if err != nil || !room.IsActive || room.FindParticipant(participantID) == nil {
		metrics.ConnectionsRejected.Inc()
		h.log.Debug("Connection rejected", "room_id", roomID, "user_id", participantID)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "room_id", roomID, "error", err)
		return
	}

	c := newClient(h, conn, roomID, participantID)
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (h *Hub) detach(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
