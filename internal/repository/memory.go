package repository

import (
	"context"
	"sync"
	"time"

	"room_link/internal/domain"
)

// memoryStore implements SessionStore in process memory with the same
// semantics as the Redis backend: per-key deadlines checked lazily on
// access, a janitor sweeping expired entries, and UpdateRoom serialized
// per room. Used by tests and by Redis-less development runs.
type memoryStore struct {
	mu     sync.RWMutex
	rooms  map[string]*memoryRoom
	active map[string]struct{}
	stop   chan struct{}
	once   sync.Once
}

type memoryRoom struct {
	mu       sync.Mutex
	record   domain.RoomRecord
	messages []domain.Message
	deadline time.Time
}

func (r *memoryRoom) expired() bool {
	return time.Now().After(r.deadline)
}

func NewMemoryStore() SessionStore {
	s := &memoryStore{
		rooms:  make(map[string]*memoryRoom),
		active: make(map[string]struct{}),
		stop:   make(chan struct{}),
	}
	go s.janitor()
	return s
}

func (s *memoryStore) janitor() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			for id, room := range s.rooms {
				if room.expired() {
					delete(s.rooms, id)
				}
			}
			s.mu.Unlock()
		}
	}
}

// lookup returns the live entry for roomID, treating an expired entry as
// absent without waiting for the janitor.
func (s *memoryStore) lookup(roomID string) (*memoryRoom, error) {
	s.mu.RLock()
	room, ok := s.rooms[roomID]
	s.mu.RUnlock()
	if !ok || room.expired() {
		return nil, ErrNoRoom
	}
	return room, nil
}

func cloneRecord(r *domain.RoomRecord) *domain.RoomRecord {
	out := *r
	out.Participants = append([]domain.Participant(nil), r.Participants...)
	return &out
}

func (s *memoryStore) GetRoom(ctx context.Context, roomID string) (*domain.RoomRecord, error) {
	room, err := s.lookup(roomID)
	if err != nil {
		return nil, err
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	if room.expired() {
		return nil, ErrNoRoom
	}
	return cloneRecord(&room.record), nil
}

func (s *memoryStore) PutRoom(ctx context.Context, record *domain.RoomRecord, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[record.RoomID] = &memoryRoom{
		record:   *cloneRecord(record),
		deadline: time.Now().Add(ttl),
	}
	return nil
}

func (s *memoryStore) UpdateRoom(ctx context.Context, roomID string, fn UpdateFn) (*domain.RoomRecord, error) {
	room, err := s.lookup(roomID)
	if err != nil {
		return nil, err
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	if room.expired() {
		return nil, ErrNoRoom
	}

	working := cloneRecord(&room.record)
	if err := fn(working); err != nil {
		return nil, err
	}
	room.record = *cloneRecord(working)
	return working, nil
}

func (s *memoryStore) AppendMessage(ctx context.Context, roomID string, msg *domain.Message) error {
	room, err := s.lookup(roomID)
	if err != nil {
		return err
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	if room.expired() {
		return ErrNoRoom
	}
	room.messages = append(room.messages, *msg)
	return nil
}

func (s *memoryStore) ListMessages(ctx context.Context, roomID string) ([]domain.Message, error) {
	room, err := s.lookup(roomID)
	if err != nil {
		return nil, err
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	if room.expired() {
		return nil, ErrNoRoom
	}
	return append([]domain.Message(nil), room.messages...), nil
}

func (s *memoryStore) DeleteRoom(ctx context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
	delete(s.active, roomID)
	return nil
}

func (s *memoryStore) AddActiveRoom(ctx context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[roomID] = struct{}{}
	return nil
}

func (s *memoryStore) RemoveActiveRoom(ctx context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, roomID)
	return nil
}

func (s *memoryStore) ActiveRooms(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *memoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *memoryStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}
