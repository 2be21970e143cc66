package repository

import (
	"context"
	"errors"
	"time"

	"room_link/internal/domain"
)

var (
	// ErrNoRoom means the room record key is absent, either because the
	// room never existed or because its TTL expired. Callers treat both
	// the same way.
	ErrNoRoom = errors.New("room record not found")

	// ErrCASConflict means an optimistic update lost the race against a
	// concurrent writer. The caller may retry.
	ErrCASConflict = errors.New("room record modified concurrently")
)

// UpdateFn mutates a room record in place. Returning an error aborts the
// update and leaves the stored record untouched.
type UpdateFn func(*domain.RoomRecord) error

// SessionStore is the TTL key-value store holding one RoomRecord and one
// ordered message log per room, plus the set of active room ids.
//
// UpdateRoom is the only way to mutate a stored record: it applies fn to
// the current record and writes the result back atomically with respect to
// other UpdateRoom calls for the same room, preserving the record's
// remaining TTL. A single call makes one optimistic attempt; ErrCASConflict
// reports a lost race.
type SessionStore interface {
	GetRoom(ctx context.Context, roomID string) (*domain.RoomRecord, error)
	PutRoom(ctx context.Context, room *domain.RoomRecord, ttl time.Duration) error
	UpdateRoom(ctx context.Context, roomID string, fn UpdateFn) (*domain.RoomRecord, error)

	AppendMessage(ctx context.Context, roomID string, msg *domain.Message) error
	ListMessages(ctx context.Context, roomID string) ([]domain.Message, error)

	// DeleteRoom removes the record and the message log. Deleting an
	// absent room is a no-op.
	DeleteRoom(ctx context.Context, roomID string) error

	AddActiveRoom(ctx context.Context, roomID string) error
	RemoveActiveRoom(ctx context.Context, roomID string) error
	ActiveRooms(ctx context.Context) ([]string, error)

	Ping(ctx context.Context) error
	Close() error
}
