package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"room_link/internal/domain"
	"room_link/pkg/logger"
)

const activeRoomsKey = "active_rooms"

func roomKey(roomID string) string {
	return fmt.Sprintf("room:%s", roomID)
}

func roomMessagesKey(roomID string) string {
	return fmt.Sprintf("room:%s:msg", roomID)
}

type redisStore struct {
	rdb *redis.Client
	log logger.Logger
}

// NewRedisStore wraps an existing Redis client as a SessionStore. The room
// record lives at room:{id} with a TTL set once at creation; the message
// log is a list at room:{id}:msg whose expiry is kept aligned with the
// record's remaining TTL.
func NewRedisStore(rdb *redis.Client, log logger.Logger) SessionStore {
	return &redisStore{rdb: rdb, log: log}
}

func (s *redisStore) GetRoom(ctx context.Context, roomID string) (*domain.RoomRecord, error) {
	data, err := s.rdb.Get(ctx, roomKey(roomID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoRoom
		}
		s.log.Error("Failed to get room record", "room_id", roomID, "error", err)
		return nil, err
	}

	var room domain.RoomRecord
	if err := json.Unmarshal([]byte(data), &room); err != nil {
		s.log.Error("Failed to unmarshal room record", "room_id", roomID, "error", err)
		return nil, fmt.Errorf("unmarshal room record: %w", err)
	}
	return &room, nil
}

func (s *redisStore) PutRoom(ctx context.Context, room *domain.RoomRecord, ttl time.Duration) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("marshal room record: %w", err)
	}

	if err := s.rdb.Set(ctx, roomKey(room.RoomID), data, ttl).Err(); err != nil {
		s.log.Error("Failed to store room record", "room_id", room.RoomID, "error", err)
		return err
	}
	return nil
}

// UpdateRoom runs one optimistic WATCH/MULTI round: read the record, apply
// fn to a copy, write the copy back keeping the key's TTL. If another
// writer touches the key in between, the transaction fails and
// ErrCASConflict is returned.
func (s *redisStore) UpdateRoom(ctx context.Context, roomID string, fn UpdateFn) (*domain.RoomRecord, error) {
	key := roomKey(roomID)
	var updated *domain.RoomRecord

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNoRoom
			}
			return err
		}

		var room domain.RoomRecord
		if err := json.Unmarshal([]byte(data), &room); err != nil {
			return fmt.Errorf("unmarshal room record: %w", err)
		}

		if err := fn(&room); err != nil {
			return err
		}

		buf, err := json.Marshal(&room)
		if err != nil {
			return fmt.Errorf("marshal room record: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, buf, redis.KeepTTL)
			return nil
		})
		if err != nil {
			return err
		}

		updated = &room
		return nil
	}, key)

	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return nil, ErrCASConflict
		}
		return nil, err
	}
	return updated, nil
}

// AppendMessage pushes onto the log, then checks the record's remaining
// TTL. A push that raced a delete or an expiry would recreate the list
// with no expiry, so a missing record means the list is removed again and
// the append reported as ErrNoRoom. Otherwise the log's expiry is slaved
// to the record's remaining TTL, so the log can never outlive the room
// (alignment, not a keep-alive).
func (s *redisStore) AppendMessage(ctx context.Context, roomID string, msg *domain.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	key := roomMessagesKey(roomID)
	if err := s.rdb.RPush(ctx, key, data).Err(); err != nil {
		s.log.Error("Failed to append message", "room_id", roomID, "error", err)
		return err
	}

	ttl, err := s.rdb.TTL(ctx, roomKey(roomID)).Result()
	if err != nil {
		s.log.Warn("Failed to read room TTL after append", "room_id", roomID, "error", err)
		return nil
	}
	if ttl == -2 {
		// The record key is absent. Drop the list this push recreated.
		if err := s.rdb.Del(ctx, key).Err(); err != nil {
			s.log.Warn("Failed to drop orphan message log", "room_id", roomID, "error", err)
		}
		return ErrNoRoom
	}

	if ttl > 0 {
		if err := s.rdb.Expire(ctx, key, ttl).Err(); err != nil {
			s.log.Warn("Failed to set TTL on message log", "room_id", roomID, "error", err)
		}
	}
	return nil
}

func (s *redisStore) ListMessages(ctx context.Context, roomID string) ([]domain.Message, error) {
	exists, err := s.rdb.Exists(ctx, roomKey(roomID)).Result()
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, ErrNoRoom
	}

	raw, err := s.rdb.LRange(ctx, roomMessagesKey(roomID), 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []domain.Message{}, nil
		}
		s.log.Error("Failed to read message log", "room_id", roomID, "error", err)
		return nil, err
	}

	messages := make([]domain.Message, 0, len(raw))
	for _, item := range raw {
		var msg domain.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			s.log.Warn("Skipping unreadable message entry", "room_id", roomID, "error", err)
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (s *redisStore) DeleteRoom(ctx context.Context, roomID string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, roomKey(roomID), roomMessagesKey(roomID))
		pipe.SRem(ctx, activeRoomsKey, roomID)
		return nil
	})
	if err != nil {
		s.log.Error("Failed to delete room", "room_id", roomID, "error", err)
	}
	return err
}

func (s *redisStore) AddActiveRoom(ctx context.Context, roomID string) error {
	return s.rdb.SAdd(ctx, activeRoomsKey, roomID).Err()
}

func (s *redisStore) RemoveActiveRoom(ctx context.Context, roomID string) error {
	return s.rdb.SRem(ctx, activeRoomsKey, roomID).Err()
}

func (s *redisStore) ActiveRooms(ctx context.Context) ([]string, error) {
	return s.rdb.SMembers(ctx, activeRoomsKey).Result()
}

func (s *redisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *redisStore) Close() error {
	return s.rdb.Close()
}
