package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"room_link/internal/domain"
	"room_link/internal/metrics"
	"room_link/internal/repository"
	apperrors "room_link/pkg/errors"
	"room_link/pkg/logger"
)

// MessageLogService appends and reads the ordered chat log of a room.
//
// onAppend, if non-nil, runs after a successful store append while the
// room's append lock is still held. Fan-out enqueues go through it so
// delivery order cannot diverge from log order; the callback must not
// block on slow consumers.
type MessageLogService interface {
	Append(ctx context.Context, roomID, participantID, text string, onAppend func(*domain.Message)) (*domain.Message, error)
	List(ctx context.Context, roomID string) ([]domain.Message, error)
}

type messageLogService struct {
	store repository.SessionStore
	log   logger.Logger

	// Appends for one room are serialized so the stamped timestamp order
	// always matches the log's list order, even under concurrent senders.
	locks [64]sync.Mutex
}

func NewMessageLogService(store repository.SessionStore, log logger.Logger) MessageLogService {
	return &messageLogService{store: store, log: log}
}

func (s *messageLogService) roomLock(roomID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(roomID))
	return &s.locks[h.Sum32()%uint32(len(s.locks))]
}

func (s *messageLogService) Append(ctx context.Context, roomID, participantID, text string, onAppend func(*domain.Message)) (*domain.Message, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: message text is required", apperrors.ErrValidation)
	}

	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNoRoom) {
			return nil, apperrors.ErrRoomNotFound
		}
		return nil, err
	}
	if !room.IsActive {
		return nil, apperrors.ErrRoomGone
	}

	sender := room.FindParticipant(participantID)
	if sender == nil {
		return nil, apperrors.ErrParticipantNotFound
	}

	mu := s.roomLock(roomID)
	mu.Lock()
	defer mu.Unlock()

	msg := &domain.Message{
		Sender: domain.MessageSender{
			SenderID: sender.UserID,
			Name:     sender.Name,
			IsAdmin:  sender.IsAdmin,
		},
		Text:      trimmed,
		Timestamp: time.Now().UTC(),
	}

	if err := s.store.AppendMessage(ctx, roomID, msg); err != nil {
		if errors.Is(err, repository.ErrNoRoom) {
			return nil, apperrors.ErrRoomNotFound
		}
		s.log.Error("Failed to append message", "room_id", roomID, "error", err)
		return nil, err
	}

	metrics.MessagesAppended.Inc()
	if onAppend != nil {
		onAppend(msg)
	}
	return msg, nil
}

func (s *messageLogService) List(ctx context.Context, roomID string) ([]domain.Message, error) {
	messages, err := s.store.ListMessages(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNoRoom) {
			return nil, apperrors.ErrRoomNotFound
		}
		return nil, err
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}
