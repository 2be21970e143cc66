package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"room_link/internal/config"
	"room_link/internal/domain"
	"room_link/internal/metrics"
	"room_link/internal/repository"
	apperrors "room_link/pkg/errors"
	"room_link/pkg/logger"
)

// AdmissionService validates and applies roster changes against a room
// record. All mutations go through the store's atomic update primitive;
// the naive read-modify-write is exactly the lost-update hazard this
// service exists to rule out.
type AdmissionService interface {
	CreateRoom(ctx context.Context, creatorName string) (*domain.RoomRecord, *domain.Participant, error)

	// Join adds a participant to the roster. priorUserID may carry a
	// previously issued userId; if that participant is still on the
	// roster it is returned as-is and nothing is written (idempotent
	// reconnect).
	Join(ctx context.Context, roomID, name, priorUserID string) (*domain.Participant, error)

	// Remove is the moderation action, distinct from a self-initiated
	// leave. It closes the removed participant's live connections via the
	// bound Evictor but does not otherwise touch presence.
	Remove(ctx context.Context, roomID, participantID string) error

	// Leave reports ended=true when the leaving participant was the
	// admin, in which case the room has been torn down for everyone.
	// A non-admin leave keeps roster and room untouched.
	Leave(ctx context.Context, roomID, participantID string) (ended bool, err error)

	GetRoom(ctx context.Context, roomID string) (*domain.RoomRecord, error)

	BindEvictor(ev Evictor)
}

type admissionService struct {
	store     repository.SessionStore
	tokens    CallTokenService
	lifecycle LifecycleService
	evictor   Evictor
	ttl       time.Duration
	log       logger.Logger
}

func NewAdmissionService(
	store repository.SessionStore,
	tokens CallTokenService,
	lifecycle LifecycleService,
	cfg config.RoomConfig,
	log logger.Logger,
) AdmissionService {
	return &admissionService{
		store:     store,
		tokens:    tokens,
		lifecycle: lifecycle,
		ttl:       cfg.TTL,
		log:       log,
	}
}

func (s *admissionService) BindEvictor(ev Evictor) {
	s.evictor = ev
}

func (s *admissionService) CreateRoom(ctx context.Context, creatorName string) (*domain.RoomRecord, *domain.Participant, error) {
	name := strings.TrimSpace(creatorName)
	if name == "" {
		return nil, nil, fmt.Errorf("%w: creator name is required", apperrors.ErrValidation)
	}

	roomID := uuid.NewString()
	userID := ulid.Make().String()

	token, err := s.tokens.Issue(roomID, userID, name, true)
	if err != nil {
		s.log.Error("Failed to issue call token", "room_id", roomID, "error", err)
		return nil, nil, err
	}

	creator := domain.Participant{
		UserID:    userID,
		Name:      name,
		IsAdmin:   true,
		CallToken: token,
	}
	room := &domain.RoomRecord{
		RoomID:       roomID,
		CreatorName:  name,
		CreatedAt:    time.Now().UTC(),
		IsActive:     true,
		Participants: []domain.Participant{creator},
	}

	if err := s.store.PutRoom(ctx, room, s.ttl); err != nil {
		return nil, nil, err
	}
	if err := s.store.AddActiveRoom(ctx, roomID); err != nil {
		s.log.Warn("Failed to register room in active set", "room_id", roomID, "error", err)
	}

	metrics.RoomsCreated.Inc()
	s.log.Info("Room created", "room_id", roomID, "creator", name, "ttl", s.ttl)
	return room, &creator, nil
}

// errNoMutation aborts an update from inside the CAS closure without
// surfacing an error: the desired state is already present.
var errNoMutation = errors.New("no mutation needed")

func (s *admissionService) Join(ctx context.Context, roomID, name, priorUserID string) (*domain.Participant, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: participant name is required", apperrors.ErrValidation)
	}

	// The identity and token survive CAS retries so a contended join does
	// not issue a fresh credential per attempt.
	userID := ulid.Make().String()
	token, err := s.tokens.Issue(roomID, userID, trimmed, false)
	if err != nil {
		s.log.Error("Failed to issue call token", "room_id", roomID, "error", err)
		return nil, err
	}

	var joined domain.Participant
	_, err = updateWithRetry(ctx, s.store, roomID, func(room *domain.RoomRecord) error {
		if !room.IsActive {
			return apperrors.ErrRoomGone
		}
		if priorUserID != "" {
			if existing := room.FindParticipant(priorUserID); existing != nil {
				joined = *existing
				return errNoMutation
			}
		}
		joined = domain.Participant{
			UserID:    userID,
			Name:      trimmed,
			IsAdmin:   false,
			CallToken: token,
		}
		room.Participants = append(room.Participants, joined)
		return nil
	})
	if err != nil {
		if errors.Is(err, errNoMutation) {
			s.log.Debug("Join replayed for existing participant", "room_id", roomID, "user_id", priorUserID)
			return &joined, nil
		}
		if errors.Is(err, repository.ErrNoRoom) {
			return nil, apperrors.ErrRoomNotFound
		}
		return nil, err
	}

	s.log.Info("Participant joined", "room_id", roomID, "user_id", joined.UserID, "name", joined.Name)
	return &joined, nil
}

func (s *admissionService) Remove(ctx context.Context, roomID, participantID string) error {
	_, err := updateWithRetry(ctx, s.store, roomID, func(room *domain.RoomRecord) error {
		idx := -1
		for i := range room.Participants {
			if room.Participants[i].UserID == participantID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return apperrors.ErrParticipantNotFound
		}
		if room.Participants[idx].IsAdmin {
			// The roster must keep its single admin until the room dies;
			// ending the room is the admin's own leave path.
			return fmt.Errorf("%w: room admin cannot be removed", apperrors.ErrValidation)
		}
		room.Participants = append(room.Participants[:idx], room.Participants[idx+1:]...)
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNoRoom) {
			return apperrors.ErrRoomNotFound
		}
		return err
	}

	if s.evictor != nil {
		s.evictor.EvictParticipant(roomID, participantID)
	}
	s.log.Info("Participant removed", "room_id", roomID, "user_id", participantID)
	return nil
}

func (s *admissionService) Leave(ctx context.Context, roomID, participantID string) (bool, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNoRoom) {
			return false, apperrors.ErrRoomNotFound
		}
		return false, err
	}

	p := room.FindParticipant(participantID)
	if p == nil {
		return false, apperrors.ErrParticipantNotFound
	}

	if p.IsAdmin {
		s.log.Info("Admin left, ending room", "room_id", roomID, "user_id", participantID)
		return true, s.lifecycle.Teardown(ctx, roomID)
	}

	// A non-admin leave is presence-only: the roster entry stays, the
	// connection group is handled by the hub on disconnect.
	return false, nil
}

func (s *admissionService) GetRoom(ctx context.Context, roomID string) (*domain.RoomRecord, error) {
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
	return room, nil
}
