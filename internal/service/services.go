package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"room_link/internal/config"
	"room_link/internal/domain"
	"room_link/internal/repository"
	apperrors "room_link/pkg/errors"
	"room_link/pkg/logger"
)

// Evictor is the hook from roster mutation into the real-time layer.
// Roster membership and live presence are deliberately decoupled; this is
// the one integration point that lets them be kept consistent. The
// broadcast hub implements it and is bound after construction so services
// never depend on the hub package.
type Evictor interface {
	EvictParticipant(roomID, participantID string)
	CloseRoom(roomID string)
}

type Services struct {
	CallTokens CallTokenService
	Messages   MessageLogService
	Lifecycle  LifecycleService
	Admission  AdmissionService
}

func NewServices(store repository.SessionStore, cfg *config.Config, log logger.Logger) *Services {
	tokens := NewCallTokenService(cfg.LiveKit)
	messages := NewMessageLogService(store, log)
	lifecycle := NewLifecycleService(store, cfg.App, log)
	admission := NewAdmissionService(store, tokens, lifecycle, cfg.Room, log)

	return &Services{
		CallTokens: tokens,
		Messages:   messages,
		Lifecycle:  lifecycle,
		Admission:  admission,
	}
}

func (s *Services) BindEvictor(ev Evictor) {
	s.Lifecycle.BindEvictor(ev)
	s.Admission.BindEvictor(ev)
}

const (
	casMaxAttempts = 5
	casBackoffBase = 10 * time.Millisecond
)

// updateWithRetry drives the store's optimistic update until it sticks,
// backing off between attempts. Exhausting the budget surfaces ErrConflict,
// which is safe for the caller to retry. fn must be idempotent: it may run
// once per attempt.
func updateWithRetry(ctx context.Context, store repository.SessionStore, roomID string, fn repository.UpdateFn) (*domain.RoomRecord, error) {
	for attempt := 0; ; attempt++ {
		room, err := store.UpdateRoom(ctx, roomID, fn)
		if err == nil {
			return room, nil
		}
		if !errors.Is(err, repository.ErrCASConflict) {
			return nil, err
		}
		if attempt+1 >= casMaxAttempts {
			return nil, fmt.Errorf("%w: room %s", apperrors.ErrConflict, roomID)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * casBackoffBase):
		}
	}
}
