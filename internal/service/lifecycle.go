package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"room_link/internal/config"
	"room_link/internal/domain"
	"room_link/internal/metrics"
	"room_link/internal/repository"
	apperrors "room_link/pkg/errors"
	"room_link/pkg/logger"
)

// LifecycleService owns room endings. Creation is delegated to the
// admission service; this side covers the administrative close, the final
// teardown and the active-room listing. TTL expiry is the third, implicit
// ending: the store simply stops returning the record.
type LifecycleService interface {
	ShareableLink(roomID string) string

	// EndRoom flips the room inactive in place. The record lives out its
	// TTL, so subsequent reads answer Gone rather than NotFound.
	EndRoom(ctx context.Context, roomID string) error

	// Teardown deletes the record and the message log and closes the
	// room's live connections. Idempotent: absent rooms are a no-op.
	Teardown(ctx context.Context, roomID string) error

	ActiveRooms(ctx context.Context) ([]string, error)

	BindEvictor(ev Evictor)
}

type lifecycleService struct {
	store   repository.SessionStore
	evictor Evictor
	appURL  string
	log     logger.Logger
}

func NewLifecycleService(store repository.SessionStore, cfg config.AppConfig, log logger.Logger) LifecycleService {
	return &lifecycleService{
		store:  store,
		appURL: strings.TrimSuffix(cfg.URL, "/"),
		log:    log,
	}
}

func (s *lifecycleService) BindEvictor(ev Evictor) {
	s.evictor = ev
}

func (s *lifecycleService) ShareableLink(roomID string) string {
	return fmt.Sprintf("%s/join/%s", s.appURL, roomID)
}

func (s *lifecycleService) EndRoom(ctx context.Context, roomID string) error {
	_, err := updateWithRetry(ctx, s.store, roomID, func(room *domain.RoomRecord) error {
		room.IsActive = false
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNoRoom) {
			return apperrors.ErrRoomNotFound
		}
		return err
	}

	if s.evictor != nil {
		s.evictor.CloseRoom(roomID)
	}
	s.log.Info("Room ended", "room_id", roomID)
	return nil
}

func (s *lifecycleService) Teardown(ctx context.Context, roomID string) error {
	if err := s.store.DeleteRoom(ctx, roomID); err != nil {
		return err
	}
	if s.evictor != nil {
		s.evictor.CloseRoom(roomID)
	}
	metrics.RoomsTornDown.Inc()
	s.log.Info("Room torn down", "room_id", roomID)
	return nil
}

func (s *lifecycleService) ActiveRooms(ctx context.Context) ([]string, error) {
	return s.store.ActiveRooms(ctx)
}
