package service

import (
	"github.com/livekit/protocol/auth"

	"room_link/internal/config"
)

// CallTokenService issues the identity credential the external video
// provider consumes. The token binds a participant identity to one call
// room and is never reused across rooms.
type CallTokenService interface {
	Issue(roomID, userID, name string, isAdmin bool) (string, error)
}

type liveKitTokenService struct {
	cfg config.LiveKitConfig
}

func NewCallTokenService(cfg config.LiveKitConfig) CallTokenService {
	return &liveKitTokenService{cfg: cfg}
}

func (s *liveKitTokenService) Issue(roomID, userID, name string, isAdmin bool) (string, error) {
	canPublish := true
	canSubscribe := true
	grant := &auth.VideoGrant{
		RoomJoin:     true,
		Room:         roomID,
		RoomAdmin:    isAdmin,
		CanPublish:   &canPublish,
		CanSubscribe: &canSubscribe,
	}

	at := auth.NewAccessToken(s.cfg.APIKey, s.cfg.APISecret)
	at.AddGrant(grant).
		SetIdentity(userID).
		SetName(name).
		SetValidFor(s.cfg.TokenTTL)

	return at.ToJWT()
}
