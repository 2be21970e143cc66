package domain

import "time"

// Participant is one room member. UserID is assigned by the admission
// service and never client-supplied. CallToken is the credential handed to
// the external video provider; it is issued per room and never reused.
type Participant struct {
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	IsAdmin   bool   `json:"isAdmin"`
	CallToken string `json:"token,omitempty"`
}

// RoomRecord is the identity and roster of one room, stored as a single
// serialized object under a TTL key. Participants keep insertion order,
// which equals join order, and are unique by UserID. Exactly one participant
// has IsAdmin=true from creation until the record is deleted.
type RoomRecord struct {
	RoomID       string        `json:"roomId"`
	CreatorName  string        `json:"creatorName"`
	CreatedAt    time.Time     `json:"createdAt"`
	IsActive     bool          `json:"isActive"`
	Participants []Participant `json:"participants"`
}

// FindParticipant returns the roster entry for userID, or nil.
func (r *RoomRecord) FindParticipant(userID string) *Participant {
	for i := range r.Participants {
		if r.Participants[i].UserID == userID {
			return &r.Participants[i]
		}
	}
	return nil
}
