package domain

import "time"

// MessageSender is a snapshot of the sending participant taken at send
// time. A later rename does not rewrite history.
type MessageSender struct {
	SenderID string `json:"senderId"`
	Name     string `json:"name"`
	IsAdmin  bool   `json:"isAdmin"`
}

// Message is one chat entry. Immutable once appended; a room's log is
// append-only and read order equals append order.
type Message struct {
	Sender    MessageSender `json:"sender"`
	Text      string        `json:"text"`
	Timestamp time.Time     `json:"timestamp"`
}
