package models

import (
	"encoding/json"
	"time"
)

// Message is either public (RecipientID empty) or direct. The isDirectMessage
// flag seen by clients is derived from RecipientID and never stored.
type Message struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Username    string    `json:"username"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	RecipientID string    `json:"recipientId,omitempty"`
}

// IsDirect reports whether the message is addressed to a single recipient.
func (m Message) IsDirect() bool {
	return m.RecipientID != ""
}

func (m Message) MarshalJSON() ([]byte, error) {
	type plain Message
	return json.Marshal(struct {
		plain
		IsDirectMessage bool `json:"isDirectMessage"`
	}{plain: plain(m), IsDirectMessage: m.IsDirect()})
}

// MessageDraft is a message before the store stamps its id and timestamp.
type MessageDraft struct {
	UserID      string
	Username    string
	Content     string
	Latitude    float64
	Longitude   float64
	RecipientID string
}

// PublicDraft builds a draft broadcast to everyone in range.
func PublicDraft(author User, content string, lat, lon float64) MessageDraft {
	return MessageDraft{UserID: author.ID, Username: author.Username, Content: content, Latitude: lat, Longitude: lon}
}

// DirectDraft builds a draft addressed to recipientID.
func DirectDraft(author User, recipientID, content string, lat, lon float64) MessageDraft {
	d := PublicDraft(author, content, lat, lon)
	d.RecipientID = recipientID
	return d
}
