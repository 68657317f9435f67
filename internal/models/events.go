package models

import (
	"bytes"
	"encoding/json"
)

// Inbound event names.
const (
	EventJoinLocation     = "join_location"
	EventUpdateLocation   = "update_location"
	EventSendMessage      = "send_message"
	EventStartDirectChat  = "start_direct_chat"
	EventSetDistanceRange = "set_distance_range"
	EventGetUsersInRange  = "get_users_in_range"
)

// Outbound event names.
const (
	EventUserInitialized   = "user_initialized"
	EventUserJoined        = "user_joined"
	EventUserLeft          = "user_left"
	EventUserUpdated       = "user_updated"
	EventNewMessage        = "new_message"
	EventUsersInRange      = "users_in_range"
	EventMessagesInRange   = "messages_in_range"
	EventDirectChatStarted = "direct_chat_started"
	EventError             = "error"
)

// Error codes carried by ErrorPayload.
const (
	CodeValidation       = "validation_error"
	CodeNotAuthenticated = "not_authenticated"
	CodeNotFound         = "not_found"
	CodeAlreadyJoined    = "already_joined"
	CodeBadRequest       = "bad_request"
	CodeUnknownEvent     = "unknown_event"
	CodeInternal         = "internal_error"
)

// Envelope is the frame exchanged over the websocket in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals data into a ready-to-send frame.
func NewEnvelope(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

type JoinLocationRequest struct {
	Username  string   `json:"username"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type UpdateLocationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type SendMessageRequest struct {
	Content     string   `json:"content"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	RecipientID string   `json:"recipientId,omitempty"`
}

type StartDirectChatRequest struct {
	UserID string `json:"userId"`
}

// RangeRequest accepts both {"range": 5} and a bare 5.
type RangeRequest struct {
	Range int `json:"range"`
}

func (r *RangeRequest) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] != '{' {
		return json.Unmarshal(trimmed, &r.Range)
	}
	type plain RangeRequest
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*r = RangeRequest(p)
	return nil
}

type UserLeftPayload struct {
	UserID string `json:"userId"`
}

type DirectChatStartedPayload struct {
	ChatID   string    `json:"chatId"`
	User     User      `json:"user"`
	Messages []Message `json:"messages"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
