package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageJSONDerivesDirectFlag(t *testing.T) {
	public, err := json.Marshal(Message{ID: "m1", UserID: "a", Content: "hi"})
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(public, &decoded))
	assert.Equal(t, false, decoded["isDirectMessage"])
	assert.NotContains(t, decoded, "recipientId")

	direct, err := json.Marshal(Message{ID: "m2", UserID: "a", RecipientID: "b", Content: "secret"})
	require.NoError(t, err)
	decoded = nil
	require.NoError(t, json.Unmarshal(direct, &decoded))
	assert.Equal(t, true, decoded["isDirectMessage"])
	assert.Equal(t, "b", decoded["recipientId"])
	assert.Equal(t, "secret", decoded["content"])
}

func TestConversationIDIsCanonical(t *testing.T) {
	assert.Equal(t, ConversationID("alice", "bob"), ConversationID("bob", "alice"))
	assert.Equal(t, "alice-bob", ConversationID("bob", "alice"))
}

func TestRangeRequestAcceptsBothShapes(t *testing.T) {
	var obj RangeRequest
	require.NoError(t, json.Unmarshal([]byte(`{"range": 10}`), &obj))
	assert.Equal(t, 10, obj.Range)

	var bare RangeRequest
	require.NoError(t, json.Unmarshal([]byte(` 5 `), &bare))
	assert.Equal(t, 5, bare.Range)

	var bad RangeRequest
	assert.Error(t, json.Unmarshal([]byte(`"five"`), &bad))
}

func TestUserPatchApply(t *testing.T) {
	lat, online := 1.5, false
	u := UserPatch{Latitude: &lat, IsOnline: &online}.Apply(User{ID: "u", Latitude: 0, Longitude: 2, IsOnline: true})
	assert.Equal(t, 1.5, u.Latitude)
	assert.Equal(t, 2.0, u.Longitude)
	assert.False(t, u.IsOnline)
}

func TestNewEnvelope(t *testing.T) {
	frame, err := NewEnvelope(EventUserLeft, UserLeftPayload{UserID: "u1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"user_left","data":{"userId":"u1"}}`, string(frame))
}
