package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageStatus_OnlyMovesForward(t *testing.T) {
	assert.True(t, StatusSent.CanAdvanceTo(StatusDelivered))
	assert.True(t, StatusSent.CanAdvanceTo(StatusSeen))
	assert.True(t, StatusDelivered.CanAdvanceTo(StatusSeen))

	assert.False(t, StatusSeen.CanAdvanceTo(StatusDelivered))
	assert.False(t, StatusDelivered.CanAdvanceTo(StatusSent))
	assert.False(t, StatusSeen.CanAdvanceTo(StatusSeen))
	assert.False(t, StatusSent.CanAdvanceTo("archived"))
	assert.False(t, MessageStatus("archived").Valid())
}

func TestPairKey_IsOrderIndependent(t *testing.T) {
	lo1, hi1 := PairKey("b", "a")
	lo2, hi2 := PairKey("a", "b")
	assert.Equal(t, lo1, lo2)
	assert.Equal(t, hi1, hi2)
	assert.Equal(t, "a", lo1)
}

func TestFriendship_Other(t *testing.T) {
	f := Friendship{RequesterID: "a", RecipientID: "b"}
	assert.Equal(t, "b", f.Other("a"))
	assert.Equal(t, "a", f.Other("b"))
	assert.True(t, f.Involves("b"))
	assert.False(t, f.Involves("c"))
}

func TestValidationError(t *testing.T) {
	err := NewValidationError(map[string]string{"text": "required", "receiverId": "required"})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "validation failed: receiverId: required, text: required", err.Error())
	assert.ErrorIs(t, NewConflictError("already friends"), ErrConflict)
}

func TestEnvelope_JSON(t *testing.T) {
	text := "hi"
	msg := Message{
		ID: "m1", SenderID: "a", ReceiverID: "b", Text: &text,
		Status: StatusSent, CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	raw, err := json.Marshal(Envelope{Event: EventNewMessage, Data: NewMessagePayload(msg)})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"event": "newMessage",
		"data": {
			"id": "m1", "senderId": "a", "receiverId": "b", "text": "hi",
			"hasImage": false, "status": "sent", "createdAt": "2026-01-01T00:00:00Z"
		}
	}`, string(raw))
}
