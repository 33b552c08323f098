package queue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventEnvelope(t *testing.T) {
	event, err := NewEvent(EventFollowCreated, FollowEventData{FollowerID: 1, FollowedID: 2})
	require.NoError(t, err)

	raw, err := json.Marshal(event)
	require.NoError(t, err)

	decoded, err := DecodeEvent(Message{Value: raw})
	require.NoError(t, err)
	assert.Equal(t, EventFollowCreated, decoded.Type)

	var data FollowEventData
	require.NoError(t, decoded.Bind(&data))
	assert.Equal(t, uint(1), data.FollowerID)
	assert.Equal(t, uint(2), data.FollowedID)
}

func TestDecodeEvent_Garbage(t *testing.T) {
	_, err := DecodeEvent(Message{Value: []byte("not json")})
	assert.Error(t, err)
}

func TestEventBind_WrongShape(t *testing.T) {
	event := Event{Type: EventPostCreated, Data: json.RawMessage(`"a string"`)}
	var data PostEventData
	assert.Error(t, event.Bind(&data))
}
