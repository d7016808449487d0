package queue

import (
	"testing"

	"github.com/jwebster45206/lifequest/pkg/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromJSON_EventRequest(t *testing.T) {
	req := NewEventRequest(game.InboundEvent{PlayerID: "U1", Kind: game.EventText, Text: "gym 1 hour"})
	data, err := req.ToJSON()
	require.NoError(t, err)

	got, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, req.RequestID, got.RequestID)
	assert.Equal(t, RequestTypeEvent, got.Type)
	require.NotNil(t, got.Event)
	assert.Equal(t, "gym 1 hour", got.Event.Text)
}

func TestFromJSON_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"not json", "{", "unexpected end of JSON input"},
		{"missing player", `{"type":"sweep"}`, "player_id is required"},
		{"unknown type", `{"type":"dance","player_id":"U1"}`, `unknown request type "dance"`},
		{"event without payload", `{"type":"event","player_id":"U1"}`, "event request has no event"},
		{"mismatched player", `{"type":"event","player_id":"U1","event":{"player_id":"U2","kind":"TEXT"}}`, `event player "U2" does not match request player "U1"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromJSON([]byte(tt.data))
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}
