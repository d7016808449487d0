package chat

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTurnRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     TurnRequest
		wantErr string
	}{
		{"valid", TurnRequest{PlayerID: "U1", Message: "gym"}, ""},
		{"missing player", TurnRequest{Message: "gym"}, "player_id cannot be empty"},
		{"blank message", TurnRequest{PlayerID: "U1", Message: "   "}, "message cannot be empty"},
		{"postback only", TurnRequest{PlayerID: "U1", Postback: "action=status"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestWindow(t *testing.T) {
	var entries []LogEntry
	for i := 0; i < 10; i++ {
		entries = append(entries, LogEntry{Content: fmt.Sprint(i)})
	}

	got := Window(entries, 3)
	assert.Len(t, got, 6)
	assert.Equal(t, "4", got[0].Content)
	assert.Equal(t, "9", got[5].Content)

	assert.Len(t, Window(entries[:2], 3), 2)
	assert.Len(t, Window(entries, 0), 10)
}

func TestFormatHistory(t *testing.T) {
	assert.Equal(t, "(no previous conversation)", FormatHistory(nil))
	got := FormatHistory([]LogEntry{
		{Role: ChatRoleUser, Content: "今天好累"},
		{Role: ChatRoleAgent, Content: "休息也是修行。"},
	})
	assert.Equal(t, "user: 今天好累\nassistant: 休息也是修行。", got)
}
