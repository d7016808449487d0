package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/jwebster45206/lifequest/pkg/game"
)

// TurnRequest is a synchronous turn posted to the api: a text message, or
// a quick reply's action data when Postback is set.
type TurnRequest struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name,omitempty"`
	Message     string `json:"message"`
	Postback    string `json:"postback,omitempty"`
}

// TurnResponse wraps the canonical Result with the request id for tracing.
type TurnResponse struct {
	RequestID string      `json:"request_id,omitempty"`
	Result    game.Result `json:"result"`
}

const (
	ChatRoleUser   = "user"      // Player
	ChatRoleAgent  = "assistant" // Any persona
	ChatRoleSystem = "system"    // Prompt instructions
)

// ChatMessage is a single message sent to a model provider.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// LogEntry is one row of the conversation log kept as short term memory.
type LogEntry struct {
	ID        string    `json:"id"`
	PlayerID  string    `json:"player_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (tr *TurnRequest) Validate() error {
	if strings.TrimSpace(tr.PlayerID) == "" {
		return fmt.Errorf("player_id cannot be empty")
	}
	if strings.TrimSpace(tr.Message) == "" && strings.TrimSpace(tr.Postback) == "" {
		return fmt.Errorf("message cannot be empty")
	}
	return nil
}

// Window returns the last turns*2 entries (a turn is one user message and
// one reply), oldest first.
func Window(entries []LogEntry, turns int) []LogEntry {
	n := turns * 2
	if turns <= 0 || len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}

// FormatHistory renders log entries as "role: content" lines for a prompt.
func FormatHistory(entries []LogEntry) string {
	if len(entries) == 0 {
		return "(no previous conversation)"
	}
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %s", e.Role, e.Content)
	}
	return b.String()
}
