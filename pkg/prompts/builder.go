package prompts

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jwebster45206/lifequest/pkg/chat"
	"github.com/jwebster45206/lifequest/pkg/flow"
)

// ToolSpec describes one tool to the model. Arguments maps argument name
// to a short type/description string.
type ToolSpec struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Arguments   map[string]string `json:"arguments,omitempty"`
}

// Builder constructs the router prompt using a fluent interface.
type Builder struct {
	state        *PromptState
	tools        []ToolSpec
	history      []chat.LogEntry
	utterance    string
	historyTurns int
}

// New creates a new prompt builder with default settings.
func New() *Builder {
	return &Builder{
		historyTurns: 3,
	}
}

// WithState sets the player snapshot.
func (b *Builder) WithState(ps *PromptState) *Builder {
	b.state = ps
	return b
}

// WithTools sets the tool registry shown to the model.
func (b *Builder) WithTools(tools []ToolSpec) *Builder {
	b.tools = tools
	return b
}

// WithHistory sets the conversation log, oldest first.
func (b *Builder) WithHistory(entries []chat.LogEntry) *Builder {
	b.history = entries
	return b
}

// WithUtterance sets what the player just said.
func (b *Builder) WithUtterance(text string) *Builder {
	b.utterance = text
	return b
}

// WithHistoryTurns sets how many past turns are included.
func (b *Builder) WithHistoryTurns(turns int) *Builder {
	b.historyTurns = turns
	return b
}

// Build constructs the final prompt.
func (b *Builder) Build() (Prompt, error) {
	if b.state == nil {
		return Prompt{}, fmt.Errorf("player state is required")
	}
	if strings.TrimSpace(b.utterance) == "" {
		return Prompt{}, fmt.Errorf("utterance is required")
	}
	if len(b.tools) == 0 {
		return Prompt{}, fmt.Errorf("at least one tool is required")
	}

	tone := b.state.Tone
	if tone == "" {
		tone = flow.ToneNeutral
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(RouterSystemPrompt, formatTools(b.tools), tone))
	if b.state.SuggestedTier != "" {
		sb.WriteString(fmt.Sprintf("Suggested difficulty for new tasks: %s.\n", b.state.SuggestedTier))
	}

	block, err := stateBlock(b.state)
	if err != nil {
		return Prompt{}, err
	}

	user := block + "\n\n" +
		fmt.Sprintf(HistoryPromptTemplate, chat.FormatHistory(chat.Window(b.history, b.historyTurns))) +
		"\n\nPlayer says: " + b.utterance

	return Prompt{System: sb.String(), User: user}, nil
}

func formatTools(tools []ToolSpec) string {
	var sb strings.Builder
	for i, t := range tools {
		if i > 0 {
			sb.WriteString("\n")
		}
		args := "{}"
		if len(t.Arguments) > 0 {
			keys := make([]string, 0, len(t.Arguments))
			for k := range t.Arguments {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			parts := make([]string, 0, len(keys))
			for _, k := range keys {
				v, _ := json.Marshal(t.Arguments[k])
				parts = append(parts, fmt.Sprintf("%q: %s", k, v))
			}
			args = "{" + strings.Join(parts, ", ") + "}"
		}
		sb.WriteString(fmt.Sprintf("- %s %s: %s", t.Name, args, t.Description))
	}
	return sb.String()
}
