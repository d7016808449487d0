package game

import "encoding/json"

// Persona is the narrative voice hint attached to a Result.
type Persona string

const (
	PersonaSystem Persona = "SYSTEM"
	PersonaMentor Persona = "MENTOR"
	PersonaViper  Persona = "VIPER"
)

type AudioCue string

const AudioLevelUp AudioCue = "LEVEL_UP"

type QuickReply struct {
	Label       string `json:"label"`
	ActionData  string `json:"action_data"`
	DisplayText string `json:"display_text,omitempty"`
}

// Metadata carries rendering hints plus the facts a tool produced during
// the turn. Tools return a Metadata delta that the router merges.
type Metadata struct {
	Sender         Persona           `json:"sender,omitempty"`
	PreText        string            `json:"pre_text,omitempty"`
	AudioCue       AudioCue          `json:"audio_cue,omitempty"`
	FlexPayload    json.RawMessage   `json:"flex_payload,omitempty"`
	LegacyMessages []json.RawMessage `json:"legacy_messages,omitempty"`

	Attribute  Attribute `json:"attribute,omitempty"`
	Tier       Tier      `json:"difficulty_tier,omitempty"`
	XPGained   int       `json:"xp_gained,omitempty"`
	GoldDelta  int       `json:"gold_delta,omitempty"`
	LootName   string    `json:"loot_name,omitempty"`
	LevelUp    bool      `json:"level_up,omitempty"`
	Tone       string    `json:"tone,omitempty"`
	ErrorCode  string    `json:"error_code,omitempty"`
	Engagement bool      `json:"engagement_override,omitempty"`
}

// Merge folds delta into m. Scalar fields from delta win when set, XP and
// gold accumulate, LevelUp is sticky.
func (m *Metadata) Merge(delta Metadata) {
	if delta.Sender != "" {
		m.Sender = delta.Sender
	}
	if delta.PreText != "" {
		m.PreText = delta.PreText
	}
	if delta.AudioCue != "" {
		m.AudioCue = delta.AudioCue
	}
	if len(delta.FlexPayload) > 0 {
		m.FlexPayload = delta.FlexPayload
	}
	m.LegacyMessages = append(m.LegacyMessages, delta.LegacyMessages...)
	if delta.Attribute != "" {
		m.Attribute = delta.Attribute
	}
	if delta.Tier != "" {
		m.Tier = delta.Tier
	}
	if delta.LootName != "" {
		m.LootName = delta.LootName
	}
	if delta.Tone != "" {
		m.Tone = delta.Tone
	}
	if delta.ErrorCode != "" {
		m.ErrorCode = delta.ErrorCode
	}
	m.XPGained += delta.XPGained
	m.GoldDelta += delta.GoldDelta
	m.LevelUp = m.LevelUp || delta.LevelUp
	m.Engagement = m.Engagement || delta.Engagement
}

// Result is what one turn hands back to the messaging adapter.
type Result struct {
	Text         string       `json:"text"`
	ImageURL     string       `json:"image_url,omitempty"`
	QuickReplies []QuickReply `json:"quick_replies,omitempty"`
	Intent       string       `json:"intent"`
	Metadata     Metadata     `json:"metadata"`
}

// SystemResult is a plain SYSTEM voiced reply.
func SystemResult(intent, text string) Result {
	return Result{Text: text, Intent: intent, Metadata: Metadata{Sender: PersonaSystem}}
}
