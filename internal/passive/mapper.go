// Package passive turns sensor observations into the text a turn is run on.
package passive

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jwebster45206/lifequest/internal/content"
	"github.com/jwebster45206/lifequest/pkg/game"
)

type Impact string

const (
	ImpactPositive Impact = "positive"
	ImpactNeutral  Impact = "neutral"
	ImpactNegative Impact = "negative"
)

// Record is the semantic view of one sensor event.
type Record struct {
	EventType       string   `json:"event_type"`
	Category        string   `json:"category"`
	Impact          Impact   `json:"impact"`
	RelatedConcepts []string `json:"related_concepts"`
	Text            string   `json:"text"`
}

// Rewardable reports whether the event should earn anything. Neutral and
// negative observations are only acknowledged.
func (r Record) Rewardable() bool {
	return r.Impact == ImpactPositive
}

type Mapper struct {
	table map[string]content.PassiveMapping
}

func NewMapper(c *content.Content) *Mapper {
	return &Mapper{table: c.Passive}
}

// Map looks up the event type. Unknown types are INVALID_ARGUMENT.
func (m *Mapper) Map(ev game.PassiveEvent) (Record, error) {
	const op = "passive.map"
	key := strings.ToLower(strings.TrimSpace(ev.EventType))
	if key == "" {
		return Record{}, game.NewError(game.ErrInvalidArgument, op, "event_type is required")
	}
	mapping, ok := m.table[key]
	if !ok {
		return Record{}, game.NewError(game.ErrInvalidArgument, op, fmt.Sprintf("unmapped event type %q", ev.EventType))
	}

	rec := Record{
		EventType:       key,
		Category:        mapping.Category,
		Impact:          Impact(mapping.Impact),
		RelatedConcepts: mapping.RelatedConcepts,
		Text:            mapping.Render(ev),
	}
	if rec.Text == "" {
		rec.Text = key
	}
	return rec, nil
}

// EventTypes lists what the mapper understands, sorted.
func (m *Mapper) EventTypes() []string {
	out := make([]string, 0, len(m.table))
	for k := range m.table {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
