package game

import "time"

type Rarity string

const (
	RarityCommon    Rarity = "COMMON"
	RarityUncommon  Rarity = "UNCOMMON"
	RarityRare      Rarity = "RARE"
	RarityEpic      Rarity = "EPIC"
	RarityLegendary Rarity = "LEGENDARY"
)

type EffectKind string

const (
	EffectBuff EffectKind = "BUFF"
	EffectHeal EffectKind = "HEAL"
	EffectXP   EffectKind = "XP"
	EffectLore EffectKind = "LORE"
)

type ItemEffect struct {
	Kind          EffectKind `json:"kind" yaml:"kind"`
	Attribute     Attribute  `json:"attribute,omitempty" yaml:"attribute"`
	Multiplier    float64    `json:"multiplier,omitempty" yaml:"multiplier"`
	DurationHours int        `json:"duration_hours,omitempty" yaml:"duration_hours"`
	Amount        int        `json:"amount,omitempty" yaml:"amount"`
	Lore          string     `json:"lore,omitempty" yaml:"lore"`
}

// Item is a catalogue entry. Catalogue data is static; players own
// InventoryItem rows.
type Item struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Rarity      Rarity     `json:"rarity" yaml:"rarity"`
	Price       int        `json:"price" yaml:"price"`
	Effect      ItemEffect `json:"effect" yaml:"effect"`
}

type InventoryItem struct {
	PlayerID string `json:"player_id"`
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

type Buff struct {
	ID         string    `json:"id"`
	PlayerID   string    `json:"player_id"`
	Target     Attribute `json:"target_attribute"`
	Multiplier float64   `json:"multiplier"`
	Source     string    `json:"source,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func (b Buff) Active(now time.Time) bool {
	return b.ExpiresAt.After(now)
}

// ActiveBuffs filters buffs to those that have not expired.
func ActiveBuffs(buffs []Buff, now time.Time) []Buff {
	out := make([]Buff, 0, len(buffs))
	for _, b := range buffs {
		if b.Active(now) {
			out = append(out, b)
		}
	}
	return out
}
