package reward

import "github.com/jwebster45206/lifequest/pkg/game"

type rarityWeight struct {
	rarity game.Rarity
	// tenths of a percent, so that 1.9 and 0.1 stay exact
	weight int
}

// rarityTable is ordered; the first entry wins ties.
var rarityTable = []rarityWeight{
	{game.RarityCommon, 600},
	{game.RarityUncommon, 300},
	{game.RarityRare, 80},
	{game.RarityEpic, 19},
	{game.RarityLegendary, 1},
}

// LootRoll is the outcome of one roll.
type LootRoll struct {
	Dropped bool
	Rarity  game.Rarity
	Item    *game.Item
}

// DropRate returns min(1, base * tier multiplier * scale).
func (a *Accountant) DropRate(tier game.Tier, scale float64) float64 {
	if scale <= 0 {
		scale = 1
	}
	p := a.cfg.BaseDropRate * tierDropMultipliers[tier] * scale
	if p > 1 {
		return 1
	}
	return p
}

// RollLoot rolls for a drop at tier. force guarantees a drop.
func (a *Accountant) RollLoot(tier game.Tier, force bool) LootRoll {
	return a.RollLootScaled(tier, force, 1)
}

// RollLootScaled is RollLoot with the drop chance scaled by the flow
// controller's loot multiplier.
func (a *Accountant) RollLootScaled(tier game.Tier, force bool, scale float64) LootRoll {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !force && a.rng.Float64() >= a.DropRate(tier, scale) {
		return LootRoll{}
	}

	rarity := a.pickRarity()
	pool := a.catalogue[rarity]
	if len(pool) == 0 {
		rarity = game.RarityCommon
		pool = a.catalogue[rarity]
	}
	if len(pool) == 0 {
		return LootRoll{}
	}

	item := pool[a.rng.Intn(len(pool))]
	return LootRoll{Dropped: true, Rarity: rarity, Item: &item}
}

func (a *Accountant) pickRarity() game.Rarity {
	total := 0
	for _, rw := range rarityTable {
		total += rw.weight
	}
	n := a.rng.Intn(total)
	for _, rw := range rarityTable {
		if n < rw.weight {
			return rw.rarity
		}
		n -= rw.weight
	}
	return rarityTable[0].rarity
}

// Chance returns true with probability p using the accountant's source.
// Used for serendipity and other gameplay coin flips.
func (a *Accountant) Chance(p float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rng.Float64() < p
}

// Pick returns a uniform index in [0, n).
func (a *Accountant) Pick(n int) int {
	if n <= 1 {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rng.Intn(n)
}
