// Package memory is an in-process Store used when no database is
// configured and by tests. Transactions snapshot the whole state and
// restore it on error.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jwebster45206/lifequest/internal/storage"
	"github.com/jwebster45206/lifequest/pkg/chat"
	"github.com/jwebster45206/lifequest/pkg/game"
)

var _ storage.Store = (*Store)(nil)

type habitKey struct{ player, tag string }

type outcomeKey struct {
	player string
	date   time.Time
	tag    string
}

type inventoryKey struct{ player, item string }

type questRow struct {
	q   game.Quest
	seq int64
}

type state struct {
	players     map[string]game.Player
	rivals      map[string]game.Rival
	habits      map[habitKey]game.HabitState
	habitOrder  []habitKey
	outcomes    map[outcomeKey]game.DailyOutcome
	completions []game.CompletionLog
	quests      map[string]questRow
	goals       []game.Goal
	buffs       []game.Buff
	bosses      map[string]game.Boss
	dungeons    map[string]game.Dungeon
	inventory   map[inventoryKey]int
	itemOrder   []inventoryKey
	logs        []chat.LogEntry
	seq         int64
}

func newState() *state {
	return &state{
		players:   make(map[string]game.Player),
		rivals:    make(map[string]game.Rival),
		habits:    make(map[habitKey]game.HabitState),
		outcomes:  make(map[outcomeKey]game.DailyOutcome),
		quests:    make(map[string]questRow),
		bosses:    make(map[string]game.Boss),
		dungeons:  make(map[string]game.Dungeon),
		inventory: make(map[inventoryKey]int),
	}
}

func (s *state) clone() *state {
	c := &state{
		players:     make(map[string]game.Player, len(s.players)),
		rivals:      make(map[string]game.Rival, len(s.rivals)),
		habits:      make(map[habitKey]game.HabitState, len(s.habits)),
		habitOrder:  append([]habitKey(nil), s.habitOrder...),
		outcomes:    make(map[outcomeKey]game.DailyOutcome, len(s.outcomes)),
		completions: append([]game.CompletionLog(nil), s.completions...),
		quests:      make(map[string]questRow, len(s.quests)),
		goals:       append([]game.Goal(nil), s.goals...),
		buffs:       append([]game.Buff(nil), s.buffs...),
		bosses:      make(map[string]game.Boss, len(s.bosses)),
		dungeons:    make(map[string]game.Dungeon, len(s.dungeons)),
		inventory:   make(map[inventoryKey]int, len(s.inventory)),
		itemOrder:   append([]inventoryKey(nil), s.itemOrder...),
		logs:        append([]chat.LogEntry(nil), s.logs...),
		seq:         s.seq,
	}
	for k, v := range s.players {
		c.players[k] = copyPlayer(v)
	}
	for k, v := range s.rivals {
		c.rivals[k] = v
	}
	for k, v := range s.habits {
		c.habits[k] = copyHabit(v)
	}
	for k, v := range s.outcomes {
		c.outcomes[k] = v
	}
	for k, v := range s.quests {
		c.quests[k] = questRow{q: copyQuest(v.q), seq: v.seq}
	}
	for k, v := range s.bosses {
		c.bosses[k] = v
	}
	for k, v := range s.dungeons {
		c.dungeons[k] = copyDungeon(v)
	}
	for k, v := range s.inventory {
		c.inventory[k] = v
	}
	return c
}

type txKey struct{}

// Store keeps everything in maps behind one mutex. A transaction holds the
// mutex for its whole duration, so turns are serialised.
type Store struct {
	mu      sync.Mutex
	st      *state
	pingErr error
}

func New() *Store {
	return &Store{st: newState()}
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.inTx(ctx) {
		// savepoint: the mutex is already held by the outer call
		savepoint := s.st.clone()
		if err := fn(ctx); err != nil {
			s.st = savepoint
			return err
		}
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	defer func() {
		if r := recover(); r != nil {
			s.st = snapshot
			panic(r)
		}
		if err != nil {
			s.st = snapshot
		}
	}()
	return fn(context.WithValue(ctx, txKey{}, s))
}

func (s *Store) Ping(ctx context.Context) error {
	defer s.lock(ctx)()
	return s.pingErr
}

// SetPingError makes Ping fail, for health check tests.
func (s *Store) SetPingError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingErr = err
}

func (s *Store) Close() error { return nil }

// Players

func (s *Store) GetPlayer(ctx context.Context, id string) (*game.Player, error) {
	defer s.lock(ctx)()
	p, ok := s.st.players[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := copyPlayer(p)
	return &out, nil
}

// GetPlayerForUpdate is GetPlayer: the store lock already serialises
// transactions.
func (s *Store) GetPlayerForUpdate(ctx context.Context, id string) (*game.Player, error) {
	return s.GetPlayer(ctx, id)
}

func (s *Store) CreatePlayer(ctx context.Context, p *game.Player) error {
	defer s.lock(ctx)()
	if _, ok := s.st.players[p.ID]; ok {
		return storage.ErrConflict
	}
	s.st.players[p.ID] = copyPlayer(*p)
	return nil
}

func (s *Store) SavePlayer(ctx context.Context, p *game.Player) error {
	defer s.lock(ctx)()
	if _, ok := s.st.players[p.ID]; !ok {
		return storage.ErrNotFound
	}
	s.st.players[p.ID] = copyPlayer(*p)
	return nil
}

func (s *Store) ListPlayersInactiveSince(ctx context.Context, before time.Time) ([]*game.Player, error) {
	defer s.lock(ctx)()
	out := make([]*game.Player, 0)
	for _, p := range s.st.players {
		if p.LastActiveDate.Before(before) {
			c := copyPlayer(p)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Rivals

func (s *Store) GetRival(ctx context.Context, playerID string) (*game.Rival, error) {
	defer s.lock(ctx)()
	r, ok := s.st.rivals[playerID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &r, nil
}

func (s *Store) SaveRival(ctx context.Context, r *game.Rival) error {
	defer s.lock(ctx)()
	s.st.rivals[r.PlayerID] = *r
	return nil
}

// Habits

func (s *Store) ListHabits(ctx context.Context, playerID string) ([]*game.HabitState, error) {
	defer s.lock(ctx)()
	out := make([]*game.HabitState, 0)
	for _, k := range s.st.habitOrder {
		if k.player != playerID {
			continue
		}
		h := copyHabit(s.st.habits[k])
		out = append(out, &h)
	}
	return out, nil
}

func (s *Store) GetHabit(ctx context.Context, playerID, tag string) (*game.HabitState, error) {
	defer s.lock(ctx)()
	h, ok := s.st.habits[habitKey{playerID, tag}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := copyHabit(h)
	return &out, nil
}

func (s *Store) SaveHabit(ctx context.Context, h *game.HabitState) error {
	defer s.lock(ctx)()
	k := habitKey{h.PlayerID, h.Tag}
	if _, ok := s.st.habits[k]; !ok {
		s.st.habitOrder = append(s.st.habitOrder, k)
	}
	s.st.habits[k] = copyHabit(*h)
	return nil
}

// Outcomes

func (s *Store) GetOutcome(ctx context.Context, playerID string, date time.Time, habitTag string) (*game.DailyOutcome, error) {
	defer s.lock(ctx)()
	o, ok := s.st.outcomes[outcomeKey{playerID, game.DateOf(date), habitTag}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &o, nil
}

func (s *Store) SaveOutcome(ctx context.Context, o *game.DailyOutcome) error {
	defer s.lock(ctx)()
	c := *o
	c.Date = game.DateOf(o.Date)
	c.IsGlobal = o.HabitTag == ""
	s.st.outcomes[outcomeKey{c.PlayerID, c.Date, c.HabitTag}] = c
	return nil
}

// Completions

func (s *Store) AppendCompletion(ctx context.Context, c *game.CompletionLog) error {
	defer s.lock(ctx)()
	s.st.completions = append(s.st.completions, *c)
	return nil
}

func (s *Store) ListCompletions(ctx context.Context, playerID string, since time.Time) ([]*game.CompletionLog, error) {
	defer s.lock(ctx)()
	out := make([]*game.CompletionLog, 0)
	for i := range s.st.completions {
		c := s.st.completions[i]
		if c.PlayerID == playerID && !c.CompletedAt.Before(since) {
			out = append(out, &c)
		}
	}
	return out, nil
}

// Quests

func (s *Store) GetQuest(ctx context.Context, id string) (*game.Quest, error) {
	defer s.lock(ctx)()
	row, ok := s.st.quests[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	q := copyQuest(row.q)
	return &q, nil
}

func (s *Store) AddQuest(ctx context.Context, q *game.Quest) error {
	defer s.lock(ctx)()
	if _, ok := s.st.quests[q.ID]; ok {
		return storage.ErrConflict
	}
	s.st.seq++
	s.st.quests[q.ID] = questRow{q: copyQuest(*q), seq: s.st.seq}
	return nil
}

func (s *Store) SaveQuest(ctx context.Context, q *game.Quest) error {
	defer s.lock(ctx)()
	row, ok := s.st.quests[q.ID]
	if !ok {
		return storage.ErrNotFound
	}
	row.q = copyQuest(*q)
	s.st.quests[q.ID] = row
	return nil
}

func (s *Store) DeleteQuest(ctx context.Context, id string) error {
	defer s.lock(ctx)()
	if _, ok := s.st.quests[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.st.quests, id)
	return nil
}

func (s *Store) ListQuests(ctx context.Context, playerID string, f storage.QuestFilter) ([]*game.Quest, error) {
	defer s.lock(ctx)()
	rows := make([]questRow, 0)
	for _, row := range s.st.quests {
		if row.q.PlayerID == playerID && f.Matches(&row.q) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	out := make([]*game.Quest, len(rows))
	for i, row := range rows {
		q := copyQuest(row.q)
		out[i] = &q
	}
	return out, nil
}

// Goals

func (s *Store) AddGoal(ctx context.Context, g *game.Goal) error {
	defer s.lock(ctx)()
	s.st.goals = append(s.st.goals, *g)
	return nil
}

func (s *Store) ListGoals(ctx context.Context, playerID string) ([]*game.Goal, error) {
	defer s.lock(ctx)()
	out := make([]*game.Goal, 0)
	for i := range s.st.goals {
		g := s.st.goals[i]
		if g.PlayerID == playerID {
			out = append(out, &g)
		}
	}
	return out, nil
}

// Buffs

func (s *Store) AddBuff(ctx context.Context, b *game.Buff) error {
	defer s.lock(ctx)()
	s.st.buffs = append(s.st.buffs, *b)
	return nil
}

func (s *Store) ListActiveBuffs(ctx context.Context, playerID string, now time.Time) ([]game.Buff, error) {
	defer s.lock(ctx)()
	out := make([]game.Buff, 0)
	for _, b := range s.st.buffs {
		if b.PlayerID == playerID && b.Active(now) {
			out = append(out, b)
		}
	}
	return out, nil
}

// Bosses

func (s *Store) GetActiveBoss(ctx context.Context, playerID string) (*game.Boss, error) {
	defer s.lock(ctx)()
	for _, b := range s.st.bosses {
		if b.PlayerID == playerID && b.Status == game.BossActive {
			out := b
			return &out, nil
		}
	}
	return nil, storage.ErrNotFound
}

// SaveBoss upserts by id. A second ACTIVE boss for the player is a conflict.
func (s *Store) SaveBoss(ctx context.Context, b *game.Boss) error {
	defer s.lock(ctx)()
	if b.Status == game.BossActive {
		for id, other := range s.st.bosses {
			if id != b.ID && other.PlayerID == b.PlayerID && other.Status == game.BossActive {
				return storage.ErrConflict
			}
		}
	}
	s.st.bosses[b.ID] = *b
	return nil
}

// Dungeons

func (s *Store) GetActiveDungeon(ctx context.Context, playerID string) (*game.Dungeon, error) {
	defer s.lock(ctx)()
	for _, d := range s.st.dungeons {
		if d.PlayerID == playerID && d.Status == game.DungeonActive {
			out := copyDungeon(d)
			return &out, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) SaveDungeon(ctx context.Context, d *game.Dungeon) error {
	defer s.lock(ctx)()
	if d.Status == game.DungeonActive {
		for id, other := range s.st.dungeons {
			if id != d.ID && other.PlayerID == d.PlayerID && other.Status == game.DungeonActive {
				return storage.ErrConflict
			}
		}
	}
	s.st.dungeons[d.ID] = copyDungeon(*d)
	return nil
}

// Inventory

func (s *Store) ListInventory(ctx context.Context, playerID string) ([]game.InventoryItem, error) {
	defer s.lock(ctx)()
	out := make([]game.InventoryItem, 0)
	for _, k := range s.st.itemOrder {
		if k.player != playerID {
			continue
		}
		if qty := s.st.inventory[k]; qty > 0 {
			out = append(out, game.InventoryItem{PlayerID: k.player, ItemID: k.item, Quantity: qty})
		}
	}
	return out, nil
}

func (s *Store) AddItem(ctx context.Context, playerID, itemID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("add item: quantity must be positive, got %d", qty)
	}
	defer s.lock(ctx)()
	k := inventoryKey{playerID, itemID}
	if _, ok := s.st.inventory[k]; !ok {
		s.st.itemOrder = append(s.st.itemOrder, k)
	}
	s.st.inventory[k] += qty
	return nil
}

func (s *Store) ConsumeItem(ctx context.Context, playerID, itemID string) error {
	defer s.lock(ctx)()
	k := inventoryKey{playerID, itemID}
	if s.st.inventory[k] <= 0 {
		return storage.ErrNotFound
	}
	s.st.inventory[k]--
	return nil
}

// Conversation

func (s *Store) AppendLog(ctx context.Context, e *chat.LogEntry) error {
	defer s.lock(ctx)()
	s.st.logs = append(s.st.logs, *e)
	return nil
}

func (s *Store) RecentLogs(ctx context.Context, playerID string, limit int) ([]chat.LogEntry, error) {
	defer s.lock(ctx)()
	out := make([]chat.LogEntry, 0)
	for _, e := range s.st.logs {
		if e.PlayerID == playerID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func copyPlayer(p game.Player) game.Player {
	p.Vitals.HollowedAt = copyTime(p.Vitals.HollowedAt)
	return p
}

func copyHabit(h game.HabitState) game.HabitState {
	h.LastOutcomeDate = copyTime(h.LastOutcomeDate)
	h.LastSweepDate = copyTime(h.LastSweepDate)
	return h
}

func copyQuest(q game.Quest) game.Quest {
	q.Keywords = append([]string(nil), q.Keywords...)
	q.CompletedAt = copyTime(q.CompletedAt)
	return q
}

func copyDungeon(d game.Dungeon) game.Dungeon {
	d.Stages = append([]game.Stage(nil), d.Stages...)
	return d
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
