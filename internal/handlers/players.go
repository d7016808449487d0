package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jwebster45206/lifequest/internal/storage"
	"github.com/jwebster45206/lifequest/pkg/game"
)

// PlayerSnapshot is a read-only view for dashboards and the console.
type PlayerSnapshot struct {
	Player    *game.Player         `json:"player"`
	Rival     *game.Rival          `json:"rival,omitempty"`
	Buffs     []game.Buff          `json:"active_buffs"`
	Quests    []*game.Quest        `json:"todays_quests"`
	Inventory []game.InventoryItem `json:"inventory"`
}

// PlayersHandler serves GET /v1/players/{id}.
type PlayersHandler struct {
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
	loc    *time.Location
}

func NewPlayersHandler(store storage.Store, loc *time.Location, logger *slog.Logger) *PlayersHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &PlayersHandler{store: store, logger: logger, now: time.Now, loc: loc}
}

func (h *PlayersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, h.logger, http.MethodGet)
		return
	}
	id := r.PathValue("id")
	if id == "" {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid path. Expected /v1/players/{id}")
		return
	}
	ctx := r.Context()

	p, err := h.store.GetPlayer(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, h.logger, http.StatusNotFound, "Player not found.")
			return
		}
		h.fail(w, id, err)
		return
	}
	snap := PlayerSnapshot{Player: p}

	rival, err := h.store.GetRival(ctx, id)
	switch {
	case err == nil:
		snap.Rival = rival
	case !storage.IsNotFound(err):
		h.fail(w, id, err)
		return
	}

	now := h.now().In(h.loc)
	if snap.Buffs, err = h.store.ListActiveBuffs(ctx, id, now); err != nil {
		h.fail(w, id, err)
		return
	}
	today := game.DateOf(now)
	if snap.Quests, err = h.store.ListQuests(ctx, id, storage.QuestFilter{Date: &today}); err != nil {
		h.fail(w, id, err)
		return
	}
	if snap.Inventory, err = h.store.ListInventory(ctx, id); err != nil {
		h.fail(w, id, err)
		return
	}
	if snap.Buffs == nil {
		snap.Buffs = []game.Buff{}
	}
	if snap.Quests == nil {
		snap.Quests = []*game.Quest{}
	}
	if snap.Inventory == nil {
		snap.Inventory = []game.InventoryItem{}
	}

	writeJSON(w, h.logger, http.StatusOK, snap)
}

func (h *PlayersHandler) fail(w http.ResponseWriter, playerID string, err error) {
	h.logger.Error("Failed to load player snapshot", "player_id", playerID, "error", err)
	writeError(w, h.logger, http.StatusInternalServerError, "Failed to load player.")
}
