package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/lifequest/internal/content"
	"github.com/jwebster45206/lifequest/internal/storage"
	"github.com/jwebster45206/lifequest/pkg/game"
)

// Purchase is a completed sale.
type Purchase struct {
	Item     game.Item
	GoldLeft int
	Text     string
}

// Shop sells catalogue items for gold. Every debit happens on a player row
// locked for update, so two purchases cannot spend the same gold.
type Shop struct {
	store   storage.Store
	content *content.Content
	logger  *slog.Logger
}

func NewShop(store storage.Store, c *content.Content, logger *slog.Logger) *Shop {
	return &Shop{store: store, content: c, logger: logger}
}

// Buy locks the player, charges the price and delivers one unit, all in
// one transaction.
func (s *Shop) Buy(ctx context.Context, playerID, itemName string) (*Purchase, error) {
	var purchase *Purchase
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.store.GetPlayerForUpdate(ctx, playerID)
		if err != nil {
			if storage.IsNotFound(err) {
				return game.NewError(game.ErrPlayerNotFound, "shop.buy", playerID)
			}
			return fmt.Errorf("shop.buy: %w", err)
		}
		purchase, err = s.Charge(ctx, p, itemName)
		if err != nil {
			return err
		}
		if err := s.store.SavePlayer(ctx, p); err != nil {
			return fmt.Errorf("shop.buy: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

// Charge debits p and adds the item. p must already be locked by the
// caller's transaction, and the caller saves it.
func (s *Shop) Charge(ctx context.Context, p *game.Player, itemName string) (*Purchase, error) {
	const op = "shop.charge"
	item, ok := s.content.FindItem(itemName)
	if !ok {
		return nil, game.NewError(game.ErrInvalidArgument, op, fmt.Sprintf("no item called %q", itemName))
	}
	if item.Price <= 0 {
		return nil, game.NewError(game.ErrInvalidArgument, op, fmt.Sprintf("%s is not for sale", item.Name))
	}
	if item.Price > p.Gold {
		return nil, game.NewError(game.ErrInsufficientFunds, op, s.content.Text(content.MsgInsufficientGold,
			"price", fmt.Sprint(item.Price),
			"gold", fmt.Sprint(p.Gold)))
	}

	p.Gold -= item.Price
	if err := s.store.AddItem(ctx, p.ID, item.ID, 1); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("Item purchased",
		"player_id", p.ID,
		"item_id", item.ID,
		"price", item.Price,
		"gold_left", p.Gold)
	return &Purchase{
		Item:     item,
		GoldLeft: p.Gold,
		Text:     s.content.Text(content.MsgPurchased, "item", item.Name, "gold", fmt.Sprint(p.Gold)),
	}, nil
}
