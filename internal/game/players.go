package game

import (
	"fmt"

	"github.com/fparadis2/mox/internal/game/mana"
	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/rules"
	"go.uber.org/zap"
)

// AddPlayer creates a player with a library built from cards, in order.
func (g *Game) AddPlayer(name, deckName string, cards []string) (object.ID, error) {
	var id object.ID
	err := g.Atomic(func() error {
		var err error
		if id, err = g.Objects.Create(KindPlayer); err != nil {
			return err
		}
		if err := g.set(id, PlayerName, name); err != nil {
			return err
		}
		if err := g.set(id, DeckName, deckName); err != nil {
			return err
		}
		if err := g.set(id, Life, g.opts.StartingLife); err != nil {
			return err
		}
		if err := g.Objects.AddToCollection(RootID, Players, id, -1); err != nil {
			return err
		}
		for _, card := range cards {
			if _, err := g.CreateCard(id, card); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return object.InvalidID, fmt.Errorf("add player %q: %w", name, err)
	}
	g.logger.Info("player added",
		zap.String("name", name),
		zap.Int("player", int(id)),
		zap.Int("cards", len(cards)))
	return id, nil
}

// Players returns every player in seating order.
func (g *Game) Players() []object.ID {
	return g.Objects.Collection(RootID, Players)
}

// PlayerName returns the display name of a player.
func (g *Game) PlayerName(player object.ID) string {
	return object.Value[string](g.Objects, player, PlayerName)
}

// LifeOf returns the life total of a player.
func (g *Game) LifeOf(player object.ID) int {
	return object.Value[int](g.Objects, player, Life)
}

// ManaPoolOf returns the mana pool of a player.
func (g *Game) ManaPoolOf(player object.ID) mana.Pool {
	return object.Value[mana.Pool](g.Objects, player, ManaPool)
}

// HasLost reports whether a player has lost the game.
func (g *Game) HasLost(player object.ID) bool {
	return object.Value[bool](g.Objects, player, Lost)
}

// LivingPlayers returns the players still in the game, in seating order.
func (g *Game) LivingPlayers() []object.ID {
	var out []object.ID
	for _, p := range g.Players() {
		if !g.HasLost(p) {
			out = append(out, p)
		}
	}
	return out
}

// Opponents returns the living players other than player.
func (g *Game) Opponents(player object.ID) []object.ID {
	var out []object.ID
	for _, p := range g.LivingPlayers() {
		if p != player {
			out = append(out, p)
		}
	}
	return out
}

// NextPlayer returns the living player seated after player.
func (g *Game) NextPlayer(player object.ID) object.ID {
	players := g.Players()
	start := -1
	for i, p := range players {
		if p == player {
			start = i
			break
		}
	}
	for i := 1; i <= len(players); i++ {
		p := players[(start+i+len(players))%len(players)]
		if !g.HasLost(p) {
			return p
		}
	}
	return object.InvalidID
}

// AdjustLife adds delta to the life total of a player.
func (g *Game) AdjustLife(player object.ID, delta int, source object.ID) error {
	if delta == 0 {
		return nil
	}
	if err := g.set(player, Life, g.LifeOf(player)+delta); err != nil {
		return fmt.Errorf("adjust life of %d: %w", player, err)
	}
	g.publish(rules.Event{Type: rules.EventLifeChanged, Target: player, Source: source, Player: player, Amount: delta})
	return nil
}

// AddMana adds mana to the pool of a player.
func (g *Game) AddMana(player object.ID, t mana.ManaType, amount int) error {
	return g.set(player, ManaPool, g.ManaPoolOf(player).Add(t, amount))
}

// PayCost pays cost from the pool of a player, leaving it untouched when
// the pool cannot cover it.
func (g *Game) PayCost(player object.ID, cost mana.ManaCost) error {
	result := mana.CalculatePayment(cost, g.ManaPoolOf(player))
	if !result.Success {
		return fmt.Errorf("pay %s: %s: %w", cost, result.Reason, ErrIllegalAction)
	}
	return g.set(player, ManaPool, result.Remaining)
}

// EmptyManaPools drains every pool.
func (g *Game) EmptyManaPools() error {
	for _, p := range g.Players() {
		if err := g.reset(p, ManaPool); err != nil {
			return err
		}
	}
	return nil
}

// Mulligan shuffles the hand of player back and draws one card fewer.
func (g *Game) Mulligan(player object.ID) error {
	err := g.Atomic(func() error {
		hand := g.Cards(player, rules.ZoneHand)
		for _, card := range hand {
			if err := g.MoveCard(card, rules.ZoneLibrary); err != nil {
				return err
			}
		}
		if err := g.ShuffleLibrary(player); err != nil {
			return err
		}
		taken := object.Value[int](g.Objects, player, Mulligans) + 1
		if err := g.set(player, Mulligans, taken); err != nil {
			return err
		}
		size := g.opts.HandSize - taken
		if size < 0 {
			size = 0
		}
		return g.Draw(player, size)
	})
	if err != nil {
		return fmt.Errorf("mulligan %d: %w", player, err)
	}
	g.publish(rules.Event{Type: rules.EventMulligan, Player: player})
	return nil
}

// Lose records that a player lost the game.
func (g *Game) Lose(player object.ID) error {
	if g.HasLost(player) {
		return nil
	}
	if err := g.set(player, Lost, true); err != nil {
		return err
	}
	g.publish(rules.Event{Type: rules.EventPlayerLost, Player: player})
	g.logger.Info("player lost", zap.Int("player", int(player)), zap.String("name", g.PlayerName(player)))
	return nil
}
