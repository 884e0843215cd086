package game

import (
	"fmt"

	"github.com/fparadis2/mox/internal/game/effects"
	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/rules"
	"go.uber.org/zap"
)

// Start shuffles every library and draws the opening hands.
func (g *Game) Start() error {
	if len(g.Players()) < 2 {
		return fmt.Errorf("start game: need 2 players, have %d: %w", len(g.Players()), ErrIllegalAction)
	}
	err := g.Atomic(func() error {
		for _, p := range g.Players() {
			if err := g.ShuffleLibrary(p); err != nil {
				return err
			}
			if err := g.Draw(p, g.opts.HandSize); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("start game: %w", err)
	}
	g.publish(rules.Event{Type: rules.EventGameStarted})
	g.logger.Info("game started", zap.Int("players", len(g.Players())))
	return nil
}

// UntapAll untaps the permanents of player. They are no longer summoning
// sick.
func (g *Game) UntapAll(player object.ID) error {
	return g.Atomic(func() error {
		for _, card := range g.Permanents(player) {
			if err := g.reset(card, Tapped); err != nil {
				return err
			}
			if err := g.reset(card, Sick); err != nil {
				return err
			}
		}
		return nil
	})
}

// Cleanup removes damage from creatures, ends until end of turn effects
// and empties mana pools.
func (g *Game) Cleanup() error {
	err := g.Atomic(func() error {
		for _, card := range g.Permanents(object.InvalidID) {
			if err := g.reset(card, Damage); err != nil {
				return err
			}
		}
		if err := effects.CleanupEndOfTurnEffects(g.Effects); err != nil {
			return err
		}
		return g.EmptyManaPools()
	})
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	return nil
}

// CheckStateBasedActions applies state-based actions until none applies.
// It reports whether anything happened.
func (g *Game) CheckStateBasedActions() (bool, error) {
	changed := false
	for {
		acted, err := g.stateBasedPass()
		if err != nil {
			return changed, fmt.Errorf("state-based actions: %w", err)
		}
		if !acted {
			return changed, nil
		}
		changed = true
	}
}

func (g *Game) stateBasedPass() (bool, error) {
	if g.IsEnded() {
		return false, nil
	}
	acted := false
	for _, p := range g.LivingPlayers() {
		if g.LifeOf(p) <= 0 || object.Value[bool](g.Objects, p, DrewFromEmpty) {
			if err := g.Lose(p); err != nil {
				return acted, err
			}
			acted = true
		}
	}
	for _, card := range g.Creatures(object.InvalidID) {
		pt := g.PowerToughness(card)
		if pt.Toughness <= 0 || g.DamageOn(card) >= pt.Toughness {
			if err := g.MoveCard(card, rules.ZoneGraveyard); err != nil {
				return acted, err
			}
			acted = true
		}
	}
	if living := g.LivingPlayers(); len(living) <= 1 && len(g.Players()) > 1 {
		winner := object.InvalidID
		if len(living) == 1 {
			winner = living[0]
		}
		if err := g.EndGame(winner); err != nil {
			return acted, err
		}
		acted = true
	}
	return acted, nil
}
