// Package ai chooses for computer players by searching the decisions that
// follow a choice on a private fork of the game.
package ai

import (
	"math"

	"github.com/fparadis2/mox/internal/game"
	"github.com/fparadis2/mox/internal/game/flow"
	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/rules"
)

const (
	// MaxValue is the value of a won game.
	MaxValue = math.MaxInt32
	// MinValue is the value of a lost game.
	MinValue = math.MinInt32
)

const (
	lifeWeight      = 1000
	creatureBase    = 50
	creatureStat    = 10
	cardInHand      = 20
	otherPermanent  = 30
)

// ComputeHeuristic scores the game for player: their material minus the
// material of every opponent. Ended games score MaxValue, MinValue or 0
// when considerGameEnding is set; every other score lies strictly between
// the bounds.
func ComputeHeuristic(g *game.Game, player object.ID, considerGameEnding bool) int {
	if considerGameEnding && g.IsEnded() {
		switch g.Winner() {
		case player:
			return MaxValue
		case object.InvalidID:
			return 0
		default:
			return MinValue
		}
	}
	score := material(g, player)
	for _, p := range g.Players() {
		if p != player {
			score -= material(g, p)
		}
	}
	return saturate(score)
}

func material(g *game.Game, player object.ID) float64 {
	score := lifeScore(g.LifeOf(player))
	for _, card := range g.Permanents(player) {
		if g.IsCreature(card) {
			pt := g.PowerToughness(card)
			score += creatureBase + creatureStat*float64(pt.Power+pt.Toughness)
			continue
		}
		score += otherPermanent
	}
	score += cardInHand * float64(len(g.Cards(player, rules.ZoneHand)))
	return score
}

// lifeScore values a life total on a log scale, in whole points. The raw
// life is added on top so that each point still counts where the logarithm
// grows by less than one.
func lifeScore(life int) float64 {
	if life <= 0 {
		return lifeWeight * float64(life)
	}
	return math.Floor(lifeWeight*math.Log(1+float64(life))) + float64(life)
}

func saturate(v float64) int {
	switch {
	case v >= MaxValue:
		return MaxValue - 1
	case v <= MinValue:
		return MinValue + 1
	}
	return int(math.Round(v))
}

// Node is a decision point of the search tree.
type Node struct {
	Depth  int
	Choice flow.Choice
}

// IsTerminal reports whether the search stops expanding at node. Ended
// games always stop. A combat in progress or a non-empty stack is played
// out whatever the depth.
func IsTerminal(node Node, g *game.Game, maxDepth int) bool {
	if g.IsEnded() {
		return true
	}
	if g.Step().IsCombatWindow() || g.StackTop() != object.InvalidID {
		return false
	}
	return node.Depth >= maxDepth
}
