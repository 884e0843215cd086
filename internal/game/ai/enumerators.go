package ai

import (
	"fmt"
	"sync"

	"github.com/fparadis2/mox/internal/game/flow"
	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/rules"
)

// Enumerator lists the answers worth exploring for one kind of choice.
// Answers must have the type the choice expects.
type Enumerator interface {
	Options(ctx *flow.Context, choice flow.Choice) []any
}

var (
	registryMu  sync.RWMutex
	enumerators = map[flow.ChoiceKind]func() Enumerator{}
)

// Register installs the enumerator factory for a choice kind. Every search
// session gets its own instance.
func Register(kind flow.ChoiceKind, factory func() Enumerator) {
	registryMu.Lock()
	defer registryMu.Unlock()
	enumerators[kind] = factory
}

func init() {
	Register(flow.KindPriority, func() Enumerator { return priorityEnumerator{} })
	Register(flow.KindPayMana, func() Enumerator { return payManaEnumerator{} })
	Register(flow.KindTarget, func() Enumerator { return targetEnumerator{} })
	Register(flow.KindMulligan, func() Enumerator { return mulliganEnumerator{} })
	Register(flow.KindModal, func() Enumerator { return modalEnumerator{} })
	Register(flow.KindAttackers, func() Enumerator { return newAttackersEnumerator() })
	Register(flow.KindBlockers, func() Enumerator { return blockersEnumerator{} })
}

func instantiate() map[flow.ChoiceKind]Enumerator {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make(map[flow.ChoiceKind]Enumerator, len(enumerators))
	for kind, factory := range enumerators {
		out[kind] = factory()
	}
	return out
}

type priorityEnumerator struct{}

func (priorityEnumerator) Options(ctx *flow.Context, choice flow.Choice) []any {
	g := ctx.Game
	player := choice.Chooser()
	var out []any
	for _, card := range g.Cards(player, rules.ZoneHand) {
		switch {
		case g.CanPlayLand(player, card):
			out = append(out, flow.PlayLandAction{Player: player, Card: card})
		case g.CanCast(player, card):
			out = append(out, flow.CastSpellAction{Player: player, Card: card})
		}
	}
	return append(out, flow.PassAction{})
}

// payManaEnumerator follows the automatic payment plan: which land pays
// rarely matters and exploring every order multiplies the tree.
type payManaEnumerator struct{}

func (payManaEnumerator) Options(_ *flow.Context, choice flow.Choice) []any {
	c := choice.(flow.PayManaChoice)
	return []any{flow.SuggestPayment(c)}
}

type targetEnumerator struct{}

func (targetEnumerator) Options(_ *flow.Context, choice flow.Choice) []any {
	c := choice.(flow.TargetChoice)
	out := make([]any, 0, len(c.Candidates))
	for _, id := range c.Candidates {
		out = append(out, id)
	}
	return out
}

// mulliganEnumerator always keeps: the draws after a mulligan are hidden
// from the fork.
type mulliganEnumerator struct{}

func (mulliganEnumerator) Options(*flow.Context, flow.Choice) []any {
	return []any{false}
}

type modalEnumerator struct{}

func (modalEnumerator) Options(_ *flow.Context, choice flow.Choice) []any {
	c := choice.(flow.ModalChoice)
	out := make([]any, 0, len(c.Options))
	for i := range c.Options {
		out = append(out, i)
	}
	return out
}

// maxAttackSubsets bounds the candidates for which every subset of
// attackers is explored.
const maxAttackSubsets = 4

type attackersEnumerator struct {
	cache map[string][][]object.ID
}

func newAttackersEnumerator() *attackersEnumerator {
	return &attackersEnumerator{cache: make(map[string][][]object.ID)}
}

func (e *attackersEnumerator) Options(_ *flow.Context, choice flow.Choice) []any {
	c := choice.(flow.AttackersChoice)
	key := fmt.Sprint(c.Candidates)
	sets, ok := e.cache[key]
	if !ok {
		sets = attackSets(c.Candidates)
		e.cache[key] = sets
	}
	out := make([]any, 0, len(sets))
	for _, s := range sets {
		out = append(out, s)
	}
	return out
}

// attackSets lists every subset of candidates, largest first, or only the
// full attack, each single attacker and no attack when there are too many.
func attackSets(candidates []object.ID) [][]object.ID {
	n := len(candidates)
	var out [][]object.ID
	if n > maxAttackSubsets {
		out = append(out, append([]object.ID(nil), candidates...))
		for _, c := range candidates {
			out = append(out, []object.ID{c})
		}
		return append(out, nil)
	}
	for mask := (1 << n) - 1; mask >= 0; mask-- {
		var set []object.ID
		for i, c := range candidates {
			if mask&(1<<i) != 0 {
				set = append(set, c)
			}
		}
		out = append(out, set)
	}
	return out
}

type blockersEnumerator struct{}

func (blockersEnumerator) Options(ctx *flow.Context, choice flow.Choice) []any {
	g := ctx.Game
	c := choice.(flow.BlockersChoice)
	var all []flow.Block
	var out []any
	for _, b := range c.Candidates {
		first := true
		for _, a := range c.Attackers {
			if !g.CanBlock(b, a) {
				continue
			}
			out = append(out, []flow.Block{{Blocker: b, Attacker: a}})
			if first {
				all = append(all, flow.Block{Blocker: b, Attacker: a})
				first = false
			}
		}
	}
	if len(all) > 1 {
		out = append([]any{all}, out...)
	}
	return append(out, []flow.Block(nil))
}
