package ai

import (
	"math"
	"testing"
	"time"

	"github.com/fparadis2/mox/internal/game"
	"github.com/fparadis2/mox/internal/game/flow"
	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newGame(t *testing.T, deck1, deck2 []string) (*game.Game, object.ID, object.ID) {
	t.Helper()
	g, err := game.New(game.Options{Seed: 11}, zaptest.NewLogger(t))
	require.NoError(t, err)
	p1, err := g.AddPlayer("alice", "test", deck1)
	require.NoError(t, err)
	p2, err := g.AddPlayer("bob", "test", deck2)
	require.NoError(t, err)
	return g, p1, p2
}

func find(t *testing.T, g *game.Game, player object.ID, zone rules.Zone, name string) object.ID {
	t.Helper()
	for _, card := range g.Cards(player, zone) {
		if g.CardName(card) == name {
			return card
		}
	}
	t.Fatalf("no %s in %s of player %d", name, zone, player)
	return object.InvalidID
}

func TestHeuristicTerms(t *testing.T) {
	g, p1, p2 := newGame(t, []string{"Grizzly Bears", "Forest", "Mountain"}, nil)
	assert.Equal(t, 0, ComputeHeuristic(g, p1, true))

	require.NoError(t, g.AdjustLife(p2, -10, object.InvalidID))
	want := int(math.Floor(1000*math.Log(21))-math.Floor(1000*math.Log(11))) + 10
	assert.Equal(t, want, ComputeHeuristic(g, p1, true))
	assert.Equal(t, -want, ComputeHeuristic(g, p2, true))
	require.NoError(t, g.AdjustLife(p2, 10, object.InvalidID))

	bears := find(t, g, p1, rules.ZoneLibrary, "Grizzly Bears")
	require.NoError(t, g.MoveCard(bears, rules.ZoneBattlefield))
	assert.Equal(t, 50+10*4, ComputeHeuristic(g, p1, true))

	forest := find(t, g, p1, rules.ZoneLibrary, "Forest")
	require.NoError(t, g.MoveCard(forest, rules.ZoneBattlefield))
	mountain := find(t, g, p1, rules.ZoneLibrary, "Mountain")
	require.NoError(t, g.MoveCard(mountain, rules.ZoneHand))
	assert.Equal(t, 90+30+20, ComputeHeuristic(g, p1, true))
}

func TestHeuristicSaturates(t *testing.T) {
	g, p1, p2 := newGame(t, nil, nil)
	require.NoError(t, g.AdjustLife(p2, -3_000_000, object.InvalidID))
	assert.Equal(t, MaxValue-1, ComputeHeuristic(g, p1, false))
	assert.Equal(t, MinValue+1, ComputeHeuristic(g, p2, false))

	require.NoError(t, g.EndGame(p1))
	assert.Equal(t, MaxValue, ComputeHeuristic(g, p1, true))
	assert.Equal(t, MinValue, ComputeHeuristic(g, p2, true))
	assert.Equal(t, MaxValue-1, ComputeHeuristic(g, p1, false))
}

func TestHeuristicGrowsWithEveryLifePoint(t *testing.T) {
	g, p1, _ := newGame(t, nil, nil)
	require.NoError(t, g.AdjustLife(p1, 5000, object.InvalidID))
	prev := ComputeHeuristic(g, p1, false)
	for i := 0; i < 20; i++ {
		require.NoError(t, g.AdjustLife(p1, 1, object.InvalidID))
		next := ComputeHeuristic(g, p1, false)
		assert.Greater(t, next, prev, "life %d", g.LifeOf(p1))
		prev = next
	}
}

func TestIsTerminal(t *testing.T) {
	g, p1, _ := newGame(t, []string{"Lightning Bolt"}, nil)
	require.NoError(t, g.BeginTurn(p1))
	require.NoError(t, g.SetPhase(rules.PhasePrecombatMain))

	assert.False(t, IsTerminal(Node{Depth: 1}, g, 2))
	assert.True(t, IsTerminal(Node{Depth: 2}, g, 2))

	require.NoError(t, g.SetPhase(rules.PhaseCombat))
	require.NoError(t, g.SetStep(rules.StepDeclareBlockers))
	assert.False(t, IsTerminal(Node{Depth: 9}, g, 2), "combat is played out")

	require.NoError(t, g.SetStep(rules.StepEndOfCombat))
	bolt := find(t, g, p1, rules.ZoneLibrary, "Lightning Bolt")
	require.NoError(t, g.MoveCard(bolt, rules.ZoneStack))
	assert.False(t, IsTerminal(Node{Depth: 9}, g, 2), "the stack is played out")

	require.NoError(t, g.EndGame(p1))
	assert.True(t, IsTerminal(Node{Depth: 0}, g, 2))
}

func TestSessionsDoNotShareEnumerators(t *testing.T) {
	a := instantiate()
	b := instantiate()
	require.Contains(t, a, flow.KindAttackers)
	assert.NotSame(t, a[flow.KindAttackers], b[flow.KindAttackers])

	choice := flow.AttackersChoice{Player: 1, Candidates: []object.ID{5, 6}}
	a[flow.KindAttackers].Options(nil, choice)
	assert.Len(t, a[flow.KindAttackers].(*attackersEnumerator).cache, 1)
	assert.Empty(t, b[flow.KindAttackers].(*attackersEnumerator).cache)
}

func TestAttackSets(t *testing.T) {
	sets := attackSets([]object.ID{5, 6})
	assert.Equal(t, [][]object.ID{{5, 6}, {6}, {5}, nil}, sets)

	many := attackSets([]object.ID{1, 2, 3, 4, 5, 6})
	require.Len(t, many, 8)
	assert.Equal(t, []object.ID{1, 2, 3, 4, 5, 6}, many[0])
	assert.Nil(t, many[7])
}

func lethalBolt(t *testing.T) (*game.Game, object.ID, object.ID, object.ID) {
	t.Helper()
	g, p1, p2 := newGame(t, []string{"Mountain", "Lightning Bolt"}, []string{"Forest"})
	require.NoError(t, g.Draw(p1, 2))
	require.NoError(t, g.MoveCard(find(t, g, p1, rules.ZoneHand, "Mountain"), rules.ZoneBattlefield))
	require.NoError(t, g.BeginTurn(p1))
	require.NoError(t, g.SetPhase(rules.PhasePrecombatMain))
	require.NoError(t, g.AdjustLife(p2, -17, object.InvalidID))
	return g, p1, p2, find(t, g, p1, rules.ZoneHand, "Lightning Bolt")
}

func TestSearchLeavesTheGameUntouched(t *testing.T) {
	g, p1, _, bolt := lethalBolt(t)
	ctrl := NewController(Config{Depth: 6, Timeout: 5 * time.Second, MaxNodes: 10000}, zaptest.NewLogger(t))
	ctx := flow.NewContext(g, ctrl, zaptest.NewLogger(t))
	_, err := flow.PriorityLoop{Player: p1}.Execute(ctx)
	require.NoError(t, err)
	before := g.Checksum()
	commands := len(g.Transactions.Commands())

	action, err := ctrl.GivePriority(ctx, p1)
	require.NoError(t, err)
	assert.Equal(t, flow.CastSpellAction{Player: p1, Card: bolt}, action)
	assert.Equal(t, before, g.Checksum())
	assert.Len(t, g.Transactions.Commands(), commands)
	assert.Zero(t, g.Transactions.Depth())
}

func TestControllerFindsLethal(t *testing.T) {
	g, p1, p2, bolt := lethalBolt(t)
	master := flow.NewMasterController()
	master.Set(p1, NewController(Config{Depth: 6, Timeout: 5 * time.Second, MaxNodes: 10000}, zaptest.NewLogger(t)))
	ctx := flow.NewContext(g, master, zaptest.NewLogger(t))
	ctx.Schedule(flow.PriorityLoop{Player: p1})

	status, err := flow.NewSequencer(ctx).Run()
	require.NoError(t, err)
	assert.Equal(t, flow.StatusEnded, status)
	assert.Equal(t, p1, g.Winner())
	assert.True(t, g.HasLost(p2))
	assert.Equal(t, rules.ZoneGraveyard, g.ZoneOf(bolt))
}
