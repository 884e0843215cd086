package game

import (
	"testing"

	"github.com/fparadis2/mox/internal/game/effects"
	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type testGame struct {
	*Game
	p1, p2 object.ID
}

func newTestGame(t *testing.T, deck1, deck2 []string) *testGame {
	t.Helper()
	g, err := New(Options{Seed: 42}, zaptest.NewLogger(t))
	require.NoError(t, err)
	p1, err := g.AddPlayer("alice", "test", deck1)
	require.NoError(t, err)
	p2, err := g.AddPlayer("bob", "test", deck2)
	require.NoError(t, err)
	return &testGame{Game: g, p1: p1, p2: p2}
}

// card returns the first card named name owned by player, wherever it is.
func (tg *testGame) card(t *testing.T, player object.ID, name string) object.ID {
	t.Helper()
	for _, id := range tg.Objects.Objects() {
		if tg.Objects.Kind(id) == KindCard && tg.CardOwner(id) == player && tg.CardName(id) == name {
			return id
		}
	}
	t.Fatalf("no %s for player %d", name, player)
	return object.InvalidID
}

// onBattlefield puts a card into play ready to attack or tap.
func (tg *testGame) onBattlefield(t *testing.T, player object.ID, name string) object.ID {
	t.Helper()
	id := tg.card(t, player, name)
	require.NoError(t, tg.MoveCard(id, rules.ZoneBattlefield))
	require.NoError(t, tg.reset(id, Sick))
	return id
}

func (tg *testGame) mainPhase(t *testing.T, player object.ID) {
	t.Helper()
	require.NoError(t, tg.BeginTurn(player))
	require.NoError(t, tg.SetPhase(rules.PhasePrecombatMain))
}

func TestNewGameCreatesRootAndPlayers(t *testing.T) {
	tg := newTestGame(t, []string{"Mountain", "Lightning Bolt"}, []string{"Forest"})

	assert.Equal(t, KindGame, tg.Objects.Kind(RootID))
	assert.Equal(t, []object.ID{tg.p1, tg.p2}, tg.Players())
	assert.Equal(t, 20, tg.LifeOf(tg.p1))
	library := tg.Cards(tg.p1, rules.ZoneLibrary)
	require.Len(t, library, 2)
	assert.Equal(t, "Mountain", tg.CardName(library[0]))
	assert.Equal(t, tg.p2, tg.NextPlayer(tg.p1))
	assert.Equal(t, tg.p1, tg.NextPlayer(tg.p2))

	_, err := tg.AddPlayer("carol", "test", []string{"Black Lotus"})
	assert.ErrorIs(t, err, ErrUnknownCard)
	assert.Len(t, tg.Players(), 2, "failed player creation is rolled back")
}

func TestCastLightningBolt(t *testing.T) {
	tg := newTestGame(t, []string{"Mountain", "Lightning Bolt"}, []string{"Forest"})
	tg.mainPhase(t, tg.p1)
	require.NoError(t, tg.Draw(tg.p1, 2))

	mountain := tg.card(t, tg.p1, "Mountain")
	bolt := tg.card(t, tg.p1, "Lightning Bolt")
	require.NoError(t, tg.PlayLand(tg.p1, mountain))
	assert.False(t, tg.CanPlayLand(tg.p1, mountain))

	require.True(t, tg.CanCast(tg.p1, bolt))
	require.NoError(t, tg.Cast(tg.p1, bolt, []object.ID{tg.p2}))
	assert.Equal(t, bolt, tg.StackTop())
	assert.True(t, tg.IsTapped(mountain))
	assert.True(t, tg.ManaPoolOf(tg.p1).IsEmpty())

	require.NoError(t, tg.ResolveTop())
	assert.Equal(t, 17, tg.LifeOf(tg.p2))
	assert.Equal(t, rules.ZoneGraveyard, tg.ZoneOf(bolt))
	assert.Empty(t, tg.TargetsOf(bolt))
}

func TestFailedCastRollsBack(t *testing.T) {
	tg := newTestGame(t, []string{"Mountain", "Lightning Bolt"}, []string{"Forest"})
	tg.mainPhase(t, tg.p1)
	require.NoError(t, tg.Draw(tg.p1, 2))
	mountain := tg.card(t, tg.p1, "Mountain")
	bolt := tg.card(t, tg.p1, "Lightning Bolt")
	require.NoError(t, tg.PlayLand(tg.p1, mountain))

	forest := tg.card(t, tg.p2, "Forest")
	err := tg.Cast(tg.p1, bolt, []object.ID{forest})
	assert.ErrorIs(t, err, ErrIllegalAction)
	assert.Equal(t, rules.ZoneHand, tg.ZoneOf(bolt))
	assert.False(t, tg.IsTapped(mountain))
	assert.Zero(t, tg.Transactions.Depth())
}

func TestSpellWithIllegalTargetIsCountered(t *testing.T) {
	tg := newTestGame(t, []string{"Mountain", "Lightning Bolt"}, []string{"Grizzly Bears"})
	bears := tg.onBattlefield(t, tg.p2, "Grizzly Bears")
	tg.onBattlefield(t, tg.p1, "Mountain")
	bolt := tg.card(t, tg.p1, "Lightning Bolt")
	require.NoError(t, tg.MoveCard(bolt, rules.ZoneHand))
	tg.mainPhase(t, tg.p1)

	var countered []object.ID
	tg.Events.SubscribeTyped(rules.EventSpellCountered, func(e rules.Event) {
		countered = append(countered, e.Target)
	})
	require.NoError(t, tg.Cast(tg.p1, bolt, []object.ID{bears}))
	require.NoError(t, tg.MoveCard(bears, rules.ZoneGraveyard))
	require.NoError(t, tg.ResolveTop())

	assert.Equal(t, []object.ID{bolt}, countered)
	assert.Equal(t, rules.ZoneGraveyard, tg.ZoneOf(bolt))
	assert.Zero(t, tg.DamageOn(bears))
}

func TestAnthemFollowsBattlefield(t *testing.T) {
	tg := newTestGame(t, []string{"Savannah Lions", "Glorious Anthem", "Serra Angel"}, []string{"Grizzly Bears"})
	lions := tg.onBattlefield(t, tg.p1, "Savannah Lions")
	bears := tg.onBattlefield(t, tg.p2, "Grizzly Bears")
	anthem := tg.onBattlefield(t, tg.p1, "Glorious Anthem")

	assert.Equal(t, effects.PT{Power: 3, Toughness: 2}, tg.PowerToughness(lions))
	assert.Equal(t, effects.PT{Power: 2, Toughness: 2}, tg.PowerToughness(bears))

	angel := tg.onBattlefield(t, tg.p1, "Serra Angel")
	assert.Equal(t, effects.PT{Power: 5, Toughness: 5}, tg.PowerToughness(angel))

	require.NoError(t, tg.MoveCard(anthem, rules.ZoneGraveyard))
	assert.Equal(t, effects.PT{Power: 2, Toughness: 1}, tg.PowerToughness(lions))
	assert.Empty(t, tg.Effects.Instances())
}

func TestGiantGrowthEndsAtCleanup(t *testing.T) {
	tg := newTestGame(t, []string{"Forest", "Giant Growth"}, []string{"Grizzly Bears"})
	bears := tg.onBattlefield(t, tg.p2, "Grizzly Bears")
	tg.onBattlefield(t, tg.p1, "Forest")
	growth := tg.card(t, tg.p1, "Giant Growth")
	require.NoError(t, tg.MoveCard(growth, rules.ZoneHand))
	tg.mainPhase(t, tg.p1)

	require.NoError(t, tg.Cast(tg.p1, growth, []object.ID{bears}))
	require.NoError(t, tg.ResolveTop())
	assert.Equal(t, effects.PT{Power: 5, Toughness: 5}, tg.PowerToughness(bears))

	require.NoError(t, tg.Cleanup())
	assert.Equal(t, effects.PT{Power: 2, Toughness: 2}, tg.PowerToughness(bears))
}

func TestFlyingAttackerIsUnblockableByGroundCreatures(t *testing.T) {
	tg := newTestGame(t, []string{"Serra Angel"}, []string{"Grizzly Bears", "Giant Spider"})
	angel := tg.onBattlefield(t, tg.p1, "Serra Angel")
	bears := tg.onBattlefield(t, tg.p2, "Grizzly Bears")
	spider := tg.onBattlefield(t, tg.p2, "Giant Spider")
	require.NoError(t, tg.BeginTurn(tg.p1))

	require.NoError(t, tg.DeclareAttacker(angel))
	assert.False(t, tg.IsTapped(angel), "vigilance")
	assert.False(t, tg.CanBlock(bears, angel))
	assert.True(t, tg.CanBlock(spider, angel))

	require.NoError(t, tg.AssignCombatDamage())
	assert.Equal(t, 16, tg.LifeOf(tg.p2))

	require.NoError(t, tg.EndCombat())
	assert.Empty(t, tg.Attackers())
}

func TestSummoningSicknessAndDefender(t *testing.T) {
	tg := newTestGame(t, []string{"Hill Giant", "Raging Goblin", "Wall of Stone"}, []string{"Forest"})
	giant := tg.card(t, tg.p1, "Hill Giant")
	goblin := tg.card(t, tg.p1, "Raging Goblin")
	require.NoError(t, tg.MoveCard(giant, rules.ZoneBattlefield))
	require.NoError(t, tg.MoveCard(goblin, rules.ZoneBattlefield))
	wall := tg.onBattlefield(t, tg.p1, "Wall of Stone")
	require.NoError(t, tg.BeginTurn(tg.p1))

	assert.False(t, tg.CanAttack(giant))
	assert.True(t, tg.CanAttack(goblin), "haste")
	assert.False(t, tg.CanAttack(wall))

	require.NoError(t, tg.UntapAll(tg.p1))
	assert.True(t, tg.CanAttack(giant))
}

func TestBlockedCombatAndStateBasedActions(t *testing.T) {
	tg := newTestGame(t, []string{"Hill Giant"}, []string{"Grizzly Bears"})
	giant := tg.onBattlefield(t, tg.p1, "Hill Giant")
	bears := tg.onBattlefield(t, tg.p2, "Grizzly Bears")
	require.NoError(t, tg.BeginTurn(tg.p1))

	var died []object.ID
	tg.Events.SubscribeTyped(rules.EventCreatureDied, func(e rules.Event) {
		died = append(died, e.Target)
	})

	require.NoError(t, tg.DeclareAttacker(giant))
	require.NoError(t, tg.DeclareBlocker(bears, giant))
	assert.Equal(t, []object.ID{bears}, tg.BlockersOf(giant))
	require.NoError(t, tg.AssignCombatDamage())
	assert.Equal(t, 20, tg.LifeOf(tg.p2))
	assert.Equal(t, 2, tg.DamageOn(giant))

	acted, err := tg.CheckStateBasedActions()
	require.NoError(t, err)
	assert.True(t, acted)
	assert.Equal(t, []object.ID{bears}, died)
	assert.Equal(t, rules.ZoneBattlefield, tg.ZoneOf(giant))
	assert.Equal(t, rules.ZoneGraveyard, tg.ZoneOf(bears))
	assert.Equal(t, object.InvalidID, tg.BlockedBy(bears))
}

func TestPlayerLosesAtZeroLifeOrEmptyLibrary(t *testing.T) {
	tg := newTestGame(t, []string{"Forest"}, []string{"Forest"})

	require.NoError(t, tg.Draw(tg.p2, 2))
	acted, err := tg.CheckStateBasedActions()
	require.NoError(t, err)
	assert.True(t, acted)
	assert.True(t, tg.HasLost(tg.p2))
	assert.True(t, tg.IsEnded())
	assert.Equal(t, tg.p1, tg.Winner())

	acted, err = tg.CheckStateBasedActions()
	require.NoError(t, err)
	assert.False(t, acted)
}

func TestLifeLossEndsGame(t *testing.T) {
	tg := newTestGame(t, []string{"Forest"}, []string{"Forest"})
	require.NoError(t, tg.AdjustLife(tg.p1, -20, object.InvalidID))
	_, err := tg.CheckStateBasedActions()
	require.NoError(t, err)
	assert.Equal(t, tg.p2, tg.Winner())
	assert.Equal(t, []object.ID{tg.p2}, tg.LivingPlayers())
}

func TestMulliganDrawsOneFewer(t *testing.T) {
	deck := make([]string, 20)
	for i := range deck {
		deck[i] = "Forest"
	}
	tg := newTestGame(t, deck, deck)
	require.NoError(t, tg.Start())
	require.Len(t, tg.Cards(tg.p1, rules.ZoneHand), 7)

	require.NoError(t, tg.Mulligan(tg.p1))
	assert.Len(t, tg.Cards(tg.p1, rules.ZoneHand), 6)
	assert.Len(t, tg.Cards(tg.p1, rules.ZoneLibrary), 14)
}
