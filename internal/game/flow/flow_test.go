package flow

import (
	"testing"

	"github.com/fparadis2/mox/internal/game"
	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newGame(t *testing.T, deck1, deck2 []string) (*game.Game, object.ID, object.ID) {
	t.Helper()
	g, err := game.New(game.Options{Seed: 7}, zaptest.NewLogger(t))
	require.NoError(t, err)
	p1, err := g.AddPlayer("alice", "test", deck1)
	require.NoError(t, err)
	p2, err := g.AddPlayer("bob", "test", deck2)
	require.NoError(t, err)
	return g, p1, p2
}

func repeat(name string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = name
	}
	return out
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

// scripted plays queued actions, then passes. Everything it is not scripted
// for is answered like a dead player would.
type scripted struct {
	DeadController
	actions map[object.ID][]Action
	target  object.ID
	attack  bool
	asked   []object.ID
}

func (s *scripted) GivePriority(_ *Context, player object.ID) (Action, error) {
	s.asked = append(s.asked, player)
	queue := s.actions[player]
	if len(queue) == 0 {
		return PassAction{}, nil
	}
	s.actions[player] = queue[1:]
	return queue[0], nil
}

func (s *scripted) Target(*Context, TargetChoice) (object.ID, error) {
	return s.target, nil
}

func (s *scripted) PayMana(_ *Context, c PayManaChoice) (*PayManaAction, error) {
	return SuggestPayment(c), nil
}

func (s *scripted) DeclareAttackers(_ *Context, c AttackersChoice) ([]object.ID, error) {
	if !s.attack {
		return nil, nil
	}
	return c.Candidates, nil
}

func TestSequencePhaseWithoutStepsSchedulesPriority(t *testing.T) {
	g, p1, _ := newGame(t, []string{"Mountain"}, []string{"Forest"})
	require.NoError(t, g.BeginTurn(p1))
	ctx := NewContext(g, nil, zaptest.NewLogger(t))

	next, err := SequencePhase{Phase: rules.PhaseDescriptor{Type: rules.PhasePrecombatMain}}.Execute(ctx)
	require.NoError(t, err)
	assert.Nil(t, next)
	assert.Equal(t, rules.PhasePrecombatMain, g.Phase())
	assert.Equal(t, []Part{PriorityLoop{Player: p1}}, ctx.Scheduled())
}

func TestSequencePhaseSchedulesStepsInOrder(t *testing.T) {
	g, p1, _ := newGame(t, []string{"Mountain"}, []string{"Forest"})
	require.NoError(t, g.BeginTurn(p1))
	ctx := NewContext(g, nil, zaptest.NewLogger(t))
	combat, ok := rules.DefaultTurn.Phase(rules.PhaseCombat)
	require.True(t, ok)

	_, err := SequencePhase{Phase: combat}.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, rules.PhaseCombat, g.Phase())
	assert.Equal(t, rules.StepNone, g.Step())
	want := make([]Part, 0, len(combat.Steps))
	for _, s := range combat.Steps {
		want = append(want, SequenceStep{Step: s})
	}
	assert.Equal(t, want, ctx.Scheduled())
}

func TestSequenceStepSetsStepBeforeScheduling(t *testing.T) {
	g, p1, _ := newGame(t, []string{"Mountain"}, []string{"Forest"})
	require.NoError(t, g.BeginTurn(p1))

	tests := []struct {
		step rules.Step
		want []Part
	}{
		{rules.StepUntap, []Part{UntapStep{}}},
		{rules.StepUpkeep, []Part{PriorityLoop{Player: p1}}},
		{rules.StepDraw, []Part{DrawStep{}, PriorityLoop{Player: p1}}},
		{rules.StepDeclareAttackers, []Part{DeclareAttackersPart{}, PriorityLoop{Player: p1}}},
		{rules.StepEndOfCombat, []Part{PriorityLoop{Player: p1}, EndCombatPart{}}},
		{rules.StepCleanup, []Part{CleanupStep{}}},
	}
	for _, tt := range tests {
		t.Run(tt.step.String(), func(t *testing.T) {
			ctx := NewContext(g, nil, zaptest.NewLogger(t))
			_, err := SequenceStep{Step: tt.step}.Execute(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.step, g.Step())
			assert.Equal(t, tt.want, ctx.Scheduled())
		})
	}
}

func TestCombatStepsAreSkippedWithoutAttackers(t *testing.T) {
	g, p1, _ := newGame(t, []string{"Mountain"}, []string{"Forest"})
	require.NoError(t, g.BeginTurn(p1))
	require.NoError(t, g.SetStep(rules.StepDeclareAttackers))
	ctx := NewContext(g, nil, zaptest.NewLogger(t))

	_, err := SequenceStep{Step: rules.StepDeclareBlockers}.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, rules.StepDeclareAttackers, g.Step())
	assert.Empty(t, ctx.Scheduled())
}

func TestPopChoiceResultPanicsOnMisuse(t *testing.T) {
	g, _, _ := newGame(t, nil, nil)
	ctx := NewContext(g, nil, zaptest.NewLogger(t))

	assert.PanicsWithError(t, "invalid program: no choice result to pop", func() {
		PopChoiceResult[int](ctx)
	})
	ctx.PushChoiceResult("seven")
	assert.PanicsWithError(t, "invalid program: choice result is string, want int", func() {
		PopChoiceResult[int](ctx)
	})

	ctx.PushChoiceResult(7)
	assert.Equal(t, 7, PopChoiceResult[int](ctx))
}

func TestPayManaActionIsNeverExecuted(t *testing.T) {
	g, _, _ := newGame(t, nil, nil)
	ctx := NewContext(g, nil, zaptest.NewLogger(t))
	assert.Panics(t, func() {
		_, _ = (&PayManaAction{}).Execute(ctx)
	})
}

func TestContextCloneIsIndependent(t *testing.T) {
	g, p1, p2 := newGame(t, nil, nil)
	ctx := NewContext(g, nil, zaptest.NewLogger(t))
	ctx.Schedule(PriorityLoop{Player: p1}, PriorityLoop{Player: p2})
	ctx.PushChoiceResult(true)

	clone := ctx.Clone(g, SuspendingController{})
	assert.Equal(t, ctx.Scheduled(), clone.Scheduled())
	assert.Equal(t, PriorityLoop{Player: p1}, clone.pop())
	assert.True(t, PopChoiceResult[bool](clone))

	assert.Len(t, ctx.Scheduled(), 2)
	assert.True(t, PopChoiceResult[bool](ctx))
	assert.IsType(t, DeadController{}, ctx.Controller)
}

func TestDeferredChoiceResumes(t *testing.T) {
	g, p1, _ := newGame(t, repeat("Mountain", 10), repeat("Forest", 10))
	require.NoError(t, g.Start())
	ctx := NewContext(g, SuspendingController{}, zaptest.NewLogger(t))
	ctx.Schedule(MulliganPart{Player: p1})
	seq := NewSequencer(ctx)

	status, err := seq.Run()
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, status)
	assert.Equal(t, MulliganChoice{Player: p1}, ctx.PendingChoice())

	status, err = seq.Resume(3)
	assert.Error(t, err, "a mulligan takes a bool")
	assert.Equal(t, StatusWaiting, status)

	status, err = seq.Resume(true)
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, status, "asked again after a mulligan")
	assert.Len(t, g.Cards(p1, rules.ZoneHand), 6)

	status, err = seq.Resume(nil)
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, status)
	assert.Nil(t, ctx.PendingChoice())
	assert.Len(t, g.Cards(p1, rules.ZoneHand), 6)

	_, err = seq.Resume(false)
	assert.ErrorIs(t, err, ErrNoPendingChoice)
}

func TestStartGameAsksPlayOrDraw(t *testing.T) {
	g, _, _ := newGame(t, repeat("Mountain", 10), repeat("Forest", 10))
	ctx := NewContext(g, SuspendingController{}, zaptest.NewLogger(t))
	ctx.Schedule(StartGame{})
	seq := NewSequencer(ctx)

	status, err := seq.Run()
	require.NoError(t, err)
	require.Equal(t, StatusWaiting, status)
	modal, ok := ctx.PendingChoice().(ModalChoice)
	require.True(t, ok)
	assert.Equal(t, []string{"Play", "Draw"}, modal.Options)
	for _, p := range g.Players() {
		assert.Len(t, g.Cards(p, rules.ZoneHand), 7)
	}

	status, err = seq.Resume(1)
	require.NoError(t, err)
	require.Equal(t, StatusWaiting, status)
	assert.Equal(t, MulliganChoice{Player: g.NextPlayer(modal.Player)}, ctx.PendingChoice())

	_, err = seq.Resume(false)
	require.NoError(t, err)
	assert.Equal(t, MulliganChoice{Player: modal.Player}, ctx.PendingChoice())

	_, err = seq.Resume(false)
	require.NoError(t, err)
	assert.Equal(t, g.NextPlayer(modal.Player), g.ActivePlayer(), "the chooser drew")
	assert.Equal(t, 1, g.TurnNumber())
}

func TestCastThroughPriority(t *testing.T) {
	g, p1, p2 := newGame(t, []string{"Mountain", "Lightning Bolt"}, []string{"Forest"})
	require.NoError(t, g.Draw(p1, 2))
	mountain := find(t, g, p1, rules.ZoneHand, "Mountain")
	bolt := find(t, g, p1, rules.ZoneHand, "Lightning Bolt")
	require.NoError(t, g.MoveCard(mountain, rules.ZoneBattlefield))
	require.NoError(t, g.BeginTurn(p1))
	require.NoError(t, g.SetPhase(rules.PhasePrecombatMain))

	ctrl := &scripted{
		actions: map[object.ID][]Action{p1: {CastSpellAction{Player: p1, Card: bolt}}},
		target:  p2,
	}
	ctx := NewContext(g, ctrl, zaptest.NewLogger(t))
	ctx.Schedule(PriorityLoop{Player: p1})
	status, err := NewSequencer(ctx).Run()
	require.NoError(t, err)

	assert.Equal(t, StatusIdle, status)
	assert.Equal(t, 17, g.LifeOf(p2))
	assert.Equal(t, rules.ZoneGraveyard, g.ZoneOf(bolt))
	assert.True(t, g.IsTapped(mountain))
	assert.Equal(t, []object.ID{p1, p1, p2, p1, p2}, ctrl.asked)
}

func TestCancelledPaymentChangesNothing(t *testing.T) {
	g, p1, p2 := newGame(t, []string{"Mountain", "Lightning Bolt"}, []string{"Forest"})
	require.NoError(t, g.Draw(p1, 2))
	mountain := find(t, g, p1, rules.ZoneHand, "Mountain")
	bolt := find(t, g, p1, rules.ZoneHand, "Lightning Bolt")
	require.NoError(t, g.MoveCard(mountain, rules.ZoneBattlefield))
	require.NoError(t, g.BeginTurn(p1))
	require.NoError(t, g.SetPhase(rules.PhasePrecombatMain))
	before := g.Checksum()

	ctx := NewContext(g, SuspendingController{}, zaptest.NewLogger(t))
	ctx.Schedule(CastSpellAction{Player: p1, Card: bolt})
	seq := NewSequencer(ctx)
	_, err := seq.Run()
	require.NoError(t, err)
	target, ok := ctx.PendingChoice().(TargetChoice)
	require.True(t, ok)
	assert.Contains(t, target.Candidates, p2)

	_, err = seq.Resume(p2)
	require.NoError(t, err)
	pay, ok := ctx.PendingChoice().(PayManaChoice)
	require.True(t, ok)
	assert.Equal(t, &PayManaAction{Player: p1, Source: mountain}, SuggestPayment(pay))
	assert.Equal(t, before, g.Checksum(), "nothing happens before the payment is complete")

	status, err := seq.Resume(nil)
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, status)
	assert.Equal(t, before, g.Checksum())
	assert.Equal(t, rules.ZoneHand, g.ZoneOf(bolt))
}

func TestIllegalActionIsAskedAgain(t *testing.T) {
	g, p1, p2 := newGame(t, []string{"Mountain"}, []string{"Forest"})
	forest := find(t, g, p2, rules.ZoneLibrary, "Forest")
	require.NoError(t, g.BeginTurn(p1))
	require.NoError(t, g.SetPhase(rules.PhasePrecombatMain))

	ctrl := &scripted{actions: map[object.ID][]Action{p1: {PlayLandAction{Player: p1, Card: forest}}}}
	ctx := NewContext(g, ctrl, zaptest.NewLogger(t))
	ctx.Schedule(PriorityLoop{Player: p1})
	_, err := NewSequencer(ctx).Run()
	require.NoError(t, err)

	assert.Equal(t, []object.ID{p1, p1, p2}, ctrl.asked)
	assert.Equal(t, rules.ZoneLibrary, g.ZoneOf(forest))
}

func TestCombatPhase(t *testing.T) {
	g, p1, p2 := newGame(t, []string{"Raging Goblin"}, []string{"Forest"})
	goblin := find(t, g, p1, rules.ZoneLibrary, "Raging Goblin")
	require.NoError(t, g.MoveCard(goblin, rules.ZoneBattlefield))
	require.NoError(t, g.BeginTurn(p1))
	combat, _ := rules.DefaultTurn.Phase(rules.PhaseCombat)

	ctx := NewContext(g, &scripted{attack: true}, zaptest.NewLogger(t))
	ctx.Schedule(SequencePhase{Phase: combat})
	status, err := NewSequencer(ctx).Run()
	require.NoError(t, err)

	assert.Equal(t, StatusIdle, status)
	assert.Equal(t, 19, g.LifeOf(p2))
	assert.True(t, g.IsTapped(goblin))
	assert.Empty(t, g.Attackers())
	assert.Equal(t, rules.StepEndOfCombat, g.Step())
}

func TestDeadPlayersDeckOut(t *testing.T) {
	g, p1, p2 := newGame(t, repeat("Mountain", 9), repeat("Forest", 9))
	ctx := NewContext(g, NewMasterController(), zaptest.NewLogger(t))
	ctx.Schedule(StartGame{})

	status, err := NewSequencer(ctx).Run()
	require.NoError(t, err)
	assert.Equal(t, StatusEnded, status)
	assert.True(t, g.IsEnded())
	assert.Contains(t, []object.ID{p1, p2}, g.Winner())
	assert.LessOrEqual(t, g.TurnNumber(), 6)
}

func TestMasterControllerFallsBackToDead(t *testing.T) {
	g, p1, p2 := newGame(t, nil, nil)
	ctx := NewContext(g, nil, zaptest.NewLogger(t))
	m := NewMasterController()
	m.Set(p1, SuspendingController{})

	_, err := m.GivePriority(ctx, p1)
	assert.ErrorIs(t, err, ErrDeferred)
	a, err := m.GivePriority(ctx, p2)
	require.NoError(t, err)
	assert.Equal(t, PassAction{}, a)

	m.Remove(p1)
	a, err = m.GivePriority(ctx, p1)
	require.NoError(t, err)
	assert.Equal(t, PassAction{}, a)
	keep, err := m.Mulligan(ctx, p1)
	require.NoError(t, err)
	assert.False(t, keep)
}
