package replication

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	testOwner = object.NewProperty("repltest.owner", object.InvalidID, object.Public)
	testZone  = object.NewProperty("repltest.zone", "", object.Public)
	testName  = object.NewProperty("repltest.name", "", 0)
	testDeck  = object.NewProperty("repltest.deck", "", object.Private)
	testCards = object.NewCollection("repltest.cards", object.Public)
)

// zoneVisibility hides library cards from everyone and hand cards from
// everyone but their owner.
type zoneVisibility struct{}

func (zoneVisibility) IsVisible(m *object.Manager, obj, viewer object.ID) bool {
	if m.Kind(obj) != "card" {
		return true
	}
	switch object.Value[string](m, obj, testZone) {
	case "battlefield":
		return true
	case "hand":
		return viewer != Spectator && object.Value[object.ID](m, obj, testOwner) == viewer
	}
	return false
}

func (zoneVisibility) Owner(m *object.Manager, obj object.ID) object.ID {
	if m.Kind(obj) == "player" {
		return obj
	}
	return object.Value[object.ID](m, obj, testOwner)
}

func (zoneVisibility) Invalidates(prop *object.Property) bool {
	return prop == testZone
}

type recorder struct {
	*Replica
	updates int
	begins  int
	ends    int
	olds    []any
}

func (r *recorder) Synchronize(cmd object.Command) {
	if _, ok := cmd.(*object.UpdateObjectCommand); ok {
		r.updates++
	}
	r.olds = previousValues(r.olds, cmd)
	r.Replica.Synchronize(cmd)
}

// previousValues collects the Old values carried by the SetValue commands
// of cmd.
func previousValues(out []any, cmd object.Command) []any {
	switch c := cmd.(type) {
	case *transaction.MultiCommand[*object.Manager]:
		for _, child := range c.Commands() {
			out = previousValues(out, child)
		}
	case *transaction.ReverseCommand[*object.Manager]:
		out = previousValues(out, c.Inner())
	case *object.SetValueCommand:
		if c.Old != nil {
			out = append(out, c.Old)
		}
	}
	return out
}

func (r *recorder) BeginTransaction(t transaction.Type) {
	r.begins++
	r.Replica.BeginTransaction(t)
}

func (r *recorder) EndCurrentTransaction(rollback bool) {
	r.ends++
	r.Replica.EndCurrentTransaction(rollback)
}

type fixture struct {
	m       *object.Manager
	stack   *transaction.Stack[*object.Manager]
	hub     *Hub
	viewers map[object.ID]*recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	m := object.NewManager(logger)
	stack := transaction.NewStack(m)
	m.SetSink(stack)
	return &fixture{
		m:       m,
		stack:   stack,
		hub:     NewHub(stack, zoneVisibility{}, logger),
		viewers: make(map[object.ID]*recorder),
	}
}

func (f *fixture) register(t *testing.T, viewer object.ID) *recorder {
	t.Helper()
	r := &recorder{Replica: NewReplica(zaptest.NewLogger(t))}
	_, err := f.hub.Register(viewer, r)
	require.NoError(t, err)
	f.viewers[viewer] = r
	return r
}

func (f *fixture) player(t *testing.T) object.ID {
	t.Helper()
	id, err := f.m.Create("player")
	require.NoError(t, err)
	return id
}

func (f *fixture) card(t *testing.T, owner object.ID, zone, name string) object.ID {
	t.Helper()
	tx := f.stack.Begin(transaction.TypeAtomic)
	id, err := f.m.Create("card")
	require.NoError(t, err)
	require.NoError(t, f.m.SetValue(id, testOwner, owner))
	require.NoError(t, f.m.SetValue(id, testZone, zone))
	require.NoError(t, f.m.SetValue(id, testName, name))
	require.NoError(t, f.m.AddToCollection(owner, testCards, id, -1))
	require.NoError(t, tx.Commit())
	return id
}

func (f *fixture) move(t *testing.T, card object.ID, zone string) {
	t.Helper()
	require.NoError(t, f.m.SetValue(card, testZone, zone))
}

func (f *fixture) assertProjections(t *testing.T) {
	t.Helper()
	for viewer, r := range f.viewers {
		want := dump(Project(f.m, zoneVisibility{}, viewer))
		assert.Equal(t, want, dump(r.Manager), "viewer %d", viewer)
	}
}

func dump(m *object.Manager) map[object.ID]string {
	out := make(map[object.ID]string)
	for _, id := range m.Objects() {
		var lines []string
		for p, v := range m.Values(id) {
			lines = append(lines, fmt.Sprintf("%s=%v", p.Name(), v))
		}
		for p, ids := range m.Collections(id) {
			lines = append(lines, fmt.Sprintf("%s=%v", p.Name(), ids))
		}
		sort.Strings(lines)
		out[id] = m.Kind(id) + " " + strings.Join(lines, " ")
	}
	return out
}

func TestSynchronizeHidesLibraryCards(t *testing.T) {
	f := newFixture(t)
	p1 := f.player(t)
	card := f.card(t, p1, "library", "Lightning Bolt")

	for _, viewer := range []object.ID{p1, Spectator} {
		for _, cmd := range f.stack.Commands() {
			filtered := Synchronize(f.m, zoneVisibility{}, viewer, cmd)
			if filtered == nil {
				continue
			}
			r := NewReplica(nil)
			r.Synchronize(filtered)
			assert.NotEqual(t, "Lightning Bolt", object.Value[string](r.Manager, card, testName))
		}
	}

	name := &object.SetValueCommand{Object: card, Property: testName, New: "Shock"}
	assert.Nil(t, Synchronize(f.m, zoneVisibility{}, p1, name))
	zone := &object.SetValueCommand{Object: card, Property: testZone, New: "library"}
	assert.Same(t, zone, Synchronize(f.m, zoneVisibility{}, Spectator, zone))
}

func TestSynchronizeFiltersNestedCommands(t *testing.T) {
	f := newFixture(t)
	p1 := f.player(t)
	card := f.card(t, p1, "library", "Lightning Bolt")

	multi := transaction.NewMultiCommand[*object.Manager](
		&object.SetValueCommand{Object: card, Property: testName, New: "x"},
		&object.SetValueCommand{Object: card, Property: testZone, New: "library"},
	)
	filtered := Synchronize(f.m, zoneVisibility{}, p1, transaction.Reverse[*object.Manager](multi))
	rev, ok := filtered.(*transaction.ReverseCommand[*object.Manager])
	require.True(t, ok)
	inner, ok := rev.Inner().(*transaction.MultiCommand[*object.Manager])
	require.True(t, ok)
	assert.Equal(t, 1, inner.Len())

	hidden := transaction.NewMultiCommand[*object.Manager](
		&object.SetValueCommand{Object: card, Property: testName, New: "x"},
	)
	assert.Nil(t, Synchronize(f.m, zoneVisibility{}, p1, hidden))
}

func TestReplicasMatchProjection(t *testing.T) {
	f := newFixture(t)
	p1 := f.player(t)
	p2 := f.player(t)
	bolt := f.card(t, p1, "library", "Lightning Bolt")

	f.register(t, p1)
	f.register(t, p2)
	f.register(t, Spectator)
	f.assertProjections(t)

	f.move(t, bolt, "hand")
	f.assertProjections(t)
	assert.Equal(t, "Lightning Bolt", object.Value[string](f.viewers[p1].Manager, bolt, testName))
	assert.Empty(t, object.Value[string](f.viewers[p2].Manager, bolt, testName))

	tx := f.stack.Begin(transaction.TypeNormal)
	f.move(t, bolt, "battlefield")
	bear := f.card(t, p2, "hand", "Grizzly Bears")
	require.NoError(t, tx.Commit())
	f.assertProjections(t)
	assert.Equal(t, "Lightning Bolt", object.Value[string](f.viewers[Spectator].Manager, bolt, testName))

	tx = f.stack.Begin(transaction.TypeNormal)
	f.move(t, bolt, "library")
	require.NoError(t, tx.Rollback())
	f.assertProjections(t)

	f.move(t, bolt, "library")
	f.assertProjections(t)
	assert.Empty(t, object.Value[string](f.viewers[p1].Manager, bolt, testName))

	require.NoError(t, f.m.SetValue(p1, testDeck, "burn"))
	f.assertProjections(t)
	assert.Equal(t, "burn", object.Value[string](f.viewers[p1].Manager, p1, testDeck))
	assert.Empty(t, object.Value[string](f.viewers[p2].Manager, p1, testDeck))

	require.NoError(t, f.m.Destroy(bear))
	f.assertProjections(t)
	require.NoError(t, f.stack.Undo())
	f.assertProjections(t)
	assert.Equal(t, "Grizzly Bears", object.Value[string](f.viewers[p2].Manager, bear, testName))
}

func TestToggleTwiceInAtomicProducesNoDelayedSync(t *testing.T) {
	f := newFixture(t)
	p1 := f.player(t)
	card := f.card(t, p1, "library", "Lightning Bolt")
	r := f.register(t, p1)

	tx := f.stack.Begin(transaction.TypeAtomic)
	f.move(t, card, "hand")
	f.move(t, card, "library")
	require.NoError(t, tx.Commit())

	assert.Zero(t, r.updates)
	assert.Zero(t, r.begins)
	f.assertProjections(t)

	tx = f.stack.Begin(transaction.TypeNormal)
	f.move(t, card, "hand")
	f.move(t, card, "library")
	require.NoError(t, tx.Commit())

	assert.Zero(t, r.updates)
	assert.Equal(t, 1, r.begins)
	f.assertProjections(t)
}

func TestDelayedSyncFlushesAtOutermostBoundary(t *testing.T) {
	f := newFixture(t)
	p1 := f.player(t)
	card := f.card(t, p1, "library", "Lightning Bolt")
	r := f.register(t, p1)

	outer := f.stack.Begin(transaction.TypeNormal)
	inner := f.stack.Begin(transaction.TypeAtomic)
	f.move(t, card, "hand")
	require.NoError(t, inner.Commit())
	assert.Zero(t, r.updates, "no delayed sync inside a transaction")

	nested := f.stack.Begin(transaction.TypeNormal)
	require.NoError(t, nested.Commit())
	assert.Zero(t, r.updates, "inner commits do not flush")

	require.NoError(t, outer.Commit())
	assert.Equal(t, 1, r.updates)
	assert.Equal(t, "Lightning Bolt", object.Value[string](r.Manager, card, testName))
	f.assertProjections(t)
}

func TestRollbackDiscardsPendingSync(t *testing.T) {
	f := newFixture(t)
	p1 := f.player(t)
	card := f.card(t, p1, "library", "Lightning Bolt")
	r := f.register(t, p1)

	outer := f.stack.Begin(transaction.TypeNormal)
	inner := f.stack.Begin(transaction.TypeNormal)
	f.move(t, card, "hand")
	require.NoError(t, inner.Rollback())
	require.NoError(t, outer.Commit())

	assert.Zero(t, r.updates)
	assert.Zero(t, r.Depth())
	f.assertProjections(t)

	// The rolled back toggle must not leave stale bookkeeping behind.
	f.move(t, card, "hand")
	assert.Equal(t, 1, r.updates)
	f.assertProjections(t)
}

func TestRevealDoesNotReplicatePreviousValues(t *testing.T) {
	for _, atomic := range []bool{false, true} {
		t.Run(fmt.Sprintf("atomic=%v", atomic), func(t *testing.T) {
			f := newFixture(t)
			p1 := f.player(t)
			card := f.card(t, p1, "library", "Lightning Bolt")
			r := f.register(t, p1)

			outer := f.stack.Begin(transaction.TypeNormal)
			var inner *transaction.Transaction[*object.Manager]
			if atomic {
				inner = f.stack.Begin(transaction.TypeAtomic)
			}
			f.move(t, card, "hand")
			require.NoError(t, f.m.SetValue(card, testName, "Shock"))
			if inner != nil {
				require.NoError(t, inner.Commit())
			}
			require.NoError(t, outer.Rollback())

			f.assertProjections(t)
			assert.Empty(t, object.Value[string](r.Manager, card, testName))
			assert.NotContains(t, r.olds, "Lightning Bolt")
		})
	}
}

func TestUndoOfVisibleValueRestoresIt(t *testing.T) {
	f := newFixture(t)
	p1 := f.player(t)
	card := f.card(t, p1, "battlefield", "Lightning Bolt")
	r := f.register(t, Spectator)

	require.NoError(t, f.m.SetValue(card, testName, "Shock"))
	assert.Contains(t, r.olds, "Lightning Bolt")
	require.NoError(t, f.stack.Undo())
	f.assertProjections(t)
	assert.Equal(t, "Lightning Bolt", object.Value[string](r.Manager, card, testName))
}

func TestLateRegistrationSeesCurrentVisibility(t *testing.T) {
	f := newFixture(t)
	p1 := f.player(t)
	p2 := f.player(t)
	returned := f.card(t, p1, "library", "Lightning Bolt")
	played := f.card(t, p1, "hand", "Grizzly Bears")
	f.move(t, returned, "battlefield")
	f.move(t, returned, "library")
	f.move(t, played, "battlefield")

	r := f.register(t, p2)
	f.assertProjections(t)
	assert.Empty(t, object.Value[string](r.Manager, returned, testName), "public once, hidden now")
	assert.Equal(t, "Grizzly Bears", object.Value[string](r.Manager, played, testName), "hidden once, public now")
}

func TestRegisterInsideTransactionFails(t *testing.T) {
	f := newFixture(t)
	tx := f.stack.Begin(transaction.TypeNormal)
	_, err := f.hub.Register(Spectator, NewReplica(nil))
	assert.ErrorIs(t, err, ErrInTransaction)
	require.NoError(t, tx.Commit())

	handle, err := f.hub.Register(Spectator, NewReplica(nil))
	require.NoError(t, err)
	assert.Equal(t, 1, f.hub.Listeners())
	f.hub.Unregister(handle)
	assert.Zero(t, f.hub.Listeners())
}
