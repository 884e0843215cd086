package watchers

import (
	"testing"

	"github.com/fparadis2/mox/internal/game/rules"
)

func TestSpellsCastWatcher(t *testing.T) {
	watcher := NewSpellsCastWatcher()

	if watcher.Triggered() {
		t.Fatal("watcher should not be triggered initially")
	}
	if watcher.Count(2) != 0 {
		t.Fatalf("expected 0 spells cast, got %d", watcher.Count(2))
	}

	watcher.Watch(rules.Event{Type: rules.EventSpellCast, Target: 10, Player: 2})
	watcher.Watch(rules.Event{Type: rules.EventSpellCast, Target: 11, Player: 2})
	watcher.Watch(rules.Event{Type: rules.EventSpellResolved, Target: 10, Player: 2})

	if !watcher.Triggered() {
		t.Fatal("watcher should be triggered after a spell cast")
	}
	if got := watcher.SpellsCast(2); len(got) != 2 || got[0] != 10 || got[1] != 11 {
		t.Fatalf("unexpected spells cast %v", got)
	}

	watcher.Reset()
	if watcher.Triggered() || watcher.Count(2) != 0 {
		t.Fatal("reset should clear the watcher")
	}
}

func TestCreaturesDiedWatcher(t *testing.T) {
	watcher := NewCreaturesDiedWatcher()
	watcher.Watch(rules.Event{Type: rules.EventCreatureDied, Target: 10, Player: 2})
	watcher.Watch(rules.Event{Type: rules.EventCreatureDied, Target: 11, Player: 3})
	watcher.Watch(rules.Event{Type: rules.EventCreatureDied, Target: 12, Player: 3})

	if watcher.AmountByOwner(3) != 2 {
		t.Fatalf("expected 2 creatures died for player 3, got %d", watcher.AmountByOwner(3))
	}
	if watcher.TotalAmount() != 3 {
		t.Fatalf("expected 3 creatures died, got %d", watcher.TotalAmount())
	}
}

func TestCardsDrawnWatcher(t *testing.T) {
	watcher := NewCardsDrawnWatcher()
	watcher.Watch(rules.Event{Type: rules.EventCardDrawn, Player: 2, Amount: 1})
	watcher.Watch(rules.Event{Type: rules.EventCardDrawn, Player: 2, Amount: 1})
	watcher.Watch(rules.Event{Type: rules.EventCardDrawn, Amount: 1})

	if watcher.Count(2) != 2 {
		t.Fatalf("expected 2 cards drawn, got %d", watcher.Count(2))
	}
}

func TestStatsFollowBus(t *testing.T) {
	bus := rules.NewEventBus()
	stats := Watch(bus)

	bus.Publish(rules.Event{Type: rules.EventLifeChanged, Target: 2, Player: 2, Amount: -3})
	bus.Publish(rules.Event{Type: rules.EventLifeChanged, Target: 2, Player: 2, Amount: 2})
	bus.Publish(rules.Event{Type: rules.EventSpellCast, Target: 10, Player: 3})

	if got := stats.Player(2); got.LifeLost != 3 {
		t.Fatalf("expected 3 life lost, got %+v", got)
	}
	if got := stats.Player(3); got.SpellsCast != 1 {
		t.Fatalf("expected 1 spell cast, got %+v", got)
	}

	stats.Stop()
	bus.Publish(rules.Event{Type: rules.EventSpellCast, Target: 11, Player: 3})
	if got := stats.Player(3); got.SpellsCast != 1 {
		t.Fatalf("stopped stats should not count, got %+v", got)
	}

	stats.Reset()
	if got := stats.Player(2); got != (PlayerStats{}) {
		t.Fatalf("expected empty stats after reset, got %+v", got)
	}
}
