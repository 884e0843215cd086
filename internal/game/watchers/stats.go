package watchers

import (
	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/rules"
)

// PlayerStats summarizes the game of one player.
type PlayerStats struct {
	SpellsCast    int `json:"spells_cast"`
	CardsDrawn    int `json:"cards_drawn"`
	CreaturesLost int `json:"creatures_lost"`
	LifeLost      int `json:"life_lost"`
}

// Stats bundles the common watchers and subscribes them to an event bus.
type Stats struct {
	Spells    *SpellsCastWatcher
	Draws     *CardsDrawnWatcher
	Creatures *CreaturesDiedWatcher
	Life      *LifeLostWatcher

	bus    *rules.EventBus
	handle int
}

// Watch subscribes a new set of watchers to bus.
func Watch(bus *rules.EventBus) *Stats {
	s := &Stats{
		Spells:    NewSpellsCastWatcher(),
		Draws:     NewCardsDrawnWatcher(),
		Creatures: NewCreaturesDiedWatcher(),
		Life:      NewLifeLostWatcher(),
		bus:       bus,
	}
	s.handle = bus.Subscribe(s.watch)
	return s
}

func (s *Stats) watchers() []Watcher {
	return []Watcher{s.Spells, s.Draws, s.Creatures, s.Life}
}

func (s *Stats) watch(event rules.Event) {
	for _, w := range s.watchers() {
		w.Watch(event)
	}
}

// Stop unsubscribes the watchers.
func (s *Stats) Stop() {
	s.bus.Unsubscribe(s.handle)
}

// Reset clears every watcher.
func (s *Stats) Reset() {
	for _, w := range s.watchers() {
		w.Reset()
	}
}

// Player returns the statistics of player.
func (s *Stats) Player(player object.ID) PlayerStats {
	return PlayerStats{
		SpellsCast:    s.Spells.Count(player),
		CardsDrawn:    s.Draws.Count(player),
		CreaturesLost: s.Creatures.AmountByOwner(player),
		LifeLost:      s.Life.Amount(player),
	}
}
