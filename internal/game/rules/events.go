package rules

import (
	"github.com/fparadis2/mox/internal/game/object"
)

// EventType identifies something that happened in a game.
type EventType string

const (
	EventGameStarted    EventType = "GAME_STARTED"
	EventGameEnded      EventType = "GAME_ENDED"
	EventTurnStarted    EventType = "TURN_STARTED"
	EventPhaseStarted   EventType = "PHASE_STARTED"
	EventStepStarted    EventType = "STEP_STARTED"
	EventMulligan       EventType = "MULLIGAN"
	EventCardDrawn      EventType = "CARD_DRAWN"
	EventLandPlayed     EventType = "LAND_PLAYED"
	EventSpellCast      EventType = "SPELL_CAST"
	EventSpellResolved  EventType = "SPELL_RESOLVED"
	EventSpellCountered EventType = "SPELL_COUNTERED"
	EventAttackDeclared EventType = "ATTACK_DECLARED"
	EventBlockDeclared  EventType = "BLOCK_DECLARED"
	EventDamageDealt    EventType = "DAMAGE_DEALT"
	EventLifeChanged    EventType = "LIFE_CHANGED"
	EventCreatureDied   EventType = "CREATURE_DIED"
	EventPlayerLost     EventType = "PLAYER_LOST"
)

// Event describes one game occurrence. Events are informational: state is
// only ever changed through commands.
type Event struct {
	Type   EventType
	Target object.ID // card or player the event is about
	Source object.ID // card or ability that caused it
	Player object.ID // player involved, usually the controller
	Amount int       // damage, life delta, cards drawn
	Phase  Phase
	Step   Step
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

type typedListener struct {
	handle    int
	eventType EventType
	callback  Listener
}

// EventBus is a synchronous publish/subscribe hub. It lives on the game
// goroutine like the rest of the game state.
type EventBus struct {
	listeners      map[int]Listener
	order          []int
	typedListeners map[EventType][]typedListener
	nextHandle     int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]typedListener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	bus.order = append(bus.order, handle)
	return handle
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, callback Listener) int {
	if callback == nil {
		return -1
	}
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], typedListener{
		handle:    handle,
		eventType: eventType,
		callback:  callback,
	})
	return handle
}

// Unsubscribe removes the listener identified by handle, typed or not.
func (bus *EventBus) Unsubscribe(handle int) {
	if _, ok := bus.listeners[handle]; ok {
		delete(bus.listeners, handle)
		for i, h := range bus.order {
			if h == handle {
				bus.order = append(bus.order[:i], bus.order[i+1:]...)
				break
			}
		}
		return
	}
	for eventType, listeners := range bus.typedListeners {
		for i, l := range listeners {
			if l.handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers the event to all registered listeners synchronously, in
// subscription order, general listeners first.
func (bus *EventBus) Publish(event Event) {
	if bus == nil {
		return
	}
	for _, h := range append([]int(nil), bus.order...) {
		if l, ok := bus.listeners[h]; ok {
			l(event)
		}
	}
	for _, l := range append([]typedListener(nil), bus.typedListeners[event.Type]...) {
		l.callback(event)
	}
}
