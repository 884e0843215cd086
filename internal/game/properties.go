package game

import (
	"github.com/fparadis2/mox/internal/game/mana"
	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/rules"
)

// Object kinds.
const (
	KindGame   = "game"
	KindPlayer = "player"
	KindCard   = "card"
)

// RootID is the game object. It is always the first object created, on the
// master and on every replica.
const RootID object.ID = 1

// Game state.
var (
	CurrentPhase = object.NewProperty("game.phase", rules.PhaseNone, object.Public)
	CurrentStep  = object.NewProperty("game.step", rules.StepNone, object.Public)
	ActivePlayer = object.NewProperty("game.active_player", object.InvalidID, object.Public)
	TurnNumber   = object.NewProperty("game.turn", 0, object.Public)
	Winner       = object.NewProperty("game.winner", object.InvalidID, object.Public)
	Ended        = object.NewProperty("game.ended", false, object.Public)

	Players     = object.NewCollection("game.players", object.Public)
	StackZone   = object.NewCollection("game.stack", object.Public)
	Battlefield = object.NewCollection("game.battlefield", object.Public)
	Exile       = object.NewCollection("game.exile", object.Public)
)

// Player state.
var (
	PlayerName    = object.NewProperty("player.name", "", object.Public)
	Life          = object.NewProperty("player.life", 0, object.Public)
	ManaPool      = object.NewProperty("player.mana_pool", mana.Pool{}, object.Public)
	LandsPlayed   = object.NewProperty("player.lands_played", 0, object.Public)
	Lost          = object.NewProperty("player.lost", false, object.Public)
	DrewFromEmpty = object.NewProperty("player.drew_from_empty", false, object.Public)
	Mulligans     = object.NewProperty("player.mulligans", 0, object.Public)
	DeckName      = object.NewProperty("player.deck", "", object.Private)

	Library   = object.NewCollection("player.library", object.Public)
	Hand      = object.NewCollection("player.hand", object.Public)
	Graveyard = object.NewCollection("player.graveyard", object.Public)
)

// Card state. Colors, types, abilities, power/toughness and controller are
// declared by the effects package since they are read through it. Spell
// text is looked up in the catalog by name, so hiding the name hides it.
var (
	CardName  = object.NewProperty("card.name", "", 0)
	Cost      = object.NewProperty("card.cost", mana.ManaCost{}, 0)
	Produces  = object.NewProperty("card.produces", mana.ManaType(""), 0)
	Owner     = object.NewProperty("card.owner", object.InvalidID, object.Public)
	Zone      = object.NewProperty("card.zone", rules.ZoneNone, object.Public)
	Tapped    = object.NewProperty("card.tapped", false, object.Public)
	Damage    = object.NewProperty("card.damage", 0, object.Public)
	Sick      = object.NewProperty("card.summoning_sick", false, object.Public)
	Attacking = object.NewProperty("card.attacking", false, object.Public)
	Blocking  = object.NewProperty("card.blocking", object.InvalidID, object.Public)
	Targets   = object.NewProperty("card.targets", nil, object.Public)
)
