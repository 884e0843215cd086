package rules

import "fmt"

// Zone identifies where a card is.
type Zone int

const (
	ZoneNone Zone = iota
	ZoneLibrary
	ZoneHand
	ZoneBattlefield
	ZoneGraveyard
	ZoneStack
	ZoneExile
)

var zoneNames = map[Zone]string{
	ZoneNone:        "NONE",
	ZoneLibrary:     "LIBRARY",
	ZoneHand:        "HAND",
	ZoneBattlefield: "BATTLEFIELD",
	ZoneGraveyard:   "GRAVEYARD",
	ZoneStack:       "STACK",
	ZoneExile:       "EXILE",
}

func (z Zone) String() string {
	if name, ok := zoneNames[z]; ok {
		return name
	}
	return fmt.Sprintf("ZONE_%d", int(z))
}

// IsPublic reports whether every player can see the cards of the zone.
func (z Zone) IsPublic() bool {
	switch z {
	case ZoneBattlefield, ZoneGraveyard, ZoneStack, ZoneExile:
		return true
	}
	return false
}

// IsShared reports whether the zone belongs to the game rather than to a
// player.
func (z Zone) IsShared() bool {
	switch z {
	case ZoneBattlefield, ZoneStack, ZoneExile:
		return true
	}
	return false
}
