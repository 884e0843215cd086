package effects

import "fmt"

// Layer orders continuous effects. Effects on the same property are applied
// in ascending layer order, then in creation order.
type Layer int

const (
	LayerCopy Layer = 1 + iota
	LayerControlChanging
	LayerTextChanging
	LayerTypeChanging
	LayerColorChanging
	LayerAbilityAdding
	LayerPTCharacteristicDefining
	LayerPTSet
	LayerPTModify
	LayerPTCounters
	LayerPTSwitch
)

var layerNames = map[Layer]string{
	LayerCopy:                     "COPY",
	LayerControlChanging:          "CONTROL_CHANGING",
	LayerTextChanging:             "TEXT_CHANGING",
	LayerTypeChanging:             "TYPE_CHANGING",
	LayerColorChanging:            "COLOR_CHANGING",
	LayerAbilityAdding:            "ABILITY_ADDING",
	LayerPTCharacteristicDefining: "PT_CHARACTERISTIC_DEFINING",
	LayerPTSet:                    "PT_SET",
	LayerPTModify:                 "PT_MODIFY",
	LayerPTCounters:               "PT_COUNTERS",
	LayerPTSwitch:                 "PT_SWITCH",
}

func (l Layer) String() string {
	if name, ok := layerNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LAYER_%d", int(l))
}
