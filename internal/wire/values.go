package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/fparadis2/mox/internal/game/effects"
	"github.com/fparadis2/mox/internal/game/mana"
	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/rules"
)

// ErrUnknownValue is returned for values whose type was never registered.
var ErrUnknownValue = errors.New("unregistered value type")

type valueCodec struct {
	tag    string
	typ    reflect.Type
	encode func(v any) (any, error)
	decode func(raw any) (any, error)
}

var values = struct {
	mu    sync.RWMutex
	byTag map[string]*valueCodec
	byTyp map[reflect.Type]*valueCodec
}{
	byTag: make(map[string]*valueCodec),
	byTyp: make(map[reflect.Type]*valueCodec),
}

// RegisterValue makes values of type T encodable under tag. The payload is
// the JSON form of the value.
func RegisterValue[T any](tag string) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	register(&valueCodec{
		tag: tag,
		typ: typ,
		encode: func(v any) (any, error) {
			return jsonRoundTrip(v)
		},
		decode: func(raw any) (any, error) {
			data, err := json.Marshal(raw)
			if err != nil {
				return nil, err
			}
			var out T
			if err := json.Unmarshal(data, &out); err != nil {
				return nil, err
			}
			return out, nil
		},
	})
}

// RegisterValueFunc registers a type with explicit conversions, for values
// JSON cannot carry as is.
func RegisterValueFunc[T any](tag string, encode func(T) (any, error), decode func(any) (T, error)) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	register(&valueCodec{
		tag: tag,
		typ: typ,
		encode: func(v any) (any, error) {
			return encode(v.(T))
		},
		decode: func(raw any) (any, error) {
			return decode(raw)
		},
	})
}

func register(c *valueCodec) {
	values.mu.Lock()
	defer values.mu.Unlock()
	if _, exists := values.byTag[c.tag]; exists {
		panic(fmt.Sprintf("wire: value tag %q registered twice", c.tag))
	}
	values.byTag[c.tag] = c
	values.byTyp[c.typ] = c
}

func jsonRoundTrip(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeValue converts a property value to a tagged form made of JSON
// types. nil encodes as nil.
func EncodeValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	values.mu.RLock()
	c, ok := values.byTyp[reflect.TypeOf(v)]
	values.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("encode %T: %w", v, ErrUnknownValue)
	}
	payload, err := c.encode(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", c.tag, err)
	}
	return map[string]any{"t": c.tag, "v": payload}, nil
}

// DecodeValue reverses EncodeValue.
func DecodeValue(raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decode value: expected object, got %T", raw)
	}
	tag, _ := m["t"].(string)
	values.mu.RLock()
	c, ok := values.byTag[tag]
	values.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("decode %q: %w", tag, ErrUnknownValue)
	}
	v, err := c.decode(m["v"])
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", tag, err)
	}
	return v, nil
}

func encodeZoneRef(z effects.ZoneRef) (any, error) {
	name := ""
	if z.Collection != nil {
		name = z.Collection.Name()
	}
	return map[string]any{"owner": float64(z.Owner), "collection": name}, nil
}

func decodeZoneRef(raw any) (effects.ZoneRef, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return effects.ZoneRef{}, fmt.Errorf("zone ref: expected object, got %T", raw)
	}
	owner, err := toID(m["owner"])
	if err != nil {
		return effects.ZoneRef{}, err
	}
	name, _ := m["collection"].(string)
	if name == "" {
		return effects.ZoneRef{Owner: owner}, nil
	}
	coll, err := property(name)
	if err != nil {
		return effects.ZoneRef{}, err
	}
	return effects.ZoneRef{Owner: owner, Collection: coll}, nil
}

func init() {
	RegisterValue[int]("int")
	RegisterValue[bool]("bool")
	RegisterValue[string]("string")
	RegisterValue[object.ID]("id")
	RegisterValue[[]object.ID]("ids")

	RegisterValue[rules.Zone]("zone")
	RegisterValue[rules.Phase]("phase")
	RegisterValue[rules.Step]("step")

	RegisterValue[mana.Pool]("mana.pool")
	RegisterValue[mana.ManaCost]("mana.cost")
	RegisterValue[mana.ManaType]("mana.type")

	RegisterValue[effects.Color]("color")
	RegisterValue[effects.CardType]("card_type")
	RegisterValue[effects.Ability]("ability")
	RegisterValue[effects.PT]("pt")
	RegisterValue[effects.Scope]("effect.scope")
	RegisterValueFunc("effect.zone", encodeZoneRef, decodeZoneRef)

	RegisterValue[effects.ModifyPT]("effect.modify_pt")
	RegisterValue[effects.SetPT]("effect.set_pt")
	RegisterValue[effects.SwitchPT]("effect.switch_pt")
	RegisterValue[effects.SetColor]("effect.set_color")
	RegisterValue[effects.AddAbility]("effect.add_ability")
	RegisterValue[effects.ChangeController]("effect.change_controller")
	RegisterValue[effects.AddType]("effect.add_type")
	RegisterValue[effects.CreaturesOfColor]("condition.creatures_of_color")
	RegisterValue[effects.CreaturesControlledBy]("condition.creatures_controlled_by")
}
