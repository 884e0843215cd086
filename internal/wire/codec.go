// Package wire encodes the closed command vocabulary of the object model as
// protobuf Struct messages, for the network and for saved game logs.
package wire

import (
	"errors"
	"fmt"
	"sort"

	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/transaction"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	// ErrUnknownCommand is returned for commands outside the vocabulary.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrUnknownProperty is returned for property names not declared in
	// this process.
	ErrUnknownProperty = errors.New("unknown property")
)

// Command type tags.
const (
	TypeSetValue = "set"
	TypeCreate   = "create"
	TypeDestroy  = "destroy"
	TypeAdd      = "add"
	TypeReorder  = "reorder"
	TypeUpdate   = "update"
	TypeMulti    = "multi"
	TypeReverse  = "reverse"
)

type (
	multiCommand   = transaction.MultiCommand[*object.Manager]
	reverseCommand = transaction.ReverseCommand[*object.Manager]
)

// Codec implements the game log encoding on top of Marshal and Unmarshal.
type Codec struct{}

func (Codec) Marshal(cmd object.Command) ([]byte, error) { return Marshal(cmd) }

func (Codec) Unmarshal(data []byte) (object.Command, error) { return Unmarshal(data) }

// Encode converts a command to a Struct.
func Encode(cmd object.Command) (*structpb.Struct, error) {
	m, err := encodeCommand(cmd)
	if err != nil {
		return nil, err
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode command: %w", err)
	}
	return s, nil
}

// Decode converts a Struct back to a command.
func Decode(s *structpb.Struct) (object.Command, error) {
	if s == nil {
		return nil, fmt.Errorf("decode command: nil message")
	}
	return decodeCommand(s.AsMap())
}

// Marshal encodes a command to protobuf bytes.
func Marshal(cmd object.Command) ([]byte, error) {
	s, err := Encode(cmd)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

// Unmarshal decodes protobuf bytes produced by Marshal.
func Unmarshal(data []byte) (object.Command, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal command: %w", err)
	}
	return Decode(&s)
}

// MarshalJSON encodes a command to the JSON form of its Struct, for
// browsers.
func MarshalJSON(cmd object.Command) ([]byte, error) {
	s, err := Encode(cmd)
	if err != nil {
		return nil, err
	}
	return protojson.Marshal(s)
}

// UnmarshalJSON reverses MarshalJSON.
func UnmarshalJSON(data []byte) (object.Command, error) {
	var s structpb.Struct
	if err := protojson.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal command: %w", err)
	}
	return Decode(&s)
}

func encodeCommand(cmd object.Command) (map[string]any, error) {
	switch c := cmd.(type) {
	case *object.SetValueCommand:
		old, err := EncodeValue(c.Old)
		if err != nil {
			return nil, err
		}
		value, err := EncodeValue(c.New)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"type":     TypeSetValue,
			"object":   float64(c.Object),
			"property": c.Property.Name(),
			"old":      old,
			"new":      value,
		}, nil
	case *object.CreateCommand:
		return map[string]any{"type": TypeCreate, "object": float64(c.Object), "kind": c.Kind}, nil
	case *object.DestroyCommand:
		vals, err := encodeValues(c.Values)
		if err != nil {
			return nil, err
		}
		colls := make(map[string]any, len(c.Collections))
		for p, ids := range c.Collections {
			colls[p.Name()] = encodeIDs(ids)
		}
		return map[string]any{
			"type":        TypeDestroy,
			"object":      float64(c.Object),
			"kind":        c.Kind,
			"values":      vals,
			"collections": colls,
		}, nil
	case *object.AddToCollectionCommand:
		return map[string]any{
			"type":       TypeAdd,
			"owner":      float64(c.Owner),
			"collection": c.Collection.Name(),
			"index":      float64(c.Index),
			"object":     float64(c.Object),
		}, nil
	case *object.ReorderCollectionCommand:
		return map[string]any{
			"type":       TypeReorder,
			"owner":      float64(c.Owner),
			"collection": c.Collection.Name(),
			"old":        encodeIDs(c.Old),
			"new":        encodeIDs(c.New),
		}, nil
	case *object.UpdateObjectCommand:
		vals, err := encodeValues(c.Values)
		if err != nil {
			return nil, err
		}
		return map[string]any{"type": TypeUpdate, "object": float64(c.Object), "values": vals}, nil
	case *multiCommand:
		children := make([]any, 0, c.Len())
		for _, child := range c.Commands() {
			m, err := encodeCommand(child)
			if err != nil {
				return nil, err
			}
			children = append(children, m)
		}
		return map[string]any{"type": TypeMulti, "commands": children}, nil
	case *reverseCommand:
		inner, err := encodeCommand(c.Inner())
		if err != nil {
			return nil, err
		}
		return map[string]any{"type": TypeReverse, "inner": inner}, nil
	}
	return nil, fmt.Errorf("encode %T: %w", cmd, ErrUnknownCommand)
}

func encodeValues(vals map[*object.Property]any) (map[string]any, error) {
	out := make(map[string]any, len(vals))
	for p, v := range vals {
		enc, err := EncodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", p.Name(), err)
		}
		out[p.Name()] = enc
	}
	return out, nil
}

func encodeIDs(ids []object.ID) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = float64(id)
	}
	return out
}

func decodeCommand(m map[string]any) (object.Command, error) {
	typ, _ := m["type"].(string)
	switch typ {
	case TypeSetValue:
		id, err := toID(m["object"])
		if err != nil {
			return nil, err
		}
		prop, err := propertyField(m, "property")
		if err != nil {
			return nil, err
		}
		old, err := DecodeValue(m["old"])
		if err != nil {
			return nil, err
		}
		value, err := DecodeValue(m["new"])
		if err != nil {
			return nil, err
		}
		return &object.SetValueCommand{Object: id, Property: prop, Old: old, New: value}, nil
	case TypeCreate:
		id, err := toID(m["object"])
		if err != nil {
			return nil, err
		}
		kind, _ := m["kind"].(string)
		return &object.CreateCommand{Object: id, Kind: kind}, nil
	case TypeDestroy:
		id, err := toID(m["object"])
		if err != nil {
			return nil, err
		}
		kind, _ := m["kind"].(string)
		vals, err := decodeValues(m["values"])
		if err != nil {
			return nil, err
		}
		colls := make(map[*object.Property][]object.ID)
		raw, _ := m["collections"].(map[string]any)
		for _, name := range sortedKeys(raw) {
			p, err := property(name)
			if err != nil {
				return nil, err
			}
			ids, err := toIDs(raw[name])
			if err != nil {
				return nil, err
			}
			colls[p] = ids
		}
		return &object.DestroyCommand{Object: id, Kind: kind, Values: vals, Collections: colls}, nil
	case TypeAdd:
		owner, err := toID(m["owner"])
		if err != nil {
			return nil, err
		}
		coll, err := propertyField(m, "collection")
		if err != nil {
			return nil, err
		}
		index, _ := m["index"].(float64)
		member, err := toID(m["object"])
		if err != nil {
			return nil, err
		}
		return &object.AddToCollectionCommand{Owner: owner, Collection: coll, Index: int(index), Object: member}, nil
	case TypeReorder:
		owner, err := toID(m["owner"])
		if err != nil {
			return nil, err
		}
		coll, err := propertyField(m, "collection")
		if err != nil {
			return nil, err
		}
		old, err := toIDs(m["old"])
		if err != nil {
			return nil, err
		}
		order, err := toIDs(m["new"])
		if err != nil {
			return nil, err
		}
		return &object.ReorderCollectionCommand{Owner: owner, Collection: coll, Old: old, New: order}, nil
	case TypeUpdate:
		id, err := toID(m["object"])
		if err != nil {
			return nil, err
		}
		vals, err := decodeValues(m["values"])
		if err != nil {
			return nil, err
		}
		return &object.UpdateObjectCommand{Object: id, Values: vals}, nil
	case TypeMulti:
		raw, _ := m["commands"].([]any)
		out := transaction.NewMultiCommand[*object.Manager]()
		for i, child := range raw {
			cm, ok := child.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("decode multi command child %d: expected object", i)
			}
			cmd, err := decodeCommand(cm)
			if err != nil {
				return nil, err
			}
			out.Add(cmd)
		}
		return out, nil
	case TypeReverse:
		inner, ok := m["inner"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("decode reverse command: missing inner command")
		}
		cmd, err := decodeCommand(inner)
		if err != nil {
			return nil, err
		}
		return transaction.Reverse[*object.Manager](cmd), nil
	}
	return nil, fmt.Errorf("decode %q: %w", typ, ErrUnknownCommand)
}

func decodeValues(raw any) (map[*object.Property]any, error) {
	m, _ := raw.(map[string]any)
	out := make(map[*object.Property]any, len(m))
	for _, name := range sortedKeys(m) {
		p, err := property(name)
		if err != nil {
			return nil, err
		}
		v, err := DecodeValue(m[name])
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", name, err)
		}
		out[p] = v
	}
	return out, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func property(name string) (*object.Property, error) {
	p := object.PropertyByName(name)
	if p == nil {
		return nil, fmt.Errorf("property %q: %w", name, ErrUnknownProperty)
	}
	return p, nil
}

func propertyField(m map[string]any, field string) (*object.Property, error) {
	name, _ := m[field].(string)
	return property(name)
}

func toID(raw any) (object.ID, error) {
	f, ok := raw.(float64)
	if !ok {
		return object.InvalidID, fmt.Errorf("expected object id, got %T", raw)
	}
	return object.ID(f), nil
}

func toIDs(raw any) ([]object.ID, error) {
	list, _ := raw.([]any)
	out := make([]object.ID, 0, len(list))
	for _, item := range list {
		id, err := toID(item)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
