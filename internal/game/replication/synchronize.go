// Package replication filters the command log of a game for each viewer and
// keeps remote mirrors of the game in sync with what they may see.
package replication

import (
	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/transaction"
)

// Spectator is the viewer id of observers that are not players.
const Spectator = object.InvalidID

// Strategy decides which objects a viewer can see.
type Strategy interface {
	// IsVisible reports whether viewer may see the hidden properties of obj.
	IsVisible(m *object.Manager, obj, viewer object.ID) bool
	// Owner returns the player receiving the private properties of obj, or
	// object.InvalidID when nobody does.
	Owner(m *object.Manager, obj object.ID) object.ID
	// Invalidates reports whether a change to prop can change visibility.
	Invalidates(prop *object.Property) bool
}

type (
	multiCommand   = transaction.MultiCommand[*object.Manager]
	reverseCommand = transaction.ReverseCommand[*object.Manager]
)

// CanSee reports whether the value of prop on obj is replicated to viewer.
func CanSee(m *object.Manager, s Strategy, viewer, obj object.ID, prop *object.Property) bool {
	if prop.IsPrivate() {
		return viewer != Spectator && s.Owner(m, obj) == viewer
	}
	if prop.IsPublic() {
		return true
	}
	return m.Exists(obj) && s.IsVisible(m, obj, viewer)
}

// Synchronize returns the part of cmd viewer is allowed to see, or nil when
// nothing is. It must be called after cmd executed on m: visibility is
// decided on the resulting state. Structural commands (creation,
// collections) always pass so that hidden objects keep their place in the
// viewer's replica without revealing their identity.
func Synchronize(m *object.Manager, s Strategy, viewer object.ID, cmd object.Command) object.Command {
	return synchronize(m, s, viewer, cmd, nil)
}

// holds reports whether the replica of a viewer was sent the hidden values
// of an object. A nil holds means it was whenever the viewer can see it.
type holds func(obj object.ID) bool

func synchronize(m *object.Manager, s Strategy, viewer object.ID, cmd object.Command, held holds) object.Command {
	switch c := cmd.(type) {
	case nil:
		return nil
	case *multiCommand:
		out := transaction.NewMultiCommand[*object.Manager]()
		for _, child := range c.Commands() {
			out.Add(synchronize(m, s, viewer, child, held))
		}
		if out.Len() == 0 {
			return nil
		}
		return out
	case *reverseCommand:
		inner := synchronize(m, s, viewer, c.Inner(), held)
		if inner == nil {
			return nil
		}
		return transaction.Reverse(inner)
	case *object.SetValueCommand:
		if !CanSee(m, s, viewer, c.Object, c.Property) {
			return nil
		}
		if c.Old != nil && !c.Property.IsPublic() && !c.Property.IsPrivate() && held != nil && !held(c.Object) {
			// The previous value was never replicated to viewer.
			return &object.SetValueCommand{Object: c.Object, Property: c.Property, New: c.New}
		}
		return c
	case *object.UpdateObjectCommand:
		values := filterValues(m, s, viewer, c.Object, c.Values)
		if len(values) == 0 {
			return nil
		}
		return &object.UpdateObjectCommand{Object: c.Object, Values: values}
	case *object.DestroyCommand:
		values := filterValues(m, s, viewer, c.Object, c.Values)
		if len(values) == len(c.Values) {
			return c
		}
		return &object.DestroyCommand{
			Object:      c.Object,
			Kind:        c.Kind,
			Values:      values,
			Collections: c.Collections,
		}
	default:
		return cmd
	}
}

func filterValues(m *object.Manager, s Strategy, viewer, obj object.ID, values map[*object.Property]any) map[*object.Property]any {
	out := make(map[*object.Property]any, len(values))
	for p, v := range values {
		if CanSee(m, s, viewer, obj, p) {
			out[p] = v
		}
	}
	return out
}

// Project builds the state viewer is allowed to see directly from m. A
// replica kept in sync by a Hub matches the projection at every transaction
// boundary.
func Project(m *object.Manager, s Strategy, viewer object.ID) *object.Manager {
	out := object.NewManager(nil)
	ids := m.Objects()
	for _, id := range ids {
		_ = out.Push(&object.CreateCommand{Object: id, Kind: m.Kind(id)})
	}
	for _, id := range ids {
		for p, v := range m.Values(id) {
			if CanSee(m, s, viewer, id, p) {
				_ = out.Push(&object.SetValueCommand{Object: id, Property: p, New: v})
			}
		}
		for p, members := range m.Collections(id) {
			_ = out.Push(&object.ReorderCollectionCommand{Owner: id, Collection: p, New: members})
		}
	}
	return out
}
