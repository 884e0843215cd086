package object

import "sort"

// SetValueCommand changes one property. A nil Old or New means the property
// had (or gets) no explicit value.
type SetValueCommand struct {
	Object   ID
	Property *Property
	Old      any
	New      any
}

func (c *SetValueCommand) Execute(m *Manager)   { m.setRaw(c.Object, c.Property, c.New) }
func (c *SetValueCommand) Unexecute(m *Manager) { m.setRaw(c.Object, c.Property, c.Old) }
func (c *SetValueCommand) IsEmpty() bool        { return valuesEqual(c.Old, c.New) }

// CreateCommand creates an object with an explicit id so that replaying a
// log reproduces the same ids.
type CreateCommand struct {
	Object ID
	Kind   string
}

func (c *CreateCommand) Execute(m *Manager)   { m.createRaw(c.Object, c.Kind) }
func (c *CreateCommand) Unexecute(m *Manager) { m.destroyRaw(c.Object) }
func (c *CreateCommand) IsEmpty() bool        { return false }

// DestroyCommand removes an object. It carries the state needed to bring the
// object back on Unexecute.
type DestroyCommand struct {
	Object      ID
	Kind        string
	Values      map[*Property]any
	Collections map[*Property][]ID
}

func (c *DestroyCommand) Execute(m *Manager) { m.destroyRaw(c.Object) }

func (c *DestroyCommand) Unexecute(m *Manager) {
	m.createRaw(c.Object, c.Kind)
	for _, p := range sortedProperties(c.Values) {
		m.setRaw(c.Object, p, c.Values[p])
	}
	for p, ids := range c.Collections {
		m.replaceRaw(c.Object, p, ids)
	}
}

func (c *DestroyCommand) IsEmpty() bool { return false }

// AddToCollectionCommand inserts Object into a collection of Owner at Index.
// Removal is expressed as the reverse of the matching add.
type AddToCollectionCommand struct {
	Owner      ID
	Collection *Property
	Index      int
	Object     ID
}

func (c *AddToCollectionCommand) Execute(m *Manager) {
	m.insertRaw(c.Owner, c.Collection, c.Index, c.Object)
}

func (c *AddToCollectionCommand) Unexecute(m *Manager) {
	m.removeRaw(c.Owner, c.Collection, c.Index, c.Object)
}

func (c *AddToCollectionCommand) IsEmpty() bool { return false }

// ReorderCollectionCommand replaces the member order of a collection.
type ReorderCollectionCommand struct {
	Owner      ID
	Collection *Property
	Old        []ID
	New        []ID
}

func (c *ReorderCollectionCommand) Execute(m *Manager) {
	m.replaceRaw(c.Owner, c.Collection, c.New)
}

func (c *ReorderCollectionCommand) Unexecute(m *Manager) {
	m.replaceRaw(c.Owner, c.Collection, c.Old)
}

func (c *ReorderCollectionCommand) IsEmpty() bool { return valuesEqual(c.Old, c.New) }

// UpdateObjectCommand overwrites several properties at once. A nil entry
// resets the property to its default. Previous values are captured when the
// command executes, so the same instance can be unexecuted on any manager it
// was executed on last.
type UpdateObjectCommand struct {
	Object ID
	Values map[*Property]any

	previous map[*Property]any
}

func (c *UpdateObjectCommand) Execute(m *Manager) {
	if !m.Exists(c.Object) {
		return
	}
	c.previous = make(map[*Property]any, len(c.Values))
	for _, p := range sortedProperties(c.Values) {
		if m.Has(c.Object, p) {
			c.previous[p] = m.Get(c.Object, p)
		} else {
			c.previous[p] = nil
		}
		m.setRaw(c.Object, p, c.Values[p])
	}
}

func (c *UpdateObjectCommand) Unexecute(m *Manager) {
	for _, p := range sortedProperties(c.previous) {
		m.setRaw(c.Object, p, c.previous[p])
	}
}

func (c *UpdateObjectCommand) IsEmpty() bool { return len(c.Values) == 0 }

func sortedProperties(values map[*Property]any) []*Property {
	props := make([]*Property, 0, len(values))
	for p := range values {
		props = append(props, p)
	}
	sort.Slice(props, func(i, j int) bool { return props[i].id < props[j].id })
	return props
}
