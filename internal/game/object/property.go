package object

import (
	"fmt"
	"sync"
)

// Flags describe how a property takes part in effects and replication.
type Flags uint8

const (
	// Modifiable properties are read through the effect layering engine.
	Modifiable Flags = 1 << iota
	// Private properties are only replicated to the owner of the object.
	Private
	// Public properties are replicated even while the object is hidden.
	Public
	// Collection marks an ordered list of object ids rather than a value.
	Collection
)

// Property is a named, typed slot declared once per process. Properties are
// compared by identity; the numeric id is only used on the wire.
type Property struct {
	id    int
	name  string
	def   any
	flags Flags
}

var registry = struct {
	mu     sync.RWMutex
	byID   []*Property
	byName map[string]*Property
}{byName: make(map[string]*Property)}

// NewProperty declares a property. It is meant to be called from package
// level var blocks; declaring the same name twice panics.
func NewProperty(name string, def any, flags Flags) *Property {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, exists := registry.byName[name]; exists {
		panic(fmt.Sprintf("object: property %q declared twice", name))
	}
	p := &Property{id: len(registry.byID) + 1, name: name, def: def, flags: flags}
	registry.byID = append(registry.byID, p)
	registry.byName[name] = p
	return p
}

// NewCollection declares a collection property.
func NewCollection(name string, flags Flags) *Property {
	return NewProperty(name, nil, flags|Collection)
}

// PropertyByID resolves a wire id. It returns nil for unknown ids.
func PropertyByID(id int) *Property {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	if id <= 0 || id > len(registry.byID) {
		return nil
	}
	return registry.byID[id-1]
}

// PropertyByName resolves a property by its declared name.
func PropertyByName(name string) *Property {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	return registry.byName[name]
}

func (p *Property) ID() int      { return p.id }
func (p *Property) Name() string { return p.name }
func (p *Property) Default() any { return p.def }
func (p *Property) Flags() Flags { return p.flags }

func (p *Property) IsModifiable() bool { return p.flags&Modifiable != 0 }
func (p *Property) IsPrivate() bool    { return p.flags&Private != 0 }
func (p *Property) IsPublic() bool     { return p.flags&Public != 0 }
func (p *Property) IsCollection() bool { return p.flags&Collection != 0 }

func (p *Property) String() string {
	if p == nil {
		return "<nil property>"
	}
	return p.name
}
