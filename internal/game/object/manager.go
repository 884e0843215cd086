package object

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/fparadis2/mox/internal/game/transaction"
	"go.uber.org/zap"
)

// ID identifies a game object within one manager. Ids are never reused.
type ID int

// InvalidID is the zero id; no object ever carries it.
const InvalidID ID = 0

var (
	// ErrUnknownObject is returned when an id does not resolve.
	ErrUnknownObject = errors.New("unknown object")
	// ErrNotInCollection is returned when removing an id that is not a member.
	ErrNotInCollection = errors.New("object not in collection")
	// ErrNotCollection is returned when a value property is used as a collection.
	ErrNotCollection = errors.New("property is not a collection")
)

// Command mutates a Manager reversibly.
type Command = transaction.Command[*Manager]

// Sink records commands. *transaction.Stack[*Manager] is the usual sink.
type Sink interface {
	PushAndExecute(cmd Command) error
}

// ChangeKind classifies a Change.
type ChangeKind int

const (
	ChangeValue ChangeKind = iota
	ChangeCreated
	ChangeDestroyed
	ChangeCollection
)

// Change describes one raw mutation. For collection changes Property is the
// collection and Member the id that entered (Added) or left it.
type Change struct {
	Kind     ChangeKind
	Object   ID
	Property *Property
	Old      any
	New      any
	Member   ID
	Added    bool
}

// ChangeListener receives changes after the command causing them has been
// recorded.
type ChangeListener func(m *Manager, c Change)

// Object is the manager's record of a game object.
type Object struct {
	id          ID
	kind        string
	values      map[*Property]any
	collections map[*Property][]ID
}

func newObject(id ID, kind string) *Object {
	return &Object{
		id:          id,
		kind:        kind,
		values:      make(map[*Property]any),
		collections: make(map[*Property][]ID),
	}
}

// Manager owns every game object of one game (or one replica of it).
type Manager struct {
	objects    map[ID]*Object
	nextID     ID
	version    uint64
	sink       Sink
	collecting int
	pending    []Change
	listeners  map[int]ChangeListener
	order      []int
	nextHandle int
	logger     *zap.Logger
}

// NewManager creates an empty manager. Without a sink commands are executed
// directly and are not recorded.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		objects:   make(map[ID]*Object),
		nextID:    1,
		listeners: make(map[int]ChangeListener),
		logger:    logger,
	}
}

// SetSink sets where pushed commands are recorded.
func (m *Manager) SetSink(sink Sink) {
	m.sink = sink
}

// Version increases on every mutation, including undo and rollback.
func (m *Manager) Version() uint64 {
	return m.version
}

// Subscribe registers a change listener and returns its handle.
func (m *Manager) Subscribe(l ChangeListener) int {
	if l == nil {
		return -1
	}
	handle := m.nextHandle
	m.nextHandle++
	m.listeners[handle] = l
	m.order = append(m.order, handle)
	return handle
}

// Unsubscribe removes a change listener.
func (m *Manager) Unsubscribe(handle int) {
	if _, ok := m.listeners[handle]; !ok {
		return
	}
	delete(m.listeners, handle)
	for i, h := range m.order {
		if h == handle {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Push executes cmd through the sink and then notifies listeners of the
// changes it made. Undo and rollback do not go through Push and are silent.
func (m *Manager) Push(cmd Command) error {
	if cmd == nil {
		return nil
	}
	m.collecting++
	var err error
	if m.sink != nil {
		err = m.sink.PushAndExecute(cmd)
	} else {
		cmd.Execute(m)
	}
	m.collecting--
	if err != nil {
		return err
	}
	if m.collecting == 0 {
		m.deliver()
	}
	return nil
}

func (m *Manager) deliver() {
	for len(m.pending) > 0 {
		changes := m.pending
		m.pending = nil
		handles := append([]int(nil), m.order...)
		for _, c := range changes {
			for _, h := range handles {
				if l, ok := m.listeners[h]; ok {
					l(m, c)
				}
			}
		}
	}
}

func (m *Manager) record(c Change) {
	m.version++
	if m.collecting > 0 {
		m.pending = append(m.pending, c)
	}
}

// Exists reports whether id resolves to a live object.
func (m *Manager) Exists(id ID) bool {
	_, ok := m.objects[id]
	return ok
}

// Kind returns the kind the object was created with.
func (m *Manager) Kind(id ID) string {
	if obj, ok := m.objects[id]; ok {
		return obj.kind
	}
	return ""
}

// Objects returns every live id in ascending order.
func (m *Manager) Objects() []ID {
	ids := make([]ID, 0, len(m.objects))
	for id := range m.objects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of live objects.
func (m *Manager) Len() int {
	return len(m.objects)
}

// Get returns the stored (base) value of prop, or its default.
func (m *Manager) Get(id ID, prop *Property) any {
	if obj, ok := m.objects[id]; ok {
		if v, ok := obj.values[prop]; ok {
			return v
		}
	}
	return prop.Default()
}

// Has reports whether prop has an explicit value on the object.
func (m *Manager) Has(id ID, prop *Property) bool {
	if obj, ok := m.objects[id]; ok {
		_, has := obj.values[prop]
		return has
	}
	return false
}

// Value returns the stored value of prop as T, falling back to the zero
// value when the stored value has another type.
func Value[T any](m *Manager, id ID, prop *Property) T {
	v, _ := m.Get(id, prop).(T)
	return v
}

// Values returns a copy of the explicit values of an object.
func (m *Manager) Values(id ID) map[*Property]any {
	obj, ok := m.objects[id]
	if !ok {
		return nil
	}
	out := make(map[*Property]any, len(obj.values))
	for p, v := range obj.values {
		out[p] = v
	}
	return out
}

// Collection returns a copy of the ordered members of a collection.
func (m *Manager) Collection(owner ID, coll *Property) []ID {
	obj, ok := m.objects[owner]
	if !ok {
		return nil
	}
	return append([]ID(nil), obj.collections[coll]...)
}

// CollectionLen returns the member count of a collection.
func (m *Manager) CollectionLen(owner ID, coll *Property) int {
	if obj, ok := m.objects[owner]; ok {
		return len(obj.collections[coll])
	}
	return 0
}

// IndexOf returns the position of member in the collection, or -1.
func (m *Manager) IndexOf(owner ID, coll *Property, member ID) int {
	obj, ok := m.objects[owner]
	if !ok {
		return -1
	}
	for i, id := range obj.collections[coll] {
		if id == member {
			return i
		}
	}
	return -1
}

// Collections returns a copy of every non-empty collection of an object.
func (m *Manager) Collections(id ID) map[*Property][]ID {
	obj, ok := m.objects[id]
	if !ok {
		return nil
	}
	out := make(map[*Property][]ID, len(obj.collections))
	for p, ids := range obj.collections {
		if len(ids) > 0 {
			out[p] = append([]ID(nil), ids...)
		}
	}
	return out
}

// NextID returns the id the next Create will assign.
func (m *Manager) NextID() ID {
	return m.nextID
}

// Create pushes a CreateCommand for a new object of the given kind.
func (m *Manager) Create(kind string) (ID, error) {
	id := m.nextID
	if err := m.Push(&CreateCommand{Object: id, Kind: kind}); err != nil {
		return InvalidID, fmt.Errorf("create %s: %w", kind, err)
	}
	return id, nil
}

// Destroy pushes a DestroyCommand capturing the object's current state. The
// object leaves every collection holding it in the same command, so no
// collection is left with a dangling id.
func (m *Manager) Destroy(id ID) error {
	obj, ok := m.objects[id]
	if !ok {
		return fmt.Errorf("destroy %d: %w", id, ErrUnknownObject)
	}
	destroy := &DestroyCommand{
		Object:      id,
		Kind:        obj.kind,
		Values:      m.Values(id),
		Collections: m.Collections(id),
	}
	leave := m.memberships(id)
	if len(leave) == 0 {
		return m.Push(destroy)
	}
	cmd := transaction.NewMultiCommand[*Manager](leave...)
	cmd.Add(destroy)
	return m.Push(cmd)
}

// memberships returns the removals taking id out of every collection of
// every other object. Owners come in id order and indexes from the back, so
// each removal sees the index it was recorded with.
func (m *Manager) memberships(id ID) []Command {
	var out []Command
	for _, owner := range m.Objects() {
		if owner == id {
			continue
		}
		obj := m.objects[owner]
		colls := make([]*Property, 0, len(obj.collections))
		for p := range obj.collections {
			colls = append(colls, p)
		}
		sort.Slice(colls, func(i, j int) bool { return colls[i].id < colls[j].id })
		for _, p := range colls {
			ids := obj.collections[p]
			for i := len(ids) - 1; i >= 0; i-- {
				if ids[i] != id {
					continue
				}
				add := &AddToCollectionCommand{Owner: owner, Collection: p, Index: i, Object: id}
				out = append(out, transaction.Reverse[*Manager](add))
			}
		}
	}
	return out
}

// SetValue pushes a SetValueCommand unless the value is unchanged.
func (m *Manager) SetValue(id ID, prop *Property, value any) error {
	if prop.IsCollection() {
		return fmt.Errorf("set %s: %w", prop, ErrNotCollection)
	}
	if !m.Exists(id) {
		return fmt.Errorf("set %s on %d: %w", prop, id, ErrUnknownObject)
	}
	if valuesEqual(m.Get(id, prop), value) {
		return nil
	}
	var old any
	if m.Has(id, prop) {
		old = m.Get(id, prop)
	}
	return m.Push(&SetValueCommand{Object: id, Property: prop, Old: old, New: value})
}

// AddToCollection inserts member at index, or appends when index is out of
// range (use -1 to append).
func (m *Manager) AddToCollection(owner ID, coll *Property, member ID, index int) error {
	if !coll.IsCollection() {
		return fmt.Errorf("add to %s: %w", coll, ErrNotCollection)
	}
	if !m.Exists(owner) {
		return fmt.Errorf("add to %s of %d: %w", coll, owner, ErrUnknownObject)
	}
	n := m.CollectionLen(owner, coll)
	if index < 0 || index > n {
		index = n
	}
	return m.Push(&AddToCollectionCommand{Owner: owner, Collection: coll, Index: index, Object: member})
}

// RemoveFromCollection pushes the reverse of the matching add command.
func (m *Manager) RemoveFromCollection(owner ID, coll *Property, member ID) error {
	idx := m.IndexOf(owner, coll, member)
	if idx < 0 {
		return fmt.Errorf("remove %d from %s of %d: %w", member, coll, owner, ErrNotInCollection)
	}
	add := &AddToCollectionCommand{Owner: owner, Collection: coll, Index: idx, Object: member}
	return m.Push(transaction.Reverse[*Manager](add))
}

// ReorderCollection replaces the order of a collection with a permutation of
// its current members.
func (m *Manager) ReorderCollection(owner ID, coll *Property, order []ID) error {
	current := m.Collection(owner, coll)
	if len(current) != len(order) {
		return fmt.Errorf("reorder %s of %d: length %d, want %d", coll, owner, len(order), len(current))
	}
	return m.Push(&ReorderCollectionCommand{
		Owner:      owner,
		Collection: coll,
		Old:        current,
		New:        append([]ID(nil), order...),
	})
}

// raw mutations, used by commands only

func (m *Manager) createRaw(id ID, kind string) {
	m.objects[id] = newObject(id, kind)
	if id >= m.nextID {
		m.nextID = id + 1
	}
	m.logger.Debug("object created", zap.Int("id", int(id)), zap.String("kind", kind))
	m.record(Change{Kind: ChangeCreated, Object: id})
}

func (m *Manager) destroyRaw(id ID) {
	if _, ok := m.objects[id]; !ok {
		return
	}
	delete(m.objects, id)
	m.record(Change{Kind: ChangeDestroyed, Object: id})
}

func (m *Manager) setRaw(id ID, prop *Property, value any) {
	obj, ok := m.objects[id]
	if !ok {
		return
	}
	old, had := obj.values[prop]
	if !had {
		old = prop.Default()
	}
	if value == nil {
		delete(obj.values, prop)
	} else {
		obj.values[prop] = value
	}
	m.record(Change{Kind: ChangeValue, Object: id, Property: prop, Old: old, New: m.Get(id, prop)})
}

func (m *Manager) insertRaw(owner ID, coll *Property, index int, member ID) {
	obj, ok := m.objects[owner]
	if !ok {
		return
	}
	ids := obj.collections[coll]
	if index < 0 || index > len(ids) {
		index = len(ids)
	}
	ids = append(ids, InvalidID)
	copy(ids[index+1:], ids[index:])
	ids[index] = member
	obj.collections[coll] = ids
	m.record(Change{Kind: ChangeCollection, Object: owner, Property: coll, Member: member, Added: true})
}

func (m *Manager) removeRaw(owner ID, coll *Property, index int, member ID) {
	obj, ok := m.objects[owner]
	if !ok {
		return
	}
	ids := obj.collections[coll]
	if index < 0 || index >= len(ids) || ids[index] != member {
		index = -1
		for i, id := range ids {
			if id == member {
				index = i
				break
			}
		}
		if index < 0 {
			return
		}
	}
	obj.collections[coll] = append(ids[:index], ids[index+1:]...)
	m.record(Change{Kind: ChangeCollection, Object: owner, Property: coll, Member: member})
}

func (m *Manager) replaceRaw(owner ID, coll *Property, ids []ID) {
	obj, ok := m.objects[owner]
	if !ok {
		return
	}
	obj.collections[coll] = append([]ID(nil), ids...)
	m.record(Change{Kind: ChangeCollection, Object: owner, Property: coll})
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.DeepEqual(a, b)
}
