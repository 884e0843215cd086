package effects

import (
	"errors"
	"fmt"
	"sort"

	"github.com/fparadis2/mox/internal/game/object"
	"go.uber.org/zap"
)

// Kind is the object kind of effect instances.
const Kind = "effect"

// Scope groups effect instances that end together. The zero scope never ends.
type Scope int

// Effect instances are game objects so they replicate like everything else.
var (
	Instances       = object.NewCollection("effects.instances", 0)
	Affected        = object.NewCollection("effect.affected", 0)
	EffectValue     = object.NewProperty("effect.value", nil, 0)
	EffectScope     = object.NewProperty("effect.scope", Scope(0), 0)
	EffectSource    = object.NewProperty("effect.source", object.InvalidID, 0)
	EffectCondition = object.NewProperty("effect.condition", nil, 0)
	EffectZone      = object.NewProperty("effect.zone", ZoneRef{}, 0)

	lastScope   = object.NewProperty("effects.last_scope", Scope(0), 0)
	turnScope   = object.NewProperty("effects.turn_scope", Scope(0), 0)
	combatScope = object.NewProperty("effects.combat_scope", Scope(0), 0)
)

// ErrNotEffect is returned when an id does not name an effect instance.
var ErrNotEffect = errors.New("not an effect instance")

const maxRescanPasses = 8

type indexKey struct {
	owner object.ID
	prop  *object.Property
}

type instance struct {
	id     object.ID
	effect Effect
}

// Engine computes derived property values from the effect instances listed
// on a root object. Derived values are cached per manager version and are
// never stored.
type Engine struct {
	m      *object.Manager
	root   object.ID
	logger *zap.Logger

	version uint64
	index   map[indexKey][]instance
	values  map[indexKey]any

	handle   int
	scanning bool
	dirty    bool
}

// NewEngine creates an engine reading the effect list of root.
func NewEngine(m *object.Manager, root object.ID, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{m: m, root: root, logger: logger, handle: -1}
}

// Manager returns the manager the engine reads.
func (e *Engine) Manager() *object.Manager {
	return e.m
}

// Value returns the derived value of prop on owner.
func (e *Engine) Value(owner object.ID, prop *object.Property) any {
	base := e.m.Get(owner, prop)
	if !prop.IsModifiable() {
		return base
	}
	e.refresh()
	key := indexKey{owner: owner, prop: prop}
	if v, ok := e.values[key]; ok {
		return v
	}
	v := base
	for _, inst := range e.index[key] {
		v = inst.effect.Modify(owner, v)
	}
	e.values[key] = v
	return v
}

// Get returns the derived value of prop as T.
func Get[T any](e *Engine, id object.ID, prop *object.Property) T {
	v, _ := e.Value(id, prop).(T)
	return v
}

// Affecting returns the instances modifying prop on owner, in application
// order.
func (e *Engine) Affecting(owner object.ID, prop *object.Property) []object.ID {
	e.refresh()
	list := e.index[indexKey{owner: owner, prop: prop}]
	ids := make([]object.ID, len(list))
	for i, inst := range list {
		ids[i] = inst.id
	}
	return ids
}

func (e *Engine) refresh() {
	if e.index != nil && e.version == e.m.Version() {
		return
	}
	e.version = e.m.Version()
	e.index = make(map[indexKey][]instance)
	e.values = make(map[indexKey]any)
	for _, id := range e.m.Collection(e.root, Instances) {
		eff, ok := e.m.Get(id, EffectValue).(Effect)
		if !ok {
			continue
		}
		for _, target := range e.m.Collection(id, Affected) {
			key := indexKey{owner: target, prop: eff.Property()}
			e.index[key] = append(e.index[key], instance{id: id, effect: eff})
		}
	}
	for _, list := range e.index {
		sort.SliceStable(list, func(i, j int) bool {
			li, lj := list[i].effect.Layer(), list[j].effect.Layer()
			if li != lj {
				return li < lj
			}
			return list[i].id < list[j].id
		})
	}
}

// Instances returns the live effect instances in creation order.
func (e *Engine) Instances() []object.ID {
	return e.m.Collection(e.root, Instances)
}

// EffectOf returns the effect carried by an instance.
func (e *Engine) EffectOf(inst object.ID) (Effect, bool) {
	eff, ok := e.m.Get(inst, EffectValue).(Effect)
	return eff, ok
}

func (e *Engine) create(effect Effect, scope Scope, source object.ID) (object.ID, error) {
	if effect == nil {
		return object.InvalidID, fmt.Errorf("add effect: nil effect")
	}
	id, err := e.m.Create(Kind)
	if err != nil {
		return object.InvalidID, err
	}
	if err := e.m.SetValue(id, EffectValue, effect); err != nil {
		return object.InvalidID, err
	}
	if err := e.m.SetValue(id, EffectScope, scope); err != nil {
		return object.InvalidID, err
	}
	if err := e.m.SetValue(id, EffectSource, source); err != nil {
		return object.InvalidID, err
	}
	return id, nil
}

// Add creates a local instance bound to a fixed set of objects.
func (e *Engine) Add(effect Effect, scope Scope, source object.ID, affected ...object.ID) (object.ID, error) {
	id, err := e.create(effect, scope, source)
	if err != nil {
		return object.InvalidID, fmt.Errorf("add effect: %w", err)
	}
	for _, target := range affected {
		if err := e.m.AddToCollection(id, Affected, target, -1); err != nil {
			return object.InvalidID, fmt.Errorf("add effect: %w", err)
		}
	}
	if err := e.m.AddToCollection(e.root, Instances, id, -1); err != nil {
		return object.InvalidID, fmt.Errorf("add effect: %w", err)
	}
	e.logger.Debug("effect added",
		zap.Int("instance", int(id)),
		zap.Stringer("layer", effect.Layer()),
		zap.Int("affected", len(affected)))
	return id, nil
}

// AddTracking creates a global instance whose affected set follows cond over
// the members of zone.
func (e *Engine) AddTracking(effect Effect, scope Scope, source object.ID, cond Condition, zone ZoneRef) (object.ID, error) {
	if cond == nil || zone.Collection == nil {
		return object.InvalidID, fmt.Errorf("add tracking effect: missing condition or zone")
	}
	id, err := e.create(effect, scope, source)
	if err != nil {
		return object.InvalidID, fmt.Errorf("add tracking effect: %w", err)
	}
	if err := e.m.SetValue(id, EffectCondition, cond); err != nil {
		return object.InvalidID, fmt.Errorf("add tracking effect: %w", err)
	}
	if err := e.m.SetValue(id, EffectZone, zone); err != nil {
		return object.InvalidID, fmt.Errorf("add tracking effect: %w", err)
	}
	if err := e.m.AddToCollection(e.root, Instances, id, -1); err != nil {
		return object.InvalidID, fmt.Errorf("add tracking effect: %w", err)
	}
	if e.handle < 0 {
		// Not tracking: compute the initial set once.
		e.rescan(id)
	}
	e.logger.Debug("tracking effect added",
		zap.Int("instance", int(id)),
		zap.Stringer("layer", effect.Layer()))
	return id, nil
}

// Remove takes an instance out of consideration and destroys it.
func (e *Engine) Remove(inst object.ID) error {
	if e.m.IndexOf(e.root, Instances, inst) < 0 {
		return fmt.Errorf("remove effect %d: %w", inst, ErrNotEffect)
	}
	if err := e.m.RemoveFromCollection(e.root, Instances, inst); err != nil {
		return fmt.Errorf("remove effect %d: %w", inst, err)
	}
	if err := e.m.Destroy(inst); err != nil {
		return fmt.Errorf("remove effect %d: %w", inst, err)
	}
	return nil
}

// BeginScope allocates a new scope.
func (e *Engine) BeginScope() (Scope, error) {
	next := object.Value[Scope](e.m, e.root, lastScope) + 1
	if err := e.m.SetValue(e.root, lastScope, next); err != nil {
		return 0, fmt.Errorf("begin scope: %w", err)
	}
	return next, nil
}

// EndScope removes every instance created in scope, newest first.
func (e *Engine) EndScope(scope Scope) error {
	if scope == 0 {
		return nil
	}
	list := e.Instances()
	removed := 0
	for i := len(list) - 1; i >= 0; i-- {
		if object.Value[Scope](e.m, list[i], EffectScope) != scope {
			continue
		}
		if err := e.Remove(list[i]); err != nil {
			return fmt.Errorf("end scope %d: %w", scope, err)
		}
		removed++
	}
	e.logger.Debug("effect scope ended", zap.Int("scope", int(scope)), zap.Int("removed", removed))
	return nil
}

// AddAffected binds another object to an instance.
func (e *Engine) AddAffected(inst, target object.ID) error {
	if e.m.IndexOf(inst, Affected, target) >= 0 {
		return nil
	}
	return e.m.AddToCollection(inst, Affected, target, -1)
}

// RemoveAffected unbinds an object from an instance.
func (e *Engine) RemoveAffected(inst, target object.ID) error {
	if e.m.IndexOf(inst, Affected, target) < 0 {
		return nil
	}
	return e.m.RemoveFromCollection(inst, Affected, target)
}

// EnableTracking subscribes the engine to manager changes so tracking
// instances follow their conditions. Replicas leave it disabled: they
// receive affected-set changes through replication instead.
func (e *Engine) EnableTracking() {
	if e.handle >= 0 {
		return
	}
	e.handle = e.m.Subscribe(e.onChange)
}

// DisableTracking reverses EnableTracking.
func (e *Engine) DisableTracking() {
	if e.handle < 0 {
		return
	}
	e.m.Unsubscribe(e.handle)
	e.handle = -1
}

// Tracking reports whether the engine follows manager changes.
func (e *Engine) Tracking() bool {
	return e.handle >= 0
}

func (e *Engine) onChange(_ *object.Manager, c object.Change) {
	if !e.relevant(c) {
		return
	}
	if e.scanning {
		e.dirty = true
		return
	}
	e.scanning = true
	defer func() { e.scanning = false }()
	for pass := 0; pass < maxRescanPasses; pass++ {
		e.dirty = false
		for _, inst := range e.trackingInstances() {
			e.rescan(inst)
		}
		if !e.dirty {
			return
		}
	}
	e.logger.Warn("tracking effects did not settle", zap.Int("passes", maxRescanPasses))
}

func (e *Engine) relevant(c object.Change) bool {
	switch c.Kind {
	case object.ChangeValue:
		switch c.Property {
		case EffectValue, EffectCondition, EffectZone:
			return true
		}
		return e.invalidatesAnyCondition(c.Property)
	case object.ChangeCollection:
		if c.Object == e.root && c.Property == Instances {
			return true
		}
		if c.Property == Affected {
			eff, ok := e.EffectOf(c.Object)
			return ok && e.invalidatesAnyCondition(eff.Property())
		}
		for _, inst := range e.trackingInstances() {
			zone := object.Value[ZoneRef](e.m, inst, EffectZone)
			if zone.Owner == c.Object && zone.Collection == c.Property {
				return true
			}
		}
	}
	return false
}

func (e *Engine) invalidatesAnyCondition(prop *object.Property) bool {
	for _, inst := range e.trackingInstances() {
		if cond, ok := e.m.Get(inst, EffectCondition).(Condition); ok && cond.Invalidates(prop) {
			return true
		}
	}
	return false
}

func (e *Engine) trackingInstances() []object.ID {
	var out []object.ID
	for _, id := range e.Instances() {
		if _, ok := e.m.Get(id, EffectCondition).(Condition); ok {
			out = append(out, id)
		}
	}
	return out
}

func (e *Engine) rescan(inst object.ID) {
	cond, ok := e.m.Get(inst, EffectCondition).(Condition)
	if !ok {
		return
	}
	zone := object.Value[ZoneRef](e.m, inst, EffectZone)
	members := e.m.Collection(zone.Owner, zone.Collection)

	want := make(map[object.ID]bool, len(members))
	for _, id := range members {
		if cond.Matches(e, id) {
			want[id] = true
		}
	}
	have := make(map[object.ID]bool)
	for _, id := range e.m.Collection(inst, Affected) {
		if want[id] {
			have[id] = true
			continue
		}
		if err := e.RemoveAffected(inst, id); err != nil {
			e.logger.Warn("failed to remove affected object",
				zap.Int("instance", int(inst)), zap.Int("object", int(id)), zap.Error(err))
		}
	}
	for _, id := range members {
		if want[id] && !have[id] {
			if err := e.AddAffected(inst, id); err != nil {
				e.logger.Warn("failed to add affected object",
					zap.Int("instance", int(inst)), zap.Int("object", int(id)), zap.Error(err))
			}
		}
	}
}
