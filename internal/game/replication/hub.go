package replication

import (
	"errors"
	"fmt"
	"sort"

	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/transaction"
	"go.uber.org/zap"
)

// ErrInTransaction is returned by Register while a transaction is open.
var ErrInTransaction = errors.New("cannot register a listener inside a transaction")

// Listener mirrors a game from the filtered command stream.
type Listener interface {
	Synchronize(cmd object.Command)
	BeginTransaction(t transaction.Type)
	EndCurrentTransaction(rollback bool)
}

type key struct {
	obj    object.ID
	viewer object.ID
}

// saved is the value a key had before the current frame first touched it.
type saved struct {
	value bool
	ok    bool
}

type frame struct {
	known   map[key]saved
	pending map[key]saved
}

type registration struct {
	handle   int
	viewer   object.ID
	listener Listener
}

// Hub observes a transaction stack and forwards each command, filtered per
// viewer, to the registered listeners. Objects whose visibility changes for
// a viewer get a corrective UpdateObjectCommand once no transaction is open.
type Hub struct {
	m        *object.Manager
	stack    *transaction.Stack[*object.Manager]
	strategy Strategy
	logger   *zap.Logger

	registrations []*registration
	nextHandle    int
	observer      int

	known        map[key]bool
	pending      map[key]bool
	pendingOrder []key
	frames       []*frame
}

// NewHub creates a hub observing stack.
func NewHub(stack *transaction.Stack[*object.Manager], strategy Strategy, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		m:        stack.State(),
		stack:    stack,
		strategy: strategy,
		logger:   logger,
		known:    make(map[key]bool),
		pending:  make(map[key]bool),
	}
	h.observer = stack.Subscribe(h)
	return h
}

// Close stops observing the stack.
func (h *Hub) Close() {
	h.stack.Unsubscribe(h.observer)
}

// Register replays the whole log, filtered for viewer, to l and then keeps l
// in sync. It returns a handle for Unregister. Past commands are filtered
// against the current visibility, not the one they ran under, so the replay
// ends on the projection of the current state.
func (h *Hub) Register(viewer object.ID, l Listener) (int, error) {
	if h.stack.InTransaction() {
		return -1, fmt.Errorf("register viewer %d: %w", viewer, ErrInTransaction)
	}
	replayed := 0
	for _, cmd := range h.stack.Commands() {
		if f := Synchronize(h.m, h.strategy, viewer, cmd); f != nil {
			l.Synchronize(f)
			replayed++
		}
	}
	if !h.hasViewer(viewer) {
		for _, id := range h.m.Objects() {
			h.known[key{obj: id, viewer: viewer}] = h.strategy.IsVisible(h.m, id, viewer)
		}
	}
	reg := &registration{handle: h.nextHandle, viewer: viewer, listener: l}
	h.nextHandle++
	h.registrations = append(h.registrations, reg)

	h.logger.Debug("listener registered",
		zap.Int("viewer", int(viewer)),
		zap.Int("replayed", replayed))
	return reg.handle, nil
}

// Unregister removes a listener.
func (h *Hub) Unregister(handle int) {
	for i, reg := range h.registrations {
		if reg.handle != handle {
			continue
		}
		h.registrations = append(h.registrations[:i], h.registrations[i+1:]...)
		if !h.hasViewer(reg.viewer) {
			for k := range h.known {
				if k.viewer == reg.viewer {
					delete(h.known, k)
				}
			}
		}
		return
	}
}

// Listeners returns the number of registered listeners.
func (h *Hub) Listeners() int {
	return len(h.registrations)
}

func (h *Hub) hasViewer(viewer object.ID) bool {
	for _, reg := range h.registrations {
		if reg.viewer == viewer {
			return true
		}
	}
	return false
}

func (h *Hub) viewers() []object.ID {
	var out []object.ID
	seen := make(map[object.ID]bool)
	for _, reg := range h.registrations {
		if !seen[reg.viewer] {
			seen[reg.viewer] = true
			out = append(out, reg.viewer)
		}
	}
	return out
}

// CommandPushed implements transaction.Observer.
func (h *Hub) CommandPushed(cmd object.Command) {
	for _, reg := range h.snapshot() {
		if f := synchronize(h.m, h.strategy, reg.viewer, cmd, h.heldBy(reg.viewer)); f != nil {
			reg.listener.Synchronize(f)
		}
	}
	h.track(cmd)
	if !h.stack.InTransaction() {
		h.flush()
	}
}

// TransactionStarted implements transaction.Observer.
func (h *Hub) TransactionStarted(t transaction.Type) {
	h.frames = append(h.frames, &frame{known: make(map[key]saved), pending: make(map[key]saved)})
	for _, reg := range h.snapshot() {
		reg.listener.BeginTransaction(t)
	}
}

// TransactionEnded implements transaction.Observer.
func (h *Hub) TransactionEnded(t transaction.Type, rollback bool) {
	for _, reg := range h.snapshot() {
		reg.listener.EndCurrentTransaction(rollback)
	}
	if n := len(h.frames); n > 0 {
		top := h.frames[n-1]
		h.frames = h.frames[:n-1]
		if rollback {
			h.restore(top)
		} else if n > 1 {
			h.merge(h.frames[n-2], top)
		}
	}
	if !rollback && !h.stack.InTransaction() {
		h.flush()
	}
}

// heldBy reports whether the replicas of viewer hold the hidden values of an
// object before the command being forwarded. They do not when the object
// was hidden, nor while its reveal waits for the next flush.
func (h *Hub) heldBy(viewer object.ID) holds {
	return func(obj object.ID) bool {
		k := key{obj: obj, viewer: viewer}
		if visible, queued := h.pending[k]; queued && visible {
			return false
		}
		return h.known[k]
	}
}

func (h *Hub) snapshot() []*registration {
	return append([]*registration(nil), h.registrations...)
}

// track records visibility toggles caused by cmd.
func (h *Hub) track(cmd object.Command) {
	if len(h.registrations) == 0 {
		return
	}
	touched := make(map[object.ID]bool)
	h.collect(cmd, touched)
	if len(touched) == 0 {
		return
	}
	ids := make([]object.ID, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	viewers := h.viewers()
	for _, id := range ids {
		for _, viewer := range viewers {
			k := key{obj: id, viewer: viewer}
			if !h.m.Exists(id) {
				h.forget(k)
				continue
			}
			visible := h.strategy.IsVisible(h.m, id, viewer)
			prev, ok := h.known[k]
			if !ok {
				h.setKnown(k, visible)
				continue
			}
			if prev == visible {
				continue
			}
			h.setKnown(k, visible)
			if _, queued := h.pending[k]; queued {
				h.setPending(k, false, false)
			} else {
				h.setPending(k, visible, true)
			}
		}
	}
}

func (h *Hub) collect(cmd object.Command, touched map[object.ID]bool) {
	switch c := cmd.(type) {
	case *multiCommand:
		for _, child := range c.Commands() {
			h.collect(child, touched)
		}
	case *reverseCommand:
		h.collect(c.Inner(), touched)
	case *object.CreateCommand:
		touched[c.Object] = true
	case *object.DestroyCommand:
		touched[c.Object] = true
	case *object.SetValueCommand:
		if h.strategy.Invalidates(c.Property) {
			touched[c.Object] = true
		}
	case *object.UpdateObjectCommand:
		for p := range c.Values {
			if h.strategy.Invalidates(p) {
				touched[c.Object] = true
				break
			}
		}
	case *object.AddToCollectionCommand:
		if h.strategy.Invalidates(c.Collection) {
			touched[c.Object] = true
		}
	case *object.ReorderCollectionCommand:
		if h.strategy.Invalidates(c.Collection) {
			for _, id := range c.New {
				touched[id] = true
			}
		}
	}
}

func (h *Hub) top() *frame {
	if n := len(h.frames); n > 0 {
		return h.frames[n-1]
	}
	return nil
}

func (h *Hub) setKnown(k key, visible bool) {
	if f := h.top(); f != nil {
		if _, done := f.known[k]; !done {
			v, ok := h.known[k]
			f.known[k] = saved{value: v, ok: ok}
		}
	}
	h.known[k] = visible
}

func (h *Hub) forget(k key) {
	if f := h.top(); f != nil {
		if _, done := f.known[k]; !done {
			v, ok := h.known[k]
			f.known[k] = saved{value: v, ok: ok}
		}
	}
	delete(h.known, k)
	if _, queued := h.pending[k]; queued {
		h.setPending(k, false, false)
	}
}

// setPending queues (present) or cancels a delayed synchronization.
func (h *Hub) setPending(k key, visible, present bool) {
	if f := h.top(); f != nil {
		if _, done := f.pending[k]; !done {
			v, ok := h.pending[k]
			f.pending[k] = saved{value: v, ok: ok}
		}
	}
	if !present {
		delete(h.pending, k)
		return
	}
	if _, queued := h.pending[k]; !queued {
		h.pendingOrder = append(h.pendingOrder, k)
	}
	h.pending[k] = visible
}

func (h *Hub) restore(f *frame) {
	for k, s := range f.known {
		if s.ok {
			h.known[k] = s.value
		} else {
			delete(h.known, k)
		}
	}
	for k, s := range f.pending {
		if s.ok {
			h.pending[k] = s.value
		} else {
			delete(h.pending, k)
		}
	}
}

func (h *Hub) merge(parent, child *frame) {
	for k, s := range child.known {
		if _, ok := parent.known[k]; !ok {
			parent.known[k] = s
		}
	}
	for k, s := range child.pending {
		if _, ok := parent.pending[k]; !ok {
			parent.pending[k] = s
		}
	}
}

// flush emits the delayed synchronizations queued since the last flush.
func (h *Hub) flush() {
	order := h.pendingOrder
	h.pendingOrder = nil
	if len(h.pending) == 0 {
		return
	}
	for _, k := range order {
		visible, queued := h.pending[k]
		if !queued {
			continue
		}
		delete(h.pending, k)
		values := h.delayedValues(k, visible)
		if len(values) == 0 {
			continue
		}
		for _, reg := range h.snapshot() {
			if reg.viewer != k.viewer {
				continue
			}
			copied := make(map[*object.Property]any, len(values))
			for p, v := range values {
				copied[p] = v
			}
			reg.listener.Synchronize(&object.UpdateObjectCommand{Object: k.obj, Values: copied})
		}
		h.logger.Debug("delayed synchronization",
			zap.Int("object", int(k.obj)),
			zap.Int("viewer", int(k.viewer)),
			zap.Bool("visible", visible))
	}
	h.pending = make(map[key]bool)
}

// delayedValues returns the full hidden state of an object that became
// visible, or resets for every hidden property of one that became hidden.
func (h *Hub) delayedValues(k key, visible bool) map[*object.Property]any {
	out := make(map[*object.Property]any)
	for p, v := range h.m.Values(k.obj) {
		if p.IsPublic() {
			continue
		}
		canSee := CanSee(h.m, h.strategy, k.viewer, k.obj, p)
		switch {
		case visible && canSee:
			out[p] = v
		case !visible && !canSee:
			out[p] = nil
		}
	}
	return out
}
