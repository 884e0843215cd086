package transaction

import (
	"errors"
	"fmt"
)

// ErrInvalidOperation reports misuse of the stack: ending a transaction that
// is not the innermost one, undoing inside a transaction, and so on.
var ErrInvalidOperation = errors.New("invalid transaction operation")

// Type qualifies a transaction scope.
type Type int

const (
	// TypeNormal transactions are reported to observers.
	TypeNormal Type = iota
	// TypeAtomic transactions are invisible to observers; only their net
	// result is reported, as a single command, once they commit.
	TypeAtomic
)

func (t Type) String() string {
	switch t {
	case TypeNormal:
		return "NORMAL"
	case TypeAtomic:
		return "ATOMIC"
	default:
		return fmt.Sprintf("TYPE_%d", int(t))
	}
}

// Observer receives the stack notifications consumed by replication.
type Observer[S any] interface {
	CommandPushed(cmd Command[S])
	TransactionStarted(t Type)
	TransactionEnded(t Type, rollback bool)
}

type scope[S any] struct {
	tx       *Transaction[S]
	commands []Command[S]
}

// Stack records executed commands, groups them into nested transactions and
// keeps an undo/redo log. It is not safe for concurrent use: all mutations
// happen on the owning game goroutine.
type Stack[S any] struct {
	state      S
	undo       []Command[S]
	redo       []Command[S]
	scopes     []*scope[S]
	requireTx  bool
	observers  map[int]Observer[S]
	order      []int
	nextHandle int
}

// NewStack creates a stack operating on state.
func NewStack[S any](state S) *Stack[S] {
	return &Stack[S]{
		state:     state,
		undo:      make([]Command[S], 0, 64),
		observers: make(map[int]Observer[S]),
	}
}

// State returns the state the stack executes commands against.
func (s *Stack[S]) State() S {
	return s.state
}

// RequireTransaction makes PushAndExecute fail when no transaction is open.
func (s *Stack[S]) RequireTransaction(required bool) {
	s.requireTx = required
}

// Subscribe registers an observer and returns a handle for Unsubscribe.
func (s *Stack[S]) Subscribe(o Observer[S]) int {
	if o == nil {
		return -1
	}
	handle := s.nextHandle
	s.nextHandle++
	s.observers[handle] = o
	s.order = append(s.order, handle)
	return handle
}

// Unsubscribe removes the observer identified by handle.
func (s *Stack[S]) Unsubscribe(handle int) {
	if _, ok := s.observers[handle]; !ok {
		return
	}
	delete(s.observers, handle)
	for i, h := range s.order {
		if h == handle {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Depth returns the number of open transactions.
func (s *Stack[S]) Depth() int {
	return len(s.scopes)
}

// InTransaction reports whether any transaction is open.
func (s *Stack[S]) InTransaction() bool {
	return len(s.scopes) > 0
}

// InAtomic reports whether an atomic transaction is open at any level.
func (s *Stack[S]) InAtomic() bool {
	for _, sc := range s.scopes {
		if sc.tx.typ == TypeAtomic {
			return true
		}
	}
	return false
}

// PushAndExecute executes cmd and records it in the current scope.
func (s *Stack[S]) PushAndExecute(cmd Command[S]) error {
	if cmd == nil {
		return nil
	}
	if s.requireTx && len(s.scopes) == 0 {
		return fmt.Errorf("push outside of a transaction: %w", ErrInvalidOperation)
	}
	cmd.Execute(s.state)
	s.record(cmd)
	if !s.InAtomic() {
		s.notifyPushed(cmd)
	}
	return nil
}

func (s *Stack[S]) record(cmd Command[S]) {
	if n := len(s.scopes); n > 0 {
		top := s.scopes[n-1]
		top.commands = append(top.commands, cmd)
		return
	}
	s.undo = append(s.undo, cmd)
	s.redo = s.redo[:0]
}

// Begin opens a nested transaction of the given type.
func (s *Stack[S]) Begin(t Type) *Transaction[S] {
	tx := &Transaction[S]{stack: s, typ: t, depth: len(s.scopes)}
	observed := !s.InAtomic() && t != TypeAtomic
	s.scopes = append(s.scopes, &scope[S]{tx: tx})
	if observed {
		s.each(func(o Observer[S]) { o.TransactionStarted(t) })
	}
	return tx
}

func (s *Stack[S]) end(tx *Transaction[S], rollback bool) error {
	n := len(s.scopes)
	if n == 0 {
		return fmt.Errorf("no transaction is open: %w", ErrInvalidOperation)
	}
	top := s.scopes[n-1]
	if top.tx != tx {
		return fmt.Errorf("transaction at depth %d is not the current one (depth %d): %w",
			tx.depth, n-1, ErrInvalidOperation)
	}
	s.scopes = s.scopes[:n-1]
	tx.ended = true

	outerAtomic := s.InAtomic()
	if rollback {
		for i := len(top.commands) - 1; i >= 0; i-- {
			top.commands[i].Unexecute(s.state)
		}
		if !outerAtomic && tx.typ != TypeAtomic {
			s.each(func(o Observer[S]) { o.TransactionEnded(tx.typ, true) })
		}
		return nil
	}

	merged := NewMultiCommand(top.commands...)
	if len(top.commands) > 0 {
		s.record(merged)
	}
	switch {
	case outerAtomic:
	case tx.typ == TypeAtomic:
		if !merged.IsEmpty() {
			s.notifyPushed(merged)
		}
	default:
		s.each(func(o Observer[S]) { o.TransactionEnded(tx.typ, false) })
	}
	return nil
}

// Undo reverts the most recent top-level command.
func (s *Stack[S]) Undo() error {
	if len(s.scopes) > 0 {
		return fmt.Errorf("undo inside a transaction: %w", ErrInvalidOperation)
	}
	n := len(s.undo)
	if n == 0 {
		return fmt.Errorf("nothing to undo: %w", ErrInvalidOperation)
	}
	cmd := s.undo[n-1]
	s.undo = s.undo[:n-1]
	cmd.Unexecute(s.state)
	s.redo = append(s.redo, cmd)
	s.notifyPushed(Reverse(cmd))
	return nil
}

// Redo re-applies the most recently undone command.
func (s *Stack[S]) Redo() error {
	if len(s.scopes) > 0 {
		return fmt.Errorf("redo inside a transaction: %w", ErrInvalidOperation)
	}
	n := len(s.redo)
	if n == 0 {
		return fmt.Errorf("nothing to redo: %w", ErrInvalidOperation)
	}
	cmd := s.redo[n-1]
	s.redo = s.redo[:n-1]
	cmd.Execute(s.state)
	s.undo = append(s.undo, cmd)
	s.notifyPushed(cmd)
	return nil
}

// CanUndo reports whether Undo would succeed.
func (s *Stack[S]) CanUndo() bool {
	return len(s.scopes) == 0 && len(s.undo) > 0
}

// CanRedo reports whether Redo would succeed.
func (s *Stack[S]) CanRedo() bool {
	return len(s.scopes) == 0 && len(s.redo) > 0
}

// Current returns the innermost open transaction, or nil.
func (s *Stack[S]) Current() *Transaction[S] {
	if n := len(s.scopes); n > 0 {
		return s.scopes[n-1].tx
	}
	return nil
}

// Scope returns the type of the open transaction at depth and a copy of the
// commands recorded in it so far.
func (s *Stack[S]) Scope(depth int) (Type, []Command[S]) {
	if depth < 0 || depth >= len(s.scopes) {
		return TypeNormal, nil
	}
	sc := s.scopes[depth]
	return sc.tx.typ, append([]Command[S](nil), sc.commands...)
}

// Commands returns a copy of the committed log, oldest first.
func (s *Stack[S]) Commands() []Command[S] {
	out := make([]Command[S], len(s.undo))
	copy(out, s.undo)
	return out
}

func (s *Stack[S]) notifyPushed(cmd Command[S]) {
	s.each(func(o Observer[S]) { o.CommandPushed(cmd) })
}

func (s *Stack[S]) each(fn func(Observer[S])) {
	handles := append([]int(nil), s.order...)
	for _, h := range handles {
		if o, ok := s.observers[h]; ok {
			fn(o)
		}
	}
}

// Transaction is a handle on an open scope of a Stack.
type Transaction[S any] struct {
	stack *Stack[S]
	typ   Type
	depth int
	ended bool
}

// Type returns the transaction type.
func (tx *Transaction[S]) Type() Type {
	return tx.typ
}

// Ended reports whether End has already been called successfully.
func (tx *Transaction[S]) Ended() bool {
	return tx.ended
}

// End closes the transaction, rolling back or committing its commands.
func (tx *Transaction[S]) End(rollback bool) error {
	if tx.ended {
		return fmt.Errorf("transaction already ended: %w", ErrInvalidOperation)
	}
	return tx.stack.end(tx, rollback)
}

// Commit is End(false).
func (tx *Transaction[S]) Commit() error {
	return tx.End(false)
}

// Rollback is End(true).
func (tx *Transaction[S]) Rollback() error {
	return tx.End(true)
}
