package transaction

// Command is an atomic, reversible mutation of a state S.
// Unexecute must exactly undo Execute for the part of S it touches.
type Command[S any] interface {
	Execute(state S)
	Unexecute(state S)
	IsEmpty() bool
}

// MultiCommand runs an ordered list of commands as one unit.
type MultiCommand[S any] struct {
	commands []Command[S]
}

// NewMultiCommand groups the given commands, skipping nil entries.
func NewMultiCommand[S any](commands ...Command[S]) *MultiCommand[S] {
	mc := &MultiCommand[S]{commands: make([]Command[S], 0, len(commands))}
	for _, cmd := range commands {
		if cmd != nil {
			mc.commands = append(mc.commands, cmd)
		}
	}
	return mc
}

// Add appends a command to the group.
func (mc *MultiCommand[S]) Add(cmd Command[S]) {
	if cmd != nil {
		mc.commands = append(mc.commands, cmd)
	}
}

// Commands returns a copy of the grouped commands in insertion order.
func (mc *MultiCommand[S]) Commands() []Command[S] {
	out := make([]Command[S], len(mc.commands))
	copy(out, mc.commands)
	return out
}

// Len returns the number of direct children.
func (mc *MultiCommand[S]) Len() int {
	return len(mc.commands)
}

// Execute runs the children in order.
func (mc *MultiCommand[S]) Execute(state S) {
	for _, cmd := range mc.commands {
		cmd.Execute(state)
	}
}

// Unexecute reverts the children in reverse order.
func (mc *MultiCommand[S]) Unexecute(state S) {
	for i := len(mc.commands) - 1; i >= 0; i-- {
		mc.commands[i].Unexecute(state)
	}
}

// IsEmpty is true when every child is empty (or there are none).
func (mc *MultiCommand[S]) IsEmpty() bool {
	for _, cmd := range mc.commands {
		if !cmd.IsEmpty() {
			return false
		}
	}
	return true
}

// ReverseCommand inverts a command: Execute undoes it and Unexecute redoes it.
type ReverseCommand[S any] struct {
	inner Command[S]
}

// Reverse wraps cmd so that it runs backwards.
func Reverse[S any](cmd Command[S]) *ReverseCommand[S] {
	return &ReverseCommand[S]{inner: cmd}
}

// Inner returns the wrapped command.
func (rc *ReverseCommand[S]) Inner() Command[S] {
	return rc.inner
}

func (rc *ReverseCommand[S]) Execute(state S) {
	rc.inner.Unexecute(state)
}

func (rc *ReverseCommand[S]) Unexecute(state S) {
	rc.inner.Execute(state)
}

func (rc *ReverseCommand[S]) IsEmpty() bool {
	return rc.inner == nil || rc.inner.IsEmpty()
}
