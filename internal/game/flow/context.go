// Package flow sequences a game as a stack of Parts. Each Part does a small
// amount of work and either returns the Part to run next or schedules more
// Parts on the Context. Player decisions suspend the sequencer until the
// answer is handed back through Resume.
package flow

import (
	"fmt"

	"github.com/fparadis2/mox/internal/game"
	"go.uber.org/zap"
)

// Part is one step of the sequencing machine. Parts are values: they never
// change after creation, so a Context can be cloned by copying its queue.
type Part interface {
	Execute(ctx *Context) (Part, error)
}

// InvalidProgramError is raised, as a panic, for sequencing bugs such as
// popping a choice result of the wrong type.
type InvalidProgramError struct {
	Msg string
}

func (e InvalidProgramError) Error() string {
	return "invalid program: " + e.Msg
}

func invalidProgram(format string, args ...any) {
	panic(InvalidProgramError{Msg: fmt.Sprintf(format, args...)})
}

// Context holds every piece of mutable sequencing state: the LIFO queue of
// scheduled Parts, the LIFO stack of choice results and the choice waiting
// for an answer.
type Context struct {
	Game       *game.Game
	Controller Controller

	queue   []Part
	results []any
	pending Choice
	logger  *zap.Logger
}

// NewContext creates an empty context for g.
func NewContext(g *game.Game, controller Controller, logger *zap.Logger) *Context {
	if logger == nil {
		logger = zap.NewNop()
	}
	if controller == nil {
		controller = DeadController{}
	}
	return &Context{Game: g, Controller: controller, logger: logger}
}

// Logger returns the context logger.
func (c *Context) Logger() *zap.Logger {
	return c.logger
}

// Schedule queues parts so that parts[0] runs first, before anything
// scheduled earlier.
func (c *Context) Schedule(parts ...Part) {
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != nil {
			c.queue = append(c.queue, parts[i])
		}
	}
}

// Scheduled returns the queued parts in the order they will run.
func (c *Context) Scheduled() []Part {
	out := make([]Part, 0, len(c.queue))
	for i := len(c.queue) - 1; i >= 0; i-- {
		out = append(out, c.queue[i])
	}
	return out
}

func (c *Context) pop() Part {
	n := len(c.queue)
	if n == 0 {
		return nil
	}
	p := c.queue[n-1]
	c.queue = c.queue[:n-1]
	return p
}

// PushChoiceResult pushes the answer to a choice.
func (c *Context) PushChoiceResult(v any) {
	c.results = append(c.results, v)
}

// PendingChoice returns the choice the context waits on, or nil.
func (c *Context) PendingChoice() Choice {
	return c.pending
}

// PopChoiceResult pops the last choice result. It panics with an
// InvalidProgramError when the stack is empty or the result is not a T.
func PopChoiceResult[T any](c *Context) T {
	n := len(c.results)
	if n == 0 {
		invalidProgram("no choice result to pop")
	}
	r := c.results[n-1]
	c.results = c.results[:n-1]
	v, ok := r.(T)
	if !ok {
		var want T
		invalidProgram("choice result is %T, want %T", r, want)
	}
	return v
}

// Clone copies the sequencing state onto another game, typically a fork of
// c.Game, driven by controller. The pending choice is kept.
func (c *Context) Clone(g *game.Game, controller Controller) *Context {
	out := NewContext(g, controller, c.logger)
	out.queue = append([]Part(nil), c.queue...)
	out.results = append([]any(nil), c.results...)
	out.pending = c.pending
	return out
}

// WithPending returns a clone of c on g waiting on choice.
func (c *Context) WithPending(g *game.Game, controller Controller, choice Choice) *Context {
	out := c.Clone(g, controller)
	out.pending = choice
	return out
}
