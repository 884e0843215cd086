package flow

import (
	"errors"
	"fmt"

	"github.com/fparadis2/mox/internal/game/object"
	"go.uber.org/zap"
)

// Status is where a sequencer stopped.
type Status int

const (
	// StatusIdle means nothing is left to run.
	StatusIdle Status = iota
	// StatusWaiting means a choice waits for Resume.
	StatusWaiting
	// StatusEnded means the game is over.
	StatusEnded
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusWaiting:
		return "waiting"
	case StatusEnded:
		return "ended"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ErrNoPendingChoice is returned by Resume when nothing waits for an answer.
var ErrNoPendingChoice = errors.New("no pending choice")

// Sequencer runs the parts of a Context.
type Sequencer struct {
	ctx *Context
}

// NewSequencer creates a sequencer over ctx.
func NewSequencer(ctx *Context) *Sequencer {
	return &Sequencer{ctx: ctx}
}

// Context returns the sequenced context.
func (s *Sequencer) Context() *Context {
	return s.ctx
}

// Run executes parts until the game ends, a choice is deferred or nothing is
// scheduled.
func (s *Sequencer) Run() (Status, error) {
	ctx := s.ctx
	for {
		if ctx.Game.IsEnded() {
			return StatusEnded, nil
		}
		if ctx.pending != nil {
			return StatusWaiting, nil
		}
		part := ctx.pop()
		if part == nil {
			return StatusIdle, nil
		}
		for part != nil {
			next, err := part.Execute(ctx)
			if err != nil {
				return StatusIdle, fmt.Errorf("execute %T: %w", part, err)
			}
			if ctx.pending != nil || ctx.Game.IsEnded() {
				ctx.Schedule(next)
				break
			}
			part = next
		}
	}
}

// Resume answers the pending choice and runs on. A nil answer stands for
// the default of the choice.
func (s *Sequencer) Resume(answer any) (Status, error) {
	ctx := s.ctx
	choice := ctx.pending
	if choice == nil {
		return StatusIdle, ErrNoPendingChoice
	}
	if answer == nil {
		answer = choice.Default()
	}
	if err := CheckAnswer(choice, answer); err != nil {
		return StatusWaiting, err
	}
	ctx.pending = nil
	ctx.PushChoiceResult(answer)
	ctx.logger.Debug("choice answered",
		zap.String("kind", string(choice.Kind())),
		zap.Int("player", int(choice.Chooser())))
	return s.Run()
}

// CheckAnswer reports whether answer has the type expected by choice.
func CheckAnswer(choice Choice, answer any) error {
	ok := false
	switch choice.Kind() {
	case KindPriority:
		_, ok = answer.(Action)
	case KindPayMana:
		_, ok = answer.(*PayManaAction)
	case KindTarget:
		_, ok = answer.(object.ID)
	case KindMulligan:
		_, ok = answer.(bool)
	case KindModal:
		_, ok = answer.(int)
	case KindAttackers:
		_, ok = answer.([]object.ID)
	case KindBlockers:
		_, ok = answer.([]Block)
	}
	if !ok {
		return fmt.Errorf("%s choice cannot take a %T answer", choice.Kind(), answer)
	}
	return nil
}
