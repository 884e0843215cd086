package ai

import (
	"github.com/fparadis2/mox/internal/game/flow"
	"github.com/fparadis2/mox/internal/game/object"
	"go.uber.org/zap"
)

// Controller answers every choice by searching. A failed search falls back
// to the default answer.
type Controller struct {
	cfg    Config
	logger *zap.Logger
}

var _ flow.Controller = (*Controller)(nil)

// NewController creates an AI controller.
func NewController(cfg Config, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{cfg: cfg, logger: logger}
}

func (c *Controller) choose(ctx *flow.Context, choice flow.Choice) any {
	r, err := Search(ctx, choice, c.cfg, c.logger)
	if err != nil {
		c.logger.Warn("search failed",
			zap.String("kind", string(choice.Kind())),
			zap.Int("player", int(choice.Chooser())),
			zap.Error(err))
		return choice.Default()
	}
	return r.Answer
}

func (c *Controller) GivePriority(ctx *flow.Context, player object.ID) (flow.Action, error) {
	return c.choose(ctx, flow.PriorityChoice{Player: player}).(flow.Action), nil
}

func (c *Controller) PayMana(ctx *flow.Context, choice flow.PayManaChoice) (*flow.PayManaAction, error) {
	return c.choose(ctx, choice).(*flow.PayManaAction), nil
}

func (c *Controller) Target(ctx *flow.Context, choice flow.TargetChoice) (object.ID, error) {
	return c.choose(ctx, choice).(object.ID), nil
}

func (c *Controller) Mulligan(ctx *flow.Context, player object.ID) (bool, error) {
	return c.choose(ctx, flow.MulliganChoice{Player: player}).(bool), nil
}

func (c *Controller) AskModalChoice(ctx *flow.Context, choice flow.ModalChoice) (int, error) {
	return c.choose(ctx, choice).(int), nil
}

func (c *Controller) DeclareAttackers(ctx *flow.Context, choice flow.AttackersChoice) ([]object.ID, error) {
	return c.choose(ctx, choice).([]object.ID), nil
}

func (c *Controller) DeclareBlockers(ctx *flow.Context, choice flow.BlockersChoice) ([]flow.Block, error) {
	return c.choose(ctx, choice).([]flow.Block), nil
}
