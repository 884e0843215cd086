package lobby

import (
	"context"
	"time"

	"github.com/fparadis2/mox/internal/game/flow"
	"github.com/fparadis2/mox/internal/game/object"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"
)

// MethodChoose is the request sent to a player for every choice.
const MethodChoose = "choose"

// Requester sends a request to a client and waits for the reply.
type Requester interface {
	Request(ctx context.Context, method string, body *structpb.Struct) (*structpb.Struct, error)
}

// remoteController defers every choice: it is sent to the player on its own
// goroutine and the reply is posted back to the host as a Resume.
type remoteController struct {
	host      *Host
	player    object.ID
	requester Requester
	timeout   time.Duration
	onFailure func(err error)
	logger    *zap.Logger
}

var _ flow.Controller = (*remoteController)(nil)

func (r *remoteController) ask(ctx *flow.Context, choice flow.Choice) error {
	body, err := EncodeChoice(ctx.Game, choice)
	if err != nil {
		return err
	}
	go func() {
		rctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		reply, err := r.requester.Request(rctx, MethodChoose, body)
		if err != nil {
			r.logger.Warn("choice request failed",
				zap.String("kind", string(choice.Kind())),
				zap.Error(err))
			if r.onFailure != nil {
				r.onFailure(err)
			}
			return
		}
		answer, err := DecodeAnswer(choice, reply)
		if err != nil {
			r.logger.Warn("malformed answer, using default",
				zap.String("kind", string(choice.Kind())),
				zap.Error(err))
			answer = nil
		}
		if err := r.host.Resume(r.player, choice, answer); err != nil {
			r.logger.Debug("answer after the game closed", zap.Error(err))
		}
	}()
	return flow.ErrDeferred
}

func (r *remoteController) GivePriority(ctx *flow.Context, player object.ID) (flow.Action, error) {
	return nil, r.ask(ctx, flow.PriorityChoice{Player: player})
}

func (r *remoteController) PayMana(ctx *flow.Context, choice flow.PayManaChoice) (*flow.PayManaAction, error) {
	return nil, r.ask(ctx, choice)
}

func (r *remoteController) Target(ctx *flow.Context, choice flow.TargetChoice) (object.ID, error) {
	return object.InvalidID, r.ask(ctx, choice)
}

func (r *remoteController) Mulligan(ctx *flow.Context, player object.ID) (bool, error) {
	return false, r.ask(ctx, flow.MulliganChoice{Player: player})
}

func (r *remoteController) AskModalChoice(ctx *flow.Context, choice flow.ModalChoice) (int, error) {
	return 0, r.ask(ctx, choice)
}

func (r *remoteController) DeclareAttackers(ctx *flow.Context, choice flow.AttackersChoice) ([]object.ID, error) {
	return nil, r.ask(ctx, choice)
}

func (r *remoteController) DeclareBlockers(ctx *flow.Context, choice flow.BlockersChoice) ([]flow.Block, error) {
	return nil, r.ask(ctx, choice)
}
