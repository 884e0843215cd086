package ai

import (
	"fmt"
	"time"

	"github.com/fparadis2/mox/internal/game"
	"github.com/fparadis2/mox/internal/game/flow"
	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/transaction"
	"go.uber.org/zap"
)

// Config bounds a search.
type Config struct {
	// Depth is the number of decisions looked ahead outside of combat and
	// stack resolution.
	Depth int
	// Timeout stops expanding new nodes once elapsed.
	Timeout time.Duration
	// MaxNodes stops expanding new nodes once that many were explored.
	MaxNodes int
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{Depth: 4, Timeout: 2 * time.Second, MaxNodes: 5000}
}

// Result is the outcome of a search.
type Result struct {
	Answer  any
	Value   int
	Nodes   int
	Elapsed time.Duration
}

// search is one session: it owns its enumerators and budget.
type search struct {
	cfg         Config
	player      object.ID
	enumerators map[flow.ChoiceKind]Enumerator
	deadline    time.Time
	nodes       int
	logger      *zap.Logger
}

func newSearch(cfg Config, player object.ID, logger *zap.Logger) *search {
	if cfg.Depth <= 0 {
		cfg.Depth = DefaultConfig().Depth
	}
	if cfg.MaxNodes <= 0 {
		cfg.MaxNodes = DefaultConfig().MaxNodes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &search{
		cfg:         cfg,
		player:      player,
		enumerators: instantiate(),
		logger:      logger,
	}
}

func (s *search) exhausted() bool {
	return s.nodes >= s.cfg.MaxNodes || time.Now().After(s.deadline)
}

func (s *search) options(ctx *flow.Context, choice flow.Choice) []any {
	e, ok := s.enumerators[choice.Kind()]
	if !ok {
		return []any{choice.Default()}
	}
	return e.Options(ctx, choice)
}

// Search answers choice for its chooser. The game of ctx is forked as the
// chooser sees it and every explored answer is played on the fork inside a
// transaction that is rolled back afterwards.
func Search(ctx *flow.Context, choice flow.Choice, cfg Config, logger *zap.Logger) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	start := time.Now()
	s := newSearch(cfg, choice.Chooser(), logger)
	s.deadline = start.Add(s.cfg.Timeout)

	fork, err := ctx.Game.Fork(game.Visibility{}, s.player)
	if err != nil {
		return Result{}, fmt.Errorf("search %s: %w", choice.Kind(), err)
	}
	root := ctx.WithPending(fork, flow.SuspendingController{}, choice)
	options := s.options(root, choice)
	if len(options) == 0 {
		return Result{Answer: choice.Default()}, nil
	}

	best := Result{Answer: options[0], Value: MinValue}
	if len(options) > 1 {
		alpha := MinValue
		for _, option := range options {
			v, ok, err := s.try(root, option, 0, alpha, MaxValue)
			if err != nil {
				return Result{}, fmt.Errorf("search %s: %w", choice.Kind(), err)
			}
			if ok && v > best.Value {
				best.Answer, best.Value = option, v
			}
			alpha = max(alpha, best.Value)
		}
	}
	best.Nodes = s.nodes
	best.Elapsed = time.Since(start)
	s.logger.Debug("search done",
		zap.String("kind", string(choice.Kind())),
		zap.Int("player", int(s.player)),
		zap.Int("options", len(options)),
		zap.Int("value", best.Value),
		zap.Int("nodes", best.Nodes),
		zap.Duration("elapsed", best.Elapsed))
	return best, nil
}

// try plays option on the game of ctx and evaluates the outcome. It reports
// false when the option could not be played.
func (s *search) try(ctx *flow.Context, option any, depth, alpha, beta int) (int, bool, error) {
	g := ctx.Game
	s.nodes++
	tx := g.Transactions.Begin(transaction.TypeNormal)
	child := ctx.Clone(g, flow.SuspendingController{})
	_, playErr := flow.NewSequencer(child).Resume(option)
	v := 0
	var err error
	if playErr == nil {
		v, err = s.value(child, depth+1, alpha, beta)
	}
	if rbErr := tx.Rollback(); rbErr != nil {
		return 0, false, fmt.Errorf("roll back explored option: %w", rbErr)
	}
	if err != nil {
		return 0, false, err
	}
	if playErr != nil {
		s.logger.Debug("option skipped", zap.Any("option", option), zap.Error(playErr))
		return 0, false, nil
	}
	return v, true, nil
}

func (s *search) value(ctx *flow.Context, depth, alpha, beta int) (int, error) {
	g := ctx.Game
	choice := ctx.PendingChoice()
	if choice == nil || s.exhausted() || IsTerminal(Node{Depth: depth, Choice: choice}, g, s.cfg.Depth) {
		return ComputeHeuristic(g, s.player, true), nil
	}
	maximizing := choice.Chooser() == s.player
	best := MaxValue
	if maximizing {
		best = MinValue
	}
	for _, option := range s.options(ctx, choice) {
		v, ok, err := s.try(ctx, option, depth, alpha, beta)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		if maximizing {
			best = max(best, v)
			alpha = max(alpha, best)
		} else {
			best = min(best, v)
			beta = min(beta, best)
		}
		if alpha >= beta {
			break
		}
	}
	return best, nil
}
