package replication

import (
	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/transaction"
	"go.uber.org/zap"
)

// Replica is a Listener keeping its own manager and stack, so that it
// reconstructs the projection of the master game seen by one viewer.
type Replica struct {
	Manager *object.Manager
	Stack   *transaction.Stack[*object.Manager]

	open   []*transaction.Transaction[*object.Manager]
	logger *zap.Logger
}

// NewReplica creates an empty replica.
func NewReplica(logger *zap.Logger) *Replica {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := object.NewManager(logger)
	stack := transaction.NewStack(m)
	m.SetSink(stack)
	return &Replica{Manager: m, Stack: stack, logger: logger}
}

// Synchronize executes a filtered command on the replica.
func (r *Replica) Synchronize(cmd object.Command) {
	if err := r.Manager.Push(cmd); err != nil {
		r.logger.Error("failed to apply replicated command", zap.Error(err))
	}
}

// BeginTransaction mirrors a transaction opened on the master.
func (r *Replica) BeginTransaction(t transaction.Type) {
	r.open = append(r.open, r.Stack.Begin(t))
}

// EndCurrentTransaction mirrors the end of the innermost master transaction.
func (r *Replica) EndCurrentTransaction(rollback bool) {
	n := len(r.open)
	if n == 0 {
		r.logger.Warn("transaction end without a matching begin")
		return
	}
	tx := r.open[n-1]
	r.open = r.open[:n-1]
	if err := tx.End(rollback); err != nil {
		r.logger.Error("failed to end replicated transaction", zap.Error(err))
	}
}

// Depth returns the number of mirrored transactions currently open.
func (r *Replica) Depth() int {
	return len(r.open)
}
