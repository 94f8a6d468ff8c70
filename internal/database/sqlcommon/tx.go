package sqlcommon

import (
	"context"
	"sync"

	"github.com/omnidao/omnidao/pkg/adapter"
)

// Transaction finalizes a driver-level transaction exactly once. A second
// Commit or Rollback fails with a TransactionStateError instead of reaching
// the driver.
type Transaction struct {
	handle TxHandle

	mu        sync.Mutex
	finalized bool
	outcome   string
}

// NewTransaction wraps a driver transaction handle.
func NewTransaction(handle TxHandle) *Transaction {
	return &Transaction{handle: handle}
}

// Commit commits the transaction.
func (t *Transaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	if t.finalized {
		outcome := t.outcome
		t.mu.Unlock()
		return adapter.NewTransactionStateError("commit", "already finalized by "+outcome)
	}
	t.finalized = true
	t.outcome = "commit"
	t.mu.Unlock()

	return t.handle.Commit(ctx)
}

// Rollback rolls the transaction back.
func (t *Transaction) Rollback(ctx context.Context) error {
	t.mu.Lock()
	if t.finalized {
		outcome := t.outcome
		t.mu.Unlock()
		return adapter.NewTransactionStateError("rollback", "already finalized by "+outcome)
	}
	t.finalized = true
	t.outcome = "rollback"
	t.mu.Unlock()

	return t.handle.Rollback(ctx)
}

// IsActive reports whether the transaction is still open.
func (t *Transaction) IsActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.finalized
}

// BeginTransaction starts a driver transaction wrapped in the once-guarded
// handle.
func (e *Engine) BeginTransaction(ctx context.Context) (adapter.Transaction, error) {
	handle, err := e.exec.Begin(ctx)
	if err != nil {
		return nil, e.wrap("begin_transaction", err)
	}
	return NewTransaction(handle), nil
}
