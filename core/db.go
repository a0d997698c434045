package core

import (
	"context"
	"sync"
)

// Transactor runs fn inside a single storage transaction.
// Repositories called with the ctx handed to fn take part in the transaction;
// any error returned by fn rolls every write back.
// Nested calls join the outer transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txHooksKey struct{}

// TxHooks collects functions to run once the enclosing transaction has committed.
type TxHooks struct {
	mu  sync.Mutex
	fns []func()
}

// WithTxHooks returns a ctx carrying a fresh TxHooks, unless ctx already carries one (nested transaction).
// owner is true when the caller created the hooks and is therefore responsible for running them.
func WithTxHooks(ctx context.Context) (_ context.Context, hooks *TxHooks, owner bool) {
	if h, ok := ctx.Value(txHooksKey{}).(*TxHooks); ok {
		return ctx, h, false
	}
	h := new(TxHooks)
	return context.WithValue(ctx, txHooksKey{}, h), h, true
}

// Run executes the collected hooks in registration order.
func (h *TxHooks) Run() {
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// AfterCommit schedules fn to run after the transaction carried by ctx commits.
// Outside of a transaction fn runs immediately. fn never runs if the transaction rolls back.
func AfterCommit(ctx context.Context, fn func()) {
	h, ok := ctx.Value(txHooksKey{}).(*TxHooks)
	if !ok {
		fn()
		return
	}
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}
