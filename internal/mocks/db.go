package mocks

import (
	"context"
	"sync"

	"github.com/1001stories/stories-api/internal/store"
)

// MockTransactor implements store.Transactor without a database. The
// function receives a nil transaction.
type MockTransactor struct {
	// RunInTxFn replaces the default behavior when set.
	RunInTxFn func(ctx context.Context, fn store.TxFn) error

	mu    sync.Mutex
	calls int
}

var _ store.Transactor = (*MockTransactor)(nil)

// RunInTx implements store.Transactor.
func (m *MockTransactor) RunInTx(ctx context.Context, fn store.TxFn) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.RunInTxFn != nil {
		return m.RunInTxFn(ctx, fn)
	}
	return fn(ctx, nil)
}

// Calls returns how many transactions were started.
func (m *MockTransactor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
