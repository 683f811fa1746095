// Package mocks provides centralized mock implementations for testing.
//
// Store mocks keep their data in memory so service tests can assert on what
// was written. Every method can be overridden through a matching ...Fn field
// to inject failures:
//
//	users := mocks.NewMockUserStore()
//	users.GetByIDFn = func(ctx context.Context, id uuid.UUID) (*domain.User, error) {
//	    return nil, store.ErrUserNotFound
//	}
//
// Transaction-aware stores return themselves from WithTx, and MockTransactor
// calls the function with a nil *sql.Tx, so code under test runs its
// transactional path against the same in-memory data.
package mocks
