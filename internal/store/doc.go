// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the application's core logic, allowing business rules to remain
// independent of specific database technologies or persistence details.
//
// Implementations live in internal/platform/postgres. Every store accepts
// a *sql.Tx through WithTx so services can compose multi-store writes with
// RunInTransaction.
package store
