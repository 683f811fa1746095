// Package postgres provides PostgreSQL-specific implementations for the data
// storage interfaces defined in the internal/store and internal/task packages.
// It handles query execution, mapping between domain entities and rows, and
// translation of driver errors into store errors. Schema migrations are
// embedded and applied with goose.
package postgres
