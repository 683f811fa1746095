package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/1001stories/stories-api/internal/domain"
	"github.com/google/uuid"
)

// ExportStore defines the interface for data export request persistence.
type ExportStore interface {
	// Create saves a new export request.
	// Returns ErrActiveExportExists if the user already has a PENDING or
	// PROCESSING request.
	Create(ctx context.Context, req *domain.ExportRequest) error

	// GetByID returns ErrExportNotFound if the request does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ExportRequest, error)

	// ListByUser returns the user's requests, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.ExportRequest, error)

	MarkProcessing(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkCompleted(ctx context.Context, id uuid.UUID, filePath string, size int64, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	MarkDownloaded(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkExpired(ctx context.Context, id uuid.UUID) error

	// ListExpired returns COMPLETED or DOWNLOADED requests whose expiry is at
	// or before now.
	ListExpired(ctx context.Context, now time.Time) ([]*domain.ExportRequest, error)

	// FailStale marks PENDING or PROCESSING requests that started (or were
	// created, if never started) before cutoff as FAILED with message, and
	// returns how many were updated.
	FailStale(ctx context.Context, cutoff time.Time, message string) (int64, error)

	// WithTx returns an ExportStore bound to tx.
	WithTx(tx *sql.Tx) ExportStore
}
