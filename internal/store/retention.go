package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/1001stories/stories-api/internal/domain"
	"github.com/google/uuid"
)

// DeletionStore tracks account deletion requests.
type DeletionStore interface {
	Create(ctx context.Context, req *domain.DeletionRequest) error

	// GetActiveByUser returns the user's SOFT_DELETED request.
	// Returns ErrDeletionRequestNotFound if there is none.
	GetActiveByUser(ctx context.Context, userID uuid.UUID) (*domain.DeletionRequest, error)

	// ListByUser returns every request ever made for the user.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.DeletionRequest, error)

	// ListDue returns SOFT_DELETED requests whose recovery deadline is before now.
	ListDue(ctx context.Context, now time.Time) ([]*domain.DeletionRequest, error)

	Cancel(ctx context.Context, id uuid.UUID) error
	MarkHardDeleted(ctx context.Context, id uuid.UUID, at time.Time) error

	// WithTx returns a DeletionStore bound to tx.
	WithTx(tx *sql.Tx) DeletionStore
}

// CleanupLogStore records retention task runs.
type CleanupLogStore interface {
	Create(ctx context.Context, entry *domain.CleanupLog) error

	// ListRecent returns the newest entries first.
	ListRecent(ctx context.Context, limit int) ([]*domain.CleanupLog, error)
}
