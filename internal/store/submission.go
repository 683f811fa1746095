package store

import (
	"context"
	"database/sql"

	"github.com/1001stories/stories-api/internal/domain"
	"github.com/google/uuid"
)

// SubmissionStore defines the interface for submission persistence.
type SubmissionStore interface {
	// Create saves a new submission.
	Create(ctx context.Context, submission *domain.Submission) error

	// GetByID retrieves a submission by ID.
	// Returns ErrSubmissionNotFound if it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error)

	// ListByAuthor returns the author's submissions, newest first.
	ListByAuthor(ctx context.Context, authorID uuid.UUID, limit, offset int) ([]*domain.Submission, error)

	// ListByStatus returns submissions in status, newest first.
	ListByStatus(ctx context.Context, status domain.SubmissionStatus, limit, offset int) ([]*domain.Submission, error)

	// UpdateStatus persists a status change made through Submission.TransitionTo.
	// Returns ErrSubmissionNotFound if it does not exist.
	UpdateStatus(ctx context.Context, submission *domain.Submission) error

	// WithTx returns a SubmissionStore bound to tx.
	WithTx(tx *sql.Tx) SubmissionStore
}
