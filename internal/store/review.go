package store

import (
	"context"
	"database/sql"

	"github.com/1001stories/stories-api/internal/domain"
	"github.com/google/uuid"
)

// ReviewStore persists AI review records. Writes only ever insert; a review
// is never updated or deduplicated once stored.
type ReviewStore interface {
	// Create inserts one review row.
	// Returns ErrSubmissionNotFound if the submission does not exist.
	Create(ctx context.Context, review *domain.AIReview) error

	// ListBySubmission returns every review of a submission, newest first.
	ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]*domain.AIReview, error)

	// ListByAuthor returns reviews across all submissions written by authorID.
	ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]*domain.AIReview, error)

	// WithTx returns a ReviewStore bound to tx.
	WithTx(tx *sql.Tx) ReviewStore
}
