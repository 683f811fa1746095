package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/1001stories/stories-api/internal/domain"
	"github.com/google/uuid"
)

// UserStore defines the interface for user data persistence.
type UserStore interface {
	// Create saves a new user to the store, hashing the plaintext password.
	// Returns ErrEmailExists if the email is already taken.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique ID, including soft-deleted users.
	// Returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByEmail retrieves a user by their email address.
	// Returns ErrUserNotFound if the user does not exist.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update modifies profile and notification preferences.
	// If a new plaintext Password is set it is hashed and replaces HashedPassword.
	// Returns ErrUserNotFound if the user does not exist.
	Update(ctx context.Context, user *domain.User) error

	// SoftDelete stamps deleted_at on the user.
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error

	// Restore clears deleted_at.
	Restore(ctx context.Context, id uuid.UUID) error

	// Delete permanently removes the user row. Owned submissions, reviews,
	// notifications and export requests go with it through cascading keys.
	// Returns ErrUserNotFound if the user does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// ListDigestRecipients returns active users who chose freq and have email
	// notifications enabled.
	ListDigestRecipients(ctx context.Context, freq domain.DigestFrequency) ([]*domain.User, error)

	// WithTx returns a UserStore bound to tx.
	WithTx(tx *sql.Tx) UserStore
}
