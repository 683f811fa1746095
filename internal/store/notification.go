package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/1001stories/stories-api/internal/domain"
	"github.com/google/uuid"
)

// NotificationStore defines the interface for in-app notification persistence.
type NotificationStore interface {
	Create(ctx context.Context, n *domain.Notification) error

	// ListByUser returns the user's notifications, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Notification, error)

	// ListUnread returns unread notifications created in [from, to), newest first.
	ListUnread(ctx context.Context, userID uuid.UUID, from, to time.Time, limit int) ([]*domain.Notification, error)

	// MarkRead marks one of the user's notifications as read.
	// Returns ErrNotificationNotFound if no such notification belongs to the user.
	MarkRead(ctx context.Context, userID, id uuid.UUID, at time.Time) error

	// DeleteReadBefore removes read notifications created before cutoff.
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// WithTx returns a NotificationStore bound to tx.
	WithTx(tx *sql.Tx) NotificationStore
}
