package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/1001stories/stories-api/internal/domain"
	"github.com/1001stories/stories-api/internal/store"
	"github.com/google/uuid"
)

const notificationColumns = `id, user_id, type, title, message, read, read_at, created_at`

// PostgresNotificationStore implements store.NotificationStore using PostgreSQL.
type PostgresNotificationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresNotificationStore creates a notification store.
func NewPostgresNotificationStore(db store.DBTX, logger *slog.Logger) *PostgresNotificationStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresNotificationStore{
		db:     db,
		logger: logger.With(slog.String("component", "notification_store")),
	}
}

var _ store.NotificationStore = (*PostgresNotificationStore)(nil)

// WithTx implements store.NotificationStore.WithTx.
func (s *PostgresNotificationStore) WithTx(tx *sql.Tx) store.NotificationStore {
	return &PostgresNotificationStore{db: tx, logger: s.logger}
}

// Create implements store.NotificationStore.Create.
func (s *PostgresNotificationStore) Create(ctx context.Context, n *domain.Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.Read, n.ReadAt, n.CreatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return store.ErrUserNotFound
		}
		return MapError(err)
	}
	return nil
}

func scanNotification(row interface{ Scan(...any) error }) (*domain.Notification, error) {
	var n domain.Notification
	var readAt sql.NullTime
	if err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Read, &readAt, &n.CreatedAt); err != nil {
		return nil, err
	}
	if readAt.Valid {
		t := readAt.Time
		n.ReadAt = &t
	}
	return &n, nil
}

func (s *PostgresNotificationStore) query(ctx context.Context, query string, args ...any) ([]*domain.Notification, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	out := []*domain.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, MapError(err)
		}
		out = append(out, n)
	}
	return out, MapError(rows.Err())
}

// ListByUser implements store.NotificationStore.ListByUser.
func (s *PostgresNotificationStore) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Notification, error) {
	return s.query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
}

// ListUnread implements store.NotificationStore.ListUnread.
func (s *PostgresNotificationStore) ListUnread(ctx context.Context, userID uuid.UUID, from, to time.Time, limit int) ([]*domain.Notification, error) {
	return s.query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE user_id = $1 AND NOT read AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4`, userID, from, to, limit)
}

// MarkRead implements store.NotificationStore.MarkRead.
func (s *PostgresNotificationStore) MarkRead(ctx context.Context, userID, id uuid.UUID, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications
		SET read = TRUE, read_at = COALESCE(read_at, $3)
		WHERE id = $1 AND user_id = $2`, id, userID, at)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrNotificationNotFound)
}

// DeleteReadBefore implements store.NotificationStore.DeleteReadBefore.
func (s *PostgresNotificationStore) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE read AND created_at < $1`, cutoff)
	if err != nil {
		return 0, MapError(err)
	}
	return result.RowsAffected()
}
