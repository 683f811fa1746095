package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/1001stories/stories-api/internal/domain"
	"github.com/1001stories/stories-api/internal/store"
	"github.com/google/uuid"
)

const deletionColumns = `id, user_id, status, recovery_deadline, soft_deleted_at, hard_deleted_at, created_at`

// PostgresDeletionStore implements store.DeletionStore using PostgreSQL.
type PostgresDeletionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresDeletionStore creates a deletion request store.
func NewPostgresDeletionStore(db store.DBTX, logger *slog.Logger) *PostgresDeletionStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresDeletionStore{
		db:     db,
		logger: logger.With(slog.String("component", "deletion_store")),
	}
}

var _ store.DeletionStore = (*PostgresDeletionStore)(nil)

// WithTx implements store.DeletionStore.WithTx.
func (s *PostgresDeletionStore) WithTx(tx *sql.Tx) store.DeletionStore {
	return &PostgresDeletionStore{db: tx, logger: s.logger}
}

// Create implements store.DeletionStore.Create.
func (s *PostgresDeletionStore) Create(ctx context.Context, req *domain.DeletionRequest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deletion_requests (`+deletionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		req.ID, req.UserID, req.Status, req.RecoveryDeadline, req.SoftDeletedAt, req.HardDeletedAt, req.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return mapConstraint(err, deletionOnePendingKey, store.ErrDuplicate)
		}
		return MapError(err)
	}
	return nil
}

func scanDeletion(row interface{ Scan(...any) error }) (*domain.DeletionRequest, error) {
	var d domain.DeletionRequest
	var hard sql.NullTime
	if err := row.Scan(&d.ID, &d.UserID, &d.Status, &d.RecoveryDeadline, &d.SoftDeletedAt, &hard, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.HardDeletedAt = nullTimePtr(hard)
	return &d, nil
}

func (s *PostgresDeletionStore) query(ctx context.Context, query string, args ...any) ([]*domain.DeletionRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	out := []*domain.DeletionRequest{}
	for rows.Next() {
		d, err := scanDeletion(rows)
		if err != nil {
			return nil, MapError(err)
		}
		out = append(out, d)
	}
	return out, MapError(rows.Err())
}

// GetActiveByUser implements store.DeletionStore.GetActiveByUser.
func (s *PostgresDeletionStore) GetActiveByUser(ctx context.Context, userID uuid.UUID) (*domain.DeletionRequest, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+deletionColumns+`
		FROM deletion_requests
		WHERE user_id = $1 AND status = 'SOFT_DELETED'`, userID)
	d, err := scanDeletion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrDeletionRequestNotFound
		}
		return nil, MapError(err)
	}
	return d, nil
}

// ListByUser implements store.DeletionStore.ListByUser.
func (s *PostgresDeletionStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.DeletionRequest, error) {
	return s.query(ctx, `
		SELECT `+deletionColumns+`
		FROM deletion_requests
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
}

// ListDue implements store.DeletionStore.ListDue. Rows are locked for the
// surrounding transaction so concurrent passes do not both process them.
func (s *PostgresDeletionStore) ListDue(ctx context.Context, now time.Time) ([]*domain.DeletionRequest, error) {
	return s.query(ctx, `
		SELECT `+deletionColumns+`
		FROM deletion_requests
		WHERE status = 'SOFT_DELETED' AND recovery_deadline < $1
		ORDER BY recovery_deadline ASC
		FOR UPDATE SKIP LOCKED`, now)
}

// Cancel implements store.DeletionStore.Cancel.
func (s *PostgresDeletionStore) Cancel(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE deletion_requests SET status = 'CANCELLED'
		WHERE id = $1 AND status = 'SOFT_DELETED'`, id)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrDeletionRequestNotFound)
}

// MarkHardDeleted implements store.DeletionStore.MarkHardDeleted.
func (s *PostgresDeletionStore) MarkHardDeleted(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE deletion_requests SET status = 'HARD_DELETED', hard_deleted_at = $2
		WHERE id = $1`, id, at)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrDeletionRequestNotFound)
}

// PostgresCleanupLogStore implements store.CleanupLogStore using PostgreSQL.
type PostgresCleanupLogStore struct {
	db store.DBTX
}

// NewPostgresCleanupLogStore creates a cleanup log store.
func NewPostgresCleanupLogStore(db store.DBTX) *PostgresCleanupLogStore {
	if db == nil {
		panic("db cannot be nil")
	}
	return &PostgresCleanupLogStore{db: db}
}

var _ store.CleanupLogStore = (*PostgresCleanupLogStore)(nil)

// Create implements store.CleanupLogStore.Create.
func (s *PostgresCleanupLogStore) Create(ctx context.Context, entry *domain.CleanupLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cleanup_logs (id, task, records_processed, records_deleted, error_message, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.Task, entry.RecordsProcessed, entry.RecordsDeleted, entry.ErrorMessage,
		entry.StartedAt, entry.CompletedAt,
	)
	return MapError(err)
}

// ListRecent implements store.CleanupLogStore.ListRecent.
func (s *PostgresCleanupLogStore) ListRecent(ctx context.Context, limit int) ([]*domain.CleanupLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task, records_processed, records_deleted, error_message, started_at, completed_at
		FROM cleanup_logs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	out := []*domain.CleanupLog{}
	for rows.Next() {
		var l domain.CleanupLog
		var completed sql.NullTime
		if err := rows.Scan(&l.ID, &l.Task, &l.RecordsProcessed, &l.RecordsDeleted,
			&l.ErrorMessage, &l.StartedAt, &completed); err != nil {
			return nil, MapError(err)
		}
		l.CompletedAt = nullTimePtr(completed)
		out = append(out, &l)
	}
	return out, MapError(rows.Err())
}
