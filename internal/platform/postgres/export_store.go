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

const exportColumns = `id, user_id, status, file_path, file_size, error_message,
	expires_at, started_at, completed_at, downloaded_at, created_at`

// PostgresExportStore implements store.ExportStore using PostgreSQL.
type PostgresExportStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresExportStore creates an export request store.
func NewPostgresExportStore(db store.DBTX, logger *slog.Logger) *PostgresExportStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresExportStore{
		db:     db,
		logger: logger.With(slog.String("component", "export_store")),
	}
}

var _ store.ExportStore = (*PostgresExportStore)(nil)

// WithTx implements store.ExportStore.WithTx.
func (s *PostgresExportStore) WithTx(tx *sql.Tx) store.ExportStore {
	return &PostgresExportStore{db: tx, logger: s.logger}
}

// Create implements store.ExportStore.Create. The partial unique index on
// active requests turns a concurrent second request into ErrActiveExportExists.
func (s *PostgresExportStore) Create(ctx context.Context, req *domain.ExportRequest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO export_requests (`+exportColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		req.ID, req.UserID, req.Status, req.FilePath, req.FileSize, req.ErrorMessage,
		req.ExpiresAt, req.StartedAt, req.CompletedAt, req.DownloadedAt, req.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return mapConstraint(err, exportOneActiveKey, store.ErrActiveExportExists)
		}
		if IsForeignKeyViolation(err) {
			return store.ErrUserNotFound
		}
		return MapError(err)
	}
	return nil
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func scanExport(row interface{ Scan(...any) error }) (*domain.ExportRequest, error) {
	var e domain.ExportRequest
	var started, completed, downloaded sql.NullTime
	if err := row.Scan(&e.ID, &e.UserID, &e.Status, &e.FilePath, &e.FileSize, &e.ErrorMessage,
		&e.ExpiresAt, &started, &completed, &downloaded, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.StartedAt = nullTimePtr(started)
	e.CompletedAt = nullTimePtr(completed)
	e.DownloadedAt = nullTimePtr(downloaded)
	return &e, nil
}

func (s *PostgresExportStore) query(ctx context.Context, query string, args ...any) ([]*domain.ExportRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	out := []*domain.ExportRequest{}
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, MapError(err)
		}
		out = append(out, e)
	}
	return out, MapError(rows.Err())
}

// GetByID implements store.ExportStore.GetByID.
func (s *PostgresExportStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ExportRequest, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+exportColumns+` FROM export_requests WHERE id = $1`, id)
	e, err := scanExport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrExportNotFound
		}
		return nil, MapError(err)
	}
	return e, nil
}

// ListByUser implements store.ExportStore.ListByUser.
func (s *PostgresExportStore) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.ExportRequest, error) {
	return s.query(ctx, `
		SELECT `+exportColumns+`
		FROM export_requests
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
}

// ListExpired implements store.ExportStore.ListExpired.
func (s *PostgresExportStore) ListExpired(ctx context.Context, now time.Time) ([]*domain.ExportRequest, error) {
	return s.query(ctx, `
		SELECT `+exportColumns+`
		FROM export_requests
		WHERE status IN ('COMPLETED', 'DOWNLOADED') AND expires_at <= $1
		ORDER BY expires_at ASC`, now)
}

// FailStale implements store.ExportStore.FailStale.
func (s *PostgresExportStore) FailStale(ctx context.Context, cutoff time.Time, message string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE export_requests SET status = 'FAILED', error_message = $2
		WHERE status IN ('PENDING', 'PROCESSING')
		  AND COALESCE(started_at, created_at) < $1`, cutoff, message)
	if err != nil {
		return 0, MapError(err)
	}
	return result.RowsAffected()
}

func (s *PostgresExportStore) exec(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrExportNotFound)
}

func (s *PostgresExportStore) MarkProcessing(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.exec(ctx, `
		UPDATE export_requests SET status = 'PROCESSING', started_at = $2
		WHERE id = $1 AND status = 'PENDING'`, id, at)
}

func (s *PostgresExportStore) MarkCompleted(ctx context.Context, id uuid.UUID, filePath string, size int64, at time.Time) error {
	return s.exec(ctx, `
		UPDATE export_requests
		SET status = 'COMPLETED', file_path = $2, file_size = $3, completed_at = $4, error_message = ''
		WHERE id = $1`, id, filePath, size, at)
}

func (s *PostgresExportStore) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	return s.exec(ctx, `
		UPDATE export_requests SET status = 'FAILED', error_message = $2
		WHERE id = $1`, id, message)
}

func (s *PostgresExportStore) MarkDownloaded(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.exec(ctx, `
		UPDATE export_requests
		SET status = 'DOWNLOADED', downloaded_at = COALESCE(downloaded_at, $2)
		WHERE id = $1`, id, at)
}

// MarkExpired also clears file_path; the archive is removed by the caller.
func (s *PostgresExportStore) MarkExpired(ctx context.Context, id uuid.UUID) error {
	return s.exec(ctx, `
		UPDATE export_requests SET status = 'EXPIRED', file_path = ''
		WHERE id = $1`, id)
}
