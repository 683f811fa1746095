package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/1001stories/stories-api/internal/domain"
	"github.com/1001stories/stories-api/internal/store"
	"github.com/google/uuid"
)

const submissionColumns = `id, author_id, title, content, language, status, created_at, updated_at`

// PostgresSubmissionStore implements store.SubmissionStore using PostgreSQL.
type PostgresSubmissionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSubmissionStore creates a submission store.
func NewPostgresSubmissionStore(db store.DBTX, logger *slog.Logger) *PostgresSubmissionStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSubmissionStore{
		db:     db,
		logger: logger.With(slog.String("component", "submission_store")),
	}
}

var _ store.SubmissionStore = (*PostgresSubmissionStore)(nil)

// WithTx implements store.SubmissionStore.WithTx.
func (s *PostgresSubmissionStore) WithTx(tx *sql.Tx) store.SubmissionStore {
	return &PostgresSubmissionStore{db: tx, logger: s.logger}
}

// Create implements store.SubmissionStore.Create.
func (s *PostgresSubmissionStore) Create(ctx context.Context, sub *domain.Submission) error {
	if err := sub.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO submissions (`+submissionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sub.ID, sub.AuthorID, sub.Title, sub.Content, sub.Language, sub.Status, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return store.ErrUserNotFound
		}
		s.logger.Error("failed to create submission",
			slog.String("submission_id", sub.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

func scanSubmission(row interface{ Scan(...any) error }) (*domain.Submission, error) {
	var sub domain.Submission
	err := row.Scan(&sub.ID, &sub.AuthorID, &sub.Title, &sub.Content, &sub.Language,
		&sub.Status, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetByID implements store.SubmissionStore.GetByID.
func (s *PostgresSubmissionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id)
	sub, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrSubmissionNotFound
		}
		return nil, MapError(err)
	}
	return sub, nil
}

func (s *PostgresSubmissionStore) list(ctx context.Context, where string, arg any, limit, offset int) ([]*domain.Submission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions
		WHERE `+where+`
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, arg, limit, offset)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	subs := []*domain.Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, MapError(err)
		}
		subs = append(subs, sub)
	}
	return subs, MapError(rows.Err())
}

// ListByAuthor implements store.SubmissionStore.ListByAuthor.
func (s *PostgresSubmissionStore) ListByAuthor(ctx context.Context, authorID uuid.UUID, limit, offset int) ([]*domain.Submission, error) {
	return s.list(ctx, "author_id = $1", authorID, limit, offset)
}

// ListByStatus implements store.SubmissionStore.ListByStatus.
func (s *PostgresSubmissionStore) ListByStatus(ctx context.Context, status domain.SubmissionStatus, limit, offset int) ([]*domain.Submission, error) {
	return s.list(ctx, "status = $1", status, limit, offset)
}

// UpdateStatus implements store.SubmissionStore.UpdateStatus.
func (s *PostgresSubmissionStore) UpdateStatus(ctx context.Context, sub *domain.Submission) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET status = $2, updated_at = $3 WHERE id = $1`,
		sub.ID, sub.Status, sub.UpdatedAt)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrSubmissionNotFound)
}
