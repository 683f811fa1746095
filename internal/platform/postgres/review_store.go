package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/1001stories/stories-api/internal/domain"
	"github.com/1001stories/stories-api/internal/store"
	"github.com/google/uuid"
)

const reviewColumns = `r.id, r.submission_id, r.review_type, r.feedback, r.score, r.suggestions,
	r.annotation_data, r.status, r.model, r.processing_time_ms, r.created_at`

// PostgresReviewStore implements store.ReviewStore using PostgreSQL.
type PostgresReviewStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresReviewStore creates a review store.
func NewPostgresReviewStore(db store.DBTX, logger *slog.Logger) *PostgresReviewStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresReviewStore{
		db:     db,
		logger: logger.With(slog.String("component", "review_store")),
	}
}

var _ store.ReviewStore = (*PostgresReviewStore)(nil)

// WithTx implements store.ReviewStore.WithTx.
func (s *PostgresReviewStore) WithTx(tx *sql.Tx) store.ReviewStore {
	return &PostgresReviewStore{db: tx, logger: s.logger}
}

// Create implements store.ReviewStore.Create. Every call inserts a new row.
func (s *PostgresReviewStore) Create(ctx context.Context, review *domain.AIReview) error {
	if err := review.Validate(); err != nil {
		return err
	}

	suggestions, err := json.Marshal(review.Suggestions)
	if err != nil {
		return fmt.Errorf("failed to encode suggestions: %w", err)
	}

	annotations := review.Annotations
	if annotations == nil {
		annotations = []domain.Annotation{}
	}
	annotationData, err := json.Marshal(annotations)
	if err != nil {
		return fmt.Errorf("failed to encode annotations: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ai_reviews (id, submission_id, review_type, feedback, score, suggestions,
			annotation_data, status, model, processing_time_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		review.ID, review.SubmissionID, review.Type, []byte(review.Feedback), review.Score, suggestions,
		annotationData, review.Status, review.Model, review.ProcessingTimeMs, review.CreatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return store.ErrSubmissionNotFound
		}
		s.logger.Error("failed to create review",
			slog.String("submission_id", review.SubmissionID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

func scanReview(row interface{ Scan(...any) error }) (*domain.AIReview, error) {
	var r domain.AIReview
	var feedback, suggestions, annotations []byte
	var score sql.NullInt32
	if err := row.Scan(&r.ID, &r.SubmissionID, &r.Type, &feedback, &score, &suggestions,
		&annotations, &r.Status, &r.Model, &r.ProcessingTimeMs, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Feedback = json.RawMessage(feedback)
	if score.Valid {
		v := int(score.Int32)
		r.Score = &v
	}
	r.Suggestions = []string{}
	if len(suggestions) > 0 {
		if err := json.Unmarshal(suggestions, &r.Suggestions); err != nil {
			return nil, fmt.Errorf("failed to decode suggestions: %w", err)
		}
	}
	r.Annotations = []domain.Annotation{}
	if len(annotations) > 0 {
		if err := json.Unmarshal(annotations, &r.Annotations); err != nil {
			return nil, fmt.Errorf("failed to decode annotations: %w", err)
		}
	}
	return &r, nil
}

func (s *PostgresReviewStore) query(ctx context.Context, query string, arg any) ([]*domain.AIReview, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	reviews := []*domain.AIReview{}
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, MapError(err)
		}
		reviews = append(reviews, r)
	}
	return reviews, MapError(rows.Err())
}

// ListBySubmission implements store.ReviewStore.ListBySubmission.
func (s *PostgresReviewStore) ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]*domain.AIReview, error) {
	return s.query(ctx, `
		SELECT `+reviewColumns+`
		FROM ai_reviews r
		WHERE r.submission_id = $1
		ORDER BY r.created_at DESC`, submissionID)
}

// ListByAuthor implements store.ReviewStore.ListByAuthor.
func (s *PostgresReviewStore) ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]*domain.AIReview, error) {
	return s.query(ctx, `
		SELECT `+reviewColumns+`
		FROM ai_reviews r
		JOIN submissions s ON s.id = r.submission_id
		WHERE s.author_id = $1
		ORDER BY r.created_at DESC`, authorID)
}
