package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/1001stories/stories-api/internal/platform/logger"
	"github.com/1001stories/stories-api/internal/store"
	"github.com/1001stories/stories-api/internal/task"
	"github.com/google/uuid"
)

const jobColumns = `id, type, payload, priority, state, progress, result, failure_reason,
	attempts, created_at, updated_at, started_at, finished_at`

// PostgresJobStore implements task.Store using PostgreSQL. Claims use
// FOR UPDATE SKIP LOCKED so any number of workers, in any number of
// processes, can share the table.
type PostgresJobStore struct {
	db store.DBTX
}

// NewPostgresJobStore creates a job store.
func NewPostgresJobStore(db store.DBTX) *PostgresJobStore {
	if db == nil {
		panic("db cannot be nil")
	}
	return &PostgresJobStore{db: db}
}

var _ task.Store = (*PostgresJobStore)(nil)

// Insert implements task.Store.Insert.
func (s *PostgresJobStore) Insert(ctx context.Context, job *task.Job) error {
	payload := []byte(job.Payload)
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, type, payload, priority, state, progress, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, 0, $6, $7)`,
		job.ID, job.Type, payload, job.Priority, job.State, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to save job",
			slog.String("job_id", job.ID.String()),
			slog.String("job_type", job.Type),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

func scanJob(row interface{ Scan(...any) error }) (*task.Job, error) {
	var j task.Job
	var payload, result []byte
	var started, finished sql.NullTime
	if err := row.Scan(&j.ID, &j.Type, &payload, &j.Priority, &j.State, &j.Progress, &result,
		&j.FailureReason, &j.Attempts, &j.CreatedAt, &j.UpdatedAt, &started, &finished); err != nil {
		return nil, err
	}
	j.Payload = json.RawMessage(payload)
	if len(result) > 0 {
		j.Result = json.RawMessage(result)
	}
	j.StartedAt = nullTimePtr(started)
	j.FinishedAt = nullTimePtr(finished)
	return &j, nil
}

// Get implements task.Store.Get.
func (s *PostgresJobStore) Get(ctx context.Context, id uuid.UUID) (*task.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrJobNotFound
		}
		return nil, MapError(err)
	}
	return j, nil
}

// ClaimNext implements task.Store.ClaimNext.
func (s *PostgresJobStore) ClaimNext(ctx context.Context, jobType string) (*task.Job, error) {
	now := time.Now().UTC()
	row := s.db.QueryRowContext(ctx, `
		UPDATE jobs
		SET state = 'active', attempts = attempts + 1, progress = 0, started_at = $2, updated_at = $2
		WHERE id = (
			SELECT id FROM jobs
			WHERE type = $1 AND state = 'waiting'
			ORDER BY priority ASC, created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns, jobType, now)

	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, MapError(err)
	}
	return j, nil
}

func (s *PostgresJobStore) exec(ctx context.Context, op string, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return store.NewStoreError("job", op, "statement failed", MapError(err))
	}
	if err := CheckRowsAffected(result, store.ErrJobNotFound); err != nil {
		return store.NewStoreError("job", op, "no job updated", err)
	}
	return nil
}

// UpdateProgress implements task.Store.UpdateProgress.
func (s *PostgresJobStore) UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error {
	return s.exec(ctx, "update progress",
		`UPDATE jobs SET progress = $2, updated_at = NOW() WHERE id = $1`, id, progress)
}

// Complete implements task.Store.Complete.
func (s *PostgresJobStore) Complete(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	var raw []byte
	if len(result) > 0 {
		raw = []byte(result)
	}
	return s.exec(ctx, "complete", `
		UPDATE jobs
		SET state = 'completed', progress = 100, result = $2, failure_reason = '',
			finished_at = NOW(), updated_at = NOW()
		WHERE id = $1`, id, raw)
}

// Fail implements task.Store.Fail.
func (s *PostgresJobStore) Fail(ctx context.Context, id uuid.UUID, reason string) error {
	return s.exec(ctx, "fail", `
		UPDATE jobs
		SET state = 'failed', failure_reason = $2, finished_at = NOW(), updated_at = NOW()
		WHERE id = $1`, id, reason)
}

// RequeueStale implements task.Store.RequeueStale.
func (s *PostgresJobStore) RequeueStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET state = 'waiting', updated_at = NOW()
		WHERE state = 'active' AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, MapError(err)
	}
	return result.RowsAffected()
}

// CountByState implements task.Store.CountByState.
func (s *PostgresJobStore) CountByState(ctx context.Context) (map[string]map[task.State]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT type, state, COUNT(*) FROM jobs GROUP BY type, state`)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]map[task.State]int)
	for rows.Next() {
		var jobType string
		var state task.State
		var n int
		if err := rows.Scan(&jobType, &state, &n); err != nil {
			return nil, MapError(err)
		}
		if counts[jobType] == nil {
			counts[jobType] = make(map[task.State]int)
		}
		counts[jobType][state] = n
	}
	return counts, MapError(rows.Err())
}

// List implements task.Store.List.
func (s *PostgresJobStore) List(ctx context.Context, jobType string, state task.State, limit int) ([]*task.Job, error) {
	var where []string
	var args []any
	if jobType != "" {
		args = append(args, jobType)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if state != "" {
		args = append(args, state)
		where = append(where, fmt.Sprintf("state = $%d", len(args)))
	}
	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	jobs := []*task.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, MapError(err)
		}
		jobs = append(jobs, j)
	}
	return jobs, MapError(rows.Err())
}
