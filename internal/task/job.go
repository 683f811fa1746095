package task

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Job types handled by the platform.
const (
	TypeAIReview           = "ai-review"
	TypeEmailNotifications = "email-notifications"
)

// Common errors returned by the Queue.
var (
	ErrUnknownJobType = errors.New("unknown job type")
	ErrQueueClosed    = errors.New("job queue is closed")
)

// State is the lifecycle state of a job.
type State string

const (
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Job is one unit of persisted background work.
type Job struct {
	ID            uuid.UUID
	Type          string
	Payload       json.RawMessage
	Priority      int // lower is served first
	State         State
	Progress      int
	Result        json.RawMessage
	FailureReason string
	Attempts      int
	CreatedAt     time.Time
	UpdatedAt     time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
}

// Status is the externally visible view of a job.
type Status struct {
	ID            uuid.UUID       `json:"id"`
	Type          string          `json:"type"`
	Payload       json.RawMessage `json:"-"`
	State         State           `json:"state"`
	Progress      int             `json:"progress"`
	Result        json.RawMessage `json:"result,omitempty"`
	FailureReason string          `json:"failureReason,omitempty"`
	Attempts      int             `json:"attempts"`
	CreatedAt     time.Time       `json:"createdAt"`
	FinishedAt    *time.Time      `json:"finishedAt,omitempty"`
}

// Status returns the job's externally visible status.
func (j *Job) Status() Status {
	return Status{
		ID:            j.ID,
		Type:          j.Type,
		Payload:       j.Payload,
		State:         j.State,
		Progress:      j.Progress,
		Result:        j.Result,
		FailureReason: j.FailureReason,
		Attempts:      j.Attempts,
		CreatedAt:     j.CreatedAt,
		FinishedAt:    j.FinishedAt,
	}
}

// ProgressFunc reports handler progress as a percentage.
type ProgressFunc func(percent int)

// Handler processes one job. The returned result is stored on success; an
// error marks the job failed with err.Error() as the reason.
type Handler func(ctx context.Context, job *Job, progress ProgressFunc) (json.RawMessage, error)

// Enqueuer submits jobs. *Queue implements it.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload any, priority int) (uuid.UUID, error)
}

// Store persists jobs. Implementations must make ClaimNext safe for
// concurrent callers: a waiting job is handed to exactly one claimer.
type Store interface {
	// Insert persists a new waiting job.
	Insert(ctx context.Context, job *Job) error

	// Get returns store.ErrJobNotFound if the job does not exist.
	Get(ctx context.Context, id uuid.UUID) (*Job, error)

	// ClaimNext moves the next waiting job of jobType to active, ordered by
	// priority then creation time, and returns it. It returns nil, nil when
	// nothing is waiting.
	ClaimNext(ctx context.Context, jobType string) (*Job, error)

	UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error
	Complete(ctx context.Context, id uuid.UUID, result json.RawMessage) error
	Fail(ctx context.Context, id uuid.UUID, reason string) error

	// RequeueStale returns active jobs last updated before cutoff to waiting.
	RequeueStale(ctx context.Context, cutoff time.Time) (int64, error)

	// CountByState returns job counts keyed by type then state.
	CountByState(ctx context.Context) (map[string]map[State]int, error)

	// List returns jobs of jobType, optionally filtered by state, newest first.
	// An empty jobType or state matches everything.
	List(ctx context.Context, jobType string, state State, limit int) ([]*Job, error)
}
