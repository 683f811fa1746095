package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeletionStatus tracks an account deletion through its grace period.
type DeletionStatus string

const (
	DeletionStatusSoftDeleted DeletionStatus = "SOFT_DELETED"
	DeletionStatusCancelled   DeletionStatus = "CANCELLED"
	DeletionStatusHardDeleted DeletionStatus = "HARD_DELETED"
)

// DeletionRequest records a soft-deleted account awaiting hard deletion.
// UserID is kept after the user row is gone so the audit trail survives.
type DeletionRequest struct {
	ID               uuid.UUID      `json:"id"`
	UserID           uuid.UUID      `json:"user_id"`
	Status           DeletionStatus `json:"status"`
	RecoveryDeadline time.Time      `json:"recovery_deadline"`
	SoftDeletedAt    time.Time      `json:"soft_deleted_at"`
	HardDeletedAt    *time.Time     `json:"hard_deleted_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// NewDeletionRequest soft-deletes userID now, recoverable for grace.
func NewDeletionRequest(userID uuid.UUID, grace time.Duration) (*DeletionRequest, error) {
	if userID == uuid.Nil {
		return nil, ErrEmptyUserID
	}
	now := time.Now().UTC()
	return &DeletionRequest{
		ID:               uuid.New(),
		UserID:           userID,
		Status:           DeletionStatusSoftDeleted,
		RecoveryDeadline: now.Add(grace),
		SoftDeletedAt:    now,
		CreatedAt:        now,
	}, nil
}

// IsRecoverable reports whether the account can still be restored at now.
func (d *DeletionRequest) IsRecoverable(now time.Time) bool {
	return d.Status == DeletionStatusSoftDeleted && now.Before(d.RecoveryDeadline)
}

// CleanupLog is the audit row written by each retention task.
type CleanupLog struct {
	ID               uuid.UUID  `json:"id"`
	Task             string     `json:"task"`
	RecordsProcessed int        `json:"records_processed"`
	RecordsDeleted   int        `json:"records_deleted"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}
