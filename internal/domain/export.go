package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExportStatus is the lifecycle state of a personal data export.
type ExportStatus string

const (
	ExportStatusPending    ExportStatus = "PENDING"
	ExportStatusProcessing ExportStatus = "PROCESSING"
	ExportStatusCompleted  ExportStatus = "COMPLETED"
	ExportStatusFailed     ExportStatus = "FAILED"
	ExportStatusExpired    ExportStatus = "EXPIRED"
	ExportStatusDownloaded ExportStatus = "DOWNLOADED"
)

// IsValid reports whether s is a known export status.
func (s ExportStatus) IsValid() bool {
	switch s {
	case ExportStatusPending, ExportStatusProcessing, ExportStatusCompleted,
		ExportStatusFailed, ExportStatusExpired, ExportStatusDownloaded:
		return true
	}
	return false
}

// IsActive reports whether the export is still being produced. A user may
// have at most one active export at a time.
func (s ExportStatus) IsActive() bool {
	return s == ExportStatusPending || s == ExportStatusProcessing
}

// ExportRequest tracks one user data export archive.
type ExportRequest struct {
	ID           uuid.UUID    `json:"id"`
	UserID       uuid.UUID    `json:"user_id"`
	Status       ExportStatus `json:"status"`
	FilePath     string       `json:"-"`
	FileSize     int64        `json:"file_size,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	ExpiresAt    time.Time    `json:"expires_at"`
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	DownloadedAt *time.Time   `json:"downloaded_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// ExportStaleMessage is stored on requests that never finished processing.
const ExportStaleMessage = "export did not finish; please request a new one"

// NewExportRequest creates a PENDING export that expires after ttl.
func NewExportRequest(userID uuid.UUID, ttl time.Duration) (*ExportRequest, error) {
	if userID == uuid.Nil {
		return nil, ErrEmptyUserID
	}
	now := time.Now().UTC()
	return &ExportRequest{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    ExportStatusPending,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}, nil
}

// IsExpired reports whether the archive is past its expiry at now.
func (e *ExportRequest) IsExpired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// IsDownloadable reports whether the archive exists and may be served.
func (e *ExportRequest) IsDownloadable() bool {
	return (e.Status == ExportStatusCompleted || e.Status == ExportStatusDownloaded) && e.FilePath != ""
}
