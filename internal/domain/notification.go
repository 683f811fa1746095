package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NotificationType categorizes in-app notifications.
type NotificationType string

const (
	NotificationSubmissionStatus NotificationType = "SUBMISSION_STATUS"
	NotificationReviewReady      NotificationType = "REVIEW_READY"
	NotificationExportReady      NotificationType = "EXPORT_READY"
	NotificationSystem           NotificationType = "SYSTEM"
)

// Notification is an in-app message addressed to one user.
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewNotification creates an unread notification.
func NewNotification(userID uuid.UUID, typ NotificationType, title, message string) (*Notification, error) {
	if userID == uuid.Nil {
		return nil, ErrEmptyUserID
	}
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: notification title is required", ErrValidation)
	}
	return &Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}, nil
}
