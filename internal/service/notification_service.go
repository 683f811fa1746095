package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/1001stories/stories-api/internal/domain"
	"github.com/1001stories/stories-api/internal/i18n"
	"github.com/1001stories/stories-api/internal/platform/logger"
	"github.com/1001stories/stories-api/internal/platform/mail"
	"github.com/1001stories/stories-api/internal/store"
	"github.com/1001stories/stories-api/internal/task"
)

// emailJobPriority places notification emails behind interactive work.
const emailJobPriority = 5

// Text is a localizable message: a catalog key plus format arguments.
type Text struct {
	Key  string
	Args []any
}

// T is shorthand for building a Text.
func T(key string, args ...any) Text {
	return Text{Key: key, Args: args}
}

// EmailJobPayload is the payload of an email-notifications job.
type EmailJobPayload struct {
	UserID  uuid.UUID `json:"userId"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
}

// EmailJobResult is stored on a completed email-notifications job.
type EmailJobResult struct {
	Sent    bool   `json:"sent"`
	Skipped string `json:"skipped,omitempty"`
}

// NotificationService creates in-app notifications and delivers their
// email copies through the job queue.
type NotificationService struct {
	notifications store.NotificationStore
	users         store.UserStore
	jobs          task.Enqueuer
	sender        mail.Sender
	catalog       *i18n.Catalog
	logger        *slog.Logger
}

// NewNotificationService creates a NotificationService.
func NewNotificationService(
	notifications store.NotificationStore,
	users store.UserStore,
	jobs task.Enqueuer,
	sender mail.Sender,
	catalog *i18n.Catalog,
	logger *slog.Logger,
) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		users:         users,
		jobs:          jobs,
		sender:        sender,
		catalog:       catalog,
		logger:        componentLogger(logger, "notification_service"),
	}
}

// Notify stores a notification for userID, localized to the user's
// language, and enqueues an email copy when the user opted into immediate
// emails. Users on a digest schedule get it in their next digest instead.
func (s *NotificationService) Notify(
	ctx context.Context,
	userID uuid.UUID,
	typ domain.NotificationType,
	title, message Text,
) (*domain.Notification, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load notification recipient: %w", err)
	}

	n, err := domain.NewNotification(userID, typ,
		s.catalog.T(user.Language, title.Key, title.Args...),
		s.catalog.T(user.Language, message.Key, message.Args...))
	if err != nil {
		return nil, err
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to save notification: %w", err)
	}

	if user.EmailNotifications && user.DeletedAt == nil &&
		(user.DigestFrequency == "" || user.DigestFrequency == domain.DigestNone) {
		payload := EmailJobPayload{UserID: userID, Title: n.Title, Message: n.Message}
		if _, err := s.jobs.Enqueue(ctx, task.TypeEmailNotifications, payload, emailJobPriority); err != nil {
			// The in-app notification stands on its own.
			log.Error("failed to enqueue notification email",
				slog.String("notification_id", n.ID.String()),
				slog.String("error", err.Error()))
		}
	}

	log.Debug("notification created",
		slog.String("notification_id", n.ID.String()),
		slog.String("type", string(typ)))
	return n, nil
}

// List returns the user's most recent notifications.
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.notifications.ListByUser(ctx, userID, limit)
}

// MarkRead marks one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.notifications.MarkRead(ctx, userID, id, time.Now().UTC())
}

// HandleEmailJob is the task.Handler for email-notifications jobs.
func (s *NotificationService) HandleEmailJob(ctx context.Context, job *task.Job, progress task.ProgressFunc) (json.RawMessage, error) {
	var payload EmailJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("invalid email job payload: %w", err)
	}

	user, err := s.users.GetByID(ctx, payload.UserID)
	if errors.Is(err, store.ErrUserNotFound) {
		return json.Marshal(EmailJobResult{Skipped: "user not found"})
	}
	if err != nil {
		return nil, err
	}
	if user.DeletedAt != nil || !user.EmailNotifications {
		return json.Marshal(EmailJobResult{Skipped: "email notifications disabled"})
	}
	progress(50)

	lang := user.Language
	body := strings.Join([]string{
		payload.Message,
		"",
		"-- ",
		s.catalog.T(lang, "email.signature"),
	}, "\n")

	err = s.sender.Send(ctx, mail.Message{
		To:      user.Email,
		ToName:  user.Name,
		Subject: s.catalog.T(lang, "email.notification.subject", payload.Title),
		Text:    body,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(EmailJobResult{Sent: true})
}
