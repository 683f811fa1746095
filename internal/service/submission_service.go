package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/1001stories/stories-api/internal/domain"
	"github.com/1001stories/stories-api/internal/platform/logger"
	"github.com/1001stories/stories-api/internal/store"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID uuid.UUID
	Role   domain.Role
}

// IsAdmin reports whether the actor is an administrator.
func (a Actor) IsAdmin() bool { return a.Role == domain.RoleAdmin }

// Notifier creates user notifications. *NotificationService implements it.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, typ domain.NotificationType, title, message Text) (*domain.Notification, error)
}

// CreateSubmissionInput carries the fields of a new story.
type CreateSubmissionInput struct {
	Title    string
	Content  string
	Language string
}

// SubmissionService manages stories and their review workflow.
type SubmissionService struct {
	submissions store.SubmissionStore
	notifier    Notifier
	logger      *slog.Logger
}

// NewSubmissionService creates a SubmissionService.
func NewSubmissionService(submissions store.SubmissionStore, notifier Notifier, logger *slog.Logger) *SubmissionService {
	return &SubmissionService{
		submissions: submissions,
		notifier:    notifier,
		logger:      componentLogger(logger, "submission_service"),
	}
}

// Create stores a new story in SUBMITTED status. Only writers and
// administrators submit stories.
func (s *SubmissionService) Create(ctx context.Context, actor Actor, in CreateSubmissionInput) (*domain.Submission, error) {
	if actor.Role != domain.RoleWriter && !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	sub, err := domain.NewSubmission(actor.UserID, in.Title, in.Content, in.Language)
	if err != nil {
		return nil, err
	}
	if err := s.submissions.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("submission created",
		slog.String("submission_id", sub.ID.String()),
		slog.Int("words", sub.WordCount()))
	return sub, nil
}

// Get returns a submission the actor may read: their own, any submission
// for administrators, and published stories for everyone.
func (s *SubmissionService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*domain.Submission, error) {
	sub, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status == domain.SubmissionStatusPublished || canManage(actor, sub) {
		return sub, nil
	}
	return nil, ErrForbidden
}

// getManaged returns a submission the actor owns or administers.
func (s *SubmissionService) getManaged(ctx context.Context, actor Actor, id uuid.UUID) (*domain.Submission, error) {
	sub, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, sub) {
		return nil, ErrForbidden
	}
	return sub, nil
}

func canManage(actor Actor, sub *domain.Submission) bool {
	return actor.IsAdmin() || sub.AuthorID == actor.UserID
}

// ListMine returns the actor's own submissions, newest first.
func (s *SubmissionService) ListMine(ctx context.Context, actor Actor, limit, offset int) ([]*domain.Submission, error) {
	return s.submissions.ListByAuthor(ctx, actor.UserID, clampLimit(limit), max(offset, 0))
}

// ListPublished returns the public library, newest first.
func (s *SubmissionService) ListPublished(ctx context.Context, limit, offset int) ([]*domain.Submission, error) {
	return s.submissions.ListByStatus(ctx, domain.SubmissionStatusPublished, clampLimit(limit), max(offset, 0))
}

// UpdateStatus moves a submission through the review workflow and tells
// the author. Only administrators change status.
func (s *SubmissionService) UpdateStatus(
	ctx context.Context,
	actor Actor,
	id uuid.UUID,
	status domain.SubmissionStatus,
) (*domain.Submission, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	log := logger.FromContextOrDefault(ctx, s.logger)

	sub, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := sub.Status
	if err := sub.TransitionTo(status); err != nil {
		return nil, err
	}
	if err := s.submissions.UpdateStatus(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to update submission status: %w", err)
	}

	log.Info("submission status changed",
		slog.String("submission_id", sub.ID.String()),
		slog.String("from", string(previous)),
		slog.String("to", string(status)))

	_, err = s.notifier.Notify(ctx, sub.AuthorID, domain.NotificationSubmissionStatus,
		T("notification.status.title", sub.Title),
		T("notification.status."+string(status)))
	if err != nil {
		log.Error("failed to notify author of status change",
			slog.String("submission_id", sub.ID.String()),
			slog.String("error", err.Error()))
	}
	return sub, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}

func componentLogger(l *slog.Logger, component string) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With(slog.String("component", component))
}
