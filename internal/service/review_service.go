package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/1001stories/stories-api/internal/ai"
	"github.com/1001stories/stories-api/internal/domain"
	"github.com/1001stories/stories-api/internal/platform/logger"
	"github.com/1001stories/stories-api/internal/store"
	"github.com/1001stories/stories-api/internal/task"
)

// Reviewer produces AI reviews. *ai.Service implements it.
type Reviewer interface {
	Review(ctx context.Context, reviewType domain.ReviewType, text, lang string) (ai.Outcome[ai.ReviewResult], error)
}

// ReviewJobPayload is the payload of an ai-review job.
type ReviewJobPayload struct {
	SubmissionID uuid.UUID         `json:"submissionId"`
	ReviewType   domain.ReviewType `json:"reviewType"`
}

// ReviewJobResult is stored on a completed ai-review job.
type ReviewJobResult struct {
	ReviewID uuid.UUID           `json:"reviewId"`
	Status   domain.ReviewStatus `json:"status"`
}

var reviewPriority = map[domain.ReviewType]int{
	domain.ReviewTypeGrammar:     1,
	domain.ReviewTypeStructure:   2,
	domain.ReviewTypeWritingHelp: 3,
}

// ReviewService queues AI reviews of submissions and records their
// outcomes. Recording is additive: every completed job inserts a new row,
// so a redelivered job leaves two rows for the same review type.
type ReviewService struct {
	submissions *SubmissionService
	reviews     store.ReviewStore
	reviewer    Reviewer
	jobs        task.Enqueuer
	notifier    Notifier
	logger      *slog.Logger
}

// NewReviewService creates a ReviewService.
func NewReviewService(
	submissions *SubmissionService,
	reviews store.ReviewStore,
	reviewer Reviewer,
	jobs task.Enqueuer,
	notifier Notifier,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		submissions: submissions,
		reviews:     reviews,
		reviewer:    reviewer,
		jobs:        jobs,
		notifier:    notifier,
		logger:      componentLogger(logger, "review_service"),
	}
}

// RequestReviews enqueues one ai-review job per requested type and returns
// the job IDs in the same order.
func (s *ReviewService) RequestReviews(
	ctx context.Context,
	actor Actor,
	submissionID uuid.UUID,
	types []domain.ReviewType,
) ([]uuid.UUID, error) {
	if len(types) == 0 {
		return nil, fmt.Errorf("%w: at least one review type is required", domain.ErrValidation)
	}
	for _, t := range types {
		if !t.IsValid() {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidReviewType, t)
		}
	}
	if _, err := s.submissions.getManaged(ctx, actor, submissionID); err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(types))
	for _, t := range types {
		id, err := s.jobs.Enqueue(ctx, task.TypeAIReview,
			ReviewJobPayload{SubmissionID: submissionID, ReviewType: t}, reviewPriority[t])
		if err != nil {
			return ids, fmt.Errorf("failed to enqueue %s review: %w", t, err)
		}
		ids = append(ids, id)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("reviews requested",
		slog.String("submission_id", submissionID.String()),
		slog.Int("count", len(ids)))
	return ids, nil
}

// ListReviews returns a submission's reviews, newest first.
func (s *ReviewService) ListReviews(ctx context.Context, actor Actor, submissionID uuid.UUID) ([]*domain.AIReview, error) {
	if _, err := s.submissions.getManaged(ctx, actor, submissionID); err != nil {
		return nil, err
	}
	return s.reviews.ListBySubmission(ctx, submissionID)
}

// RecordReview inserts one review row for outcome. Improvements whose text
// is located in the submission become annotations, and only those carry
// over as suggestions. A degraded outcome is recorded as FAILED with the
// fallback message as its only suggestion.
func (s *ReviewService) RecordReview(
	ctx context.Context,
	sub *domain.Submission,
	reviewType domain.ReviewType,
	outcome ai.Outcome[ai.ReviewResult],
	processingTime time.Duration,
) (*domain.AIReview, error) {
	var (
		review *domain.AIReview
		err    error
	)
	if outcome.OK() {
		result := outcome.Data()
		annotations, suggestions := annotate(sub.Content, reviewType, result.Improvements)
		if skipped := countAnnotatable(result.Improvements) - len(annotations); skipped > 0 {
			logger.FromContextOrDefault(ctx, s.logger).Debug("review text not located in submission",
				slog.String("submission_id", sub.ID.String()),
				slog.Int("skipped", skipped))
		}
		review, err = domain.NewAIReview(sub.ID, reviewType, domain.ReviewStatusCompleted,
			result.Feedback(), result.Score, suggestions, result.Model, processingTime)
		if err == nil {
			review.Annotations = annotations
		}
	} else {
		feedback, _ := json.Marshal(map[string]string{"error": outcome.FallbackMessage()})
		review, err = domain.NewAIReview(sub.ID, reviewType, domain.ReviewStatusFailed,
			feedback, nil, []string{outcome.FallbackMessage()}, "", processingTime)
	}
	if err != nil {
		return nil, err
	}

	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, fmt.Errorf("failed to record review: %w", err)
	}
	return review, nil
}

func annotate(content string, reviewType domain.ReviewType, improvements []ai.Improvement) ([]domain.Annotation, []string) {
	annotations := []domain.Annotation{}
	suggestions := []string{}
	locator := domain.NewTextLocator(content)
	for _, imp := range improvements {
		if imp.Text == "" || imp.Suggestion == "" {
			continue
		}
		start, end, ok := locator.Find(imp.Text)
		if !ok {
			continue
		}
		annotations = append(annotations, domain.Annotation{
			SuggestionIndex: len(suggestions),
			HighlightedText: imp.Text,
			StartOffset:     start,
			EndOffset:       end,
			SuggestionType:  reviewType,
			Color:           reviewType.Color(),
		})
		suggestions = append(suggestions, imp.Suggestion)
	}
	return annotations, suggestions
}

func countAnnotatable(improvements []ai.Improvement) int {
	n := 0
	for _, imp := range improvements {
		if imp.Text != "" && imp.Suggestion != "" {
			n++
		}
	}
	return n
}

// HandleReviewJob is the task.Handler for ai-review jobs.
func (s *ReviewService) HandleReviewJob(ctx context.Context, job *task.Job, progress task.ProgressFunc) (json.RawMessage, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var payload ReviewJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("invalid review job payload: %w", err)
	}

	sub, err := s.submissions.submissions.GetByID(ctx, payload.SubmissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load submission: %w", err)
	}
	progress(10)

	start := time.Now()
	outcome, err := s.reviewer.Review(ctx, payload.ReviewType, sub.Content, sub.Language)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	progress(80)

	review, err := s.RecordReview(ctx, sub, payload.ReviewType, outcome, elapsed)
	if err != nil {
		return nil, err
	}

	if outcome.OK() {
		_, err := s.notifier.Notify(ctx, sub.AuthorID, domain.NotificationReviewReady,
			T("notification.review.title"),
			T("notification.review.message", string(payload.ReviewType), sub.Title))
		if err != nil {
			log.Warn("failed to notify author of review",
				slog.String("review_id", review.ID.String()),
				slog.String("error", err.Error()))
		}
	}

	log.Info("review recorded",
		slog.String("review_id", review.ID.String()),
		slog.String("status", string(review.Status)),
		slog.Duration("duration", elapsed))
	return json.Marshal(ReviewJobResult{ReviewID: review.ID, Status: review.Status})
}
