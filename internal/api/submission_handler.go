package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/1001stories/stories-api/internal/api/shared"
	"github.com/1001stories/stories-api/internal/domain"
	"github.com/1001stories/stories-api/internal/platform/logger"
	"github.com/1001stories/stories-api/internal/service"
)

// SubmissionService manages stories. *service.SubmissionService implements it.
type SubmissionService interface {
	Create(ctx context.Context, actor service.Actor, in service.CreateSubmissionInput) (*domain.Submission, error)
	Get(ctx context.Context, actor service.Actor, id uuid.UUID) (*domain.Submission, error)
	ListMine(ctx context.Context, actor service.Actor, limit, offset int) ([]*domain.Submission, error)
	ListPublished(ctx context.Context, limit, offset int) ([]*domain.Submission, error)
	UpdateStatus(ctx context.Context, actor service.Actor, id uuid.UUID, status domain.SubmissionStatus) (*domain.Submission, error)
}

// ReviewService queues and lists AI reviews. *service.ReviewService implements it.
type ReviewService interface {
	RequestReviews(ctx context.Context, actor service.Actor, submissionID uuid.UUID, types []domain.ReviewType) ([]uuid.UUID, error)
	ListReviews(ctx context.Context, actor service.Actor, submissionID uuid.UUID) ([]*domain.AIReview, error)
}

// SubmissionHandler handles story and review requests.
type SubmissionHandler struct {
	submissions SubmissionService
	reviews     ReviewService
	logger      *slog.Logger
}

// NewSubmissionHandler creates a SubmissionHandler.
func NewSubmissionHandler(submissions SubmissionService, reviews ReviewService, logger *slog.Logger) *SubmissionHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for SubmissionHandler")
	}
	return &SubmissionHandler{
		submissions: submissions,
		reviews:     reviews,
		logger:      logger.With(slog.String("component", "submission_handler")),
	}
}

// Create handles POST /api/submissions.
func (h *SubmissionHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	var req CreateSubmissionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	sub, err := h.submissions.Create(r.Context(), actor, service.CreateSubmissionInput{
		Title:    req.Title,
		Content:  req.Content,
		Language: req.Language,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create submission")
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Info("submission created",
		slog.String("submission_id", sub.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, sub)
}

// ListMine handles GET /api/submissions.
func (h *SubmissionHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)

	subs, err := h.submissions.ListMine(r.Context(), actor, limit, offset)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list submissions")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, listOf(subs))
}

// Library handles GET /api/library.
func (h *SubmissionHandler) Library(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	subs, err := h.submissions.ListPublished(r.Context(), limit, offset)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list library")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, listOf(subs))
}

// Get handles GET /api/submissions/{id}.
func (h *SubmissionHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	sub, err := h.submissions.Get(r.Context(), actor, id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load submission")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, sub)
}

// UpdateStatus handles PATCH /api/submissions/{id}/status.
func (h *SubmissionHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndPathUUID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	sub, err := h.submissions.UpdateStatus(r.Context(), actor, id, domain.SubmissionStatus(req.Status))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update submission status")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, sub)
}

// RequestReviews handles POST /api/submissions/{id}/reviews. Reviews run
// in the background; the response carries one job ID per type.
func (h *SubmissionHandler) RequestReviews(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndPathUUID(w, r, "id")
	if !ok {
		return
	}
	var req RequestReviewsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	types := make([]domain.ReviewType, len(req.Types))
	for i, t := range req.Types {
		types[i] = domain.ReviewType(t)
	}

	jobIDs, err := h.reviews.RequestReviews(r.Context(), actor, id, types)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to queue reviews")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusAccepted, RequestReviewsResponse{JobIDs: jobIDs})
}

// ListReviews handles GET /api/submissions/{id}/reviews.
func (h *SubmissionHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	reviews, err := h.reviews.ListReviews(r.Context(), actor, id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list reviews")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, listOf(reviews))
}
