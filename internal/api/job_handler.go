package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/1001stories/stories-api/internal/api/shared"
	"github.com/1001stories/stories-api/internal/service"
	"github.com/1001stories/stories-api/internal/task"
)

// JobService reports background job status to the job's owner.
// *service.JobService implements it.
type JobService interface {
	Get(ctx context.Context, actor service.Actor, id uuid.UUID) (task.Status, error)
}

// JobHandler exposes background job status.
type JobHandler struct {
	jobs   JobService
	logger *slog.Logger
}

// NewJobHandler creates a JobHandler.
func NewJobHandler(jobs JobService, logger *slog.Logger) *JobHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for JobHandler")
	}
	return &JobHandler{
		jobs:   jobs,
		logger: logger.With(slog.String("component", "job_handler")),
	}
}

// Get handles GET /api/jobs/{id}.
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	status, err := h.jobs.Get(r.Context(), actor, id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load job status")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, status)
}
