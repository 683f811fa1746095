package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/1001stories/stories-api/internal/redact"
	"github.com/1001stories/stories-api/internal/store"
	"github.com/1001stories/stories-api/internal/task"
)

// JobFailedMessage replaces a failed job's reason for everyone but admins.
const JobFailedMessage = "the job could not be completed; please try again"

// JobStatusReader reports background job status. *task.Queue implements it.
type JobStatusReader interface {
	GetStatus(ctx context.Context, id uuid.UUID) (task.Status, error)
}

// JobService shows background job status to the users the job works for.
type JobService struct {
	jobs        JobStatusReader
	submissions *SubmissionService
	logger      *slog.Logger
}

// NewJobService creates a JobService.
func NewJobService(jobs JobStatusReader, submissions *SubmissionService, logger *slog.Logger) *JobService {
	return &JobService{
		jobs:        jobs,
		submissions: submissions,
		logger:      componentLogger(logger, "job_service"),
	}
}

// Get returns the status of job id. Review jobs are visible to the
// submission's author, email jobs to their recipient, and every job to
// admins. Jobs the actor may not see are reported as not found.
func (s *JobService) Get(ctx context.Context, actor Actor, id uuid.UUID) (task.Status, error) {
	status, err := s.jobs.GetStatus(ctx, id)
	if err != nil {
		return task.Status{}, err
	}

	if actor.IsAdmin() {
		status.FailureReason = redact.String(status.FailureReason)
		return status, nil
	}

	owned, err := s.ownedBy(ctx, actor, status)
	if err != nil {
		return task.Status{}, err
	}
	if !owned {
		return task.Status{}, store.ErrJobNotFound
	}
	if status.FailureReason != "" {
		status.FailureReason = JobFailedMessage
	}
	return status, nil
}

func (s *JobService) ownedBy(ctx context.Context, actor Actor, status task.Status) (bool, error) {
	switch status.Type {
	case task.TypeAIReview:
		var payload ReviewJobPayload
		if err := json.Unmarshal(status.Payload, &payload); err != nil {
			s.logger.Warn("unreadable job payload", slog.String("job_id", status.ID.String()))
			return false, nil
		}
		_, err := s.submissions.getManaged(ctx, actor, payload.SubmissionID)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, ErrForbidden), errors.Is(err, store.ErrSubmissionNotFound):
			return false, nil
		}
		return false, err
	case task.TypeEmailNotifications:
		var payload EmailJobPayload
		if err := json.Unmarshal(status.Payload, &payload); err != nil {
			s.logger.Warn("unreadable job payload", slog.String("job_id", status.ID.String()))
			return false, nil
		}
		return payload.UserID == actor.UserID, nil
	}
	return false, nil
}
