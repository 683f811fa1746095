package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReviewType identifies which AI pass produced a review.
type ReviewType string

const (
	ReviewTypeGrammar     ReviewType = "GRAMMAR"
	ReviewTypeStructure   ReviewType = "STRUCTURE"
	ReviewTypeWritingHelp ReviewType = "WRITING_HELP"
)

// IsValid reports whether t is a known review type.
func (t ReviewType) IsValid() bool {
	switch t {
	case ReviewTypeGrammar, ReviewTypeStructure, ReviewTypeWritingHelp:
		return true
	}
	return false
}

// ReviewStatus is the outcome state of an AI review.
type ReviewStatus string

const (
	ReviewStatusPending   ReviewStatus = "PENDING"
	ReviewStatusCompleted ReviewStatus = "COMPLETED"
	ReviewStatusFailed    ReviewStatus = "FAILED"
)

// IsValid reports whether s is a known review status.
func (s ReviewStatus) IsValid() bool {
	switch s {
	case ReviewStatusPending, ReviewStatusCompleted, ReviewStatusFailed:
		return true
	}
	return false
}

// AIReview is the result of one AI pass over a submission. Reviews are
// immutable once written and several may exist per submission and type.
type AIReview struct {
	ID               uuid.UUID       `json:"id"`
	SubmissionID     uuid.UUID       `json:"submission_id"`
	Type             ReviewType      `json:"review_type"`
	Feedback         json.RawMessage `json:"feedback"`
	Score            *int            `json:"score,omitempty"`
	Suggestions      []string        `json:"suggestions"`
	Annotations      []Annotation    `json:"annotations"`
	Status           ReviewStatus    `json:"status"`
	Model            string          `json:"model"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
	CreatedAt        time.Time       `json:"created_at"`
}

// NewAIReview builds a review row for submissionID. A nil feedback payload is
// stored as an empty JSON object.
func NewAIReview(
	submissionID uuid.UUID,
	reviewType ReviewType,
	status ReviewStatus,
	feedback json.RawMessage,
	score *int,
	suggestions []string,
	model string,
	processingTime time.Duration,
) (*AIReview, error) {
	if len(feedback) == 0 {
		feedback = json.RawMessage(`{}`)
	}
	if suggestions == nil {
		suggestions = []string{}
	}

	r := &AIReview{
		ID:               uuid.New(),
		SubmissionID:     submissionID,
		Type:             reviewType,
		Feedback:         feedback,
		Score:            score,
		Suggestions:      suggestions,
		Annotations:      []Annotation{},
		Status:           status,
		Model:            model,
		ProcessingTimeMs: processingTime.Milliseconds(),
		CreatedAt:        time.Now().UTC(),
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks if the AIReview has valid data.
func (r *AIReview) Validate() error {
	if r.ID == uuid.Nil {
		return fmt.Errorf("%w: review id", ErrInvalidID)
	}
	if r.SubmissionID == uuid.Nil {
		return fmt.Errorf("%w: submission id", ErrInvalidID)
	}
	if !r.Type.IsValid() {
		return ErrInvalidReviewType
	}
	if !r.Status.IsValid() {
		return ErrInvalidReviewStatus
	}
	if r.Score != nil && (*r.Score < 0 || *r.Score > 100) {
		return ErrInvalidScore
	}
	if !json.Valid(r.Feedback) {
		return fmt.Errorf("%w: feedback is not valid JSON", ErrValidation)
	}
	if r.ProcessingTimeMs < 0 {
		return fmt.Errorf("%w: negative processing time", ErrValidation)
	}
	for _, a := range r.Annotations {
		if a.StartOffset < 0 || a.EndOffset <= a.StartOffset || a.SuggestionIndex < 0 {
			return fmt.Errorf("%w: invalid annotation span", ErrValidation)
		}
	}
	return nil
}
