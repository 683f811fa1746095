package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SubmissionStatus represents the publication state of a submission.
type SubmissionStatus string

const (
	SubmissionStatusSubmitted SubmissionStatus = "SUBMITTED"
	SubmissionStatusApproved  SubmissionStatus = "APPROVED"
	SubmissionStatusRejected  SubmissionStatus = "REJECTED"
	SubmissionStatusPublished SubmissionStatus = "PUBLISHED"
)

const (
	// MaxTitleLength caps submission titles in characters.
	MaxTitleLength = 200
	// MaxSubmissionLength caps submission bodies in characters.
	MaxSubmissionLength = 50000
)

// submissionTransitions lists the statuses reachable from each status.
var submissionTransitions = map[SubmissionStatus][]SubmissionStatus{
	SubmissionStatusSubmitted: {SubmissionStatusApproved, SubmissionStatusRejected},
	SubmissionStatusApproved:  {SubmissionStatusPublished},
}

// IsValid reports whether s is a known submission status.
func (s SubmissionStatus) IsValid() bool {
	switch s {
	case SubmissionStatusSubmitted, SubmissionStatusApproved,
		SubmissionStatusRejected, SubmissionStatusPublished:
		return true
	}
	return false
}

// CanTransitionTo reports whether a submission in status s may move to next.
func (s SubmissionStatus) CanTransitionTo(next SubmissionStatus) bool {
	for _, allowed := range submissionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Submission is user-authored text that goes through review and publication.
type Submission struct {
	ID        uuid.UUID        `json:"id"`
	AuthorID  uuid.UUID        `json:"author_id"`
	Title     string           `json:"title"`
	Content   string           `json:"content"`
	Language  string           `json:"language"`
	Status    SubmissionStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NewSubmission creates a submission in SUBMITTED status.
func NewSubmission(authorID uuid.UUID, title, content, language string) (*Submission, error) {
	now := time.Now().UTC()
	if language == "" {
		language = "en"
	}
	s := &Submission{
		ID:        uuid.New(),
		AuthorID:  authorID,
		Title:     strings.TrimSpace(title),
		Content:   content,
		Language:  language,
		Status:    SubmissionStatusSubmitted,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return s, nil
}

// Validate checks if the Submission has valid data.
func (s *Submission) Validate() error {
	if s.ID == uuid.Nil {
		return fmt.Errorf("%w: submission id", ErrInvalidID)
	}
	if s.AuthorID == uuid.Nil {
		return fmt.Errorf("%w: author id", ErrInvalidID)
	}
	if s.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if len([]rune(s.Title)) > MaxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", ErrValidation, MaxTitleLength)
	}
	if strings.TrimSpace(s.Content) == "" {
		return ErrEmptyContent
	}
	if len([]rune(s.Content)) > MaxSubmissionLength {
		return fmt.Errorf("%w: content exceeds %d characters", ErrValidation, MaxSubmissionLength)
	}
	if !s.Status.IsValid() {
		return ErrInvalidSubmissionStatus
	}
	return nil
}

// TransitionTo moves the submission to next, enforcing the publication workflow.
func (s *Submission) TransitionTo(next SubmissionStatus) error {
	if !next.IsValid() {
		return ErrInvalidSubmissionStatus
	}
	if !s.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, s.Status, next)
	}
	s.Status = next
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// WordCount returns the number of words in the submission body.
func (s *Submission) WordCount() int {
	return WordCount(s.Content)
}

// WordCount counts whitespace-delimited, non-empty tokens in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
