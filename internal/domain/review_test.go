package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewAIReview(t *testing.T) {
	t.Parallel()

	submissionID := uuid.New()
	score := 87

	review, err := NewAIReview(
		submissionID,
		ReviewTypeGrammar,
		ReviewStatusCompleted,
		json.RawMessage(`{"grammarIssues":[]}`),
		&score,
		[]string{"Vary sentence length"},
		"gemini-2.0-flash",
		1500*time.Millisecond,
	)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if review.ID == uuid.Nil {
		t.Error("Expected non-nil review ID")
	}
	if review.ProcessingTimeMs != 1500 {
		t.Errorf("Expected processing time 1500ms, got %d", review.ProcessingTimeMs)
	}

	review, err = NewAIReview(submissionID, ReviewTypeStructure, ReviewStatusFailed, nil, nil, nil, "", 0)
	if err != nil {
		t.Fatalf("Expected no error for empty payload, got %v", err)
	}
	if string(review.Feedback) != "{}" {
		t.Errorf("Expected empty JSON object feedback, got %s", review.Feedback)
	}
	if review.Suggestions == nil {
		t.Error("Expected non-nil suggestions slice")
	}
}

func TestAIReviewValidate(t *testing.T) {
	t.Parallel()

	bad := 101
	valid := AIReview{
		ID:           uuid.New(),
		SubmissionID: uuid.New(),
		Type:         ReviewTypeWritingHelp,
		Status:       ReviewStatusCompleted,
		Feedback:     json.RawMessage(`{}`),
	}

	if err := valid.Validate(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	r := valid
	r.Type = "SPELLING"
	if err := r.Validate(); err != ErrInvalidReviewType {
		t.Errorf("Expected %v, got %v", ErrInvalidReviewType, err)
	}

	r = valid
	r.Score = &bad
	if err := r.Validate(); err != ErrInvalidScore {
		t.Errorf("Expected %v, got %v", ErrInvalidScore, err)
	}

	r = valid
	r.Status = "DONE"
	if err := r.Validate(); err != ErrInvalidReviewStatus {
		t.Errorf("Expected %v, got %v", ErrInvalidReviewStatus, err)
	}

	r = valid
	r.Feedback = json.RawMessage(`{not json`)
	if err := r.Validate(); err == nil {
		t.Error("Expected error for invalid feedback JSON")
	}
}
