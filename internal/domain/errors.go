package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// It is usually wrapped with the name of the offending field.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is missing or malformed.
	ErrInvalidID = errors.New("invalid ID")

	// ErrEmptyContent is returned when required text content is empty or whitespace.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidRole is returned for a role outside the known set.
	ErrInvalidRole = errors.New("invalid role")

	// ErrInvalidSubmissionStatus is returned for an unknown submission status.
	ErrInvalidSubmissionStatus = errors.New("invalid submission status")

	// ErrInvalidStatusTransition is returned when a submission cannot move to
	// the requested status from its current one.
	ErrInvalidStatusTransition = errors.New("invalid submission status transition")

	// ErrInvalidReviewType is returned for an unknown AI review type.
	ErrInvalidReviewType = errors.New("invalid review type")

	// ErrInvalidReviewStatus is returned for an unknown AI review status.
	ErrInvalidReviewStatus = errors.New("invalid review status")

	// ErrInvalidScore is returned when a review score falls outside 0..100.
	ErrInvalidScore = errors.New("score must be between 0 and 100")

	// ErrInvalidExportStatus is returned for an unknown export request status.
	ErrInvalidExportStatus = errors.New("invalid export status")

	// ErrInvalidDigestFrequency is returned for an unknown digest frequency.
	ErrInvalidDigestFrequency = errors.New("invalid digest frequency")
)
