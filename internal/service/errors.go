package service

import "errors"

// Common service errors. The API layer maps these to HTTP status codes.
var (
	// ErrForbidden indicates the caller's role or ownership does not allow
	// the operation. Maps to 403.
	ErrForbidden = errors.New("operation not permitted")

	// ErrAccountDeleted indicates the account is soft-deleted and can only
	// be restored. Maps to 403.
	ErrAccountDeleted = errors.New("account has been deleted")

	// ErrNotRecoverable indicates the account has no deletion request, or
	// its recovery deadline has passed. Maps to 409.
	ErrNotRecoverable = errors.New("account cannot be restored")

	// ErrAlreadyDeleted indicates a deletion request is already pending.
	// Maps to 409.
	ErrAlreadyDeleted = errors.New("account deletion already requested")
)
