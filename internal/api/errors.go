package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/1001stories/stories-api/internal/ai"
	"github.com/1001stories/stories-api/internal/api/shared"
	"github.com/1001stories/stories-api/internal/domain"
	"github.com/1001stories/stories-api/internal/export"
	"github.com/1001stories/stories-api/internal/service"
	"github.com/1001stories/stories-api/internal/service/auth"
	"github.com/1001stories/stories-api/internal/store"
)

// validationErrors are the sentinels whose text is safe to show clients.
var validationErrors = []error{
	ai.ErrEmptyInput,
	ai.ErrInputTooLong,
	ai.ErrInvalidVoice,
	ai.ErrInvalidAgeBand,
	domain.ErrEmptyContent,
	domain.ErrInvalidID,
	domain.ErrInvalidRole,
	domain.ErrInvalidSubmissionStatus,
	domain.ErrInvalidReviewType,
	domain.ErrInvalidDigestFrequency,
	domain.ErrInvalidEmail,
	domain.ErrEmptyEmail,
	domain.ErrPasswordTooShort,
	domain.ErrPasswordTooLong,
	domain.ErrEmptyPassword,
	domain.ErrValidation,
	shared.ErrEmptyBody,
}

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types to clients.
func MapErrorToStatusCode(err error) int {
	var verrs validator.ValidationErrors

	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidRefreshToken),
		errors.Is(err, auth.ErrExpiredRefreshToken),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized

	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrAccountDeleted):
		return http.StatusForbidden

	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, store.ErrDuplicate),
		errors.Is(err, export.ErrExportInProgress),
		errors.Is(err, export.ErrNotReady),
		errors.Is(err, domain.ErrInvalidStatusTransition),
		errors.Is(err, service.ErrAlreadyDeleted),
		errors.Is(err, service.ErrNotRecoverable):
		return http.StatusConflict

	case errors.Is(err, export.ErrExportExpired):
		return http.StatusGone

	case errors.Is(err, export.ErrRateLimited):
		return http.StatusTooManyRequests

	case errors.Is(err, export.ErrClosed):
		return http.StatusServiceUnavailable

	case errors.As(err, &verrs), errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest
	}

	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

// GetSafeErrorMessage returns a client-facing message for err. Validation
// failures keep their detail; everything else gets a fixed message.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrWrongTokenType):
		return "Invalid token"
	case errors.Is(err, auth.ErrInvalidRefreshToken),
		errors.Is(err, auth.ErrExpiredRefreshToken):
		return "Invalid refresh token"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Invalid credentials"

	case errors.Is(err, service.ErrAccountDeleted):
		return "This account has been deleted. Restore it to continue."
	case errors.Is(err, service.ErrForbidden):
		return "You do not have permission to perform this action"

	case errors.Is(err, store.ErrUserNotFound):
		return "User not found"
	case errors.Is(err, store.ErrSubmissionNotFound):
		return "Submission not found"
	case errors.Is(err, store.ErrNotificationNotFound):
		return "Notification not found"
	case errors.Is(err, store.ErrExportNotFound):
		return "Export request not found"
	case errors.Is(err, store.ErrJobNotFound):
		return "Job not found"
	case errors.Is(err, store.ErrNotFound):
		return "Not found"

	case errors.Is(err, store.ErrEmailExists):
		return "Email already exists"
	case errors.Is(err, export.ErrExportInProgress), errors.Is(err, store.ErrActiveExportExists):
		return "An export request is already in progress"
	case errors.Is(err, export.ErrNotReady):
		return "Export is not ready for download"
	case errors.Is(err, domain.ErrInvalidStatusTransition):
		return "The submission cannot move to that status"
	case errors.Is(err, service.ErrAlreadyDeleted):
		return "Account deletion has already been requested"
	case errors.Is(err, service.ErrNotRecoverable):
		return "This account can no longer be restored"

	case errors.Is(err, export.ErrExportExpired):
		return "This export has expired. Please request a new one."
	case errors.Is(err, export.ErrRateLimited):
		return "Too many export requests. Please try again later."
	case errors.Is(err, export.ErrClosed):
		return "Service is shutting down. Please try again shortly."

	case errors.As(err, &verrs):
		return SanitizeValidationError(err)
	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"
	}

	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return validationDetail(err, v)
		}
	}
	return "An unexpected error occurred"
}

// validationDetail trims wrapping context from err so the message starts at
// the sentinel's own text.
func validationDetail(err, sentinel error) string {
	msg, base := err.Error(), sentinel.Error()
	if i := strings.Index(msg, base); i >= 0 {
		return msg[i:]
	}
	return base
}

// SanitizeValidationError turns validator errors into "Invalid <field>:
// <reason>" messages without struct names.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation error"
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("Invalid %s: %s", fe.Field(), validationTagMessage(fe)))
	}
	return strings.Join(parts, "; ")
}

func validationTagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required field"
	case "email":
		return "invalid email format"
	case "min":
		return "too short (minimum " + fe.Param() + ")"
	case "max":
		return "too long (maximum " + fe.Param() + ")"
	case "oneof":
		return "must be one of " + fe.Param()
	case "uuid":
		return "must be a UUID"
	case "dive":
		return "invalid item"
	default:
		return "validation failed"
	}
}

// HandleAPIError maps err to a status and safe message and writes it.
// fallback replaces the generic message of a 500 response when non-empty.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		message = fallback
	}

	var opts []shared.ResponseOption
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		opts = append(opts, shared.WithElevatedLogLevel())
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}
